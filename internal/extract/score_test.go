package extract

import (
	"math"
	"testing"

	"newslens/internal/span"
)

func almostEqual(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestScoreModelCandidateBlendsSanity(t *testing.T) {
	c := entityCandidate{
		Entity: Entity{Span: span.Span{Start: 0, End: 8}, Type: Person, Text: "Tim Cook"},
		source: "model", modelScore: 0.85,
	}
	// Fully capitalized name: 0.7*0.85 + 0.3*1.0.
	if got := scoreEntity("Tim Cook spoke.", c); !almostEqual(got, 0.895) {
		t.Fatalf("got %v", got)
	}
	c.Text = "tim cook"
	if got := scoreEntity("tim cook spoke.", c); !almostEqual(got, 0.7*0.85) {
		t.Fatalf("uncapitalized name must lose the sanity share, got %v", got)
	}
}

func TestScoreRuleCandidateShortMatchPenalty(t *testing.T) {
	c := entityCandidate{
		Entity: Entity{Span: span.Span{Start: 0, End: 3}, Type: Money, Text: "$12"},
		source: "rule", ruleConfidence: 0.90,
	}
	if got := scoreEntity("$12 fee", c); !almostEqual(got, 0.75) {
		t.Fatalf("short match must be penalized, got %v", got)
	}
	c.Text = "$12,000"
	c.End = 7
	if got := scoreEntity("$12,000 fee", c); !almostEqual(got, 0.90) {
		t.Fatalf("long match keeps base confidence, got %v", got)
	}
}

func TestScoreClampsToUnitInterval(t *testing.T) {
	c := entityCandidate{
		Entity: Entity{Span: span.Span{Start: 4, End: 13}, Type: Organization, Text: "Acme Corp"},
		source: "rule", ruleConfidence: 0.98,
	}
	got := scoreEntity("The Acme Corp Inc. office", c)
	if got > 1 {
		t.Fatalf("confidence above 1: %v", got)
	}
	if !almostEqual(got, 1.0) {
		t.Fatalf("0.98 plus cue bonus must clamp to 1, got %v", got)
	}
}

func TestScoreEventShortMatchPenalty(t *testing.T) {
	short := eventCandidate{Event: Event{Text: "met now"}}
	long := eventCandidate{Event: Event{Text: "met with the delegation"}}
	if got := scoreEvent(short, 0.80); !almostEqual(got, 0.65) {
		t.Fatalf("short event got %v", got)
	}
	if got := scoreEvent(long, 0.80); !almostEqual(got, 0.80) {
		t.Fatalf("long event got %v", got)
	}
}

func TestSanityAdjustmentDates(t *testing.T) {
	c := entityCandidate{Entity: Entity{Type: Date, Text: "March 3, 2024"}}
	if got := sanityAdjustment(c); got != 1.0 {
		t.Fatalf("month-name date got %v", got)
	}
	c.Text = "12/05"
	if got := sanityAdjustment(c); got != 0.5 {
		t.Fatalf("digit-light date got %v", got)
	}
	c.Text = "2024-03-01"
	if got := sanityAdjustment(c); got != 1.0 {
		t.Fatalf("ISO date got %v", got)
	}
}

func TestCapitalizationConsistency(t *testing.T) {
	cases := []struct {
		in   string
		want float64
	}{
		{"Tim Cook", 1.0},
		{"tim Cook", 0.5},
		{"tim cook", 0.0},
		{"4th Avenue", 1.0},
		{"", 0.0},
	}
	for _, tc := range cases {
		if got := capitalizationConsistency(tc.in); !almostEqual(got, tc.want) {
			t.Fatalf("%q: got %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestHasCueNearbyWindow(t *testing.T) {
	text := "CEO Jane Roe announced the merger."
	if !hasCueNearby(text, 4, 12) {
		t.Fatal("cue directly before the span must be found")
	}
	far := "Jane Roe was there. Much later in the article, far away, the CEO spoke."
	if hasCueNearby(far, 0, 8) {
		t.Fatal("cue outside the window must not count")
	}
}
