package extract

import (
	"strings"
	"unicode"
)

// Scoring heuristics. Model-backed candidates blend the recognizer's
// native score with a pattern-sanity check; rule-backed candidates start
// from the pattern's declared specificity and move by fixed adjustments.
// Pure functions: no side effects, no failure modes — malformed input
// here is a programming error upstream, not a recoverable condition.
const (
	modelScoreWeight  = 0.7
	sanityWeight      = 0.3
	shortMatchPenalty = 0.15
	cueWordBonus      = 0.10
	minPlausibleLen   = 4
	cueWindow         = 30
)

// cueWords corroborate PERSON/ORGANIZATION candidates when found near the
// span.
var cueWords = []string{
	"Mr.", "Mrs.", "Ms.", "Dr.", "CEO", "CFO", "President", "Chairman",
	"Minister", "Senator", "spokesman", "spokeswoman",
	"Inc.", "Corp.", "Ltd.", "LLC", "Company", "Group",
}

func scoreEntity(text string, c entityCandidate) float64 {
	if c.source == "model" {
		blended := modelScoreWeight*c.modelScore + sanityWeight*sanityAdjustment(c)
		return clamp01(blended)
	}
	conf := c.ruleConfidence
	if len(c.Text) < minPlausibleLen {
		conf -= shortMatchPenalty
	}
	if (c.Type == Person || c.Type == Organization) && hasCueNearby(text, c.Start, c.End) {
		conf += cueWordBonus
	}
	return clamp01(conf)
}

func scoreEvent(c eventCandidate, base float64) float64 {
	conf := base
	if len(c.Text) < 2*minPlausibleLen {
		conf -= shortMatchPenalty
	}
	return clamp01(conf)
}

// sanityAdjustment checks that the matched text has the shape its type
// implies: names capitalized, dates in a recognized locale format.
func sanityAdjustment(c entityCandidate) float64 {
	switch c.Type {
	case Person, Organization, Location:
		return capitalizationConsistency(c.Text)
	case Date:
		if looksLikeDate(c.Text) {
			return 1.0
		}
		return 0.5
	default:
		return 0.75
	}
}

// capitalizationConsistency returns the fraction of words starting with an
// uppercase letter. "Tim Cook" scores 1.0; "tim Cook" scores 0.5.
func capitalizationConsistency(s string) float64 {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return 0
	}
	capitalized := 0
	for _, f := range fields {
		r := []rune(f)
		if unicode.IsUpper(r[0]) || unicode.IsDigit(r[0]) {
			capitalized++
		}
	}
	return float64(capitalized) / float64(len(fields))
}

var monthNames = []string{
	"january", "february", "march", "april", "may", "june", "july",
	"august", "september", "october", "november", "december",
}

func looksLikeDate(s string) bool {
	lower := strings.ToLower(s)
	for _, m := range monthNames {
		if strings.Contains(lower, m) {
			return true
		}
	}
	digits := 0
	for _, r := range s {
		if unicode.IsDigit(r) {
			digits++
		}
	}
	// ISO and slash formats are digit-heavy.
	return digits >= 6
}

func hasCueNearby(text string, start, end int) bool {
	lo := start - cueWindow
	if lo < 0 {
		lo = 0
	}
	hi := end + cueWindow
	if hi > len(text) {
		hi = len(text)
	}
	window := text[lo:hi]
	for _, cue := range cueWords {
		if strings.Contains(window, cue) {
			return true
		}
	}
	return false
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
