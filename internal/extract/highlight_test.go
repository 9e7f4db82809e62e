package extract

import (
	"regexp"
	"strings"
	"testing"

	"newslens/internal/rules"
	"newslens/internal/span"
)

var markupTag = regexp.MustCompile(`</?mark[^>]*>`)

// visibleText strips the markup and reverses the escaping, recovering what
// a reader sees.
func visibleText(rendered string) string {
	plain := markupTag.ReplaceAllString(rendered, "")
	plain = strings.ReplaceAll(plain, "&lt;", "<")
	plain = strings.ReplaceAll(plain, "&quot;", `"`)
	return strings.ReplaceAll(plain, "&amp;", "&")
}

func TestRenderNoFindingsEscapesOnly(t *testing.T) {
	text := `Profits <doubled> at "AT&T".`
	got := renderHighlights(text, nil, nil, rules.Default())
	want := `Profits &lt;doubled> at &quot;AT&amp;T&quot;.`
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestRenderSingleEntityMarkup(t *testing.T) {
	text := "Visit Brussels today."
	e := Entity{Span: span.Span{Start: 6, End: 14}, Type: Location, Text: "Brussels", Confidence: 0.86}
	got := renderHighlights(text, []Entity{e}, nil, rules.Default())
	want := `Visit <mark class="highlight" data-type="LOCATION" data-confidence="0.86" style="background-color: #45B7D1">Brussels</mark> today.`
	if got != want {
		t.Fatalf("got %q", got)
	}
}

func TestRenderNestedEventAroundEntity(t *testing.T) {
	text := "They met with envoys in Oslo now"
	ev := Event{Span: span.Span{Start: 5, End: 28}, Type: "MEETING", Confidence: 0.8}
	en := Entity{Span: span.Span{Start: 24, End: 28}, Type: Location, Confidence: 0.9}
	got := renderHighlights(text, []Entity{en}, []Event{ev}, rules.Default())

	if strings.Count(got, "<mark") != strings.Count(got, "</mark>") {
		t.Fatalf("unbalanced markup: %q", got)
	}
	if visibleText(got) != text {
		t.Fatalf("rendering changed the visible text: %q", got)
	}
	// The containing event opens before the contained entity.
	evIdx := strings.Index(got, `data-type="MEETING"`)
	enIdx := strings.Index(got, `data-type="LOCATION"`)
	if evIdx < 0 || enIdx < 0 || evIdx > enIdx {
		t.Fatalf("outer span must open first: %q", got)
	}
}

func TestRenderPartialCrossCategoryOverlap(t *testing.T) {
	text := "abcdefghij klmno"
	en := Entity{Span: span.Span{Start: 0, End: 10}, Type: Person, Confidence: 0.9}
	ev := Event{Span: span.Span{Start: 5, End: 15}, Type: "MEETING", Confidence: 0.7}
	got := renderHighlights(text, []Entity{en}, []Event{ev}, rules.Default())

	if strings.Count(got, "<mark") != strings.Count(got, "</mark>") {
		t.Fatalf("unbalanced markup: %q", got)
	}
	if visibleText(got) != text {
		t.Fatalf("rendering changed the visible text: %q", got)
	}
	// The overlapping event is split at the entity boundary, so its tag
	// opens twice and tags never cross.
	if strings.Count(got, `data-type="MEETING"`) != 2 {
		t.Fatalf("partial overlap must split the later span: %q", got)
	}
	var depth, min = 0, 0
	for i := 0; i < len(got); i++ {
		if strings.HasPrefix(got[i:], "<mark") {
			depth++
		}
		if strings.HasPrefix(got[i:], "</mark>") {
			depth--
			if depth < min {
				min = depth
			}
		}
	}
	if depth != 0 || min < 0 {
		t.Fatalf("tags cross or stay open: %q", got)
	}
}

func TestRenderPanicsOnInvalidSpan(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("invalid span reaching the renderer must panic")
		}
	}()
	renderHighlights("abc", []Entity{{Span: span.Span{Start: 2, End: 9}}}, nil, rules.Default())
}

func TestRenderEscapesInsideHighlights(t *testing.T) {
	text := `say "hi" & go`
	e := Entity{Span: span.Span{Start: 4, End: 8}, Type: Person, Confidence: 0.5}
	got := renderHighlights(text, []Entity{e}, nil, rules.Default())
	if strings.Contains(visibleText(got), "&amp;") {
		t.Fatalf("double escaping: %q", got)
	}
	if !strings.Contains(got, "&quot;hi&quot;") {
		t.Fatalf("quotes inside a highlight must be escaped: %q", got)
	}
}
