package extract

import (
	"fmt"
	"sort"
	"strings"

	"newslens/internal/rules"
	"newslens/internal/span"
)

// escaper rewrites the characters with markup meaning. Rendering never
// changes the visible text, only wraps it; applying it alone is the whole
// transformation when there are no findings.
var escaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", `"`, "&quot;")

type hlItem struct {
	sp    span.Span
	typ   string
	conf  float64
	color string
}

// renderHighlights merges entity and event spans into one ordered plan and
// emits the annotated text. Within a category spans never overlap; across
// categories the outer span (earlier start, or longer on a tie) opens
// first and tags nest without crossing. A span partially overlapping an
// open one is split at the boundary rather than interleaved.
func renderHighlights(text string, entities []Entity, events []Event, rs *rules.Ruleset) string {
	items := make([]hlItem, 0, len(entities)+len(events))
	for _, e := range entities {
		if !e.Span.Valid(len(text)) {
			panic(fmt.Sprintf("renderer: invalid entity span %+v", e.Span))
		}
		items = append(items, hlItem{sp: e.Span, typ: string(e.Type), conf: e.Confidence, color: rs.ColorFor(string(e.Type))})
	}
	for _, e := range events {
		if !e.Span.Valid(len(text)) {
			panic(fmt.Sprintf("renderer: invalid event span %+v", e.Span))
		}
		items = append(items, hlItem{sp: e.Span, typ: string(e.Type), conf: e.Confidence, color: rs.ColorFor(string(e.Type))})
	}
	if len(items) == 0 {
		return escaper.Replace(text)
	}
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].sp.Start != items[j].sp.Start {
			return items[i].sp.Start < items[j].sp.Start
		}
		if items[i].sp.End != items[j].sp.End {
			return items[i].sp.End > items[j].sp.End
		}
		return items[i].typ < items[j].typ
	})

	bounds := segmentBounds(items, len(text))
	var b strings.Builder
	var open []hlItem
	for i := 0; i+1 < len(bounds); i++ {
		lo, hi := bounds[i], bounds[i+1]
		if lo == hi {
			continue
		}
		active := activeItems(items, lo, hi)
		keep := commonPrefix(open, active)
		for j := len(open) - 1; j >= keep; j-- {
			b.WriteString("</mark>")
		}
		for _, it := range active[keep:] {
			fmt.Fprintf(&b, `<mark class="highlight" data-type=%q data-confidence="%.2f" style="background-color: %s">`,
				escaper.Replace(it.typ), it.conf, escaper.Replace(it.color))
		}
		open = active
		b.WriteString(escaper.Replace(text[lo:hi]))
	}
	for range open {
		b.WriteString("</mark>")
	}
	return b.String()
}

// segmentBounds returns every span boundary plus the text edges, sorted
// and deduplicated.
func segmentBounds(items []hlItem, textLen int) []int {
	set := map[int]bool{0: true, textLen: true}
	for _, it := range items {
		set[it.sp.Start] = true
		set[it.sp.End] = true
	}
	out := make([]int, 0, len(set))
	for v := range set {
		out = append(out, v)
	}
	sort.Ints(out)
	return out
}

// activeItems returns the items covering [lo,hi), outermost first. Items
// are already sorted start asc / end desc, so the covering subset keeps
// that order.
func activeItems(items []hlItem, lo, hi int) []hlItem {
	out := make([]hlItem, 0, 2)
	for _, it := range items {
		if it.sp.Start <= lo && hi <= it.sp.End {
			out = append(out, it)
		}
		if it.sp.Start >= hi {
			break
		}
	}
	return out
}

func commonPrefix(a, b []hlItem) int {
	n := 0
	for n < len(a) && n < len(b) && a[n] == b[n] {
		n++
	}
	return n
}
