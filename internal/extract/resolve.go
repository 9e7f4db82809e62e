package extract

import (
	"fmt"
	"sort"

	"newslens/internal/span"
)

// resolvable is what the sweep needs from a candidate: its span, its
// scored confidence, and its declaration order (pattern index for events,
// zero for entities).
type resolvable interface {
	span() span.Span
	confidence() float64
	declOrder() int
}

func (c entityCandidate) span() span.Span     { return c.Span }
func (c entityCandidate) confidence() float64 { return c.Confidence }
func (c entityCandidate) declOrder() int      { return 0 }

func (c eventCandidate) span() span.Span     { return c.Span }
func (c eventCandidate) confidence() float64 { return c.Confidence }
func (c eventCandidate) declOrder() int      { return c.patternIndex }

// resolveSpans deduplicates and resolves overlaps within one category.
// Sort by start ascending, confidence descending; sweep left to right with
// the frontier at the last accepted span's end. An overlapping candidate
// replaces the incumbent only if it wins on confidence, then span length,
// then earlier start, then earlier declaration order. Accepted spans never
// overlap. The sweep is the one order-sensitive algorithm in the engine;
// tie-breaks here define output determinism.
func resolveSpans[T resolvable](cands []T, textLen int) []T {
	for _, c := range cands {
		sp := c.span()
		if !sp.Valid(textLen) {
			panic(fmt.Sprintf("resolver: invalid span %+v for text length %d", sp, textLen))
		}
		if conf := c.confidence(); conf < 0 || conf > 1 {
			panic(fmt.Sprintf("resolver: confidence %v outside [0,1]", conf))
		}
	}
	sorted := make([]T, len(cands))
	copy(sorted, cands)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.span().Start != b.span().Start {
			return a.span().Start < b.span().Start
		}
		return a.confidence() > b.confidence()
	})

	chosen := make([]T, 0, len(sorted))
	for _, c := range sorted {
		if len(chosen) == 0 {
			chosen = append(chosen, c)
			continue
		}
		last := chosen[len(chosen)-1]
		if c.span().Start < last.span().End {
			if preferCandidate(c, last) {
				chosen[len(chosen)-1] = c
			}
			continue
		}
		chosen = append(chosen, c)
	}
	return chosen
}

func preferCandidate[T resolvable](a, b T) bool {
	if a.confidence() != b.confidence() {
		return a.confidence() > b.confidence()
	}
	if a.span().Len() != b.span().Len() {
		return a.span().Len() > b.span().Len()
	}
	if a.span().Start != b.span().Start {
		return a.span().Start < b.span().Start
	}
	return a.declOrder() < b.declOrder()
}
