package extract

import "newslens/internal/rules"

// FilterByConfidence derives a new, smaller result keeping only findings
// at or above min. The input is never mutated: the canonical result stays
// intact while callers re-filter views of it. Statistics and highlighting
// are recomputed for the view; metadata is carried over.
func FilterByConfidence(r *Result, min float64, rs *rules.Ruleset) *Result {
	if r == nil {
		return nil
	}
	out := &Result{
		Entities:   make([]Entity, 0, len(r.Entities)),
		Events:     make([]Event, 0, len(r.Events)),
		Metadata:   r.Metadata,
		sourceText: r.sourceText,
	}
	for _, e := range r.Entities {
		if e.Confidence >= min {
			out.Entities = append(out.Entities, e)
		}
	}
	for _, ev := range r.Events {
		if ev.Confidence >= min {
			attrs := make(Attributes, len(ev.Attributes))
			copy(attrs, ev.Attributes)
			ev.Attributes = attrs
			out.Events = append(out.Events, ev)
		}
	}
	out.Statistics = Aggregate(out.Entities, out.Events)
	out.HighlightedText = renderHighlights(r.sourceText, out.Entities, out.Events, rs)
	return out
}
