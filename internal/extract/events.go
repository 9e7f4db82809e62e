package extract

import (
	"newslens/internal/rules"
	"newslens/internal/span"
)

// eventCandidate carries the declaration index of the originating pattern,
// the final tie-break during resolution.
type eventCandidate struct {
	Event
	patternIndex int
}

// recognizeEvents matches the ordered pattern list against the text.
// First match wins per overlapping region: once an earlier pattern claims
// a span, later patterns may not produce an event fully containing or
// fully contained by it. Partial overlaps are kept and resolved later by
// confidence. Output depends only on the text and the pattern list.
func recognizeEvents(text string, rs *rules.Ruleset) []eventCandidate {
	claimed := span.NewIndex(8)
	out := make([]eventCandidate, 0)
	for i := range rs.EventPatterns {
		ep := &rs.EventPatterns[i]
		for _, m := range ep.Regexp.FindAllStringSubmatchIndex(text, -1) {
			sp := span.Span{Start: m[0], End: m[1]}
			if !sp.Valid(len(text)) || !plausibleMatch(text, sp) {
				continue
			}
			if claimed.AnyContainment(sp) {
				continue
			}
			claimed.Add(sp)
			ev := Event{
				Span: sp,
				Type: EventType(ep.Type),
				Text: text[sp.Start:sp.End],
			}
			if ep.ExtractAttributes {
				ev.Attributes = captureAttributes(text, ep, m)
			}
			out = append(out, eventCandidate{Event: ev, patternIndex: ep.Index})
		}
	}
	return out
}

// captureAttributes maps named groups onto attributes in declaration
// order. Unnamed groups and empty captures are skipped, never stored.
func captureAttributes(text string, ep *rules.EventPattern, m []int) Attributes {
	attrs := make(Attributes, 0, len(ep.Groups))
	for gi, name := range ep.Groups {
		if gi == 0 || name == "" {
			continue
		}
		lo, hi := m[2*gi], m[2*gi+1]
		if lo < 0 || hi <= lo {
			continue
		}
		attrs = append(attrs, Attribute{Key: name, Value: text[lo:hi]})
	}
	if len(attrs) == 0 {
		return nil
	}
	return attrs
}
