package extract

import (
	"context"
	"errors"
	"strings"

	"newslens/internal/detect"
	"newslens/internal/rules"
	"newslens/internal/span"
)

// maxMatchNewlines guards against a pattern swallowing whole paragraphs: a
// capture spanning more than 3 lines is treated as a false positive.
const maxMatchNewlines = 2

// entityCandidate is an unresolved entity plus the provenance the scorer
// needs. Confidence on the embedded Entity is unset until scoring.
type entityCandidate struct {
	Entity
	source         string // "model" or "rule"
	modelScore     float64
	ruleConfidence float64
}

// recognizeEntities produces unscored, unresolved candidates for the
// allowed types. PERSON/ORGANIZATION/LOCATION are delegated to the
// statistical recognizer; DATE/MONEY/CONTACT and custom types come from
// the compiled rule patterns. An empty selection yields an empty sequence.
// A recognizer failure degrades to rule-backed types only; the returned
// reason is surfaced in result metadata.
func recognizeEntities(ctx context.Context, text string, allowed TypeSet, rec detect.Recognizer, rs *rules.Ruleset) (cands []entityCandidate, degradedReason string, err error) {
	if len(allowed) == 0 {
		return nil, "", nil
	}
	if wantsModelTypes(allowed) {
		if rec == nil {
			degradedReason = "no statistical recognizer configured"
		} else {
			raw, recErr := rec.Recognize(ctx, text)
			switch {
			case recErr == nil:
				cands = append(cands, modelCandidates(text, raw, allowed, rs)...)
			case errors.Is(recErr, context.Canceled) || errors.Is(recErr, context.DeadlineExceeded):
				return nil, "", recErr
			default:
				// Model-backed types drop out; rule-backed extraction
				// still runs so the request never loses all output.
				degradedReason = recErr.Error()
			}
		}
	}
	cands = append(cands, ruleCandidates(text, allowed, rs)...)
	return cands, degradedReason, nil
}

func wantsModelTypes(allowed TypeSet) bool {
	for t := range allowed {
		if modelBackedTypes[t] {
			return true
		}
	}
	return false
}

func modelCandidates(text string, raw []detect.RawEntity, allowed TypeSet, rs *rules.Ruleset) []entityCandidate {
	out := make([]entityCandidate, 0, len(raw))
	for _, r := range raw {
		sp := span.Span{Start: r.Start, End: r.End}
		if !sp.Valid(len(text)) || !plausibleMatch(text, sp) {
			continue
		}
		typ := EntityType(r.Type)
		if !rs.KnownType(string(typ)) || !allowed.Has(typ) {
			continue
		}
		out = append(out, entityCandidate{
			Entity:     Entity{Span: sp, Type: typ, Text: text[sp.Start:sp.End]},
			source:     "model",
			modelScore: r.Score,
		})
	}
	return out
}

func ruleCandidates(text string, allowed TypeSet, rs *rules.Ruleset) []entityCandidate {
	out := make([]entityCandidate, 0)
	for _, er := range rs.EntityRules {
		if !allowed.Has(EntityType(er.Type)) {
			continue
		}
		for _, idx := range er.Regexp.FindAllStringIndex(text, -1) {
			sp := span.Span{Start: idx[0], End: idx[1]}
			if !sp.Valid(len(text)) || !plausibleMatch(text, sp) {
				continue
			}
			out = append(out, entityCandidate{
				Entity:         Entity{Span: sp, Type: EntityType(er.Type), Text: text[sp.Start:sp.End]},
				source:         "rule",
				ruleConfidence: er.Confidence,
			})
		}
	}
	return out
}

// plausibleMatch rejects zero-length spans and matches crossing more than
// maxMatchNewlines line breaks.
func plausibleMatch(text string, sp span.Span) bool {
	if sp.Len() == 0 {
		return false
	}
	return strings.Count(text[sp.Start:sp.End], "\n") <= maxMatchNewlines
}
