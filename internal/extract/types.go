// Package extract is the extraction and scoring engine: it turns raw news
// text plus a selection configuration into a deterministic, confidence
// annotated set of non-overlapping (per category) spans, and renders the
// source text with inline highlighting.
package extract

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"newslens/internal/rules"
	"newslens/internal/span"
)

var (
	// ErrEmptyInput is returned when no text is provided. Nothing runs.
	ErrEmptyInput = errors.New("empty input text")
	// ErrInvalidEntityType is returned for unknown entity type names.
	// Unknown types are rejected, never silently ignored.
	ErrInvalidEntityType = errors.New("invalid entity type")
)

// EntityType names a registered entity category. The built-ins below are
// always present; custom rule-backed types come from the rules file.
type EntityType string

const (
	Person       EntityType = "PERSON"
	Organization EntityType = "ORGANIZATION"
	Location     EntityType = "LOCATION"
	Date         EntityType = "DATE"
	Money        EntityType = "MONEY"
	Contact      EntityType = "CONTACT"
)

// modelBackedTypes are delegated to the statistical recognizer; everything
// else is rule-backed.
var modelBackedTypes = map[EntityType]bool{
	Person:       true,
	Organization: true,
	Location:     true,
}

// EventType names an event category produced by the pattern list.
type EventType string

// TypeSet is a selection of entity types.
type TypeSet map[EntityType]bool

// Has reports membership.
func (s TypeSet) Has(t EntityType) bool { return s[t] }

// Sorted returns the members in lexical order, for stable cache keys.
func (s TypeSet) Sorted() []EntityType {
	out := make([]EntityType, 0, len(s))
	for t := range s {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// ParseEntityTypes validates type names against the registry. Any unknown
// name fails the whole request with ErrInvalidEntityType.
func ParseEntityTypes(names []string, rs *rules.Ruleset) (TypeSet, error) {
	out := make(TypeSet, len(names))
	for _, name := range names {
		if !rs.KnownType(name) {
			return nil, fmt.Errorf("%w: %q", ErrInvalidEntityType, name)
		}
		out[EntityType(name)] = true
	}
	return out, nil
}

// Entity is a recognized named thing. Text is always exactly the input
// slice covered by the span. Immutable once accepted by the resolver.
type Entity struct {
	span.Span
	Type       EntityType `json:"type"`
	Text       string     `json:"text"`
	Confidence float64    `json:"confidence"`
	Context    string     `json:"context,omitempty"`
}

// Attribute is one named sub-capture of an event pattern.
type Attribute struct {
	Key   string
	Value string
}

// Attributes preserves the pattern's group declaration order. Marshals as
// a JSON object; empty values are omitted at capture time, never stored.
type Attributes []Attribute

func (a Attributes) Get(key string) (string, bool) {
	for _, kv := range a {
		if kv.Key == key {
			return kv.Value, true
		}
	}
	return "", false
}

func (a Attributes) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, kv := range a {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(kv.Key)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(kv.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (a *Attributes) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok != json.Delim('{') {
		return fmt.Errorf("attributes: expected object")
	}
	out := Attributes{}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, _ := keyTok.(string)
		var value string
		if err := dec.Decode(&value); err != nil {
			return err
		}
		out = append(out, Attribute{Key: key, Value: value})
	}
	*a = out
	return nil
}

// Event is a recognized occurrence with named attributes extracted from
// the matching pattern's sub-captures.
type Event struct {
	span.Span
	Type       EventType  `json:"type"`
	Text       string     `json:"text"`
	Confidence float64    `json:"confidence"`
	Attributes Attributes `json:"attributes,omitempty"`
	Context    string     `json:"context,omitempty"`
}

// Statistics is pure counting over the accepted findings.
type Statistics struct {
	TotalEntities int            `json:"total_entities"`
	TotalEvents   int            `json:"total_events"`
	ByType        map[string]int `json:"by_type"`
}

// Metadata describes one extraction run. Degraded is set when the
// statistical recognizer was unavailable and only rule-backed types ran.
// CacheHit is serving metadata like ProcessingTimeMs: it describes how
// this particular call was satisfied, not the cached content itself.
type Metadata struct {
	ProcessingTimeMs float64 `json:"processing_time_ms"`
	TextLength       int     `json:"text_length"`
	CacheHit         bool    `json:"cache_hit,omitempty"`
	Degraded         bool    `json:"degraded,omitempty"`
	DegradedReason   string  `json:"degraded_reason,omitempty"`
}

// Result is the composed output of one extraction. Entities and events are
// ordered by ascending span start, ties broken by descending confidence.
// Callers receive deep copies; the cache keeps the canonical one.
type Result struct {
	Entities        []Entity   `json:"entities"`
	Events          []Event    `json:"events"`
	HighlightedText string     `json:"highlighted_text"`
	Statistics      Statistics `json:"statistics"`
	Metadata        Metadata   `json:"metadata"`

	// sourceText backs derived views (re-filtering re-renders highlights).
	// Not serialized; views produced by FilterByConfidence keep it.
	sourceText string
}

// SourceText returns the original input this result was extracted from.
func (r *Result) SourceText() string { return r.sourceText }

// Clone returns a deep copy. Mutating the copy never touches the original.
func (r *Result) Clone() *Result {
	if r == nil {
		return nil
	}
	out := &Result{
		Entities:        make([]Entity, len(r.Entities)),
		Events:          make([]Event, len(r.Events)),
		HighlightedText: r.HighlightedText,
		Statistics: Statistics{
			TotalEntities: r.Statistics.TotalEntities,
			TotalEvents:   r.Statistics.TotalEvents,
			ByType:        make(map[string]int, len(r.Statistics.ByType)),
		},
		Metadata:   r.Metadata,
		sourceText: r.sourceText,
	}
	copy(out.Entities, r.Entities)
	for i, ev := range r.Events {
		attrs := make(Attributes, len(ev.Attributes))
		copy(attrs, ev.Attributes)
		ev.Attributes = attrs
		out.Events[i] = ev
	}
	for k, v := range r.Statistics.ByType {
		out.Statistics.ByType[k] = v
	}
	return out
}
