package extract

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"

	"newslens/internal/cache"
	"newslens/internal/detect"
	"newslens/internal/rules"
)

// Config wires an Extractor. Rules must be a validated rule set; a nil
// Recognizer means model-backed types always degrade to rules only.
type Config struct {
	Rules         *rules.Ruleset
	Recognizer    detect.Recognizer
	ContextWindow int
	CacheTTL      time.Duration
	CacheSize     int
}

const defaultCacheTTL = 300 * time.Second

// Extractor is the engine's sole entry point. It is safe for concurrent
// use: requests are independent and the cache is the only shared state.
type Extractor struct {
	rules  *rules.Ruleset
	rec    detect.Recognizer
	window int
	cache  *cache.Cache[*Result]
}

func New(cfg Config) *Extractor {
	if cfg.Rules == nil {
		cfg.Rules = rules.Default()
	}
	if cfg.ContextWindow == 0 {
		cfg.ContextWindow = defaultContextWindow
	}
	if cfg.CacheTTL == 0 {
		cfg.CacheTTL = defaultCacheTTL
	}
	return &Extractor{
		rules:  cfg.Rules,
		rec:    cfg.Recognizer,
		window: cfg.ContextWindow,
		cache:  cache.New[*Result](cfg.CacheTTL, cfg.CacheSize),
	}
}

// Rules exposes the read-only rule set for the boundary layers.
func (x *Extractor) Rules() *rules.Ruleset { return x.rules }

// InvalidateCache drops every memoized result.
func (x *Extractor) InvalidateCache() { x.cache.InvalidateAll() }

// Filter derives a confidence-filtered view of r without mutating it.
func (x *Extractor) Filter(r *Result, min float64) *Result {
	return FilterByConfidence(r, min, x.rules)
}

// Extract runs the full pipeline: entity and event recognition in
// parallel, scoring, per-category span resolution, context slicing,
// statistics and highlighting. Results are memoized by (text hash,
// selected types, event flag); callers always receive a deep copy so
// client-side filtering cannot corrupt the cached original. Output is
// deterministic for a fixed configuration and recognizer version.
func (x *Extractor) Extract(ctx context.Context, text string, types TypeSet, extractEvents bool) (*Result, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyInput
	}
	key := cacheKey(text, types, extractEvents)
	// An abandoned caller lets the in-flight computation finish for the
	// ones still waiting on it, so the compute context is detached.
	computeCtx := context.WithoutCancel(ctx)
	computed := false
	result, err := x.cache.GetOrCompute(key, func() (*Result, error) {
		computed = true
		return x.compute(computeCtx, text, types, extractEvents)
	})
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := result.Clone()
	// The canonical cached result never carries the flag; each served
	// copy records whether this call computed or reused it.
	out.Metadata.CacheHit = !computed
	return out, nil
}

func (x *Extractor) compute(ctx context.Context, text string, types TypeSet, extractEvents bool) (*Result, error) {
	start := time.Now()

	var (
		entityCands    []entityCandidate
		eventCands     []eventCandidate
		degradedReason string
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		entityCands, degradedReason, err = recognizeEntities(gctx, text, types, x.rec, x.rules)
		return err
	})
	if extractEvents {
		g.Go(func() error {
			eventCands = recognizeEvents(text, x.rules)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for i := range entityCands {
		entityCands[i].Confidence = scoreEntity(text, entityCands[i])
	}
	for i := range eventCands {
		base := x.rules.EventPatterns[eventCands[i].patternIndex].Confidence
		eventCands[i].Confidence = scoreEvent(eventCands[i], base)
	}

	entities := make([]Entity, 0, len(entityCands))
	for _, c := range resolveSpans(entityCands, len(text)) {
		c.Entity.Context = contextFor(text, c.Span, x.window)
		entities = append(entities, c.Entity)
	}
	events := make([]Event, 0, len(eventCands))
	for _, c := range resolveSpans(eventCands, len(text)) {
		c.Event.Context = contextFor(text, c.Span, x.window)
		events = append(events, c.Event)
	}

	result := &Result{
		Entities:        entities,
		Events:          events,
		HighlightedText: renderHighlights(text, entities, events, x.rules),
		Statistics:      Aggregate(entities, events),
		Metadata: Metadata{
			ProcessingTimeMs: float64(time.Since(start).Microseconds()) / 1000,
			TextLength:       utf8.RuneCountInString(text),
			Degraded:         degradedReason != "",
			DegradedReason:   degradedReason,
		},
		sourceText: text,
	}
	return result, nil
}

func cacheKey(text string, types TypeSet, extractEvents bool) string {
	h := sha256.New()
	h.Write([]byte(text))
	h.Write([]byte{0})
	for _, t := range types.Sorted() {
		h.Write([]byte(t))
		h.Write([]byte{1})
	}
	if extractEvents {
		h.Write([]byte{2})
	}
	return hex.EncodeToString(h.Sum(nil))
}
