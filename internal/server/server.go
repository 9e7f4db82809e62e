// Package server exposes the extraction engine over HTTP: extraction,
// export, sample text, service statistics and a health probe.
package server

import (
	"context"
	"crypto/sha256"
	_ "embed"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"newslens/internal/config"
	"newslens/internal/export"
	"newslens/internal/extract"
	"newslens/internal/history"
	"newslens/internal/stats"
)

// maxRequestBytes bounds the request body; news articles are small and
// anything larger is a mistake or abuse.
const maxRequestBytes = 1 << 20

//go:embed sample_news.txt
var sampleText string

type Server struct {
	cfg     config.Config
	x       *extract.Extractor
	hist    *history.Store
	started time.Time
	httpSrv *http.Server
	clients *clientLimiters
}

// New wires the HTTP layer. hist may be nil: extraction still works, the
// stats endpoint just reports an empty history.
func New(cfg config.Config, x *extract.Extractor, hist *history.Store) *Server {
	s := &Server{
		cfg:     cfg,
		x:       x,
		hist:    hist,
		started: time.Now(),
		clients: newClientLimiters(cfg.RateLimit, cfg.RateBurst),
	}
	s.httpSrv = &http.Server{
		Addr:              fmt.Sprintf("0.0.0.0:%d", cfg.Port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Handler builds the routed, middleware-wrapped handler. Exposed so tests
// can drive it without a listener.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/extract", s.handleExtract)
	mux.HandleFunc("POST /api/export", s.handleExport)
	mux.HandleFunc("GET /api/sample-text", s.handleSampleText)
	mux.HandleFunc("GET /api/stats", s.handleStats)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	return withRequestID(withLogging(s.clients.limit(mux)))
}

func (s *Server) Start() error {
	log.Printf("[newslens] listening on %s", s.httpSrv.Addr)
	return s.httpSrv.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpSrv.Shutdown(ctx)
}

type extractRequest struct {
	Text          string   `json:"text"`
	EntityTypes   []string `json:"entity_types"`
	ExtractEvents *bool    `json:"extract_events"`
	MinConfidence float64  `json:"min_confidence"`
}

func (s *Server) handleExtract(w http.ResponseWriter, r *http.Request) {
	var req extractRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	types, err := s.selectedTypes(req.EntityTypes)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_entity_type", err.Error())
		return
	}
	withEvents := req.ExtractEvents == nil || *req.ExtractEvents

	result, err := s.x.Extract(r.Context(), req.Text, types, withEvents)
	switch {
	case errors.Is(err, extract.ErrEmptyInput):
		writeError(w, http.StatusBadRequest, "empty_input", "no text provided")
		return
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, "internal_error", "extraction failed")
		log.Printf("[newslens] extract: %v", err)
		return
	}

	s.record(r.Context(), req.Text, result)

	if req.MinConfidence > 0 {
		result = s.x.Filter(result, req.MinConfidence)
	}
	writeJSON(w, http.StatusOK, result)
}

type exportRequest struct {
	Format  string          `json:"format"`
	Results *extract.Result `json:"results"`
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	var req exportRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if req.Results == nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "no results provided")
		return
	}
	format, err := export.ParseFormat(req.Format)
	if err != nil {
		writeError(w, http.StatusBadRequest, "unsupported_format", err.Error())
		return
	}
	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", "attachment; filename="+format.Filename())
	if err := export.Write(w, req.Results, format); err != nil {
		log.Printf("[newslens] export: %v", err)
	}
}

func (s *Server) handleSampleText(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"text": sampleText})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	var records []history.Record
	if s.hist != nil {
		var err error
		records, err = s.hist.Recent(r.Context(), 1000)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal_error", "history unavailable")
			log.Printf("[newslens] stats: %v", err)
			return
		}
	}
	snapshot := stats.Collect(records, stats.Options{
		Now:    time.Now().UTC(),
		Status: "running",
		Uptime: time.Since(s.started),
		Port:   s.cfg.Port,
	})
	writeJSON(w, http.StatusOK, snapshot)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":         "ok",
		"uptime_seconds": int64(time.Since(s.started).Seconds()),
	})
}

// selectedTypes resolves the request's type names; an empty selection
// means every registered type.
func (s *Server) selectedTypes(names []string) (extract.TypeSet, error) {
	if len(names) == 0 {
		all := make([]string, 0, len(s.x.Rules().EntityTypes))
		for _, ti := range s.x.Rules().EntityTypes {
			all = append(all, ti.Name)
		}
		names = all
	}
	return extract.ParseEntityTypes(names, s.x.Rules())
}

func (s *Server) record(ctx context.Context, text string, result *extract.Result) {
	if s.hist == nil {
		return
	}
	sum := sha256.Sum256([]byte(text))
	_, err := s.hist.Append(ctx, history.Record{
		TextHash:         hex.EncodeToString(sum[:]),
		TextLength:       result.Metadata.TextLength,
		EntityCount:      result.Statistics.TotalEntities,
		EventCount:       result.Statistics.TotalEvents,
		ByType:           result.Statistics.ByType,
		ProcessingTimeMs: result.Metadata.ProcessingTimeMs,
		CacheHit:         result.Metadata.CacheHit,
		Degraded:         result.Metadata.Degraded,
	})
	if err != nil {
		log.Printf("[newslens] history append: %v", err)
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBytes)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return fmt.Errorf("request body exceeds %d bytes", tooLarge.Limit)
		}
		return fmt.Errorf("invalid JSON body")
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[newslens] write response: %v", err)
	}
}

// writeError answers with the {error, code} shape clients dispatch on.
func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, map[string]string{"error": msg, "code": code})
}
