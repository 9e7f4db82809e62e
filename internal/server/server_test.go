package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"newslens/internal/config"
	"newslens/internal/detect"
	"newslens/internal/extract"
	"newslens/internal/history"
	"newslens/internal/stats"
)

type scriptedRecognizer struct {
	raw []detect.RawEntity
}

func (s *scriptedRecognizer) Recognize(ctx context.Context, text string) ([]detect.RawEntity, error) {
	return s.raw, nil
}

func newTestServer(t *testing.T, rec detect.Recognizer, hist *history.Store) *Server {
	t.Helper()
	cfg := config.Default()
	cfg.RateLimit = 1000
	cfg.RateBurst = 1000
	return New(cfg, extract.New(extract.Config{Recognizer: rec}), hist)
}

func postJSON(t *testing.T, h http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestExtractEndpoint(t *testing.T) {
	text := "Apple Inc. CEO Tim Cook met with regulators in Brussels on March 3, 2024."
	rec := &scriptedRecognizer{raw: []detect.RawEntity{
		{Type: "ORGANIZATION", Start: 0, End: 10, Score: 0.9},
		{Type: "PERSON", Start: 15, End: 23, Score: 0.85},
		{Type: "LOCATION", Start: strings.Index(text, "Brussels"), End: strings.Index(text, "Brussels") + 8, Score: 0.8},
	}}
	srv := newTestServer(t, rec, nil)

	w := postJSON(t, srv.Handler(), "/api/extract", map[string]any{"text": text})
	require.Equal(t, http.StatusOK, w.Code)

	var result extract.Result
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.Len(t, result.Entities, 4)
	require.Len(t, result.Events, 1)
	assert.Equal(t, extract.EventType("MEETING"), result.Events[0].Type)
	loc, _ := result.Events[0].Attributes.Get("location")
	assert.Equal(t, "Brussels", loc)
	assert.Equal(t, 4, result.Statistics.TotalEntities)
	assert.NotEmpty(t, result.HighlightedText)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestExtractEndpointEmptyText(t *testing.T) {
	srv := newTestServer(t, nil, nil)
	w := postJSON(t, srv.Handler(), "/api/extract", map[string]any{"text": "   "})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "no text provided")
	assert.Contains(t, w.Body.String(), `"code":"empty_input"`)
}

func TestExtractEndpointInvalidType(t *testing.T) {
	srv := newTestServer(t, nil, nil)
	w := postJSON(t, srv.Handler(), "/api/extract", map[string]any{
		"text":         "some text",
		"entity_types": []string{"PERSON", "GADGET"},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "GADGET")
	assert.Contains(t, w.Body.String(), `"code":"invalid_entity_type"`)
}

func TestExtractEndpointInvalidJSON(t *testing.T) {
	srv := newTestServer(t, nil, nil)
	req := httptest.NewRequest(http.MethodPost, "/api/extract", strings.NewReader("{not json"))
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestExtractEndpointMinConfidence(t *testing.T) {
	srv := newTestServer(t, nil, nil)
	body := map[string]any{
		"text":           "The payment of $12 is due on 2024-03-01.",
		"entity_types":   []string{"DATE", "MONEY"},
		"min_confidence": 0.9,
	}
	w := postJSON(t, srv.Handler(), "/api/extract", body)
	require.Equal(t, http.StatusOK, w.Code)
	var result extract.Result
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	// "$12" scores below 0.9 after the short-match penalty; the ISO date stays.
	require.Len(t, result.Entities, 1)
	assert.Equal(t, extract.Date, result.Entities[0].Type)
}

func TestExtractEndpointDegraded(t *testing.T) {
	srv := newTestServer(t, nil, nil)
	w := postJSON(t, srv.Handler(), "/api/extract", map[string]any{
		"text":         "Tim Cook visited on 2024-03-01.",
		"entity_types": []string{"PERSON", "DATE"},
	})
	require.Equal(t, http.StatusOK, w.Code)
	var result extract.Result
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.True(t, result.Metadata.Degraded)
	assert.NotEmpty(t, result.Metadata.DegradedReason)
}

func TestExportEndpoint(t *testing.T) {
	srv := newTestServer(t, nil, nil)
	results := map[string]any{
		"entities": []map[string]any{
			{"start": 0, "end": 8, "type": "PERSON", "text": "Tim Cook", "confidence": 0.9},
		},
		"events":     []map[string]any{},
		"statistics": map[string]any{"total_entities": 1, "total_events": 0, "by_type": map[string]int{"PERSON": 1}},
	}

	w := postJSON(t, srv.Handler(), "/api/export", map[string]any{"format": "csv", "results": results})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/csv", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "extraction_results.csv")
	assert.Contains(t, w.Body.String(), "Tim Cook")

	w = postJSON(t, srv.Handler(), "/api/export", map[string]any{"format": "xml", "results": results})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = postJSON(t, srv.Handler(), "/api/export", map[string]any{"format": "txt"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSampleTextEndpoint(t *testing.T) {
	srv := newTestServer(t, nil, nil)
	req := httptest.NewRequest(http.MethodGet, "/api/sample-text", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	var payload map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &payload))
	assert.Contains(t, payload["text"], "Tim Cook")
}

func TestStatsEndpointCountsExtractions(t *testing.T) {
	hist, err := history.Open(context.Background(), filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	defer hist.Close()

	srv := newTestServer(t, nil, hist)
	body := map[string]any{
		"text":         "Payment due 2024-03-01.",
		"entity_types": []string{"DATE"},
	}
	w := postJSON(t, srv.Handler(), "/api/extract", body)
	require.Equal(t, http.StatusOK, w.Code)
	// Identical request again: served from the result cache and recorded
	// as a hit in history.
	w = postJSON(t, srv.Handler(), "/api/extract", body)
	require.Equal(t, http.StatusOK, w.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/stats", nil)
	rw := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rw, req)
	require.Equal(t, http.StatusOK, rw.Code)

	var snapshot stats.Stats
	require.NoError(t, json.Unmarshal(rw.Body.Bytes(), &snapshot))
	assert.Equal(t, 2, snapshot.Requests.Total)
	assert.Equal(t, 1, snapshot.Requests.CacheHits)
	assert.Equal(t, 2, snapshot.Findings.Entities)
	assert.Equal(t, "running", snapshot.Status)
}

func TestHealthEndpoint(t *testing.T) {
	srv := newTestServer(t, nil, nil)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)
}

func TestRateLimiting(t *testing.T) {
	cfg := config.Default()
	cfg.RateLimit = 1
	cfg.RateBurst = 1
	srv := New(cfg, extract.New(extract.Config{}), nil)
	h := srv.Handler()

	mkReq := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
		req.RemoteAddr = "198.51.100.7:4242"
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		return w
	}
	assert.Equal(t, http.StatusOK, mkReq().Code)
	limited := mkReq()
	assert.Equal(t, http.StatusTooManyRequests, limited.Code)
	assert.Contains(t, limited.Body.String(), `"code":"rate_limited"`)

	// A different client has its own bucket.
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.RemoteAddr = "203.0.113.9:4242"
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRequestIDEcho(t *testing.T) {
	srv := newTestServer(t, nil, nil)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-ID", "client-supplied-id")
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	assert.Equal(t, "client-supplied-id", w.Header().Get("X-Request-ID"))
}
