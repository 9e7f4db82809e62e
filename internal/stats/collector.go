// Package stats aggregates extraction history into the service-level
// figures the stats endpoint and CLI report.
package stats

import (
	"sort"
	"strings"
	"time"

	"newslens/internal/history"
)

type Stats struct {
	Status        string          `json:"status"`
	UptimeSeconds int64           `json:"uptime_seconds"`
	Port          int             `json:"port"`
	Requests      RequestStats    `json:"requests"`
	Findings      FindingsStats   `json:"findings"`
	Latency       LatencyStats    `json:"latency"`
	TopTypes      []TypeStats     `json:"top_types"`
	Recent        []RecentRequest `json:"recent,omitempty"`
}

type RequestStats struct {
	Total       int     `json:"total"`
	CacheHits   int     `json:"cache_hits"`
	Degraded    int     `json:"degraded"`
	PerMinute   float64 `json:"per_minute"`
	Last5Minute []int   `json:"last_5_minute"`
}

type FindingsStats struct {
	Entities int            `json:"entities"`
	Events   int            `json:"events"`
	ByType   map[string]int `json:"by_type"`
}

type LatencyStats struct {
	ExtractMs float64 `json:"extract_ms"`
}

type TypeStats struct {
	Type  string `json:"type"`
	Count int    `json:"count"`
}

type RecentRequest struct {
	Timestamp  string         `json:"timestamp"`
	TextLength int            `json:"text_length"`
	Entities   int            `json:"entities"`
	Events     int            `json:"events"`
	ByType     map[string]int `json:"by_type,omitempty"`
	ExtractMs  float64        `json:"extract_ms"`
	CacheHit   bool           `json:"cache_hit"`
	Degraded   bool           `json:"degraded"`
}

type Options struct {
	Now     time.Time
	Status  string
	Uptime  time.Duration
	Port    int
	TopN    int
	RecentN int
}

// Collect folds history records, newest first or not, into one snapshot.
// Rate buckets cover the five minutes before opts.Now; when Now is unset
// the buckets stay empty so offline reports do not mislead.
func Collect(records []history.Record, opts Options) Stats {
	now := opts.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}
	topN := opts.TopN
	if topN <= 0 {
		topN = 5
	}
	recentN := opts.RecentN
	if recentN <= 0 {
		recentN = 20
	}

	out := Stats{
		Status:        opts.Status,
		UptimeSeconds: int64(opts.Uptime.Seconds()),
		Port:          opts.Port,
		Findings:      FindingsStats{ByType: map[string]int{}},
		Requests:      RequestStats{Last5Minute: make([]int, 5)},
	}
	if out.Status == "" {
		out.Status = "stopped"
	}

	var extractSum float64
	var extractCount int
	ordered := make([]history.Record, len(records))
	copy(ordered, records)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Timestamp < ordered[j].Timestamp
	})

	for _, rec := range ordered {
		out.Requests.Total++
		if rec.CacheHit {
			out.Requests.CacheHits++
		}
		if rec.Degraded {
			out.Requests.Degraded++
		}
		out.Findings.Entities += rec.EntityCount
		out.Findings.Events += rec.EventCount
		for typ, n := range rec.ByType {
			t := strings.ToUpper(strings.TrimSpace(typ))
			if t == "" {
				continue
			}
			out.Findings.ByType[t] += n
		}

		if !opts.Now.IsZero() && rec.Timestamp != "" {
			if ts, err := time.Parse(time.RFC3339Nano, rec.Timestamp); err == nil {
				delta := now.Sub(ts)
				if delta >= 0 && delta < 5*time.Minute {
					idx := int(delta / time.Minute)
					out.Requests.Last5Minute[4-idx]++
				}
			}
		}

		if rec.ProcessingTimeMs > 0 {
			extractSum += rec.ProcessingTimeMs
			extractCount++
		}
	}

	sum5 := 0
	for _, n := range out.Requests.Last5Minute {
		sum5 += n
	}
	out.Requests.PerMinute = float64(sum5) / 5

	if extractCount > 0 {
		out.Latency.ExtractMs = extractSum / float64(extractCount)
	}

	for typ, n := range out.Findings.ByType {
		out.TopTypes = append(out.TopTypes, TypeStats{Type: typ, Count: n})
	}
	sort.Slice(out.TopTypes, func(i, j int) bool {
		if out.TopTypes[i].Count == out.TopTypes[j].Count {
			return out.TopTypes[i].Type < out.TopTypes[j].Type
		}
		return out.TopTypes[i].Count > out.TopTypes[j].Count
	})
	if len(out.TopTypes) > topN {
		out.TopTypes = out.TopTypes[:topN]
	}

	for i := len(ordered) - 1; i >= 0 && len(out.Recent) < recentN; i-- {
		rec := ordered[i]
		out.Recent = append(out.Recent, RecentRequest{
			Timestamp:  rec.Timestamp,
			TextLength: rec.TextLength,
			Entities:   rec.EntityCount,
			Events:     rec.EventCount,
			ByType:     rec.ByType,
			ExtractMs:  rec.ProcessingTimeMs,
			CacheHit:   rec.CacheHit,
			Degraded:   rec.Degraded,
		})
	}
	return out
}
