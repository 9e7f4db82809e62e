package main

import (
	"bytes"
	"os"
	"strings"
	"syscall"
	"testing"
	"time"

	"newslens/internal/stats"
)

func TestExportRecentCSV(t *testing.T) {
	rows := []stats.RecentRequest{{
		Timestamp: "2024-03-01T00:00:00Z", TextLength: 640, Entities: 5, Events: 2,
		ExtractMs: 12.3, CacheHit: true,
	}}
	var buf bytes.Buffer
	if err := exportRecentCSV(&buf, rows); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	if !strings.Contains(out, "timestamp,text_length,entities,events") {
		t.Fatalf("missing csv header: %s", out)
	}
	if !strings.Contains(out, "640,5,2,12.300,true,false") {
		t.Fatalf("missing row: %s", out)
	}
}

func TestPrintSummary(t *testing.T) {
	st := stats.Stats{
		Status: "running", Port: 8080,
		Requests: stats.RequestStats{Total: 10, PerMinute: 2, CacheHits: 4},
		Findings: stats.FindingsStats{Entities: 30, Events: 5, ByType: map[string]int{"PERSON": 20, "MEETING": 5}},
		Latency:  stats.LatencyStats{ExtractMs: 3.5},
	}
	var buf bytes.Buffer
	printSummary(&buf, st)
	out := buf.String()
	for _, want := range []string{"Status:      running", "PERSON:", "Entities:    30", "extract 3.5ms"} {
		if !strings.Contains(out, want) {
			t.Fatalf("summary missing %q:\n%s", want, out)
		}
	}
}

func TestWatchStatsLoopCancellation(t *testing.T) {
	old := renderStatsTextFunc
	renderStatsTextFunc = func(bool, string) (string, error) { return "", nil }
	defer func() { renderStatsTextFunc = old }()
	ticks := make(chan time.Time, 1)
	stop := make(chan os.Signal, 1)
	stop <- syscall.SIGTERM
	if err := watchStatsLoop(false, "", ticks, stop); err != nil {
		t.Fatal(err)
	}
}
