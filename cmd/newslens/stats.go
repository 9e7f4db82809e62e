package main

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"newslens/internal/history"
	"newslens/internal/stats"
)

var renderStatsTextFunc = renderStatsText

func statsCommand(args []string) error {
	fs := flag.NewFlagSet("stats", flag.ContinueOnError)
	watch := fs.Bool("watch", false, "watch stats")
	recent := fs.Bool("recent", false, "show recent extractions")
	export := fs.String("export", "", "export format: json|csv")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *watch {
		return watchStats(*recent, *export)
	}
	return renderStats(*recent, *export)
}

func watchStats(recent bool, export string) error {
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	if export == "" && isTerminal() {
		hideCursor()
		defer showCursor()
	}
	return watchStatsLoop(recent, export, ticker.C, sigCh)
}

func watchStatsLoop(recent bool, export string, ticks <-chan time.Time, stop <-chan os.Signal) error {
	for {
		out, err := renderStatsTextFunc(recent, export)
		if err != nil {
			return err
		}
		if export == "" && isTerminal() {
			clearScreen()
		}
		fmt.Fprint(os.Stdout, out)
		select {
		case <-ticks:
		case <-stop:
			return nil
		}
	}
}

func renderStatsText(recent bool, export string) (string, error) {
	var buf strings.Builder
	if err := renderStatsTo(&buf, recent, export); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func renderStats(recent bool, export string) error {
	return renderStatsTo(os.Stdout, recent, export)
}

func renderStatsTo(w io.Writer, recent bool, export string) error {
	st, err := getStats()
	if err != nil {
		return err
	}
	switch strings.ToLower(export) {
	case "":
		if recent {
			printRecent(w, st)
			return nil
		}
		printSummary(w, st)
		return nil
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(st)
	case "csv":
		if !recent {
			return fmt.Errorf("csv export requires --recent")
		}
		return exportRecentCSV(w, st.Recent)
	default:
		return fmt.Errorf("unsupported export format %q", export)
	}
}

func clearScreen() {
	fmt.Fprint(os.Stdout, "\033[H\033[2J\033[3J")
}

func hideCursor() {
	fmt.Fprint(os.Stdout, "\033[?25l")
}

func showCursor() {
	fmt.Fprint(os.Stdout, "\033[?25h")
}

func isTerminal() bool {
	info, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}

// getStats prefers the running service; when unreachable it reads the
// history database directly.
func getStats() (stats.Stats, error) {
	cfg, err := loadConfig()
	if err != nil {
		return stats.Stats{}, err
	}

	if st, err := fetchServiceStats(cfg.Port); err == nil {
		return st, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	store, err := history.Open(ctx, cfg.HistoryPath)
	if err != nil {
		return stats.Stats{}, err
	}
	defer store.Close()
	records, err := store.Recent(ctx, 1000)
	if err != nil {
		return stats.Stats{}, err
	}
	return stats.Collect(records, stats.Options{Now: time.Now().UTC(), Status: "stopped", Port: cfg.Port}), nil
}

func fetchServiceStats(port int) (stats.Stats, error) {
	client := &http.Client{Timeout: 700 * time.Millisecond}
	resp, err := client.Get(fmt.Sprintf("http://127.0.0.1:%d/api/stats", port))
	if err != nil {
		return stats.Stats{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return stats.Stats{}, fmt.Errorf("stats API status %d", resp.StatusCode)
	}
	var st stats.Stats
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		return stats.Stats{}, err
	}
	return st, nil
}

func printSummary(w io.Writer, st stats.Stats) {
	fmt.Fprintln(w, "NewsLens Statistics")
	fmt.Fprintln(w, strings.Repeat("-", 40))
	fmt.Fprintf(w, "Status:      %s\n", st.Status)
	fmt.Fprintf(w, "Uptime:      %s\n", time.Duration(st.UptimeSeconds)*time.Second)
	fmt.Fprintf(w, "Port:        %d\n", st.Port)
	fmt.Fprintf(w, "Requests:    %d (%.1f/min last 5m, %d cache hits, %d degraded)\n",
		st.Requests.Total, st.Requests.PerMinute, st.Requests.CacheHits, st.Requests.Degraded)
	fmt.Fprintf(w, "Latency avg: extract %.1fms\n", st.Latency.ExtractMs)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Findings")
	fmt.Fprintln(w, strings.Repeat("-", 40))
	types := make([]string, 0, len(st.Findings.ByType))
	for k := range st.Findings.ByType {
		types = append(types, k)
	}
	sort.Strings(types)
	total := st.Findings.Entities + st.Findings.Events
	for _, t := range types {
		v := st.Findings.ByType[t]
		fmt.Fprintf(w, "%-16s %5d %s\n", t+":", v, progress(v, total))
	}
	fmt.Fprintf(w, "Entities:    %d\n", st.Findings.Entities)
	fmt.Fprintf(w, "Events:      %d\n", st.Findings.Events)
}

func printRecent(w io.Writer, st stats.Stats) {
	fmt.Fprintln(w, "Recent Extractions (last 20)")
	fmt.Fprintln(w, strings.Repeat("-", 80))
	fmt.Fprintf(w, "%-10s %-8s %-9s %-7s %-9s %-8s\n", "TIME", "LENGTH", "ENTITIES", "EVENTS", "LATENCY", "FLAGS")
	fmt.Fprintln(w, strings.Repeat("-", 80))
	for _, r := range st.Recent {
		tm := r.Timestamp
		if ts, err := time.Parse(time.RFC3339Nano, r.Timestamp); err == nil {
			tm = ts.Format("15:04:05")
		}
		fmt.Fprintf(w, "%-10s %-8d %-9d %-7d %-7.1fms %-8s\n", tm, r.TextLength, r.Entities, r.Events, r.ExtractMs, flagLabel(r))
	}
	fmt.Fprintln(w, strings.Repeat("-", 80))
	fmt.Fprintf(w, "Showing %d of %d total requests\n", len(st.Recent), st.Requests.Total)
}

func flagLabel(r stats.RecentRequest) string {
	var parts []string
	if r.CacheHit {
		parts = append(parts, "cached")
	}
	if r.Degraded {
		parts = append(parts, "degraded")
	}
	if len(parts) == 0 {
		return "-"
	}
	return strings.Join(parts, ",")
}

func progress(v, total int) string {
	if total <= 0 {
		return ""
	}
	p := int(float64(v) / float64(total) * 20)
	if p > 20 {
		p = 20
	}
	return strings.Repeat("█", p) + strings.Repeat("░", 20-p)
}

func exportRecentCSV(w io.Writer, rows []stats.RecentRequest) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()
	if err := cw.Write([]string{"timestamp", "text_length", "entities", "events", "latency_ms", "cache_hit", "degraded"}); err != nil {
		return err
	}
	for _, r := range rows {
		if err := cw.Write([]string{
			r.Timestamp,
			fmt.Sprintf("%d", r.TextLength),
			fmt.Sprintf("%d", r.Entities),
			fmt.Sprintf("%d", r.Events),
			fmt.Sprintf("%.3f", r.ExtractMs),
			fmt.Sprintf("%t", r.CacheHit),
			fmt.Sprintf("%t", r.Degraded),
		}); err != nil {
			return err
		}
	}
	return cw.Error()
}
