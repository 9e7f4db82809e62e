// Package export renders extraction results in the downloadable formats:
// JSON, CSV and a plain-text report.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"newslens/internal/extract"
)

// Format names a supported output encoding.
type Format string

const (
	JSON Format = "json"
	CSV  Format = "csv"
	Text Format = "txt"
)

// ParseFormat accepts the format name case-insensitively.
func ParseFormat(name string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(name))) {
	case JSON, "":
		return JSON, nil
	case CSV:
		return CSV, nil
	case Text:
		return Text, nil
	default:
		return "", fmt.Errorf("unsupported export format %q", name)
	}
}

// ContentType returns the MIME type for HTTP responses.
func (f Format) ContentType() string {
	switch f {
	case CSV:
		return "text/csv"
	case Text:
		return "text/plain; charset=utf-8"
	default:
		return "application/json"
	}
}

// Filename returns the suggested attachment name.
func (f Format) Filename() string {
	switch f {
	case CSV:
		return "extraction_results.csv"
	case Text:
		return "extraction_report.txt"
	default:
		return "extraction_results.json"
	}
}

// Write renders r in the given format.
func Write(w io.Writer, r *extract.Result, f Format) error {
	switch f {
	case CSV:
		return writeCSV(w, r)
	case Text:
		return writeText(w, r)
	case JSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	default:
		return fmt.Errorf("unsupported export format %q", f)
	}
}

func writeCSV(w io.Writer, r *extract.Result) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"Type", "Text", "Start", "End", "Confidence", "Context"}); err != nil {
		return err
	}
	row := func(typ, text string, start, end int, conf float64, ctx string) error {
		return cw.Write([]string{
			typ, text,
			strconv.Itoa(start), strconv.Itoa(end),
			strconv.FormatFloat(conf, 'f', -1, 64),
			ctx,
		})
	}
	for _, e := range r.Entities {
		if err := row(string(e.Type), e.Text, e.Start, e.End, e.Confidence, e.Context); err != nil {
			return err
		}
	}
	for _, ev := range r.Events {
		if err := row(string(ev.Type), ev.Text, ev.Start, ev.End, ev.Confidence, ev.Context); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func writeText(w io.Writer, r *extract.Result) error {
	var b strings.Builder
	rule := strings.Repeat("=", 50)
	b.WriteString("Named Entity and Event Extraction Report\n")
	b.WriteString(rule + "\n\n")

	fmt.Fprintf(&b, "Processing Time: %.3f ms\n", r.Metadata.ProcessingTimeMs)
	fmt.Fprintf(&b, "Text Length: %d characters\n\n", r.Metadata.TextLength)
	if r.Metadata.Degraded {
		fmt.Fprintf(&b, "Note: statistical recognizer unavailable (%s)\n\n", r.Metadata.DegradedReason)
	}

	fmt.Fprintf(&b, "Total Entities: %d\n", r.Statistics.TotalEntities)
	fmt.Fprintf(&b, "Total Events: %d\n\n", r.Statistics.TotalEvents)

	b.WriteString("Breakdown by Type:\n")
	types := make([]string, 0, len(r.Statistics.ByType))
	for t := range r.Statistics.ByType {
		types = append(types, t)
	}
	sort.Strings(types)
	for _, t := range types {
		fmt.Fprintf(&b, "  %s: %d\n", t, r.Statistics.ByType[t])
	}

	b.WriteString("\n" + rule + "\n")
	b.WriteString("Detailed Entities:\n\n")
	for _, e := range r.Entities {
		fmt.Fprintf(&b, "[%s] %s (Confidence: %.2f)\n", e.Type, e.Text, e.Confidence)
		fmt.Fprintf(&b, "  Position: %d-%d\n", e.Start, e.End)
		fmt.Fprintf(&b, "  Context: %s\n\n", e.Context)
	}

	b.WriteString("Detailed Events:\n\n")
	for _, ev := range r.Events {
		fmt.Fprintf(&b, "[%s] %s (Confidence: %.2f)\n", ev.Type, ev.Text, ev.Confidence)
		fmt.Fprintf(&b, "  Position: %d-%d\n", ev.Start, ev.End)
		fmt.Fprintf(&b, "  Context: %s\n", ev.Context)
		for _, attr := range ev.Attributes {
			fmt.Fprintf(&b, "  %s: %s\n", titleCase(attr.Key), attr.Value)
		}
		b.WriteString("\n")
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// titleCase capitalizes the first letter of each underscore-separated word:
// "event_type" becomes "Event Type".
func titleCase(key string) string {
	parts := strings.Split(key, "_")
	for i, p := range parts {
		if p == "" {
			continue
		}
		parts[i] = strings.ToUpper(p[:1]) + p[1:]
	}
	return strings.Join(parts, " ")
}
