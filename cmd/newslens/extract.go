package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"newslens/internal/export"
	"newslens/internal/extract"
	"newslens/internal/rules"
)

func extractCommand(args []string) error {
	fs := flag.NewFlagSet("extract", flag.ContinueOnError)
	file := fs.String("file", "", "input file (defaults to stdin)")
	typesFlag := fs.String("types", "", "comma-separated entity types (defaults to all)")
	events := fs.Bool("events", true, "extract events")
	minConf := fs.Float64("min-confidence", 0, "drop findings below this confidence")
	format := fs.String("format", "json", "output format: json|csv|txt")
	timeout := fs.Duration("timeout", 30*time.Second, "extraction timeout")
	if err := fs.Parse(args); err != nil {
		return err
	}

	outFormat, err := export.ParseFormat(*format)
	if err != nil {
		return err
	}

	text, err := readInput(*file)
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	rs, err := loadRules(cfg)
	if err != nil {
		return err
	}

	types, err := parseTypes(*typesFlag, rs)
	if err != nil {
		return err
	}

	x := extract.New(extract.Config{
		Rules:         rs,
		Recognizer:    buildRecognizer(cfg),
		ContextWindow: cfg.ContextWindow,
	})

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()
	result, err := x.Extract(ctx, text, types, *events)
	if err != nil {
		return err
	}
	if *minConf > 0 {
		result = x.Filter(result, *minConf)
	}
	if result.Metadata.Degraded {
		fmt.Fprintf(os.Stderr, "warning: statistical recognizer unavailable (%s); rule-backed types only\n", result.Metadata.DegradedReason)
	}
	return export.Write(os.Stdout, result, outFormat)
}

func readInput(file string) (string, error) {
	if file == "" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		return string(data), nil
	}
	data, err := os.ReadFile(file)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func parseTypes(flagValue string, rs *rules.Ruleset) (extract.TypeSet, error) {
	var names []string
	if strings.TrimSpace(flagValue) == "" {
		for _, ti := range rs.EntityTypes {
			names = append(names, ti.Name)
		}
	} else {
		for _, name := range strings.Split(flagValue, ",") {
			names = append(names, strings.ToUpper(strings.TrimSpace(name)))
		}
	}
	return extract.ParseEntityTypes(names, rs)
}
