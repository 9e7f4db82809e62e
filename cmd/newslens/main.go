package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"newslens/internal/config"
	"newslens/internal/detect"
	"newslens/internal/rules"
)

func main() {
	flag.Parse()
	if flag.NArg() < 1 {
		usage()
		os.Exit(1)
	}

	cmd := flag.Arg(0)
	var err error
	switch cmd {
	case "serve":
		err = serveCommand(flag.Args()[1:])
	case "extract":
		err = extractCommand(flag.Args()[1:])
	case "model":
		err = modelCommand(flag.Args()[1:])
	case "stats":
		err = statsCommand(flag.Args()[1:])
	default:
		usage()
		os.Exit(1)
	}

	if err != nil {
		log.Fatalf("newslens %s failed: %v", cmd, err)
	}
}

func usage() {
	fmt.Println("Usage: newslens [serve|extract|model|stats]")
	fmt.Println()
	fmt.Println("  serve    run the extraction HTTP service")
	fmt.Println("  extract  extract entities and events from a file or stdin")
	fmt.Println("  model    manage NER models (list|download|info|remove|verify)")
	fmt.Println("  stats    show service statistics")
}

func loadConfig() (config.Config, error) {
	cfgPath, err := config.ConfigPath()
	if err != nil {
		return config.Config{}, err
	}
	if err := config.EnsureConfigDir(cfgPath); err != nil {
		return config.Config{}, err
	}
	return config.Load(cfgPath)
}

func loadRules(cfg config.Config) (*rules.Ruleset, error) {
	if cfg.RulesPath == "" {
		return rules.Default(), nil
	}
	return rules.Load(cfg.RulesPath)
}

// buildRecognizer assembles the statistical layer: the ONNX recognizer
// behind a circuit breaker so repeated failures stop hitting the model.
func buildRecognizer(cfg config.Config) detect.Recognizer {
	onnx := detect.NewONNXRecognizer(detect.ONNXConfig{
		ModelDir: cfg.ModelDir,
		MinScore: cfg.MinScore,
	})
	return detect.NewBreakerRecognizer(onnx, detect.BreakerConfig{})
}
