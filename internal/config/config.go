// Package config loads the engine and server settings: defaults, then an
// optional YAML file, then environment overrides (a .env file is honored
// when present). Paths starting with ~/ are expanded.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	defaultPort          = 8080
	defaultCacheTTL      = 300
	defaultCacheSize     = 128
	defaultContextWindow = 50
	defaultMinScore      = 0.5
	defaultRateLimit     = 10
	defaultRateBurst     = 20
	defaultHistoryPath   = "~/.newslens/history.db"
	defaultModelDir      = "~/.newslens/models/ner_en"
)

// envPrefix namespaces the override variables: NEWSLENS_PORT and friends.
const envPrefix = "NEWSLENS_"

type Config struct {
	Port int `yaml:"port"`

	// Extraction engine knobs.
	CacheTTLSeconds int     `yaml:"cache_ttl_seconds"`
	CacheSize       int     `yaml:"cache_size"`
	ContextWindow   int     `yaml:"context_window"`
	MinScore        float64 `yaml:"min_score"`

	// RulesPath points at a custom rule file merged over the built-ins.
	RulesPath string `yaml:"rules_path"`

	ModelDir    string `yaml:"model_dir"`
	HistoryPath string `yaml:"history_path"`

	// RateLimit is requests per second per client; RateBurst the bucket.
	RateLimit float64 `yaml:"rate_limit"`
	RateBurst int     `yaml:"rate_burst"`
}

func Default() Config {
	return Config{
		Port:            defaultPort,
		CacheTTLSeconds: defaultCacheTTL,
		CacheSize:       defaultCacheSize,
		ContextWindow:   defaultContextWindow,
		MinScore:        defaultMinScore,
		ModelDir:        defaultModelDir,
		HistoryPath:     defaultHistoryPath,
		RateLimit:       defaultRateLimit,
		RateBurst:       defaultRateBurst,
	}
}

func ConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".newslens", "config.yaml"), nil
}

func EnsureConfigDir(path string) error {
	return os.MkdirAll(filepath.Dir(path), 0o755)
}

// Load reads path, applies environment overrides and normalizes paths. A
// missing file is not an error: defaults plus environment apply.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config: %w", err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	// A .env next to the working directory seeds the environment; real
	// environment variables win over it.
	_ = godotenv.Load()
	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}

	cfg.ModelDir = expandHome(cfg.ModelDir)
	cfg.HistoryPath = expandHome(cfg.HistoryPath)
	cfg.RulesPath = expandHome(cfg.RulesPath)
	fillDefaults(&cfg)
	return cfg, nil
}

func fillDefaults(cfg *Config) {
	def := Default()
	if cfg.Port <= 0 {
		cfg.Port = def.Port
	}
	if cfg.CacheTTLSeconds <= 0 {
		cfg.CacheTTLSeconds = def.CacheTTLSeconds
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = def.CacheSize
	}
	if cfg.ContextWindow <= 0 {
		cfg.ContextWindow = def.ContextWindow
	}
	if cfg.MinScore < 0 || cfg.MinScore > 1 {
		cfg.MinScore = def.MinScore
	}
	if cfg.ModelDir == "" {
		cfg.ModelDir = expandHome(def.ModelDir)
	}
	if cfg.HistoryPath == "" {
		cfg.HistoryPath = expandHome(def.HistoryPath)
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = def.RateLimit
	}
	if cfg.RateBurst <= 0 {
		cfg.RateBurst = def.RateBurst
	}
}

func applyEnv(cfg *Config) error {
	for _, ov := range []struct {
		key   string
		apply func(string) error
	}{
		{"PORT", envInt(&cfg.Port)},
		{"CACHE_TTL_SECONDS", envInt(&cfg.CacheTTLSeconds)},
		{"CACHE_SIZE", envInt(&cfg.CacheSize)},
		{"CONTEXT_WINDOW", envInt(&cfg.ContextWindow)},
		{"MIN_SCORE", envFloat(&cfg.MinScore)},
		{"RULES_PATH", envString(&cfg.RulesPath)},
		{"MODEL_DIR", envString(&cfg.ModelDir)},
		{"HISTORY_PATH", envString(&cfg.HistoryPath)},
		{"RATE_LIMIT", envFloat(&cfg.RateLimit)},
		{"RATE_BURST", envInt(&cfg.RateBurst)},
	} {
		v, ok := os.LookupEnv(envPrefix + ov.key)
		if !ok || strings.TrimSpace(v) == "" {
			continue
		}
		if err := ov.apply(strings.TrimSpace(v)); err != nil {
			return fmt.Errorf("environment %s%s: %w", envPrefix, ov.key, err)
		}
	}
	return nil
}

func envInt(dst *int) func(string) error {
	return func(v string) error {
		n, err := strconv.Atoi(v)
		if err != nil {
			return err
		}
		*dst = n
		return nil
	}
}

func envFloat(dst *float64) func(string) error {
	return func(v string) error {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return err
		}
		*dst = f
		return nil
	}
}

func envString(dst *string) func(string) error {
	return func(v string) error {
		*dst = v
		return nil
	}
}

func expandHome(p string) string {
	if !strings.HasPrefix(p, "~/") {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	return filepath.Join(home, p[2:])
}
