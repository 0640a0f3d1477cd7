package config

import (
	"errors"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config holds all application configuration
type Config struct {
	// Database configuration. No default: the process must not proceed
	// without an explicit storage location.
	DatabasePath string `koanf:"database_path"`

	// Batch scheduling
	BatchSize    int `koanf:"batch_size"`
	StaleDays    int `koanf:"stale_days"`
	DelaySeconds int `koanf:"delay_seconds"`

	// Federation source
	FFABaseURL string `koanf:"ffa_base_url"`

	// World Athletics source
	WAEndpoint       string  `koanf:"wa_endpoint"`
	WAAPIKey         string  `koanf:"wa_api_key"`
	WAConcurrency    int     `koanf:"wa_concurrency"`
	WARequestsPerSec float64 `koanf:"wa_requests_per_sec"`

	// Bounded year-scan range used when a source cannot report which
	// years exist. YearMax of 0 means the current year.
	YearMin int `koanf:"year_min"`
	YearMax int `koanf:"year_max"`

	// Per-request fetch timeout in seconds
	FetchTimeoutSeconds int `koanf:"fetch_timeout_seconds"`

	// Metrics
	MetricsEnabled bool   `koanf:"metrics_enabled"`
	MetricsHost    string `koanf:"metrics_host"`
	MetricsPort    int    `koanf:"metrics_port"`

	// Logging configuration
	LogLevel string `koanf:"log_level"`
}

// Default returns the built-in defaults, before any file or env layering
func Default() *Config {
	return &Config{
		BatchSize:           10,
		StaleDays:           7,
		DelaySeconds:        600,
		FFABaseURL:          "https://bases.athle.fr",
		WAEndpoint:          "https://graphql-prod-4765.prod.aws.worldathletics.org/graphql",
		WAConcurrency:       10,
		WARequestsPerSec:    5,
		YearMin:             1960,
		FetchTimeoutSeconds: 30,
		MetricsEnabled:      false,
		MetricsHost:         "localhost",
		MetricsPort:         4201,
		LogLevel:            "info",
	}
}

// Load builds a Config by layering defaults, an optional YAML file, and
// environment variables.
// Order of precedence (low -> high):
//  1. defaults (Default())
//  2. file (YAML) if ATHLE_CONFIG is set
//  3. env (prefix ATHLE_)
func Load() (*Config, error) {
	k := koanf.New(".")

	if path := os.Getenv("ATHLE_CONFIG"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, err
		}
	}

	// Environment variables: ATHLE_DATABASE_PATH, ATHLE_BATCH_SIZE, ...
	// Map env keys like ATHLE_BATCH_SIZE -> batch_size (flat keys).
	// Preserve underscores to match koanf tags on the struct.
	envProvider := env.Provider("ATHLE_", ".", func(s string) string {
		s = strings.ToLower(s)
		s = strings.TrimPrefix(s, "athle_")
		return s
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, err
	}

	cfg := *Default()
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, err
	}

	if cfg.DatabasePath == "" {
		return nil, errors.New("database_path must not be empty (set ATHLE_DATABASE_PATH)")
	}
	if cfg.WAAPIKey == "" {
		return nil, errors.New("wa_api_key must not be empty (set ATHLE_WA_API_KEY)")
	}
	return &cfg, nil
}

// StaleAfter returns the staleness threshold as a duration
func (c *Config) StaleAfter() time.Duration {
	return time.Duration(c.StaleDays) * 24 * time.Hour
}

// Delay returns the inter-batch delay as a duration
func (c *Config) Delay() time.Duration {
	return time.Duration(c.DelaySeconds) * time.Second
}

// FetchTimeout returns the per-request timeout as a duration
func (c *Config) FetchTimeout() time.Duration {
	return time.Duration(c.FetchTimeoutSeconds) * time.Second
}
