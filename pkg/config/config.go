// Package config provides configuration loading and validation for faresearch.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Load loads configuration from a YAML file and environment variables.
func Load(path string) (*Config, error) {
	cleanPath := filepath.Clean(path)
	absPath, err := filepath.Abs(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("invalid config path: %w", err)
	}

	data, err := os.ReadFile(absPath) // #nosec G304 -- Path sanitized with filepath.Clean and filepath.Abs
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Expand environment variables in YAML
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	applyDefaults(&cfg)

	return &cfg, nil
}

// applyDefaults sets default values for optional fields.
func applyDefaults(cfg *Config) {
	// Server defaults
	if cfg.Server.HTTP.Addr == "" {
		cfg.Server.HTTP.Addr = ":8080"
	}
	if cfg.Server.CacheTTL.ToDuration() == 0 {
		cfg.Server.CacheTTL = Duration(60 * 1e9) // 60 seconds
	}
	if cfg.Server.Currency == "" {
		cfg.Server.Currency = "USD"
	}
	if cfg.Server.SourceCap == 0 {
		cfg.Server.SourceCap = 15
	}
	if cfg.Server.UnpricedPolicy == "" {
		cfg.Server.UnpricedPolicy = "last"
	}
	if cfg.Server.SearchTimeout.ToDuration() == 0 {
		cfg.Server.SearchTimeout = Duration(10 * 1e9) // 10 seconds
	}

	// Rates defaults
	if cfg.Rates.CacheTTL.ToDuration() == 0 {
		cfg.Rates.CacheTTL = Duration(10 * 60 * 1e9) // 10 minutes
	}
	if cfg.Rates.Timeout.ToDuration() == 0 {
		cfg.Rates.Timeout = Duration(5 * 1e9) // 5 seconds
	}

	// Provider defaults
	for i := range cfg.Providers {
		if cfg.Providers[i].Timeout.ToDuration() == 0 {
			cfg.Providers[i].Timeout = Duration(8 * 1e9) // 8 seconds
		}
	}

	// Metrics defaults
	if cfg.Metrics.Enabled && cfg.Metrics.Addr == "" {
		cfg.Metrics.Addr = ":9091"
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}

	// Logging defaults
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stdout"
	}
}
