package config

import (
	"fmt"
	"net/url"
	"strings"
)

// Validate checks configuration for errors
func Validate(cfg *Config) error {
	if err := validateServerConfig(&cfg.Server); err != nil {
		return fmt.Errorf("server config: %w", err)
	}

	if err := validateRatesConfig(&cfg.Rates); err != nil {
		return fmt.Errorf("rates config: %w", err)
	}

	enabled := 0
	for i, provider := range cfg.Providers {
		if err := validateProviderConfig(&provider); err != nil {
			return fmt.Errorf("provider %d (%s): %w", i, provider.Name, err)
		}
		if provider.Enabled {
			enabled++
		}
	}
	if enabled == 0 {
		return fmt.Errorf("at least one inventory provider must be enabled")
	}

	if err := validateLoggingConfig(&cfg.Logging); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}

	return nil
}

func validateServerConfig(cfg *ServerConfig) error {
	if cfg.HTTP.Addr == "" {
		return fmt.Errorf("http.addr must be specified")
	}

	if cfg.WebSocket.Enabled && cfg.WebSocket.Addr == "" {
		return fmt.Errorf("websocket.addr must be specified when websocket is enabled")
	}

	currency := strings.ToUpper(cfg.Currency)
	if len(currency) != 3 {
		return fmt.Errorf("invalid currency: %s (must be a 3-letter code)", cfg.Currency)
	}

	if cfg.SourceCap < 1 {
		return fmt.Errorf("source_cap must be at least 1, got %d", cfg.SourceCap)
	}

	policy := strings.ToLower(cfg.UnpricedPolicy)
	if policy != "last" && policy != "exclude" {
		return fmt.Errorf("invalid unpriced_policy: %s (must be 'last' or 'exclude')", cfg.UnpricedPolicy)
	}

	return nil
}

func validateRatesConfig(cfg *RatesConfig) error {
	if cfg.Timeout.ToDuration() <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if cfg.CacheTTL.ToDuration() <= 0 {
		return fmt.Errorf("cache_ttl must be positive")
	}
	if cfg.BaseURL != "" {
		if _, err := url.Parse(cfg.BaseURL); err != nil {
			return fmt.Errorf("invalid base_url: %w", err)
		}
	}
	return nil
}

func validateProviderConfig(cfg *ProviderConfig) error {
	if cfg.Name == "" {
		return fmt.Errorf("name must be specified")
	}
	if cfg.URL == "" {
		return fmt.Errorf("url must be specified")
	}
	u, err := url.Parse(cfg.URL)
	if err != nil {
		return fmt.Errorf("invalid url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("invalid url scheme: %s (must be http or https)", u.Scheme)
	}
	return nil
}

func validateLoggingConfig(cfg *LoggingConfig) error {
	level := strings.ToLower(cfg.Level)
	switch level {
	case "trace", "debug", "info", "warn", "error", "fatal":
	default:
		return fmt.Errorf("invalid level: %s", cfg.Level)
	}

	format := strings.ToLower(cfg.Format)
	if format != "json" && format != "text" {
		return fmt.Errorf("invalid format: %s (must be 'json' or 'text')", cfg.Format)
	}

	return nil
}
