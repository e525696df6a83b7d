package config

import "time"

// Config is the root configuration structure
type Config struct {
	Server    ServerConfig     `yaml:"server"`
	Rates     RatesConfig      `yaml:"rates"`
	Providers []ProviderConfig `yaml:"providers"`
	Metrics   MetricsConfig    `yaml:"metrics"`
	Logging   LoggingConfig    `yaml:"logging"`
}

// ServerConfig configures the search server component
type ServerConfig struct {
	HTTP           HTTPConfig `yaml:"http"`
	WebSocket      WSConfig   `yaml:"websocket"`
	CacheTTL       Duration   `yaml:"cache_ttl"`
	Currency       string     `yaml:"currency"`        // canonical display currency
	SourceCap      int        `yaml:"source_cap"`      // max results per provider in a merged list
	UnpricedPolicy string     `yaml:"unpriced_policy"` // "last" or "exclude"
	SearchTimeout  Duration   `yaml:"search_timeout"`  // provider fan-out deadline
}

// HTTPConfig configures the HTTP server
type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

// WSConfig configures the WebSocket server
type WSConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// RatesConfig configures exchange-rate lookups
type RatesConfig struct {
	CacheTTL Duration `yaml:"cache_ttl"` // freshness window for cached pairs
	Timeout  Duration `yaml:"timeout"`   // per-lookup HTTP timeout
	APIKey   string   `yaml:"api_key"`   // key for the primary (paid) endpoint
	BaseURL  string   `yaml:"base_url"`  // override for the primary endpoint
	Fallback string   `yaml:"fallback"`  // override for the fallback endpoint
}

// ProviderConfig configures an inventory provider
type ProviderConfig struct {
	Name    string   `yaml:"name"`
	URL     string   `yaml:"url"`
	Enabled bool     `yaml:"enabled"`
	Timeout Duration `yaml:"timeout"`
}

// MetricsConfig configures Prometheus metrics
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
	Path    string `yaml:"path"`
}

// LoggingConfig configures logging
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Duration is a wrapper around time.Duration for YAML parsing
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler
func (d *Duration) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	td, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(td)
	return nil
}

// ToDuration converts Duration to time.Duration
func (d Duration) ToDuration() time.Duration {
	return time.Duration(d)
}
