// Package config loads service configuration from defaults layered with
// environment variables.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"github.com/couchcryptid/quake-stream/internal/domain"
)

// SourceConfig describes one FDSN event endpoint.
type SourceConfig struct {
	BaseURL          string  `koanf:"base_url"`
	TimeoutSeconds   int     `koanf:"timeout_seconds"`
	MaxRetries       int     `koanf:"max_retries"`
	RetryBackoffBase float64 `koanf:"retry_backoff_base"`

	// ReviewedCatalogs is a comma-separated list of catalog names whose
	// events count as reviewed in pipe-delimited FDSN text feeds.
	ReviewedCatalogs string `koanf:"reviewed_catalogs"`
}

// Timeout returns the per-request HTTP timeout.
func (s SourceConfig) Timeout() time.Duration {
	return time.Duration(s.TimeoutSeconds) * time.Second
}

// ReviewedCatalogList splits ReviewedCatalogs into trimmed names.
func (s SourceConfig) ReviewedCatalogList() []string {
	return splitList(s.ReviewedCatalogs)
}

// Config holds all service settings. SOURCE_NAME selects the role: set, the
// process is the ingester for that source; empty, it is the dedup service.
type Config struct {
	HTTPAddr        string        `koanf:"http_addr"`
	LogLevel        string        `koanf:"log_level"`
	LogFormat       string        `koanf:"log_format"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`

	DatabaseURL string `koanf:"database_url"`

	SourceName string       `koanf:"source_name"`
	Source     SourceConfig `koanf:"source"`

	LookbackHours int    `koanf:"lookback_hours"`
	DedupStrategy string `koanf:"dedup_strategy"`

	KafkaEnabled bool   `koanf:"kafka_enabled"`
	KafkaBrokers string `koanf:"kafka_brokers"`
	KafkaTopic   string `koanf:"kafka_topic"`
}

// Brokers splits KafkaBrokers into individual addresses.
func (c *Config) Brokers() []string {
	return splitList(c.KafkaBrokers)
}

// Lookback returns the dedup load window.
func (c *Config) Lookback() time.Duration {
	return time.Duration(c.LookbackHours) * time.Hour
}

// IsIngester reports whether this process ingests a single source.
func (c *Config) IsIngester() bool {
	return c.SourceName != ""
}

// sourceDefaults maps each agency to its public FDSN event endpoint.
var sourceDefaults = map[string]SourceConfig{
	"usgs":   {BaseURL: "https://earthquake.usgs.gov/fdsnws/event/1/query"},
	"emsc":   {BaseURL: "https://www.seismicportal.eu/fdsnws/event/1/query"},
	"gfz":    {BaseURL: "https://geofon.gfz-potsdam.de/fdsnws/event/1/query"},
	"isc":    {BaseURL: "https://www.isc.ac.uk/fdsnws/event/1/query"},
	"ipgp":   {BaseURL: "https://datacenter.ipgp.fr/fdsnws/event/1/query"},
	"geonet": {BaseURL: "https://service.geonet.org.nz/fdsnws/event/1/query"},
}

func defaultConfig() *Config {
	return &Config{
		HTTPAddr:        ":8080",
		LogLevel:        "info",
		LogFormat:       "json",
		ShutdownTimeout: 10 * time.Second,
		DatabaseURL:     "postgres://localhost:5432/quake_stream?sslmode=disable",
		LookbackHours:   6,
		DedupStrategy:   "spatial",
		KafkaEnabled:    false,
		KafkaBrokers:    "localhost:9092",
		KafkaTopic:      "unified-events",
		Source: SourceConfig{
			TimeoutSeconds:   30,
			MaxRetries:       3,
			RetryBackoffBase: 2.0,
		},
	}
}

// Load builds the configuration: struct defaults, then per-source endpoint
// defaults keyed by SOURCE_NAME, then environment variable overrides.
// SOURCE__BASE_URL maps to source.base_url; flat names map verbatim.
func Load() (*Config, error) {
	k := koanf.New(".")

	defaults := defaultConfig()
	if name := strings.ToLower(strings.TrimSpace(os.Getenv("SOURCE_NAME"))); name != "" {
		if sd, ok := sourceDefaults[name]; ok {
			defaults.Source.BaseURL = sd.BaseURL
		}
	}
	if err := k.Load(structs.Provider(defaults, "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if err := k.Load(env.Provider("", ".", envTransform), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.SourceName = strings.ToLower(strings.TrimSpace(cfg.SourceName))

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.SourceName != "" {
		if !domain.Source(c.SourceName).Valid() {
			return fmt.Errorf("unknown source: %q", c.SourceName)
		}
		if c.Source.BaseURL == "" {
			return fmt.Errorf("source %s: base_url is required", c.SourceName)
		}
		if c.Source.MaxRetries < 0 {
			return fmt.Errorf("source %s: max_retries must be >= 0", c.SourceName)
		}
	}
	switch c.DedupStrategy {
	case "spatial", "greedy":
	default:
		return fmt.Errorf("dedup_strategy must be spatial or greedy, got %q", c.DedupStrategy)
	}
	if c.LookbackHours <= 0 {
		return fmt.Errorf("lookback_hours must be positive, got %d", c.LookbackHours)
	}
	if c.KafkaEnabled && c.KafkaBrokers == "" {
		return fmt.Errorf("kafka_brokers is required when kafka is enabled")
	}
	return nil
}

// envTransform maps environment variable names to config paths:
// DATABASE_URL -> database_url, SOURCE__BASE_URL -> source.base_url.
func envTransform(key string) string {
	return strings.ReplaceAll(strings.ToLower(key), "__", ".")
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
