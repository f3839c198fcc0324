// Package config defines the session-level configuration loaded once at the
// composition root (cmd/matchd). It is read from a YAML file with
// MATCHCORE_*-prefixed environment variable overrides, using a viper-based
// loader pattern.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/quorumhft/matchcore/quant"
)

// Config is the top-level session configuration. Maps directly onto the
// YAML file structure.
type Config struct {
	SessionSeed   uint64                 `mapstructure:"session_seed"`
	StrictJournal bool                   `mapstructure:"strict_journal"`
	Journal       JournalConfig          `mapstructure:"journal"`
	Logging       LoggingConfig          `mapstructure:"logging"`
	Metrics       MetricsConfig          `mapstructure:"metrics"`
	Slippage      SlippageConfig         `mapstructure:"slippage"`
	Venues        map[string]VenueConfig `mapstructure:"venues"`
}

// JournalConfig controls where and how the journal writer persists events.
type JournalConfig struct {
	Directory   string `mapstructure:"directory"`
	Compression bool   `mapstructure:"compression"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// MetricsConfig controls the prometheus HTTP exposition endpoint.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
}

// SlippageConfig is quant.SlippageCoefficients's wire form (§4.6).
type SlippageConfig struct {
	TemporaryImpact float64 `mapstructure:"temporary_impact"`
	PermanentImpact float64 `mapstructure:"permanent_impact"`
	SpreadBps       float64 `mapstructure:"spread_bps"`
}

// Coefficients converts the config's wire form to quant.SlippageCoefficients.
func (s SlippageConfig) Coefficients() quant.SlippageCoefficients {
	return quant.SlippageCoefficients{
		TemporaryImpact: s.TemporaryImpact,
		PermanentImpact: s.PermanentImpact,
		SpreadBps:       s.SpreadBps,
	}
}

// VenueConfig is quant.VenueLatency's wire form, keyed by venue name in
// Config.Venues (§4.6's per-venue latency table).
type VenueConfig struct {
	MedianMicros float64 `mapstructure:"median_micros"`
	Sigma        float64 `mapstructure:"sigma"`
}

// Latency converts the config's wire form to quant.VenueLatency.
func (v VenueConfig) Latency() quant.VenueLatency {
	return quant.VenueLatency{MedianMicros: v.MedianMicros, Sigma: v.Sigma}
}

// Load reads config from a YAML file at path, with MATCHCORE_* environment
// variable overrides (e.g. MATCHCORE_SESSION_SEED, MATCHCORE_STRICT_JOURNAL).
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("MATCHCORE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("journal.directory", ".")
	v.SetDefault("journal.compression", false)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.addr", ":9090")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &cfg, nil
}

// Validate checks required fields and value ranges.
func (c *Config) Validate() error {
	if c.Journal.Directory == "" {
		return fmt.Errorf("journal.directory is required")
	}
	if c.Slippage.SpreadBps < 0 {
		return fmt.Errorf("slippage.spread_bps must be >= 0")
	}
	for name, venue := range c.Venues {
		if venue.MedianMicros <= 0 {
			return fmt.Errorf("venues.%s.median_micros must be > 0", name)
		}
		if venue.Sigma <= 0 {
			return fmt.Errorf("venues.%s.sigma must be > 0", name)
		}
	}
	return nil
}
