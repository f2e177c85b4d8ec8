// Package config defines the settlement engine's configuration and provides
// validation helpers.
package config

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Config is the root configuration structure. Fields are populated from a
// TOML file and then optionally overridden by PRIZEPOOL_* environment
// variables.
type Config struct {
	Server   ServerConfig `toml:"server"`
	Database DBConfig     `toml:"database"`
	Redis    RedisConfig  `toml:"redis"`
	Market   MarketConfig `toml:"market"`
	LogLevel string       `toml:"log_level"`
}

// ServerConfig holds the HTTP listener parameters.
type ServerConfig struct {
	Port int `toml:"port"`
}

// DBConfig holds PostgreSQL connection parameters. An empty URL selects the
// in-memory store (data will not persist).
type DBConfig struct {
	URL string `toml:"url"`
}

// RedisConfig holds the read-through cache parameters. An empty Addr
// disables caching.
type RedisConfig struct {
	Addr     string   `toml:"addr"`
	Password string   `toml:"password"`
	DB       int      `toml:"db"`
	CacheTTL duration `toml:"cache_ttl"`
}

// MarketConfig holds the settlement tunables. The dispute weighting rule
// reads these; the constants are configuration so they can be adjusted
// without touching the algorithm.
type MarketConfig struct {
	MinLead          duration `toml:"min_lead"`
	DisputeWindow    duration `toml:"dispute_window"`
	MinDisputeBond   string   `toml:"min_dispute_bond"`
	DisputeBonusRate float64  `toml:"dispute_bonus_rate"`
}

// duration wraps time.Duration for TOML text decoding ("24h", "30s", ...).
type duration struct {
	time.Duration
}

func (d *duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		Server: ServerConfig{Port: 8080},
		Redis: RedisConfig{
			CacheTTL: duration{30 * time.Second},
		},
		Market: MarketConfig{
			MinLead:          duration{time.Hour},
			DisputeWindow:    duration{24 * time.Hour},
			MinDisputeBond:   "10",
			DisputeBonusRate: 0.5,
		},
		LogLevel: "info",
	}
}

// Validate checks the configuration for internally inconsistent values.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("config: invalid server port %d", c.Server.Port)
	}
	if c.Market.MinLead.Duration <= 0 {
		return fmt.Errorf("config: min_lead must be positive")
	}
	if c.Market.DisputeWindow.Duration <= 0 {
		return fmt.Errorf("config: dispute_window must be positive")
	}
	bond, err := decimal.NewFromString(c.Market.MinDisputeBond)
	if err != nil || bond.IsNegative() {
		return fmt.Errorf("config: invalid min_dispute_bond %q", c.Market.MinDisputeBond)
	}
	if c.Market.DisputeBonusRate < 0 || c.Market.DisputeBonusRate > 1 {
		return fmt.Errorf("config: dispute_bonus_rate %v outside [0,1]", c.Market.DisputeBonusRate)
	}
	return nil
}

// MinDisputeBondDecimal returns the parsed minimum bond. Call Validate first.
func (c *Config) MinDisputeBondDecimal() decimal.Decimal {
	bond, _ := decimal.NewFromString(c.Market.MinDisputeBond)
	return bond
}
