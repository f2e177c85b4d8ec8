package config

import (
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load merges a TOML file at path (optional: pass "" to skip) on top of the
// built-in defaults and then applies PRIZEPOOL_* environment variable
// overrides. The caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, err
		}
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known PRIZEPOOL_* environment variables and
// overwrites the corresponding Config fields when a variable is set. This
// lets operators inject secrets at deploy time without touching the TOML
// file.
func applyEnvOverrides(cfg *Config) {
	setInt(&cfg.Server.Port, "PRIZEPOOL_SERVER_PORT")

	setStr(&cfg.Database.URL, "PRIZEPOOL_DATABASE_URL")

	setStr(&cfg.Redis.Addr, "PRIZEPOOL_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "PRIZEPOOL_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "PRIZEPOOL_REDIS_DB")
	setDuration(&cfg.Redis.CacheTTL, "PRIZEPOOL_REDIS_CACHE_TTL")

	setDuration(&cfg.Market.MinLead, "PRIZEPOOL_MARKET_MIN_LEAD")
	setDuration(&cfg.Market.DisputeWindow, "PRIZEPOOL_MARKET_DISPUTE_WINDOW")
	setStr(&cfg.Market.MinDisputeBond, "PRIZEPOOL_MARKET_MIN_DISPUTE_BOND")
	setFloat64(&cfg.Market.DisputeBonusRate, "PRIZEPOOL_MARKET_DISPUTE_BONUS_RATE")

	setStr(&cfg.LogLevel, "PRIZEPOOL_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}
