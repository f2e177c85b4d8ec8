package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultsValidate(t *testing.T) {
	cfg := Defaults()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Fatalf("port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Market.DisputeWindow.Duration != 24*time.Hour {
		t.Fatalf("dispute window = %s", cfg.Market.DisputeWindow.Duration)
	}
	if got := cfg.MinDisputeBondDecimal(); got.String() != "10" {
		t.Fatalf("min bond = %s, want 10", got)
	}
}

func TestLoadTOMLOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	data := `
log_level = "debug"

[server]
port = 9090

[market]
min_lead = "30m"
dispute_window = "48h"
min_dispute_bond = "25"
dispute_bonus_rate = 0.25
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if cfg.Server.Port != 9090 {
		t.Fatalf("port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Market.MinLead.Duration != 30*time.Minute {
		t.Fatalf("min lead = %s", cfg.Market.MinLead.Duration)
	}
	if cfg.Market.DisputeWindow.Duration != 48*time.Hour {
		t.Fatalf("dispute window = %s", cfg.Market.DisputeWindow.Duration)
	}
	if got := cfg.MinDisputeBondDecimal(); got.String() != "25" {
		t.Fatalf("min bond = %s, want 25", got)
	}
	if cfg.Market.DisputeBonusRate != 0.25 {
		t.Fatalf("bonus rate = %v", cfg.Market.DisputeBonusRate)
	}
	// Untouched sections keep their defaults.
	if cfg.Redis.CacheTTL.Duration != 30*time.Second {
		t.Fatalf("cache ttl = %s", cfg.Redis.CacheTTL.Duration)
	}
}

func TestEnvOverridesBeatTOML(t *testing.T) {
	t.Setenv("PRIZEPOOL_SERVER_PORT", "7070")
	t.Setenv("PRIZEPOOL_DATABASE_URL", "postgres://env-host/prizepool")
	t.Setenv("PRIZEPOOL_MARKET_DISPUTE_WINDOW", "12h")
	t.Setenv("PRIZEPOOL_MARKET_DISPUTE_BONUS_RATE", "0.75")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 7070 {
		t.Fatalf("port = %d, want 7070", cfg.Server.Port)
	}
	if cfg.Database.URL != "postgres://env-host/prizepool" {
		t.Fatalf("database url = %s", cfg.Database.URL)
	}
	if cfg.Market.DisputeWindow.Duration != 12*time.Hour {
		t.Fatalf("dispute window = %s", cfg.Market.DisputeWindow.Duration)
	}
	if cfg.Market.DisputeBonusRate != 0.75 {
		t.Fatalf("bonus rate = %v", cfg.Market.DisputeBonusRate)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad port", func(c *Config) { c.Server.Port = 0 }},
		{"zero min lead", func(c *Config) { c.Market.MinLead.Duration = 0 }},
		{"zero dispute window", func(c *Config) { c.Market.DisputeWindow.Duration = 0 }},
		{"unparsable bond", func(c *Config) { c.Market.MinDisputeBond = "not-a-number" }},
		{"bonus rate above one", func(c *Config) { c.Market.DisputeBonusRate = 1.5 }},
		{"negative bonus rate", func(c *Config) { c.Market.DisputeBonusRate = -0.1 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Defaults()
			tc.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestLoadMissingFileFails(t *testing.T) {
	if _, err := Load("/nonexistent/config.toml"); err == nil {
		t.Fatal("expected error for missing config file")
	}
}
