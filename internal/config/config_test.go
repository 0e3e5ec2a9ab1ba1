package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/quantblocks/quantblocks/internal/core"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDefaults(t *testing.T) {
	cfg := Defaults()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("default port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Data.Provider != "yahoo" {
		t.Errorf("default provider = %s, want yahoo", cfg.Data.Provider)
	}
	if cfg.Forward.ErrorBackoff != 60*time.Second {
		t.Errorf("default backoff = %v, want 60s", cfg.Forward.ErrorBackoff)
	}
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9090
  api_key: sekrit
data:
  provider: binance
backtest:
  initial_capital: 50000
forward:
  window_size: 200
notifiers:
  webhook:
    enabled: true
    url: http://example.com/hook
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.Port != 9090 || cfg.Server.APIKey != "sekrit" {
		t.Errorf("server not loaded: %+v", cfg.Server)
	}
	if cfg.Data.Provider != "binance" {
		t.Errorf("provider = %s, want binance", cfg.Data.Provider)
	}
	if cfg.Backtest.InitialCapital != 50000 {
		t.Errorf("initial_capital = %v, want 50000", cfg.Backtest.InitialCapital)
	}
	if cfg.Forward.WindowSize != 200 {
		t.Errorf("window_size = %d, want 200", cfg.Forward.WindowSize)
	}
	// Unspecified values keep defaults.
	if cfg.Server.MaxJobs != 100 {
		t.Errorf("max_jobs = %d, want default 100", cfg.Server.MaxJobs)
	}
	if !cfg.Notifiers["webhook"].Enabled {
		t.Error("webhook notifier not loaded")
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("loaded config invalid: %v", err)
	}
}

func TestLoad_EnvExpansion(t *testing.T) {
	t.Setenv("QB_TEST_API_KEY", "from-env")
	path := writeConfig(t, `
server:
  api_key: ${QB_TEST_API_KEY}
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Server.APIKey != "from-env" {
		t.Errorf("api_key = %s, want from-env", cfg.Server.APIKey)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/config.yaml")
	if !errors.Is(err, core.ErrConfigInvalid) {
		t.Fatalf("expected ErrConfigInvalid, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad port", func(c *Config) { c.Server.Port = 0 }},
		{"bad provider", func(c *Config) { c.Data.Provider = "bloomberg" }},
		{"bad capital", func(c *Config) { c.Backtest.InitialCapital = -1 }},
		{"bad window", func(c *Config) { c.Forward.WindowSize = 1 }},
		{"notifier without url", func(c *Config) {
			c.Notifiers = map[string]NotifierConfig{"webhook": {Enabled: true}}
		}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Defaults()
			tc.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}
