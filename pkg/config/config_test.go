package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
environment: test
backend:
  url: "http://localhost:8080"
feed:
  stock_symbols: ["AAPL", "MSFT"]
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}

	if cfg.Server.Port != 8090 {
		t.Errorf("Server.Port = %d, want 8090", cfg.Server.Port)
	}
	if cfg.Feed.CryptoInterval != 10*time.Second {
		t.Errorf("Feed.CryptoInterval = %v, want 10s", cfg.Feed.CryptoInterval)
	}
	if cfg.Feed.StockInterval != 45*time.Second {
		t.Errorf("Feed.StockInterval = %v, want 45s", cfg.Feed.StockInterval)
	}
	if cfg.Chart.DefaultRange != 180*24*time.Hour {
		t.Errorf("Chart.DefaultRange = %v, want 180 days", cfg.Chart.DefaultRange)
	}
	if cfg.Chart.SMAPeriod != 20 || cfg.Chart.RSIPeriod != 14 {
		t.Errorf("chart periods = %d/%d, want 20/14", cfg.Chart.SMAPeriod, cfg.Chart.RSIPeriod)
	}
	if cfg.Cache.Backend != "memory" || cfg.Storage.Backend != "none" {
		t.Errorf("backends = %s/%s, want memory/none", cfg.Cache.Backend, cfg.Storage.Backend)
	}
	if cfg.Providers.Finnhub.BaseURL != "https://finnhub.io/api/v1" {
		t.Errorf("Finnhub.BaseURL = %q", cfg.Providers.Finnhub.BaseURL)
	}
	if got := cfg.Backend.StreamURL(); got != "ws://localhost:8080/ws/prices" {
		t.Errorf("StreamURL() = %q", got)
	}
}

func TestLoadKeepsExplicitValues(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9999
feed:
  crypto_interval: 3s
chart:
  sma_period: 9
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}
	if cfg.Server.Port != 9999 {
		t.Errorf("Server.Port = %d, want 9999", cfg.Server.Port)
	}
	if cfg.Feed.CryptoInterval != 3*time.Second {
		t.Errorf("Feed.CryptoInterval = %v, want 3s", cfg.Feed.CryptoInterval)
	}
	if cfg.Chart.SMAPeriod != 9 {
		t.Errorf("Chart.SMAPeriod = %d, want 9", cfg.Chart.SMAPeriod)
	}
}

func TestLoadWithEnvOverrides(t *testing.T) {
	path := writeConfig(t, `
providers:
  finnhub:
    api_key: from-file
`)

	t.Setenv("FINNHUB_API_KEY", "from-env")
	t.Setenv("STOCK_SYMBOLS", "AAPL, TSLA")
	t.Setenv("CRYPTO_IDS", "bitcoin:BTC,solana")
	t.Setenv("BACKEND_URL", "https://api.flux.test")

	cfg, err := LoadWithEnv(path)
	if err != nil {
		t.Fatalf("LoadWithEnv() returned error: %v", err)
	}
	if cfg.Providers.Finnhub.APIKey != "from-env" {
		t.Errorf("Finnhub.APIKey = %q, want from-env", cfg.Providers.Finnhub.APIKey)
	}
	if len(cfg.Feed.StockSymbols) != 2 || cfg.Feed.StockSymbols[1] != "TSLA" {
		t.Errorf("StockSymbols = %v", cfg.Feed.StockSymbols)
	}
	if cfg.Feed.CryptoIDs["bitcoin"] != "BTC" || cfg.Feed.CryptoIDs["solana"] != "SOLANA" {
		t.Errorf("CryptoIDs = %v", cfg.Feed.CryptoIDs)
	}
	if got := cfg.Backend.StreamURL(); got != "wss://api.flux.test/ws/prices" {
		t.Errorf("StreamURL() = %q", got)
	}
}

func TestValidateRejectsInconsistentStorage(t *testing.T) {
	cases := map[string]string{
		"kafka without brokers": `
storage:
  backend: kafka
`,
		"unknown cache backend": `
cache:
  backend: memcached
`,
		"queue without redis": `
queue:
  enabled: true
`,
		"half alpaca credentials": `
providers:
  alpaca:
    api_key: only-key
`,
	}

	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, body)); err == nil {
				t.Fatalf("Load() expected error")
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatalf("Load() expected error for missing file")
	}
}
