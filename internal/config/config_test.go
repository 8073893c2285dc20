package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// clearEnv blanks every variable applyEnvOverrides reads.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"DATA_DIR", "SQLITE_PATH", "STORAGE_BACKEND",
		"ALPACA_API_KEY", "ALPACA_API_SECRET", "ALPACA_BASE_URL", "ALPACA_DATA_URL", "ALPACA_FEED",
		"APCA_API_KEY_ID", "APCA_API_SECRET_KEY",
		"LOG_LEVEL", "LOG_FORMAT",
		"BACKTEST_STRATEGY", "BACKTEST_SYMBOLS", "BACKTEST_INITIAL_CAPITAL", "GRPC_PORT",
	} {
		t.Setenv(k, "")
	}
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "algotrader.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write temp file: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
storage:
  backend: sqlite
  data_dir: "/tmp/algotrader/data"
  sqlite_path: "/tmp/algotrader/bars.db"
server:
  host: "0.0.0.0"
  grpc_port: 9090
alpaca:
  api_key: "test-key"
  api_secret: "test-secret"
  base_url: "https://paper-api.alpaca.markets"
  feed: iex
logging:
  level: "debug"
  format: "json"
gather:
  start_date: "2020-01-01"
  batch_size: 500
  rate_limit_per_min: 150
  max_retries: 5
backtest:
  initial_capital: 50000
  commission_rate: 0.001
  slippage_rate: 0.0005
  default_qty: 10
  periods_per_year: 52
  max_position_pct: 0.2
  strategy: sma-cross
  params:
    short: "5"
    long: "20"
  symbols: [AAPL, MSFT]
  start: "2023-01-01"
  end: "2023-12-31"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}

	if cfg.Storage.Backend != "sqlite" {
		t.Errorf("Storage.Backend = %q, want %q", cfg.Storage.Backend, "sqlite")
	}
	if cfg.Storage.SQLitePath != "/tmp/algotrader/bars.db" {
		t.Errorf("Storage.SQLitePath = %q, want %q", cfg.Storage.SQLitePath, "/tmp/algotrader/bars.db")
	}
	if got := cfg.Server.Addr(); got != "0.0.0.0:9090" {
		t.Errorf("Server.Addr() = %q, want %q", got, "0.0.0.0:9090")
	}
	if cfg.Alpaca.APIKey != "test-key" || cfg.Alpaca.Feed != "iex" {
		t.Errorf("Alpaca = %+v", cfg.Alpaca)
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "json" {
		t.Errorf("Logging = %+v", cfg.Logging)
	}
	if cfg.Gather.BatchSize != 500 || cfg.Gather.RateLimitPerMin != 150 || cfg.Gather.MaxRetries != 5 {
		t.Errorf("Gather = %+v", cfg.Gather)
	}

	b := cfg.Backtest
	if b.InitialCapital != 50000 {
		t.Errorf("Backtest.InitialCapital = %v, want 50000", b.InitialCapital)
	}
	if b.CommissionRate != 0.001 || b.SlippageRate != 0.0005 {
		t.Errorf("Backtest rates = %v/%v", b.CommissionRate, b.SlippageRate)
	}
	if b.PeriodsPerYear != 52 {
		t.Errorf("Backtest.PeriodsPerYear = %v, want 52", b.PeriodsPerYear)
	}
	if b.Strategy != "sma-cross" || b.Params["short"] != "5" {
		t.Errorf("Backtest strategy = %q %v", b.Strategy, b.Params)
	}
	if strings.Join(b.Symbols, ",") != "AAPL,MSFT" {
		t.Errorf("Backtest.Symbols = %v", b.Symbols)
	}

	start, end, err := b.Range()
	if err != nil {
		t.Fatalf("Range() returned error: %v", err)
	}
	if start.Format(DateLayout) != "2023-01-01" || end.Format(DateLayout) != "2023-12-31" {
		t.Errorf("Range() = %v, %v", start, end)
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() returned error: %v", err)
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load(\"\") returned error: %v", err)
	}
	if cfg.Storage.Backend != "parquet" {
		t.Errorf("Storage.Backend = %q, want parquet", cfg.Storage.Backend)
	}
	if cfg.Backtest.InitialCapital != 100000 {
		t.Errorf("Backtest.InitialCapital = %v, want 100000", cfg.Backtest.InitialCapital)
	}
	if cfg.Backtest.DefaultQty != 1 {
		t.Errorf("Backtest.DefaultQty = %v, want 1", cfg.Backtest.DefaultQty)
	}
	if cfg.Backtest.PeriodsPerYear != 252 {
		t.Errorf("Backtest.PeriodsPerYear = %v, want 252", cfg.Backtest.PeriodsPerYear)
	}
	if cfg.Backtest.Strategy != "momentum" {
		t.Errorf("Backtest.Strategy = %q, want momentum", cfg.Backtest.Strategy)
	}
	if cfg.Server.GRPCPort == 0 {
		t.Error("Server.GRPCPort should have a default")
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
alpaca:
  api_key: "yaml-key"
  api_secret: "yaml-secret"
storage:
  data_dir: "/original/data"
backtest:
  symbols: [SPY]
`)

	t.Setenv("ALPACA_API_KEY", "env-key")
	t.Setenv("APCA_API_SECRET_KEY", "canonical-secret")
	t.Setenv("DATA_DIR", "/override/data")
	t.Setenv("BACKTEST_SYMBOLS", "aapl, msft,,")
	t.Setenv("BACKTEST_INITIAL_CAPITAL", "2500.5")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}
	if cfg.Alpaca.APIKey != "env-key" {
		t.Errorf("Alpaca.APIKey = %q, want %q", cfg.Alpaca.APIKey, "env-key")
	}
	if cfg.Alpaca.APISecret != "canonical-secret" {
		t.Errorf("Alpaca.APISecret = %q, want %q", cfg.Alpaca.APISecret, "canonical-secret")
	}
	if cfg.Storage.DataDir != "/override/data" {
		t.Errorf("Storage.DataDir = %q, want %q", cfg.Storage.DataDir, "/override/data")
	}
	if strings.Join(cfg.Backtest.Symbols, ",") != "AAPL,MSFT" {
		t.Errorf("Backtest.Symbols = %v, want [AAPL MSFT]", cfg.Backtest.Symbols)
	}
	if cfg.Backtest.InitialCapital != 2500.5 {
		t.Errorf("Backtest.InitialCapital = %v, want 2500.5", cfg.Backtest.InitialCapital)
	}
}

func TestLoadBadEnvNumber(t *testing.T) {
	clearEnv(t)
	t.Setenv("BACKTEST_INITIAL_CAPITAL", "lots")
	if _, err := Load(""); err == nil {
		t.Error("Load() should fail on a non-numeric BACKTEST_INITIAL_CAPITAL")
	}
}

func TestLoadMissingFile(t *testing.T) {
	clearEnv(t)
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("Load() should fail for a missing file")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"negative capital", func(c *Config) { c.Backtest.InitialCapital = -1 }, "initial_capital"},
		{"commission of 100%", func(c *Config) { c.Backtest.CommissionRate = 1 }, "commission_rate"},
		{"negative slippage", func(c *Config) { c.Backtest.SlippageRate = -0.1 }, "slippage_rate"},
		{"unknown backend", func(c *Config) { c.Storage.Backend = "csv" }, "storage.backend"},
		{"negative risk", func(c *Config) { c.Backtest.MaxPositionPct = -0.5 }, "risk limits"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("Validate() returned nil")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Validate() = %v, want mention of %q", err, tt.want)
			}
		})
	}

	if err := Default().Validate(); err != nil {
		t.Errorf("Default().Validate() = %v", err)
	}
}

func TestRange(t *testing.T) {
	b := Backtest{Start: "2024-01-01"}
	_, end, err := b.Range()
	if err != nil {
		t.Fatalf("Range() returned error: %v", err)
	}
	if !end.IsZero() {
		t.Errorf("open-ended range end = %v, want zero", end)
	}

	b = Backtest{Start: "2024-02-01", End: "2024-01-01"}
	if _, _, err := b.Range(); err == nil {
		t.Error("Range() should reject end before start")
	}
	b = Backtest{Start: "01/02/2024"}
	if _, _, err := b.Range(); err == nil {
		t.Error("Range() should reject a malformed date")
	}
}
