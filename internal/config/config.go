// Package config loads algotrader settings from YAML, an optional .env file
// and environment variables, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// PathEnv names the environment variable that points at the YAML file when
// no -config flag is given.
const PathEnv = "ALGOTRADER_CONFIG"

// DateLayout is the format of every date in the configuration.
const DateLayout = "2006-01-02"

// ---------------------------------------------------------------------------
// Configuration structs
// ---------------------------------------------------------------------------

// Config is the top-level configuration for algotrader.
type Config struct {
	Storage  Storage  `yaml:"storage"`
	Server   Server   `yaml:"server"`
	Alpaca   Alpaca   `yaml:"alpaca"`
	Logging  Logging  `yaml:"logging"`
	Gather   Gather   `yaml:"gather"`
	Backtest Backtest `yaml:"backtest"`
}

// Storage selects and locates the bar cache.
type Storage struct {
	Backend    string `yaml:"backend"` // parquet or sqlite
	DataDir    string `yaml:"data_dir"`
	SQLitePath string `yaml:"sqlite_path"`
}

// Server holds network listener configuration.
type Server struct {
	Host     string `yaml:"host"`
	GRPCPort int    `yaml:"grpc_port"`
}

// Addr returns host:grpc_port.
func (s Server) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.GRPCPort)
}

// Alpaca holds credentials and endpoints for the Alpaca APIs.
type Alpaca struct {
	APIKey    string `yaml:"api_key"`
	APISecret string `yaml:"api_secret"`
	BaseURL   string `yaml:"base_url"`
	DataURL   string `yaml:"data_url"`
	Feed      string `yaml:"feed"` // sip or iex
}

// Logging configures the application logger.
type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Gather controls how bars are fetched from Alpaca.
type Gather struct {
	StartDate       string `yaml:"start_date"`
	BatchSize       int    `yaml:"batch_size"`
	RateLimitPerMin int    `yaml:"rate_limit_per_min"`
	MaxRetries      int    `yaml:"max_retries"`
}

// Backtest holds the defaults for a backtest run. Command-line flags
// override individual fields.
type Backtest struct {
	InitialCapital  float64           `yaml:"initial_capital"`
	CommissionRate  float64           `yaml:"commission_rate"`
	SlippageRate    float64           `yaml:"slippage_rate"`
	DefaultQty      float64           `yaml:"default_qty"`
	PeriodsPerYear  float64           `yaml:"periods_per_year"`
	MaxPositionPct  float64           `yaml:"max_position_pct"`
	MaxDailyLossPct float64           `yaml:"max_daily_loss_pct"`
	Market          string            `yaml:"market"`
	Strategy        string            `yaml:"strategy"`
	Params          map[string]string `yaml:"params"`
	Symbols         []string          `yaml:"symbols"`
	Start           string            `yaml:"start"`
	End             string            `yaml:"end"` // empty means the latest finished trading day
}

// Range parses Start and End. A zero End is returned when End is empty.
func (b Backtest) Range() (start, end time.Time, err error) {
	if start, err = time.Parse(DateLayout, b.Start); err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("backtest.start: %w", err)
	}
	if b.End == "" {
		return start, time.Time{}, nil
	}
	if end, err = time.Parse(DateLayout, b.End); err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("backtest.end: %w", err)
	}
	if end.Before(start) {
		return time.Time{}, time.Time{}, fmt.Errorf("backtest.end %s is before start %s", b.End, b.Start)
	}
	return start, end, nil
}

// ---------------------------------------------------------------------------
// Loading
// ---------------------------------------------------------------------------

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg := &Config{}
	setDefaults(cfg)
	return cfg
}

// Load reads the YAML configuration file at path, loads a .env file from
// the working directory when present, applies environment overrides and
// fills defaults. An empty path skips the YAML step.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	// A missing .env is normal.
	_ = godotenv.Load()

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	setDefaults(cfg)
	return cfg, nil
}

func setDefaults(cfg *Config) {
	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = "parquet"
	}
	if cfg.Storage.DataDir == "" {
		cfg.Storage.DataDir = "data"
	}
	if cfg.Storage.SQLitePath == "" {
		cfg.Storage.SQLitePath = "data/bars.db"
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "127.0.0.1"
	}
	if cfg.Server.GRPCPort == 0 {
		cfg.Server.GRPCPort = 50061
	}
	if cfg.Alpaca.BaseURL == "" {
		cfg.Alpaca.BaseURL = "https://paper-api.alpaca.markets"
	}
	if cfg.Alpaca.Feed == "" {
		cfg.Alpaca.Feed = "sip"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "text"
	}
	if cfg.Gather.BatchSize == 0 {
		cfg.Gather.BatchSize = 100
	}
	if cfg.Gather.RateLimitPerMin == 0 {
		cfg.Gather.RateLimitPerMin = 200
	}
	if cfg.Gather.MaxRetries == 0 {
		cfg.Gather.MaxRetries = 3
	}
	b := &cfg.Backtest
	if b.InitialCapital == 0 {
		b.InitialCapital = 100000
	}
	if b.DefaultQty == 0 {
		b.DefaultQty = 1
	}
	if b.PeriodsPerYear == 0 {
		b.PeriodsPerYear = 252
	}
	if b.Market == "" {
		b.Market = "us"
	}
	if b.Strategy == "" {
		b.Strategy = "momentum"
	}
}

// applyEnvOverrides checks well-known environment variables and overrides the
// corresponding configuration fields when they are set.
func applyEnvOverrides(cfg *Config) error {
	str := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	str("DATA_DIR", &cfg.Storage.DataDir)
	str("SQLITE_PATH", &cfg.Storage.SQLitePath)
	str("STORAGE_BACKEND", &cfg.Storage.Backend)
	str("ALPACA_API_KEY", &cfg.Alpaca.APIKey)
	str("ALPACA_API_SECRET", &cfg.Alpaca.APISecret)
	str("ALPACA_BASE_URL", &cfg.Alpaca.BaseURL)
	str("ALPACA_DATA_URL", &cfg.Alpaca.DataURL)
	str("ALPACA_FEED", &cfg.Alpaca.Feed)
	str("LOG_LEVEL", &cfg.Logging.Level)
	str("LOG_FORMAT", &cfg.Logging.Format)
	str("BACKTEST_STRATEGY", &cfg.Backtest.Strategy)

	// Standard Alpaca env vars (highest priority, the SDK's canonical names).
	str("APCA_API_KEY_ID", &cfg.Alpaca.APIKey)
	str("APCA_API_SECRET_KEY", &cfg.Alpaca.APISecret)

	if v := os.Getenv("BACKTEST_SYMBOLS"); v != "" {
		cfg.Backtest.Symbols = SplitSymbols(v)
	}
	if v := os.Getenv("BACKTEST_INITIAL_CAPITAL"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("BACKTEST_INITIAL_CAPITAL: %w", err)
		}
		cfg.Backtest.InitialCapital = f
	}
	if v := os.Getenv("GRPC_PORT"); v != "" {
		p, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("GRPC_PORT: %w", err)
		}
		cfg.Server.GRPCPort = p
	}
	return nil
}

// SplitSymbols parses a comma-separated symbol list, upper-casing entries
// and dropping blanks.
func SplitSymbols(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.ToUpper(strings.TrimSpace(p)); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Validate reports every setting that cannot produce a sound backtest.
func (c *Config) Validate() error {
	var errs []error
	b := c.Backtest
	if b.InitialCapital <= 0 {
		errs = append(errs, fmt.Errorf("backtest.initial_capital must be positive, got %v", b.InitialCapital))
	}
	if b.CommissionRate < 0 || b.CommissionRate >= 1 {
		errs = append(errs, fmt.Errorf("backtest.commission_rate must be in [0, 1), got %v", b.CommissionRate))
	}
	if b.SlippageRate < 0 || b.SlippageRate >= 1 {
		errs = append(errs, fmt.Errorf("backtest.slippage_rate must be in [0, 1), got %v", b.SlippageRate))
	}
	if b.DefaultQty < 0 {
		errs = append(errs, fmt.Errorf("backtest.default_qty must not be negative, got %v", b.DefaultQty))
	}
	if b.PeriodsPerYear < 0 {
		errs = append(errs, fmt.Errorf("backtest.periods_per_year must not be negative, got %v", b.PeriodsPerYear))
	}
	if b.MaxPositionPct < 0 || b.MaxDailyLossPct < 0 {
		errs = append(errs, errors.New("backtest risk limits must not be negative"))
	}
	switch c.Storage.Backend {
	case "", "parquet", "sqlite":
	default:
		errs = append(errs, fmt.Errorf("storage.backend must be parquet or sqlite, got %q", c.Storage.Backend))
	}
	if c.Gather.RateLimitPerMin < 0 || c.Gather.MaxRetries < 0 {
		errs = append(errs, errors.New("gather limits must not be negative"))
	}
	return errors.Join(errs...)
}
