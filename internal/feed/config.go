package feed

import (
	"time"

	"algotrader/internal/config"
	"algotrader/internal/domain"
	"algotrader/internal/store"
)

// FromConfig returns the loader the commands share. With Alpaca
// credentials it serves cached symbols from st and fetches the rest;
// without them it reads st only.
func FromConfig(cfg *config.Config, st store.BarStore) Loader {
	market := domain.Market(cfg.Backtest.Market)
	if cfg.Alpaca.APIKey == "" || cfg.Alpaca.APISecret == "" {
		return &StoreLoader{Store: st, Market: market}
	}
	return &CachedLoader{
		Store:  st,
		Remote: NewAlpacaLoader(AlpacaOptionsFromConfig(cfg, st)),
		Market: market,
	}
}

// AlpacaOptionsFromConfig maps the alpaca and gather sections onto
// AlpacaOptions. cache may be nil.
func AlpacaOptionsFromConfig(cfg *config.Config, cache store.BarStore) AlpacaOptions {
	return AlpacaOptions{
		APIKey:          cfg.Alpaca.APIKey,
		APISecret:       cfg.Alpaca.APISecret,
		DataURL:         cfg.Alpaca.DataURL,
		Feed:            cfg.Alpaca.Feed,
		BatchSize:       cfg.Gather.BatchSize,
		RateLimitPerMin: cfg.Gather.RateLimitPerMin,
		MaxRetries:      cfg.Gather.MaxRetries,
		Cache:           cache,
		Market:          domain.Market(cfg.Backtest.Market),
	}
}

// EndResolver returns a function that picks the default end date of a
// run. With credentials it asks the Alpaca calendar for the latest
// finished trading day; otherwise it uses the current UTC date.
func EndResolver(cfg config.Alpaca) func(now time.Time) (time.Time, error) {
	if cfg.APIKey == "" || cfg.APISecret == "" {
		return func(now time.Time) (time.Time, error) {
			y, m, d := now.UTC().Date()
			return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), nil
		}
	}
	client := NewCalendarClient(cfg.APIKey, cfg.APISecret, cfg.BaseURL)
	return func(now time.Time) (time.Time, error) {
		return LatestFinishedTradingDay(client, now)
	}
}
