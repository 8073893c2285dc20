package feed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"
	"golang.org/x/time/rate"

	"algotrader/internal/domain"
	"algotrader/internal/store"
	"algotrader/internal/util"
)

// BarClient is the part of the Alpaca market-data client the loader uses.
// *marketdata.Client satisfies it.
type BarClient interface {
	GetMultiBars(symbols []string, req marketdata.GetBarsRequest) (map[string][]marketdata.Bar, error)
}

var _ BarClient = (*marketdata.Client)(nil)

// AlpacaOptions configures an AlpacaLoader.
type AlpacaOptions struct {
	APIKey    string
	APISecret string
	DataURL   string // empty uses the SDK default
	Feed      string // sip or iex

	BatchSize       int // symbols per request
	RateLimitPerMin int // 0 disables throttling
	MaxRetries      int
	RetryDelay      time.Duration

	// Cache, when set, receives every fetched bar.
	Cache  store.BarStore
	Market domain.Market
}

// AlpacaLoader fetches daily bars from the Alpaca market-data API.
type AlpacaLoader struct {
	client  BarClient
	opts    AlpacaOptions
	limiter *rate.Limiter
	log     *slog.Logger
}

// NewAlpacaLoader creates a loader backed by a real market-data client.
func NewAlpacaLoader(opts AlpacaOptions) *AlpacaLoader {
	clientOpts := marketdata.ClientOpts{
		APIKey:    opts.APIKey,
		APISecret: opts.APISecret,
	}
	if opts.DataURL != "" {
		clientOpts.BaseURL = opts.DataURL
	}
	return NewAlpacaLoaderWithClient(marketdata.NewClient(clientOpts), opts)
}

// NewAlpacaLoaderWithClient creates a loader around an existing client.
func NewAlpacaLoaderWithClient(client BarClient, opts AlpacaOptions) *AlpacaLoader {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 100
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 3
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = time.Second
	}
	if opts.Feed == "" {
		opts.Feed = "sip"
	}
	if opts.Market == "" {
		opts.Market = domain.MarketUS
	}

	limit := rate.Inf
	if opts.RateLimitPerMin > 0 {
		limit = rate.Every(time.Minute / time.Duration(opts.RateLimitPerMin))
	}

	return &AlpacaLoader{
		client:  client,
		opts:    opts,
		limiter: rate.NewLimiter(limit, 1),
		log:     slog.Default().With("component", "feed", "source", "alpaca"),
	}
}

// Load fetches symbols in batches, writes them through to the cache and
// returns the combined series.
func (l *AlpacaLoader) Load(ctx context.Context, symbols []string, start, end time.Time) (domain.PriceSeries, error) {
	symbols, end, err := normalize(symbols, start, end)
	if err != nil {
		return nil, err
	}

	var all []domain.Bar
	for i := 0; i < len(symbols); i += l.opts.BatchSize {
		batch := symbols[i:min(i+l.opts.BatchSize, len(symbols))]
		bars, err := l.fetchBatch(ctx, batch, start, end)
		if err != nil {
			return nil, fmt.Errorf("fetching %s: %w", strings.Join(batch, ","), err)
		}
		if l.opts.Cache != nil && len(bars) > 0 {
			if err := l.opts.Cache.WriteBars(ctx, l.opts.Market, bars); err != nil {
				return nil, fmt.Errorf("caching bars: %w", err)
			}
		}
		all = append(all, bars...)
	}

	series, err := domain.NewPriceSeries(all)
	if err != nil {
		return nil, err
	}
	for _, sym := range symbols {
		if len(series[sym]) == 0 {
			return nil, fmt.Errorf("%w for %s between %s and %s", ErrNoBars, sym,
				start.Format(time.DateOnly), end.Format(time.DateOnly))
		}
	}
	l.log.Info("bars loaded", "symbols", len(symbols), "bars", len(all))
	return series, nil
}

func (l *AlpacaLoader) fetchBatch(ctx context.Context, symbols []string, start, end time.Time) ([]domain.Bar, error) {
	var multiBars map[string][]marketdata.Bar
	err := util.Retry(ctx, l.opts.MaxRetries, l.opts.RetryDelay, func() error {
		if err := l.limiter.Wait(ctx); err != nil {
			return util.Permanent(err)
		}
		var err error
		multiBars, err = l.client.GetMultiBars(symbols, marketdata.GetBarsRequest{
			TimeFrame: marketdata.OneDay,
			Start:     start,
			End:       end,
			Feed:      l.opts.Feed,
		})
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return util.Permanent(err)
			}
			l.log.Warn("GetMultiBars failed", "symbols", len(symbols), "error", err)
			return fmt.Errorf("GetMultiBars: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	var bars []domain.Bar
	for symbol, alpacaBars := range multiBars {
		for _, ab := range alpacaBars {
			bars = append(bars, domain.Bar{
				Symbol:     strings.ToUpper(symbol),
				Timestamp:  ab.Timestamp.UTC(),
				Open:       ab.Open,
				High:       ab.High,
				Low:        ab.Low,
				Close:      ab.Close,
				Volume:     int64(ab.Volume),
				TradeCount: int64(ab.TradeCount),
				VWAP:       ab.VWAP,
			})
		}
	}
	return bars, nil
}
