// Package backtest runs a named strategy end to end: it loads the price
// history, replays it through the engine and computes the report.
package backtest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"algotrader/internal/analytics"
	"algotrader/internal/domain"
	"algotrader/internal/engine"
	"algotrader/internal/feed"
	"algotrader/internal/strategy"
)

// ErrUnknownStrategy is returned when the requested strategy is not
// registered.
var ErrUnknownStrategy = errors.New("unknown strategy")

// ErrParams is returned when a strategy rejects its parameters.
var ErrParams = errors.New("invalid strategy parameters")

// Request describes one backtest.
type Request struct {
	Strategy  string
	Params    map[string]string
	Symbols   []string
	Start     time.Time
	End       time.Time
	Engine    engine.Config
	Analytics analytics.Options
}

// Run is the outcome of one backtest.
type Run struct {
	ID       string
	Request  Request
	Result   *engine.Result
	Report   analytics.Report
	Duration time.Duration
}

// Backtester looks strategies up in a registry and loads history through a
// feed.Loader.
type Backtester struct {
	loader   feed.Loader
	registry *strategy.Registry
	log      *slog.Logger
}

// New creates a Backtester. loader may be nil when only RunSeries is used.
func New(loader feed.Loader, registry *strategy.Registry) *Backtester {
	return &Backtester{
		loader:   loader,
		registry: registry,
		log:      slog.Default().With("component", "backtest"),
	}
}

// Strategies lists the registered strategy names.
func (b *Backtester) Strategies() []string {
	return b.registry.List()
}

// Run loads req.Symbols over [req.Start, req.End] and runs the backtest.
func (b *Backtester) Run(ctx context.Context, req Request) (*Run, error) {
	// Resolve the strategy before paying for the data load.
	if _, err := b.strategy(req); err != nil {
		return nil, err
	}
	if b.loader == nil {
		return nil, errors.New("backtester has no data loader")
	}
	series, err := b.loader.Load(ctx, req.Symbols, req.Start, req.End)
	if err != nil {
		return nil, fmt.Errorf("loading price history: %w", err)
	}
	return b.RunSeries(ctx, req, series)
}

// RunSeries runs req against an already loaded series. series is only
// read, so concurrent calls may share it.
func (b *Backtester) RunSeries(ctx context.Context, req Request, series domain.PriceSeries) (*Run, error) {
	strat, err := b.strategy(req)
	if err != nil {
		return nil, err
	}
	eng, err := engine.NewEngine(req.Engine)
	if err != nil {
		return nil, err
	}

	id := uuid.NewString()
	started := time.Now()
	res, err := eng.Run(ctx, series, strat)
	if err != nil {
		return nil, fmt.Errorf("run %s: %w", id, err)
	}

	run := &Run{
		ID:       id,
		Request:  req,
		Result:   res,
		Report:   analytics.Compute(res, req.Analytics),
		Duration: time.Since(started),
	}
	b.log.Info("backtest complete",
		"id", id,
		"strategy", req.Strategy,
		"params", req.Params,
		"total_return", run.Report.TotalReturn,
		"trades", run.Report.TradeCount,
	)
	return run, nil
}

func (b *Backtester) strategy(req Request) (strategy.Strategy, error) {
	s, ok, err := b.registry.Get(req.Strategy, req.Params)
	if !ok {
		return nil, fmt.Errorf("%w %q (have %v)", ErrUnknownStrategy, req.Strategy, b.registry.List())
	}
	if err != nil {
		return nil, fmt.Errorf("%w for %s: %w", ErrParams, req.Strategy, err)
	}
	return s, nil
}
