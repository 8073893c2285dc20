// Package engine replays a price history through a strategy, executing its
// intents against a simulated cash-and-positions portfolio.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"algotrader/internal/domain"
	"algotrader/internal/strategy"
)

// ErrStrategy wraps any error returned by a strategy during a run.
var ErrStrategy = errors.New("strategy failed")

// Config holds the parameters of a simulation.
type Config struct {
	InitialCapital float64
	Frictions      Frictions
	// Optional risk limits; zero disables.
	MaxPositionPct  float64
	MaxDailyLossPct float64
}

// Validate rejects configurations that could drive cash negative.
func (c Config) Validate() error {
	switch {
	case c.InitialCapital <= 0:
		return fmt.Errorf("initial capital must be positive, got %v", c.InitialCapital)
	case c.Frictions.CommissionRate < 0 || c.Frictions.CommissionRate >= 1:
		return fmt.Errorf("commission rate must be in [0, 1), got %v", c.Frictions.CommissionRate)
	case c.Frictions.SlippageRate < 0 || c.Frictions.SlippageRate >= 1:
		return fmt.Errorf("slippage rate must be in [0, 1), got %v", c.Frictions.SlippageRate)
	case c.Frictions.DefaultQty < 0:
		return fmt.Errorf("default quantity must not be negative, got %v", c.Frictions.DefaultQty)
	case c.MaxPositionPct < 0 || c.MaxDailyLossPct < 0:
		return fmt.Errorf("risk limits must not be negative")
	}
	return nil
}

// Result is everything a run produced.
type Result struct {
	InitialCapital float64
	Equity         []domain.EquityPoint
	Trades         []domain.Trade
	// Positions and Cash are the portfolio state after the last step.
	Positions map[string]domain.Position
	Cash      float64
}

// TradeHistory returns a copy of the trade ledger.
func (r *Result) TradeHistory() []domain.Trade {
	out := make([]domain.Trade, len(r.Trades))
	copy(out, r.Trades)
	return out
}

// FinalValue returns the last equity value, or the initial capital when
// the run had no steps.
func (r *Result) FinalValue() float64 {
	if len(r.Equity) == 0 {
		return r.InitialCapital
	}
	return r.Equity[len(r.Equity)-1].Value
}

// Engine runs backtests. It keeps no per-run state, so one Engine may serve
// concurrent runs.
type Engine struct {
	cfg  Config
	risk *RiskManager
	log  *slog.Logger
}

// NewEngine validates cfg and returns an Engine.
func NewEngine(cfg Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("engine config: %w", err)
	}
	e := &Engine{
		cfg: cfg,
		log: slog.Default().With("component", "engine"),
	}
	if cfg.MaxPositionPct > 0 || cfg.MaxDailyLossPct > 0 {
		e.risk = NewRiskManager(cfg.MaxPositionPct, cfg.MaxDailyLossPct)
	}
	return e, nil
}

// Run replays series step by step through strat. A strategy error stops the
// run and is returned wrapped in ErrStrategy; no partial result is returned
// in that case.
func (e *Engine) Run(ctx context.Context, series domain.PriceSeries, strat strategy.Strategy) (*Result, error) {
	if err := series.Validate(); err != nil {
		return nil, fmt.Errorf("invalid price series: %w", err)
	}

	steps := series.Timestamps()
	portfolio := NewPortfolio(e.cfg.InitialCapital)
	exec := newExecutor(e.cfg.Frictions, e.risk, e.log)

	res := &Result{
		InitialCapital: e.cfg.InitialCapital,
		Equity:         make([]domain.EquityPoint, 0, len(steps)),
	}

	e.log.Info("backtest starting",
		"strategy", strat.Name(),
		"symbols", len(series),
		"steps", len(steps),
		"capital", e.cfg.InitialCapital,
	)
	runStart := time.Now()

	var previousEquity float64
	for _, now := range steps {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		prices := series.ClosesAt(now)
		equity := portfolio.Value(prices)
		res.Equity = append(res.Equity, domain.EquityPoint{
			Timestamp: now,
			Value:     equity,
			Cash:      portfolio.Cash(),
		})

		intents, err := strat.Intents(ctx, series, portfolio.Positions(), now)
		if err != nil {
			return nil, fmt.Errorf("%w: %s at %s: %w", ErrStrategy, strat.Name(), now.Format(time.RFC3339), err)
		}

		st := stepState{now: now, equity: equity, previousEquity: previousEquity}
		for _, sym := range sortedKeys(intents) {
			in := intents[sym]
			in.Symbol = sym
			if trade, ok := exec.apply(in, prices, portfolio, st); ok {
				res.Trades = append(res.Trades, trade)
			}
		}
		previousEquity = equity
	}

	res.Positions = portfolio.Positions()
	res.Cash = portfolio.Cash()

	e.log.Info("backtest finished",
		"strategy", strat.Name(),
		"trades", len(res.Trades),
		"final", res.FinalValue(),
		"elapsed", time.Since(runStart).Round(time.Millisecond),
	)
	return res, nil
}

func sortedKeys(m map[string]domain.Intent) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
