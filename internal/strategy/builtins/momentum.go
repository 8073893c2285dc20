package builtins

import (
	"context"
	"fmt"
	"time"

	"algotrader/internal/domain"
	"algotrader/internal/strategy"
)

// MomentumName is the registry name of Momentum.
const MomentumName = "momentum"

var _ strategy.Strategy = (*Momentum)(nil)

// Momentum buys a fixed quantity when the price change over the lookback
// window exceeds the threshold and sells the whole position when it falls
// below the negative threshold.
type Momentum struct {
	lookback  int
	threshold float64
	qty       float64
}

// NewMomentum creates a Momentum strategy. lookback counts bars including
// the current one.
func NewMomentum(lookback int, threshold, qty float64) (*Momentum, error) {
	if lookback < 2 {
		return nil, fmt.Errorf("momentum: lookback must be at least 2, got %d", lookback)
	}
	return &Momentum{lookback: lookback, threshold: threshold, qty: qty}, nil
}

// NewMomentumFromParams reads "lookback" (20), "threshold" (0.05) and
// "qty" (10).
func NewMomentumFromParams(params map[string]string) (strategy.Strategy, error) {
	lookback, err := intParam(params, "lookback", 20)
	if err != nil {
		return nil, err
	}
	threshold, err := floatParam(params, "threshold", 0.05)
	if err != nil {
		return nil, err
	}
	qty, err := floatParam(params, "qty", 10)
	if err != nil {
		return nil, err
	}
	return NewMomentum(lookback, threshold, qty)
}

func (m *Momentum) Name() string { return MomentumName }

func (m *Momentum) Intents(_ context.Context, series domain.PriceSeries, positions map[string]domain.Position, now time.Time) (map[string]domain.Intent, error) {
	out := make(map[string]domain.Intent)
	for _, sym := range series.Symbols() {
		bars := series.Window(sym, now)
		if len(bars) < m.lookback {
			continue
		}
		first := bars[len(bars)-m.lookback].Close
		last := bars[len(bars)-1].Close
		if first <= 0 {
			continue
		}
		change := (last - first) / first

		_, held := positions[sym]
		switch {
		case change > m.threshold && !held:
			out[sym] = domain.Buy(sym, m.qty)
		case change < -m.threshold && held:
			out[sym] = domain.Sell(sym, 0)
		}
	}
	return out, nil
}
