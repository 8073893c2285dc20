package builtins

import (
	"context"
	"fmt"
	"time"

	"algotrader/internal/domain"
	"algotrader/internal/strategy"
)

// SMACrossName is the registry name of SMACross.
const SMACrossName = "sma-cross"

// Compile-time interface check.
var _ strategy.Strategy = (*SMACross)(nil)

// SMACross implements a simple moving average crossover strategy. It buys
// when the short-period SMA crosses above the long-period SMA and sells the
// whole position when it crosses below.
type SMACross struct {
	shortPeriod int
	longPeriod  int
	qty         float64
}

// NewSMACross creates a new SMACross strategy with the specified short and
// long moving average periods. qty <= 0 leaves buy sizing to the engine.
func NewSMACross(short, long int, qty float64) (*SMACross, error) {
	if short <= 0 || long <= short {
		return nil, fmt.Errorf("sma-cross: need 0 < short < long, got %d/%d", short, long)
	}
	return &SMACross{shortPeriod: short, longPeriod: long, qty: qty}, nil
}

// NewSMACrossFromParams reads "short" (default 9), "long" (default 21) and
// "qty".
func NewSMACrossFromParams(params map[string]string) (strategy.Strategy, error) {
	short, err := intParam(params, "short", 9)
	if err != nil {
		return nil, err
	}
	long, err := intParam(params, "long", 21)
	if err != nil {
		return nil, err
	}
	qty, err := floatParam(params, "qty", 0)
	if err != nil {
		return nil, err
	}
	return NewSMACross(short, long, qty)
}

// Name returns "sma-cross".
func (s *SMACross) Name() string {
	return SMACrossName
}

// Intents compares the SMAs at now with those one bar earlier.
func (s *SMACross) Intents(_ context.Context, series domain.PriceSeries, positions map[string]domain.Position, now time.Time) (map[string]domain.Intent, error) {
	out := make(map[string]domain.Intent)
	for _, sym := range series.Symbols() {
		c := closes(series.Window(sym, now))
		if len(c) < s.longPeriod+1 {
			continue
		}
		n := len(c)
		prevShort, prevLong := mean(c[n-1-s.shortPeriod:n-1]), mean(c[n-1-s.longPeriod:n-1])
		curShort, curLong := mean(c[n-s.shortPeriod:]), mean(c[n-s.longPeriod:])

		_, held := positions[sym]
		switch {
		case prevShort <= prevLong && curShort > curLong && !held:
			out[sym] = domain.Buy(sym, s.qty)
		case prevShort >= prevLong && curShort < curLong && held:
			out[sym] = domain.Sell(sym, 0)
		}
	}
	return out, nil
}
