package builtins

import (
	"context"
	"fmt"
	"math"
	"time"

	"algotrader/internal/domain"
	"algotrader/internal/strategy"
)

// RSIName is the registry name of RSI.
const RSIName = "rsi"

var _ strategy.Strategy = (*RSI)(nil)

// RSI trades the relative strength index computed from simple rolling
// averages of gains and losses. It buys below oversold and sells the whole
// position above overbought.
type RSI struct {
	period     int
	oversold   float64
	overbought float64
	qty        float64
}

func NewRSI(period int, oversold, overbought, qty float64) (*RSI, error) {
	if period <= 0 {
		return nil, fmt.Errorf("rsi: period must be positive, got %d", period)
	}
	if oversold >= overbought || overbought > 100 {
		return nil, fmt.Errorf("rsi: need oversold < overbought <= 100, got %v/%v", oversold, overbought)
	}
	return &RSI{period: period, oversold: oversold, overbought: overbought, qty: qty}, nil
}

// NewRSIFromParams reads "period" (14), "oversold" (30), "overbought" (69)
// and "qty".
func NewRSIFromParams(params map[string]string) (strategy.Strategy, error) {
	period, err := intParam(params, "period", 14)
	if err != nil {
		return nil, err
	}
	oversold, err := floatParam(params, "oversold", 30)
	if err != nil {
		return nil, err
	}
	overbought, err := floatParam(params, "overbought", 69)
	if err != nil {
		return nil, err
	}
	qty, err := floatParam(params, "qty", 0)
	if err != nil {
		return nil, err
	}
	return NewRSI(period, oversold, overbought, qty)
}

func (r *RSI) Name() string { return RSIName }

func (r *RSI) Intents(_ context.Context, series domain.PriceSeries, positions map[string]domain.Position, now time.Time) (map[string]domain.Intent, error) {
	out := make(map[string]domain.Intent)
	for _, sym := range series.Symbols() {
		v, ok := RSIValue(closes(series.Window(sym, now)), r.period)
		if !ok {
			continue
		}
		_, held := positions[sym]
		switch {
		case v < r.oversold:
			out[sym] = domain.Buy(sym, r.qty)
		case v > r.overbought && held:
			out[sym] = domain.Sell(sym, 0)
		}
	}
	return out, nil
}

// RSIValue returns the RSI of the last period price changes in c. It
// reports false when there are fewer than period+1 prices or the window
// is flat.
func RSIValue(c []float64, period int) (float64, bool) {
	if period <= 0 || len(c) < period+1 {
		return 0, false
	}
	var gain, loss float64
	for i := len(c) - period; i < len(c); i++ {
		d := c[i] - c[i-1]
		if d > 0 {
			gain += d
		} else {
			loss -= d
		}
	}
	switch {
	case gain == 0 && loss == 0:
		return 0, false
	case loss == 0:
		return 100, true
	}
	rs := gain / loss
	v := 100 - 100/(1+rs)
	if math.IsNaN(v) {
		return 0, false
	}
	return v, true
}
