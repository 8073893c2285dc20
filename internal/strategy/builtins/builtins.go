// Package builtins provides the strategies that ship with algotrader. None
// of them is referenced by the engine; they are looked up by name through a
// strategy.Registry.
package builtins

import (
	"fmt"
	"strconv"

	"algotrader/internal/domain"
	"algotrader/internal/strategy"
)

// Register adds every built-in strategy factory to r.
func Register(r *strategy.Registry) {
	r.Register(SMACrossName, NewSMACrossFromParams)
	r.Register(MomentumName, NewMomentumFromParams)
	r.Register(RSIName, NewRSIFromParams)
	r.Register(BuyAndHoldName, NewBuyAndHoldFromParams)
}

// NewRegistry returns a registry holding all built-in strategies.
func NewRegistry() *strategy.Registry {
	r := strategy.NewRegistry()
	Register(r)
	return r
}

func intParam(params map[string]string, key string, def int) (int, error) {
	v, ok := params[key]
	if !ok || v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("parameter %s: %w", key, err)
	}
	if n <= 0 {
		return 0, fmt.Errorf("parameter %s must be positive, got %d", key, n)
	}
	return n, nil
}

func floatParam(params map[string]string, key string, def float64) (float64, error) {
	v, ok := params[key]
	if !ok || v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("parameter %s: %w", key, err)
	}
	if f < 0 {
		return 0, fmt.Errorf("parameter %s must not be negative, got %v", key, f)
	}
	return f, nil
}

// closes returns the closing prices of bars.
func closes(bars []domain.Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Close
	}
	return out
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}
