// Package strategy defines the Strategy contract the backtesting engine calls
// on every step and provides a Registry for looking strategies up by name.
package strategy

import (
	"context"
	"sort"
	"time"

	"algotrader/internal/domain"
)

// Strategy produces intents from the market history, the current positions
// and the current step time. Implementations must treat series and positions
// as read-only and must not look at bars after now.
type Strategy interface {
	// Name returns the unique identifier for this strategy.
	Name() string

	// Intents returns the desired action per symbol for the step at now.
	// Symbols missing from the result are held. A returned error aborts the
	// backtest.
	Intents(ctx context.Context, series domain.PriceSeries, positions map[string]domain.Position, now time.Time) (map[string]domain.Intent, error)
}

// IntentFunc is the plain-function form of a strategy.
type IntentFunc func(ctx context.Context, series domain.PriceSeries, positions map[string]domain.Position, now time.Time) (map[string]domain.Intent, error)

// Func adapts an IntentFunc to the Strategy interface.
func Func(name string, fn IntentFunc) Strategy {
	return funcStrategy{name: name, fn: fn}
}

type funcStrategy struct {
	name string
	fn   IntentFunc
}

func (f funcStrategy) Name() string { return f.name }

func (f funcStrategy) Intents(ctx context.Context, series domain.PriceSeries, positions map[string]domain.Position, now time.Time) (map[string]domain.Intent, error) {
	return f.fn(ctx, series, positions, now)
}

// Factory builds a fresh strategy from string parameters. Strategies with
// internal state must not be shared across concurrent runs, so the registry
// hands out a new instance per lookup.
type Factory func(params map[string]string) (Strategy, error)

// Registry holds a named collection of strategy factories.
type Registry struct {
	factories map[string]Factory
}

// NewRegistry creates an empty strategy Registry.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]Factory),
	}
}

// Register adds a factory under name, replacing any previous entry.
func (r *Registry) Register(name string, f Factory) {
	r.factories[name] = f
}

// RegisterStrategy registers a stateless strategy instance under its Name().
func (r *Registry) RegisterStrategy(s Strategy) {
	r.factories[s.Name()] = func(map[string]string) (Strategy, error) { return s, nil }
}

// Get builds the strategy registered under name. The second return value
// reports whether the name was found.
func (r *Registry) Get(name string, params map[string]string) (Strategy, bool, error) {
	f, ok := r.factories[name]
	if !ok {
		return nil, false, nil
	}
	s, err := f(params)
	return s, true, err
}

// List returns a sorted slice of all registered strategy names.
func (r *Registry) List() []string {
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
