package builtins

import (
	"context"
	"time"

	"algotrader/internal/domain"
	"algotrader/internal/strategy"
)

// BuyAndHoldName is the registry name of BuyAndHold.
const BuyAndHoldName = "buy-and-hold"

var _ strategy.Strategy = (*BuyAndHold)(nil)

// BuyAndHold buys every symbol it does not hold yet and never sells.
type BuyAndHold struct {
	qty float64
}

func NewBuyAndHold(qty float64) *BuyAndHold {
	return &BuyAndHold{qty: qty}
}

// NewBuyAndHoldFromParams reads "qty".
func NewBuyAndHoldFromParams(params map[string]string) (strategy.Strategy, error) {
	qty, err := floatParam(params, "qty", 0)
	if err != nil {
		return nil, err
	}
	return NewBuyAndHold(qty), nil
}

func (b *BuyAndHold) Name() string { return BuyAndHoldName }

func (b *BuyAndHold) Intents(_ context.Context, series domain.PriceSeries, positions map[string]domain.Position, now time.Time) (map[string]domain.Intent, error) {
	out := make(map[string]domain.Intent)
	for _, sym := range series.Symbols() {
		if _, held := positions[sym]; held {
			continue
		}
		if _, ok := series.BarAt(sym, now); ok {
			out[sym] = domain.Buy(sym, b.qty)
		}
	}
	return out, nil
}
