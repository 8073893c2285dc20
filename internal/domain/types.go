// Package domain defines the core value types shared across the backtesting
// platform: bars, intents, positions, trades and equity points.
package domain

import "time"

// Market identifies the exchange group a bar belongs to.
type Market string

// MarketUS is the default market of the Alpaca feed.
const MarketUS Market = "us"

// Bar is one OHLCV observation for one instrument at one timestamp.
type Bar struct {
	Symbol     string
	Timestamp  time.Time
	Open       float64
	High       float64
	Low        float64
	Close      float64
	Volume     int64
	TradeCount int64
	VWAP       float64
}

// Action is what a strategy wants done with an instrument on a step.
type Action string

const (
	ActionBuy  Action = "buy"
	ActionSell Action = "sell"
	ActionHold Action = "hold"
)

// Intent is a strategy's desired action for one instrument on one step,
// before execution-time validation.
type Intent struct {
	Symbol string
	Action Action
	// Quantity is nil when the strategy leaves sizing to the engine.
	Quantity *float64
}

// Buy returns a buy intent. A non-positive qty leaves sizing to the engine.
func Buy(symbol string, qty float64) Intent {
	return Intent{Symbol: symbol, Action: ActionBuy, Quantity: qtyPtr(qty)}
}

// Sell returns a sell intent. A non-positive qty sells the whole position.
func Sell(symbol string, qty float64) Intent {
	return Intent{Symbol: symbol, Action: ActionSell, Quantity: qtyPtr(qty)}
}

// Hold returns a no-op intent.
func Hold(symbol string) Intent {
	return Intent{Symbol: symbol, Action: ActionHold}
}

func qtyPtr(qty float64) *float64 {
	if qty <= 0 {
		return nil
	}
	return &qty
}

// Position is a read-only view of an open long position.
type Position struct {
	Symbol         string
	Qty            float64
	AvgCost        float64
	CumulativeCost float64
}

// Trade is one executed ledger entry. Amount is the total cash paid for a
// buy (fees included) or the net cash received for a sell.
type Trade struct {
	Timestamp  time.Time
	Symbol     string
	Action     Action
	Qty        float64
	Price      float64 // close the fill was derived from
	FillPrice  float64 // close adjusted for slippage
	Commission float64
	Amount     float64
	// CostBasis is the position's average cost immediately before a sell.
	// Zero for buys.
	CostBasis   float64
	RealizedPnL float64
}

// EquityPoint is the marked-to-market portfolio value at one step.
type EquityPoint struct {
	Timestamp time.Time
	Value     float64
	Cash      float64
}
