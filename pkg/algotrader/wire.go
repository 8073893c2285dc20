// Package algotrader is the Go client for the algotrader backtest server.
//
// Messages travel as google.protobuf.Struct values; the types in this file
// define their shape.
package algotrader

import (
	"encoding/json"
	"fmt"

	"google.golang.org/protobuf/types/known/structpb"
)

// gRPC names of the backtest service.
const (
	ServiceName          = "algotrader.Backtest"
	RunMethod            = "/algotrader.Backtest/Run"
	ListStrategiesMethod = "/algotrader.Backtest/ListStrategies"
)

// RunRequest asks the server for one backtest. Nil rate and limit fields,
// and zero capital, quantity or periods, take the server's configured
// defaults. Start and End are inclusive YYYY-MM-DD dates; an empty End means
// the latest finished trading day.
type RunRequest struct {
	Strategy        string            `json:"strategy"`
	Params          map[string]string `json:"params,omitempty"`
	Symbols         []string          `json:"symbols"`
	Start           string            `json:"start"`
	End             string            `json:"end,omitempty"`
	InitialCapital  float64           `json:"initial_capital,omitempty"`
	CommissionRate  *float64          `json:"commission_rate,omitempty"`
	SlippageRate    *float64          `json:"slippage_rate,omitempty"`
	DefaultQty      float64           `json:"default_qty,omitempty"`
	MaxPositionPct  *float64          `json:"max_position_pct,omitempty"`
	MaxDailyLossPct *float64          `json:"max_daily_loss_pct,omitempty"`
	PeriodsPerYear  float64           `json:"periods_per_year,omitempty"`
	IncludeTrades   bool              `json:"include_trades,omitempty"`
	IncludeEquity   bool              `json:"include_equity,omitempty"`
}

// Float returns a pointer to v, for the optional fields of RunRequest.
func Float(v float64) *float64 { return &v }

// Report mirrors the server's performance summary.
type Report struct {
	InitialCapital          float64 `json:"initial_capital"`
	FinalValue              float64 `json:"final_value"`
	TotalReturn             float64 `json:"total_return"`
	AnnualizedReturn        float64 `json:"annualized_return"`
	SharpeRatio             float64 `json:"sharpe_ratio"`
	Volatility              float64 `json:"volatility"`
	MaxDrawdown             float64 `json:"max_drawdown"`
	Periods                 int     `json:"periods"`
	TradeCount              int     `json:"trade_count"`
	ClosedTrades            int     `json:"closed_trades"`
	WinRate                 float64 `json:"win_rate"`
	AvgProfitPerClosedTrade float64 `json:"avg_profit_per_closed_trade"`
	AvgTradeSize            float64 `json:"avg_trade_size"`
}

// Trade is one ledger entry.
type Trade struct {
	Time        string  `json:"time"` // RFC 3339
	Symbol      string  `json:"symbol"`
	Action      string  `json:"action"`
	Qty         float64 `json:"qty"`
	Price       float64 `json:"price"`
	FillPrice   float64 `json:"fill_price"`
	Commission  float64 `json:"commission"`
	Amount      float64 `json:"amount"`
	CostBasis   float64 `json:"cost_basis,omitempty"`
	RealizedPnL float64 `json:"realized_pnl,omitempty"`
}

// EquityPoint is one step of the equity curve.
type EquityPoint struct {
	Time  string  `json:"time"`
	Value float64 `json:"value"`
	Cash  float64 `json:"cash"`
}

// RunResult is the server's answer to a RunRequest.
type RunResult struct {
	ID       string        `json:"id"`
	Strategy string        `json:"strategy"`
	Report   Report        `json:"report"`
	Trades   []Trade       `json:"trades,omitempty"`
	Equity   []EquityPoint `json:"equity,omitempty"`
}

// StrategyList is the answer to ListStrategies.
type StrategyList struct {
	Names []string `json:"names"`
}

// ToStruct encodes v, a JSON-tagged struct, as a protobuf Struct.
func ToStruct(v any) (*structpb.Struct, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("%T does not encode to an object: %w", v, err)
	}
	return structpb.NewStruct(m)
}

// FromStruct decodes s into v, a pointer to a JSON-tagged struct.
func FromStruct(s *structpb.Struct, v any) error {
	raw, err := json.Marshal(s.AsMap())
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, v)
}
