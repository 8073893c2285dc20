package engine

import (
	"fmt"
)

// RiskManager enforces optional pre-trade limits on buys. A zero limit
// disables that rule.
type RiskManager struct {
	maxPositionPct  float64
	maxDailyLossPct float64
}

// NewRiskManager creates a RiskManager with the specified risk thresholds.
//
//   - maxPositionPct: maximum fraction of equity a single position may be
//     worth after the buy (e.g. 0.10 for 10%).
//   - maxDailyLossPct: no new buys once equity has fallen by this fraction
//     since the previous step (e.g. 0.02 for 2%).
func NewRiskManager(maxPositionPct, maxDailyLossPct float64) *RiskManager {
	return &RiskManager{
		maxPositionPct:  maxPositionPct,
		maxDailyLossPct: maxDailyLossPct,
	}
}

// BuyCheck is the state a buy is evaluated against.
type BuyCheck struct {
	Symbol         string
	PositionValue  float64 // value of the position after the buy, at fill price
	Equity         float64 // equity at the current step
	PreviousEquity float64 // equity at the previous step, 0 on the first step
}

// CheckBuy returns an error describing the first violated limit.
func (rm *RiskManager) CheckBuy(c BuyCheck) error {
	if rm == nil {
		return nil
	}
	if rm.maxPositionPct > 0 && c.Equity > 0 {
		if limit := c.Equity * rm.maxPositionPct; c.PositionValue > limit {
			return fmt.Errorf("%s position %.2f exceeds %.0f%% of equity (%.2f)",
				c.Symbol, c.PositionValue, rm.maxPositionPct*100, limit)
		}
	}
	if rm.maxDailyLossPct > 0 && c.PreviousEquity > 0 {
		if loss := (c.PreviousEquity - c.Equity) / c.PreviousEquity; loss > rm.maxDailyLossPct {
			return fmt.Errorf("step loss %.2f%% exceeds limit %.2f%%", loss*100, rm.maxDailyLossPct*100)
		}
	}
	return nil
}
