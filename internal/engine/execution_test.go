package engine

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"algotrader/internal/domain"
)

func TestApplyIntentBuyWithFrictions(t *testing.T) {
	p := NewPortfolio(10000)
	f := Frictions{CommissionRate: 0.01, SlippageRate: 0.02}

	tr, ok := ApplyIntent(domain.Buy("AAPL", 10), map[string]float64{"AAPL": 100}, p, f, day(0))
	require.True(t, ok)

	// fill 102, gross 1020, total 1030.2
	assert.InDelta(t, 102.0, tr.FillPrice, 1e-9)
	assert.InDelta(t, 1030.2, tr.Amount, 1e-9)
	assert.InDelta(t, 10.2, tr.Commission, 1e-9)
	assert.Equal(t, 100.0, tr.Price)
	assert.Zero(t, tr.CostBasis)
	assert.Zero(t, tr.RealizedPnL)
	assert.InDelta(t, 8969.8, p.Cash(), 1e-9)

	pos, ok := p.Position("AAPL")
	require.True(t, ok)
	assert.InDelta(t, 103.02, pos.AvgCost, 1e-9)
}

func TestApplyIntentSellWithFrictions(t *testing.T) {
	p := NewPortfolio(1000)
	_, ok := ApplyIntent(domain.Buy("AAPL", 10), map[string]float64{"AAPL": 100}, p, Frictions{}, day(0))
	require.True(t, ok)

	f := Frictions{CommissionRate: 0.01, SlippageRate: 0.02}
	tr, ok := ApplyIntent(domain.Sell("AAPL", 4), map[string]float64{"AAPL": 150}, p, f, day(1))
	require.True(t, ok)

	// fill 147, gross 588, revenue 582.12
	assert.InDelta(t, 147.0, tr.FillPrice, 1e-9)
	assert.InDelta(t, 582.12, tr.Amount, 1e-9)
	assert.InDelta(t, 5.88, tr.Commission, 1e-9)
	assert.InDelta(t, 100.0, tr.CostBasis, 1e-9)
	assert.InDelta(t, 582.12-400, tr.RealizedPnL, 1e-9)

	pos, ok := p.Position("AAPL")
	require.True(t, ok)
	assert.Equal(t, 6.0, pos.Qty)
	assert.InDelta(t, 600.0, pos.CumulativeCost, 1e-9)
	assert.InDelta(t, 100.0, pos.AvgCost, 1e-9)
	assert.InDelta(t, 582.12, p.Cash(), 1e-9)
}

func TestApplyIntentSellDefaultsToFullPosition(t *testing.T) {
	p := NewPortfolio(1000)
	ApplyIntent(domain.Buy("AAPL", 3), map[string]float64{"AAPL": 10}, p, Frictions{}, day(0))

	tr, ok := ApplyIntent(domain.Intent{Symbol: "AAPL", Action: domain.ActionSell}, map[string]float64{"AAPL": 12}, p, Frictions{}, day(1))
	require.True(t, ok)
	assert.Equal(t, 3.0, tr.Qty)
	assert.InDelta(t, 6.0, tr.RealizedPnL, 1e-9)

	_, held := p.Position("AAPL")
	assert.False(t, held, "a fully closed position is removed")
	assert.InDelta(t, 1006.0, p.Cash(), 1e-9)
}

func TestApplyIntentSellClampsToHeld(t *testing.T) {
	p := NewPortfolio(1000)
	ApplyIntent(domain.Buy("AAPL", 2), map[string]float64{"AAPL": 10}, p, Frictions{}, day(0))

	tr, ok := ApplyIntent(domain.Sell("AAPL", 50), map[string]float64{"AAPL": 10}, p, Frictions{}, day(1))
	require.True(t, ok)
	assert.Equal(t, 2.0, tr.Qty)
	assert.Empty(t, p.Positions())
}

func TestApplyIntentBuyDefaultQty(t *testing.T) {
	prices := map[string]float64{"AAPL": 10}
	in := domain.Intent{Symbol: "AAPL", Action: domain.ActionBuy}

	p := NewPortfolio(1000)
	tr, ok := ApplyIntent(in, prices, p, Frictions{}, day(0))
	require.True(t, ok)
	assert.Equal(t, 1.0, tr.Qty)

	tr, ok = ApplyIntent(in, prices, p, Frictions{DefaultQty: 5}, day(0))
	require.True(t, ok)
	assert.Equal(t, 5.0, tr.Qty)
}

func TestApplyIntentRejections(t *testing.T) {
	prices := map[string]float64{"AAPL": 10, "ZERO": 0, "NAN": math.NaN()}
	neg := -3.0
	nan := math.NaN()

	tests := []struct {
		name string
		in   domain.Intent
	}{
		{"hold", domain.Hold("AAPL")},
		{"unknown action", domain.Intent{Symbol: "AAPL", Action: domain.Action("short")}},
		{"unpriced", domain.Buy("MSFT", 1)},
		{"zero price", domain.Buy("ZERO", 1)},
		{"nan price", domain.Buy("NAN", 1)},
		{"negative buy qty", domain.Intent{Symbol: "AAPL", Action: domain.ActionBuy, Quantity: &neg}},
		{"nan buy qty", domain.Intent{Symbol: "AAPL", Action: domain.ActionBuy, Quantity: &nan}},
		{"sell without position", domain.Sell("AAPL", 1)},
		{"buy over cash", domain.Buy("AAPL", 101)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewPortfolio(1000)
			_, ok := ApplyIntent(tt.in, prices, p, Frictions{}, day(0))
			assert.False(t, ok)
			assert.Equal(t, 1000.0, p.Cash())
			assert.Empty(t, p.Positions())
		})
	}
}

func TestApplyIntentSellInvalidQtyKeepsPosition(t *testing.T) {
	p := NewPortfolio(100)
	ApplyIntent(domain.Buy("AAPL", 2), map[string]float64{"AAPL": 10}, p, Frictions{}, day(0))

	neg := -1.0
	_, ok := ApplyIntent(domain.Intent{Symbol: "AAPL", Action: domain.ActionSell, Quantity: &neg}, map[string]float64{"AAPL": 10}, p, Frictions{}, day(1))
	assert.False(t, ok)
	pos, _ := p.Position("AAPL")
	assert.Equal(t, 2.0, pos.Qty)
}

func TestBuyExactlyAllCash(t *testing.T) {
	p := NewPortfolio(1000)
	_, ok := ApplyIntent(domain.Buy("AAPL", 10), map[string]float64{"AAPL": 100}, p, Frictions{}, day(0))
	require.True(t, ok)
	assert.Zero(t, p.Cash())
}

func TestPortfolioValueAndCostBasis(t *testing.T) {
	p := NewPortfolio(1000)
	ApplyIntent(domain.Buy("AAPL", 2), map[string]float64{"AAPL": 100}, p, Frictions{}, day(0))
	ApplyIntent(domain.Buy("MSFT", 1), map[string]float64{"MSFT": 300}, p, Frictions{}, day(0))

	assert.Equal(t, []string{"AAPL", "MSFT"}, p.Symbols())
	assert.InDelta(t, 500.0, p.CostBasisTotal(), 1e-9)
	assert.InDelta(t, 400+220+330, p.Value(map[string]float64{"AAPL": 110, "MSFT": 330}), 1e-9)
	assert.InDelta(t, 400+220, p.Value(map[string]float64{"AAPL": 110}), 1e-9)
}

func TestRiskManager(t *testing.T) {
	var nilRM *RiskManager
	assert.NoError(t, nilRM.CheckBuy(BuyCheck{PositionValue: 1e9, Equity: 1}))

	rm := NewRiskManager(0.1, 0.02)
	assert.NoError(t, rm.CheckBuy(BuyCheck{Symbol: "A", PositionValue: 100, Equity: 1000}))
	assert.Error(t, rm.CheckBuy(BuyCheck{Symbol: "A", PositionValue: 101, Equity: 1000}))

	// 3% drop since the previous step blocks new buys.
	assert.Error(t, rm.CheckBuy(BuyCheck{Symbol: "A", PositionValue: 10, Equity: 970, PreviousEquity: 1000}))
	assert.NoError(t, rm.CheckBuy(BuyCheck{Symbol: "A", PositionValue: 10, Equity: 990, PreviousEquity: 1000}))

	off := NewRiskManager(0, 0)
	assert.NoError(t, off.CheckBuy(BuyCheck{PositionValue: 1e9, Equity: 1, PreviousEquity: 1e9}))
}
