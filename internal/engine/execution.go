package engine

import (
	"log/slog"
	"math"
	"time"

	"github.com/shopspring/decimal"

	"algotrader/internal/domain"
)

var one = decimal.NewFromInt(1)

// Frictions are the execution costs applied to every fill.
type Frictions struct {
	CommissionRate float64 // fraction of notional, e.g. 0.001
	SlippageRate   float64 // adverse price move as a fraction of the close
	// DefaultQty is the buy size used when an intent carries no quantity.
	// Zero means 1 unit.
	DefaultQty float64
}

func (f Frictions) defaultQty() float64 {
	if f.DefaultQty > 0 {
		return f.DefaultQty
	}
	return 1
}

// executor turns intents into trades against a Portfolio.
type executor struct {
	frictions Frictions
	risk      *RiskManager
	log       *slog.Logger
}

// newExecutor creates an executor. risk may be nil.
func newExecutor(f Frictions, risk *RiskManager, log *slog.Logger) *executor {
	if log == nil {
		log = slog.Default()
	}
	return &executor{frictions: f, risk: risk, log: log}
}

// ApplyIntent executes a single intent without risk limits. It reports
// false when the intent was skipped, rejected or a hold.
func ApplyIntent(in domain.Intent, prices map[string]float64, p *Portfolio, f Frictions, now time.Time) (domain.Trade, bool) {
	return newExecutor(f, nil, slog.Default()).apply(in, prices, p, stepState{now: now})
}

// stepState carries per-step context the risk rules need.
type stepState struct {
	now            time.Time
	equity         float64
	previousEquity float64
}

// apply executes in against p at the prices of the current step.
func (x *executor) apply(in domain.Intent, prices map[string]float64, p *Portfolio, st stepState) (domain.Trade, bool) {
	last, ok := prices[in.Symbol]
	if !ok || last <= 0 || math.IsNaN(last) || math.IsInf(last, 0) {
		if in.Action == domain.ActionBuy || in.Action == domain.ActionSell {
			x.log.Debug("intent skipped: no price", "symbol", in.Symbol, "action", in.Action, "time", st.now)
		}
		return domain.Trade{}, false
	}

	switch in.Action {
	case domain.ActionBuy:
		return x.buy(in, last, p, st)
	case domain.ActionSell:
		return x.sell(in, last, p, st)
	default:
		return domain.Trade{}, false
	}
}

func (x *executor) buy(in domain.Intent, last float64, p *Portfolio, st stepState) (domain.Trade, bool) {
	qty := x.frictions.defaultQty()
	if in.Quantity != nil {
		qty = *in.Quantity
	}
	if !validQty(qty) {
		x.log.Debug("buy rejected: invalid quantity", "symbol", in.Symbol, "qty", qty)
		return domain.Trade{}, false
	}

	fill := decimal.NewFromFloat(last).Mul(one.Add(decimal.NewFromFloat(x.frictions.SlippageRate)))
	gross := fill.Mul(decimal.NewFromFloat(qty))
	total := gross.Mul(one.Add(decimal.NewFromFloat(x.frictions.CommissionRate)))

	if total.GreaterThan(p.cash) {
		x.log.Debug("buy rejected: insufficient cash",
			"symbol", in.Symbol, "qty", qty, "cost", total.InexactFloat64(), "cash", p.Cash())
		return domain.Trade{}, false
	}

	if x.risk != nil {
		held := 0.0
		if h, ok := p.positions[in.Symbol]; ok {
			held = h.qty
		}
		err := x.risk.CheckBuy(BuyCheck{
			Symbol:         in.Symbol,
			PositionValue:  (held + qty) * fill.InexactFloat64(),
			Equity:         st.equity,
			PreviousEquity: st.previousEquity,
		})
		if err != nil {
			x.log.Debug("buy rejected by risk limits", "symbol", in.Symbol, "err", err)
			return domain.Trade{}, false
		}
	}

	p.buy(in.Symbol, qty, total)

	return domain.Trade{
		Timestamp:  st.now,
		Symbol:     in.Symbol,
		Action:     domain.ActionBuy,
		Qty:        qty,
		Price:      last,
		FillPrice:  fill.InexactFloat64(),
		Commission: total.Sub(gross).InexactFloat64(),
		Amount:     total.InexactFloat64(),
	}, true
}

func (x *executor) sell(in domain.Intent, last float64, p *Portfolio, st stepState) (domain.Trade, bool) {
	h, ok := p.positions[in.Symbol]
	if !ok {
		x.log.Debug("sell skipped: no position", "symbol", in.Symbol)
		return domain.Trade{}, false
	}

	qty := h.qty
	if in.Quantity != nil {
		if !validQty(*in.Quantity) {
			x.log.Debug("sell rejected: invalid quantity", "symbol", in.Symbol, "qty", *in.Quantity)
			return domain.Trade{}, false
		}
		qty = math.Min(*in.Quantity, h.qty)
	}

	costBasis := h.avgCost()
	fill := decimal.NewFromFloat(last).Mul(one.Sub(decimal.NewFromFloat(x.frictions.SlippageRate)))
	gross := fill.Mul(decimal.NewFromFloat(qty))
	revenue := gross.Mul(one.Sub(decimal.NewFromFloat(x.frictions.CommissionRate)))

	released := p.sell(in.Symbol, qty, revenue)

	return domain.Trade{
		Timestamp:   st.now,
		Symbol:      in.Symbol,
		Action:      domain.ActionSell,
		Qty:         qty,
		Price:       last,
		FillPrice:   fill.InexactFloat64(),
		Commission:  gross.Sub(revenue).InexactFloat64(),
		Amount:      revenue.InexactFloat64(),
		CostBasis:   costBasis.InexactFloat64(),
		RealizedPnL: revenue.Sub(released).InexactFloat64(),
	}, true
}

func validQty(q float64) bool {
	return q > 0 && !math.IsNaN(q) && !math.IsInf(q, 0)
}
