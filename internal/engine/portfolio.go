package engine

import (
	"sort"

	"github.com/shopspring/decimal"

	"algotrader/internal/domain"
)

// holding is the mutable state behind a domain.Position.
type holding struct {
	qty  float64
	cost decimal.Decimal // cumulative cost of the units still held
}

// Portfolio is the cash balance and open long positions of one run. Only
// the execution path in this package mutates it; everything else reads
// through the accessors.
type Portfolio struct {
	cash      decimal.Decimal
	positions map[string]*holding
}

// NewPortfolio returns a cash-only portfolio.
func NewPortfolio(initialCapital float64) *Portfolio {
	return &Portfolio{
		cash:      decimal.NewFromFloat(initialCapital),
		positions: make(map[string]*holding),
	}
}

// Cash returns the current cash balance.
func (p *Portfolio) Cash() float64 {
	return p.cash.InexactFloat64()
}

// Position returns the open position for symbol.
func (p *Portfolio) Position(symbol string) (domain.Position, bool) {
	h, ok := p.positions[symbol]
	if !ok {
		return domain.Position{}, false
	}
	return h.view(symbol), true
}

// Positions returns a copy of every open position keyed by symbol.
func (p *Portfolio) Positions() map[string]domain.Position {
	out := make(map[string]domain.Position, len(p.positions))
	for sym, h := range p.positions {
		out[sym] = h.view(sym)
	}
	return out
}

// Symbols returns the held symbols in sorted order.
func (p *Portfolio) Symbols() []string {
	syms := make([]string, 0, len(p.positions))
	for sym := range p.positions {
		syms = append(syms, sym)
	}
	sort.Strings(syms)
	return syms
}

// Value marks the portfolio to market. Positions without a price in prices
// contribute nothing for this valuation.
func (p *Portfolio) Value(prices map[string]float64) float64 {
	return p.value(prices).InexactFloat64()
}

func (p *Portfolio) value(prices map[string]float64) decimal.Decimal {
	total := p.cash
	for _, sym := range p.Symbols() {
		price, ok := prices[sym]
		if !ok {
			continue
		}
		total = total.Add(decimal.NewFromFloat(p.positions[sym].qty).Mul(decimal.NewFromFloat(price)))
	}
	return total
}

// CostBasisTotal returns the summed cumulative cost of all open positions.
func (p *Portfolio) CostBasisTotal() float64 {
	total := decimal.Zero
	for _, h := range p.positions {
		total = total.Add(h.cost)
	}
	return total.InexactFloat64()
}

// buy debits total from cash and merges qty into the position at a
// weighted-average cost. The caller has already checked total <= cash.
func (p *Portfolio) buy(symbol string, qty float64, total decimal.Decimal) {
	p.cash = p.cash.Sub(total)
	if h, ok := p.positions[symbol]; ok {
		h.qty += qty
		h.cost = h.cost.Add(total)
		return
	}
	p.positions[symbol] = &holding{qty: qty, cost: total}
}

// sell removes qty units, credits revenue and returns the cost released
// from the position. qty must not exceed the held quantity.
func (p *Portfolio) sell(symbol string, qty float64, revenue decimal.Decimal) decimal.Decimal {
	h := p.positions[symbol]
	p.cash = p.cash.Add(revenue)

	if qty >= h.qty {
		released := h.cost
		delete(p.positions, symbol)
		return released
	}

	released := h.cost.Mul(decimal.NewFromFloat(qty)).Div(decimal.NewFromFloat(h.qty))
	h.qty -= qty
	h.cost = h.cost.Sub(released)
	return released
}

func (h *holding) avgCost() decimal.Decimal {
	if h.qty <= 0 {
		return decimal.Zero
	}
	return h.cost.Div(decimal.NewFromFloat(h.qty))
}

func (h *holding) view(symbol string) domain.Position {
	return domain.Position{
		Symbol:         symbol,
		Qty:            h.qty,
		AvgCost:        h.avgCost().InexactFloat64(),
		CumulativeCost: h.cost.InexactFloat64(),
	}
}
