package domain

import (
	"fmt"
	"sort"
	"time"
)

// PriceSeries maps a symbol to its bars in ascending timestamp order.
// Coverage may differ between symbols.
type PriceSeries map[string][]Bar

// NewPriceSeries groups bars by symbol and sorts each group. Two bars for
// the same symbol and timestamp are an error.
func NewPriceSeries(bars []Bar) (PriceSeries, error) {
	ps := make(PriceSeries)
	for _, b := range bars {
		ps[b.Symbol] = append(ps[b.Symbol], b)
	}
	for sym, s := range ps {
		sort.SliceStable(s, func(i, j int) bool {
			return s[i].Timestamp.Before(s[j].Timestamp)
		})
		ps[sym] = s
	}
	if err := ps.Validate(); err != nil {
		return nil, err
	}
	return ps, nil
}

// Validate checks that every series is strictly ascending.
func (ps PriceSeries) Validate() error {
	for sym, s := range ps {
		for i := 1; i < len(s); i++ {
			if !s[i].Timestamp.After(s[i-1].Timestamp) {
				if s[i].Timestamp.Equal(s[i-1].Timestamp) {
					return fmt.Errorf("series %s: duplicate bar at %s", sym, s[i].Timestamp.Format(time.RFC3339))
				}
				return fmt.Errorf("series %s: bar %d at %s is out of order", sym, i, s[i].Timestamp.Format(time.RFC3339))
			}
		}
	}
	return nil
}

// Symbols returns the symbols in sorted order.
func (ps PriceSeries) Symbols() []string {
	syms := make([]string, 0, len(ps))
	for sym := range ps {
		syms = append(syms, sym)
	}
	sort.Strings(syms)
	return syms
}

// Len returns the total number of bars across all symbols.
func (ps PriceSeries) Len() int {
	n := 0
	for _, s := range ps {
		n += len(s)
	}
	return n
}

// Timestamps returns every timestamp present in any series, de-duplicated
// and ascending.
func (ps PriceSeries) Timestamps() []time.Time {
	seen := make(map[int64]time.Time)
	for _, s := range ps {
		for _, b := range s {
			seen[b.Timestamp.UnixNano()] = b.Timestamp
		}
	}
	out := make([]time.Time, 0, len(seen))
	for _, ts := range seen {
		out = append(out, ts)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}

// BarAt returns the bar for symbol at exactly ts.
func (ps PriceSeries) BarAt(symbol string, ts time.Time) (Bar, bool) {
	s := ps[symbol]
	i := sort.Search(len(s), func(i int) bool { return !s[i].Timestamp.Before(ts) })
	if i < len(s) && s[i].Timestamp.Equal(ts) {
		return s[i], true
	}
	return Bar{}, false
}

// Window returns the bars for symbol with timestamp at or before ts. The
// returned slice aliases the series and must not be modified.
func (ps PriceSeries) Window(symbol string, ts time.Time) []Bar {
	s := ps[symbol]
	i := sort.Search(len(s), func(i int) bool { return s[i].Timestamp.After(ts) })
	return s[:i:i]
}

// ClosesAt returns the closing price of every symbol that has a bar at
// exactly ts. Symbols without a bar are absent.
func (ps PriceSeries) ClosesAt(ts time.Time) map[string]float64 {
	prices := make(map[string]float64, len(ps))
	for sym := range ps {
		if b, ok := ps.BarAt(sym, ts); ok {
			prices[sym] = b.Close
		}
	}
	return prices
}
