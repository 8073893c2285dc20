// Package feed loads price history for a backtest before the simulation
// starts. Every loader fails fast: a fetch error or a symbol without data
// aborts the load, so the engine never runs on a partial universe.
package feed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"algotrader/internal/domain"
	"algotrader/internal/store"
)

// ErrNoBars is returned when a requested symbol has no bars in the range.
var ErrNoBars = errors.New("no bars")

// Loader supplies a complete PriceSeries for symbols within [start, end].
type Loader interface {
	Load(ctx context.Context, symbols []string, start, end time.Time) (domain.PriceSeries, error)
}

// normalize upper-cases and de-duplicates symbols, preserving order, checks
// the range and widens end to the close of its day.
func normalize(symbols []string, start, end time.Time) ([]string, time.Time, error) {
	if end.Before(start) {
		return nil, end, fmt.Errorf("end %s is before start %s", end.Format(time.DateOnly), start.Format(time.DateOnly))
	}
	seen := make(map[string]struct{}, len(symbols))
	out := make([]string, 0, len(symbols))
	for _, s := range symbols {
		s = strings.ToUpper(strings.TrimSpace(s))
		if s == "" {
			continue
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	if len(out) == 0 {
		return nil, end, errors.New("no symbols requested")
	}
	return out, EndOfDay(end), nil
}

// EndOfDay returns the last instant of t's UTC calendar day. Range ends are
// dates and inclusive, while daily bars are stamped at midnight New York
// time (04:00 or 05:00 UTC), so a bare date would exclude its own bar.
func EndOfDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d+1, 0, 0, 0, 0, time.UTC).Add(-time.Nanosecond)
}

// StoreLoader reads bars from a BarStore only.
type StoreLoader struct {
	Store  store.BarStore
	Market domain.Market
}

// Load reads every symbol from the store.
func (l *StoreLoader) Load(ctx context.Context, symbols []string, start, end time.Time) (domain.PriceSeries, error) {
	symbols, end, err := normalize(symbols, start, end)
	if err != nil {
		return nil, err
	}
	var all []domain.Bar
	for _, sym := range symbols {
		bars, err := l.Store.ReadBars(ctx, l.market(), sym, start, end)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", sym, err)
		}
		if len(bars) == 0 {
			return nil, fmt.Errorf("%w for %s between %s and %s", ErrNoBars, sym,
				start.Format(time.DateOnly), end.Format(time.DateOnly))
		}
		all = append(all, bars...)
	}
	return domain.NewPriceSeries(all)
}

func (l *StoreLoader) market() domain.Market {
	if l.Market == "" {
		return domain.MarketUS
	}
	return l.Market
}

// CachedLoader serves symbols whose cached bars cover the requested range
// and fetches the others from Remote in full. Remote is expected to write
// what it fetches back to the store.
type CachedLoader struct {
	Store  store.BarStore
	Remote Loader
	Market domain.Market
	Log    *slog.Logger
}

// Load reads fully cached symbols and fetches the rest in one remote call.
func (l *CachedLoader) Load(ctx context.Context, symbols []string, start, end time.Time) (domain.PriceSeries, error) {
	symbols, end, err := normalize(symbols, start, end)
	if err != nil {
		return nil, err
	}
	local := &StoreLoader{Store: l.Store, Market: l.Market}

	var all []domain.Bar
	var missing []string
	for _, sym := range symbols {
		bars, err := l.Store.ReadBars(ctx, local.market(), sym, start, end)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", sym, err)
		}
		if !covers(bars, start, end) {
			missing = append(missing, sym)
			continue
		}
		all = append(all, bars...)
	}

	if len(missing) > 0 {
		l.logger().Info("fetching uncached or partially cached symbols", "symbols", missing)
		fetched, err := l.Remote.Load(ctx, missing, start, end)
		if err != nil {
			return nil, err
		}
		for _, sym := range fetched.Symbols() {
			all = append(all, fetched[sym]...)
		}
	}
	return domain.NewPriceSeries(all)
}

// maxUncoveredWeekdays is how many consecutive weekdays may lack a cached
// bar, at either end of the range or between two bars, before the cache is
// treated as incomplete. One absorbs a market holiday.
const maxUncoveredWeekdays = 1

// covers reports whether bars, sorted by time, plausibly hold every session
// in [start, end]. Bars are compared by UTC calendar date.
func covers(bars []domain.Bar, start, end time.Time) bool {
	if len(bars) == 0 {
		return false
	}
	next := dateOf(start)
	for _, b := range bars {
		d := dateOf(b.Timestamp)
		if weekdaysBetween(next, d) > maxUncoveredWeekdays {
			return false
		}
		next = d.AddDate(0, 0, 1)
	}
	return weekdaysBetween(next, dateOf(end).AddDate(0, 0, 1)) <= maxUncoveredWeekdays
}

func dateOf(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// weekdaysBetween counts Monday to Friday dates in [from, to).
func weekdaysBetween(from, to time.Time) int {
	n := 0
	for d := from; d.Before(to); d = d.AddDate(0, 0, 1) {
		if wd := d.Weekday(); wd != time.Saturday && wd != time.Sunday {
			n++
		}
	}
	return n
}

func (l *CachedLoader) logger() *slog.Logger {
	if l.Log != nil {
		return l.Log
	}
	return slog.Default().With("component", "feed")
}
