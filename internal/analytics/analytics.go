// Package analytics derives return, risk and trade statistics from the
// equity curve and trade ledger of a finished backtest.
package analytics

import (
	"math"

	"algotrader/internal/domain"
	"algotrader/internal/engine"
)

// DefaultPeriodsPerYear assumes daily bars on a US equity calendar.
const DefaultPeriodsPerYear = 252

// Options tune the annualisation of returns and volatility.
type Options struct {
	// PeriodsPerYear is the number of equity steps in a year. Zero means
	// DefaultPeriodsPerYear; weekly data wants 52, hourly data far more.
	PeriodsPerYear float64
}

func (o Options) periods() float64 {
	if o.PeriodsPerYear > 0 {
		return o.PeriodsPerYear
	}
	return DefaultPeriodsPerYear
}

// Report is the summary of one run. Ratios are fractions, not percents.
type Report struct {
	InitialCapital   float64
	FinalValue       float64
	TotalReturn      float64
	AnnualizedReturn float64
	// SharpeRatio is 0 when there are fewer than two returns or they have
	// zero dispersion.
	SharpeRatio float64
	Volatility  float64 // annualised stdev of step returns
	// MaxDrawdown is in [-1, 0].
	MaxDrawdown float64
	Periods     int

	TradeCount              int
	ClosedTrades            int // sells
	WinRate                 float64
	AvgProfitPerClosedTrade float64
	AvgTradeSize            float64 // mean buy amount
}

// Compute builds the Report for res. Empty and single-point curves yield
// zero statistics rather than NaN.
func Compute(res *engine.Result, opts Options) Report {
	r := Report{
		InitialCapital: res.InitialCapital,
		FinalValue:     res.FinalValue(),
		Periods:        len(res.Equity),
	}

	values := make([]float64, len(res.Equity))
	for i, pt := range res.Equity {
		values[i] = pt.Value
	}

	if len(values) > 0 && res.InitialCapital > 0 {
		r.TotalReturn = r.FinalValue/res.InitialCapital - 1
		r.AnnualizedReturn = Annualize(r.TotalReturn, len(values), opts.periods())
	}

	rets := Returns(values)
	mu, sd := meanStdev(rets)
	if sd > 0 {
		r.SharpeRatio = mu / sd * math.Sqrt(opts.periods())
		r.Volatility = sd * math.Sqrt(opts.periods())
	}
	r.MaxDrawdown = MaxDrawdown(values)

	tradeStats(res.Trades, &r)
	return r
}

// Returns computes simple step returns. A step whose previous value is not
// positive is skipped.
func Returns(values []float64) []float64 {
	if len(values) < 2 {
		return nil
	}
	out := make([]float64, 0, len(values)-1)
	for i := 1; i < len(values); i++ {
		if values[i-1] <= 0 {
			continue
		}
		out = append(out, values[i]/values[i-1]-1)
	}
	return out
}

// Annualize converts a total return earned over n periods into a yearly
// rate given periodsPerYear.
func Annualize(total float64, n int, periodsPerYear float64) float64 {
	if n <= 0 || periodsPerYear <= 0 {
		return 0
	}
	growth := 1 + total
	if growth <= 0 {
		return -1
	}
	return math.Pow(growth, periodsPerYear/float64(n)) - 1
}

// MaxDrawdown returns the worst peak-to-trough decline as a non-positive
// fraction.
func MaxDrawdown(values []float64) float64 {
	peak, worst := 0.0, 0.0
	for _, v := range values {
		if v > peak {
			peak = v
		}
		if peak <= 0 {
			continue
		}
		if dd := v/peak - 1; dd < worst {
			worst = dd
		}
	}
	return math.Max(worst, -1)
}

// meanStdev returns the mean and the sample standard deviation. The
// deviation is 0 with fewer than two samples.
func meanStdev(xs []float64) (float64, float64) {
	if len(xs) == 0 {
		return 0, 0
	}
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	mu := sum / float64(len(xs))
	if len(xs) < 2 {
		return mu, 0
	}
	ss := 0.0
	for _, x := range xs {
		ss += (x - mu) * (x - mu)
	}
	return mu, math.Sqrt(ss / float64(len(xs)-1))
}

func tradeStats(trades []domain.Trade, r *Report) {
	r.TradeCount = len(trades)

	var buys int
	var bought, profit float64
	var wins int
	for _, t := range trades {
		switch t.Action {
		case domain.ActionBuy:
			buys++
			bought += t.Amount
		case domain.ActionSell:
			r.ClosedTrades++
			profit += t.RealizedPnL
			if t.RealizedPnL > 0 {
				wins++
			}
		}
	}
	if buys > 0 {
		r.AvgTradeSize = bought / float64(buys)
	}
	if r.ClosedTrades > 0 {
		r.WinRate = float64(wins) / float64(r.ClosedTrades)
		r.AvgProfitPerClosedTrade = profit / float64(r.ClosedTrades)
	}
}
