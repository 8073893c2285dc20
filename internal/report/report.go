// Package report prints backtest results as console tables.
package report

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"

	"algotrader/internal/analytics"
	"algotrader/internal/backtest"
	"algotrader/internal/domain"
)

// Summary prints the headline statistics of one run.
func Summary(w io.Writer, run *backtest.Run) {
	req := run.Request
	fmt.Fprintf(w, "\nBacktest %s: %s on %s, %s to %s\n",
		run.ID, req.Strategy, strings.Join(req.Symbols, ","),
		date(req.Start), date(req.End))

	r := run.Report
	table := tablewriter.NewWriter(w)
	table.Header("Metric", "Value")
	rows := [][2]string{
		{"Initial capital", money(r.InitialCapital)},
		{"Final value", money(r.FinalValue)},
		{"Total return", pct(r.TotalReturn)},
		{"Annualized return", pct(r.AnnualizedReturn)},
		{"Sharpe ratio", fmt.Sprintf("%.2f", r.SharpeRatio)},
		{"Volatility", pct(r.Volatility)},
		{"Max drawdown", pct(r.MaxDrawdown)},
		{"Periods", strconv.Itoa(r.Periods)},
		{"Trades", strconv.Itoa(r.TradeCount)},
		{"Closed trades", strconv.Itoa(r.ClosedTrades)},
		{"Win rate", pct(r.WinRate)},
		{"Avg profit / closed trade", money(r.AvgProfitPerClosedTrade)},
		{"Avg trade size", money(r.AvgTradeSize)},
	}
	for _, row := range rows {
		table.Append(row[0], row[1])
	}
	table.Render()
}

// Trades prints the trade ledger.
func Trades(w io.Writer, trades []domain.Trade) {
	if len(trades) == 0 {
		fmt.Fprintln(w, "No trades.")
		return
	}
	table := tablewriter.NewWriter(w)
	table.Header("Date", "Symbol", "Action", "Qty", "Close", "Fill", "Fees", "Amount", "P&L")
	for _, t := range trades {
		pnl := ""
		if t.Action == domain.ActionSell {
			pnl = money(t.RealizedPnL)
		}
		table.Append(
			date(t.Timestamp),
			t.Symbol,
			string(t.Action),
			strconv.FormatFloat(t.Qty, 'f', -1, 64),
			fmt.Sprintf("%.2f", t.Price),
			fmt.Sprintf("%.4f", t.FillPrice),
			money(t.Commission),
			money(t.Amount),
			pnl,
		)
	}
	table.Render()
}

// Sweep prints one row per run, in the given order.
func Sweep(w io.Writer, runs []*backtest.Run) {
	table := tablewriter.NewWriter(w)
	table.Header("#", "Strategy", "Params", "Return", "Sharpe", "Max DD", "Trades", "Win rate")
	for i, run := range runs {
		r := run.Report
		table.Append(
			strconv.Itoa(i+1),
			run.Request.Strategy,
			Params(run.Request.Params),
			pct(r.TotalReturn),
			fmt.Sprintf("%.2f", r.SharpeRatio),
			pct(r.MaxDrawdown),
			strconv.Itoa(r.TradeCount),
			pct(r.WinRate),
		)
	}
	table.Render()
}

// Best returns the run with the highest Sharpe ratio, ties going to the
// earlier run.
func Best(runs []*backtest.Run) *backtest.Run {
	var best *backtest.Run
	for _, run := range runs {
		if best == nil || run.Report.SharpeRatio > best.Report.SharpeRatio {
			best = run
		}
	}
	return best
}

// Params formats a parameter set as k=v pairs in key order.
func Params(p map[string]string) string {
	if len(p) == 0 {
		return "-"
	}
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + "=" + p[k]
	}
	return strings.Join(parts, " ")
}

// Compact is a one-line rendering of r for logs.
func Compact(r analytics.Report) string {
	return fmt.Sprintf("return=%s sharpe=%.2f maxdd=%s trades=%d",
		pct(r.TotalReturn), r.SharpeRatio, pct(r.MaxDrawdown), r.TradeCount)
}

func money(v float64) string { return fmt.Sprintf("$%.2f", v) }
func pct(v float64) string   { return fmt.Sprintf("%.2f%%", v*100) }

func date(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format(time.DateOnly)
}
