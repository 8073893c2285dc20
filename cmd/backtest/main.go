// Command backtest runs one strategy, or a parameter sweep, over daily bars
// and prints the results.
//
//	backtest -strategy sma-cross -symbols AAPL,MSFT -start 2023-01-01
//	backtest -strategy momentum -symbols SPY -sweep lookback=10,20,40 -sweep threshold=0.02,0.05
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"algotrader/internal/analytics"
	"algotrader/internal/backtest"
	"algotrader/internal/config"
	"algotrader/internal/engine"
	"algotrader/internal/feed"
	"algotrader/internal/report"
	"algotrader/internal/store"
	"algotrader/internal/strategy/builtins"
	"algotrader/internal/sweep"
	"algotrader/internal/util"
)

// kvFlag collects repeated key=value flags.
type kvFlag map[string]string

func (f kvFlag) String() string {
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k+"="+f[k])
	}
	sort.Strings(keys)
	return strings.Join(keys, ",")
}

func (f kvFlag) Set(s string) error {
	k, v, ok := strings.Cut(s, "=")
	if !ok || k == "" {
		return fmt.Errorf("want key=value, got %q", s)
	}
	f[k] = v
	return nil
}

func main() {
	params := kvFlag{}
	grid := kvFlag{}

	cfgPath := flag.String("config", os.Getenv(config.PathEnv), "YAML config file")
	strategyName := flag.String("strategy", "", "strategy name (default from config)")
	symbols := flag.String("symbols", "", "comma-separated symbols (default from config)")
	start := flag.String("start", "", "first date, YYYY-MM-DD")
	end := flag.String("end", "", "last date, YYYY-MM-DD (default: latest finished trading day)")
	capital := flag.Float64("capital", 0, "initial capital")
	commission := flag.Float64("commission", -1, "commission rate, e.g. 0.001")
	slippage := flag.Float64("slippage", -1, "slippage rate, e.g. 0.0005")
	qty := flag.Float64("qty", 0, "default buy quantity")
	showTrades := flag.Bool("trades", false, "print the trade ledger")
	workers := flag.Int("workers", 4, "concurrent runs in a sweep")
	list := flag.Bool("list", false, "list strategies and exit")
	flag.Var(params, "param", "strategy parameter key=value (repeatable)")
	flag.Var(grid, "sweep", "sweep a parameter, key=v1,v2,... (repeatable)")
	flag.Parse()

	registry := builtins.NewRegistry()
	if *list {
		for _, name := range registry.List() {
			fmt.Println(name)
		}
		return
	}

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	util.SetDefault(util.NewLogger(cfg.Logging.Level, cfg.Logging.Format))

	b := &cfg.Backtest
	if *strategyName != "" {
		b.Strategy = *strategyName
		b.Params = nil
	}
	if len(params) > 0 {
		if b.Params == nil {
			b.Params = map[string]string{}
		}
		for k, v := range params {
			b.Params[k] = v
		}
	}
	if *symbols != "" {
		b.Symbols = config.SplitSymbols(*symbols)
	}
	if *start != "" {
		b.Start = *start
	}
	if *end != "" {
		b.End = *end
	}
	if *capital > 0 {
		b.InitialCapital = *capital
	}
	if *commission >= 0 {
		b.CommissionRate = *commission
	}
	if *slippage >= 0 {
		b.SlippageRate = *slippage
	}
	if *qty > 0 {
		b.DefaultQty = *qty
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}
	if len(b.Symbols) == 0 {
		log.Fatal("no symbols: pass -symbols or set backtest.symbols")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	req, err := buildRequest(cfg)
	if err != nil {
		log.Fatalf("%v", err)
	}

	st, err := store.Open(cfg.Storage.Backend, cfg.Storage.DataDir, cfg.Storage.SQLitePath)
	if err != nil {
		log.Fatalf("failed to open store: %v", err)
	}
	defer st.Close()

	loader := feed.FromConfig(cfg, st)
	bt := backtest.New(loader, registry)

	if len(grid) == 0 {
		run, err := bt.Run(ctx, req)
		if err != nil {
			log.Fatalf("backtest failed: %v", err)
		}
		report.Summary(os.Stdout, run)
		if *showTrades {
			fmt.Println()
			report.Trades(os.Stdout, run.Result.TradeHistory())
		}
		return
	}

	if err := runSweep(ctx, bt, loader, req, grid, *workers); err != nil {
		log.Fatalf("sweep failed: %v", err)
	}
}

func buildRequest(cfg *config.Config) (backtest.Request, error) {
	b := cfg.Backtest
	start, end, err := b.Range()
	if err != nil {
		return backtest.Request{}, err
	}
	if end.IsZero() {
		if end, err = feed.EndResolver(cfg.Alpaca)(time.Now()); err != nil {
			return backtest.Request{}, fmt.Errorf("resolving end date: %w", err)
		}
	}
	return backtest.Request{
		Strategy: b.Strategy,
		Params:   b.Params,
		Symbols:  b.Symbols,
		Start:    start,
		End:      end,
		Engine: engine.Config{
			InitialCapital: b.InitialCapital,
			Frictions: engine.Frictions{
				CommissionRate: b.CommissionRate,
				SlippageRate:   b.SlippageRate,
				DefaultQty:     b.DefaultQty,
			},
			MaxPositionPct:  b.MaxPositionPct,
			MaxDailyLossPct: b.MaxDailyLossPct,
		},
		Analytics: analytics.Options{PeriodsPerYear: b.PeriodsPerYear},
	}, nil
}

// runSweep loads the history once and runs every point of the grid on it.
func runSweep(ctx context.Context, bt *backtest.Backtester, loader feed.Loader, base backtest.Request, grid kvFlag, workers int) error {
	axes := make(map[string][]string, len(grid))
	for k, v := range grid {
		axes[k] = strings.Split(v, ",")
	}
	points := sweep.Grid(axes)
	for _, p := range points {
		for k, v := range base.Params {
			if _, swept := p[k]; !swept {
				p[k] = v
			}
		}
	}

	series, err := loader.Load(ctx, base.Symbols, base.Start, base.End)
	if err != nil {
		return fmt.Errorf("loading price history: %w", err)
	}

	runs, err := sweep.Run(ctx, bt, series, sweep.Requests(base, points), workers)
	if err != nil {
		return err
	}
	report.Sweep(os.Stdout, runs)
	if best := report.Best(runs); best != nil {
		fmt.Printf("\nbest: %s  %s\n\n", report.Params(best.Request.Params), report.Compact(best.Report))
		report.Summary(os.Stdout, best)
	}
	return nil
}
