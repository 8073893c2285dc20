// Command fetch-bars downloads daily bars from Alpaca into the local bar
// store so later backtests can run offline.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/olekukonko/tablewriter"

	"algotrader/internal/config"
	"algotrader/internal/feed"
	"algotrader/internal/store"
	"algotrader/internal/util"
)

func main() {
	cfgPath := flag.String("config", os.Getenv(config.PathEnv), "YAML config file")
	symbols := flag.String("symbols", "", "comma-separated symbols (default from config)")
	start := flag.String("start", "", "first date, YYYY-MM-DD (default gather.start_date)")
	end := flag.String("end", "", "last date, YYYY-MM-DD (default: latest finished trading day)")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	util.SetDefault(util.NewLogger(cfg.Logging.Level, cfg.Logging.Format))

	if cfg.Alpaca.APIKey == "" || cfg.Alpaca.APISecret == "" {
		log.Fatal("alpaca credentials are required (APCA_API_KEY_ID / APCA_API_SECRET_KEY)")
	}

	syms := cfg.Backtest.Symbols
	if *symbols != "" {
		syms = config.SplitSymbols(*symbols)
	}
	if len(syms) == 0 {
		log.Fatal("no symbols: pass -symbols or set backtest.symbols")
	}

	rng := config.Backtest{Start: *start, End: *end}
	if rng.Start == "" {
		rng.Start = cfg.Gather.StartDate
	}
	if rng.Start == "" {
		rng.Start = cfg.Backtest.Start
	}
	from, to, err := rng.Range()
	if err != nil {
		log.Fatalf("%v", err)
	}
	if to.IsZero() {
		if to, err = feed.EndResolver(cfg.Alpaca)(time.Now()); err != nil {
			log.Fatalf("resolving end date: %v", err)
		}
	}

	st, err := store.Open(cfg.Storage.Backend, cfg.Storage.DataDir, cfg.Storage.SQLitePath)
	if err != nil {
		log.Fatalf("failed to open store: %v", err)
	}
	defer st.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	loader := feed.NewAlpacaLoader(feed.AlpacaOptionsFromConfig(cfg, st))
	series, err := loader.Load(ctx, syms, from, to)
	if err != nil {
		log.Fatalf("fetch failed: %v", err)
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Symbol", "Bars", "First", "Last")
	for _, sym := range series.Symbols() {
		bars := series[sym]
		table.Append(sym,
			fmt.Sprint(len(bars)),
			bars[0].Timestamp.Format(config.DateLayout),
			bars[len(bars)-1].Timestamp.Format(config.DateLayout),
		)
	}
	table.Render()
}
