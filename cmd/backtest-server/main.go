// Command backtest-server serves backtests over gRPC.
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"google.golang.org/grpc"

	"algotrader/internal/api"
	"algotrader/internal/backtest"
	"algotrader/internal/config"
	"algotrader/internal/feed"
	"algotrader/internal/store"
	"algotrader/internal/strategy/builtins"
	"algotrader/internal/util"
)

func main() {
	cfgPath := flag.String("config", os.Getenv(config.PathEnv), "YAML config file")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}
	logger := util.NewLogger(cfg.Logging.Level, cfg.Logging.Format)
	util.SetDefault(logger)

	st, err := store.Open(cfg.Storage.Backend, cfg.Storage.DataDir, cfg.Storage.SQLitePath)
	if err != nil {
		log.Fatalf("failed to open store: %v", err)
	}
	defer st.Close()

	bt := backtest.New(feed.FromConfig(cfg, st), builtins.NewRegistry())
	svc := api.NewService(bt, cfg.Backtest, feed.EndResolver(cfg.Alpaca))
	srv := api.NewServer(cfg.Server.Addr(), svc)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()

	logger.Info("backtest-server started",
		"addr", cfg.Server.Addr(),
		"storage", cfg.Storage.Backend,
		"strategies", bt.Strategies(),
	)

	select {
	case <-ctx.Done():
	case err := <-errc:
		if err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			log.Fatalf("grpc server error: %v", err)
		}
		return
	}

	logger.Info("shutting down")
	shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
	defer stop()
	srv.Shutdown(shutdownCtx)
}
