// Package sweep runs many independent backtests over one shared price
// series, in parallel.
package sweep

import (
	"context"
	"fmt"
	"runtime"
	"sort"

	"golang.org/x/sync/errgroup"

	"algotrader/internal/backtest"
	"algotrader/internal/domain"
)

// Runner is the part of backtest.Backtester a sweep needs.
type Runner interface {
	RunSeries(ctx context.Context, req backtest.Request, series domain.PriceSeries) (*backtest.Run, error)
}

// Run executes every request against series with at most workers running
// at once (0 means GOMAXPROCS). Each request gets its own engine and
// portfolio. Results are in request order. The first failure cancels the
// remaining runs and is returned.
func Run(ctx context.Context, r Runner, series domain.PriceSeries, reqs []backtest.Request, workers int) ([]*backtest.Run, error) {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	runs := make([]*backtest.Run, len(reqs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, req := range reqs {
		g.Go(func() error {
			run, err := r.RunSeries(gctx, req, series)
			if err != nil {
				return fmt.Errorf("sweep run %d (%s %v): %w", i, req.Strategy, req.Params, err)
			}
			runs[i] = run
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return runs, nil
}

// Grid expands a parameter grid into every combination. Keys vary in
// sorted order with the last key changing fastest, so the output order is
// stable. An empty grid yields one empty parameter set.
func Grid(grid map[string][]string) []map[string]string {
	keys := make([]string, 0, len(grid))
	for k, vs := range grid {
		if len(vs) > 0 {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	out := []map[string]string{{}}
	for _, k := range keys {
		next := make([]map[string]string, 0, len(out)*len(grid[k]))
		for _, base := range out {
			for _, v := range grid[k] {
				m := make(map[string]string, len(base)+1)
				for bk, bv := range base {
					m[bk] = bv
				}
				m[k] = v
				next = append(next, m)
			}
		}
		out = next
	}
	return out
}

// Requests builds one request per parameter set, copying everything else
// from base.
func Requests(base backtest.Request, params []map[string]string) []backtest.Request {
	reqs := make([]backtest.Request, len(params))
	for i, p := range params {
		r := base
		r.Params = p
		reqs[i] = r
	}
	return reqs
}
