package sweep

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"algotrader/internal/backtest"
	"algotrader/internal/domain"
	"algotrader/internal/engine"
	"algotrader/internal/strategy/builtins"
)

func series() domain.PriceSeries {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	prices := []float64{50, 52, 51, 55, 60, 58, 63, 61, 57, 52, 50, 54, 59, 65, 70}
	out := domain.PriceSeries{}
	for _, sym := range []string{"AAA", "BBB"} {
		for i, p := range prices {
			if sym == "BBB" {
				p = 200 - p
			}
			out[sym] = append(out[sym], domain.Bar{Symbol: sym, Timestamp: start.AddDate(0, 0, i), Close: p})
		}
	}
	return out
}

func TestGrid(t *testing.T) {
	got := Grid(map[string][]string{
		"short": {"2", "3"},
		"long":  {"5", "8"},
		"empty": nil,
	})
	want := []map[string]string{
		{"long": "5", "short": "2"},
		{"long": "5", "short": "3"},
		{"long": "8", "short": "2"},
		{"long": "8", "short": "3"},
	}
	assert.Equal(t, want, got)
	assert.Equal(t, []map[string]string{{}}, Grid(nil))
}

func TestRunMatchesSequential(t *testing.T) {
	bt := backtest.New(nil, builtins.NewRegistry())
	base := backtest.Request{
		Strategy: "sma-cross",
		Engine:   engine.Config{InitialCapital: 10000, Frictions: engine.Frictions{CommissionRate: 0.001, DefaultQty: 5}},
	}
	reqs := Requests(base, Grid(map[string][]string{"short": {"2", "3"}, "long": {"4", "6"}}))
	s := series()

	runs, err := Run(context.Background(), bt, s, reqs, 3)
	require.NoError(t, err)
	require.Len(t, runs, len(reqs))

	for i, req := range reqs {
		want, err := bt.RunSeries(context.Background(), req, s)
		require.NoError(t, err)
		assert.Equal(t, req.Params, runs[i].Request.Params)
		assert.Equal(t, want.Result.Equity, runs[i].Result.Equity, "run %d", i)
		assert.Equal(t, want.Result.Trades, runs[i].Result.Trades, "run %d", i)
	}
}

type countingRunner struct {
	active, peak atomic.Int32
}

func (c *countingRunner) RunSeries(ctx context.Context, req backtest.Request, _ domain.PriceSeries) (*backtest.Run, error) {
	n := c.active.Add(1)
	defer c.active.Add(-1)
	for {
		p := c.peak.Load()
		if n <= p || c.peak.CompareAndSwap(p, n) {
			break
		}
	}
	time.Sleep(5 * time.Millisecond)
	if req.Params["i"] == "fail" {
		return nil, errors.New("bad params")
	}
	return &backtest.Run{Request: req}, ctx.Err()
}

func TestRunRespectsWorkerLimit(t *testing.T) {
	r := &countingRunner{}
	reqs := Requests(backtest.Request{}, Grid(map[string][]string{"i": {"1", "2", "3", "4", "5", "6", "7", "8"}}))

	runs, err := Run(context.Background(), r, nil, reqs, 2)
	require.NoError(t, err)
	assert.Len(t, runs, 8)
	assert.LessOrEqual(t, r.peak.Load(), int32(2))
	for i, run := range runs {
		assert.Equal(t, reqs[i].Params, run.Request.Params)
	}
}

func TestRunReturnsFirstError(t *testing.T) {
	r := &countingRunner{}
	reqs := Requests(backtest.Request{}, []map[string]string{{"i": "1"}, {"i": "fail"}, {"i": "3"}})

	_, err := Run(context.Background(), r, nil, reqs, 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad params")
}
