// Package api exposes the backtester over gRPC.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"algotrader/internal/analytics"
	"algotrader/internal/backtest"
	"algotrader/internal/config"
	"algotrader/internal/domain"
	"algotrader/internal/engine"
	"algotrader/internal/feed"
	"algotrader/pkg/algotrader"
)

// EndResolver picks the last date of a run whose request leaves End empty.
type EndResolver func(now time.Time) (time.Time, error)

// Service answers backtest requests. Request fields left at their zero
// value are filled from the configured backtest defaults.
type Service struct {
	bt         *backtest.Backtester
	defaults   config.Backtest
	resolveEnd EndResolver
	now        func() time.Time
	log        *slog.Logger
}

// NewService creates a Service. A nil resolveEnd uses the current UTC date.
func NewService(bt *backtest.Backtester, defaults config.Backtest, resolveEnd EndResolver) *Service {
	if resolveEnd == nil {
		resolveEnd = func(now time.Time) (time.Time, error) {
			y, m, d := now.UTC().Date()
			return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), nil
		}
	}
	return &Service{
		bt:         bt,
		defaults:   defaults,
		resolveEnd: resolveEnd,
		now:        time.Now,
		log:        slog.Default().With("component", "api"),
	}
}

// RegisterGRPC registers the service on gs.
func (s *Service) RegisterGRPC(gs *grpc.Server) {
	gs.RegisterService(&serviceDesc, s)
}

// Run executes one backtest.
func (s *Service) Run(ctx context.Context, in *algotrader.RunRequest) (*algotrader.RunResult, error) {
	req, err := s.request(in)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	run, err := s.bt.Run(ctx, req)
	if err != nil {
		return nil, toStatus(err)
	}
	return toResult(run, in.IncludeTrades, in.IncludeEquity), nil
}

// ListStrategies returns the registered strategy names.
func (s *Service) ListStrategies(context.Context) []string {
	return s.bt.Strategies()
}

// request merges in with the defaults and validates the result.
func (s *Service) request(in *algotrader.RunRequest) (backtest.Request, error) {
	d := s.defaults
	req := backtest.Request{
		Strategy: in.Strategy,
		Params:   in.Params,
		Symbols:  in.Symbols,
		Engine: engine.Config{
			InitialCapital: orDefault(in.InitialCapital, d.InitialCapital),
			Frictions: engine.Frictions{
				CommissionRate: optional(in.CommissionRate, d.CommissionRate),
				SlippageRate:   optional(in.SlippageRate, d.SlippageRate),
				DefaultQty:     orDefault(in.DefaultQty, d.DefaultQty),
			},
			MaxPositionPct:  optional(in.MaxPositionPct, d.MaxPositionPct),
			MaxDailyLossPct: optional(in.MaxDailyLossPct, d.MaxDailyLossPct),
		},
		Analytics: analytics.Options{PeriodsPerYear: orDefault(in.PeriodsPerYear, d.PeriodsPerYear)},
	}
	if req.Strategy == "" {
		req.Strategy = d.Strategy
		if req.Params == nil {
			req.Params = d.Params
		}
	}
	if len(req.Symbols) == 0 {
		req.Symbols = d.Symbols
	}
	if len(req.Symbols) == 0 {
		return req, errors.New("no symbols requested")
	}
	if err := req.Engine.Validate(); err != nil {
		return req, err
	}

	rng := config.Backtest{Start: in.Start, End: in.End}
	if rng.Start == "" {
		rng.Start = d.Start
	}
	start, end, err := rng.Range()
	if err != nil {
		return req, err
	}
	if end.IsZero() {
		if end, err = s.resolveEnd(s.now()); err != nil {
			return req, fmt.Errorf("resolving end date: %w", err)
		}
		if end.Before(start) {
			return req, fmt.Errorf("start %s is after the last trading day %s", rng.Start, end.Format(config.DateLayout))
		}
	}
	req.Start, req.End = start, end
	return req, nil
}

func optional(v *float64, def float64) float64 {
	if v != nil {
		return *v
	}
	return def
}

func orDefault(v, def float64) float64 {
	if v != 0 {
		return v
	}
	return def
}

// toStatus maps backtest errors onto gRPC status codes.
func toStatus(err error) error {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return status.FromContextError(err).Err()
	case errors.Is(err, backtest.ErrUnknownStrategy), errors.Is(err, feed.ErrNoBars):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, backtest.ErrParams):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, engine.ErrStrategy):
		return status.Error(codes.Aborted, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}

func toResult(run *backtest.Run, trades, equity bool) *algotrader.RunResult {
	r := run.Report
	out := &algotrader.RunResult{
		ID:       run.ID,
		Strategy: run.Request.Strategy,
		Report: algotrader.Report{
			InitialCapital:          r.InitialCapital,
			FinalValue:              r.FinalValue,
			TotalReturn:             r.TotalReturn,
			AnnualizedReturn:        r.AnnualizedReturn,
			SharpeRatio:             r.SharpeRatio,
			Volatility:              r.Volatility,
			MaxDrawdown:             r.MaxDrawdown,
			Periods:                 r.Periods,
			TradeCount:              r.TradeCount,
			ClosedTrades:            r.ClosedTrades,
			WinRate:                 r.WinRate,
			AvgProfitPerClosedTrade: r.AvgProfitPerClosedTrade,
			AvgTradeSize:            r.AvgTradeSize,
		},
	}
	if trades {
		out.Trades = make([]algotrader.Trade, len(run.Result.Trades))
		for i, t := range run.Result.Trades {
			out.Trades[i] = toTrade(t)
		}
	}
	if equity {
		out.Equity = make([]algotrader.EquityPoint, len(run.Result.Equity))
		for i, p := range run.Result.Equity {
			out.Equity[i] = algotrader.EquityPoint{
				Time:  p.Timestamp.Format(time.RFC3339),
				Value: p.Value,
				Cash:  p.Cash,
			}
		}
	}
	return out
}

func toTrade(t domain.Trade) algotrader.Trade {
	return algotrader.Trade{
		Time:        t.Timestamp.Format(time.RFC3339),
		Symbol:      t.Symbol,
		Action:      string(t.Action),
		Qty:         t.Qty,
		Price:       t.Price,
		FillPrice:   t.FillPrice,
		Commission:  t.Commission,
		Amount:      t.Amount,
		CostBasis:   t.CostBasis,
		RealizedPnL: t.RealizedPnL,
	}
}

// ---------------------------------------------------------------------------
// gRPC plumbing
// ---------------------------------------------------------------------------

// structServer is the Struct-level surface the service descriptor calls.
type structServer interface {
	runStruct(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
	listStruct(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
}

var _ structServer = (*Service)(nil)

var serviceDesc = grpc.ServiceDesc{
	ServiceName: algotrader.ServiceName,
	HandlerType: (*structServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Run", Handler: unaryHandler(algotrader.RunMethod, structServer.runStruct)},
		{MethodName: "ListStrategies", Handler: unaryHandler(algotrader.ListStrategiesMethod, structServer.listStruct)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "algotrader/backtest",
}

func unaryHandler(method string, call func(structServer, context.Context, *structpb.Struct) (*structpb.Struct, error)) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(structServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: method}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(structServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

func (s *Service) runStruct(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req algotrader.RunRequest
	if err := algotrader.FromStruct(in, &req); err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "decoding request: %v", err)
	}
	res, err := s.Run(ctx, &req)
	if err != nil {
		return nil, err
	}
	out, err := algotrader.ToStruct(res)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encoding result: %v", err)
	}
	return out, nil
}

func (s *Service) listStruct(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	out, err := algotrader.ToStruct(algotrader.StrategyList{Names: s.ListStrategies(ctx)})
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encoding strategies: %v", err)
	}
	return out, nil
}
