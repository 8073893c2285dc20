// Package store persists daily bars so backtests can be replayed without
// going back to the market-data API.
package store

import (
	"context"
	"fmt"
	"time"

	"algotrader/internal/domain"
)

// BarStore persists and retrieves OHLCV bar data.
type BarStore interface {
	// WriteBars upserts bars keyed by (market, symbol, timestamp).
	WriteBars(ctx context.Context, market domain.Market, bars []domain.Bar) error

	// ReadBars returns bars for symbol within [start, end] in ascending
	// timestamp order. A symbol with no data yields an empty slice.
	ReadBars(ctx context.Context, market domain.Market, symbol string, start, end time.Time) ([]domain.Bar, error)

	// ListSymbols returns all distinct symbols available in the given market.
	ListSymbols(ctx context.Context, market domain.Market) ([]string, error)

	Close() error
}

// Backends accepted by Open.
const (
	BackendParquet = "parquet"
	BackendSQLite  = "sqlite"
)

// Open returns the BarStore for backend. dataDir roots the parquet layout;
// sqlitePath names the database file.
func Open(backend, dataDir, sqlitePath string) (BarStore, error) {
	switch backend {
	case "", BackendParquet:
		return NewParquetStore(dataDir), nil
	case BackendSQLite:
		return NewSQLiteStore(sqlitePath)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", backend)
	}
}

func inRange(ts, start, end time.Time) bool {
	return !ts.Before(start) && !ts.After(end)
}
