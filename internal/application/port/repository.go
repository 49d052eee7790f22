package port

import (
	"context"
	"time"
)

// Ticker is one persisted price row. Append-only; the surrogate id makes
// duplicate (symbol, timestamp) pairs legal and distinct.
type Ticker struct {
	ID          int64
	Symbol      string
	Close       float64
	Open        float64
	High        float64
	Low         float64
	Volume      float64
	QuoteVolume float64
	Time        time.Time
}

// LogRecord is one persisted log row, written by the alerting path.
type LogRecord struct {
	ID    int64
	Level string
	Msg   string
	Time  time.Time
}

// Repository is the durable store boundary. Implementations must be safe for
// concurrent callers; each insert is independently transactional.
type Repository interface {
	InsertTicker(ctx context.Context, t Ticker) error
	InsertLog(ctx context.Context, l LogRecord) error

	// QueryTickers returns rows for a symbol in [start, end], timestamp
	// ascending. Operational tooling only, not the hot path.
	QueryTickers(ctx context.Context, symbol string, start, end time.Time) ([]Ticker, error)

	Close() error
}
