package sqlite

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"tickd/internal/application/port"
)

type Repo struct {
	db *sql.DB
}

func New(path string) (*Repo, error) {
	// ensure directory exists
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		_ = os.MkdirAll(dir, 0o755)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	r := &Repo{db: db}
	if err := r.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return r, nil
}

func (r *Repo) Close() error { return r.db.Close() }

func (r *Repo) migrate(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS tickers (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  ts_ms INTEGER NOT NULL,
  symbol TEXT NOT NULL,
  close REAL NOT NULL,
  open REAL NOT NULL,
  high REAL NOT NULL,
  low REAL NOT NULL,
  volume REAL NOT NULL,
  quote_asset_volume REAL NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_tickers_symbol_ts ON tickers(symbol, ts_ms);

CREATE TABLE IF NOT EXISTS logs (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  level TEXT NOT NULL,
  msg TEXT NOT NULL,
  ts_ms INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_logs_ts ON logs(ts_ms);
`)
	return err
}

func (r *Repo) InsertTicker(ctx context.Context, t port.Ticker) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO tickers(ts_ms, symbol, close, open, high, low, volume, quote_asset_volume)
		VALUES(?, ?, ?, ?, ?, ?, ?, ?)
	`, t.Time.UnixMilli(), t.Symbol, t.Close, t.Open, t.High, t.Low, t.Volume, t.QuoteVolume)
	return err
}

func (r *Repo) InsertLog(ctx context.Context, l port.LogRecord) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO logs(level, msg, ts_ms) VALUES(?, ?, ?)
	`, l.Level, l.Msg, l.Time.UnixMilli())
	return err
}

func (r *Repo) QueryTickers(ctx context.Context, symbol string, start, end time.Time) ([]port.Ticker, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, ts_ms, symbol, close, open, high, low, volume, quote_asset_volume
		FROM tickers
		WHERE symbol = ? AND ts_ms >= ? AND ts_ms <= ?
		ORDER BY ts_ms ASC
	`, symbol, start.UnixMilli(), end.UnixMilli())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []port.Ticker
	for rows.Next() {
		var t port.Ticker
		var tsMs int64
		if err := rows.Scan(&t.ID, &tsMs, &t.Symbol, &t.Close, &t.Open, &t.High, &t.Low, &t.Volume, &t.QuoteVolume); err != nil {
			return nil, err
		}
		t.Time = time.UnixMilli(tsMs)
		out = append(out, t)
	}
	return out, rows.Err()
}

var _ port.Repository = (*Repo)(nil)
