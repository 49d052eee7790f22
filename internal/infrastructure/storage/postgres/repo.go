package postgres

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"tickd/internal/application/port"
)

type Repo struct {
	db *sql.DB
}

func New(dsn string) (*Repo, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)

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
  id BIGSERIAL PRIMARY KEY,
  ts_ms BIGINT NOT NULL,
  symbol TEXT NOT NULL,
  close DOUBLE PRECISION NOT NULL,
  open DOUBLE PRECISION NOT NULL,
  high DOUBLE PRECISION NOT NULL,
  low DOUBLE PRECISION NOT NULL,
  volume DOUBLE PRECISION NOT NULL,
  quote_asset_volume DOUBLE PRECISION NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_tickers_symbol_ts ON tickers(symbol, ts_ms);

CREATE TABLE IF NOT EXISTS logs (
  id BIGSERIAL PRIMARY KEY,
  level TEXT NOT NULL,
  msg TEXT NOT NULL,
  ts_ms BIGINT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_logs_ts ON logs(ts_ms);
`)
	return err
}

func (r *Repo) InsertTicker(ctx context.Context, t port.Ticker) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO tickers(ts_ms, symbol, close, open, high, low, volume, quote_asset_volume)
		VALUES($1, $2, $3, $4, $5, $6, $7, $8)
	`, t.Time.UnixMilli(), t.Symbol, t.Close, t.Open, t.High, t.Low, t.Volume, t.QuoteVolume)
	return err
}

func (r *Repo) InsertLog(ctx context.Context, l port.LogRecord) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO logs(level, msg, ts_ms) VALUES($1, $2, $3)
	`, l.Level, l.Msg, l.Time.UnixMilli())
	return err
}

func (r *Repo) QueryTickers(ctx context.Context, symbol string, start, end time.Time) ([]port.Ticker, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, ts_ms, symbol, close, open, high, low, volume, quote_asset_volume
		FROM tickers
		WHERE symbol = $1 AND ts_ms >= $2 AND ts_ms <= $3
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
