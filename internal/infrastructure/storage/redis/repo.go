package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"tickd/internal/application/port"
)

// Repo is a latest-tick cache plus a significant-tick fan-out, composed next
// to a durable store. Not a durable store itself: logs and range queries are
// not served here.
type Repo struct {
	rdb        *redis.Client
	prefix     string
	ttl        time.Duration
	keyLatest  string // prefix + ":latest"
	tickStream string
	tickChan   string
}

func New(rdb *redis.Client, prefix string, ttl time.Duration) *Repo {
	return &Repo{
		rdb:        rdb,
		prefix:     prefix,
		ttl:        ttl,
		keyLatest:  prefix + ":latest",
		tickStream: prefix + ":ticks",
		tickChan:   prefix + ":ticks:pub",
	}
}

type latestTick struct {
	Symbol      string  `json:"symbol"`
	Close       float64 `json:"close"`
	Open        float64 `json:"open"`
	High        float64 `json:"high"`
	Low         float64 `json:"low"`
	Volume      float64 `json:"volume"`
	QuoteVolume float64 `json:"quote_volume"`
	Ts          int64   `json:"ts"`
}

func (r *Repo) InsertTicker(ctx context.Context, t port.Ticker) error {
	lt := latestTick{
		Symbol: t.Symbol, Close: t.Close, Open: t.Open, High: t.High, Low: t.Low,
		Volume: t.Volume, QuoteVolume: t.QuoteVolume, Ts: t.Time.UnixMilli(),
	}
	b, _ := json.Marshal(lt)

	// Hash: field = "BTCUSDT" -> json
	pipe := r.rdb.Pipeline()
	pipe.HSet(ctx, r.keyLatest, t.Symbol, string(b))
	if r.ttl > 0 {
		pipe.Expire(ctx, r.keyLatest, r.ttl)
	}
	pipe.XAdd(ctx, &redis.XAddArgs{
		Stream: r.tickStream,
		Values: map[string]any{
			"symbol": t.Symbol,
			"close":  t.Close,
			"ts_ms":  t.Time.UnixMilli(),
		},
	})
	if _, err := pipe.Exec(ctx); err != nil {
		return err
	}

	return r.rdb.Publish(ctx, r.tickChan, string(b)).Err()
}

func (r *Repo) InsertLog(ctx context.Context, l port.LogRecord) error {
	// logs live in the durable store only
	return nil
}

func (r *Repo) QueryTickers(ctx context.Context, symbol string, start, end time.Time) ([]port.Ticker, error) {
	// range queries are served by the durable store
	return nil, nil
}

// Latest returns the cached last significant tick for a symbol.
func (r *Repo) Latest(ctx context.Context, symbol string) (port.Ticker, error) {
	raw, err := r.rdb.HGet(ctx, r.keyLatest, symbol).Result()
	if err != nil {
		return port.Ticker{}, err
	}
	var lt latestTick
	if err := json.Unmarshal([]byte(raw), &lt); err != nil {
		return port.Ticker{}, fmt.Errorf("decode latest tick: %w", err)
	}
	return port.Ticker{
		Symbol: lt.Symbol, Close: lt.Close, Open: lt.Open, High: lt.High, Low: lt.Low,
		Volume: lt.Volume, QuoteVolume: lt.QuoteVolume, Time: time.UnixMilli(lt.Ts),
	}, nil
}

func (r *Repo) Close() error { return r.rdb.Close() }

var _ port.Repository = (*Repo)(nil)
