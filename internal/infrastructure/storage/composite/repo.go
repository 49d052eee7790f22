package composite

import (
	"context"
	"time"

	"tickd/internal/application/port"
)

// Repo fans writes out to every child repository. Reads are served by the
// first child (the durable store); later children are caches or fan-outs.
type Repo struct {
	repos []port.Repository
}

func New(repos ...port.Repository) *Repo {
	// nil repos are allowed; filter in constructor
	out := make([]port.Repository, 0, len(repos))
	for _, r := range repos {
		if r != nil {
			out = append(out, r)
		}
	}
	return &Repo{repos: out}
}

func (r *Repo) InsertTicker(ctx context.Context, t port.Ticker) error {
	var firstErr error
	for _, repo := range r.repos {
		if err := repo.InsertTicker(ctx, t); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (r *Repo) InsertLog(ctx context.Context, l port.LogRecord) error {
	var firstErr error
	for _, repo := range r.repos {
		if err := repo.InsertLog(ctx, l); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (r *Repo) QueryTickers(ctx context.Context, symbol string, start, end time.Time) ([]port.Ticker, error) {
	if len(r.repos) == 0 {
		return nil, nil
	}
	return r.repos[0].QueryTickers(ctx, symbol, start, end)
}

func (r *Repo) Close() error {
	var firstErr error
	for _, repo := range r.repos {
		if err := repo.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

var _ port.Repository = (*Repo)(nil)
