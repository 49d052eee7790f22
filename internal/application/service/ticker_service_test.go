package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"tickd/internal/application/port"
	"tickd/internal/domain"
)

type memRepo struct {
	mu      sync.Mutex
	rows    []port.Ticker
	failing bool
}

func (m *memRepo) InsertTicker(_ context.Context, t port.Ticker) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failing {
		return errors.New("disk full")
	}
	m.rows = append(m.rows, t)
	return nil
}

func (m *memRepo) InsertLog(context.Context, port.LogRecord) error { return nil }

func (m *memRepo) QueryTickers(context.Context, string, time.Time, time.Time) ([]port.Ticker, error) {
	return nil, nil
}

func (m *memRepo) Close() error { return nil }

func (m *memRepo) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rows)
}

type alertLog struct {
	mu     sync.Mutex
	levels []port.Level
	msgs   []string
}

func (a *alertLog) Emit(level port.Level, msg string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.levels = append(a.levels, level)
	a.msgs = append(a.msgs, msg)
}

func (a *alertLog) countAt(level port.Level) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	n := 0
	for _, l := range a.levels {
		if l == level {
			n++
		}
	}
	return n
}

type fakeGateway struct {
	mu   sync.Mutex
	reqs []port.OrderRequest
	err  error
}

func (g *fakeGateway) PlaceOrder(_ context.Context, req port.OrderRequest) (*port.OrderResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.err != nil {
		return nil, g.err
	}
	g.reqs = append(g.reqs, req)
	return &port.OrderResult{OrderID: "1", Symbol: req.Symbol, Side: req.Side, Status: "FILLED"}, nil
}

func (g *fakeGateway) CancelOrder(context.Context, string, string) error { return nil }

func (g *fakeGateway) ListOpenOrders(context.Context, string) ([]port.Order, error) {
	return nil, nil
}

func frame(symbol string, px float64, ev int64) port.Frame {
	return port.Frame{
		Topic:     strings.ToLower(symbol) + "@ticker",
		Symbol:    symbol,
		Close:     px,
		Open:      px,
		High:      px,
		Low:       px,
		EventTime: ev,
	}
}

func TestHandlePersistsOnlySignificantMoves(t *testing.T) {
	repo := &memRepo{}
	alerts := &alertLog{}
	svc := NewTickerService(domain.NewRegistry(domain.NewChangePolicy(0)), repo, alerts)

	ctx := context.Background()
	// First observation is always persisted.
	if err := svc.Handle(ctx, frame("BTCUSDT", 100.00, 1)); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	// 0.05% move, below the 0.1% threshold.
	if err := svc.Handle(ctx, frame("BTCUSDT", 100.05, 2)); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	// 1.45% move from the stored close of 100.05.
	if err := svc.Handle(ctx, frame("BTCUSDT", 101.50, 3)); err != nil {
		t.Fatalf("Handle: %v", err)
	}

	if got := repo.count(); got != 2 {
		t.Fatalf("rows = %d, want 2", got)
	}
	repo.mu.Lock()
	defer repo.mu.Unlock()
	if repo.rows[0].Close != 100.00 || repo.rows[1].Close != 101.50 {
		t.Fatalf("persisted closes = %.2f, %.2f", repo.rows[0].Close, repo.rows[1].Close)
	}
}

func TestHandleComparesAgainstLastSeenNotLastStored(t *testing.T) {
	repo := &memRepo{}
	svc := NewTickerService(domain.NewRegistry(domain.NewChangePolicy(0)), repo, &alertLog{})

	ctx := context.Background()
	svc.Handle(ctx, frame("ETHUSDT", 100.00, 1))
	svc.Handle(ctx, frame("ETHUSDT", 100.05, 2)) // not persisted, but becomes prev
	svc.Handle(ctx, frame("ETHUSDT", 100.09, 3)) // 0.04% from 100.05

	if got := repo.count(); got != 1 {
		t.Fatalf("rows = %d, want 1: only the first observation crosses the threshold", got)
	}
}

func TestHandleInsertFailureIsContained(t *testing.T) {
	repo := &memRepo{failing: true}
	alerts := &alertLog{}
	svc := NewTickerService(domain.NewRegistry(domain.NewChangePolicy(0)), repo, alerts)

	ctx := context.Background()
	if err := svc.Handle(ctx, frame("BTCUSDT", 100.00, 1)); err != nil {
		t.Fatalf("Handle must contain insert failures, got %v", err)
	}
	if got := alerts.countAt(port.LevelError); got != 1 {
		t.Fatalf("ERROR alerts = %d, want 1", got)
	}

	// Stream keeps flowing: later frames still update registry state.
	repo.mu.Lock()
	repo.failing = false
	repo.mu.Unlock()
	svc.Handle(ctx, frame("BTCUSDT", 102.00, 2))
	if got := repo.count(); got != 1 {
		t.Fatalf("rows after recovery = %d, want 1", got)
	}
}

func TestHandleZeroPrevCloseWarnsAndPersists(t *testing.T) {
	alerts := &alertLog{}
	repo := &memRepo{}
	svc := NewTickerService(domain.NewRegistry(domain.NewChangePolicy(0)), repo, alerts)

	ctx := context.Background()
	svc.Handle(ctx, frame("NEWUSDT", 0, 1))
	svc.Handle(ctx, frame("NEWUSDT", 0.005, 2))

	if got := alerts.countAt(port.LevelWarning); got != 1 {
		t.Fatalf("WARNING alerts = %d, want 1", got)
	}
	if got := repo.count(); got != 2 {
		t.Fatalf("rows = %d, want 2: zero previous close is always significant", got)
	}
}

func TestHandleFiresLongTargetOnce(t *testing.T) {
	reg := domain.NewRegistry(domain.NewChangePolicy(0))
	gw := &fakeGateway{}
	alerts := &alertLog{}
	svc := NewTickerService(reg, &memRepo{}, alerts).WithTradingGateway(gw)

	reg.SetLongTarget("BTCUSDT", 105.0, 0.25)

	ctx := context.Background()
	svc.Handle(ctx, frame("BTCUSDT", 100.0, 1))
	svc.Handle(ctx, frame("BTCUSDT", 106.0, 2)) // crosses
	svc.Handle(ctx, frame("BTCUSDT", 107.0, 3)) // already consumed

	gw.mu.Lock()
	defer gw.mu.Unlock()
	if len(gw.reqs) != 1 {
		t.Fatalf("orders = %d, want 1", len(gw.reqs))
	}
	req := gw.reqs[0]
	if req.Side != port.SideBuy || req.Type != port.TypeMarket || req.Quantity != 0.25 {
		t.Fatalf("unexpected order: %+v", req)
	}
}

func TestHandleShortTargetWithoutGatewayOnlyAlerts(t *testing.T) {
	reg := domain.NewRegistry(domain.NewChangePolicy(0))
	alerts := &alertLog{}
	svc := NewTickerService(reg, &memRepo{}, alerts)

	reg.SetShortTarget("ETHUSDT", 95.0, 1.0)

	ctx := context.Background()
	svc.Handle(ctx, frame("ETHUSDT", 100.0, 1))
	svc.Handle(ctx, frame("ETHUSDT", 94.0, 2))

	if got := alerts.countAt(port.LevelInfo); got != 1 {
		t.Fatalf("INFO alerts = %d, want 1 target-hit notice", got)
	}
	if got := alerts.countAt(port.LevelError); got != 0 {
		t.Fatalf("ERROR alerts = %d, want 0", got)
	}
}

func TestHandleFailedTargetOrderIsReportedNotRetried(t *testing.T) {
	reg := domain.NewRegistry(domain.NewChangePolicy(0))
	gw := &fakeGateway{err: errors.New("insufficient balance")}
	alerts := &alertLog{}
	svc := NewTickerService(reg, &memRepo{}, alerts).WithTradingGateway(gw)

	reg.SetLongTarget("BTCUSDT", 105.0, 0.25)

	ctx := context.Background()
	svc.Handle(ctx, frame("BTCUSDT", 100.0, 1))
	svc.Handle(ctx, frame("BTCUSDT", 106.0, 2))
	svc.Handle(ctx, frame("BTCUSDT", 107.0, 3))

	if got := alerts.countAt(port.LevelError); got != 1 {
		t.Fatalf("ERROR alerts = %d, want 1", got)
	}
}
