package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"tickd/internal/application/port"
	"tickd/internal/domain"
)

// TickerService is the per-frame ingest path: apply the frame to the
// instrument registry, persist significant moves, fire armed targets.
// All failures on this path are reported through the alert sink and
// contained; a bad frame or a failed insert never stops the stream.
type TickerService struct {
	registry *domain.Registry
	repo     port.Repository
	alerts   port.AlertSink
	trading  port.TradingGateway // nil when order placement is disabled
}

func NewTickerService(registry *domain.Registry, repo port.Repository, alerts port.AlertSink) *TickerService {
	return &TickerService{
		registry: registry,
		repo:     repo,
		alerts:   alerts,
	}
}

// WithTradingGateway arms target execution. Without it, target hits are
// reported but no orders are placed.
func (s *TickerService) WithTradingGateway(gw port.TradingGateway) *TickerService {
	s.trading = gw
	return s
}

func (s *TickerService) Handle(ctx context.Context, f port.Frame) error {
	snap := domain.Snapshot{
		Open:        f.Open,
		Close:       f.Close,
		High:        f.High,
		Low:         f.Low,
		Volume:      f.Volume,
		QuoteVolume: f.QuoteVolume,
		Time:        time.UnixMilli(f.EventTime),
	}

	res := s.registry.Apply(f.Symbol, snap)

	if res.ZeroPrev {
		s.alerts.Emit(port.LevelWarning,
			fmt.Sprintf("previous close for %s was 0, treating update to %.8f as significant", f.Symbol, f.Close))
	}
	if res.Regressed {
		s.alerts.Emit(port.LevelWarning,
			fmt.Sprintf("event time regressed for %s (applied anyway)", f.Symbol))
	}

	if res.Significant {
		s.persist(ctx, f, snap)
	}

	if res.LongHit {
		s.fire(ctx, f.Symbol, port.SideBuy, s.registry.Target(f.Symbol, "LONG"), f.Close)
	}
	if res.ShortHit {
		s.fire(ctx, f.Symbol, port.SideSell, s.registry.Target(f.Symbol, "SHORT"), f.Close)
	}

	return nil
}

func (s *TickerService) persist(ctx context.Context, f port.Frame, snap domain.Snapshot) {
	row := port.Ticker{
		Symbol:      f.Symbol,
		Close:       snap.Close,
		Open:        snap.Open,
		High:        snap.High,
		Low:         snap.Low,
		Volume:      snap.Volume,
		QuoteVolume: snap.QuoteVolume,
		Time:        snap.Time,
	}
	if err := s.repo.InsertTicker(ctx, row); err != nil {
		s.alerts.Emit(port.LevelError,
			fmt.Sprintf("ticker insert failed for %s: %v", f.Symbol, err))
		return
	}
	log.Debug().
		Str("symbol", f.Symbol).
		Float64("close", snap.Close).
		Msg("ticker persisted")
}

// fire places the market order for a hit target. The registry has already
// marked the target as consumed, so a failed order is reported and not retried.
func (s *TickerService) fire(ctx context.Context, symbol, side string, t domain.Target, px float64) {
	s.alerts.Emit(port.LevelInfo,
		fmt.Sprintf("%s target hit for %s at %.8f", side, symbol, px))
	if s.trading == nil || t.Quantity <= 0 {
		return
	}
	res, err := s.trading.PlaceOrder(ctx, port.OrderRequest{
		Symbol:   symbol,
		Side:     side,
		Type:     port.TypeMarket,
		Quantity: t.Quantity,
	})
	if err != nil {
		s.alerts.Emit(port.LevelError,
			fmt.Sprintf("target order %s %s failed: %v", side, symbol, err))
		return
	}
	s.alerts.Emit(port.LevelInfo,
		fmt.Sprintf("target order %s %s placed, id=%s status=%s", side, symbol, res.OrderID, res.Status))
}
