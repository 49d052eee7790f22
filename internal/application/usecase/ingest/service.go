package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"tickd/internal/application/port"
	"tickd/internal/domain"
)

// TopicFunc names the stream topic for one symbol, e.g. "btcusdt@ticker".
type TopicFunc func(symbol string) string

type ServiceDeps struct {
	Conns      []port.StreamConn
	Universe   port.InstrumentLister
	Registry   *domain.Registry
	Handler    port.FrameHandler
	Decoder    port.FrameDecoder
	Topic      TopicFunc
	Symbols    []string // explicit symbol list; empty means discover by quote asset
	QuoteAsset string
	Alerts     port.AlertSink
}

// Service owns the ingest lifecycle: discover the instrument universe, start
// the stream connections, subscribe every symbol, block until shutdown or a
// fatal transport error, then tear everything down in reverse start order.
type Service struct {
	deps    ServiceDeps
	symbols []string
}

func NewService(deps ServiceDeps) *Service {
	return &Service{deps: deps}
}

// Bootstrap resolves the symbol universe and seeds the registry. With an
// explicit symbol list the exchange is not consulted.
func (s *Service) Bootstrap(ctx context.Context) error {
	symbols := normalize(s.deps.Symbols)

	if len(symbols) == 0 {
		if s.deps.Universe == nil {
			return errors.New("no symbols configured and no instrument lister to discover them")
		}
		all, err := s.deps.Universe.ListInstruments(ctx)
		if err != nil {
			return fmt.Errorf("list instruments: %w", err)
		}
		quote := strings.ToUpper(strings.TrimSpace(s.deps.QuoteAsset))
		for _, sym := range normalize(all) {
			if quote == "" || strings.HasSuffix(sym, quote) {
				symbols = append(symbols, sym)
			}
		}
	}

	if len(symbols) == 0 {
		return fmt.Errorf("no instruments quoted in %s", s.deps.QuoteAsset)
	}

	s.deps.Registry.Seed(symbols)
	s.symbols = symbols

	log.Info().
		Int("instruments", len(symbols)).
		Str("quote", s.deps.QuoteAsset).
		Msg("universe seeded")
	return nil
}

// Run starts every connection, subscribes the bootstrapped symbols spread
// round-robin across connections, and blocks until ctx is cancelled or a
// connection exhausts its reconnect attempts. Shutdown stops connections in
// reverse start order so the newest sessions drain first.
func (s *Service) Run(ctx context.Context) error {
	if len(s.deps.Conns) == 0 {
		return errors.New("no stream connections")
	}
	if len(s.symbols) == 0 {
		return errors.New("bootstrap first: symbol universe is empty")
	}

	var started []port.StreamConn
	for i, conn := range s.deps.Conns {
		if err := conn.Start(ctx); err != nil {
			s.stop(started)
			return fmt.Errorf("start connection %d: %w", i, err)
		}
		started = append(started, conn)
		log.Info().Int("conn", i).Msg("stream connection started")
	}

	for i, sym := range s.symbols {
		conn := started[i%len(started)]
		if _, err := conn.Subscribe(s.deps.Topic(sym), s.deps.Decoder, s.deps.Handler); err != nil {
			s.stop(started)
			return fmt.Errorf("subscribe %s: %w", sym, err)
		}
	}

	s.deps.Alerts.Emit(port.LevelInfo,
		fmt.Sprintf("ingest running: %d instruments on %d connections", len(s.symbols), len(started)))

	fatal := make(chan error, len(started))
	for _, conn := range started {
		go func(c port.StreamConn) {
			select {
			case err := <-c.Fatal():
				fatal <- err
			case <-ctx.Done():
			}
		}(conn)
	}

	select {
	case <-ctx.Done():
		s.stop(started)
		return ctx.Err()
	case err := <-fatal:
		s.stop(started)
		return fmt.Errorf("stream connection failed: %w", err)
	}
}

func (s *Service) stop(conns []port.StreamConn) {
	for i := len(conns) - 1; i >= 0; i-- {
		if err := conns[i].Stop(); err != nil && !errors.Is(err, context.Canceled) {
			log.Warn().Err(err).Int("conn", i).Msg("connection stop")
		}
	}
}

func normalize(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, s := range in {
		u := strings.ToUpper(strings.TrimSpace(s))
		if u == "" {
			continue
		}
		if _, ok := seen[u]; ok {
			continue
		}
		seen[u] = struct{}{}
		out = append(out, u)
	}
	return out
}
