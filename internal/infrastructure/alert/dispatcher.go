package alert

import (
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"tickd/internal/application/port"
)

// Sink receives one alert. Sinks are composed into a Dispatcher in order;
// a failing sink never stops the others.
type Sink interface {
	Emit(level port.Level, msg string, ts time.Time) error
}

type event struct {
	level port.Level
	msg   string
	ts    time.Time
}

// Dispatcher decouples alert emission from delivery: Emit enqueues and
// returns immediately, a single goroutine drains to the sinks. A full queue
// drops the alert rather than blocking the hot path.
type Dispatcher struct {
	sinks []Sink
	ch    chan event
	done  chan struct{}

	dropped atomic.Uint64
	once    sync.Once
}

func NewDispatcher(queueSize int, sinks ...Sink) *Dispatcher {
	if queueSize <= 0 {
		queueSize = 256
	}
	d := &Dispatcher{
		sinks: sinks,
		ch:    make(chan event, queueSize),
		done:  make(chan struct{}),
	}
	go d.drain()
	return d
}

func (d *Dispatcher) Emit(level port.Level, msg string) {
	ev := event{level: level, msg: msg, ts: time.Now()}
	select {
	case d.ch <- ev:
	default:
		d.dropped.Add(1)
	}
}

// Close stops accepting alerts, delivers what is already queued and returns.
func (d *Dispatcher) Close() {
	d.once.Do(func() {
		close(d.ch)
	})
	<-d.done
}

// Dropped returns how many alerts were discarded due to a full queue.
func (d *Dispatcher) Dropped() uint64 { return d.dropped.Load() }

func (d *Dispatcher) drain() {
	defer close(d.done)
	for ev := range d.ch {
		for _, s := range d.sinks {
			if err := s.Emit(ev.level, ev.msg, ev.ts); err != nil {
				log.Error().Err(err).Str("level", ev.level.String()).Msg("alert sink failed")
			}
		}
	}
}

var _ port.AlertSink = (*Dispatcher)(nil)

// ParseLevel maps a config string to a Level.
func ParseLevel(s string) (port.Level, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return port.LevelDebug, nil
	case "INFO":
		return port.LevelInfo, nil
	case "WARNING", "WARN":
		return port.LevelWarning, nil
	case "ERROR":
		return port.LevelError, nil
	case "CRITICAL":
		return port.LevelCritical, nil
	default:
		return port.LevelInfo, fmt.Errorf("unknown alert level: %q", s)
	}
}
