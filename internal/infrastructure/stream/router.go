package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"tickd/internal/application/port"
)

type registration struct {
	id      port.SubscriptionID
	topic   string
	dec     port.FrameDecoder
	handler port.FrameHandler
}

type job struct {
	reg   *registration
	frame port.Frame
}

// Router demultiplexes raw stream messages to registered handlers. Handlers
// run on a fixed pool of shard workers; a frame is routed to its shard by
// symbol hash, so updates for one symbol are serialized while a slow handler
// for one symbol cannot stall frames for another.
type Router struct {
	alerts port.AlertSink
	grace  time.Duration

	mu   sync.Mutex
	regs map[string][]*registration

	shards  []chan job
	wg      sync.WaitGroup
	stopped chan struct{}
	once    sync.Once
}

func NewRouter(workers, queueSize int, grace time.Duration, alerts port.AlertSink) *Router {
	if workers <= 0 {
		workers = 4
	}
	if queueSize <= 0 {
		queueSize = 1024
	}
	if grace <= 0 {
		grace = 5 * time.Second
	}
	r := &Router{
		alerts:  alerts,
		grace:   grace,
		regs:    make(map[string][]*registration),
		shards:  make([]chan job, workers),
		stopped: make(chan struct{}),
	}
	for i := range r.shards {
		r.shards[i] = make(chan job, queueSize)
		r.wg.Add(1)
		go r.worker(r.shards[i])
	}
	return r
}

func (r *Router) register(reg *registration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.regs[reg.topic] = append(r.regs[reg.topic], reg)
}

func (r *Router) unregister(id port.SubscriptionID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for topic, regs := range r.regs {
		for i, reg := range regs {
			if reg.id == id {
				r.regs[topic] = append(regs[:i], regs[i+1:]...)
				if len(r.regs[topic]) == 0 {
					delete(r.regs, topic)
				}
				return
			}
		}
	}
}

// envelope is the combined-stream wrapper: data frames carry a stream name,
// control acks carry the request id instead.
type envelope struct {
	Stream string          `json:"stream"`
	Data   json.RawMessage `json:"data"`
	ID     *int64          `json:"id"`
}

// Dispatch routes one raw message. Called from the connection's single
// reader goroutine; must never block on handler execution.
func (r *Router) Dispatch(raw []byte) {
	select {
	case <-r.stopped:
		return
	default:
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		r.alerts.Emit(port.LevelWarning, fmt.Sprintf("malformed frame dropped: %v", err))
		return
	}
	if env.Stream == "" {
		if env.ID != nil {
			log.Debug().Int64("id", *env.ID).Msg("subscription ack")
			return
		}
		r.alerts.Emit(port.LevelWarning, "frame without stream id dropped")
		return
	}

	r.mu.Lock()
	regs := append([]*registration(nil), r.regs[env.Stream]...)
	r.mu.Unlock()

	if len(regs) == 0 {
		r.alerts.Emit(port.LevelWarning, fmt.Sprintf("no handler for topic %q, frame dropped", env.Stream))
		return
	}

	for _, reg := range regs {
		frame, err := reg.dec(env.Stream, env.Data)
		if err != nil {
			r.alerts.Emit(port.LevelWarning, fmt.Sprintf("malformed frame on %q dropped: %v", env.Stream, err))
			continue
		}
		shard := r.shards[shardFor(frame.Symbol, len(r.shards))]
		select {
		case shard <- job{reg: reg, frame: frame}:
		default:
			r.alerts.Emit(port.LevelWarning, fmt.Sprintf("shard queue full, frame for %s dropped", frame.Symbol))
		}
	}
}

func shardFor(symbol string, n int) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(symbol))
	return int(h.Sum32() % uint32(n))
}

func (r *Router) worker(ch <-chan job) {
	defer r.wg.Done()
	for j := range ch {
		select {
		case <-r.stopped:
			// queued but not started: cancelled on shutdown
			continue
		default:
		}
		r.invoke(j)
	}
}

func (r *Router) invoke(j job) {
	defer func() {
		if rec := recover(); rec != nil {
			r.alerts.Emit(port.LevelError,
				fmt.Sprintf("handler panic on %s (%s): %v", j.frame.Symbol, j.reg.topic, rec))
		}
	}()
	if err := j.reg.handler.Handle(context.Background(), j.frame); err != nil {
		r.alerts.Emit(port.LevelError,
			fmt.Sprintf("handler error on %s (%s): %v", j.frame.Symbol, j.reg.topic, err))
	}
}

// Stop rejects new frames, drops queued-but-unstarted work and waits up to
// the grace timeout for started handlers to finish. Call after the owning
// connections have stopped dispatching.
func (r *Router) Stop() {
	r.once.Do(func() {
		close(r.stopped)
		for _, ch := range r.shards {
			close(ch)
		}
	})

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(r.grace):
		log.Warn().Dur("grace", r.grace).Msg("router stop exceeded grace timeout")
	}
}
