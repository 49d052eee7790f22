package stream

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"tickd/internal/application/port"
)

var (
	ErrAlreadyRunning   = errors.New("stream: connection already running")
	ErrNotRunning       = errors.New("stream: connection not running")
	ErrRetriesExhausted = errors.New("stream: reconnect retries exhausted")
)

// ReconnectPolicy bounds transport-level reconnects. MaxRetries counts
// consecutive failed attempts; a successful session resets the counter.
type ReconnectPolicy struct {
	MaxRetries   int
	InitialDelay time.Duration
	MaxDelay     time.Duration
}

var DefaultReconnectPolicy = ReconnectPolicy{
	MaxRetries:   5,
	InitialDelay: 500 * time.Millisecond,
	MaxDelay:     10 * time.Second,
}

// subscribeRequest is the wire control frame for topic (un)subscription.
type subscribeRequest struct {
	Method string   `json:"method"`
	Params []string `json:"params"`
	ID     int64    `json:"id"`
}

// Conn owns one logical duplex streaming session: dial, subscribe, a single
// reader goroutine, reconnect with backoff, and re-issue of every active
// subscription (in registration order) on each new transport session before
// any frame is read.
type Conn struct {
	url    string
	policy ReconnectPolicy
	router *Router
	alerts port.AlertSink

	mu      sync.Mutex
	subs    []*registration // registration order, preserved across reconnects
	sess    *websocket.Conn // nil while disconnected
	started bool
	cancel  context.CancelFunc
	done    chan struct{}
	nextID  port.SubscriptionID
	reqID   int64

	fatal chan error
}

func NewConn(url string, policy ReconnectPolicy, router *Router, alerts port.AlertSink) *Conn {
	if policy.InitialDelay <= 0 {
		policy.InitialDelay = DefaultReconnectPolicy.InitialDelay
	}
	if policy.MaxDelay <= 0 {
		policy.MaxDelay = DefaultReconnectPolicy.MaxDelay
	}
	return &Conn{
		url:    url,
		policy: policy,
		router: router,
		alerts: alerts,
		fatal:  make(chan error, 1),
	}
}

// Start establishes the transport and begins the receive loop. Calling Start
// on a running connection returns ErrAlreadyRunning and leaves the existing
// session untouched.
func (c *Conn) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started {
		return ErrAlreadyRunning
	}
	runCtx, cancel := context.WithCancel(ctx)
	c.started = true
	c.cancel = cancel
	c.done = make(chan struct{})
	go c.run(runCtx)
	return nil
}

// Fatal delivers at most one error: reconnect retries exhausted.
func (c *Conn) Fatal() <-chan error { return c.fatal }

// Subscribe registers a handler for a topic. Safe before or after Start.
// Each call is a distinct transport-level subscription.
func (c *Conn) Subscribe(topic string, dec port.FrameDecoder, h port.FrameHandler) (port.SubscriptionID, error) {
	if topic == "" {
		return 0, errors.New("stream: empty topic")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.nextID++
	reg := &registration{id: c.nextID, topic: topic, dec: dec, handler: h}
	c.subs = append(c.subs, reg)
	c.router.register(reg)

	if c.sess != nil {
		if err := c.writeControl(c.sess, "SUBSCRIBE", topic); err != nil {
			// the next reconnect re-issues every registration anyway
			log.Warn().Err(err).Str("topic", topic).Msg("subscribe write failed, deferred to reconnect")
		}
	}
	return reg.id, nil
}

// Unsubscribe removes a registration. Best-effort: if the transport is down
// the wire message is skipped and the registration is simply dropped.
func (c *Conn) Unsubscribe(id port.SubscriptionID) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var removed *registration
	for i, reg := range c.subs {
		if reg.id == id {
			removed = reg
			c.subs = append(c.subs[:i], c.subs[i+1:]...)
			break
		}
	}
	if removed == nil {
		return
	}
	c.router.unregister(id)

	// only drop the wire stream if no other registration still needs it
	for _, reg := range c.subs {
		if reg.topic == removed.topic {
			return
		}
	}
	if c.sess != nil {
		if err := c.writeControl(c.sess, "UNSUBSCRIBE", removed.topic); err != nil {
			log.Debug().Err(err).Str("topic", removed.topic).Msg("unsubscribe write failed")
		}
	}
}

// Stop tears down the transport and blocks until the receive loop has exited.
func (c *Conn) Stop() error {
	c.mu.Lock()
	if !c.started {
		c.mu.Unlock()
		return ErrNotRunning
	}
	c.cancel()
	if c.sess != nil {
		// unblock the pending read promptly
		_ = c.sess.Close()
	}
	done := c.done
	c.mu.Unlock()

	<-done

	c.mu.Lock()
	c.started = false
	c.sess = nil
	c.mu.Unlock()
	return nil
}

func (c *Conn) run(ctx context.Context) {
	defer close(c.done)

	retries := 0
	delay := c.policy.InitialDelay

	for {
		if ctx.Err() != nil {
			return
		}

		dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		sess, _, err := websocket.DefaultDialer.DialContext(dialCtx, c.url, nil)
		cancel()
		if err != nil {
			retries++
			if c.exhausted(retries, err) {
				return
			}
			log.Warn().Err(err).Str("url", c.url).Int("attempt", retries).Msg("ws dial failed")
			if !sleepCtx(ctx, delay) {
				return
			}
			delay = minDur(delay*2, c.policy.MaxDelay)
			continue
		}

		// re-issue every active subscription in registration order before a
		// single frame is read, so handlers never observe a partially
		// resubscribed session
		if err := c.attach(sess); err != nil {
			_ = sess.Close()
			retries++
			if c.exhausted(retries, err) {
				return
			}
			log.Warn().Err(err).Msg("resubscribe failed")
			if !sleepCtx(ctx, delay) {
				return
			}
			delay = minDur(delay*2, c.policy.MaxDelay)
			continue
		}

		retries = 0
		delay = c.policy.InitialDelay
		log.Info().Str("url", c.url).Msg("ws connected")

		err = c.readLoop(ctx, sess)

		c.mu.Lock()
		c.sess = nil
		c.mu.Unlock()
		_ = sess.Close()

		if ctx.Err() != nil {
			return
		}
		c.alerts.Emit(port.LevelWarning, fmt.Sprintf("stream disconnected, reconnecting: %v", err))
		if !sleepCtx(ctx, delay) {
			return
		}
		delay = minDur(delay*2, c.policy.MaxDelay)
	}
}

// attach resubscribes and publishes the new session. Holds the lock for the
// whole sequence so Subscribe/Unsubscribe cannot interleave with an
// in-progress reconnect.
func (c *Conn) attach(sess *websocket.Conn) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, reg := range c.subs {
		if err := c.writeControl(sess, "SUBSCRIBE", reg.topic); err != nil {
			return fmt.Errorf("resubscribe %q: %w", reg.topic, err)
		}
	}
	c.sess = sess
	return nil
}

func (c *Conn) exhausted(retries int, cause error) bool {
	if c.policy.MaxRetries <= 0 || retries <= c.policy.MaxRetries {
		return false
	}
	err := fmt.Errorf("%w after %d attempts: %v", ErrRetriesExhausted, retries-1, cause)
	c.alerts.Emit(port.LevelCritical, err.Error())
	select {
	case c.fatal <- err:
	default:
	}
	return true
}

// writeControl sends one SUBSCRIBE/UNSUBSCRIBE request. Caller holds c.mu.
func (c *Conn) writeControl(sess *websocket.Conn, method, topic string) error {
	c.reqID++
	_ = sess.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return sess.WriteJSON(subscribeRequest{
		Method: method,
		Params: []string{topic},
		ID:     c.reqID,
	})
}

func (c *Conn) readLoop(ctx context.Context, sess *websocket.Conn) error {
	_ = sess.SetReadDeadline(time.Now().Add(60 * time.Second))
	sess.SetPongHandler(func(string) error {
		_ = sess.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	pingTicker := time.NewTicker(25 * time.Second)
	defer pingTicker.Stop()

	errCh := make(chan error, 1)
	go func() {
		defer close(errCh)
		for {
			_, b, err := sess.ReadMessage()
			if err != nil {
				errCh <- err
				return
			}
			_ = sess.SetReadDeadline(time.Now().Add(60 * time.Second))
			c.router.Dispatch(b)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-errCh:
			return err
		case <-pingTicker.C:
			_ = sess.WriteControl(websocket.PingMessage, []byte("ping"), time.Now().Add(5*time.Second))
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func minDur(a, b time.Duration) time.Duration {
	if a < b {
		return a
	}
	return b
}
