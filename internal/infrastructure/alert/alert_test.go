package alert

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"tickd/internal/application/port"
)

type recordSink struct {
	mu     sync.Mutex
	events []string
}

func (s *recordSink) Emit(level port.Level, msg string, ts time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, level.String()+":"+msg)
	return nil
}

func (s *recordSink) snapshot() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.events...)
}

func TestDispatcherDeliversInOrder(t *testing.T) {
	sink := &recordSink{}
	d := NewDispatcher(16, sink)

	d.Emit(port.LevelInfo, "one")
	d.Emit(port.LevelWarning, "two")
	d.Emit(port.LevelError, "three")
	d.Close()

	got := sink.snapshot()
	want := []string{"INFO:one", "WARNING:two", "ERROR:three"}
	if len(got) != len(want) {
		t.Fatalf("delivered %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("event[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestDispatcherDropsWhenFull(t *testing.T) {
	block := make(chan struct{})
	blocking := sinkFunc(func(level port.Level, msg string, ts time.Time) error {
		<-block
		return nil
	})

	d := NewDispatcher(1, blocking)
	// first event occupies the drain goroutine, second fills the queue,
	// the rest must be dropped without blocking
	for i := 0; i < 10; i++ {
		d.Emit(port.LevelInfo, "x")
	}
	if d.Dropped() == 0 {
		t.Errorf("expected dropped alerts with a full queue")
	}
	close(block)
	d.Close()
}

type sinkFunc func(level port.Level, msg string, ts time.Time) error

func (f sinkFunc) Emit(level port.Level, msg string, ts time.Time) error {
	return f(level, msg, ts)
}

type logCapture struct {
	mu   sync.Mutex
	logs []port.LogRecord
}

func (c *logCapture) InsertTicker(ctx context.Context, tk port.Ticker) error { return nil }
func (c *logCapture) InsertLog(ctx context.Context, l port.LogRecord) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.logs = append(c.logs, l)
	return nil
}
func (c *logCapture) QueryTickers(ctx context.Context, symbol string, start, end time.Time) ([]port.Ticker, error) {
	return nil, nil
}
func (c *logCapture) Close() error { return nil }

func TestStoreSinkWritesLogRecord(t *testing.T) {
	repo := &logCapture{}
	s := NewStoreSink(repo)

	ts := time.Now()
	if err := s.Emit(port.LevelError, "boom", ts); err != nil {
		t.Fatalf("Emit failed: %v", err)
	}
	if len(repo.logs) != 1 {
		t.Fatalf("expected 1 log record, got %d", len(repo.logs))
	}
	if repo.logs[0].Level != "ERROR" || repo.logs[0].Msg != "boom" {
		t.Errorf("unexpected record: %+v", repo.logs[0])
	}
}

func TestSlackSinkFiltersBelowMinLevel(t *testing.T) {
	var posts int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		posts++
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s := NewSlackSink(srv.URL, "#alerts", port.LevelInfo)

	if err := s.Emit(port.LevelDebug, "ignored", time.Now()); err != nil {
		t.Fatalf("debug emit: %v", err)
	}
	if posts != 0 {
		t.Fatalf("DEBUG alert must not reach slack")
	}

	if err := s.Emit(port.LevelError, "visible", time.Now()); err != nil {
		t.Fatalf("error emit: %v", err)
	}
	if posts != 1 {
		t.Fatalf("expected 1 slack post, got %d", posts)
	}
}

func TestSlackSinkPayload(t *testing.T) {
	var got slackPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(b, &got)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s := NewSlackSink(srv.URL, "#alerts", port.LevelInfo)
	if err := s.Emit(port.LevelWarning, "disk almost full", time.Now()); err != nil {
		t.Fatalf("Emit failed: %v", err)
	}
	if got.Channel != "#alerts" {
		t.Errorf("channel = %q, want #alerts", got.Channel)
	}
	if got.Text != "WARNING: disk almost full" {
		t.Errorf("text = %q", got.Text)
	}
}

func TestParseLevel(t *testing.T) {
	if lvl, err := ParseLevel("warning"); err != nil || lvl != port.LevelWarning {
		t.Errorf("ParseLevel(warning) = %v, %v", lvl, err)
	}
	if _, err := ParseLevel("loud"); err == nil {
		t.Errorf("expected error for unknown level")
	}
}
