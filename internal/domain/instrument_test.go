package domain

import (
	"testing"
	"time"
)

func snapAt(close float64, ts time.Time) Snapshot {
	return Snapshot{
		Open: close - 1, Close: close, High: close + 1, Low: close - 2,
		Volume: 10, QuoteVolume: 1000, Time: ts,
	}
}

func TestRegistryLazyCreate(t *testing.T) {
	r := NewRegistry(NewChangePolicy(0.001))
	if r.Len() != 0 {
		t.Fatalf("expected empty registry")
	}

	res := r.Apply("btcusdt", snapAt(100.0, time.Now()))
	if !res.Significant {
		t.Errorf("first frame must be significant")
	}
	if r.Len() != 1 {
		t.Fatalf("expected 1 instrument, got %d", r.Len())
	}
	if _, ok := r.Snapshot("BTCUSDT"); !ok {
		t.Errorf("symbol should be normalized to upper case")
	}
}

func TestRegistrySeed(t *testing.T) {
	r := NewRegistry(NewChangePolicy(0.001))
	r.Seed([]string{"BTCUSDT", "ethusdt", " ", "BTCUSDT"})
	if r.Len() != 2 {
		t.Fatalf("expected 2 seeded instruments, got %d", r.Len())
	}
	snap, ok := r.Snapshot("ETHUSDT")
	if !ok {
		t.Fatalf("seeded symbol missing")
	}
	if snap.Has {
		t.Errorf("seeded instrument must have no snapshot before the first tick")
	}
}

func TestRegistryLastFrameWins(t *testing.T) {
	r := NewRegistry(NewChangePolicy(0.001))
	t0 := time.Now()

	r.Apply("BTCUSDT", snapAt(100.0, t0))
	last := Snapshot{
		Open: 99, Close: 101.5, High: 102, Low: 98,
		Volume: 20, QuoteVolume: 2000, Time: t0.Add(time.Second),
	}
	r.Apply("BTCUSDT", last)

	got, _ := r.Snapshot("BTCUSDT")
	last.Has = true
	if got != last {
		t.Errorf("snapshot = %+v, want last applied frame %+v", got, last)
	}
}

func TestRegistrySignificanceUsesPreviousClose(t *testing.T) {
	r := NewRegistry(NewChangePolicy(0.001))
	t0 := time.Now()

	if res := r.Apply("BTCUSDT", snapAt(100.0, t0)); !res.Significant {
		t.Errorf("first tick significant")
	}
	if res := r.Apply("BTCUSDT", snapAt(100.05, t0.Add(time.Second))); res.Significant {
		t.Errorf("0.05%% change should not be significant")
	}
	if res := r.Apply("BTCUSDT", snapAt(101.5, t0.Add(2*time.Second))); !res.Significant {
		t.Errorf("1.5%% change should be significant")
	}
}

func TestRegistryZeroPrevFlag(t *testing.T) {
	r := NewRegistry(NewChangePolicy(0.001))
	t0 := time.Now()

	r.Apply("XUSDT", snapAt(0, t0))
	res := r.Apply("XUSDT", snapAt(5.0, t0.Add(time.Second)))
	if !res.ZeroPrev {
		t.Errorf("expected ZeroPrev flag")
	}
	if !res.Significant {
		t.Errorf("update after zero close must be significant")
	}
}

func TestRegistryTimeRegression(t *testing.T) {
	r := NewRegistry(NewChangePolicy(0.001))
	t0 := time.Now()

	r.Apply("BTCUSDT", snapAt(100.0, t0))
	res := r.Apply("BTCUSDT", snapAt(102.0, t0.Add(-time.Second)))
	if !res.Regressed {
		t.Errorf("expected regression flag")
	}
	if r.Regressions("BTCUSDT") != 1 {
		t.Errorf("expected 1 recorded regression, got %d", r.Regressions("BTCUSDT"))
	}

	// regressed frame is still applied
	got, _ := r.Snapshot("BTCUSDT")
	if got.Close != 102.0 {
		t.Errorf("regressed frame must still be applied, close = %v", got.Close)
	}
}

func TestRegistryTargets(t *testing.T) {
	r := NewRegistry(NewChangePolicy(0.001))
	t0 := time.Now()

	r.SetLongTarget("BTCUSDT", 105.0, 0.5)
	r.SetShortTarget("BTCUSDT", 95.0, 0.5)

	res := r.Apply("BTCUSDT", snapAt(100.0, t0))
	if res.LongHit || res.ShortHit {
		t.Fatalf("no target should fire at 100.0")
	}

	res = r.Apply("BTCUSDT", snapAt(106.0, t0.Add(time.Second)))
	if !res.LongHit {
		t.Errorf("long target should fire at 106.0")
	}

	// one-shot: a second cross does not fire again
	res = r.Apply("BTCUSDT", snapAt(107.0, t0.Add(2*time.Second)))
	if res.LongHit {
		t.Errorf("long target must fire only once")
	}

	if tg := r.Target("BTCUSDT", "LONG"); !tg.Hit {
		t.Errorf("long target should be marked hit")
	}
	if tg := r.Target("BTCUSDT", "SHORT"); tg.Hit {
		t.Errorf("short target should not be hit")
	}
}
