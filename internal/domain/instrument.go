package domain

import (
	"strings"
	"sync"
	"time"
)

// Snapshot is the last-known OHLCV state of one instrument.
// Has is false until the first tick arrives; Close is meaningless before that.
type Snapshot struct {
	Open        float64
	Close       float64
	High        float64
	Low         float64
	Volume      float64
	QuoteVolume float64
	Time        time.Time
	Has         bool
}

// Target is a one-shot price trigger attached to an instrument.
type Target struct {
	Price    float64
	Quantity float64
	Hit      bool
	Set      bool
}

// Instrument holds per-symbol mutable state. One per symbol, owned by the
// Registry, mutated only under the registry lock.
type Instrument struct {
	Symbol string

	snap  Snapshot
	long  Target
	short Target

	regressions uint64 // ticks that arrived with an older event time
}

// ApplyResult reports what the registry decided while applying one frame.
type ApplyResult struct {
	Prev        Snapshot
	Significant bool
	ZeroPrev    bool // previous close was exactly 0, relative change undefined
	Regressed   bool // event time went backwards (applied anyway)
	LongHit     bool
	ShortHit    bool
}

// Registry is the process-wide symbol -> instrument map. Entries are created
// lazily on the first frame for an unseen symbol and never removed.
type Registry struct {
	mu     sync.Mutex
	items  map[string]*Instrument
	policy ChangePolicy
}

func NewRegistry(policy ChangePolicy) *Registry {
	return &Registry{
		items:  make(map[string]*Instrument),
		policy: policy,
	}
}

// Seed creates empty entries for the given symbols.
func (r *Registry) Seed(symbols []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range symbols {
		u := strings.ToUpper(strings.TrimSpace(s))
		if u == "" {
			continue
		}
		if _, ok := r.items[u]; !ok {
			r.items[u] = &Instrument{Symbol: u}
		}
	}
}

func (r *Registry) ensure(symbol string) *Instrument {
	inst, ok := r.items[symbol]
	if !ok {
		inst = &Instrument{Symbol: symbol}
		r.items[symbol] = inst
	}
	return inst
}

// Apply runs the read-previous -> decide -> mutate sequence for one frame
// under the registry lock, so the significance check and the state change
// are atomic with respect to other frames for the same symbol.
func (r *Registry) Apply(symbol string, snap Snapshot) ApplyResult {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))

	r.mu.Lock()
	defer r.mu.Unlock()

	inst := r.ensure(symbol)
	prev := inst.snap

	res := ApplyResult{Prev: prev}
	if prev.Has && prev.Close == 0 {
		res.ZeroPrev = true
	}
	res.Significant = r.policy.Significant(prev, snap.Close)

	if prev.Has && snap.Time.Before(prev.Time) {
		res.Regressed = true
		inst.regressions++
	}

	snap.Has = true
	inst.snap = snap

	if inst.long.Set && !inst.long.Hit && snap.Close >= inst.long.Price {
		inst.long.Hit = true
		res.LongHit = true
	}
	if inst.short.Set && !inst.short.Hit && snap.Close <= inst.short.Price {
		inst.short.Hit = true
		res.ShortHit = true
	}

	return res
}

// Snapshot returns the current state for a symbol, ok=false if never seen.
func (r *Registry) Snapshot(symbol string) (Snapshot, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	inst, ok := r.items[strings.ToUpper(strings.TrimSpace(symbol))]
	if !ok {
		return Snapshot{}, false
	}
	return inst.snap, true
}

// SetLongTarget arms a long trigger: fires once when close >= price.
func (r *Registry) SetLongTarget(symbol string, price, quantity float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	inst := r.ensure(strings.ToUpper(strings.TrimSpace(symbol)))
	inst.long = Target{Price: price, Quantity: quantity, Set: true}
}

// SetShortTarget arms a short trigger: fires once when close <= price.
func (r *Registry) SetShortTarget(symbol string, price, quantity float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	inst := r.ensure(strings.ToUpper(strings.TrimSpace(symbol)))
	inst.short = Target{Price: price, Quantity: quantity, Set: true}
}

// Target returns the armed trigger for a side ("LONG"/"SHORT"), Set=false if none.
func (r *Registry) Target(symbol, side string) Target {
	r.mu.Lock()
	defer r.mu.Unlock()
	inst, ok := r.items[strings.ToUpper(strings.TrimSpace(symbol))]
	if !ok {
		return Target{}
	}
	if strings.EqualFold(side, "LONG") {
		return inst.long
	}
	return inst.short
}

func (r *Registry) Regressions(symbol string) uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	inst, ok := r.items[strings.ToUpper(strings.TrimSpace(symbol))]
	if !ok {
		return 0
	}
	return inst.regressions
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.items)
}

func (r *Registry) Symbols() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.items))
	for s := range r.items {
		out = append(out, s)
	}
	return out
}
