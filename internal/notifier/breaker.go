package notifier

import (
	"sync"
	"time"
)

// breakerState counts consecutive undelivered reminders for one sink.
type breakerState struct {
	fails       int
	openUntil   time.Time
	lastFailure time.Time
}

// breakers is a per-sink consecutive-failure circuit breaker. After trip
// dropped reminders the sink is skipped for a cooldown that doubles on each
// further failure, up to max. A success closes it.
type breakers struct {
	mu sync.Mutex
	m  map[string]*breakerState
}

type breakerCfg struct {
	trip       int
	base       time.Duration
	max        time.Duration
	resetAfter time.Duration
}

func effectiveBreakerCfg(cfg Config) (breakerCfg, bool) {
	if cfg.BreakerTrip < 0 {
		return breakerCfg{}, false
	}
	bc := breakerCfg{trip: cfg.BreakerTrip, base: cfg.BreakerCooldown, max: cfg.BreakerMaxCooldown}
	if bc.trip == 0 {
		bc.trip = 3
	}
	if bc.base <= 0 {
		bc.base = 30 * time.Second
	}
	if bc.max < bc.base {
		bc.max = max(10*time.Minute, bc.base)
	}
	bc.resetAfter = 3 * bc.max
	return bc, true
}

func (b *breakers) stateLocked(sink string) *breakerState {
	if b.m == nil {
		b.m = make(map[string]*breakerState)
	}
	st := b.m[sink]
	if st == nil {
		st = &breakerState{}
		b.m[sink] = st
	}
	return st
}

func (b *breakers) expireLocked(now time.Time, st *breakerState, bc breakerCfg) {
	if !st.lastFailure.IsZero() && now.Sub(st.lastFailure) > bc.resetAfter {
		*st = breakerState{}
	}
}

// open reports whether sink is cooling down and until when.
func (b *breakers) open(now time.Time, sink string, cfg Config) (bool, time.Time) {
	bc, ok := effectiveBreakerCfg(cfg)
	if !ok {
		return false, time.Time{}
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	st := b.stateLocked(sink)
	b.expireLocked(now, st, bc)
	if !st.openUntil.IsZero() && now.Before(st.openUntil) {
		return true, st.openUntil
	}
	return false, time.Time{}
}

// record notes the outcome of one reminder (after retries) and reports
// whether this failure tripped the breaker.
func (b *breakers) record(now time.Time, sink string, cfg Config, err error) (tripped bool) {
	bc, ok := effectiveBreakerCfg(cfg)
	if !ok {
		return false
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	st := b.stateLocked(sink)
	b.expireLocked(now, st, bc)
	if err == nil {
		*st = breakerState{}
		return false
	}
	st.fails++
	st.lastFailure = now
	if st.fails < bc.trip {
		return false
	}
	d := bc.base
	for i := bc.trip; i < st.fails && d < bc.max; i++ {
		d *= 2
	}
	st.openUntil = now.Add(min(d, bc.max))
	return true
}

// snapshot returns the sinks currently cooling down.
func (b *breakers) snapshot(now time.Time) map[string]time.Time {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := map[string]time.Time{}
	for name, st := range b.m {
		if !st.openUntil.IsZero() && now.Before(st.openUntil) {
			out[name] = st.openUntil
		}
	}
	return out
}
