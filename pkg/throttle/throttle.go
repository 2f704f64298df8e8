// Package throttle enforces the spacing and single-flight rules for backend
// requests. Each request kind gets its own gate: a new request may start
// only when no request of that kind is in flight and the minimum interval
// since the previous start has passed.
package throttle

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type kindState struct {
	limiter  *rate.Limiter
	inFlight bool
}

// Gate tracks per-kind throttle state under a single mutex.
type Gate struct {
	mu       sync.Mutex
	interval time.Duration
	kinds    map[string]*kindState
}

// New creates a Gate with the given minimum interval between starts.
func New(interval time.Duration) *Gate {
	return &Gate{
		interval: interval,
		kinds:    make(map[string]*kindState),
	}
}

// state returns the tracked state for kind, creating it on first use.
// Callers must hold g.mu.
func (g *Gate) state(kind string) *kindState {
	st, ok := g.kinds[kind]
	if !ok {
		st = &kindState{limiter: rate.NewLimiter(rate.Every(g.interval), 1)}
		g.kinds[kind] = st
	}
	return st
}

// TryStart reports whether a request of the given kind may start now and
// claims the slot when it may. The in-flight check, the spacing check and
// the claim are one atomic step; a false return consumes nothing.
func (g *Gate) TryStart(kind string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	st := g.state(kind)
	if st.inFlight {
		return false
	}
	if !st.limiter.Allow() {
		return false
	}
	st.inFlight = true
	return true
}

// MarkCompleted releases the in-flight slot for the kind. Extra calls for
// an already released kind do nothing.
func (g *Gate) MarkCompleted(kind string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if st, ok := g.kinds[kind]; ok {
		st.inFlight = false
	}
}

// Reset drops the kind's state entirely so the next TryStart succeeds
// regardless of when the previous request started.
func (g *Gate) Reset(kind string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.kinds, kind)
}

// ResetAll drops every kind.
func (g *Gate) ResetAll() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.kinds = make(map[string]*kindState)
}

// InFlight reports whether a request of the kind is currently running.
func (g *Gate) InFlight(kind string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	st, ok := g.kinds[kind]
	return ok && st.inFlight
}
