// Package tasks tracks the single live attempt allowed per request kind.
// Registering a new attempt cancels the previous one of the same kind
// before the new attempt's work can start.
package tasks

import (
	"context"
	"sync"
)

// Handle represents one registered attempt. Its context is the root of all
// work the attempt does; cancelling the handle stops that work.
type Handle struct {
	ctx    context.Context
	cancel context.CancelFunc
	id     uint64
}

// Ctx returns the handle's context.
func (h *Handle) Ctx() context.Context { return h.ctx }

// Registry holds at most one live handle per kind.
type Registry struct {
	mu     sync.Mutex
	active map[string]*Handle
	nextID uint64
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{active: make(map[string]*Handle)}
}

// Begin cancels any live handle for the kind and registers a fresh one
// derived from parent. Cancelling the old handle and registering the new
// one happen in one critical section, so two attempts of the same kind
// never run with both handles live.
func (r *Registry) Begin(parent context.Context, kind string) *Handle {
	ctx, cancel := context.WithCancel(parent)

	r.mu.Lock()
	defer r.mu.Unlock()
	if old, ok := r.active[kind]; ok {
		old.cancel()
	}
	r.nextID++
	h := &Handle{ctx: ctx, cancel: cancel, id: r.nextID}
	r.active[kind] = h
	return h
}

// Finish releases h. The registry entry is removed only when h is still the
// registered handle for the kind; a handle superseded by a newer Begin
// leaves the newer registration alone.
func (r *Registry) Finish(kind string, h *Handle) {
	r.mu.Lock()
	if cur, ok := r.active[kind]; ok && cur == h {
		delete(r.active, kind)
	}
	r.mu.Unlock()

	h.cancel()
}

// Cancel cancels and removes the live handle for the kind. Does nothing
// when no attempt is registered.
func (r *Registry) Cancel(kind string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if h, ok := r.active[kind]; ok {
		h.cancel()
		delete(r.active, kind)
	}
}

// CancelAll cancels every live handle.
func (r *Registry) CancelAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for kind, h := range r.active {
		h.cancel()
		delete(r.active, kind)
	}
}

// Active reports whether a handle is registered for the kind.
func (r *Registry) Active(kind string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.active[kind]
	return ok
}
