// Package cache provides a typed, thread-safe TTL cache for fetch results.
// Entries expire lazily: an expired entry is dropped the first time a read
// touches it, so an idle cache may hold stale entries but never serves one.
package cache

import (
	"sync"
	"time"
)

type entry[T any] struct {
	value    T
	storedAt time.Time
}

// Store is a typed result cache. Values live for a fixed TTL counted from
// the write, not from the last read.
type Store[T any] struct {
	mu      sync.Mutex
	entries map[string]entry[T]
	ttl     time.Duration
}

// New creates a Store whose entries expire ttl after they were written.
func New[T any](ttl time.Duration) *Store[T] {
	return &Store[T]{
		entries: make(map[string]entry[T]),
		ttl:     ttl,
	}
}

// Get returns the cached value for key. An expired entry is deleted on the
// spot and reported as a miss.
func (s *Store[T]) Get(key string) (T, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var zero T
	e, ok := s.entries[key]
	if !ok {
		return zero, false
	}
	if time.Since(e.storedAt) > s.ttl {
		delete(s.entries, key)
		return zero, false
	}
	return e.value, true
}

// Put stores value under key, replacing any previous entry and restarting
// its TTL.
func (s *Store[T]) Put(key string, value T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = entry[T]{value: value, storedAt: time.Now()}
}

// Clear drops every entry.
func (s *Store[T]) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make(map[string]entry[T])
}

// Cleanup evicts every expired entry at once.
func (s *Store[T]) Cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := time.Now().Add(-s.ttl)
	for key, e := range s.entries {
		if e.storedAt.Before(cutoff) {
			delete(s.entries, key)
		}
	}
}

// Len returns the number of stored entries, expired ones included.
func (s *Store[T]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
