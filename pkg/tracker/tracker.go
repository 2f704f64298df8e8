// Package tracker counts what happened to each request kind: cache
// behavior, starts and how the attempts ended. The counters feed the
// -stats output and debug logging; nothing on the fetch path reads them.
package tracker

import (
	"sync"
	"sync/atomic"
)

// Tracker tracks usage statistics per request kind.
type Tracker struct {
	mu    sync.RWMutex
	stats map[string]*KindStats
}

// KindStats holds the counters for one request kind.
// Fields are accessed atomically.
type KindStats struct {
	CacheHits   int64
	CacheMisses int64
	Started     int64
	Successes   int64
	Failures    int64
	Timeouts    int64
	Cancelled   int64
	NoResults   int64
}

// New creates a new Tracker.
func New() *Tracker {
	return &Tracker{
		stats: make(map[string]*KindStats),
	}
}

// getStats returns the stats object for a kind, creating it if needed.
func (t *Tracker) getStats(kind string) *KindStats {
	t.mu.RLock()
	s, ok := t.stats[kind]
	t.mu.RUnlock()
	if ok {
		return s
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	// Double check
	if s, ok = t.stats[kind]; ok {
		return s
	}
	s = &KindStats{}
	t.stats[kind] = s
	return s
}

// TrackCacheHit increments the cache hit counter.
func (t *Tracker) TrackCacheHit(kind string) {
	atomic.AddInt64(&t.getStats(kind).CacheHits, 1)
}

func (t *Tracker) TrackCacheMiss(kind string) {
	atomic.AddInt64(&t.getStats(kind).CacheMisses, 1)
}

func (t *Tracker) TrackStarted(kind string) {
	atomic.AddInt64(&t.getStats(kind).Started, 1)
}

func (t *Tracker) TrackSuccess(kind string) {
	atomic.AddInt64(&t.getStats(kind).Successes, 1)
}

func (t *Tracker) TrackFailure(kind string) {
	atomic.AddInt64(&t.getStats(kind).Failures, 1)
}

func (t *Tracker) TrackTimeout(kind string) {
	atomic.AddInt64(&t.getStats(kind).Timeouts, 1)
}

func (t *Tracker) TrackCancelled(kind string) {
	atomic.AddInt64(&t.getStats(kind).Cancelled, 1)
}

func (t *Tracker) TrackNoResults(kind string) {
	atomic.AddInt64(&t.getStats(kind).NoResults, 1)
}

// Snapshot returns a copy of the current stats.
func (t *Tracker) Snapshot() map[string]KindStats {
	t.mu.RLock()
	defer t.mu.RUnlock()

	result := make(map[string]KindStats)
	for k, v := range t.stats {
		result[k] = KindStats{
			CacheHits:   atomic.LoadInt64(&v.CacheHits),
			CacheMisses: atomic.LoadInt64(&v.CacheMisses),
			Started:     atomic.LoadInt64(&v.Started),
			Successes:   atomic.LoadInt64(&v.Successes),
			Failures:    atomic.LoadInt64(&v.Failures),
			Timeouts:    atomic.LoadInt64(&v.Timeouts),
			Cancelled:   atomic.LoadInt64(&v.Cancelled),
			NoResults:   atomic.LoadInt64(&v.NoResults),
		}
	}
	return result
}
