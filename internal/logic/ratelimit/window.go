package ratelimit

import (
	"sync"
	"time"

	"github.com/varunity/affinityserve/internal/observability"
)

// WindowLimiter allows one event per key per window.
//
// A caller reserves the window with Reserve before doing the work and
// cancels the reservation if the work fails, so only successful events
// hold a window while concurrent callers for the same key still see it:
//
//	cancel, ok := limiter.Reserve(clientIP)
//	if !ok {
//	    return ErrRateLimited
//	}
//	if err := save(); err != nil {
//	    cancel()
//	    return err
//	}
type WindowLimiter struct {
	name    string                       // Metric label
	window  time.Duration                // Minimum gap between events for one key
	mu      sync.RWMutex                 // Protects last
	last    map[string]time.Time         // Start of the current window per key
	metrics observability.MetricsRegistry
	now     func() time.Time
}

// NewWindowLimiter returns a limiter with the given window.
func NewWindowLimiter(name string, window time.Duration, metrics observability.MetricsRegistry) *WindowLimiter {
	return &WindowLimiter{
		name:    name,
		window:  window,
		last:    make(map[string]time.Time),
		metrics: metrics,
		now:     time.Now,
	}
}

// Reserve starts a window for key if none is open. The check and the write
// happen under one lock, so of two concurrent callers only one gets ok.
// The returned cancel restores the previous state unless the window has been
// reserved again since; it is safe to call more than once.
func (w *WindowLimiter) Reserve(key string) (cancel func(), ok bool) {
	w.metrics.IncrementRateLimitRequests(w.name)
	now := w.now()

	w.mu.Lock()
	prev, had := w.last[key]
	if had && now.Sub(prev) < w.window {
		w.mu.Unlock()
		w.metrics.IncrementRateLimitHits(w.name)
		return func() {}, false
	}
	w.last[key] = now
	w.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			w.mu.Lock()
			defer w.mu.Unlock()
			if cur, ok := w.last[key]; !ok || !cur.Equal(now) {
				return
			}
			if had {
				w.last[key] = prev
			} else {
				delete(w.last, key)
			}
		})
	}, true
}

// Prune forgets keys recorded more than olderThan ago and returns how many
// were removed.
func (w *WindowLimiter) Prune(olderThan time.Duration) int {
	now := w.now()
	w.mu.Lock()
	defer w.mu.Unlock()
	removed := 0
	for key, t := range w.last {
		if now.Sub(t) > olderThan {
			delete(w.last, key)
			removed++
		}
	}
	return removed
}

// Len returns the number of tracked keys.
func (w *WindowLimiter) Len() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.last)
}
