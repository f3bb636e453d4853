package ratelimit

import (
	"fmt"
	"sync"
	"time"

	"github.com/varunity/affinityserve/internal/observability"
)

// Config holds the token bucket settings for a KeyedLimiter.
type Config struct {
	Capacity   int  // burst allowance
	RefillRate int  // tokens added per second
	Enabled    bool // when false every request is allowed
}

// KeyedLimiter keeps one token bucket per key, created lazily on first access.
//
//	limiter := NewKeyedLimiter("interactions", Config{Capacity: 30, RefillRate: 1, Enabled: true}, metrics)
//	if !limiter.Allow(visitorID) {
//	    // reject
//	}
type KeyedLimiter struct {
	name    string
	buckets map[string]*TokenBucket
	mu      sync.RWMutex
	config  Config
	metrics observability.MetricsRegistry
	now     func() time.Time
}

// NewKeyedLimiter creates a limiter reporting metrics under name.
func NewKeyedLimiter(name string, config Config, metrics observability.MetricsRegistry) *KeyedLimiter {
	return &KeyedLimiter{
		name:    name,
		buckets: make(map[string]*TokenBucket),
		config:  config,
		metrics: metrics,
		now:     time.Now,
	}
}

// Allow reports whether a request for key may proceed.
func (l *KeyedLimiter) Allow(key string) bool {
	if !l.config.Enabled {
		return true
	}
	l.metrics.IncrementRateLimitRequests(l.name)

	l.mu.RLock()
	bucket, exists := l.buckets[key]
	l.mu.RUnlock()

	if !exists {
		l.mu.Lock()
		bucket, exists = l.buckets[key]
		if !exists {
			bucket = newTokenBucket(l.config.Capacity, l.config.RefillRate, l.now)
			l.buckets[key] = bucket
		}
		l.mu.Unlock()
	}

	allowed := bucket.Allow()
	if !allowed {
		l.metrics.IncrementRateLimitHits(l.name)
	}
	return allowed
}

// Prune drops buckets that have not been used for longer than idle and
// returns how many were removed.
func (l *KeyedLimiter) Prune(idle time.Duration) int {
	cutoff := l.now().Add(-idle)
	l.mu.Lock()
	defer l.mu.Unlock()
	removed := 0
	for key, b := range l.buckets {
		if b.idleSince().Before(cutoff) {
			delete(l.buckets, key)
			removed++
		}
	}
	return removed
}

// GetStats returns a snapshot of per-key statistics.
func (l *KeyedLimiter) GetStats() map[string]Stats {
	l.mu.RLock()
	defer l.mu.RUnlock()

	stats := make(map[string]Stats, len(l.buckets))
	for key, bucket := range l.buckets {
		hits, total := bucket.Stats()
		hitRate := 0.0
		if total > 0 {
			hitRate = float64(hits) / float64(total)
		}
		stats[key] = Stats{Key: key, Hits: hits, Total: total, HitRate: hitRate}
	}
	return stats
}

// Stats contains rate limiting statistics for a single key.
type Stats struct {
	Key     string  `json:"key"`
	Hits    int64   `json:"hits"`
	Total   int64   `json:"total"`
	HitRate float64 `json:"hitRate"`
}

// String returns a human-readable representation of the statistics.
func (s Stats) String() string {
	return fmt.Sprintf("%s: %d/%d hits (%.2f%%)", s.Key, s.Hits, s.Total, s.HitRate*100)
}
