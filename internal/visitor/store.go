// Package visitor holds per-visitor state that persists across requests: the
// detected interest, interaction history, segment override and opt-out flag.
package visitor

import (
	"context"
	"sync"
	"time"
)

// Keys persisted per visitor.
const (
	KeyInterest        = "content_interest"
	KeyInterestUpdated = "content_interest_updated"
	KeyInteractions    = "content_interactions"
	KeySegmentOverride = "segment_override"
	KeyOptOut          = "personalization_opt_out"
)

// Store is the get/set/remove port the personalization core persists through.
// Values are opaque strings; a missing key reports ok=false with a nil error.
type Store interface {
	Get(ctx context.Context, visitorID, key string) (value string, ok bool, err error)
	Set(ctx context.Context, visitorID, key, value string) error
	Remove(ctx context.Context, visitorID, key string) error
}

// MemoryStore is an in-process Store used in development and tests. Entries
// expire after ttl when ttl is positive.
type MemoryStore struct {
	mu   sync.RWMutex
	ttl  time.Duration
	now  func() time.Time
	data map[string]memoryEntry
}

type memoryEntry struct {
	value   string
	expires time.Time
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{ttl: ttl, now: time.Now, data: make(map[string]memoryEntry)}
}

func memoryKey(visitorID, key string) string {
	return visitorID + ":" + key
}

func (m *MemoryStore) Get(_ context.Context, visitorID, key string) (string, bool, error) {
	m.mu.RLock()
	e, ok := m.data[memoryKey(visitorID, key)]
	m.mu.RUnlock()
	if !ok {
		return "", false, nil
	}
	if !e.expires.IsZero() && m.now().After(e.expires) {
		m.mu.Lock()
		delete(m.data, memoryKey(visitorID, key))
		m.mu.Unlock()
		return "", false, nil
	}
	return e.value, true, nil
}

func (m *MemoryStore) Set(_ context.Context, visitorID, key, value string) error {
	e := memoryEntry{value: value}
	if m.ttl > 0 {
		e.expires = m.now().Add(m.ttl)
	}
	m.mu.Lock()
	m.data[memoryKey(visitorID, key)] = e
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Remove(_ context.Context, visitorID, key string) error {
	m.mu.Lock()
	delete(m.data, memoryKey(visitorID, key))
	m.mu.Unlock()
	return nil
}
