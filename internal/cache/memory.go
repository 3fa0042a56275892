package cache

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

// MemoryBackend is a concurrency-safe in-process backend. Expired entries are dropped lazily
// on read; when maxEntries is reached the entry closest to expiry is evicted.
type MemoryBackend struct {
	mu sync.RWMutex

	// key: cache key, value: payload and deadline
	data map[string]memoryEntry

	// max number of entries, <= 0 means unlimited
	maxEntries int
	now        func() time.Time
}

// NewMemoryBackend creates a MemoryBackend. If maxEntries is <= 0, it is treated as unlimited.
func NewMemoryBackend(maxEntries int) *MemoryBackend {
	return &MemoryBackend{
		data:       make(map[string]memoryEntry),
		maxEntries: maxEntries,
		now:        time.Now,
	}
}

func (m *MemoryBackend) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.RLock()
	e, ok := m.data[key]
	m.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}

	if !m.now().Before(e.expiresAt) {
		m.mu.Lock()
		if cur, ok := m.data[key]; ok && cur.expiresAt.Equal(e.expiresAt) {
			delete(m.data, key)
		}
		m.mu.Unlock()
		return nil, false, nil
	}
	return e.value, true, nil
}

func (m *MemoryBackend) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.data[key]; !exists && m.maxEntries > 0 && len(m.data) >= m.maxEntries {
		m.evictLocked(now)
	}
	// Entries are immutable once stored; keep our own copy.
	buf := make([]byte, len(value))
	copy(buf, value)
	m.data[key] = memoryEntry{value: buf, expiresAt: now.Add(ttl)}
	return nil
}

func (m *MemoryBackend) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.data, key)
	m.mu.Unlock()
	return nil
}

// Len reports the number of stored entries, expired ones included.
func (m *MemoryBackend) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data)
}

// evictLocked drops every expired entry, or failing that, the one expiring first.
func (m *MemoryBackend) evictLocked(now time.Time) {
	var (
		victim   string
		earliest time.Time
		purged   bool
	)
	for k, e := range m.data {
		if !now.Before(e.expiresAt) {
			delete(m.data, k)
			purged = true
			continue
		}
		if victim == "" || e.expiresAt.Before(earliest) {
			victim, earliest = k, e.expiresAt
		}
	}
	if !purged && victim != "" {
		delete(m.data, victim)
	}
}
