package cache

import (
	"path"
	"sync"
	"time"
)

// Store is the cache backing store boundary. Implementations are treated as
// unreliable: every caller must survive errors by falling through to the
// repository.
type Store interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte, ttl time.Duration) error
	Delete(key string) error
	DeleteMatching(pattern string) error
}

type memEntry struct {
	value     []byte
	expiresAt time.Time
}

// MemoryStore is a thread-safe in-process TTL store. Expired entries are
// dropped lazily on read and swept on write.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]memEntry
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]memEntry)}
}

func (m *MemoryStore) Get(key string) ([]byte, bool) {
	m.mu.RLock()
	e, ok := m.entries[key]
	m.mu.RUnlock()

	if !ok {
		return nil, false
	}
	if time.Now().After(e.expiresAt) {
		m.mu.Lock()
		// Re-check under the write lock; another Set may have refreshed it.
		if cur, ok := m.entries[key]; ok && time.Now().After(cur.expiresAt) {
			delete(m.entries, key)
		}
		m.mu.Unlock()
		return nil, false
	}

	// Copy so callers can never mutate the stored payload.
	out := make([]byte, len(e.value))
	copy(out, e.value)
	return out, true
}

func (m *MemoryStore) Set(key string, value []byte, ttl time.Duration) error {
	stored := make([]byte, len(value))
	copy(stored, value)

	m.mu.Lock()
	m.entries[key] = memEntry{value: stored, expiresAt: time.Now().Add(ttl)}
	m.sweepLocked()
	m.mu.Unlock()
	return nil
}

// Delete removes exactly one key. Keys can embed arbitrary caller input,
// so they are never safe to reinterpret as patterns.
func (m *MemoryStore) Delete(key string) error {
	m.mu.Lock()
	delete(m.entries, key)
	m.mu.Unlock()
	return nil
}

// DeleteMatching removes every key matching the glob pattern. Deleting a
// pattern that matches nothing is a no-op.
func (m *MemoryStore) DeleteMatching(pattern string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for key := range m.entries {
		if ok, err := path.Match(pattern, key); err == nil && ok {
			delete(m.entries, key)
		}
	}
	return nil
}

// Len reports the number of live entries, counting not-yet-swept expired ones.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

const sweepLimit = 64

// sweepLocked opportunistically drops a bounded number of expired entries.
// Must be called with the write lock held.
func (m *MemoryStore) sweepLocked() {
	now := time.Now()
	checked := 0
	for key, e := range m.entries {
		if now.After(e.expiresAt) {
			delete(m.entries, key)
		}
		checked++
		if checked >= sweepLimit {
			return
		}
	}
}
