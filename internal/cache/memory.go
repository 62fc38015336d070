package cache

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	data      []byte
	createdAt time.Time
	expiresAt time.Time
}

// MemoryTier is a process-local FastTier: a TTL map guarded by an RWMutex.
// It stands in for a networked key-value store in single-process deployments
// and in tests; anything speaking the FastTier interface can replace it.
type MemoryTier struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	now     func() time.Time
}

// NewMemoryTier creates an empty in-process tier
func NewMemoryTier() *MemoryTier {
	return &MemoryTier{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

// Get returns the cached value if present and unexpired
func (m *MemoryTier) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.RLock()
	entry, ok := m.entries[key]
	m.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	if m.now().After(entry.expiresAt) {
		m.evictIfExpired(key)
		return nil, false, nil
	}
	return entry.data, true, nil
}

// evictIfExpired deletes the entry only if the one present now is expired;
// a concurrent Set may have replaced the entry the caller saw.
func (m *MemoryTier) evictIfExpired(key string) {
	now := m.now()
	m.mu.Lock()
	defer m.mu.Unlock()
	if entry, ok := m.entries[key]; ok && now.After(entry.expiresAt) {
		delete(m.entries, key)
	}
}

// Set stores a value with a TTL. Overwrites are idempotent by design: the
// value for a key is deterministic, so last-write-wins is safe.
func (m *MemoryTier) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	now := m.now()
	m.mu.Lock()
	m.entries[key] = memoryEntry{
		data:      value,
		createdAt: now,
		expiresAt: now.Add(ttl),
	}
	m.mu.Unlock()
	return nil
}

// Delete removes the given keys
func (m *MemoryTier) Delete(_ context.Context, keys ...string) error {
	m.mu.Lock()
	for _, key := range keys {
		delete(m.entries, key)
	}
	m.mu.Unlock()
	return nil
}

// Keys lists all unexpired keys, for predicate-based invalidation
func (m *MemoryTier) Keys(_ context.Context) ([]string, error) {
	now := m.now()
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]string, 0, len(m.entries))
	for key, entry := range m.entries {
		if now.After(entry.expiresAt) {
			continue
		}
		keys = append(keys, key)
	}
	return keys, nil
}

// Sweep evicts expired entries and returns how many were removed
func (m *MemoryTier) Sweep() int {
	now := m.now()
	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0
	for key, entry := range m.entries {
		if now.After(entry.expiresAt) {
			delete(m.entries, key)
			removed++
		}
	}
	return removed
}

// UnavailableTier is a FastTier whose every operation fails with
// CacheUnavailableError. It exercises degraded-mode behavior in tests.
type UnavailableTier struct{}

func (UnavailableTier) unavailable() error {
	return &CacheUnavailableError{Tier: "fast", Message: "simulated outage"}
}

// Get always fails
func (u UnavailableTier) Get(context.Context, string) ([]byte, bool, error) {
	return nil, false, u.unavailable()
}

// Set always fails
func (u UnavailableTier) Set(context.Context, string, []byte, time.Duration) error {
	return u.unavailable()
}

// Delete always fails
func (u UnavailableTier) Delete(context.Context, ...string) error {
	return u.unavailable()
}

// Keys always fails
func (u UnavailableTier) Keys(context.Context) ([]string, error) {
	return nil, u.unavailable()
}
