package cache

import (
	"context"
	"strings"
	"sync"
	"time"
)

// Memory is an in-process Cache backed by a map. It is safe for concurrent
// use and suitable for single-process deployments and tests.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry

	now func() time.Time
}

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

var _ Cache = (*Memory)(nil)

// NewMemory returns an empty in-process cache.
func NewMemory() *Memory {
	return &Memory{
		entries: map[string]memoryEntry{},
		now:     time.Now,
	}
}

// Get returns the value stored under key, treating expired entries as absent.
func (m *Memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.RLock()
	entry, ok := m.entries[key]
	m.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	if entry.expired(m.now()) {
		m.mu.Lock()
		if current, exists := m.entries[key]; exists && current.expired(m.now()) {
			delete(m.entries, key)
		}
		m.mu.Unlock()
		return nil, false, nil
	}
	out := make([]byte, len(entry.value))
	copy(out, entry.value)
	return out, true, nil
}

// Set stores value under key for ttl. A zero or negative ttl never expires.
func (m *Memory) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	entry := memoryEntry{value: make([]byte, len(value))}
	copy(entry.value, value)
	if ttl > 0 {
		entry.expiresAt = m.now().Add(ttl)
	}

	m.mu.Lock()
	m.entries[key] = entry
	m.mu.Unlock()
	return nil
}

// Delete removes one key.
func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.entries, key)
	m.mu.Unlock()
	return nil
}

// DeletePrefix removes every key starting with prefix.
func (m *Memory) DeletePrefix(_ context.Context, prefix string) error {
	if strings.TrimSpace(prefix) == "" {
		return ErrEmptyPrefix
	}
	m.mu.Lock()
	for key := range m.entries {
		if strings.HasPrefix(key, prefix) {
			delete(m.entries, key)
		}
	}
	m.mu.Unlock()
	return nil
}

// Clear removes every entry.
func (m *Memory) Clear(_ context.Context) error {
	m.mu.Lock()
	m.entries = map[string]memoryEntry{}
	m.mu.Unlock()
	return nil
}

// Len reports the number of live entries, counting expired ones still
// awaiting eviction.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

func (e memoryEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}
