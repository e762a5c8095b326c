package lock

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Memory is an in-process Locker. Leases live in a map and expire by
// timestamp, mirroring the behavior of the persistent implementations.
type Memory struct {
	mu     sync.Mutex
	leases map[string]memoryLease

	now func() time.Time
}

type memoryLease struct {
	owner     string
	expiresAt time.Time
}

var _ Locker = (*Memory)(nil)

// NewMemory returns an in-process locker.
func NewMemory() *Memory {
	return &Memory{
		leases: map[string]memoryLease{},
		now:    time.Now,
	}
}

// WithLock implements Locker.
func (m *Memory) WithLock(ctx context.Context, name string, ttl time.Duration, fn func(ctx context.Context) error) (bool, error) {
	if err := ValidateArgs(name, ttl, fn); err != nil {
		return false, err
	}
	name = strings.TrimSpace(name)

	owner, ok := m.claim(name, ttl)
	if !ok {
		return false, nil
	}
	defer m.release(name, owner)

	return true, RunProtected(ctx, fn)
}

func (m *Memory) claim(name string, ttl time.Duration) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if lease, exists := m.leases[name]; exists && lease.expiresAt.After(now) {
		return "", false
	}
	owner := uuid.NewString()
	m.leases[name] = memoryLease{owner: owner, expiresAt: now.Add(ttl)}
	return owner, true
}

func (m *Memory) release(name string, owner string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if lease, exists := m.leases[name]; exists && lease.owner == owner {
		delete(m.leases, name)
	}
}
