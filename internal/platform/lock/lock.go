// Package lock serializes named critical sections across processes.
//
// A lock is held for at most its ttl; a holder that dies without releasing
// leaves a lease that expires and can be claimed by the next caller. Locks
// protect work that must run once per period, such as scheduled task runs.
package lock

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Locker runs functions under a named advisory lock.
type Locker interface {
	// WithLock runs fn while holding the named lock, returning whether the
	// lock was acquired. When the lock is held elsewhere it returns
	// (false, nil) without running fn. When acquired, the returned error is
	// fn's error and the lock is released afterwards.
	WithLock(ctx context.Context, name string, ttl time.Duration, fn func(ctx context.Context) error) (bool, error)
}

// ValidateArgs rejects lock requests no implementation could honor.
func ValidateArgs(name string, ttl time.Duration, fn func(ctx context.Context) error) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("lock: name is required")
	}
	if ttl <= 0 {
		return fmt.Errorf("lock: ttl must be positive")
	}
	if fn == nil {
		return fmt.Errorf("lock: fn is required")
	}
	return nil
}

// RunProtected runs fn, converting a panic into an error so the caller can
// still release the lock.
func RunProtected(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("lock: handler panic: %v", r)
		}
	}()
	return fn(ctx)
}
