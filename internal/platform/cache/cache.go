// Package cache provides the shared cache contract used by domain services.
//
// Keys are colon-separated, prefixed by the owning service (for example
// "directory:countries:published"). Invalidation happens by exact key or by
// key prefix so a service can drop a whole family of entries after a write.
package cache

import (
	"context"
	"fmt"
	"time"
)

// Cache stores opaque byte values under string keys.
//
// A zero or negative ttl stores the entry without expiry. Implementations
// treat expired entries as absent.
type Cache interface {
	// Get returns the value stored under key and whether it was present.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Set stores value under key for ttl.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Delete removes one key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error
	// DeletePrefix removes every key starting with prefix. The prefix must
	// be non-empty; use Clear to drop everything.
	DeletePrefix(ctx context.Context, prefix string) error
	// Clear removes every entry owned by this cache.
	Clear(ctx context.Context) error
}

// ErrEmptyPrefix is returned by DeletePrefix when called without a prefix.
var ErrEmptyPrefix = fmt.Errorf("cache: prefix is required")
