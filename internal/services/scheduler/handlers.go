package scheduler

import (
	"context"
	"log"

	"github.com/louisbranch/storefront/internal/platform/cache"
)

// Built-in handler names. The matching task rows are created by the seeder.
const (
	HandlerLockReaper = "lock.reaper"
	HandlerCacheFlush = "cache.flush"
)

type expiredLeaseStore interface {
	DeleteExpired(ctx context.Context) (int64, error)
}

// NewLockReaper returns the built-in handler that purges expired lock leases
// left behind by dead holders.
func NewLockReaper(store expiredLeaseStore) Handler {
	return HandlerFunc(HandlerLockReaper, func(ctx context.Context) error {
		purged, err := store.DeleteExpired(ctx)
		if err != nil {
			return err
		}
		if purged > 0 {
			log.Printf("scheduler: reaped %d expired lock leases", purged)
		}
		return nil
	})
}

// NewCacheFlush returns the built-in handler that drops every cached entry.
// Mostly useful on redis deployments where entries outlive processes.
func NewCacheFlush(cacheStore cache.Cache) Handler {
	return HandlerFunc(HandlerCacheFlush, func(ctx context.Context) error {
		return cacheStore.Clear(ctx)
	})
}
