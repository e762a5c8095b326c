package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/louisbranch/storefront/internal/platform/cache"
)

type fakeLeaseStore struct {
	purged int64
	err    error
	calls  int
}

func (s *fakeLeaseStore) DeleteExpired(context.Context) (int64, error) {
	s.calls++
	return s.purged, s.err
}

func TestLockReaperPurgesExpiredLeases(t *testing.T) {
	store := &fakeLeaseStore{purged: 3}
	handler := NewLockReaper(store)

	if got := handler.Name(); got != HandlerLockReaper {
		t.Fatalf("name = %q, want %q", got, HandlerLockReaper)
	}
	if err := handler.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if store.calls != 1 {
		t.Fatalf("DeleteExpired calls = %d, want 1", store.calls)
	}
}

func TestLockReaperSurfacesStoreError(t *testing.T) {
	store := &fakeLeaseStore{err: errors.New("locked out")}
	handler := NewLockReaper(store)

	if err := handler.Run(context.Background()); !errors.Is(err, store.err) {
		t.Fatalf("Run() error = %v, want the store error", err)
	}
}

func TestCacheFlushClearsEveryEntry(t *testing.T) {
	ctx := context.Background()
	memory := cache.NewMemory()
	if err := memory.Set(ctx, "country:us", []byte("US"), time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}

	handler := NewCacheFlush(memory)
	if got := handler.Name(); got != HandlerCacheFlush {
		t.Fatalf("name = %q, want %q", got, HandlerCacheFlush)
	}
	if err := handler.Run(ctx); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if _, ok, err := memory.Get(ctx, "country:us"); err != nil || ok {
		t.Fatalf("get after flush = (%v, %v), want a miss", ok, err)
	}
}
