package admin

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/louisbranch/storefront/internal/platform/cache"
	"github.com/louisbranch/storefront/internal/platform/events"
	"github.com/louisbranch/storefront/internal/platform/lock"
	"github.com/louisbranch/storefront/internal/platform/requestctx"
	"github.com/louisbranch/storefront/internal/services/access"
	accesssqlite "github.com/louisbranch/storefront/internal/services/access/storage/sqlite"
	"github.com/louisbranch/storefront/internal/services/activitylog"
	activitysqlite "github.com/louisbranch/storefront/internal/services/activitylog/storage/sqlite"
	"github.com/louisbranch/storefront/internal/services/customers"
	customersqlite "github.com/louisbranch/storefront/internal/services/customers/storage/sqlite"
	"github.com/louisbranch/storefront/internal/services/directory"
	directorysqlite "github.com/louisbranch/storefront/internal/services/directory/storage/sqlite"
	"github.com/louisbranch/storefront/internal/services/scheduler"
	schedulersqlite "github.com/louisbranch/storefront/internal/services/scheduler/storage/sqlite"
	"github.com/louisbranch/storefront/internal/services/settings"
	settingssqlite "github.com/louisbranch/storefront/internal/services/settings/storage/sqlite"
)

// allowAll authorizes every permission check.
type allowAll struct{}

func (allowAll) Authorize(context.Context, string, string) bool { return true }

// denyAll refuses every permission check.
type denyAll struct{}

func (denyAll) Authorize(context.Context, string, string) bool { return false }

// asCustomer stamps an acting customer onto the request context the way the
// auth middleware does after verifying a token.
func asCustomer(r *http.Request, customerID string) *http.Request {
	return r.WithContext(requestctx.WithCustomerID(r.Context(), customerID))
}

// doJSON serves one request against a handler as customer-1 and returns the
// recorder. A non-nil body is marshalled as the JSON request body.
func doJSON(t *testing.T, handler http.Handler, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}
	req := asCustomer(httptest.NewRequest(method, target, reader), "customer-1")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

// decodeBody unmarshals a JSON response body into out.
func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, out any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), out); err != nil {
		t.Fatalf("decode response body %q: %v", rec.Body.String(), err)
	}
}

func newDirectoryService(t *testing.T) *directory.Service {
	t.Helper()
	store, err := directorysqlite.Open(filepath.Join(t.TempDir(), "directory.db"))
	if err != nil {
		t.Fatalf("open directory store: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Errorf("close directory store: %v", err)
		}
	})
	return directory.NewService(store, cache.NewMemory(), events.NewBus())
}

func newActivityService(t *testing.T) *activitylog.Service {
	t.Helper()
	store, err := activitysqlite.Open(filepath.Join(t.TempDir(), "activity.db"))
	if err != nil {
		t.Fatalf("open activity store: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Errorf("close activity store: %v", err)
		}
	})
	return activitylog.NewService(store, cache.NewMemory(), events.NewBus())
}

func newSchedulerPair(t *testing.T, registry *scheduler.Registry) (*scheduler.Service, *scheduler.Executor) {
	t.Helper()
	store, err := schedulersqlite.Open(filepath.Join(t.TempDir(), "tasks.db"))
	if err != nil {
		t.Fatalf("open task store: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Errorf("close task store: %v", err)
		}
	})
	bus := events.NewBus()
	service := scheduler.NewService(store, registry, bus)
	executor := scheduler.NewExecutor(store, registry, lock.NewMemory(), bus)
	return service, executor
}

func newAccessService(t *testing.T, customerDirectory access.CustomerDirectory) *access.Service {
	t.Helper()
	store, err := accesssqlite.Open(filepath.Join(t.TempDir(), "access.db"))
	if err != nil {
		t.Fatalf("open access store: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Errorf("close access store: %v", err)
		}
	})
	return access.NewService(store, customerDirectory, cache.NewMemory(), events.NewBus())
}

func newCustomersService(t *testing.T) *customers.Service {
	t.Helper()
	store, err := customersqlite.Open(filepath.Join(t.TempDir(), "customers.db"))
	if err != nil {
		t.Fatalf("open customer store: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Errorf("close customer store: %v", err)
		}
	})
	return customers.NewService(store, cache.NewMemory(), events.NewBus())
}

func newSettingsService(t *testing.T) *settings.Service {
	t.Helper()
	store, err := settingssqlite.Open(filepath.Join(t.TempDir(), "settings.db"))
	if err != nil {
		t.Fatalf("open settings store: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Errorf("close settings store: %v", err)
		}
	})
	return settings.NewService(store, cache.NewMemory(), events.NewBus())
}
