package engine

import (
	"context"
	"fmt"
	"time"

	apperrors "github.com/louisbranch/storefront/internal/platform/errors"
	"github.com/louisbranch/storefront/internal/platform/events"
	"github.com/louisbranch/storefront/internal/services/access"
	"github.com/louisbranch/storefront/internal/services/activitylog"
	"github.com/louisbranch/storefront/internal/services/admin"
	"github.com/louisbranch/storefront/internal/services/admin/routepath"
	"github.com/louisbranch/storefront/internal/services/directory"
	"github.com/louisbranch/storefront/internal/services/scheduler"
	"github.com/louisbranch/storefront/internal/services/settings"
)

// Builtins returns the stock platform modules in registration order.
// Settings comes first so later startup hooks read seeded values.
func (e *Engine) Builtins() []Module {
	return []Module{
		settingsModule{engine: e},
		directoryModule{engine: e},
		customersModule{engine: e},
		accessModule{engine: e},
		activityModule{engine: e},
		tasksModule{engine: e},
	}
}

type settingsModule struct{ engine *Engine }

func (m settingsModule) ID() string { return "settings" }

func (m settingsModule) Mount() (Mount, error) {
	handler := admin.NewSettingsHandler(m.engine.Settings, m.engine.Access)
	return Mount{Prefix: routepath.SettingsPrefix, Handler: handler.Routes()}, nil
}

func (m settingsModule) Seed(ctx context.Context) error {
	for _, def := range settings.Defaults() {
		if err := m.engine.Settings.EnsureDefault(ctx, def.Name, def.Value); err != nil {
			return err
		}
	}
	return nil
}

type directoryModule struct{ engine *Engine }

func (m directoryModule) ID() string { return "directory" }

func (m directoryModule) Mount() (Mount, error) {
	handler := admin.NewDirectoryHandler(m.engine.Directory, m.engine.Access)
	return Mount{Prefix: routepath.DirectoryPrefix, Handler: handler.Routes()}, nil
}

func (m directoryModule) Seed(ctx context.Context) error {
	for _, seed := range directory.BuiltinCountries() {
		if _, err := m.engine.Directory.EnsureCountry(ctx, seed); err != nil {
			return err
		}
	}
	return nil
}

func (m directoryModule) Startup(ctx context.Context) error {
	ttl, err := m.engine.Settings.GetDuration(ctx, settings.KeyDirectoryCacheTTL, 0)
	if err != nil {
		return fmt.Errorf("read %s: %w", settings.KeyDirectoryCacheTTL, err)
	}
	if ttl > 0 {
		m.engine.Directory.SetCacheTTL(ttl)
	}
	return nil
}

const (
	systemAccountEmail = "system@storefront.local"
	systemAccountName  = "System"
)

type customersModule struct{ engine *Engine }

func (m customersModule) ID() string { return "customers" }

func (m customersModule) Mount() (Mount, error) {
	handler := admin.NewCustomersHandler(m.engine.Customers, m.engine.Access, m.engine.Access)
	return Mount{Prefix: routepath.CustomersPrefix, Handler: handler.Routes()}, nil
}

func (m customersModule) Seed(ctx context.Context) error {
	_, err := m.engine.Customers.EnsureSystemAccount(ctx, systemAccountEmail, systemAccountName)
	return err
}

type accessModule struct{ engine *Engine }

func (m accessModule) ID() string { return "access" }

func (m accessModule) Mount() (Mount, error) {
	handler := admin.NewAccessHandler(m.engine.Access, m.engine.Access)
	return Mount{Prefix: routepath.AccessPrefix, Handler: handler.Routes()}, nil
}

func (m accessModule) Seed(ctx context.Context) error {
	if err := m.engine.Access.InstallPermissions(ctx, access.BuiltinPermissions()); err != nil {
		return err
	}
	for _, seed := range access.BuiltinRoles() {
		if _, err := m.engine.Access.EnsureRole(ctx, seed); err != nil {
			return err
		}
	}
	return nil
}

type activityModule struct{ engine *Engine }

func (m activityModule) ID() string { return "activity" }

func (m activityModule) Mount() (Mount, error) {
	handler := admin.NewActivityHandler(m.engine.Activity, m.engine.Hub, m.engine.Access)
	return Mount{Prefix: routepath.ActivityPrefix, Handler: handler.Routes()}, nil
}

func (m activityModule) Subscriptions() []events.Subscription {
	return []events.Subscription{{
		Pattern: events.ActivityLogged,
		Name:    "activity.stream",
		Handler: m.engine.Hub.HandleEvent,
	}}
}

func (m activityModule) TaskHandlers() []scheduler.Handler {
	engine := m.engine
	cleanup := activitylog.CleanupTask{
		Service: engine.Activity,
		Retention: func(ctx context.Context) time.Duration {
			retention, err := engine.Settings.GetDuration(ctx, settings.KeyActivityRetention, activitylog.DefaultRetention)
			if err != nil {
				return activitylog.DefaultRetention
			}
			return retention
		},
	}
	return []scheduler.Handler{cleanup}
}

func (m activityModule) Startup(ctx context.Context) error {
	size, err := m.engine.Settings.GetInt(ctx, settings.KeyActivityStreamBuffer, 0)
	if err != nil {
		return fmt.Errorf("read %s: %w", settings.KeyActivityStreamBuffer, err)
	}
	if size > 0 {
		m.engine.Hub.SetBufferSize(size)
	}
	return nil
}

func (m activityModule) Seed(ctx context.Context) error {
	for _, seed := range activitylog.BuiltinTypes() {
		if _, err := m.engine.Activity.EnsureType(ctx, seed.SystemKeyword, seed.DisplayName); err != nil {
			return err
		}
	}
	return nil
}

type tasksModule struct{ engine *Engine }

func (m tasksModule) ID() string { return "tasks" }

func (m tasksModule) Mount() (Mount, error) {
	handler := admin.NewTasksHandler(m.engine.Scheduler, m.engine.Executor, m.engine.Registry, m.engine.Access)
	return Mount{Prefix: routepath.TasksPrefix, Handler: handler.Routes()}, nil
}

func (m tasksModule) TaskHandlers() []scheduler.Handler {
	handlers := []scheduler.Handler{scheduler.NewCacheFlush(m.engine.Cache)}
	if m.engine.LockStore != nil {
		handlers = append(handlers, scheduler.NewLockReaper(m.engine.LockStore))
	}
	return handlers
}

func (m tasksModule) Startup(context.Context) error {
	if m.engine.Scripts == nil {
		return nil
	}
	return scheduler.RegisterScripts(m.engine.Registry, m.engine.Scripts)
}

// Seed installs the builtin task rows. Existing rows are left alone so
// operator tuning of intervals and enablement survives restarts.
func (m tasksModule) Seed(ctx context.Context) error {
	inputs := []scheduler.TaskInput{{
		Name:        activitylog.CleanupTaskName,
		HandlerName: activitylog.CleanupTaskName,
		Interval:    24 * time.Hour,
		Enabled:     true,
	}}
	if m.engine.LockStore != nil {
		inputs = append(inputs, scheduler.TaskInput{
			Name:        scheduler.HandlerLockReaper,
			HandlerName: scheduler.HandlerLockReaper,
			Interval:    time.Hour,
			Enabled:     true,
		})
	}
	// Flushing the whole cache is disruptive, so the task ships disabled
	// and an operator opts in.
	inputs = append(inputs, scheduler.TaskInput{
		Name:        scheduler.HandlerCacheFlush,
		HandlerName: scheduler.HandlerCacheFlush,
		Interval:    24 * time.Hour,
		Enabled:     false,
	})

	for _, input := range inputs {
		if err := m.ensureTask(ctx, input); err != nil {
			return err
		}
	}
	return nil
}

func (m tasksModule) ensureTask(ctx context.Context, input scheduler.TaskInput) error {
	_, err := m.engine.Scheduler.GetByName(ctx, input.Name)
	if err == nil {
		return nil
	}
	if apperrors.CodeOf(err) != apperrors.CodeNotFound {
		return err
	}
	_, err = m.engine.Scheduler.Create(ctx, input)
	return err
}
