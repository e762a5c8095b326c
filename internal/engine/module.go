package engine

import (
	"context"
	"net/http"

	"github.com/louisbranch/storefront/internal/platform/events"
	"github.com/louisbranch/storefront/internal/services/scheduler"
)

// Mount describes a module route mount on the admin API.
type Mount struct {
	Prefix  string
	Handler http.Handler
}

// Module declares the minimum contract required by engine composition.
// Modules opt into routes, tasks, events, seeding and startup work through
// the optional interfaces below.
type Module interface {
	ID() string
}

// RouteMounter is implemented by modules that expose admin routes.
type RouteMounter interface {
	Mount() (Mount, error)
}

// TaskProvider is implemented by modules that ship schedule task handlers.
// Handlers register when the module does; the matching task rows are
// installed by the module's seeder.
type TaskProvider interface {
	TaskHandlers() []scheduler.Handler
}

// EventSubscriber is implemented by modules that listen on the event bus.
type EventSubscriber interface {
	Subscriptions() []events.Subscription
}

// Seeder is implemented by modules that install baseline records. Seeding
// runs on demand, must be idempotent, and must not overwrite operator edits.
type Seeder interface {
	Seed(ctx context.Context) error
}

// StartupTask is implemented by modules that run work when the engine
// starts, after seeding and before traffic.
type StartupTask interface {
	Startup(ctx context.Context) error
}
