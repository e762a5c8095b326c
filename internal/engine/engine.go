// Package engine assembles the platform: it opens storage, wires the domain
// services onto the shared cache, lock and event infrastructure, and
// composes registered modules into the admin API, the task registry and the
// event bus.
package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/louisbranch/storefront/internal/platform/cache"
	"github.com/louisbranch/storefront/internal/platform/events"
	"github.com/louisbranch/storefront/internal/platform/lock"
	locksqlite "github.com/louisbranch/storefront/internal/platform/lock/sqlite"
	"github.com/louisbranch/storefront/internal/platform/scripting"
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

const (
	defaultDataDir        = "data"
	defaultCacheKeyPrefix = "storefront"
)

// Config controls how the engine builds its infrastructure.
type Config struct {
	// DataDir holds the per-service SQLite databases. Created when absent.
	DataDir string

	// RedisAddr switches the cache, task locks and the event stream mirror
	// to a shared Redis. Empty means in-process cache and SQLite locks.
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// ScriptsDir enables Lua task handlers loaded from the directory.
	ScriptsDir string

	// CacheKeyPrefix namespaces Redis keys so deployments can share one
	// instance.
	CacheKeyPrefix string

	// PollInterval is how often the task runner scans for due tasks.
	PollInterval time.Duration
}

func (cfg Config) normalized() Config {
	if strings.TrimSpace(cfg.DataDir) == "" {
		cfg.DataDir = defaultDataDir
	}
	if strings.TrimSpace(cfg.CacheKeyPrefix) == "" {
		cfg.CacheKeyPrefix = defaultCacheKeyPrefix
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = scheduler.DefaultPollInterval
	}
	return cfg
}

// Engine owns the platform infrastructure and the domain services built on
// it. Modules registered on the engine contribute routes, task handlers,
// event subscriptions, seed data and startup work.
type Engine struct {
	cfg     Config
	closers []io.Closer
	redis   *redis.Client

	Bus    *events.Bus
	Cache  cache.Cache
	Locker lock.Locker

	// LockStore is set on SQLite deployments so the lock reaper task and
	// the maintenance command can purge expired leases. Nil under Redis.
	LockStore *locksqlite.Store

	Registry *scheduler.Registry
	Executor *scheduler.Executor
	Runner   *scheduler.Runner

	Directory *directory.Service
	Activity  *activitylog.Service
	Hub       *activitylog.Hub
	Scheduler *scheduler.Service
	Access    *access.Service
	Customers *customers.Service
	Settings  *settings.Service

	// Scripts is set when Config.ScriptsDir points at a script directory.
	Scripts *scripting.Engine

	modules   []Module
	moduleIDs map[string]bool
}

// New builds the engine infrastructure and domain services. The caller owns
// the returned engine and must Close it.
func New(cfg Config) (*Engine, error) {
	cfg = cfg.normalized()

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	e := &Engine{
		cfg:       cfg,
		Bus:       events.NewBus(),
		Registry:  scheduler.NewRegistry(),
		Hub:       activitylog.NewHub(),
		moduleIDs: make(map[string]bool),
	}
	built := false
	defer func() {
		if !built {
			_ = e.Close()
		}
	}()

	if strings.TrimSpace(cfg.RedisAddr) != "" {
		if err := e.buildRedis(cfg); err != nil {
			return nil, err
		}
	} else {
		e.Cache = cache.NewMemory()
		lockStore, err := locksqlite.Open(filepath.Join(cfg.DataDir, "locks.db"))
		if err != nil {
			return nil, fmt.Errorf("open lock store: %w", err)
		}
		e.LockStore = lockStore
		e.Locker = lockStore
		e.closers = append(e.closers, lockStore)
	}

	directoryStore, err := directorysqlite.Open(filepath.Join(cfg.DataDir, "directory.db"))
	if err != nil {
		return nil, fmt.Errorf("open directory store: %w", err)
	}
	e.closers = append(e.closers, directoryStore)

	activityStore, err := activitysqlite.Open(filepath.Join(cfg.DataDir, "activity.db"))
	if err != nil {
		return nil, fmt.Errorf("open activity store: %w", err)
	}
	e.closers = append(e.closers, activityStore)

	schedulerStore, err := schedulersqlite.Open(filepath.Join(cfg.DataDir, "scheduler.db"))
	if err != nil {
		return nil, fmt.Errorf("open scheduler store: %w", err)
	}
	e.closers = append(e.closers, schedulerStore)

	accessStore, err := accesssqlite.Open(filepath.Join(cfg.DataDir, "access.db"))
	if err != nil {
		return nil, fmt.Errorf("open access store: %w", err)
	}
	e.closers = append(e.closers, accessStore)

	customerStore, err := customersqlite.Open(filepath.Join(cfg.DataDir, "customers.db"))
	if err != nil {
		return nil, fmt.Errorf("open customer store: %w", err)
	}
	e.closers = append(e.closers, customerStore)

	settingsStore, err := settingssqlite.Open(filepath.Join(cfg.DataDir, "settings.db"))
	if err != nil {
		return nil, fmt.Errorf("open settings store: %w", err)
	}
	e.closers = append(e.closers, settingsStore)

	e.Directory = directory.NewService(directoryStore, e.Cache, e.Bus)
	e.Activity = activitylog.NewService(activityStore, e.Cache, e.Bus)
	e.Scheduler = scheduler.NewService(schedulerStore, e.Registry, e.Bus)
	e.Customers = customers.NewService(customerStore, e.Cache, e.Bus)
	e.Access = access.NewService(accessStore, e.Customers, e.Cache, e.Bus)
	e.Settings = settings.NewService(settingsStore, e.Cache, e.Bus)

	e.Executor = scheduler.NewExecutor(schedulerStore, e.Registry, e.Locker, e.Bus)
	e.Runner = scheduler.NewRunner(schedulerStore, e.Executor, cfg.PollInterval)

	// Every domain mutation lands in the activity log.
	e.Activity.SubscribeDomainEvents(e.Bus)

	if strings.TrimSpace(cfg.ScriptsDir) != "" {
		scripts, err := scripting.NewEngine(cfg.ScriptsDir)
		if err != nil {
			return nil, fmt.Errorf("script engine: %w", err)
		}
		e.Scripts = scripts
	}

	built = true
	return e, nil
}

func (e *Engine) buildRedis(cfg Config) error {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	e.redis = client
	e.closers = append(e.closers, client)

	redisCache, err := cache.NewRedis(client, cfg.CacheKeyPrefix)
	if err != nil {
		return fmt.Errorf("redis cache: %w", err)
	}
	e.Cache = redisCache

	locker, err := lock.NewRedisLocker(client, cfg.CacheKeyPrefix)
	if err != nil {
		return fmt.Errorf("redis locker: %w", err)
	}
	e.Locker = locker

	mirror, err := events.NewStreamPublisher(client, events.StreamName)
	if err != nil {
		return fmt.Errorf("event stream publisher: %w", err)
	}
	e.Bus.Subscribe("*", "events.stream", mirror.HandleEvent)
	return nil
}

// Register adds modules to the engine. A module's task handlers and event
// subscriptions wire immediately; routes mount when Compose runs.
func (e *Engine) Register(modules ...Module) error {
	if e == nil {
		return errors.New("engine is nil")
	}
	for _, feature := range modules {
		if feature == nil {
			return errors.New("module is nil")
		}
		id := strings.TrimSpace(feature.ID())
		if id == "" {
			return errors.New("module id is required")
		}
		if e.moduleIDs[id] {
			return fmt.Errorf("module %q is already registered", id)
		}

		if provider, ok := feature.(TaskProvider); ok {
			for _, handler := range provider.TaskHandlers() {
				if err := e.Registry.Register(handler); err != nil {
					return fmt.Errorf("module %q task handlers: %w", id, err)
				}
			}
		}
		if subscriber, ok := feature.(EventSubscriber); ok {
			for _, sub := range subscriber.Subscriptions() {
				e.Bus.Subscribe(sub.Pattern, sub.Name, sub.Handler)
			}
		}

		e.moduleIDs[id] = true
		e.modules = append(e.modules, feature)
	}
	return nil
}

// Compose builds the admin route handler from the registered modules.
func (e *Engine) Compose() (http.Handler, error) {
	if e == nil {
		return nil, errors.New("engine is nil")
	}
	root := http.NewServeMux()
	seen := make(map[string]string)

	for _, feature := range e.modules {
		mounter, ok := feature.(RouteMounter)
		if !ok {
			continue
		}
		mount, prefix, err := resolveMount(feature, mounter)
		if err != nil {
			return nil, err
		}
		if err := mountModule(root, feature, mount, prefix, seen); err != nil {
			return nil, err
		}
		// Mount the slashless alias too so exact-path routes like
		// /v1/activity work without a redirect.
		if alias := slashlessPrefixAlias(prefix); alias != "" {
			if err := mountModule(root, feature, mount, alias, seen); err != nil {
				return nil, err
			}
		}
	}
	return root, nil
}

func mountModule(root *http.ServeMux, feature Module, mount Mount, prefix string, seen map[string]string) error {
	if previous, ok := seen[prefix]; ok {
		return fmt.Errorf("module %q duplicates prefix %q owned by module %q", feature.ID(), prefix, previous)
	}
	seen[prefix] = feature.ID()
	root.Handle(prefix, mount.Handler)
	return nil
}

func resolveMount(feature Module, mounter RouteMounter) (Mount, string, error) {
	mount, err := mounter.Mount()
	if err != nil {
		return Mount{}, "", fmt.Errorf("mount module %q: %w", feature.ID(), err)
	}
	prefix := mount.Prefix
	if err := validatePrefix(prefix); err != nil {
		return Mount{}, "", fmt.Errorf("mount module %q has invalid prefix %q: %w", feature.ID(), mount.Prefix, err)
	}
	if mount.Handler == nil {
		return Mount{}, "", fmt.Errorf("mount module %q: handler is required", feature.ID())
	}
	return mount, prefix, nil
}

func validatePrefix(prefix string) error {
	if prefix == "" {
		return fmt.Errorf("prefix is required")
	}
	if strings.TrimSpace(prefix) != prefix {
		return fmt.Errorf("prefix must not include surrounding whitespace")
	}
	if !strings.HasPrefix(prefix, "/") {
		return fmt.Errorf("prefix must begin with /")
	}
	if !strings.HasSuffix(prefix, "/") {
		return fmt.Errorf("prefix must end with /")
	}
	return nil
}

func slashlessPrefixAlias(prefix string) string {
	alias := strings.TrimSuffix(prefix, "/")
	if alias == "" {
		return ""
	}
	return alias
}

// Seed installs module baseline records in registration order.
func (e *Engine) Seed(ctx context.Context) error {
	if e == nil {
		return errors.New("engine is nil")
	}
	for _, feature := range e.modules {
		seeder, ok := feature.(Seeder)
		if !ok {
			continue
		}
		if err := seeder.Seed(ctx); err != nil {
			return fmt.Errorf("seed module %q: %w", feature.ID(), err)
		}
	}
	return nil
}

// RunStartup runs module startup hooks in registration order, stopping at
// the first failure.
func (e *Engine) RunStartup(ctx context.Context) error {
	if e == nil {
		return errors.New("engine is nil")
	}
	for _, feature := range e.modules {
		task, ok := feature.(StartupTask)
		if !ok {
			continue
		}
		if err := task.Startup(ctx); err != nil {
			return fmt.Errorf("startup module %q: %w", feature.ID(), err)
		}
	}
	return nil
}

// Close releases storage handles and the Redis connection.
func (e *Engine) Close() error {
	if e == nil {
		return nil
	}
	var errs []error
	for i := len(e.closers) - 1; i >= 0; i-- {
		if err := e.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	e.closers = nil
	return errors.Join(errs...)
}
