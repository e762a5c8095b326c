// Package maintenance implements the maintenance command. The default pass
// works directly against the sqlite stores so it can run while the server is
// down: expired lock leases are purged and activity rows past their retention
// are deleted. The -task and -list modes boot the engine instead, to run one
// schedule task immediately under its usual lock or to print the installed
// tasks.
package maintenance

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/louisbranch/storefront/internal/engine"
	locksqlite "github.com/louisbranch/storefront/internal/platform/lock/sqlite"
	"github.com/louisbranch/storefront/internal/platform/timeouts"
	"github.com/louisbranch/storefront/internal/services/activitylog"
	activitysqlite "github.com/louisbranch/storefront/internal/services/activitylog/storage/sqlite"
	"github.com/louisbranch/storefront/internal/services/settings"
	settingsstorage "github.com/louisbranch/storefront/internal/services/settings/storage"
	settingssqlite "github.com/louisbranch/storefront/internal/services/settings/storage/sqlite"
)

// Config holds maintenance command configuration.
type Config struct {
	DataDir   string
	Retention time.Duration
	DryRun    bool
	JSON      bool
	Timeout   time.Duration

	// Task names a schedule task to run immediately instead of purging,
	// and List prints the installed tasks instead. Both boot the engine,
	// so the Redis and scripts settings mirror the worker's.
	Task           string
	List           bool
	RedisAddr      string
	RedisPassword  string
	RedisDB        int
	ScriptsDir     string
	CacheKeyPrefix string
}

type envConfig struct {
	DataDir        string        `env:"STOREFRONT_DATA_DIR"`
	Timeout        time.Duration `env:"STOREFRONT_MAINTENANCE_TIMEOUT"`
	RedisAddr      string        `env:"STOREFRONT_REDIS_ADDR"`
	RedisPassword  string        `env:"STOREFRONT_REDIS_PASSWORD"`
	RedisDB        int           `env:"STOREFRONT_REDIS_DB"`
	ScriptsDir     string        `env:"STOREFRONT_SCRIPTS_DIR"`
	CacheKeyPrefix string        `env:"STOREFRONT_CACHE_KEY_PREFIX"`
}

// ParseConfig parses env and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var envCfg envConfig
	if err := env.Parse(&envCfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	cfg := Config{
		DataDir:        strings.TrimSpace(envCfg.DataDir),
		Timeout:        envCfg.Timeout,
		RedisAddr:      envCfg.RedisAddr,
		RedisPassword:  envCfg.RedisPassword,
		RedisDB:        envCfg.RedisDB,
		ScriptsDir:     envCfg.ScriptsDir,
		CacheKeyPrefix: envCfg.CacheKeyPrefix,
	}
	if cfg.DataDir == "" {
		cfg.DataDir = "data"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = timeouts.Maintenance
	}

	fs.StringVar(&cfg.DataDir, "data-dir", cfg.DataDir, "directory holding the sqlite databases (default: STOREFRONT_DATA_DIR or data)")
	fs.DurationVar(&cfg.Retention, "retention", 0, "activity retention override (default: the activity.retention setting)")
	fs.BoolVar(&cfg.DryRun, "dry-run", false, "report what would be purged without deleting")
	fs.BoolVar(&cfg.JSON, "json", false, "output a JSON report")
	fs.DurationVar(&cfg.Timeout, "timeout", cfg.Timeout, "overall timeout (default: STOREFRONT_MAINTENANCE_TIMEOUT or 15m)")
	fs.StringVar(&cfg.Task, "task", "", "run one named schedule task immediately and exit")
	fs.BoolVar(&cfg.List, "list", false, "print the installed schedule tasks and exit")
	fs.StringVar(&cfg.RedisAddr, "redis-addr", cfg.RedisAddr, "Redis address for shared cache and locks (empty = in-process)")
	fs.StringVar(&cfg.ScriptsDir, "scripts-dir", cfg.ScriptsDir, "directory of Lua task handlers")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Report summarizes one purge pass.
type Report struct {
	DryRun            bool      `json:"dry_run"`
	ExpiredLocks      int64     `json:"expired_locks"`
	DeletedActivities int64     `json:"deleted_activities"`
	Retention         string    `json:"retention"`
	RetentionSource   string    `json:"retention_source"`
	Cutoff            time.Time `json:"cutoff"`
}

// TaskReport summarizes one immediate task run.
type TaskReport struct {
	Name         string    `json:"name"`
	Handler      string    `json:"handler"`
	StartedAt    time.Time `json:"started_at"`
	FinishedAt   time.Time `json:"finished_at"`
	FailureCount int       `json:"failure_count"`
	LastError    string    `json:"last_error,omitempty"`
}

// Run dispatches the selected pass: the offline purge by default, one
// immediate task run when Task is set, or a task listing when List is set.
func Run(ctx context.Context, cfg Config, out io.Writer, errOut io.Writer) error {
	if out == nil {
		out = io.Discard
	}
	if errOut == nil {
		errOut = io.Discard
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = timeouts.Maintenance
	}
	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	if cfg.List {
		return listTasks(ctx, cfg, out, errOut)
	}
	if strings.TrimSpace(cfg.Task) != "" {
		return runTask(ctx, cfg, out, errOut)
	}
	return purge(ctx, cfg, out, errOut)
}

// purge deletes expired lock leases and aged activities straight from the
// sqlite stores.
func purge(ctx context.Context, cfg Config, out io.Writer, errOut io.Writer) error {
	retention, source, err := resolveRetention(ctx, cfg, errOut)
	if err != nil {
		return err
	}
	cutoff := time.Now().UTC().Add(-retention)

	report := Report{
		DryRun:          cfg.DryRun,
		Retention:       retention.String(),
		RetentionSource: source,
		Cutoff:          cutoff,
	}

	if !cfg.DryRun {
		expired, err := purgeExpiredLocks(ctx, cfg.DataDir, errOut)
		if err != nil {
			return err
		}
		report.ExpiredLocks = expired

		deleted, err := purgeActivities(ctx, cfg.DataDir, cutoff, errOut)
		if err != nil {
			return err
		}
		report.DeletedActivities = deleted
	}

	if cfg.JSON {
		encoder := json.NewEncoder(out)
		encoder.SetIndent("", "  ")
		return encoder.Encode(report)
	}
	if cfg.DryRun {
		fmt.Fprintf(out, "dry run: would purge expired lock leases and activities older than %s (cutoff %s, retention from %s)\n",
			retention, cutoff.Format(time.RFC3339), source)
		return nil
	}
	fmt.Fprintf(out, "purged %d expired lock leases\n", report.ExpiredLocks)
	fmt.Fprintf(out, "deleted %d activities older than %s (cutoff %s, retention from %s)\n",
		report.DeletedActivities, retention, cutoff.Format(time.RFC3339), source)
	return nil
}

// runTask executes one named task immediately, ignoring due-ness but not the
// lock. A handler failure surfaces as the returned error.
func runTask(ctx context.Context, cfg Config, out io.Writer, errOut io.Writer) error {
	eng, err := bootEngine(ctx, cfg, errOut)
	if err != nil {
		return err
	}
	defer closeEngine(eng, errOut)

	name := strings.TrimSpace(cfg.Task)
	task, err := eng.Executor.RunNow(ctx, name)
	if err != nil {
		return fmt.Errorf("run task %s: %w", name, err)
	}
	if cfg.JSON {
		encoder := json.NewEncoder(out)
		encoder.SetIndent("", "  ")
		return encoder.Encode(TaskReport{
			Name:         task.Name,
			Handler:      task.HandlerName,
			StartedAt:    task.LastStartedAt,
			FinishedAt:   task.LastFinishedAt,
			FailureCount: task.FailureCount,
			LastError:    task.LastError,
		})
	}
	fmt.Fprintf(out, "ran task %s (handler %s) in %s\n", task.Name, task.HandlerName,
		task.LastFinishedAt.Sub(task.LastStartedAt).Round(time.Millisecond))
	return nil
}

// listTasks prints the installed task rows. A row whose handler is not
// registered is flagged, since the runner would skip it.
func listTasks(ctx context.Context, cfg Config, out io.Writer, errOut io.Writer) error {
	eng, err := bootEngine(ctx, cfg, errOut)
	if err != nil {
		return err
	}
	defer closeEngine(eng, errOut)

	tasks, err := eng.Scheduler.List(ctx, false)
	if err != nil {
		return err
	}
	if len(tasks) == 0 {
		fmt.Fprintf(out, "no tasks installed (registered handlers: %s)\n", strings.Join(eng.Registry.Names(), ", "))
		return nil
	}
	for _, task := range tasks {
		state := "enabled"
		if !task.Enabled {
			state = "disabled"
		}
		line := fmt.Sprintf("%s\thandler=%s\tevery=%s\t%s", task.Name, task.HandlerName, task.Interval, state)
		if _, ok := eng.Registry.Lookup(task.HandlerName); !ok {
			line += "\tno handler registered"
		}
		fmt.Fprintln(out, line)
	}
	return nil
}

// bootEngine starts a full engine so handlers, scripts and locks are wired
// the way the worker wires them. Seeding stays with the server process.
func bootEngine(ctx context.Context, cfg Config, errOut io.Writer) (*engine.Engine, error) {
	eng, err := engine.New(engine.Config{
		DataDir:        cfg.DataDir,
		RedisAddr:      cfg.RedisAddr,
		RedisPassword:  cfg.RedisPassword,
		RedisDB:        cfg.RedisDB,
		ScriptsDir:     cfg.ScriptsDir,
		CacheKeyPrefix: cfg.CacheKeyPrefix,
	})
	if err != nil {
		return nil, err
	}
	if err := eng.Register(eng.Builtins()...); err != nil {
		closeEngine(eng, errOut)
		return nil, err
	}
	if err := eng.RunStartup(ctx); err != nil {
		closeEngine(eng, errOut)
		return nil, err
	}
	return eng, nil
}

func closeEngine(eng *engine.Engine, errOut io.Writer) {
	if err := eng.Close(); err != nil {
		fmt.Fprintf(errOut, "Error: close engine: %v\n", err)
	}
}

// resolveRetention prefers the flag, then the stored setting, then the
// builtin default.
func resolveRetention(ctx context.Context, cfg Config, errOut io.Writer) (time.Duration, string, error) {
	if cfg.Retention > 0 {
		return cfg.Retention, "flag", nil
	}

	store, err := settingssqlite.Open(filepath.Join(cfg.DataDir, "settings.db"))
	if err != nil {
		return 0, "", fmt.Errorf("open settings store: %w", err)
	}
	defer closeStore(store, "settings", errOut)

	setting, err := store.GetSetting(ctx, settings.KeyActivityRetention)
	if errors.Is(err, settingsstorage.ErrNotFound) {
		return activitylog.DefaultRetention, "default", nil
	}
	if err != nil {
		return 0, "", fmt.Errorf("read %s: %w", settings.KeyActivityRetention, err)
	}
	retention, err := time.ParseDuration(strings.TrimSpace(setting.Value))
	if err != nil {
		return 0, "", fmt.Errorf("parse %s: %w", settings.KeyActivityRetention, err)
	}
	if retention <= 0 {
		return activitylog.DefaultRetention, "default", nil
	}
	return retention, "settings", nil
}

func purgeExpiredLocks(ctx context.Context, dataDir string, errOut io.Writer) (int64, error) {
	store, err := locksqlite.Open(filepath.Join(dataDir, "locks.db"))
	if err != nil {
		return 0, fmt.Errorf("open lock store: %w", err)
	}
	defer closeStore(store, "lock", errOut)

	deleted, err := store.DeleteExpired(ctx)
	if err != nil {
		return 0, fmt.Errorf("purge expired leases: %w", err)
	}
	return deleted, nil
}

func purgeActivities(ctx context.Context, dataDir string, cutoff time.Time, errOut io.Writer) (int64, error) {
	store, err := activitysqlite.Open(filepath.Join(dataDir, "activity.db"))
	if err != nil {
		return 0, fmt.Errorf("open activity store: %w", err)
	}
	defer closeStore(store, "activity", errOut)

	deleted, err := store.DeleteActivitiesBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete aged activities: %w", err)
	}
	return deleted, nil
}

func closeStore(closer io.Closer, name string, errOut io.Writer) {
	if err := closer.Close(); err != nil {
		fmt.Fprintf(errOut, "Error: close %s store: %v\n", name, err)
	}
}
