package scheduler

import (
	"context"
	"log"
	"time"

	"github.com/louisbranch/storefront/internal/services/scheduler/storage"
)

// DefaultPollInterval is how often the runner scans for due tasks when no
// interval is configured.
const DefaultPollInterval = 30 * time.Second

// Runner polls enabled tasks and hands the due ones to the executor. One
// runner per process is enough; the executor's lock and start claim keep
// multiple processes from double-running a task.
type Runner struct {
	store    storage.TaskStore
	executor *Executor
	interval time.Duration
	clock    func() time.Time
}

// NewRunner wires a runner. A non-positive poll interval falls back to
// DefaultPollInterval.
func NewRunner(store storage.TaskStore, executor *Executor, pollInterval time.Duration) *Runner {
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}
	return &Runner{
		store:    store,
		executor: executor,
		interval: pollInterval,
		clock:    time.Now,
	}
}

// Run polls until ctx is canceled. Task failures are logged and never stop
// the loop.
func (r *Runner) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		r.tick(ctx)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (r *Runner) tick(ctx context.Context) {
	tasks, err := r.store.ListTasks(ctx, true)
	if err != nil {
		log.Printf("scheduler: list tasks: %v", err)
		return
	}

	now := r.clock().UTC()
	for _, task := range tasks {
		if ctx.Err() != nil {
			return
		}
		if !task.Due(now) {
			continue
		}
		if _, err := r.executor.ExecuteDue(ctx, task); err != nil {
			log.Printf("scheduler: task %s: %v", task.Name, err)
		}
	}
}
