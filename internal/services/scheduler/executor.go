package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	apperrors "github.com/louisbranch/storefront/internal/platform/errors"
	"github.com/louisbranch/storefront/internal/platform/events"
	"github.com/louisbranch/storefront/internal/platform/lock"
	"github.com/louisbranch/storefront/internal/platform/timeouts"
	"github.com/louisbranch/storefront/internal/services/scheduler/storage"
)

// Executor runs a single task with the full protocol: cross-process lock,
// in-lock re-read and conditional start claim, panic recovery, result
// bookkeeping and stop-on-error containment.
type Executor struct {
	store    storage.TaskStore
	registry *Registry
	locker   lock.Locker
	bus      *events.Bus
	clock    func() time.Time
	leaseCap time.Duration
}

// NewExecutor wires an executor. A nil locker skips cross-process
// serialization, which is only safe for single-process deployments; the bus
// may be nil, in which case events are dropped.
func NewExecutor(store storage.TaskStore, registry *Registry, locker lock.Locker, bus *events.Bus) *Executor {
	return &Executor{
		store:    store,
		registry: registry,
		locker:   locker,
		bus:      bus,
		clock:    time.Now,
		leaseCap: timeouts.TaskLease,
	}
}

// ExecuteDue runs the task if it is still due once the lock is held. It
// returns whether the handler actually ran; a handler failure comes back as
// the error with ran still true.
func (e *Executor) ExecuteDue(ctx context.Context, task storage.Task) (bool, error) {
	if e == nil || e.store == nil {
		return false, fmt.Errorf("executor is not configured")
	}
	handler, ok := e.lookupHandler(task.HandlerName)
	if !ok {
		log.Printf("scheduler: task %s skipped, no handler named %q", task.Name, task.HandlerName)
		return false, nil
	}
	return e.executeLocked(ctx, task, handler, false)
}

// RunNow executes a task by name immediately, ignoring due-ness but not the
// lock. A disabled task is refused, and a held lock surfaces as a distinct
// lock-busy error. The returned task reflects the run's bookkeeping.
func (e *Executor) RunNow(ctx context.Context, name string) (storage.Task, error) {
	if e == nil || e.store == nil {
		return storage.Task{}, fmt.Errorf("executor is not configured")
	}
	task, err := e.store.GetTaskByName(ctx, strings.TrimSpace(name))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return storage.Task{}, apperrors.Wrap(apperrors.CodeNotFound, "task not found", err)
		}
		return storage.Task{}, fmt.Errorf("load task: %w", err)
	}
	if !task.Enabled {
		return task, apperrors.WithMetadata(apperrors.CodeTaskDisabled,
			fmt.Sprintf("task %s is disabled", task.Name),
			map[string]string{"name": task.Name})
	}
	handler, ok := e.lookupHandler(task.HandlerName)
	if !ok {
		return task, apperrors.WithMetadata(apperrors.CodeTaskHandlerUnknown,
			fmt.Sprintf("no handler named %s is registered", task.HandlerName),
			map[string]string{"handler": task.HandlerName})
	}

	ran, runErr := e.executeLocked(ctx, task, handler, true)
	if !ran && runErr == nil {
		return task, apperrors.WithMetadata(apperrors.CodeTaskLockBusy,
			fmt.Sprintf("task %s is already running", task.Name),
			map[string]string{"name": task.Name})
	}

	refreshed, err := e.store.GetTask(ctx, task.ID)
	if err != nil {
		return task, runErr
	}
	return refreshed, runErr
}

// executeLocked takes the task lock and runs the full in-lock protocol.
func (e *Executor) executeLocked(ctx context.Context, task storage.Task, handler Handler, force bool) (bool, error) {
	run := func(ctx context.Context) (bool, error) {
		return e.runTask(ctx, task.ID, handler, force)
	}
	if e.locker == nil {
		return run(ctx)
	}

	ran := false
	var runErr error
	acquired, err := e.locker.WithLock(ctx, "task:"+task.HandlerName, e.leaseFor(task.Interval), func(ctx context.Context) error {
		ran, runErr = run(ctx)
		return nil
	})
	if err != nil {
		return ran, fmt.Errorf("task lock: %w", err)
	}
	if !acquired {
		return false, nil
	}
	return ran, runErr
}

// runTask re-reads the task under the lock, claims the start, runs the
// handler and records the outcome. Timestamps are persisted on failure too.
func (e *Executor) runTask(ctx context.Context, taskID string, handler Handler, force bool) (bool, error) {
	fresh, err := e.store.GetTask(ctx, taskID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("reload task: %w", err)
	}
	startedAt := e.clock().UTC()
	if !force && (!fresh.Enabled || !fresh.Due(startedAt)) {
		return false, nil
	}

	claimed, err := e.store.MarkTaskStarted(ctx, taskID, startedAt, !force)
	if err != nil {
		return false, fmt.Errorf("claim task start: %w", err)
	}
	if !claimed {
		return false, nil
	}

	runErr := runHandler(ctx, handler)

	result := storage.RunResult{
		FinishedAt: e.clock().UTC(),
		Succeeded:  runErr == nil,
	}
	if runErr != nil {
		result.RunError = runErr.Error()
	}
	if err := e.store.RecordTaskResult(ctx, taskID, result); err != nil {
		log.Printf("scheduler: record result for task %s: %v", fresh.Name, err)
	}

	if runErr != nil && fresh.StopOnError {
		e.disableFailed(ctx, fresh, result.FinishedAt, runErr)
	}
	return true, runErr
}

// disableFailed switches off a stop-on-error task after a failed run and
// announces why.
func (e *Executor) disableFailed(ctx context.Context, task storage.Task, at time.Time, cause error) {
	if err := e.store.SetTaskEnabled(ctx, task.ID, false, at); err != nil {
		log.Printf("scheduler: disable task %s: %v", task.Name, err)
		return
	}
	log.Printf("scheduler: task %s disabled after failure: %v", task.Name, cause)
	if e.bus == nil {
		return
	}
	e.bus.Publish(ctx, events.TaskDisabled, events.TaskDisabledEvent{
		TaskID:      task.ID,
		Name:        task.Name,
		HandlerName: task.HandlerName,
		Reason:      cause.Error(),
	})
}

func (e *Executor) lookupHandler(name string) (Handler, bool) {
	if e.registry == nil {
		return nil, false
	}
	return e.registry.Lookup(name)
}

// leaseFor sizes the lock lease: the task interval, capped at the shared
// task lease so long-interval tasks never leave a dead holder's lease
// standing for a whole period.
func (e *Executor) leaseFor(interval time.Duration) time.Duration {
	ttl := interval
	if ttl <= 0 || ttl > e.leaseCap {
		ttl = e.leaseCap
	}
	return ttl
}

func runHandler(ctx context.Context, handler Handler) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return handler.Run(ctx)
}
