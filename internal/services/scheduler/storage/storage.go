// Package storage defines persistence contracts for schedule task state.
package storage

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("record not found")

// Task is a unit of background work executed on a fixed interval.
//
// The Last* timestamps are bookkeeping written by the runner: LastStartedAt
// moves before the handler runs, LastFinishedAt after, and LastSucceededAt
// only when the run returned no error. A zero timestamp means never.
type Task struct {
	ID              string
	Name            string
	HandlerName     string
	Interval        time.Duration
	Enabled         bool
	StopOnError     bool
	LastStartedAt   time.Time
	LastFinishedAt  time.Time
	LastSucceededAt time.Time
	LastError       string
	FailureCount    int
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Due reports whether the task's next period has been reached at now.
func (t Task) Due(now time.Time) bool {
	if t.LastStartedAt.IsZero() {
		return true
	}
	return !now.Before(t.LastStartedAt.Add(t.Interval))
}

// RunResult captures the outcome of one task execution.
type RunResult struct {
	FinishedAt time.Time
	Succeeded  bool
	RunError   string
}

// TaskStore persists tasks and their run bookkeeping.
type TaskStore interface {
	// PutTask inserts or replaces a task by ID.
	PutTask(ctx context.Context, task Task) error

	// GetTask returns a task by ID or ErrNotFound.
	GetTask(ctx context.Context, id string) (Task, error)

	// GetTaskByName returns a task by its unique name or ErrNotFound.
	GetTaskByName(ctx context.Context, name string) (Task, error)

	// ListTasks returns tasks ordered by name. When enabledOnly is set,
	// disabled tasks are omitted.
	ListTasks(ctx context.Context, enabledOnly bool) ([]Task, error)

	// DeleteTask removes a task by ID or returns ErrNotFound.
	DeleteTask(ctx context.Context, id string) error

	// MarkTaskStarted sets LastStartedAt. With onlyIfDue it claims the run
	// conditionally: the update applies only while the task is enabled and
	// its period has elapsed, so two runners racing on the same row cannot
	// both start it. Returns whether the claim applied.
	MarkTaskStarted(ctx context.Context, id string, startedAt time.Time, onlyIfDue bool) (bool, error)

	// RecordTaskResult writes the outcome of a run: LastFinishedAt always,
	// LastSucceededAt and a failure-count reset on success, LastError and a
	// failure-count increment on failure.
	RecordTaskResult(ctx context.Context, id string, result RunResult) error

	// SetTaskEnabled flips the enabled flag without touching run bookkeeping.
	SetTaskEnabled(ctx context.Context, id string, enabled bool, updatedAt time.Time) error
}

// Store is the full persistence surface of the scheduler service.
type Store interface {
	TaskStore
	Close() error
}
