// Package scheduler manages schedule tasks and runs them on their intervals.
// Task rows are the source of truth for due-ness, a cross-process lock plus a
// conditional start claim keep each period to a single run, and failing
// stop-on-error tasks are switched off instead of retried forever.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	apperrors "github.com/louisbranch/storefront/internal/platform/errors"
	"github.com/louisbranch/storefront/internal/platform/events"
	"github.com/louisbranch/storefront/internal/platform/id"
	"github.com/louisbranch/storefront/internal/services/scheduler/storage"
)

// MinInterval is the shortest interval a task may be scheduled on.
const MinInterval = 10 * time.Second

// TaskInput carries the caller-provided fields of a task.
type TaskInput struct {
	Name        string
	HandlerName string
	Interval    time.Duration
	Enabled     bool
	StopOnError bool
}

// Service implements task management over a storage backend. Executing tasks
// is the Executor's job; the service only maintains the rows.
type Service struct {
	store    storage.TaskStore
	registry *Registry
	bus      *events.Bus
	clock    func() time.Time
}

// NewService wires a scheduler service. With a nil registry handler names are
// accepted unchecked; the bus may be nil, in which case events are dropped.
//
// Task reads are deliberately uncached: the runner's due-ness math depends on
// fresh LastStartedAt values and the read volume is one small query per poll.
func NewService(store storage.TaskStore, registry *Registry, bus *events.Bus) *Service {
	return &Service{
		store:    store,
		registry: registry,
		bus:      bus,
		clock:    time.Now,
	}
}

// Create validates and stores a new task.
func (s *Service) Create(ctx context.Context, input TaskInput) (storage.Task, error) {
	if s == nil || s.store == nil {
		return storage.Task{}, fmt.Errorf("scheduler service is not configured")
	}
	task, err := s.normalizeTask(input)
	if err != nil {
		return storage.Task{}, err
	}
	if err := s.checkNameFree(ctx, task.Name, ""); err != nil {
		return storage.Task{}, err
	}

	taskID, err := id.NewID()
	if err != nil {
		return storage.Task{}, fmt.Errorf("new task id: %w", err)
	}
	now := s.clock().UTC()
	task.ID = taskID
	task.CreatedAt = now
	task.UpdatedAt = now

	if err := s.store.PutTask(ctx, task); err != nil {
		return storage.Task{}, fmt.Errorf("store task: %w", err)
	}
	s.publishTask(ctx, events.TaskCreated, task)
	return task, nil
}

// Update validates and stores changes to an existing task. Run bookkeeping
// carries over untouched.
func (s *Service) Update(ctx context.Context, taskID string, input TaskInput) (storage.Task, error) {
	if s == nil || s.store == nil {
		return storage.Task{}, fmt.Errorf("scheduler service is not configured")
	}
	existing, err := s.store.GetTask(ctx, taskID)
	if err != nil {
		return storage.Task{}, s.wrapLookup(err, "load task")
	}
	task, err := s.normalizeTask(input)
	if err != nil {
		return storage.Task{}, err
	}
	if err := s.checkNameFree(ctx, task.Name, existing.ID); err != nil {
		return storage.Task{}, err
	}

	task.ID = existing.ID
	task.LastStartedAt = existing.LastStartedAt
	task.LastFinishedAt = existing.LastFinishedAt
	task.LastSucceededAt = existing.LastSucceededAt
	task.LastError = existing.LastError
	task.FailureCount = existing.FailureCount
	task.CreatedAt = existing.CreatedAt
	task.UpdatedAt = s.clock().UTC()

	if err := s.store.PutTask(ctx, task); err != nil {
		return storage.Task{}, fmt.Errorf("store task: %w", err)
	}
	s.publishTask(ctx, events.TaskUpdated, task)
	return task, nil
}

// Delete removes a task.
func (s *Service) Delete(ctx context.Context, taskID string) error {
	if s == nil || s.store == nil {
		return fmt.Errorf("scheduler service is not configured")
	}
	existing, err := s.store.GetTask(ctx, taskID)
	if err != nil {
		return s.wrapLookup(err, "load task")
	}
	if err := s.store.DeleteTask(ctx, taskID); err != nil {
		return s.wrapLookup(err, "delete task")
	}
	s.publishTask(ctx, events.TaskDeleted, existing)
	return nil
}

// Get returns a task by ID.
func (s *Service) Get(ctx context.Context, taskID string) (storage.Task, error) {
	if s == nil || s.store == nil {
		return storage.Task{}, fmt.Errorf("scheduler service is not configured")
	}
	task, err := s.store.GetTask(ctx, taskID)
	if err != nil {
		return storage.Task{}, s.wrapLookup(err, "load task")
	}
	return task, nil
}

// GetByName returns a task by its unique name.
func (s *Service) GetByName(ctx context.Context, name string) (storage.Task, error) {
	if s == nil || s.store == nil {
		return storage.Task{}, fmt.Errorf("scheduler service is not configured")
	}
	task, err := s.store.GetTaskByName(ctx, strings.TrimSpace(name))
	if err != nil {
		return storage.Task{}, s.wrapLookup(err, "load task")
	}
	return task, nil
}

// List returns tasks ordered by name.
func (s *Service) List(ctx context.Context, enabledOnly bool) ([]storage.Task, error) {
	if s == nil || s.store == nil {
		return nil, fmt.Errorf("scheduler service is not configured")
	}
	tasks, err := s.store.ListTasks(ctx, enabledOnly)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	return tasks, nil
}

// Enable switches a task on.
func (s *Service) Enable(ctx context.Context, taskID string) (storage.Task, error) {
	return s.setEnabled(ctx, taskID, true)
}

// Disable switches a task off.
func (s *Service) Disable(ctx context.Context, taskID string) (storage.Task, error) {
	return s.setEnabled(ctx, taskID, false)
}

func (s *Service) setEnabled(ctx context.Context, taskID string, enabled bool) (storage.Task, error) {
	if s == nil || s.store == nil {
		return storage.Task{}, fmt.Errorf("scheduler service is not configured")
	}
	existing, err := s.store.GetTask(ctx, taskID)
	if err != nil {
		return storage.Task{}, s.wrapLookup(err, "load task")
	}
	if existing.Enabled == enabled {
		return existing, nil
	}

	now := s.clock().UTC()
	if err := s.store.SetTaskEnabled(ctx, taskID, enabled, now); err != nil {
		return storage.Task{}, s.wrapLookup(err, "set task enabled")
	}
	existing.Enabled = enabled
	existing.UpdatedAt = now
	s.publishTask(ctx, events.TaskUpdated, existing)
	return existing, nil
}

func (s *Service) normalizeTask(input TaskInput) (storage.Task, error) {
	task := storage.Task{
		Name:        strings.TrimSpace(input.Name),
		HandlerName: strings.TrimSpace(input.HandlerName),
		Interval:    input.Interval,
		Enabled:     input.Enabled,
		StopOnError: input.StopOnError,
	}
	if task.Name == "" {
		return storage.Task{}, apperrors.New(apperrors.CodeTaskNameEmpty, "task name is required")
	}
	if task.HandlerName == "" {
		return storage.Task{}, apperrors.New(apperrors.CodeTaskHandlerEmpty, "task handler is required")
	}
	if task.Interval < MinInterval {
		return storage.Task{}, apperrors.WithMetadata(apperrors.CodeTaskIntervalTooShort,
			fmt.Sprintf("task interval must be at least %s", MinInterval),
			map[string]string{"min_interval": MinInterval.String()})
	}
	if s.registry != nil {
		if _, ok := s.registry.Lookup(task.HandlerName); !ok {
			return storage.Task{}, apperrors.WithMetadata(apperrors.CodeTaskHandlerUnknown,
				fmt.Sprintf("no handler named %s is registered", task.HandlerName),
				map[string]string{"handler": task.HandlerName})
		}
	}
	return task, nil
}

func (s *Service) checkNameFree(ctx context.Context, name string, allowID string) error {
	existing, err := s.store.GetTaskByName(ctx, name)
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("check task name: %w", err)
	}
	if existing.ID == allowID {
		return nil
	}
	return apperrors.WithMetadata(apperrors.CodeTaskNameTaken,
		fmt.Sprintf("a task named %s already exists", name),
		map[string]string{"name": name})
}

func (s *Service) publishTask(ctx context.Context, eventType string, task storage.Task) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(ctx, eventType, events.TaskEvent{
		TaskID:      task.ID,
		Name:        task.Name,
		HandlerName: task.HandlerName,
	})
}

func (s *Service) wrapLookup(err error, op string) error {
	if errors.Is(err, storage.ErrNotFound) {
		return apperrors.Wrap(apperrors.CodeNotFound, "task not found", err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
