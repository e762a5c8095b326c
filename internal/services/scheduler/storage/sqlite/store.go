// Package sqlite persists scheduler service state in a SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/louisbranch/storefront/internal/platform/storage/sqlitemigrate"
	"github.com/louisbranch/storefront/internal/services/scheduler/storage"
	"github.com/louisbranch/storefront/internal/services/scheduler/storage/sqlite/migrations"
)

// Store implements the scheduler storage contracts on SQLite.
type Store struct {
	sqlDB *sql.DB
}

// Zero timestamps are stored as 0 so a task that never ran stays
// distinguishable after a round trip.
func toMillis(value time.Time) int64 {
	if value.IsZero() {
		return 0
	}
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	if value == 0 {
		return time.Time{}
	}
	return time.UnixMilli(value).UTC()
}

func boolToInt(value bool) int64 {
	if value {
		return 1
	}
	return 0
}

// Open opens a SQLite scheduler store and applies embedded migrations.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}

	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite database: %w", err)
	}
	if err := sqlitemigrate.ApplyMigrations(sqlDB, migrations.FS, ""); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("apply migrations: %w", err)
	}

	return &Store{sqlDB: sqlDB}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

const taskColumns = `id, name, handler_name, interval_seconds, enabled, stop_on_error,
	last_started_at, last_finished_at, last_succeeded_at, last_error, failure_count,
	created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (storage.Task, error) {
	var task storage.Task
	var intervalSeconds, enabled, stopOnError int64
	var startedAt, finishedAt, succeededAt, createdAt, updatedAt int64
	err := row.Scan(
		&task.ID,
		&task.Name,
		&task.HandlerName,
		&intervalSeconds,
		&enabled,
		&stopOnError,
		&startedAt,
		&finishedAt,
		&succeededAt,
		&task.LastError,
		&task.FailureCount,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return storage.Task{}, err
	}
	task.Interval = time.Duration(intervalSeconds) * time.Second
	task.Enabled = enabled != 0
	task.StopOnError = stopOnError != 0
	task.LastStartedAt = fromMillis(startedAt)
	task.LastFinishedAt = fromMillis(finishedAt)
	task.LastSucceededAt = fromMillis(succeededAt)
	task.CreatedAt = fromMillis(createdAt)
	task.UpdatedAt = fromMillis(updatedAt)
	return task, nil
}

// PutTask inserts or replaces a task by ID.
func (s *Store) PutTask(ctx context.Context, task storage.Task) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(task.ID) == "" {
		return fmt.Errorf("task id is required")
	}
	if strings.TrimSpace(task.Name) == "" {
		return fmt.Errorf("task name is required")
	}

	_, err := s.sqlDB.ExecContext(ctx, `
		INSERT INTO tasks (
			id, name, handler_name, interval_seconds, enabled, stop_on_error,
			last_started_at, last_finished_at, last_succeeded_at, last_error,
			failure_count, created_at, updated_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			handler_name = excluded.handler_name,
			interval_seconds = excluded.interval_seconds,
			enabled = excluded.enabled,
			stop_on_error = excluded.stop_on_error,
			last_started_at = excluded.last_started_at,
			last_finished_at = excluded.last_finished_at,
			last_succeeded_at = excluded.last_succeeded_at,
			last_error = excluded.last_error,
			failure_count = excluded.failure_count,
			updated_at = excluded.updated_at
	`,
		task.ID,
		task.Name,
		task.HandlerName,
		int64(task.Interval/time.Second),
		boolToInt(task.Enabled),
		boolToInt(task.StopOnError),
		toMillis(task.LastStartedAt),
		toMillis(task.LastFinishedAt),
		toMillis(task.LastSucceededAt),
		task.LastError,
		task.FailureCount,
		toMillis(task.CreatedAt),
		toMillis(task.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("put task: %w", err)
	}
	return nil
}

// GetTask returns a task by ID.
func (s *Store) GetTask(ctx context.Context, id string) (storage.Task, error) {
	if err := ctx.Err(); err != nil {
		return storage.Task{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.Task{}, fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(id) == "" {
		return storage.Task{}, fmt.Errorf("task id is required")
	}

	row := s.sqlDB.QueryRowContext(ctx, `
		SELECT `+taskColumns+`
		FROM tasks
		WHERE id = ?
	`, id)
	task, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return storage.Task{}, storage.ErrNotFound
	}
	if err != nil {
		return storage.Task{}, fmt.Errorf("get task: %w", err)
	}
	return task, nil
}

// GetTaskByName returns a task by its unique name.
func (s *Store) GetTaskByName(ctx context.Context, name string) (storage.Task, error) {
	if err := ctx.Err(); err != nil {
		return storage.Task{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.Task{}, fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(name) == "" {
		return storage.Task{}, fmt.Errorf("task name is required")
	}

	row := s.sqlDB.QueryRowContext(ctx, `
		SELECT `+taskColumns+`
		FROM tasks
		WHERE name = ?
	`, name)
	task, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return storage.Task{}, storage.ErrNotFound
	}
	if err != nil {
		return storage.Task{}, fmt.Errorf("get task by name: %w", err)
	}
	return task, nil
}

// ListTasks returns tasks ordered by name.
func (s *Store) ListTasks(ctx context.Context, enabledOnly bool) ([]storage.Task, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}

	query := `
		SELECT ` + taskColumns + `
		FROM tasks
	`
	if enabledOnly {
		query += ` WHERE enabled = 1`
	}
	query += ` ORDER BY name ASC`

	rows, err := s.sqlDB.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []storage.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tasks: %w", err)
	}
	return tasks, nil
}

// DeleteTask removes a task by ID.
func (s *Store) DeleteTask(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("task id is required")
	}

	result, err := s.sqlDB.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete task rows affected: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// MarkTaskStarted sets LastStartedAt, optionally claiming the run only while
// the task is enabled and due.
func (s *Store) MarkTaskStarted(ctx context.Context, id string, startedAt time.Time, onlyIfDue bool) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if s == nil || s.sqlDB == nil {
		return false, fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(id) == "" {
		return false, fmt.Errorf("task id is required")
	}

	startedMillis := toMillis(startedAt)
	query := `
		UPDATE tasks
		SET last_started_at = ?, updated_at = ?
		WHERE id = ?
	`
	args := []any{startedMillis, startedMillis, id}
	if onlyIfDue {
		query += ` AND enabled = 1 AND (last_started_at = 0 OR last_started_at + interval_seconds * 1000 <= ?)`
		args = append(args, startedMillis)
	}

	result, err := s.sqlDB.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("mark task started: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("mark task started rows affected: %w", err)
	}
	return affected > 0, nil
}

// RecordTaskResult writes the outcome of one run.
func (s *Store) RecordTaskResult(ctx context.Context, id string, result storage.RunResult) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("task id is required")
	}

	finishedMillis := toMillis(result.FinishedAt)
	succeeded := boolToInt(result.Succeeded)
	res, err := s.sqlDB.ExecContext(ctx, `
		UPDATE tasks
		SET last_finished_at = ?,
			last_succeeded_at = CASE WHEN ? = 1 THEN ? ELSE last_succeeded_at END,
			last_error = ?,
			failure_count = CASE WHEN ? = 1 THEN 0 ELSE failure_count + 1 END,
			updated_at = ?
		WHERE id = ?
	`, finishedMillis, succeeded, finishedMillis, result.RunError, succeeded, finishedMillis, id)
	if err != nil {
		return fmt.Errorf("record task result: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("record task result rows affected: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// SetTaskEnabled flips the enabled flag without touching run bookkeeping.
func (s *Store) SetTaskEnabled(ctx context.Context, id string, enabled bool, updatedAt time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("task id is required")
	}

	result, err := s.sqlDB.ExecContext(ctx, `
		UPDATE tasks
		SET enabled = ?, updated_at = ?
		WHERE id = ?
	`, boolToInt(enabled), toMillis(updatedAt), id)
	if err != nil {
		return fmt.Errorf("set task enabled: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("set task enabled rows affected: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

var _ storage.Store = (*Store)(nil)
