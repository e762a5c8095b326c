// Package sqlite provides a SQLite-backed activity log storage implementation.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	sqlitemigrate "github.com/louisbranch/storefront/internal/platform/storage/sqlitemigrate"
	"github.com/louisbranch/storefront/internal/services/activitylog/storage"
	"github.com/louisbranch/storefront/internal/services/activitylog/storage/sqlite/migrations"
	_ "modernc.org/sqlite"
)

// Store persists activity log state in SQLite.
type Store struct {
	sqlDB *sql.DB
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

func boolToInt(value bool) int64 {
	if value {
		return 1
	}
	return 0
}

// Open opens a SQLite activity log store and applies embedded migrations.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := sqlitemigrate.ApplyMigrations(sqlDB, migrations.FS, ""); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// PutActivityType upserts one activity type by id.
func (s *Store) PutActivityType(ctx context.Context, activityType storage.ActivityType) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	id := strings.TrimSpace(activityType.ID)
	if id == "" {
		return fmt.Errorf("activity type id is required")
	}
	systemKeyword := strings.TrimSpace(activityType.SystemKeyword)
	if systemKeyword == "" {
		return fmt.Errorf("system keyword is required")
	}

	_, err := s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO activity_types (id, system_keyword, display_name, enabled)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   system_keyword = excluded.system_keyword,
		   display_name = excluded.display_name,
		   enabled = excluded.enabled`,
		id,
		systemKeyword,
		activityType.DisplayName,
		boolToInt(activityType.Enabled),
	)
	if err != nil {
		return fmt.Errorf("put activity type: %w", err)
	}
	return nil
}

// GetActivityType returns one activity type by id.
func (s *Store) GetActivityType(ctx context.Context, id string) (storage.ActivityType, error) {
	if err := ctx.Err(); err != nil {
		return storage.ActivityType{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.ActivityType{}, fmt.Errorf("storage is not configured")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return storage.ActivityType{}, fmt.Errorf("activity type id is required")
	}

	row := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT id, system_keyword, display_name, enabled
		 FROM activity_types
		 WHERE id = ?`,
		id,
	)
	return scanActivityType(row)
}

// GetActivityTypeBySystemKeyword returns one activity type by keyword.
func (s *Store) GetActivityTypeBySystemKeyword(ctx context.Context, systemKeyword string) (storage.ActivityType, error) {
	if err := ctx.Err(); err != nil {
		return storage.ActivityType{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.ActivityType{}, fmt.Errorf("storage is not configured")
	}
	systemKeyword = strings.TrimSpace(systemKeyword)
	if systemKeyword == "" {
		return storage.ActivityType{}, fmt.Errorf("system keyword is required")
	}

	row := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT id, system_keyword, display_name, enabled
		 FROM activity_types
		 WHERE system_keyword = ?`,
		systemKeyword,
	)
	return scanActivityType(row)
}

// ListActivityTypes returns all activity types ordered by keyword.
func (s *Store) ListActivityTypes(ctx context.Context) ([]storage.ActivityType, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}

	rows, err := s.sqlDB.QueryContext(
		ctx,
		`SELECT id, system_keyword, display_name, enabled
		 FROM activity_types
		 ORDER BY system_keyword ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("list activity types: %w", err)
	}
	defer rows.Close()

	types := make([]storage.ActivityType, 0)
	for rows.Next() {
		activityType, err := scanActivityType(rows)
		if err != nil {
			return nil, fmt.Errorf("list activity types: %w", err)
		}
		types = append(types, activityType)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list activity types: %w", err)
	}
	return types, nil
}

// InsertActivity stores one recorded activity.
func (s *Store) InsertActivity(ctx context.Context, activity storage.Activity) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	id := strings.TrimSpace(activity.ID)
	if id == "" {
		return fmt.Errorf("activity id is required")
	}
	typeID := strings.TrimSpace(activity.TypeID)
	if typeID == "" {
		return fmt.Errorf("activity type id is required")
	}

	_, err := s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO activities (id, type_id, system_keyword, customer_id, comment, entity_name, entity_id, ip_address, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id,
		typeID,
		activity.SystemKeyword,
		activity.CustomerID,
		activity.Comment,
		activity.EntityName,
		activity.EntityID,
		activity.IPAddress,
		toMillis(activity.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert activity: %w", err)
	}
	return nil
}

// GetActivity returns one recorded activity by id.
func (s *Store) GetActivity(ctx context.Context, id string) (storage.Activity, error) {
	if err := ctx.Err(); err != nil {
		return storage.Activity{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.Activity{}, fmt.Errorf("storage is not configured")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return storage.Activity{}, fmt.Errorf("activity id is required")
	}

	row := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT id, type_id, system_keyword, customer_id, comment, entity_name, entity_id, ip_address, created_at
		 FROM activities
		 WHERE id = ?`,
		id,
	)
	return scanActivity(row)
}

// SearchActivities returns one filtered page ordered newest first.
func (s *Store) SearchActivities(ctx context.Context, query storage.SearchQuery) (storage.ActivityPage, error) {
	if err := ctx.Err(); err != nil {
		return storage.ActivityPage{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.ActivityPage{}, fmt.Errorf("storage is not configured")
	}
	if query.PageSize <= 0 {
		return storage.ActivityPage{}, fmt.Errorf("page size must be greater than zero")
	}

	sqlQuery := `SELECT id, type_id, system_keyword, customer_id, comment, entity_name, entity_id, ip_address, created_at
		 FROM activities`
	conditions := make([]string, 0, 2)
	args := make([]any, 0, len(query.Filter.Params)+4)
	if query.Filter.Clause != "" {
		conditions = append(conditions, query.Filter.Clause)
		args = append(args, query.Filter.Params...)
	}
	if query.Cursor != nil {
		cursorMillis := toMillis(query.Cursor.CreatedAt)
		conditions = append(conditions, `(created_at < ? OR (created_at = ? AND id < ?))`)
		args = append(args, cursorMillis, cursorMillis, query.Cursor.ID)
	}
	if len(conditions) > 0 {
		sqlQuery += ` WHERE ` + strings.Join(conditions, ` AND `)
	}
	sqlQuery += ` ORDER BY created_at DESC, id DESC LIMIT ?`
	args = append(args, query.PageSize+1)

	rows, err := s.sqlDB.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return storage.ActivityPage{}, fmt.Errorf("search activities: %w", err)
	}
	defer rows.Close()

	page := storage.ActivityPage{
		Activities: make([]storage.Activity, 0, query.PageSize),
	}
	for rows.Next() {
		activity, err := scanActivity(rows)
		if err != nil {
			return storage.ActivityPage{}, fmt.Errorf("search activities: %w", err)
		}
		page.Activities = append(page.Activities, activity)
	}
	if err := rows.Err(); err != nil {
		return storage.ActivityPage{}, fmt.Errorf("search activities: %w", err)
	}
	if len(page.Activities) > query.PageSize {
		page.Activities = page.Activities[:query.PageSize]
		last := page.Activities[len(page.Activities)-1]
		page.NextCursor = &storage.SearchCursor{CreatedAt: last.CreatedAt, ID: last.ID}
	}
	return page, nil
}

// DeleteActivity removes one recorded activity.
func (s *Store) DeleteActivity(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("activity id is required")
	}

	_, err := s.sqlDB.ExecContext(ctx, `DELETE FROM activities WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete activity: %w", err)
	}
	return nil
}

// DeleteActivitiesBefore removes activities created before cutoff and
// reports how many rows went away.
func (s *Store) DeleteActivitiesBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if s == nil || s.sqlDB == nil {
		return 0, fmt.Errorf("storage is not configured")
	}

	result, err := s.sqlDB.ExecContext(ctx, `DELETE FROM activities WHERE created_at < ?`, toMillis(cutoff))
	if err != nil {
		return 0, fmt.Errorf("delete activities before: %w", err)
	}
	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete activities before: %w", err)
	}
	return deleted, nil
}

// ClearActivities removes every recorded activity.
func (s *Store) ClearActivities(ctx context.Context) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if s == nil || s.sqlDB == nil {
		return 0, fmt.Errorf("storage is not configured")
	}

	result, err := s.sqlDB.ExecContext(ctx, `DELETE FROM activities`)
	if err != nil {
		return 0, fmt.Errorf("clear activities: %w", err)
	}
	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("clear activities: %w", err)
	}
	return deleted, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanActivityType(row rowScanner) (storage.ActivityType, error) {
	var (
		activityType storage.ActivityType
		enabled      int64
	)
	err := row.Scan(
		&activityType.ID,
		&activityType.SystemKeyword,
		&activityType.DisplayName,
		&enabled,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.ActivityType{}, storage.ErrNotFound
		}
		return storage.ActivityType{}, fmt.Errorf("scan activity type: %w", err)
	}
	activityType.Enabled = enabled != 0
	return activityType, nil
}

func scanActivity(row rowScanner) (storage.Activity, error) {
	var (
		activity  storage.Activity
		createdAt int64
	)
	err := row.Scan(
		&activity.ID,
		&activity.TypeID,
		&activity.SystemKeyword,
		&activity.CustomerID,
		&activity.Comment,
		&activity.EntityName,
		&activity.EntityID,
		&activity.IPAddress,
		&createdAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.Activity{}, storage.ErrNotFound
		}
		return storage.Activity{}, fmt.Errorf("scan activity: %w", err)
	}
	activity.CreatedAt = fromMillis(createdAt)
	return activity, nil
}

var _ storage.Store = (*Store)(nil)
