// Package sqlite persists settings service state in a SQLite database.
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
	"github.com/louisbranch/storefront/internal/services/settings/storage"
	"github.com/louisbranch/storefront/internal/services/settings/storage/sqlite/migrations"
)

// Store implements the settings storage contracts on SQLite.
type Store struct {
	sqlDB *sql.DB
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Open opens a SQLite settings store and applies embedded migrations.
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

const settingColumns = `id, name, value, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSetting(row rowScanner) (storage.Setting, error) {
	var setting storage.Setting
	var createdAt, updatedAt int64
	err := row.Scan(
		&setting.ID,
		&setting.Name,
		&setting.Value,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return storage.Setting{}, err
	}
	setting.CreatedAt = fromMillis(createdAt)
	setting.UpdatedAt = fromMillis(updatedAt)
	return setting, nil
}

// PutSetting inserts or replaces a setting by ID.
func (s *Store) PutSetting(ctx context.Context, setting storage.Setting) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(setting.ID) == "" {
		return fmt.Errorf("setting id is required")
	}
	if strings.TrimSpace(setting.Name) == "" {
		return fmt.Errorf("setting name is required")
	}

	_, err := s.sqlDB.ExecContext(ctx, `
		INSERT INTO settings (id, name, value, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			value = excluded.value,
			updated_at = excluded.updated_at
	`,
		setting.ID,
		setting.Name,
		setting.Value,
		toMillis(setting.CreatedAt),
		toMillis(setting.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("put setting: %w", err)
	}
	return nil
}

// GetSetting returns a setting by its unique name.
func (s *Store) GetSetting(ctx context.Context, name string) (storage.Setting, error) {
	if err := ctx.Err(); err != nil {
		return storage.Setting{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.Setting{}, fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(name) == "" {
		return storage.Setting{}, fmt.Errorf("setting name is required")
	}

	row := s.sqlDB.QueryRowContext(ctx, `
		SELECT `+settingColumns+`
		FROM settings
		WHERE name = ?
	`, name)
	setting, err := scanSetting(row)
	if errors.Is(err, sql.ErrNoRows) {
		return storage.Setting{}, storage.ErrNotFound
	}
	if err != nil {
		return storage.Setting{}, fmt.Errorf("get setting: %w", err)
	}
	return setting, nil
}

// ListSettings returns all settings whose name starts with prefix, ordered
// by name. An empty prefix returns everything.
func (s *Store) ListSettings(ctx context.Context, prefix string) ([]storage.Setting, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}

	rows, err := s.sqlDB.QueryContext(ctx, `
		SELECT `+settingColumns+`
		FROM settings
		WHERE name LIKE ?
		ORDER BY name ASC
	`, prefix+"%")
	if err != nil {
		return nil, fmt.Errorf("list settings: %w", err)
	}
	defer rows.Close()

	var settings []storage.Setting
	for rows.Next() {
		setting, err := scanSetting(rows)
		if err != nil {
			return nil, fmt.Errorf("scan setting: %w", err)
		}
		settings = append(settings, setting)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate settings: %w", err)
	}
	return settings, nil
}

// DeleteSetting removes a setting by its unique name.
func (s *Store) DeleteSetting(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("setting name is required")
	}

	result, err := s.sqlDB.ExecContext(ctx, `DELETE FROM settings WHERE name = ?`, name)
	if err != nil {
		return fmt.Errorf("delete setting: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete setting rows affected: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

var _ storage.Store = (*Store)(nil)
