// Package sqlite provides a SQLite-backed lock implementation.
//
// Leases live in a locks table keyed by name. Claiming is a single
// conditional upsert so two processes sharing the database file cannot hold
// the same lock at once.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/louisbranch/storefront/internal/platform/lock"
	"github.com/louisbranch/storefront/internal/platform/lock/sqlite/migrations"
	sqlitemigrate "github.com/louisbranch/storefront/internal/platform/storage/sqlitemigrate"
	_ "modernc.org/sqlite"
)

// Store persists lock leases in SQLite.
type Store struct {
	sqlDB *sql.DB

	now func() time.Time
}

var _ lock.Locker = (*Store)(nil)

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

// Open opens a SQLite lock store and applies embedded migrations.
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
	return &Store{sqlDB: sqlDB, now: time.Now}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// WithLock implements lock.Locker.
func (s *Store) WithLock(ctx context.Context, name string, ttl time.Duration, fn func(ctx context.Context) error) (bool, error) {
	if err := lock.ValidateArgs(name, ttl, fn); err != nil {
		return false, err
	}
	if s == nil || s.sqlDB == nil {
		return false, fmt.Errorf("storage is not configured")
	}
	name = strings.TrimSpace(name)

	owner := uuid.NewString()
	acquired, err := s.claim(ctx, name, owner, ttl)
	if err != nil {
		return false, err
	}
	if !acquired {
		return false, nil
	}
	defer s.release(name, owner)

	return true, lock.RunProtected(ctx, fn)
}

// DeleteExpired removes leases whose expiry has passed and reports how many
// rows were deleted. The lock reaper task calls this periodically.
func (s *Store) DeleteExpired(ctx context.Context) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if s == nil || s.sqlDB == nil {
		return 0, fmt.Errorf("storage is not configured")
	}
	res, err := s.sqlDB.ExecContext(ctx, "DELETE FROM locks WHERE expires_at <= ?", toMillis(s.now()))
	if err != nil {
		return 0, fmt.Errorf("delete expired locks: %w", err)
	}
	deleted, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("count deleted locks: %w", err)
	}
	return deleted, nil
}

// claim inserts a fresh lease or takes over an expired one. The conditional
// upsert leaves live leases untouched, so zero affected rows means busy.
func (s *Store) claim(ctx context.Context, name string, owner string, ttl time.Duration) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	nowMillis := toMillis(s.now())
	res, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO locks (name, owner, expires_at) VALUES (?, ?, ?)
ON CONFLICT(name) DO UPDATE SET owner = excluded.owner, expires_at = excluded.expires_at
WHERE locks.expires_at <= ?`,
		name, owner, nowMillis+ttl.Milliseconds(), nowMillis)
	if err != nil {
		return false, fmt.Errorf("claim lock %s: %w", name, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("check lock claim %s: %w", name, err)
	}
	return affected > 0, nil
}

// release deletes the lease only while this caller still owns it.
func (s *Store) release(name string, owner string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := s.sqlDB.ExecContext(ctx,
		"DELETE FROM locks WHERE name = ? AND owner = ?", name, owner); err != nil {
		log.Printf("lock: release %s: %v", name, err)
	}
}
