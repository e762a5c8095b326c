// Package sqlite persists customers service state in a SQLite database.
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
	"github.com/louisbranch/storefront/internal/services/customers/storage"
	"github.com/louisbranch/storefront/internal/services/customers/storage/sqlite/migrations"
)

// Store implements the customers storage contracts on SQLite.
type Store struct {
	sqlDB *sql.DB
}

// Zero LastActivityAt is stored as 0 so never-seen customers stay
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

// Open opens a SQLite customers store and applies embedded migrations.
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

const customerColumns = `id, email, display_name, active, is_system, last_activity_at, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCustomer(row rowScanner) (storage.Customer, error) {
	var customer storage.Customer
	var active, isSystem, lastActivityAt, createdAt, updatedAt int64
	err := row.Scan(
		&customer.ID,
		&customer.Email,
		&customer.DisplayName,
		&active,
		&isSystem,
		&lastActivityAt,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return storage.Customer{}, err
	}
	customer.Active = active != 0
	customer.IsSystem = isSystem != 0
	customer.LastActivityAt = fromMillis(lastActivityAt)
	customer.CreatedAt = fromMillis(createdAt)
	customer.UpdatedAt = fromMillis(updatedAt)
	return customer, nil
}

// PutCustomer inserts or replaces a customer by ID.
func (s *Store) PutCustomer(ctx context.Context, customer storage.Customer) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(customer.ID) == "" {
		return fmt.Errorf("customer id is required")
	}
	if strings.TrimSpace(customer.Email) == "" {
		return fmt.Errorf("customer email is required")
	}

	_, err := s.sqlDB.ExecContext(ctx, `
		INSERT INTO customers (id, email, display_name, active, is_system, last_activity_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			email = excluded.email,
			display_name = excluded.display_name,
			active = excluded.active,
			is_system = excluded.is_system,
			last_activity_at = excluded.last_activity_at,
			updated_at = excluded.updated_at
	`,
		customer.ID,
		customer.Email,
		customer.DisplayName,
		boolToInt(customer.Active),
		boolToInt(customer.IsSystem),
		toMillis(customer.LastActivityAt),
		toMillis(customer.CreatedAt),
		toMillis(customer.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("put customer: %w", err)
	}
	return nil
}

// GetCustomer returns a customer by ID.
func (s *Store) GetCustomer(ctx context.Context, id string) (storage.Customer, error) {
	if err := ctx.Err(); err != nil {
		return storage.Customer{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.Customer{}, fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(id) == "" {
		return storage.Customer{}, fmt.Errorf("customer id is required")
	}

	row := s.sqlDB.QueryRowContext(ctx, `
		SELECT `+customerColumns+`
		FROM customers
		WHERE id = ?
	`, id)
	customer, err := scanCustomer(row)
	if errors.Is(err, sql.ErrNoRows) {
		return storage.Customer{}, storage.ErrNotFound
	}
	if err != nil {
		return storage.Customer{}, fmt.Errorf("get customer: %w", err)
	}
	return customer, nil
}

// GetCustomerByEmail returns a customer by their unique email.
func (s *Store) GetCustomerByEmail(ctx context.Context, email string) (storage.Customer, error) {
	if err := ctx.Err(); err != nil {
		return storage.Customer{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.Customer{}, fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(email) == "" {
		return storage.Customer{}, fmt.Errorf("customer email is required")
	}

	row := s.sqlDB.QueryRowContext(ctx, `
		SELECT `+customerColumns+`
		FROM customers
		WHERE email = ?
	`, email)
	customer, err := scanCustomer(row)
	if errors.Is(err, sql.ErrNoRows) {
		return storage.Customer{}, storage.ErrNotFound
	}
	if err != nil {
		return storage.Customer{}, fmt.Errorf("get customer by email: %w", err)
	}
	return customer, nil
}

// ListCustomers returns up to limit customers ordered by email, starting
// after afterEmail.
func (s *Store) ListCustomers(ctx context.Context, afterEmail string, limit int) ([]storage.Customer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be greater than zero")
	}

	rows, err := s.sqlDB.QueryContext(ctx, `
		SELECT `+customerColumns+`
		FROM customers
		WHERE email > ?
		ORDER BY email ASC
		LIMIT ?
	`, afterEmail, limit)
	if err != nil {
		return nil, fmt.Errorf("list customers: %w", err)
	}
	defer rows.Close()

	var customers []storage.Customer
	for rows.Next() {
		customer, err := scanCustomer(rows)
		if err != nil {
			return nil, fmt.Errorf("scan customer: %w", err)
		}
		customers = append(customers, customer)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate customers: %w", err)
	}
	return customers, nil
}

// TouchCustomerActivity sets LastActivityAt without rewriting the row.
func (s *Store) TouchCustomerActivity(ctx context.Context, id string, at time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("customer id is required")
	}

	result, err := s.sqlDB.ExecContext(ctx, `
		UPDATE customers
		SET last_activity_at = ?
		WHERE id = ?
	`, toMillis(at), id)
	if err != nil {
		return fmt.Errorf("touch customer activity: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("touch customer activity rows affected: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

var _ storage.Store = (*Store)(nil)
