// Package sqlite persists access service state in a SQLite database.
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
	"github.com/louisbranch/storefront/internal/services/access/storage"
	"github.com/louisbranch/storefront/internal/services/access/storage/sqlite/migrations"
)

// Store implements the access storage contracts on SQLite.
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

// Open opens a SQLite access store and applies embedded migrations.
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

type rowScanner interface {
	Scan(dest ...any) error
}

const roleColumns = `id, name, system_name, active, is_system, created_at, updated_at`

func scanRole(row rowScanner) (storage.Role, error) {
	var role storage.Role
	var active, isSystem, createdAt, updatedAt int64
	err := row.Scan(
		&role.ID,
		&role.Name,
		&role.SystemName,
		&active,
		&isSystem,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return storage.Role{}, err
	}
	role.Active = active != 0
	role.IsSystem = isSystem != 0
	role.CreatedAt = fromMillis(createdAt)
	role.UpdatedAt = fromMillis(updatedAt)
	return role, nil
}

func scanPermission(row rowScanner) (storage.Permission, error) {
	var permission storage.Permission
	err := row.Scan(
		&permission.ID,
		&permission.Name,
		&permission.SystemName,
		&permission.Category,
	)
	if err != nil {
		return storage.Permission{}, err
	}
	return permission, nil
}

// PutRole inserts or replaces a role by ID.
func (s *Store) PutRole(ctx context.Context, role storage.Role) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(role.ID) == "" {
		return fmt.Errorf("role id is required")
	}
	if strings.TrimSpace(role.SystemName) == "" {
		return fmt.Errorf("role system name is required")
	}

	_, err := s.sqlDB.ExecContext(ctx, `
		INSERT INTO roles (id, name, system_name, active, is_system, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			system_name = excluded.system_name,
			active = excluded.active,
			is_system = excluded.is_system,
			updated_at = excluded.updated_at
	`,
		role.ID,
		role.Name,
		role.SystemName,
		boolToInt(role.Active),
		boolToInt(role.IsSystem),
		toMillis(role.CreatedAt),
		toMillis(role.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("put role: %w", err)
	}
	return nil
}

// GetRole returns a role by ID.
func (s *Store) GetRole(ctx context.Context, id string) (storage.Role, error) {
	if err := ctx.Err(); err != nil {
		return storage.Role{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.Role{}, fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(id) == "" {
		return storage.Role{}, fmt.Errorf("role id is required")
	}

	row := s.sqlDB.QueryRowContext(ctx, `
		SELECT `+roleColumns+`
		FROM roles
		WHERE id = ?
	`, id)
	role, err := scanRole(row)
	if errors.Is(err, sql.ErrNoRows) {
		return storage.Role{}, storage.ErrNotFound
	}
	if err != nil {
		return storage.Role{}, fmt.Errorf("get role: %w", err)
	}
	return role, nil
}

// GetRoleBySystemName returns a role by its unique system name.
func (s *Store) GetRoleBySystemName(ctx context.Context, systemName string) (storage.Role, error) {
	if err := ctx.Err(); err != nil {
		return storage.Role{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.Role{}, fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(systemName) == "" {
		return storage.Role{}, fmt.Errorf("role system name is required")
	}

	row := s.sqlDB.QueryRowContext(ctx, `
		SELECT `+roleColumns+`
		FROM roles
		WHERE system_name = ?
	`, systemName)
	role, err := scanRole(row)
	if errors.Is(err, sql.ErrNoRows) {
		return storage.Role{}, storage.ErrNotFound
	}
	if err != nil {
		return storage.Role{}, fmt.Errorf("get role by system name: %w", err)
	}
	return role, nil
}

// ListRoles returns roles ordered by name.
func (s *Store) ListRoles(ctx context.Context, activeOnly bool) ([]storage.Role, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}

	query := `
		SELECT ` + roleColumns + `
		FROM roles
	`
	if activeOnly {
		query += ` WHERE active = 1`
	}
	query += ` ORDER BY name ASC`

	rows, err := s.sqlDB.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list roles: %w", err)
	}
	defer rows.Close()

	var roles []storage.Role
	for rows.Next() {
		role, err := scanRole(rows)
		if err != nil {
			return nil, fmt.Errorf("scan role: %w", err)
		}
		roles = append(roles, role)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate roles: %w", err)
	}
	return roles, nil
}

// DeleteRole removes a role. Grants and assignments follow via FK cascade.
func (s *Store) DeleteRole(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("role id is required")
	}

	result, err := s.sqlDB.ExecContext(ctx, `DELETE FROM roles WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete role: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete role rows affected: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// PutPermission inserts or replaces a permission by ID.
func (s *Store) PutPermission(ctx context.Context, permission storage.Permission) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(permission.ID) == "" {
		return fmt.Errorf("permission id is required")
	}
	if strings.TrimSpace(permission.SystemName) == "" {
		return fmt.Errorf("permission system name is required")
	}

	_, err := s.sqlDB.ExecContext(ctx, `
		INSERT INTO permissions (id, name, system_name, category)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			system_name = excluded.system_name,
			category = excluded.category
	`,
		permission.ID,
		permission.Name,
		permission.SystemName,
		permission.Category,
	)
	if err != nil {
		return fmt.Errorf("put permission: %w", err)
	}
	return nil
}

// GetPermissionBySystemName returns a permission by its unique system name.
func (s *Store) GetPermissionBySystemName(ctx context.Context, systemName string) (storage.Permission, error) {
	if err := ctx.Err(); err != nil {
		return storage.Permission{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.Permission{}, fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(systemName) == "" {
		return storage.Permission{}, fmt.Errorf("permission system name is required")
	}

	row := s.sqlDB.QueryRowContext(ctx, `
		SELECT id, name, system_name, category
		FROM permissions
		WHERE system_name = ?
	`, systemName)
	permission, err := scanPermission(row)
	if errors.Is(err, sql.ErrNoRows) {
		return storage.Permission{}, storage.ErrNotFound
	}
	if err != nil {
		return storage.Permission{}, fmt.Errorf("get permission: %w", err)
	}
	return permission, nil
}

// ListPermissions returns the catalog ordered by category then name.
func (s *Store) ListPermissions(ctx context.Context) ([]storage.Permission, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}

	rows, err := s.sqlDB.QueryContext(ctx, `
		SELECT id, name, system_name, category
		FROM permissions
		ORDER BY category ASC, name ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list permissions: %w", err)
	}
	defer rows.Close()

	var permissions []storage.Permission
	for rows.Next() {
		permission, err := scanPermission(rows)
		if err != nil {
			return nil, fmt.Errorf("scan permission: %w", err)
		}
		permissions = append(permissions, permission)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate permissions: %w", err)
	}
	return permissions, nil
}

// GrantPermission links a permission to a role. Granting twice is a no-op.
func (s *Store) GrantPermission(ctx context.Context, roleID, permissionID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(roleID) == "" || strings.TrimSpace(permissionID) == "" {
		return fmt.Errorf("role id and permission id are required")
	}

	_, err := s.sqlDB.ExecContext(ctx, `
		INSERT INTO role_permissions (role_id, permission_id)
		VALUES (?, ?)
		ON CONFLICT(role_id, permission_id) DO NOTHING
	`, roleID, permissionID)
	if err != nil {
		return fmt.Errorf("grant permission: %w", err)
	}
	return nil
}

// RevokePermission unlinks a permission from a role. Revoking an absent
// grant is a no-op.
func (s *Store) RevokePermission(ctx context.Context, roleID, permissionID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(roleID) == "" || strings.TrimSpace(permissionID) == "" {
		return fmt.Errorf("role id and permission id are required")
	}

	_, err := s.sqlDB.ExecContext(ctx, `
		DELETE FROM role_permissions
		WHERE role_id = ? AND permission_id = ?
	`, roleID, permissionID)
	if err != nil {
		return fmt.Errorf("revoke permission: %w", err)
	}
	return nil
}

// ListRolePermissions returns the permissions granted to a role ordered by
// system name.
func (s *Store) ListRolePermissions(ctx context.Context, roleID string) ([]storage.Permission, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(roleID) == "" {
		return nil, fmt.Errorf("role id is required")
	}

	rows, err := s.sqlDB.QueryContext(ctx, `
		SELECT p.id, p.name, p.system_name, p.category
		FROM permissions p
		JOIN role_permissions rp ON rp.permission_id = p.id
		WHERE rp.role_id = ?
		ORDER BY p.system_name ASC
	`, roleID)
	if err != nil {
		return nil, fmt.Errorf("list role permissions: %w", err)
	}
	defer rows.Close()

	var permissions []storage.Permission
	for rows.Next() {
		permission, err := scanPermission(rows)
		if err != nil {
			return nil, fmt.Errorf("scan permission: %w", err)
		}
		permissions = append(permissions, permission)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate permissions: %w", err)
	}
	return permissions, nil
}

// AssignRole links a role to a customer. Assigning twice is a no-op.
func (s *Store) AssignRole(ctx context.Context, customerID, roleID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(customerID) == "" || strings.TrimSpace(roleID) == "" {
		return fmt.Errorf("customer id and role id are required")
	}

	_, err := s.sqlDB.ExecContext(ctx, `
		INSERT INTO customer_roles (customer_id, role_id)
		VALUES (?, ?)
		ON CONFLICT(customer_id, role_id) DO NOTHING
	`, customerID, roleID)
	if err != nil {
		return fmt.Errorf("assign role: %w", err)
	}
	return nil
}

// RemoveRole unlinks a role from a customer. Removing an absent assignment
// is a no-op.
func (s *Store) RemoveRole(ctx context.Context, customerID, roleID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(customerID) == "" || strings.TrimSpace(roleID) == "" {
		return fmt.Errorf("customer id and role id are required")
	}

	_, err := s.sqlDB.ExecContext(ctx, `
		DELETE FROM customer_roles
		WHERE customer_id = ? AND role_id = ?
	`, customerID, roleID)
	if err != nil {
		return fmt.Errorf("remove role: %w", err)
	}
	return nil
}

// ListCustomerRoles returns the roles assigned to a customer ordered by name.
func (s *Store) ListCustomerRoles(ctx context.Context, customerID string) ([]storage.Role, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(customerID) == "" {
		return nil, fmt.Errorf("customer id is required")
	}

	rows, err := s.sqlDB.QueryContext(ctx, `
		SELECT r.id, r.name, r.system_name, r.active, r.is_system, r.created_at, r.updated_at
		FROM roles r
		JOIN customer_roles cr ON cr.role_id = r.id
		WHERE cr.customer_id = ?
		ORDER BY r.name ASC
	`, customerID)
	if err != nil {
		return nil, fmt.Errorf("list customer roles: %w", err)
	}
	defer rows.Close()

	var roles []storage.Role
	for rows.Next() {
		role, err := scanRole(rows)
		if err != nil {
			return nil, fmt.Errorf("scan role: %w", err)
		}
		roles = append(roles, role)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate roles: %w", err)
	}
	return roles, nil
}

var _ storage.Store = (*Store)(nil)
