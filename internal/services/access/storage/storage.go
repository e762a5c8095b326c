// Package storage defines persistence contracts for access control state:
// roles, permissions, role grants and customer role assignments.
package storage

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("record not found")

// Role groups permissions and is assigned to customers. System roles ship
// with the platform and keep their system name for the lifetime of the
// install.
type Role struct {
	ID         string
	Name       string
	SystemName string
	Active     bool
	IsSystem   bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Permission is one grantable capability, identified by its system name.
type Permission struct {
	ID         string
	Name       string
	SystemName string
	Category   string
}

// RoleStore persists roles.
type RoleStore interface {
	// PutRole inserts or replaces a role by ID.
	PutRole(ctx context.Context, role Role) error

	// GetRole returns a role by ID or ErrNotFound.
	GetRole(ctx context.Context, id string) (Role, error)

	// GetRoleBySystemName returns a role by its unique system name or
	// ErrNotFound.
	GetRoleBySystemName(ctx context.Context, systemName string) (Role, error)

	// ListRoles returns roles ordered by name. When activeOnly is set,
	// inactive roles are omitted.
	ListRoles(ctx context.Context, activeOnly bool) ([]Role, error)

	// DeleteRole removes a role and its grants and assignments, or returns
	// ErrNotFound.
	DeleteRole(ctx context.Context, id string) error
}

// PermissionStore persists the permission catalog.
type PermissionStore interface {
	// PutPermission inserts or replaces a permission by ID.
	PutPermission(ctx context.Context, permission Permission) error

	// GetPermissionBySystemName returns a permission by its unique system
	// name or ErrNotFound.
	GetPermissionBySystemName(ctx context.Context, systemName string) (Permission, error)

	// ListPermissions returns the catalog ordered by category then name.
	ListPermissions(ctx context.Context) ([]Permission, error)
}

// GrantStore persists which roles hold which permissions.
type GrantStore interface {
	// GrantPermission links a permission to a role. Granting twice is a
	// no-op.
	GrantPermission(ctx context.Context, roleID, permissionID string) error

	// RevokePermission unlinks a permission from a role. Revoking an absent
	// grant is a no-op.
	RevokePermission(ctx context.Context, roleID, permissionID string) error

	// ListRolePermissions returns the permissions granted to a role ordered
	// by system name.
	ListRolePermissions(ctx context.Context, roleID string) ([]Permission, error)
}

// AssignmentStore persists which customers hold which roles. Customer rows
// live in another service's database, so customer IDs are plain strings here.
type AssignmentStore interface {
	// AssignRole links a role to a customer. Assigning twice is a no-op.
	AssignRole(ctx context.Context, customerID, roleID string) error

	// RemoveRole unlinks a role from a customer. Removing an absent
	// assignment is a no-op.
	RemoveRole(ctx context.Context, customerID, roleID string) error

	// ListCustomerRoles returns the roles assigned to a customer ordered by
	// name.
	ListCustomerRoles(ctx context.Context, customerID string) ([]Role, error)
}

// Store is the full persistence surface of the access service.
type Store interface {
	RoleStore
	PermissionStore
	GrantStore
	AssignmentStore
	Close() error
}
