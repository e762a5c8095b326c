// Package access manages roles, the permission catalog, role grants and
// customer role assignments. Authorization reads are cached and never fail
// open: any doubt answers false.
package access

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/louisbranch/storefront/internal/platform/cache"
	apperrors "github.com/louisbranch/storefront/internal/platform/errors"
	"github.com/louisbranch/storefront/internal/platform/events"
	"github.com/louisbranch/storefront/internal/platform/id"
	"github.com/louisbranch/storefront/internal/services/access/storage"
)

const cachePrefix = "access:"

const defaultCacheTTL = 5 * time.Minute

// CustomerDirectory reports whether a customer exists. The customers service
// implements it; access never reaches into customer storage directly.
type CustomerDirectory interface {
	CustomerExists(ctx context.Context, customerID string) (bool, error)
}

type accessStore interface {
	storage.RoleStore
	storage.PermissionStore
	storage.GrantStore
	storage.AssignmentStore
}

// RoleInput carries the caller-provided fields of a role.
type RoleInput struct {
	Name       string
	SystemName string
	Active     bool
}

// Service implements access control operations over a storage backend.
type Service struct {
	store     accessStore
	customers CustomerDirectory
	cache     cache.Cache
	bus       *events.Bus
	clock     func() time.Time

	cacheTTL time.Duration
}

// NewService wires an access service. The customer directory, cache and bus
// may each be nil: without a directory assignments skip the existence check,
// without a cache reads hit storage, without a bus events are dropped.
func NewService(store accessStore, customers CustomerDirectory, cacheStore cache.Cache, bus *events.Bus) *Service {
	return &Service{
		store:     store,
		customers: customers,
		cache:     cacheStore,
		bus:       bus,
		clock:     time.Now,
		cacheTTL:  defaultCacheTTL,
	}
}

// SetCacheTTL overrides how long cached access reads live. Non-positive
// values are ignored.
func (s *Service) SetCacheTTL(ttl time.Duration) {
	if s == nil || ttl <= 0 {
		return
	}
	s.cacheTTL = ttl
}

// CreateRole validates and stores a new role.
func (s *Service) CreateRole(ctx context.Context, input RoleInput) (storage.Role, error) {
	if s == nil || s.store == nil {
		return storage.Role{}, fmt.Errorf("access service is not configured")
	}
	role, err := normalizeRole(input)
	if err != nil {
		return storage.Role{}, err
	}
	if err := s.checkSystemNameFree(ctx, role.SystemName, ""); err != nil {
		return storage.Role{}, err
	}

	roleID, err := id.NewID()
	if err != nil {
		return storage.Role{}, fmt.Errorf("new role id: %w", err)
	}
	now := s.clock().UTC()
	role.ID = roleID
	role.CreatedAt = now
	role.UpdatedAt = now

	if err := s.store.PutRole(ctx, role); err != nil {
		return storage.Role{}, fmt.Errorf("store role: %w", err)
	}
	s.invalidate(ctx)
	s.publishRole(ctx, events.RoleCreated, role)
	return role, nil
}

// UpdateRole validates and stores changes to a role. A system role keeps its
// system name.
func (s *Service) UpdateRole(ctx context.Context, roleID string, input RoleInput) (storage.Role, error) {
	if s == nil || s.store == nil {
		return storage.Role{}, fmt.Errorf("access service is not configured")
	}
	existing, err := s.store.GetRole(ctx, roleID)
	if err != nil {
		return storage.Role{}, s.wrapLookup(err, "load role")
	}
	role, err := normalizeRole(input)
	if err != nil {
		return storage.Role{}, err
	}
	if existing.IsSystem && role.SystemName != existing.SystemName {
		return storage.Role{}, apperrors.New(apperrors.CodeRoleSystemImmutable,
			"system roles cannot change their system name")
	}
	if err := s.checkSystemNameFree(ctx, role.SystemName, existing.ID); err != nil {
		return storage.Role{}, err
	}

	role.ID = existing.ID
	role.IsSystem = existing.IsSystem
	role.CreatedAt = existing.CreatedAt
	role.UpdatedAt = s.clock().UTC()

	if err := s.store.PutRole(ctx, role); err != nil {
		return storage.Role{}, fmt.Errorf("store role: %w", err)
	}
	s.invalidate(ctx)
	s.publishRole(ctx, events.RoleUpdated, role)
	return role, nil
}

// DeleteRole removes a role and everything granted or assigned through it.
// System roles cannot be deleted.
func (s *Service) DeleteRole(ctx context.Context, roleID string) error {
	if s == nil || s.store == nil {
		return fmt.Errorf("access service is not configured")
	}
	existing, err := s.store.GetRole(ctx, roleID)
	if err != nil {
		return s.wrapLookup(err, "load role")
	}
	if existing.IsSystem {
		return apperrors.New(apperrors.CodeRoleSystemImmutable,
			"system roles cannot be deleted")
	}
	if err := s.store.DeleteRole(ctx, roleID); err != nil {
		return s.wrapLookup(err, "delete role")
	}
	s.invalidate(ctx)
	s.publishRole(ctx, events.RoleDeleted, existing)
	return nil
}

// GetRole returns a role by ID.
func (s *Service) GetRole(ctx context.Context, roleID string) (storage.Role, error) {
	if s == nil || s.store == nil {
		return storage.Role{}, fmt.Errorf("access service is not configured")
	}
	role, err := s.store.GetRole(ctx, roleID)
	if err != nil {
		return storage.Role{}, s.wrapLookup(err, "load role")
	}
	return role, nil
}

// GetRoleBySystemName returns a role by its unique system name.
func (s *Service) GetRoleBySystemName(ctx context.Context, systemName string) (storage.Role, error) {
	if s == nil || s.store == nil {
		return storage.Role{}, fmt.Errorf("access service is not configured")
	}
	role, err := s.store.GetRoleBySystemName(ctx, normalizeSystemName(systemName))
	if err != nil {
		return storage.Role{}, s.wrapLookup(err, "load role")
	}
	return role, nil
}

// ListRoles returns roles ordered by name, cached.
func (s *Service) ListRoles(ctx context.Context, activeOnly bool) ([]storage.Role, error) {
	if s == nil || s.store == nil {
		return nil, fmt.Errorf("access service is not configured")
	}
	key := cachePrefix + "roles:all"
	if activeOnly {
		key = cachePrefix + "roles:active"
	}
	return cache.GetOrLoad(ctx, s.cache, key, s.cacheTTL, func(ctx context.Context) ([]storage.Role, error) {
		return s.store.ListRoles(ctx, activeOnly)
	})
}

// InstallPermissions upserts the permission catalog. Existing entries keep
// their IDs so grants survive reinstallation.
func (s *Service) InstallPermissions(ctx context.Context, seeds []PermissionSeed) error {
	if s == nil || s.store == nil {
		return fmt.Errorf("access service is not configured")
	}
	for _, seed := range seeds {
		systemName := normalizeSystemName(seed.SystemName)
		if systemName == "" {
			return apperrors.New(apperrors.CodePermissionNameEmpty, "permission system name is required")
		}

		permission, err := s.store.GetPermissionBySystemName(ctx, systemName)
		if errors.Is(err, storage.ErrNotFound) {
			permissionID, idErr := id.NewID()
			if idErr != nil {
				return fmt.Errorf("new permission id: %w", idErr)
			}
			permission = storage.Permission{ID: permissionID, SystemName: systemName}
		} else if err != nil {
			return fmt.Errorf("load permission %s: %w", systemName, err)
		}

		permission.Name = seed.Name
		permission.Category = seed.Category
		if err := s.store.PutPermission(ctx, permission); err != nil {
			return fmt.Errorf("store permission %s: %w", systemName, err)
		}
	}
	s.invalidate(ctx)
	return nil
}

// ListPermissions returns the permission catalog, cached.
func (s *Service) ListPermissions(ctx context.Context) ([]storage.Permission, error) {
	if s == nil || s.store == nil {
		return nil, fmt.Errorf("access service is not configured")
	}
	return cache.GetOrLoad(ctx, s.cache, cachePrefix+"permissions:all", s.cacheTTL, func(ctx context.Context) ([]storage.Permission, error) {
		return s.store.ListPermissions(ctx)
	})
}

// Grant links a permission to a role by the permission's system name.
func (s *Service) Grant(ctx context.Context, roleID, permissionSystemName string) error {
	return s.changeGrant(ctx, roleID, permissionSystemName, true)
}

// Revoke unlinks a permission from a role by the permission's system name.
func (s *Service) Revoke(ctx context.Context, roleID, permissionSystemName string) error {
	return s.changeGrant(ctx, roleID, permissionSystemName, false)
}

func (s *Service) changeGrant(ctx context.Context, roleID, permissionSystemName string, grant bool) error {
	if s == nil || s.store == nil {
		return fmt.Errorf("access service is not configured")
	}
	role, err := s.store.GetRole(ctx, roleID)
	if err != nil {
		return s.wrapLookup(err, "load role")
	}
	permission, err := s.lookupPermission(ctx, permissionSystemName)
	if err != nil {
		return err
	}

	if grant {
		err = s.store.GrantPermission(ctx, role.ID, permission.ID)
	} else {
		err = s.store.RevokePermission(ctx, role.ID, permission.ID)
	}
	if err != nil {
		return fmt.Errorf("change grant: %w", err)
	}
	s.invalidate(ctx)
	s.publishRole(ctx, events.RolePermissionsUpdated, role)
	return nil
}

// PermissionsOf returns the permissions granted to a role, cached.
func (s *Service) PermissionsOf(ctx context.Context, roleID string) ([]storage.Permission, error) {
	if s == nil || s.store == nil {
		return nil, fmt.Errorf("access service is not configured")
	}
	return cache.GetOrLoad(ctx, s.cache, cachePrefix+"role:perms:"+roleID, s.cacheTTL, func(ctx context.Context) ([]storage.Permission, error) {
		return s.store.ListRolePermissions(ctx, roleID)
	})
}

// AssignRole links a role to a customer. The role must exist and, when a
// customer directory is wired, so must the customer.
func (s *Service) AssignRole(ctx context.Context, customerID, roleID string) error {
	return s.changeAssignment(ctx, customerID, roleID, true)
}

// RemoveRole unlinks a role from a customer.
func (s *Service) RemoveRole(ctx context.Context, customerID, roleID string) error {
	return s.changeAssignment(ctx, customerID, roleID, false)
}

func (s *Service) changeAssignment(ctx context.Context, customerID, roleID string, assign bool) error {
	if s == nil || s.store == nil {
		return fmt.Errorf("access service is not configured")
	}
	customerID = strings.TrimSpace(customerID)
	if customerID == "" {
		return apperrors.WithMetadata(apperrors.CodeAssignmentSubjectGone,
			"customer does not exist", map[string]string{"customer_id": customerID})
	}

	if _, err := s.store.GetRole(ctx, roleID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return apperrors.WithMetadata(apperrors.CodeAssignmentRoleMissing,
				fmt.Sprintf("role %s does not exist", roleID),
				map[string]string{"role_id": roleID})
		}
		return fmt.Errorf("load role: %w", err)
	}

	if assign && s.customers != nil {
		exists, err := s.customers.CustomerExists(ctx, customerID)
		if err != nil {
			return fmt.Errorf("check customer: %w", err)
		}
		if !exists {
			return apperrors.WithMetadata(apperrors.CodeAssignmentSubjectGone,
				fmt.Sprintf("customer %s does not exist", customerID),
				map[string]string{"customer_id": customerID})
		}
	}

	var err error
	if assign {
		err = s.store.AssignRole(ctx, customerID, roleID)
	} else {
		err = s.store.RemoveRole(ctx, customerID, roleID)
	}
	if err != nil {
		return fmt.Errorf("change assignment: %w", err)
	}
	s.invalidate(ctx)
	s.publishCustomerRoles(ctx, customerID)
	return nil
}

// RolesOf returns the roles assigned to a customer, cached.
func (s *Service) RolesOf(ctx context.Context, customerID string) ([]storage.Role, error) {
	if s == nil || s.store == nil {
		return nil, fmt.Errorf("access service is not configured")
	}
	return cache.GetOrLoad(ctx, s.cache, cachePrefix+"customer:roles:"+customerID, s.cacheTTL, func(ctx context.Context) ([]storage.Role, error) {
		return s.store.ListCustomerRoles(ctx, customerID)
	})
}

// Authorize reports whether any active role assigned to the customer holds
// the permission. It never returns an error: unknown permissions, unknown
// customers and storage trouble all answer false.
func (s *Service) Authorize(ctx context.Context, permissionSystemName, customerID string) bool {
	if s == nil || s.store == nil {
		return false
	}
	permissionSystemName = normalizeSystemName(permissionSystemName)
	customerID = strings.TrimSpace(customerID)
	if permissionSystemName == "" || customerID == "" {
		return false
	}

	roles, err := s.RolesOf(ctx, customerID)
	if err != nil {
		log.Printf("access: authorize roles of %s: %v", customerID, err)
		return false
	}
	for _, role := range roles {
		if !role.Active {
			continue
		}
		permissions, err := s.PermissionsOf(ctx, role.ID)
		if err != nil {
			log.Printf("access: authorize permissions of role %s: %v", role.SystemName, err)
			return false
		}
		for _, permission := range permissions {
			if permission.SystemName == permissionSystemName {
				return true
			}
		}
	}
	return false
}

// EnsureRole creates a built-in role if missing and tops up its grants. An
// existing role keeps its name, active flag and extra grants; only the
// seeded permissions are (re)applied. No events are published: this is
// infrastructure, not an admin action.
func (s *Service) EnsureRole(ctx context.Context, seed RoleSeed) (storage.Role, error) {
	if s == nil || s.store == nil {
		return storage.Role{}, fmt.Errorf("access service is not configured")
	}
	systemName := normalizeSystemName(seed.SystemName)
	if systemName == "" {
		return storage.Role{}, apperrors.New(apperrors.CodeRoleSystemNameEmpty, "role system name is required")
	}

	role, err := s.store.GetRoleBySystemName(ctx, systemName)
	if errors.Is(err, storage.ErrNotFound) {
		roleID, idErr := id.NewID()
		if idErr != nil {
			return storage.Role{}, fmt.Errorf("new role id: %w", idErr)
		}
		now := s.clock().UTC()
		role = storage.Role{
			ID:         roleID,
			Name:       seed.Name,
			SystemName: systemName,
			Active:     true,
			IsSystem:   true,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if err := s.store.PutRole(ctx, role); err != nil {
			return storage.Role{}, fmt.Errorf("store role: %w", err)
		}
	} else if err != nil {
		return storage.Role{}, fmt.Errorf("load role %s: %w", systemName, err)
	}

	for _, permissionSystemName := range seed.Permissions {
		permission, err := s.lookupPermission(ctx, permissionSystemName)
		if err != nil {
			return storage.Role{}, err
		}
		if err := s.store.GrantPermission(ctx, role.ID, permission.ID); err != nil {
			return storage.Role{}, fmt.Errorf("grant %s: %w", permissionSystemName, err)
		}
	}
	s.invalidate(ctx)
	return role, nil
}

func (s *Service) lookupPermission(ctx context.Context, systemName string) (storage.Permission, error) {
	systemName = normalizeSystemName(systemName)
	permission, err := s.store.GetPermissionBySystemName(ctx, systemName)
	if errors.Is(err, storage.ErrNotFound) {
		return storage.Permission{}, apperrors.WithMetadata(apperrors.CodePermissionUnknown,
			fmt.Sprintf("permission %s is not registered", systemName),
			map[string]string{"system_name": systemName})
	}
	if err != nil {
		return storage.Permission{}, fmt.Errorf("load permission: %w", err)
	}
	return permission, nil
}

func (s *Service) invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeletePrefix(ctx, cachePrefix); err != nil {
		log.Printf("access: invalidate cache: %v", err)
	}
}

func (s *Service) publishRole(ctx context.Context, eventType string, role storage.Role) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(ctx, eventType, events.RoleEvent{
		RoleID:     role.ID,
		SystemName: role.SystemName,
	})
}

func (s *Service) publishCustomerRoles(ctx context.Context, customerID string) {
	if s.bus == nil {
		return
	}
	roles, err := s.store.ListCustomerRoles(ctx, customerID)
	if err != nil {
		log.Printf("access: list roles for event: %v", err)
	}
	roleIDs := make([]string, 0, len(roles))
	for _, role := range roles {
		roleIDs = append(roleIDs, role.ID)
	}
	s.bus.Publish(ctx, events.CustomerRolesUpdated, events.CustomerRolesEvent{
		CustomerID: customerID,
		RoleIDs:    roleIDs,
	})
}

func (s *Service) wrapLookup(err error, op string) error {
	if errors.Is(err, storage.ErrNotFound) {
		return apperrors.Wrap(apperrors.CodeNotFound, "role not found", err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func normalizeRole(input RoleInput) (storage.Role, error) {
	role := storage.Role{
		Name:       strings.TrimSpace(input.Name),
		SystemName: normalizeSystemName(input.SystemName),
		Active:     input.Active,
	}
	if role.Name == "" {
		return storage.Role{}, apperrors.New(apperrors.CodeRoleNameEmpty, "role name is required")
	}
	if role.SystemName == "" {
		return storage.Role{}, apperrors.New(apperrors.CodeRoleSystemNameEmpty, "role system name is required")
	}
	return role, nil
}

func (s *Service) checkSystemNameFree(ctx context.Context, systemName string, allowID string) error {
	existing, err := s.store.GetRoleBySystemName(ctx, systemName)
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("check role system name: %w", err)
	}
	if existing.ID == allowID {
		return nil
	}
	return apperrors.WithMetadata(apperrors.CodeRoleSystemNameTaken,
		fmt.Sprintf("a role with system name %s already exists", systemName),
		map[string]string{"system_name": systemName})
}

func normalizeSystemName(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}
