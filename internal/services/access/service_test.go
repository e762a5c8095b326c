package access

import (
	"context"
	"sort"
	"testing"

	"github.com/louisbranch/storefront/internal/platform/cache"
	apperrors "github.com/louisbranch/storefront/internal/platform/errors"
	"github.com/louisbranch/storefront/internal/platform/events"
	"github.com/louisbranch/storefront/internal/services/access/storage"
)

func newCaptureBus() (*events.Bus, *[]events.Event) {
	bus := events.NewBus()
	published := &[]events.Event{}
	bus.Subscribe("*", "capture", func(_ context.Context, event events.Event) error {
		*published = append(*published, event)
		return nil
	})
	return bus, published
}

func TestCreateRoleStoresAndPublishes(t *testing.T) {
	store := newFakeAccessStore()
	bus, published := newCaptureBus()
	svc := NewService(store, nil, nil, bus)

	role, err := svc.CreateRole(context.Background(), RoleInput{
		Name:       "  Catalog editors  ",
		SystemName: "  Catalog-Editors ",
		Active:     true,
	})
	if err != nil {
		t.Fatalf("create role: %v", err)
	}
	if len(role.ID) != 26 {
		t.Fatalf("id length = %d, want 26", len(role.ID))
	}
	if role.Name != "Catalog editors" {
		t.Fatalf("name = %q, want trimmed", role.Name)
	}
	if role.SystemName != "catalog-editors" {
		t.Fatalf("system name = %q, want lowercased", role.SystemName)
	}
	if role.IsSystem {
		t.Fatal("admin-created role marked as system")
	}

	if len(*published) != 1 || (*published)[0].Type != events.RoleCreated {
		t.Fatalf("published = %+v, want one role.created", *published)
	}
}

func TestCreateRoleValidation(t *testing.T) {
	svc := NewService(newFakeAccessStore(), nil, nil, nil)

	_, err := svc.CreateRole(context.Background(), RoleInput{SystemName: "editors"})
	if apperrors.CodeOf(err) != apperrors.CodeRoleNameEmpty {
		t.Fatalf("code = %v, want %v", apperrors.CodeOf(err), apperrors.CodeRoleNameEmpty)
	}
	_, err = svc.CreateRole(context.Background(), RoleInput{Name: "Editors"})
	if apperrors.CodeOf(err) != apperrors.CodeRoleSystemNameEmpty {
		t.Fatalf("code = %v, want %v", apperrors.CodeOf(err), apperrors.CodeRoleSystemNameEmpty)
	}

	if _, err := svc.CreateRole(context.Background(), RoleInput{Name: "Editors", SystemName: "editors"}); err != nil {
		t.Fatalf("first create: %v", err)
	}
	_, err = svc.CreateRole(context.Background(), RoleInput{Name: "Other", SystemName: "EDITORS"})
	if apperrors.CodeOf(err) != apperrors.CodeRoleSystemNameTaken {
		t.Fatalf("code = %v, want %v", apperrors.CodeOf(err), apperrors.CodeRoleSystemNameTaken)
	}
}

func TestSystemRoleGuards(t *testing.T) {
	store := newFakeAccessStore()
	svc := NewService(store, nil, nil, nil)

	admins, err := svc.EnsureRole(context.Background(), RoleSeed{SystemName: RoleAdministrators, Name: "Administrators"})
	if err != nil {
		t.Fatalf("ensure role: %v", err)
	}
	if !admins.IsSystem || !admins.Active {
		t.Fatalf("seeded role = %+v, want system and active", admins)
	}

	// Renaming the display name is fine, moving the system name is not.
	if _, err := svc.UpdateRole(context.Background(), admins.ID, RoleInput{
		Name:       "Platform admins",
		SystemName: RoleAdministrators,
		Active:     true,
	}); err != nil {
		t.Fatalf("rename: %v", err)
	}
	_, err = svc.UpdateRole(context.Background(), admins.ID, RoleInput{
		Name:       "Platform admins",
		SystemName: "root",
		Active:     true,
	})
	if apperrors.CodeOf(err) != apperrors.CodeRoleSystemImmutable {
		t.Fatalf("code = %v, want %v", apperrors.CodeOf(err), apperrors.CodeRoleSystemImmutable)
	}

	if err := svc.DeleteRole(context.Background(), admins.ID); apperrors.CodeOf(err) != apperrors.CodeRoleSystemImmutable {
		t.Fatalf("delete code = %v, want %v", apperrors.CodeOf(err), apperrors.CodeRoleSystemImmutable)
	}

	updated, err := svc.GetRole(context.Background(), admins.ID)
	if err != nil {
		t.Fatalf("get role: %v", err)
	}
	if !updated.IsSystem {
		t.Fatal("update dropped the system flag")
	}
}

func TestInstallPermissionsIdempotent(t *testing.T) {
	store := newFakeAccessStore()
	svc := NewService(store, nil, nil, nil)

	if err := svc.InstallPermissions(context.Background(), BuiltinPermissions()); err != nil {
		t.Fatalf("install: %v", err)
	}
	first, err := svc.ListPermissions(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(first) != len(BuiltinPermissions()) {
		t.Fatalf("len = %d, want %d", len(first), len(BuiltinPermissions()))
	}

	if err := svc.InstallPermissions(context.Background(), BuiltinPermissions()); err != nil {
		t.Fatalf("reinstall: %v", err)
	}
	second, err := svc.ListPermissions(context.Background())
	if err != nil {
		t.Fatalf("list again: %v", err)
	}
	if len(second) != len(first) {
		t.Fatalf("reinstall changed catalog size: %d -> %d", len(first), len(second))
	}

	// IDs survive reinstallation so existing grants stay valid.
	ids := map[string]string{}
	for _, permission := range first {
		ids[permission.SystemName] = permission.ID
	}
	for _, permission := range second {
		if ids[permission.SystemName] != permission.ID {
			t.Fatalf("permission %s changed id", permission.SystemName)
		}
	}
}

func TestGrantRevokeAndCaching(t *testing.T) {
	store := newFakeAccessStore()
	bus, published := newCaptureBus()
	svc := NewService(store, nil, cache.NewMemory(), bus)

	if err := svc.InstallPermissions(context.Background(), BuiltinPermissions()); err != nil {
		t.Fatalf("install: %v", err)
	}
	role, err := svc.CreateRole(context.Background(), RoleInput{Name: "Editors", SystemName: "editors", Active: true})
	if err != nil {
		t.Fatalf("create role: %v", err)
	}

	if err := svc.Grant(context.Background(), role.ID, "no.such.permission"); apperrors.CodeOf(err) != apperrors.CodePermissionUnknown {
		t.Fatalf("code = %v, want %v", apperrors.CodeOf(err), apperrors.CodePermissionUnknown)
	}

	*published = nil
	if err := svc.Grant(context.Background(), role.ID, PermissionReadActivity); err != nil {
		t.Fatalf("grant: %v", err)
	}
	if len(*published) != 1 || (*published)[0].Type != events.RolePermissionsUpdated {
		t.Fatalf("published = %+v, want one role.permissions.updated", *published)
	}

	first, err := svc.PermissionsOf(context.Background(), role.ID)
	if err != nil {
		t.Fatalf("permissions of: %v", err)
	}
	if len(first) != 1 || first[0].SystemName != PermissionReadActivity {
		t.Fatalf("permissions = %+v", first)
	}

	// A behind-the-back grant stays invisible while cached.
	manage, err := store.GetPermissionBySystemName(context.Background(), PermissionManageActivity)
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if err := store.GrantPermission(context.Background(), role.ID, manage.ID); err != nil {
		t.Fatalf("ghost grant: %v", err)
	}
	cached, err := svc.PermissionsOf(context.Background(), role.ID)
	if err != nil {
		t.Fatalf("permissions cached: %v", err)
	}
	if len(cached) != 1 {
		t.Fatalf("cached len = %d, want 1", len(cached))
	}

	if err := svc.Revoke(context.Background(), role.ID, PermissionReadActivity); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	fresh, err := svc.PermissionsOf(context.Background(), role.ID)
	if err != nil {
		t.Fatalf("permissions fresh: %v", err)
	}
	if len(fresh) != 1 || fresh[0].SystemName != PermissionManageActivity {
		t.Fatalf("fresh = %+v, want the ghost grant only", fresh)
	}
}

func TestAssignmentsCheckRoleAndCustomer(t *testing.T) {
	store := newFakeAccessStore()
	directory := &fakeCustomerDirectory{exists: map[string]bool{"cust-1": true}}
	bus, published := newCaptureBus()
	svc := NewService(store, directory, nil, bus)

	role, err := svc.CreateRole(context.Background(), RoleInput{Name: "Editors", SystemName: "editors", Active: true})
	if err != nil {
		t.Fatalf("create role: %v", err)
	}

	if err := svc.AssignRole(context.Background(), "cust-1", "missing-role"); apperrors.CodeOf(err) != apperrors.CodeAssignmentRoleMissing {
		t.Fatalf("code = %v, want %v", apperrors.CodeOf(err), apperrors.CodeAssignmentRoleMissing)
	}
	if err := svc.AssignRole(context.Background(), "nobody", role.ID); apperrors.CodeOf(err) != apperrors.CodeAssignmentSubjectGone {
		t.Fatalf("code = %v, want %v", apperrors.CodeOf(err), apperrors.CodeAssignmentSubjectGone)
	}

	*published = nil
	if err := svc.AssignRole(context.Background(), "cust-1", role.ID); err != nil {
		t.Fatalf("assign: %v", err)
	}
	if len(*published) != 1 {
		t.Fatalf("published = %d events, want 1", len(*published))
	}
	payload, ok := (*published)[0].Payload.(events.CustomerRolesEvent)
	if !ok || payload.CustomerID != "cust-1" || len(payload.RoleIDs) != 1 || payload.RoleIDs[0] != role.ID {
		t.Fatalf("payload = %+v", (*published)[0].Payload)
	}

	roles, err := svc.RolesOf(context.Background(), "cust-1")
	if err != nil {
		t.Fatalf("roles of: %v", err)
	}
	if len(roles) != 1 || roles[0].ID != role.ID {
		t.Fatalf("roles = %+v", roles)
	}

	if err := svc.RemoveRole(context.Background(), "cust-1", role.ID); err != nil {
		t.Fatalf("remove: %v", err)
	}
	roles, err = svc.RolesOf(context.Background(), "cust-1")
	if err != nil {
		t.Fatalf("roles after remove: %v", err)
	}
	if len(roles) != 0 {
		t.Fatalf("roles = %+v, want none", roles)
	}
}

func TestAuthorize(t *testing.T) {
	store := newFakeAccessStore()
	svc := NewService(store, nil, nil, nil)
	ctx := context.Background()

	if err := svc.InstallPermissions(ctx, BuiltinPermissions()); err != nil {
		t.Fatalf("install: %v", err)
	}
	for _, seed := range BuiltinRoles() {
		if _, err := svc.EnsureRole(ctx, seed); err != nil {
			t.Fatalf("ensure %s: %v", seed.SystemName, err)
		}
	}

	operators, err := svc.GetRoleBySystemName(ctx, RoleOperators)
	if err != nil {
		t.Fatalf("get operators: %v", err)
	}
	if err := svc.AssignRole(ctx, "cust-1", operators.ID); err != nil {
		t.Fatalf("assign: %v", err)
	}

	if !svc.Authorize(ctx, PermissionRunTasks, "cust-1") {
		t.Fatal("operator denied a granted permission")
	}
	if svc.Authorize(ctx, PermissionManageSettings, "cust-1") {
		t.Fatal("operator allowed an ungranted permission")
	}
	if svc.Authorize(ctx, "no.such.permission", "cust-1") {
		t.Fatal("unknown permission authorized")
	}
	if svc.Authorize(ctx, PermissionRunTasks, "stranger") {
		t.Fatal("unassigned customer authorized")
	}
	if svc.Authorize(ctx, PermissionRunTasks, "") {
		t.Fatal("blank customer authorized")
	}

	// An inactive role stops authorizing without losing its grants.
	if _, err := svc.UpdateRole(ctx, operators.ID, RoleInput{
		Name:       operators.Name,
		SystemName: operators.SystemName,
		Active:     false,
	}); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	if svc.Authorize(ctx, PermissionRunTasks, "cust-1") {
		t.Fatal("inactive role still authorizes")
	}
}

func TestEnsureRoleIdempotentAndPreservesCustomization(t *testing.T) {
	store := newFakeAccessStore()
	svc := NewService(store, nil, nil, nil)
	ctx := context.Background()

	if err := svc.InstallPermissions(ctx, BuiltinPermissions()); err != nil {
		t.Fatalf("install: %v", err)
	}
	seed := RoleSeed{SystemName: RoleOperators, Name: "Operators", Permissions: []string{PermissionRunTasks}}

	first, err := svc.EnsureRole(ctx, seed)
	if err != nil {
		t.Fatalf("ensure: %v", err)
	}

	if _, err := svc.UpdateRole(ctx, first.ID, RoleInput{
		Name:       "Shift operators",
		SystemName: RoleOperators,
		Active:     true,
	}); err != nil {
		t.Fatalf("customize: %v", err)
	}

	second, err := svc.EnsureRole(ctx, seed)
	if err != nil {
		t.Fatalf("ensure again: %v", err)
	}
	if second.ID != first.ID {
		t.Fatalf("role id changed: %q -> %q", first.ID, second.ID)
	}

	got, err := svc.GetRole(ctx, first.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Name != "Shift operators" {
		t.Fatalf("name = %q, want customization preserved", got.Name)
	}
}

type fakeCustomerDirectory struct {
	exists map[string]bool
}

func (d *fakeCustomerDirectory) CustomerExists(_ context.Context, customerID string) (bool, error) {
	return d.exists[customerID], nil
}

type fakeAccessStore struct {
	roles       map[string]storage.Role
	permissions map[string]storage.Permission
	grants      map[string]map[string]bool
	assignments map[string]map[string]bool
}

func newFakeAccessStore() *fakeAccessStore {
	return &fakeAccessStore{
		roles:       make(map[string]storage.Role),
		permissions: make(map[string]storage.Permission),
		grants:      make(map[string]map[string]bool),
		assignments: make(map[string]map[string]bool),
	}
}

func (s *fakeAccessStore) PutRole(_ context.Context, role storage.Role) error {
	if existing, ok := s.roles[role.ID]; ok {
		role.CreatedAt = existing.CreatedAt
	}
	s.roles[role.ID] = role
	return nil
}

func (s *fakeAccessStore) GetRole(_ context.Context, id string) (storage.Role, error) {
	role, ok := s.roles[id]
	if !ok {
		return storage.Role{}, storage.ErrNotFound
	}
	return role, nil
}

func (s *fakeAccessStore) GetRoleBySystemName(_ context.Context, systemName string) (storage.Role, error) {
	for _, role := range s.roles {
		if role.SystemName == systemName {
			return role, nil
		}
	}
	return storage.Role{}, storage.ErrNotFound
}

func (s *fakeAccessStore) ListRoles(_ context.Context, activeOnly bool) ([]storage.Role, error) {
	var roles []storage.Role
	for _, role := range s.roles {
		if activeOnly && !role.Active {
			continue
		}
		roles = append(roles, role)
	}
	sort.Slice(roles, func(i, j int) bool { return roles[i].Name < roles[j].Name })
	return roles, nil
}

func (s *fakeAccessStore) DeleteRole(_ context.Context, id string) error {
	if _, ok := s.roles[id]; !ok {
		return storage.ErrNotFound
	}
	delete(s.roles, id)
	delete(s.grants, id)
	for _, roleIDs := range s.assignments {
		delete(roleIDs, id)
	}
	return nil
}

func (s *fakeAccessStore) PutPermission(_ context.Context, permission storage.Permission) error {
	s.permissions[permission.ID] = permission
	return nil
}

func (s *fakeAccessStore) GetPermissionBySystemName(_ context.Context, systemName string) (storage.Permission, error) {
	for _, permission := range s.permissions {
		if permission.SystemName == systemName {
			return permission, nil
		}
	}
	return storage.Permission{}, storage.ErrNotFound
}

func (s *fakeAccessStore) ListPermissions(_ context.Context) ([]storage.Permission, error) {
	var permissions []storage.Permission
	for _, permission := range s.permissions {
		permissions = append(permissions, permission)
	}
	sort.Slice(permissions, func(i, j int) bool {
		if permissions[i].Category != permissions[j].Category {
			return permissions[i].Category < permissions[j].Category
		}
		return permissions[i].Name < permissions[j].Name
	})
	return permissions, nil
}

func (s *fakeAccessStore) GrantPermission(_ context.Context, roleID, permissionID string) error {
	if s.grants[roleID] == nil {
		s.grants[roleID] = make(map[string]bool)
	}
	s.grants[roleID][permissionID] = true
	return nil
}

func (s *fakeAccessStore) RevokePermission(_ context.Context, roleID, permissionID string) error {
	delete(s.grants[roleID], permissionID)
	return nil
}

func (s *fakeAccessStore) ListRolePermissions(_ context.Context, roleID string) ([]storage.Permission, error) {
	var permissions []storage.Permission
	for permissionID := range s.grants[roleID] {
		if permission, ok := s.permissions[permissionID]; ok {
			permissions = append(permissions, permission)
		}
	}
	sort.Slice(permissions, func(i, j int) bool { return permissions[i].SystemName < permissions[j].SystemName })
	return permissions, nil
}

func (s *fakeAccessStore) AssignRole(_ context.Context, customerID, roleID string) error {
	if s.assignments[customerID] == nil {
		s.assignments[customerID] = make(map[string]bool)
	}
	s.assignments[customerID][roleID] = true
	return nil
}

func (s *fakeAccessStore) RemoveRole(_ context.Context, customerID, roleID string) error {
	delete(s.assignments[customerID], roleID)
	return nil
}

func (s *fakeAccessStore) ListCustomerRoles(_ context.Context, customerID string) ([]storage.Role, error) {
	var roles []storage.Role
	for roleID := range s.assignments[customerID] {
		if role, ok := s.roles[roleID]; ok {
			roles = append(roles, role)
		}
	}
	sort.Slice(roles, func(i, j int) bool { return roles[i].Name < roles[j].Name })
	return roles, nil
}
