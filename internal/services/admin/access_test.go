package admin

import (
	"context"
	"net/http"
	"testing"

	apperrors "github.com/louisbranch/storefront/internal/platform/errors"
	"github.com/louisbranch/storefront/internal/services/access"
)

func TestAccessRoleLifecycle(t *testing.T) {
	service := newAccessService(t, nil)
	handler := NewAccessHandler(service, allowAll{}).Routes()

	rec := doJSON(t, handler, http.MethodPost, "/v1/access/roles", roleRequest{
		Name:       "Catalog editors",
		SystemName: "catalog-editors",
		Active:     true,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create role status = %d, want %d (%s)", rec.Code, http.StatusCreated, rec.Body.String())
	}
	var created roleView
	decodeBody(t, rec, &created)
	if created.ID == "" || created.IsSystem {
		t.Fatalf("created role = %+v, want a non-system role with an id", created)
	}

	rec = doJSON(t, handler, http.MethodGet, "/v1/access/roles", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list roles status = %d, want %d", rec.Code, http.StatusOK)
	}
	var listed struct {
		Roles []roleView `json:"roles"`
	}
	decodeBody(t, rec, &listed)
	if len(listed.Roles) != 1 || listed.Roles[0].ID != created.ID {
		t.Fatalf("roles = %+v, want the created role", listed.Roles)
	}

	rec = doJSON(t, handler, http.MethodPut, "/v1/access/roles/"+created.ID, roleRequest{
		Name:       "Catalog editors",
		SystemName: "catalog-editors",
		Active:     false,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("update role status = %d, want %d (%s)", rec.Code, http.StatusOK, rec.Body.String())
	}
	var updated roleView
	decodeBody(t, rec, &updated)
	if updated.Active {
		t.Fatal("role is still active after update")
	}

	rec = doJSON(t, handler, http.MethodDelete, "/v1/access/roles/"+created.ID, nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete role status = %d, want %d", rec.Code, http.StatusNoContent)
	}
	rec = doJSON(t, handler, http.MethodGet, "/v1/access/roles/"+created.ID, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("get deleted role status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestAccessSystemRolesAreImmutable(t *testing.T) {
	service := newAccessService(t, nil)
	ctx := context.Background()
	if err := service.InstallPermissions(ctx, access.BuiltinPermissions()); err != nil {
		t.Fatalf("install permissions: %v", err)
	}
	admins, err := service.EnsureRole(ctx, access.RoleSeed{
		SystemName:  access.RoleAdministrators,
		Name:        "Administrators",
		Permissions: []string{access.PermissionManageAccess},
	})
	if err != nil {
		t.Fatalf("ensure role: %v", err)
	}
	handler := NewAccessHandler(service, allowAll{}).Routes()

	rec := doJSON(t, handler, http.MethodDelete, "/v1/access/roles/"+admins.ID, nil)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("delete system role status = %d, want %d (%s)", rec.Code, http.StatusUnprocessableEntity, rec.Body.String())
	}
	envelope := decodeEnvelope(t, rec)
	if envelope.Error.Code != string(apperrors.CodeRoleSystemImmutable) {
		t.Fatalf("code = %q, want %q", envelope.Error.Code, apperrors.CodeRoleSystemImmutable)
	}
}

func TestAccessGrantAndRevokePermissions(t *testing.T) {
	service := newAccessService(t, nil)
	ctx := context.Background()
	if err := service.InstallPermissions(ctx, access.BuiltinPermissions()); err != nil {
		t.Fatalf("install permissions: %v", err)
	}
	handler := NewAccessHandler(service, allowAll{}).Routes()

	rec := doJSON(t, handler, http.MethodPost, "/v1/access/roles", roleRequest{
		Name:       "Task runners",
		SystemName: "task-runners",
		Active:     true,
	})
	var role roleView
	decodeBody(t, rec, &role)

	rec = doJSON(t, handler, http.MethodGet, "/v1/access/permissions", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list permissions status = %d, want %d", rec.Code, http.StatusOK)
	}
	var catalog struct {
		Permissions []permissionView `json:"permissions"`
	}
	decodeBody(t, rec, &catalog)
	if len(catalog.Permissions) != len(access.BuiltinPermissions()) {
		t.Fatalf("permission catalog has %d entries, want %d", len(catalog.Permissions), len(access.BuiltinPermissions()))
	}

	rec = doJSON(t, handler, http.MethodPost, "/v1/access/roles/"+role.ID+"/permissions", grantRequest{
		Permission: access.PermissionRunTasks,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("grant status = %d, want %d (%s)", rec.Code, http.StatusOK, rec.Body.String())
	}
	var granted struct {
		Permissions []permissionView `json:"permissions"`
	}
	decodeBody(t, rec, &granted)
	if len(granted.Permissions) != 1 || granted.Permissions[0].SystemName != access.PermissionRunTasks {
		t.Fatalf("granted permissions = %+v, want only %s", granted.Permissions, access.PermissionRunTasks)
	}

	rec = doJSON(t, handler, http.MethodPost, "/v1/access/roles/"+role.ID+"/permissions", grantRequest{
		Permission: "no.such.permission",
	})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("grant unknown status = %d, want %d (%s)", rec.Code, http.StatusNotFound, rec.Body.String())
	}
	envelope := decodeEnvelope(t, rec)
	if envelope.Error.Code != string(apperrors.CodePermissionUnknown) {
		t.Fatalf("code = %q, want %q", envelope.Error.Code, apperrors.CodePermissionUnknown)
	}

	rec = doJSON(t, handler, http.MethodDelete, "/v1/access/roles/"+role.ID+"/permissions/"+access.PermissionRunTasks, nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("revoke status = %d, want %d (%s)", rec.Code, http.StatusNoContent, rec.Body.String())
	}
	rec = doJSON(t, handler, http.MethodGet, "/v1/access/roles/"+role.ID+"/permissions", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("permissions of role status = %d, want %d", rec.Code, http.StatusOK)
	}
	var after struct {
		Permissions []permissionView `json:"permissions"`
	}
	decodeBody(t, rec, &after)
	if len(after.Permissions) != 0 {
		t.Fatalf("permissions after revoke = %+v, want none", after.Permissions)
	}
}

func TestAccessRoutesRequireManagePermission(t *testing.T) {
	handler := NewAccessHandler(newAccessService(t, nil), grantSet{access.PermissionRunTasks: true}).Routes()

	rec := doJSON(t, handler, http.MethodGet, "/v1/access/roles", nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusForbidden)
	}
}
