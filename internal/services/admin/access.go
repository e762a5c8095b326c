package admin

import (
	"net/http"
	"strings"
	"time"

	"github.com/louisbranch/storefront/internal/services/access"
	"github.com/louisbranch/storefront/internal/services/access/storage"
	"github.com/louisbranch/storefront/internal/services/admin/routepath"
)

// AccessHandler serves role and permission management routes.
type AccessHandler struct {
	service *access.Service
	authz   Authorizer
}

// NewAccessHandler creates the access route handler.
func NewAccessHandler(service *access.Service, authz Authorizer) *AccessHandler {
	return &AccessHandler{service: service, authz: authz}
}

// Routes builds the access route surface. Everything here requires the
// access management permission.
func (h *AccessHandler) Routes() http.Handler {
	mux := http.NewServeMux()
	manage := func(next http.HandlerFunc) http.HandlerFunc {
		return requirePermission(h.authz, access.PermissionManageAccess, next)
	}
	mux.HandleFunc(routepath.Roles, manage(h.handleRoles))
	mux.HandleFunc(routepath.RolesPrefix, manage(h.handleRolePath))
	mux.HandleFunc(routepath.Permissions, manage(h.handlePermissions))
	mux.HandleFunc(routepath.AccessPrefix, notFound)
	return mux
}

type roleRequest struct {
	Name       string `json:"name"`
	SystemName string `json:"system_name"`
	Active     bool   `json:"active"`
}

type roleView struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	SystemName string    `json:"system_name"`
	Active     bool      `json:"active"`
	IsSystem   bool      `json:"is_system"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type permissionView struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	SystemName string `json:"system_name"`
	Category   string `json:"category"`
}

type grantRequest struct {
	Permission string `json:"permission"`
}

func toRoleView(role storage.Role) roleView {
	return roleView{
		ID:         role.ID,
		Name:       role.Name,
		SystemName: role.SystemName,
		Active:     role.Active,
		IsSystem:   role.IsSystem,
		CreatedAt:  role.CreatedAt,
		UpdatedAt:  role.UpdatedAt,
	}
}

func toPermissionViews(permissions []storage.Permission) []permissionView {
	views := make([]permissionView, 0, len(permissions))
	for _, permission := range permissions {
		views = append(views, permissionView{
			ID:         permission.ID,
			Name:       permission.Name,
			SystemName: permission.SystemName,
			Category:   permission.Category,
		})
	}
	return views
}

func (h *AccessHandler) handleRoles(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		roles, err := h.service.ListRoles(r.Context(), boolQuery(r, "active"))
		if err != nil {
			writeError(w, r, err)
			return
		}
		views := make([]roleView, 0, len(roles))
		for _, role := range roles {
			views = append(views, toRoleView(role))
		}
		writeJSON(w, http.StatusOK, map[string]any{"roles": views})
	case http.MethodPost:
		var req roleRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, r, err)
			return
		}
		role, err := h.service.CreateRole(r.Context(), access.RoleInput{
			Name:       req.Name,
			SystemName: req.SystemName,
			Active:     req.Active,
		})
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, toRoleView(role))
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (h *AccessHandler) handleRolePath(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, routepath.RolesPrefix)
	parts := splitPathParts(path)
	switch {
	case len(parts) == 1:
		h.handleRole(w, r, parts[0])
	case len(parts) == 2 && parts[1] == "permissions":
		h.handleRolePermissions(w, r, parts[0])
	case len(parts) == 3 && parts[1] == "permissions":
		h.handleRolePermission(w, r, parts[0], parts[2])
	default:
		notFound(w, r)
	}
}

func (h *AccessHandler) handleRole(w http.ResponseWriter, r *http.Request, roleID string) {
	switch r.Method {
	case http.MethodGet:
		role, err := h.service.GetRole(r.Context(), roleID)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, toRoleView(role))
	case http.MethodPut:
		var req roleRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, r, err)
			return
		}
		role, err := h.service.UpdateRole(r.Context(), roleID, access.RoleInput{
			Name:       req.Name,
			SystemName: req.SystemName,
			Active:     req.Active,
		})
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, toRoleView(role))
	case http.MethodDelete:
		if err := h.service.DeleteRole(r.Context(), roleID); err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusNoContent, nil)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPut, http.MethodDelete)
	}
}

func (h *AccessHandler) handleRolePermissions(w http.ResponseWriter, r *http.Request, roleID string) {
	switch r.Method {
	case http.MethodGet:
		permissions, err := h.service.PermissionsOf(r.Context(), roleID)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"permissions": toPermissionViews(permissions)})
	case http.MethodPost:
		var req grantRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, r, err)
			return
		}
		if err := h.service.Grant(r.Context(), roleID, req.Permission); err != nil {
			writeError(w, r, err)
			return
		}
		permissions, err := h.service.PermissionsOf(r.Context(), roleID)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"permissions": toPermissionViews(permissions)})
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (h *AccessHandler) handleRolePermission(w http.ResponseWriter, r *http.Request, roleID, permissionSystemName string) {
	if r.Method != http.MethodDelete {
		methodNotAllowed(w, r, http.MethodDelete)
		return
	}
	if err := h.service.Revoke(r.Context(), roleID, permissionSystemName); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusNoContent, nil)
}

func (h *AccessHandler) handlePermissions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	permissions, err := h.service.ListPermissions(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"permissions": toPermissionViews(permissions)})
}
