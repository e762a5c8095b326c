package admin

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/louisbranch/storefront/internal/services/access"
	"github.com/louisbranch/storefront/internal/services/admin/routepath"
	"github.com/louisbranch/storefront/internal/services/customers"
	"github.com/louisbranch/storefront/internal/services/customers/storage"
)

// CustomersHandler serves customer management routes, including role
// assignments, which live in the access service.
type CustomersHandler struct {
	service       *customers.Service
	accessService *access.Service
	authz         Authorizer
}

// NewCustomersHandler creates the customer route handler.
func NewCustomersHandler(service *customers.Service, accessService *access.Service, authz Authorizer) *CustomersHandler {
	return &CustomersHandler{service: service, accessService: accessService, authz: authz}
}

// customerReadPermissions admits anyone who can view or manage customers.
var customerReadPermissions = []string{access.PermissionReadCustomers, access.PermissionManageCustomers}

// Routes builds the customer route surface.
func (h *CustomersHandler) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(routepath.Customers, h.handleCustomers)
	mux.HandleFunc(routepath.CustomersLookup, h.handleLookup)
	mux.HandleFunc(routepath.CustomersPrefix, h.handleCustomerPath)
	return mux
}

type customerRequest struct {
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
	Active      bool   `json:"active"`
}

type customerView struct {
	ID             string     `json:"id"`
	Email          string     `json:"email"`
	DisplayName    string     `json:"display_name"`
	Active         bool       `json:"active"`
	IsSystem       bool       `json:"is_system"`
	LastActivityAt *time.Time `json:"last_activity_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

type assignRoleRequest struct {
	RoleID string `json:"role_id"`
}

func toCustomerView(customer storage.Customer) customerView {
	return customerView{
		ID:             customer.ID,
		Email:          customer.Email,
		DisplayName:    customer.DisplayName,
		Active:         customer.Active,
		IsSystem:       customer.IsSystem,
		LastActivityAt: timeOrNil(customer.LastActivityAt),
		CreatedAt:      customer.CreatedAt,
		UpdatedAt:      customer.UpdatedAt,
	}
}

func (r customerRequest) toInput() customers.CustomerInput {
	return customers.CustomerInput{
		Email:       r.Email,
		DisplayName: r.DisplayName,
		Active:      r.Active,
	}
}

func (h *CustomersHandler) handleCustomers(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		requireAnyPermission(h.authz, customerReadPermissions, h.listCustomers)(w, r)
	case http.MethodPost:
		requirePermission(h.authz, access.PermissionManageCustomers, h.createCustomer)(w, r)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (h *CustomersHandler) listCustomers(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	pageSize, _ := strconv.Atoi(query.Get("page_size"))
	result, err := h.service.List(r.Context(), pageSize, query.Get("page_token"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	views := make([]customerView, 0, len(result.Customers))
	for _, customer := range result.Customers {
		views = append(views, toCustomerView(customer))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"customers":       views,
		"next_page_token": result.NextPageToken,
	})
}

func (h *CustomersHandler) createCustomer(w http.ResponseWriter, r *http.Request) {
	var req customerRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	customer, err := h.service.Create(r.Context(), req.toInput())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toCustomerView(customer))
}

func (h *CustomersHandler) handleLookup(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	requireAnyPermission(h.authz, customerReadPermissions, func(w http.ResponseWriter, r *http.Request) {
		customer, err := h.service.GetByEmail(r.Context(), r.URL.Query().Get("email"))
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, toCustomerView(customer))
	})(w, r)
}

func (h *CustomersHandler) handleCustomerPath(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, routepath.CustomersPrefix)
	parts := splitPathParts(path)
	switch {
	case len(parts) == 1:
		h.handleCustomer(w, r, parts[0])
	case len(parts) == 2 && parts[1] == "deactivate":
		h.deactivateCustomer(w, r, parts[0])
	case len(parts) == 2 && parts[1] == "roles":
		h.handleCustomerRoles(w, r, parts[0])
	case len(parts) == 3 && parts[1] == "roles":
		h.handleCustomerRole(w, r, parts[0], parts[2])
	default:
		notFound(w, r)
	}
}

func (h *CustomersHandler) handleCustomer(w http.ResponseWriter, r *http.Request, customerID string) {
	switch r.Method {
	case http.MethodGet:
		requireAnyPermission(h.authz, customerReadPermissions, func(w http.ResponseWriter, r *http.Request) {
			customer, err := h.service.GetByID(r.Context(), customerID)
			if err != nil {
				writeError(w, r, err)
				return
			}
			writeJSON(w, http.StatusOK, toCustomerView(customer))
		})(w, r)
	case http.MethodPut:
		requirePermission(h.authz, access.PermissionManageCustomers, func(w http.ResponseWriter, r *http.Request) {
			var req customerRequest
			if err := decodeJSON(r, &req); err != nil {
				writeError(w, r, err)
				return
			}
			customer, err := h.service.Update(r.Context(), customerID, req.toInput())
			if err != nil {
				writeError(w, r, err)
				return
			}
			writeJSON(w, http.StatusOK, toCustomerView(customer))
		})(w, r)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPut)
	}
}

func (h *CustomersHandler) deactivateCustomer(w http.ResponseWriter, r *http.Request, customerID string) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	requirePermission(h.authz, access.PermissionManageCustomers, func(w http.ResponseWriter, r *http.Request) {
		customer, err := h.service.Deactivate(r.Context(), customerID)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, toCustomerView(customer))
	})(w, r)
}

func (h *CustomersHandler) handleCustomerRoles(w http.ResponseWriter, r *http.Request, customerID string) {
	switch r.Method {
	case http.MethodGet:
		requireAnyPermission(h.authz, customerReadPermissions, func(w http.ResponseWriter, r *http.Request) {
			roles, err := h.accessService.RolesOf(r.Context(), customerID)
			if err != nil {
				writeError(w, r, err)
				return
			}
			views := make([]roleView, 0, len(roles))
			for _, role := range roles {
				views = append(views, toRoleView(role))
			}
			writeJSON(w, http.StatusOK, map[string]any{"roles": views})
		})(w, r)
	case http.MethodPost:
		requirePermission(h.authz, access.PermissionManageAccess, func(w http.ResponseWriter, r *http.Request) {
			var req assignRoleRequest
			if err := decodeJSON(r, &req); err != nil {
				writeError(w, r, err)
				return
			}
			if err := h.accessService.AssignRole(r.Context(), customerID, req.RoleID); err != nil {
				writeError(w, r, err)
				return
			}
			roles, err := h.accessService.RolesOf(r.Context(), customerID)
			if err != nil {
				writeError(w, r, err)
				return
			}
			views := make([]roleView, 0, len(roles))
			for _, role := range roles {
				views = append(views, toRoleView(role))
			}
			writeJSON(w, http.StatusOK, map[string]any{"roles": views})
		})(w, r)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (h *CustomersHandler) handleCustomerRole(w http.ResponseWriter, r *http.Request, customerID, roleID string) {
	if r.Method != http.MethodDelete {
		methodNotAllowed(w, r, http.MethodDelete)
		return
	}
	requirePermission(h.authz, access.PermissionManageAccess, func(w http.ResponseWriter, r *http.Request) {
		if err := h.accessService.RemoveRole(r.Context(), customerID, roleID); err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusNoContent, nil)
	})(w, r)
}
