package admin

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/louisbranch/storefront/internal/services/access"
	"github.com/louisbranch/storefront/internal/services/activitylog"
	"github.com/louisbranch/storefront/internal/services/activitylog/storage"
	"github.com/louisbranch/storefront/internal/services/admin/routepath"
)

// ActivityHandler serves activity log routes: search, types, live stream.
type ActivityHandler struct {
	service *activitylog.Service
	hub     *activitylog.Hub
	authz   Authorizer
}

// NewActivityHandler creates the activity route handler. The hub may be nil
// when the live stream is not wired.
func NewActivityHandler(service *activitylog.Service, hub *activitylog.Hub, authz Authorizer) *ActivityHandler {
	return &ActivityHandler{service: service, hub: hub, authz: authz}
}

// Routes builds the activity route surface.
func (h *ActivityHandler) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(routepath.Activity, h.handleActivities)
	mux.HandleFunc(routepath.ActivityTypes, h.handleTypes)
	mux.HandleFunc(routepath.ActivityStream, h.handleStream)
	mux.HandleFunc(routepath.ActivityPrefix, h.handleActivityPath)
	return mux
}

type activityView struct {
	ID            string    `json:"id"`
	SystemKeyword string    `json:"system_keyword"`
	CustomerID    string    `json:"customer_id,omitempty"`
	Comment       string    `json:"comment"`
	EntityName    string    `json:"entity_name,omitempty"`
	EntityID      string    `json:"entity_id,omitempty"`
	IPAddress     string    `json:"ip_address,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

type activityTypeView struct {
	ID            string `json:"id"`
	SystemKeyword string `json:"system_keyword"`
	DisplayName   string `json:"display_name"`
	Enabled       bool   `json:"enabled"`
}

type activityTypeRequest struct {
	DisplayName string `json:"display_name"`
	Enabled     bool   `json:"enabled"`
}

func toActivityView(activity storage.Activity) activityView {
	return activityView{
		ID:            activity.ID,
		SystemKeyword: activity.SystemKeyword,
		CustomerID:    activity.CustomerID,
		Comment:       activity.Comment,
		EntityName:    activity.EntityName,
		EntityID:      activity.EntityID,
		IPAddress:     activity.IPAddress,
		CreatedAt:     activity.CreatedAt,
	}
}

func (h *ActivityHandler) handleActivities(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		requirePermission(h.authz, access.PermissionReadActivity, h.searchActivities)(w, r)
	case http.MethodDelete:
		requirePermission(h.authz, access.PermissionManageActivity, h.clearActivities)(w, r)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodDelete)
	}
}

func (h *ActivityHandler) searchActivities(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	pageSize, _ := strconv.Atoi(query.Get("page_size"))
	result, err := h.service.Search(r.Context(), activitylog.SearchInput{
		Filter:    query.Get("filter"),
		PageSize:  pageSize,
		PageToken: query.Get("page_token"),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	views := make([]activityView, 0, len(result.Activities))
	for _, activity := range result.Activities {
		views = append(views, toActivityView(activity))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"activities":      views,
		"next_page_token": result.NextPageToken,
	})
}

func (h *ActivityHandler) clearActivities(w http.ResponseWriter, r *http.Request) {
	deleted, err := h.service.Clear(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deleted": deleted})
}

func (h *ActivityHandler) handleTypes(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	requirePermission(h.authz, access.PermissionReadActivity, func(w http.ResponseWriter, r *http.Request) {
		types, err := h.service.ListTypes(r.Context())
		if err != nil {
			writeError(w, r, err)
			return
		}
		views := make([]activityTypeView, 0, len(types))
		for _, activityType := range types {
			views = append(views, activityTypeView{
				ID:            activityType.ID,
				SystemKeyword: activityType.SystemKeyword,
				DisplayName:   activityType.DisplayName,
				Enabled:       activityType.Enabled,
			})
		}
		writeJSON(w, http.StatusOK, map[string]any{"types": views})
	})(w, r)
}

func (h *ActivityHandler) handleActivityPath(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, routepath.ActivityPrefix)
	parts := splitPathParts(path)
	switch {
	case len(parts) == 2 && parts[0] == "types":
		h.handleType(w, r, parts[1])
	case len(parts) == 1:
		h.handleActivity(w, r, parts[0])
	default:
		notFound(w, r)
	}
}

func (h *ActivityHandler) handleType(w http.ResponseWriter, r *http.Request, typeID string) {
	if r.Method != http.MethodPut {
		methodNotAllowed(w, r, http.MethodPut)
		return
	}
	requirePermission(h.authz, access.PermissionManageActivity, func(w http.ResponseWriter, r *http.Request) {
		var req activityTypeRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, r, err)
			return
		}
		activityType, err := h.service.UpdateType(r.Context(), typeID, activitylog.TypeInput{
			DisplayName: req.DisplayName,
			Enabled:     req.Enabled,
		})
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, activityTypeView{
			ID:            activityType.ID,
			SystemKeyword: activityType.SystemKeyword,
			DisplayName:   activityType.DisplayName,
			Enabled:       activityType.Enabled,
		})
	})(w, r)
}

func (h *ActivityHandler) handleActivity(w http.ResponseWriter, r *http.Request, activityID string) {
	switch r.Method {
	case http.MethodGet:
		requirePermission(h.authz, access.PermissionReadActivity, func(w http.ResponseWriter, r *http.Request) {
			activity, err := h.service.Get(r.Context(), activityID)
			if err != nil {
				writeError(w, r, err)
				return
			}
			writeJSON(w, http.StatusOK, toActivityView(activity))
		})(w, r)
	case http.MethodDelete:
		requirePermission(h.authz, access.PermissionManageActivity, func(w http.ResponseWriter, r *http.Request) {
			if err := h.service.Delete(r.Context(), activityID); err != nil {
				writeError(w, r, err)
				return
			}
			writeJSON(w, http.StatusNoContent, nil)
		})(w, r)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodDelete)
	}
}
