package admin

import (
	"net/http"
	"strings"
	"time"

	apperrors "github.com/louisbranch/storefront/internal/platform/errors"
	"github.com/louisbranch/storefront/internal/services/access"
	"github.com/louisbranch/storefront/internal/services/admin/routepath"
	"github.com/louisbranch/storefront/internal/services/settings"
)

// SettingsHandler serves persisted configuration routes.
type SettingsHandler struct {
	service *settings.Service
	authz   Authorizer
}

// NewSettingsHandler creates the settings route handler.
func NewSettingsHandler(service *settings.Service, authz Authorizer) *SettingsHandler {
	return &SettingsHandler{service: service, authz: authz}
}

// Routes builds the settings route surface.
func (h *SettingsHandler) Routes() http.Handler {
	mux := http.NewServeMux()
	manage := func(next http.HandlerFunc) http.HandlerFunc {
		return requirePermission(h.authz, access.PermissionManageSettings, next)
	}
	mux.HandleFunc(routepath.Settings, manage(h.handleSettings))
	mux.HandleFunc(routepath.SettingsPrefix, manage(h.handleSettingPath))
	return mux
}

type settingRequest struct {
	Value string `json:"value"`
}

type settingView struct {
	Name      string    `json:"name"`
	Value     string    `json:"value"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// settingValueView is the condensed shape served from the cached read path.
type settingValueView struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

func (h *SettingsHandler) handleSettings(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	list, err := h.service.List(r.Context(), r.URL.Query().Get("prefix"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	views := make([]settingView, 0, len(list))
	for _, setting := range list {
		views = append(views, settingView{
			Name:      setting.Name,
			Value:     setting.Value,
			CreatedAt: setting.CreatedAt,
			UpdatedAt: setting.UpdatedAt,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"settings": views})
}

func (h *SettingsHandler) handleSettingPath(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, routepath.SettingsPrefix)
	parts := splitPathParts(path)
	if len(parts) != 1 {
		notFound(w, r)
		return
	}
	name := parts[0]
	switch r.Method {
	case http.MethodGet:
		value, ok := h.service.Get(r.Context(), name)
		if !ok {
			writeError(w, r, apperrors.New(apperrors.CodeNotFound, "setting not found"))
			return
		}
		writeJSON(w, http.StatusOK, settingValueView{Name: strings.ToLower(strings.TrimSpace(name)), Value: value})
	case http.MethodPut:
		var req settingRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, r, err)
			return
		}
		setting, err := h.service.Set(r.Context(), name, req.Value)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, settingView{
			Name:      setting.Name,
			Value:     setting.Value,
			CreatedAt: setting.CreatedAt,
			UpdatedAt: setting.UpdatedAt,
		})
	case http.MethodDelete:
		if err := h.service.Delete(r.Context(), name); err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusNoContent, nil)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPut, http.MethodDelete)
	}
}
