package admin

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/louisbranch/storefront/internal/services/access"
	"github.com/louisbranch/storefront/internal/services/admin/routepath"
	"github.com/louisbranch/storefront/internal/services/directory"
	"github.com/louisbranch/storefront/internal/services/directory/storage"
)

// DirectoryHandler serves country and state/province management routes.
type DirectoryHandler struct {
	service *directory.Service
	authz   Authorizer
}

// NewDirectoryHandler creates the directory route handler.
func NewDirectoryHandler(service *directory.Service, authz Authorizer) *DirectoryHandler {
	return &DirectoryHandler{service: service, authz: authz}
}

// Routes builds the directory route surface.
func (h *DirectoryHandler) Routes() http.Handler {
	mux := http.NewServeMux()
	manage := func(next http.HandlerFunc) http.HandlerFunc {
		return requirePermission(h.authz, access.PermissionManageDirectory, next)
	}
	mux.HandleFunc(routepath.Countries, manage(h.handleCountries))
	mux.HandleFunc(routepath.CountriesLookup, manage(h.handleCountryLookup))
	mux.HandleFunc(routepath.CountriesPrefix, manage(h.handleCountryPath))
	mux.HandleFunc(routepath.StatesPrefix, manage(h.handleStatePath))
	mux.HandleFunc(routepath.DirectoryPrefix, notFound)
	return mux
}

type countryRequest struct {
	Name               string `json:"name"`
	TwoLetterISOCode   string `json:"two_letter_iso_code"`
	ThreeLetterISOCode string `json:"three_letter_iso_code"`
	NumericISOCode     int    `json:"numeric_iso_code"`
	Published          bool   `json:"published"`
	DisplayOrder       int    `json:"display_order"`
}

type countryView struct {
	ID                 string    `json:"id"`
	Name               string    `json:"name"`
	TwoLetterISOCode   string    `json:"two_letter_iso_code"`
	ThreeLetterISOCode string    `json:"three_letter_iso_code"`
	NumericISOCode     int       `json:"numeric_iso_code"`
	Published          bool      `json:"published"`
	DisplayOrder       int       `json:"display_order"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

type stateRequest struct {
	Name         string `json:"name"`
	Abbreviation string `json:"abbreviation"`
	Published    bool   `json:"published"`
	DisplayOrder int    `json:"display_order"`
}

type stateView struct {
	ID           string    `json:"id"`
	CountryID    string    `json:"country_id"`
	Name         string    `json:"name"`
	Abbreviation string    `json:"abbreviation"`
	Published    bool      `json:"published"`
	DisplayOrder int       `json:"display_order"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func toCountryView(country storage.Country) countryView {
	return countryView{
		ID:                 country.ID,
		Name:               country.Name,
		TwoLetterISOCode:   country.TwoLetterISOCode,
		ThreeLetterISOCode: country.ThreeLetterISOCode,
		NumericISOCode:     country.NumericISOCode,
		Published:          country.Published,
		DisplayOrder:       country.DisplayOrder,
		CreatedAt:          country.CreatedAt,
		UpdatedAt:          country.UpdatedAt,
	}
}

func toStateView(state storage.StateProvince) stateView {
	return stateView{
		ID:           state.ID,
		CountryID:    state.CountryID,
		Name:         state.Name,
		Abbreviation: state.Abbreviation,
		Published:    state.Published,
		DisplayOrder: state.DisplayOrder,
		CreatedAt:    state.CreatedAt,
		UpdatedAt:    state.UpdatedAt,
	}
}

func (r countryRequest) toInput() directory.CountryInput {
	return directory.CountryInput{
		Name:               r.Name,
		TwoLetterISOCode:   r.TwoLetterISOCode,
		ThreeLetterISOCode: r.ThreeLetterISOCode,
		NumericISOCode:     r.NumericISOCode,
		Published:          r.Published,
		DisplayOrder:       r.DisplayOrder,
	}
}

func (h *DirectoryHandler) handleCountries(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		countries, err := h.service.ListCountries(r.Context(), boolQuery(r, "published"))
		if err != nil {
			writeError(w, r, err)
			return
		}
		views := make([]countryView, 0, len(countries))
		for _, country := range countries {
			views = append(views, toCountryView(country))
		}
		writeJSON(w, http.StatusOK, map[string]any{"countries": views})
	case http.MethodPost:
		var req countryRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, r, err)
			return
		}
		country, err := h.service.CreateCountry(r.Context(), req.toInput())
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, toCountryView(country))
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (h *DirectoryHandler) handleCountryLookup(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	country, err := h.service.GetCountryByTwoLetterISOCode(r.Context(), r.URL.Query().Get("code"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toCountryView(country))
}

func (h *DirectoryHandler) handleCountryPath(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, routepath.CountriesPrefix)
	parts := splitPathParts(path)
	switch {
	case len(parts) == 1:
		h.handleCountry(w, r, parts[0])
	case len(parts) == 2 && parts[1] == "states":
		h.handleCountryStates(w, r, parts[0])
	case len(parts) == 3 && parts[1] == "states" && parts[2] == "lookup":
		h.handleStateLookup(w, r, parts[0])
	default:
		notFound(w, r)
	}
}

func (h *DirectoryHandler) handleCountry(w http.ResponseWriter, r *http.Request, countryID string) {
	switch r.Method {
	case http.MethodGet:
		country, err := h.service.GetCountry(r.Context(), countryID)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, toCountryView(country))
	case http.MethodPut:
		var req countryRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, r, err)
			return
		}
		country, err := h.service.UpdateCountry(r.Context(), countryID, req.toInput())
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, toCountryView(country))
	case http.MethodDelete:
		if err := h.service.DeleteCountry(r.Context(), countryID); err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusNoContent, nil)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPut, http.MethodDelete)
	}
}

func (h *DirectoryHandler) handleCountryStates(w http.ResponseWriter, r *http.Request, countryID string) {
	switch r.Method {
	case http.MethodGet:
		states, err := h.service.ListStateProvincesByCountry(r.Context(), countryID, boolQuery(r, "published"))
		if err != nil {
			writeError(w, r, err)
			return
		}
		views := make([]stateView, 0, len(states))
		for _, state := range states {
			views = append(views, toStateView(state))
		}
		writeJSON(w, http.StatusOK, map[string]any{"states": views})
	case http.MethodPost:
		var req stateRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, r, err)
			return
		}
		state, err := h.service.CreateStateProvince(r.Context(), directory.StateProvinceInput{
			CountryID:    countryID,
			Name:         req.Name,
			Abbreviation: req.Abbreviation,
			Published:    req.Published,
			DisplayOrder: req.DisplayOrder,
		})
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, toStateView(state))
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (h *DirectoryHandler) handleStateLookup(w http.ResponseWriter, r *http.Request, countryID string) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	state, err := h.service.GetStateProvinceByAbbreviation(r.Context(), countryID, r.URL.Query().Get("abbreviation"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toStateView(state))
}

func (h *DirectoryHandler) handleStatePath(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, routepath.StatesPrefix)
	parts := splitPathParts(path)
	if len(parts) != 1 {
		notFound(w, r)
		return
	}
	stateID := parts[0]
	switch r.Method {
	case http.MethodGet:
		state, err := h.service.GetStateProvince(r.Context(), stateID)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, toStateView(state))
	case http.MethodPut:
		var req stateRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, r, err)
			return
		}
		existing, err := h.service.GetStateProvince(r.Context(), stateID)
		if err != nil {
			writeError(w, r, err)
			return
		}
		state, err := h.service.UpdateStateProvince(r.Context(), stateID, directory.StateProvinceInput{
			CountryID:    existing.CountryID,
			Name:         req.Name,
			Abbreviation: req.Abbreviation,
			Published:    req.Published,
			DisplayOrder: req.DisplayOrder,
		})
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, toStateView(state))
	case http.MethodDelete:
		if err := h.service.DeleteStateProvince(r.Context(), stateID); err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusNoContent, nil)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPut, http.MethodDelete)
	}
}

// boolQuery reads a query parameter as a boolean, defaulting to false.
func boolQuery(r *http.Request, name string) bool {
	value, err := strconv.ParseBool(r.URL.Query().Get(name))
	if err != nil {
		return false
	}
	return value
}
