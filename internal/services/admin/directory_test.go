package admin

import (
	"net/http"
	"net/http/httptest"
	"testing"

	apperrors "github.com/louisbranch/storefront/internal/platform/errors"
)

func TestDirectoryCountryLifecycle(t *testing.T) {
	handler := NewDirectoryHandler(newDirectoryService(t), allowAll{}).Routes()

	rec := doJSON(t, handler, http.MethodPost, "/v1/directory/countries", countryRequest{
		Name:               "Canada",
		TwoLetterISOCode:   "CA",
		ThreeLetterISOCode: "CAN",
		NumericISOCode:     124,
		Published:          true,
		DisplayOrder:       1,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create country status = %d, want %d (%s)", rec.Code, http.StatusCreated, rec.Body.String())
	}
	var created countryView
	decodeBody(t, rec, &created)
	if created.ID == "" {
		t.Fatal("create country returned an empty id")
	}
	if created.TwoLetterISOCode != "CA" {
		t.Fatalf("created two_letter_iso_code = %q, want %q", created.TwoLetterISOCode, "CA")
	}

	rec = doJSON(t, handler, http.MethodGet, "/v1/directory/countries", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list countries status = %d, want %d", rec.Code, http.StatusOK)
	}
	var listed struct {
		Countries []countryView `json:"countries"`
	}
	decodeBody(t, rec, &listed)
	if len(listed.Countries) != 1 || listed.Countries[0].ID != created.ID {
		t.Fatalf("list countries = %+v, want the created country", listed.Countries)
	}

	rec = doJSON(t, handler, http.MethodGet, "/v1/directory/countries/lookup?code=ca", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("lookup country status = %d, want %d (%s)", rec.Code, http.StatusOK, rec.Body.String())
	}
	var looked countryView
	decodeBody(t, rec, &looked)
	if looked.ID != created.ID {
		t.Fatalf("lookup country id = %q, want %q", looked.ID, created.ID)
	}

	rec = doJSON(t, handler, http.MethodPut, "/v1/directory/countries/"+created.ID, countryRequest{
		Name:               "Canada",
		TwoLetterISOCode:   "CA",
		ThreeLetterISOCode: "CAN",
		NumericISOCode:     124,
		Published:          false,
		DisplayOrder:       5,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("update country status = %d, want %d (%s)", rec.Code, http.StatusOK, rec.Body.String())
	}
	var updated countryView
	decodeBody(t, rec, &updated)
	if updated.Published || updated.DisplayOrder != 5 {
		t.Fatalf("updated country = %+v, want published=false display_order=5", updated)
	}

	rec = doJSON(t, handler, http.MethodDelete, "/v1/directory/countries/"+created.ID, nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete country status = %d, want %d", rec.Code, http.StatusNoContent)
	}
	rec = doJSON(t, handler, http.MethodGet, "/v1/directory/countries/"+created.ID, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("get deleted country status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestDirectoryStateRoutes(t *testing.T) {
	handler := NewDirectoryHandler(newDirectoryService(t), allowAll{}).Routes()

	rec := doJSON(t, handler, http.MethodPost, "/v1/directory/countries", countryRequest{
		Name:               "Brazil",
		TwoLetterISOCode:   "BR",
		ThreeLetterISOCode: "BRA",
		NumericISOCode:     76,
		Published:          true,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create country status = %d, want %d (%s)", rec.Code, http.StatusCreated, rec.Body.String())
	}
	var country countryView
	decodeBody(t, rec, &country)

	rec = doJSON(t, handler, http.MethodPost, "/v1/directory/countries/"+country.ID+"/states", stateRequest{
		Name:         "São Paulo",
		Abbreviation: "SP",
		Published:    true,
		DisplayOrder: 1,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create state status = %d, want %d (%s)", rec.Code, http.StatusCreated, rec.Body.String())
	}
	var state stateView
	decodeBody(t, rec, &state)
	if state.CountryID != country.ID {
		t.Fatalf("state country_id = %q, want %q", state.CountryID, country.ID)
	}

	rec = doJSON(t, handler, http.MethodGet, "/v1/directory/countries/"+country.ID+"/states", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list states status = %d, want %d", rec.Code, http.StatusOK)
	}
	var listed struct {
		States []stateView `json:"states"`
	}
	decodeBody(t, rec, &listed)
	if len(listed.States) != 1 || listed.States[0].ID != state.ID {
		t.Fatalf("list states = %+v, want the created state", listed.States)
	}

	rec = doJSON(t, handler, http.MethodGet, "/v1/directory/countries/"+country.ID+"/states/lookup?abbreviation=sp", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("lookup state status = %d, want %d (%s)", rec.Code, http.StatusOK, rec.Body.String())
	}
	var looked stateView
	decodeBody(t, rec, &looked)
	if looked.ID != state.ID {
		t.Fatalf("lookup state id = %q, want %q", looked.ID, state.ID)
	}

	rec = doJSON(t, handler, http.MethodPut, "/v1/directory/states/"+state.ID, stateRequest{
		Name:         "São Paulo",
		Abbreviation: "SP",
		Published:    false,
		DisplayOrder: 2,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("update state status = %d, want %d (%s)", rec.Code, http.StatusOK, rec.Body.String())
	}
	var updated stateView
	decodeBody(t, rec, &updated)
	if updated.CountryID != country.ID || updated.Published {
		t.Fatalf("updated state = %+v, want country kept and published=false", updated)
	}

	rec = doJSON(t, handler, http.MethodDelete, "/v1/directory/states/"+state.ID, nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete state status = %d, want %d", rec.Code, http.StatusNoContent)
	}
}

func TestDirectoryRoutesRequirePermission(t *testing.T) {
	handler := NewDirectoryHandler(newDirectoryService(t), denyAll{}).Routes()

	rec := doJSON(t, handler, http.MethodGet, "/v1/directory/countries", nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusForbidden)
	}
	envelope := decodeEnvelope(t, rec)
	if envelope.Error.Code != string(apperrors.CodeAuthForbidden) {
		t.Fatalf("code = %q, want %q", envelope.Error.Code, apperrors.CodeAuthForbidden)
	}
}

func TestDirectoryRejectsUnknownRoutesAndMethods(t *testing.T) {
	handler := NewDirectoryHandler(newDirectoryService(t), allowAll{}).Routes()

	rec := doJSON(t, handler, http.MethodGet, "/v1/directory/bogus", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unknown route status = %d, want %d", rec.Code, http.StatusNotFound)
	}

	rec = doJSON(t, handler, http.MethodPatch, "/v1/directory/countries", nil)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("bad method status = %d, want %d", rec.Code, http.StatusMethodNotAllowed)
	}
	if allow := rec.Header().Get("Allow"); allow != "GET, POST" {
		t.Fatalf("Allow = %q, want %q", allow, "GET, POST")
	}

	req := asCustomer(httptest.NewRequest(http.MethodPost, "/v1/directory/countries", nil), "customer-1")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("empty body status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}
