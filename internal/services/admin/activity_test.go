package admin

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"golang.org/x/net/websocket"

	apperrors "github.com/louisbranch/storefront/internal/platform/errors"
	"github.com/louisbranch/storefront/internal/platform/events"
	"github.com/louisbranch/storefront/internal/services/access"
	"github.com/louisbranch/storefront/internal/services/activitylog"
)

func seedActivities(t *testing.T, service *activitylog.Service) (loginID, editID string) {
	t.Helper()
	ctx := context.Background()
	if _, err := service.EnsureType(ctx, "customer.login", "Customer login"); err != nil {
		t.Fatalf("ensure type: %v", err)
	}
	if _, err := service.EnsureType(ctx, "country.edit", "Edit a country"); err != nil {
		t.Fatalf("ensure type: %v", err)
	}
	login, err := service.Log(ctx, "customer.login", activitylog.LogInput{CustomerID: "customer-2", Comment: "signed in"})
	if err != nil {
		t.Fatalf("log login: %v", err)
	}
	edit, err := service.Log(ctx, "country.edit", activitylog.LogInput{CustomerID: "customer-3", Comment: "renamed", EntityName: "Country", EntityID: "country-1"})
	if err != nil {
		t.Fatalf("log edit: %v", err)
	}
	return login.ID, edit.ID
}

func TestActivitySearchFiltersAndPages(t *testing.T) {
	service := newActivityService(t)
	loginID, editID := seedActivities(t, service)
	handler := NewActivityHandler(service, nil, allowAll{}).Routes()

	query := url.Values{"filter": []string{`keyword = "customer.login"`}}
	rec := doJSON(t, handler, http.MethodGet, "/v1/activity?"+query.Encode(), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("filtered search status = %d, want %d (%s)", rec.Code, http.StatusOK, rec.Body.String())
	}
	var filtered struct {
		Activities    []activityView `json:"activities"`
		NextPageToken string         `json:"next_page_token"`
	}
	decodeBody(t, rec, &filtered)
	if len(filtered.Activities) != 1 || filtered.Activities[0].ID != loginID {
		t.Fatalf("filtered activities = %+v, want only %s", filtered.Activities, loginID)
	}
	if filtered.Activities[0].SystemKeyword != "customer.login" {
		t.Fatalf("system_keyword = %q, want %q", filtered.Activities[0].SystemKeyword, "customer.login")
	}

	rec = doJSON(t, handler, http.MethodGet, "/v1/activity?page_size=1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("first page status = %d, want %d (%s)", rec.Code, http.StatusOK, rec.Body.String())
	}
	var first struct {
		Activities    []activityView `json:"activities"`
		NextPageToken string         `json:"next_page_token"`
	}
	decodeBody(t, rec, &first)
	if len(first.Activities) != 1 || first.NextPageToken == "" {
		t.Fatalf("first page = %+v token %q, want one activity and a token", first.Activities, first.NextPageToken)
	}

	rec = doJSON(t, handler, http.MethodGet, "/v1/activity?page_size=1&page_token="+first.NextPageToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("second page status = %d, want %d (%s)", rec.Code, http.StatusOK, rec.Body.String())
	}
	var second struct {
		Activities []activityView `json:"activities"`
	}
	decodeBody(t, rec, &second)
	if len(second.Activities) != 1 || second.Activities[0].ID == first.Activities[0].ID {
		t.Fatalf("second page = %+v, want the other activity", second.Activities)
	}
	seen := map[string]bool{first.Activities[0].ID: true, second.Activities[0].ID: true}
	if !seen[loginID] || !seen[editID] {
		t.Fatalf("paged ids = %v, want %s and %s", seen, loginID, editID)
	}
}

func TestActivityGetDeleteAndClear(t *testing.T) {
	service := newActivityService(t)
	loginID, _ := seedActivities(t, service)
	handler := NewActivityHandler(service, nil, allowAll{}).Routes()

	rec := doJSON(t, handler, http.MethodGet, "/v1/activity/"+loginID, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get activity status = %d, want %d (%s)", rec.Code, http.StatusOK, rec.Body.String())
	}
	var got activityView
	decodeBody(t, rec, &got)
	if got.ID != loginID || got.CustomerID != "customer-2" {
		t.Fatalf("activity = %+v, want id %s for customer-2", got, loginID)
	}

	rec = doJSON(t, handler, http.MethodDelete, "/v1/activity/"+loginID, nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete activity status = %d, want %d", rec.Code, http.StatusNoContent)
	}
	rec = doJSON(t, handler, http.MethodGet, "/v1/activity/"+loginID, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("get deleted activity status = %d, want %d", rec.Code, http.StatusNotFound)
	}

	rec = doJSON(t, handler, http.MethodDelete, "/v1/activity", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("clear status = %d, want %d (%s)", rec.Code, http.StatusOK, rec.Body.String())
	}
	var cleared struct {
		Deleted int64 `json:"deleted"`
	}
	decodeBody(t, rec, &cleared)
	if cleared.Deleted != 1 {
		t.Fatalf("cleared = %d, want 1", cleared.Deleted)
	}
}

func TestActivityTypeRoutes(t *testing.T) {
	service := newActivityService(t)
	seedActivities(t, service)
	handler := NewActivityHandler(service, nil, allowAll{}).Routes()

	rec := doJSON(t, handler, http.MethodGet, "/v1/activity/types", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list types status = %d, want %d (%s)", rec.Code, http.StatusOK, rec.Body.String())
	}
	var listed struct {
		Types []activityTypeView `json:"types"`
	}
	decodeBody(t, rec, &listed)
	if len(listed.Types) != 2 {
		t.Fatalf("types = %+v, want two entries", listed.Types)
	}
	var loginType activityTypeView
	for _, entry := range listed.Types {
		if entry.SystemKeyword == "customer.login" {
			loginType = entry
		}
	}
	if loginType.ID == "" {
		t.Fatalf("types = %+v, want a customer.login entry", listed.Types)
	}

	rec = doJSON(t, handler, http.MethodPut, "/v1/activity/types/"+loginType.ID, activityTypeRequest{
		DisplayName: "Sign in",
		Enabled:     false,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("update type status = %d, want %d (%s)", rec.Code, http.StatusOK, rec.Body.String())
	}
	var updated activityTypeView
	decodeBody(t, rec, &updated)
	if updated.DisplayName != "Sign in" || updated.Enabled {
		t.Fatalf("updated type = %+v, want renamed and disabled", updated)
	}
}

func TestActivityReadersCannotManage(t *testing.T) {
	service := newActivityService(t)
	seedActivities(t, service)
	readOnly := grantSet{access.PermissionReadActivity: true}
	handler := NewActivityHandler(service, nil, readOnly).Routes()

	rec := doJSON(t, handler, http.MethodGet, "/v1/activity", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("read status = %d, want %d (%s)", rec.Code, http.StatusOK, rec.Body.String())
	}

	rec = doJSON(t, handler, http.MethodDelete, "/v1/activity", nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("clear status = %d, want %d", rec.Code, http.StatusForbidden)
	}
	envelope := decodeEnvelope(t, rec)
	if envelope.Error.Code != string(apperrors.CodeAuthForbidden) {
		t.Fatalf("code = %q, want %q", envelope.Error.Code, apperrors.CodeAuthForbidden)
	}
}

func TestActivityStreamDeliversEvents(t *testing.T) {
	hub := activitylog.NewHub()
	handler := NewActivityHandler(newActivityService(t), hub, allowAll{}).Routes()
	stamped := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handler.ServeHTTP(w, asCustomer(r, "customer-1"))
	})
	srv := httptest.NewServer(stamped)
	t.Cleanup(srv.Close)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/activity/stream"
	conn, err := websocket.Dial(wsURL, "", srv.URL)
	if err != nil {
		t.Fatalf("dial websocket: %v", err)
	}
	t.Cleanup(func() {
		_ = conn.Close()
	})

	deadline := time.Now().Add(2 * time.Second)
	for hub.Len() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("stream subscriber never registered")
		}
		time.Sleep(10 * time.Millisecond)
	}

	logged := events.ActivityLoggedEvent{
		ActivityID:    "activity-1",
		SystemKeyword: "customer.login",
		CustomerID:    "customer-2",
		Comment:       "signed in",
		CreatedAt:     time.Date(2026, 2, 3, 12, 0, 0, 0, time.UTC),
	}
	if err := hub.HandleEvent(context.Background(), events.Event{Type: events.ActivityLogged, Payload: logged}); err != nil {
		t.Fatalf("handle event: %v", err)
	}

	_ = conn.SetDeadline(time.Now().Add(2 * time.Second))
	var frame streamFrame
	if err := json.NewDecoder(conn).Decode(&frame); err != nil {
		t.Fatalf("decode stream frame: %v", err)
	}
	if frame.ActivityID != logged.ActivityID || frame.SystemKeyword != logged.SystemKeyword {
		t.Fatalf("frame = %+v, want activity %s", frame, logged.ActivityID)
	}
	if !frame.CreatedAt.Equal(logged.CreatedAt) {
		t.Fatalf("frame created_at = %v, want %v", frame.CreatedAt, logged.CreatedAt)
	}
}

func TestActivityStreamRequiresHub(t *testing.T) {
	handler := NewActivityHandler(newActivityService(t), nil, allowAll{}).Routes()

	rec := doJSON(t, handler, http.MethodGet, "/v1/activity/stream", nil)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want %d (%s)", rec.Code, http.StatusInternalServerError, rec.Body.String())
	}
	envelope := decodeEnvelope(t, rec)
	if envelope.Error.Code != string(apperrors.CodeUnknown) {
		t.Fatalf("code = %q, want %q", envelope.Error.Code, apperrors.CodeUnknown)
	}
}
