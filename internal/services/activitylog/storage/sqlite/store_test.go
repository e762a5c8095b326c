package sqlite

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/louisbranch/storefront/internal/services/activitylog/storage"
)

func seedType(t *testing.T, store *Store, id string, keyword string, enabled bool) {
	t.Helper()
	if err := store.PutActivityType(context.Background(), storage.ActivityType{
		ID:            id,
		SystemKeyword: keyword,
		DisplayName:   keyword,
		Enabled:       enabled,
	}); err != nil {
		t.Fatalf("put activity type %s: %v", keyword, err)
	}
}

func TestActivityTypeRoundTripAndKeywordLookup(t *testing.T) {
	store, err := Open(t.TempDir() + "/activity.db")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer store.Close()

	seedType(t, store, "type-1", "EditCountry", true)

	got, err := store.GetActivityTypeBySystemKeyword(context.Background(), "EditCountry")
	if err != nil {
		t.Fatalf("get by keyword: %v", err)
	}
	if got.ID != "type-1" || !got.Enabled {
		t.Fatalf("type = %+v, want type-1 enabled", got)
	}

	got.Enabled = false
	if err := store.PutActivityType(context.Background(), got); err != nil {
		t.Fatalf("disable type: %v", err)
	}
	reloaded, err := store.GetActivityType(context.Background(), "type-1")
	if err != nil {
		t.Fatalf("get type: %v", err)
	}
	if reloaded.Enabled {
		t.Fatal("enabled = true, want false")
	}

	if _, err := store.GetActivityTypeBySystemKeyword(context.Background(), "Missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("missing keyword err = %v, want %v", err, storage.ErrNotFound)
	}
}

func TestListActivityTypesOrderedByKeyword(t *testing.T) {
	store, err := Open(t.TempDir() + "/activity.db")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer store.Close()

	seedType(t, store, "type-2", "EditCountry", true)
	seedType(t, store, "type-1", "AddNewCountry", true)

	types, err := store.ListActivityTypes(context.Background())
	if err != nil {
		t.Fatalf("list types: %v", err)
	}
	if len(types) != 2 {
		t.Fatalf("types len = %d, want 2", len(types))
	}
	if types[0].SystemKeyword != "AddNewCountry" || types[1].SystemKeyword != "EditCountry" {
		t.Fatalf("order = %s,%s, want AddNewCountry,EditCountry", types[0].SystemKeyword, types[1].SystemKeyword)
	}
}

func TestSearchActivitiesKeysetPagination(t *testing.T) {
	store, err := Open(t.TempDir() + "/activity.db")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer store.Close()

	seedType(t, store, "type-1", "EditCountry", true)
	base := time.Date(2026, time.March, 15, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		if err := store.InsertActivity(context.Background(), storage.Activity{
			ID:            fmt.Sprintf("act-%d", i),
			TypeID:        "type-1",
			SystemKeyword: "EditCountry",
			CustomerID:    "cust-1",
			CreatedAt:     base.Add(time.Duration(i) * time.Minute),
		}); err != nil {
			t.Fatalf("insert activity %d: %v", i, err)
		}
	}

	first, err := store.SearchActivities(context.Background(), storage.SearchQuery{PageSize: 2})
	if err != nil {
		t.Fatalf("search page 1: %v", err)
	}
	if len(first.Activities) != 2 {
		t.Fatalf("page 1 len = %d, want 2", len(first.Activities))
	}
	if first.Activities[0].ID != "act-4" || first.Activities[1].ID != "act-3" {
		t.Fatalf("page 1 = %s,%s, want act-4,act-3", first.Activities[0].ID, first.Activities[1].ID)
	}
	if first.NextCursor == nil {
		t.Fatal("page 1 next cursor is nil")
	}

	second, err := store.SearchActivities(context.Background(), storage.SearchQuery{
		PageSize: 2,
		Cursor:   first.NextCursor,
	})
	if err != nil {
		t.Fatalf("search page 2: %v", err)
	}
	if len(second.Activities) != 2 {
		t.Fatalf("page 2 len = %d, want 2", len(second.Activities))
	}
	if second.Activities[0].ID != "act-2" || second.Activities[1].ID != "act-1" {
		t.Fatalf("page 2 = %s,%s, want act-2,act-1", second.Activities[0].ID, second.Activities[1].ID)
	}

	third, err := store.SearchActivities(context.Background(), storage.SearchQuery{
		PageSize: 2,
		Cursor:   second.NextCursor,
	})
	if err != nil {
		t.Fatalf("search page 3: %v", err)
	}
	if len(third.Activities) != 1 {
		t.Fatalf("page 3 len = %d, want 1", len(third.Activities))
	}
	if third.NextCursor != nil {
		t.Fatalf("page 3 next cursor = %+v, want nil", third.NextCursor)
	}
}

func TestSearchActivitiesTieBreaksOnID(t *testing.T) {
	store, err := Open(t.TempDir() + "/activity.db")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer store.Close()

	seedType(t, store, "type-1", "EditCountry", true)
	at := time.Date(2026, time.March, 15, 10, 0, 0, 0, time.UTC)
	for _, id := range []string{"act-a", "act-b", "act-c"} {
		if err := store.InsertActivity(context.Background(), storage.Activity{
			ID: id, TypeID: "type-1", SystemKeyword: "EditCountry", CreatedAt: at,
		}); err != nil {
			t.Fatalf("insert %s: %v", id, err)
		}
	}

	first, err := store.SearchActivities(context.Background(), storage.SearchQuery{PageSize: 2})
	if err != nil {
		t.Fatalf("search page 1: %v", err)
	}
	if first.Activities[0].ID != "act-c" || first.Activities[1].ID != "act-b" {
		t.Fatalf("page 1 = %s,%s, want act-c,act-b", first.Activities[0].ID, first.Activities[1].ID)
	}

	second, err := store.SearchActivities(context.Background(), storage.SearchQuery{
		PageSize: 2,
		Cursor:   first.NextCursor,
	})
	if err != nil {
		t.Fatalf("search page 2: %v", err)
	}
	if len(second.Activities) != 1 || second.Activities[0].ID != "act-a" {
		t.Fatalf("page 2 = %+v, want only act-a", second.Activities)
	}
}

func TestSearchActivitiesWithFilterClause(t *testing.T) {
	store, err := Open(t.TempDir() + "/activity.db")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer store.Close()

	seedType(t, store, "type-1", "EditCountry", true)
	seedType(t, store, "type-2", "DeleteCountry", true)
	at := time.Date(2026, time.March, 15, 10, 0, 0, 0, time.UTC)
	seed := []storage.Activity{
		{ID: "act-1", TypeID: "type-1", SystemKeyword: "EditCountry", CustomerID: "cust-1", CreatedAt: at},
		{ID: "act-2", TypeID: "type-2", SystemKeyword: "DeleteCountry", CustomerID: "cust-1", CreatedAt: at.Add(time.Minute)},
		{ID: "act-3", TypeID: "type-1", SystemKeyword: "EditCountry", CustomerID: "cust-2", CreatedAt: at.Add(2 * time.Minute)},
	}
	for _, activity := range seed {
		if err := store.InsertActivity(context.Background(), activity); err != nil {
			t.Fatalf("insert %s: %v", activity.ID, err)
		}
	}

	page, err := store.SearchActivities(context.Background(), storage.SearchQuery{
		Filter: storage.SearchFilter{
			Clause: "(system_keyword = ? AND customer_id = ?)",
			Params: []any{"EditCountry", "cust-1"},
		},
		PageSize: 10,
	})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(page.Activities) != 1 || page.Activities[0].ID != "act-1" {
		t.Fatalf("filtered page = %+v, want only act-1", page.Activities)
	}
}

func TestDeleteActivitiesBeforeAndClear(t *testing.T) {
	store, err := Open(t.TempDir() + "/activity.db")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer store.Close()

	seedType(t, store, "type-1", "EditCountry", true)
	base := time.Date(2026, time.March, 15, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 4; i++ {
		if err := store.InsertActivity(context.Background(), storage.Activity{
			ID:            fmt.Sprintf("act-%d", i),
			TypeID:        "type-1",
			SystemKeyword: "EditCountry",
			CreatedAt:     base.Add(time.Duration(i) * time.Hour),
		}); err != nil {
			t.Fatalf("insert activity %d: %v", i, err)
		}
	}

	deleted, err := store.DeleteActivitiesBefore(context.Background(), base.Add(2*time.Hour))
	if err != nil {
		t.Fatalf("delete before: %v", err)
	}
	if deleted != 2 {
		t.Fatalf("deleted = %d, want 2", deleted)
	}
	if _, err := store.GetActivity(context.Background(), "act-0"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("act-0 err = %v, want %v", err, storage.ErrNotFound)
	}
	if _, err := store.GetActivity(context.Background(), "act-2"); err != nil {
		t.Fatalf("act-2 should survive: %v", err)
	}

	cleared, err := store.ClearActivities(context.Background())
	if err != nil {
		t.Fatalf("clear: %v", err)
	}
	if cleared != 2 {
		t.Fatalf("cleared = %d, want 2", cleared)
	}
	page, err := store.SearchActivities(context.Background(), storage.SearchQuery{PageSize: 10})
	if err != nil {
		t.Fatalf("search after clear: %v", err)
	}
	if len(page.Activities) != 0 {
		t.Fatalf("activities after clear = %d, want 0", len(page.Activities))
	}
}
