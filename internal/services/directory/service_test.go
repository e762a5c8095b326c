package directory

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/louisbranch/storefront/internal/platform/cache"
	apperrors "github.com/louisbranch/storefront/internal/platform/errors"
	"github.com/louisbranch/storefront/internal/platform/events"
	"github.com/louisbranch/storefront/internal/services/directory/storage"
)

func TestCreateCountryStoresAndPublishes(t *testing.T) {
	store := newFakeDirectoryStore()
	bus, published := newCaptureBus()
	svc := NewService(store, cache.NewMemory(), bus)
	now := time.Date(2026, time.March, 12, 9, 0, 0, 0, time.UTC)
	svc.clock = func() time.Time { return now }

	country, err := svc.CreateCountry(context.Background(), CountryInput{
		Name:               "  Canada ",
		TwoLetterISOCode:   "ca",
		ThreeLetterISOCode: "can",
		NumericISOCode:     124,
		Published:          true,
		DisplayOrder:       10,
	})
	if err != nil {
		t.Fatalf("create country: %v", err)
	}
	if len(country.ID) != 26 {
		t.Fatalf("id length = %d, want 26", len(country.ID))
	}
	if country.Name != "Canada" {
		t.Fatalf("name = %q, want Canada", country.Name)
	}
	if country.TwoLetterISOCode != "CA" || country.ThreeLetterISOCode != "CAN" {
		t.Fatalf("iso codes = %q/%q, want CA/CAN", country.TwoLetterISOCode, country.ThreeLetterISOCode)
	}
	if !country.CreatedAt.Equal(now) || !country.UpdatedAt.Equal(now) {
		t.Fatalf("timestamps = %v/%v, want %v", country.CreatedAt, country.UpdatedAt, now)
	}

	stored, ok := store.countries[country.ID]
	if !ok {
		t.Fatal("country not stored")
	}
	if stored.Name != "Canada" {
		t.Fatalf("stored name = %q, want Canada", stored.Name)
	}

	if len(*published) != 1 {
		t.Fatalf("published events = %d, want 1", len(*published))
	}
	event := (*published)[0]
	if event.Type != events.CountryCreated {
		t.Fatalf("event type = %q, want %q", event.Type, events.CountryCreated)
	}
	payload, ok := event.Payload.(events.CountryEvent)
	if !ok {
		t.Fatalf("payload type = %T, want events.CountryEvent", event.Payload)
	}
	if payload.CountryID != country.ID || payload.Name != "Canada" {
		t.Fatalf("payload = %+v", payload)
	}
}

func TestCreateCountryValidation(t *testing.T) {
	tests := []struct {
		name  string
		input CountryInput
		code  apperrors.Code
	}{
		{
			name:  "empty name",
			input: CountryInput{Name: "  ", TwoLetterISOCode: "CA", ThreeLetterISOCode: "CAN"},
			code:  apperrors.CodeCountryNameEmpty,
		},
		{
			name:  "short two letter code",
			input: CountryInput{Name: "Canada", TwoLetterISOCode: "C", ThreeLetterISOCode: "CAN"},
			code:  apperrors.CodeCountryInvalidISOCode,
		},
		{
			name:  "digits in two letter code",
			input: CountryInput{Name: "Canada", TwoLetterISOCode: "C1", ThreeLetterISOCode: "CAN"},
			code:  apperrors.CodeCountryInvalidISOCode,
		},
		{
			name:  "long three letter code",
			input: CountryInput{Name: "Canada", TwoLetterISOCode: "CA", ThreeLetterISOCode: "CANA"},
			code:  apperrors.CodeCountryInvalidISOCode,
		},
		{
			name:  "numeric code out of range",
			input: CountryInput{Name: "Canada", TwoLetterISOCode: "CA", ThreeLetterISOCode: "CAN", NumericISOCode: 1000},
			code:  apperrors.CodeCountryInvalidISOCode,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			svc := NewService(newFakeDirectoryStore(), nil, nil)
			_, err := svc.CreateCountry(context.Background(), tc.input)
			if apperrors.CodeOf(err) != tc.code {
				t.Fatalf("code = %v, want %v", apperrors.CodeOf(err), tc.code)
			}
		})
	}
}

func TestCreateCountryRejectsDuplicateISOCode(t *testing.T) {
	store := newFakeDirectoryStore()
	svc := NewService(store, nil, nil)

	if _, err := svc.CreateCountry(context.Background(), CountryInput{
		Name: "Canada", TwoLetterISOCode: "CA", ThreeLetterISOCode: "CAN",
	}); err != nil {
		t.Fatalf("create first country: %v", err)
	}
	_, err := svc.CreateCountry(context.Background(), CountryInput{
		Name: "Clone", TwoLetterISOCode: "ca", ThreeLetterISOCode: "CLN",
	})
	if apperrors.CodeOf(err) != apperrors.CodeCountryISOCodeTaken {
		t.Fatalf("code = %v, want %v", apperrors.CodeOf(err), apperrors.CodeCountryISOCodeTaken)
	}
}

func TestUpdateCountryKeepsCreatedAtAndOwnISOCode(t *testing.T) {
	store := newFakeDirectoryStore()
	svc := NewService(store, nil, nil)
	createdAt := time.Date(2026, time.March, 12, 9, 0, 0, 0, time.UTC)
	svc.clock = func() time.Time { return createdAt }

	country, err := svc.CreateCountry(context.Background(), CountryInput{
		Name: "Brasil", TwoLetterISOCode: "BR", ThreeLetterISOCode: "BRA",
	})
	if err != nil {
		t.Fatalf("create country: %v", err)
	}

	updatedAt := createdAt.Add(2 * time.Hour)
	svc.clock = func() time.Time { return updatedAt }
	updated, err := svc.UpdateCountry(context.Background(), country.ID, CountryInput{
		Name: "Brazil", TwoLetterISOCode: "BR", ThreeLetterISOCode: "BRA", Published: true,
	})
	if err != nil {
		t.Fatalf("update country: %v", err)
	}
	if updated.Name != "Brazil" {
		t.Fatalf("name = %q, want Brazil", updated.Name)
	}
	if !updated.CreatedAt.Equal(createdAt) {
		t.Fatalf("created_at = %v, want %v", updated.CreatedAt, createdAt)
	}
	if !updated.UpdatedAt.Equal(updatedAt) {
		t.Fatalf("updated_at = %v, want %v", updated.UpdatedAt, updatedAt)
	}
}

func TestUpdateCountryUnknownIDIsNotFound(t *testing.T) {
	svc := NewService(newFakeDirectoryStore(), nil, nil)
	_, err := svc.UpdateCountry(context.Background(), "missing", CountryInput{
		Name: "Canada", TwoLetterISOCode: "CA", ThreeLetterISOCode: "CAN",
	})
	if apperrors.CodeOf(err) != apperrors.CodeNotFound {
		t.Fatalf("code = %v, want %v", apperrors.CodeOf(err), apperrors.CodeNotFound)
	}
}

func TestDeleteCountryPublishesAndRemovesStates(t *testing.T) {
	store := newFakeDirectoryStore()
	bus, published := newCaptureBus()
	svc := NewService(store, nil, bus)

	country, err := svc.CreateCountry(context.Background(), CountryInput{
		Name: "Canada", TwoLetterISOCode: "CA", ThreeLetterISOCode: "CAN",
	})
	if err != nil {
		t.Fatalf("create country: %v", err)
	}
	if _, err := svc.CreateStateProvince(context.Background(), StateProvinceInput{
		CountryID: country.ID, Name: "Ontario", Abbreviation: "ON",
	}); err != nil {
		t.Fatalf("create state: %v", err)
	}

	if err := svc.DeleteCountry(context.Background(), country.ID); err != nil {
		t.Fatalf("delete country: %v", err)
	}
	if len(store.states) != 0 {
		t.Fatalf("states remaining = %d, want 0", len(store.states))
	}

	last := (*published)[len(*published)-1]
	if last.Type != events.CountryDeleted {
		t.Fatalf("last event = %q, want %q", last.Type, events.CountryDeleted)
	}

	if err := svc.DeleteCountry(context.Background(), country.ID); apperrors.CodeOf(err) != apperrors.CodeNotFound {
		t.Fatalf("second delete code = %v, want %v", apperrors.CodeOf(err), apperrors.CodeNotFound)
	}
}

func TestListCountriesCachesUntilMutation(t *testing.T) {
	store := newFakeDirectoryStore()
	svc := NewService(store, cache.NewMemory(), nil)

	if _, err := svc.CreateCountry(context.Background(), CountryInput{
		Name: "Canada", TwoLetterISOCode: "CA", ThreeLetterISOCode: "CAN", Published: true,
	}); err != nil {
		t.Fatalf("create country: %v", err)
	}

	first, err := svc.ListCountries(context.Background(), true)
	if err != nil {
		t.Fatalf("list countries: %v", err)
	}
	if len(first) != 1 {
		t.Fatalf("first len = %d, want 1", len(first))
	}

	// A write behind the service's back is invisible while cached.
	store.countries["ghost"] = storage.Country{ID: "ghost", Name: "Ghost", TwoLetterISOCode: "GH", Published: true}
	cached, err := svc.ListCountries(context.Background(), true)
	if err != nil {
		t.Fatalf("list countries cached: %v", err)
	}
	if len(cached) != 1 {
		t.Fatalf("cached len = %d, want 1 (stale cache expected)", len(cached))
	}

	// A service mutation invalidates the whole namespace.
	if _, err := svc.CreateCountry(context.Background(), CountryInput{
		Name: "Brazil", TwoLetterISOCode: "BR", ThreeLetterISOCode: "BRA", Published: true,
	}); err != nil {
		t.Fatalf("create second country: %v", err)
	}
	fresh, err := svc.ListCountries(context.Background(), true)
	if err != nil {
		t.Fatalf("list countries fresh: %v", err)
	}
	if len(fresh) != 3 {
		t.Fatalf("fresh len = %d, want 3", len(fresh))
	}
}

func TestGetCountryByTwoLetterISOCodeNormalizesCase(t *testing.T) {
	store := newFakeDirectoryStore()
	svc := NewService(store, nil, nil)
	if _, err := svc.CreateCountry(context.Background(), CountryInput{
		Name: "Canada", TwoLetterISOCode: "CA", ThreeLetterISOCode: "CAN",
	}); err != nil {
		t.Fatalf("create country: %v", err)
	}

	got, err := svc.GetCountryByTwoLetterISOCode(context.Background(), " ca ")
	if err != nil {
		t.Fatalf("get by iso: %v", err)
	}
	if got.Name != "Canada" {
		t.Fatalf("name = %q, want Canada", got.Name)
	}

	if _, err := svc.GetCountryByTwoLetterISOCode(context.Background(), "zz"); apperrors.CodeOf(err) != apperrors.CodeNotFound {
		t.Fatalf("missing code = %v, want %v", apperrors.CodeOf(err), apperrors.CodeNotFound)
	}
	if _, err := svc.GetCountryByTwoLetterISOCode(context.Background(), "z"); apperrors.CodeOf(err) != apperrors.CodeCountryInvalidISOCode {
		t.Fatalf("invalid code = %v, want %v", apperrors.CodeOf(err), apperrors.CodeCountryInvalidISOCode)
	}
}

func TestCreateStateProvinceChecks(t *testing.T) {
	store := newFakeDirectoryStore()
	svc := NewService(store, nil, nil)

	_, err := svc.CreateStateProvince(context.Background(), StateProvinceInput{
		CountryID: "missing", Name: "Ontario",
	})
	if apperrors.CodeOf(err) != apperrors.CodeStateCountryMissing {
		t.Fatalf("missing country code = %v, want %v", apperrors.CodeOf(err), apperrors.CodeStateCountryMissing)
	}

	country, err := svc.CreateCountry(context.Background(), CountryInput{
		Name: "Canada", TwoLetterISOCode: "CA", ThreeLetterISOCode: "CAN",
	})
	if err != nil {
		t.Fatalf("create country: %v", err)
	}

	if _, err := svc.CreateStateProvince(context.Background(), StateProvinceInput{
		CountryID: country.ID, Name: " ",
	}); apperrors.CodeOf(err) != apperrors.CodeStateNameEmpty {
		t.Fatalf("empty name code = %v, want %v", apperrors.CodeOf(err), apperrors.CodeStateNameEmpty)
	}

	if _, err := svc.CreateStateProvince(context.Background(), StateProvinceInput{
		CountryID: country.ID, Name: "Ontario", Abbreviation: "on",
	}); err != nil {
		t.Fatalf("create state: %v", err)
	}
	_, err = svc.CreateStateProvince(context.Background(), StateProvinceInput{
		CountryID: country.ID, Name: "Ontario Clone", Abbreviation: "ON",
	})
	if apperrors.CodeOf(err) != apperrors.CodeStateAbbreviationTaken {
		t.Fatalf("taken abbreviation code = %v, want %v", apperrors.CodeOf(err), apperrors.CodeStateAbbreviationTaken)
	}

	// Blank abbreviations never conflict.
	for _, name := range []string{"First", "Second"} {
		if _, err := svc.CreateStateProvince(context.Background(), StateProvinceInput{
			CountryID: country.ID, Name: name,
		}); err != nil {
			t.Fatalf("create blank abbreviation state %s: %v", name, err)
		}
	}
}

func TestListStateProvincesCachedPerCountry(t *testing.T) {
	store := newFakeDirectoryStore()
	svc := NewService(store, cache.NewMemory(), nil)

	country, err := svc.CreateCountry(context.Background(), CountryInput{
		Name: "Canada", TwoLetterISOCode: "CA", ThreeLetterISOCode: "CAN",
	})
	if err != nil {
		t.Fatalf("create country: %v", err)
	}
	if _, err := svc.CreateStateProvince(context.Background(), StateProvinceInput{
		CountryID: country.ID, Name: "Ontario", Abbreviation: "ON", Published: true,
	}); err != nil {
		t.Fatalf("create state: %v", err)
	}

	first, err := svc.ListStateProvincesByCountry(context.Background(), country.ID, true)
	if err != nil {
		t.Fatalf("list states: %v", err)
	}
	if len(first) != 1 {
		t.Fatalf("first len = %d, want 1", len(first))
	}

	if _, err := svc.CreateStateProvince(context.Background(), StateProvinceInput{
		CountryID: country.ID, Name: "Quebec", Abbreviation: "QC", Published: true,
	}); err != nil {
		t.Fatalf("create second state: %v", err)
	}
	fresh, err := svc.ListStateProvincesByCountry(context.Background(), country.ID, true)
	if err != nil {
		t.Fatalf("list states fresh: %v", err)
	}
	if len(fresh) != 2 {
		t.Fatalf("fresh len = %d, want 2", len(fresh))
	}
}

func newCaptureBus() (*events.Bus, *[]events.Event) {
	bus := events.NewBus()
	published := &[]events.Event{}
	bus.Subscribe("*", "capture", func(_ context.Context, event events.Event) error {
		*published = append(*published, event)
		return nil
	})
	return bus, published
}

type fakeDirectoryStore struct {
	countries map[string]storage.Country
	states    map[string]storage.StateProvince
}

func newFakeDirectoryStore() *fakeDirectoryStore {
	return &fakeDirectoryStore{
		countries: make(map[string]storage.Country),
		states:    make(map[string]storage.StateProvince),
	}
}

func (s *fakeDirectoryStore) PutCountry(_ context.Context, country storage.Country) error {
	s.countries[country.ID] = country
	return nil
}

func (s *fakeDirectoryStore) GetCountry(_ context.Context, id string) (storage.Country, error) {
	country, ok := s.countries[id]
	if !ok {
		return storage.Country{}, storage.ErrNotFound
	}
	return country, nil
}

func (s *fakeDirectoryStore) GetCountryByTwoLetterISOCode(_ context.Context, code string) (storage.Country, error) {
	for _, country := range s.countries {
		if country.TwoLetterISOCode == code {
			return country, nil
		}
	}
	return storage.Country{}, storage.ErrNotFound
}

func (s *fakeDirectoryStore) ListCountries(_ context.Context, onlyPublished bool) ([]storage.Country, error) {
	countries := make([]storage.Country, 0, len(s.countries))
	for _, country := range s.countries {
		if onlyPublished && !country.Published {
			continue
		}
		countries = append(countries, country)
	}
	sort.Slice(countries, func(i, j int) bool {
		if countries[i].DisplayOrder != countries[j].DisplayOrder {
			return countries[i].DisplayOrder < countries[j].DisplayOrder
		}
		return countries[i].Name < countries[j].Name
	})
	return countries, nil
}

func (s *fakeDirectoryStore) DeleteCountry(_ context.Context, id string) error {
	delete(s.countries, id)
	for stateID, state := range s.states {
		if state.CountryID == id {
			delete(s.states, stateID)
		}
	}
	return nil
}

func (s *fakeDirectoryStore) PutStateProvince(_ context.Context, state storage.StateProvince) error {
	s.states[state.ID] = state
	return nil
}

func (s *fakeDirectoryStore) GetStateProvince(_ context.Context, id string) (storage.StateProvince, error) {
	state, ok := s.states[id]
	if !ok {
		return storage.StateProvince{}, storage.ErrNotFound
	}
	return state, nil
}

func (s *fakeDirectoryStore) GetStateProvinceByAbbreviation(_ context.Context, countryID string, abbreviation string) (storage.StateProvince, error) {
	for _, state := range s.states {
		if state.CountryID == countryID && state.Abbreviation == abbreviation {
			return state, nil
		}
	}
	return storage.StateProvince{}, storage.ErrNotFound
}

func (s *fakeDirectoryStore) ListStateProvincesByCountry(_ context.Context, countryID string, onlyPublished bool) ([]storage.StateProvince, error) {
	states := make([]storage.StateProvince, 0)
	for _, state := range s.states {
		if state.CountryID != countryID {
			continue
		}
		if onlyPublished && !state.Published {
			continue
		}
		states = append(states, state)
	}
	sort.Slice(states, func(i, j int) bool {
		if states[i].DisplayOrder != states[j].DisplayOrder {
			return states[i].DisplayOrder < states[j].DisplayOrder
		}
		return states[i].Name < states[j].Name
	})
	return states, nil
}

func (s *fakeDirectoryStore) DeleteStateProvince(_ context.Context, id string) error {
	delete(s.states, id)
	return nil
}
