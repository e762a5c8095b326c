package directory

import (
	"context"
	"errors"
	"fmt"

	"github.com/louisbranch/storefront/internal/platform/id"
	"github.com/louisbranch/storefront/internal/services/directory/storage"
)

// StateSeed installs one state or province under a seeded country.
type StateSeed struct {
	Name         string
	Abbreviation string
	DisplayOrder int
}

// CountrySeed installs one country with its states.
type CountrySeed struct {
	Name               string
	TwoLetterISOCode   string
	ThreeLetterISOCode string
	NumericISOCode     int
	DisplayOrder       int
	States             []StateSeed
}

// BuiltinCountries lists the directory records every deployment starts with.
// Installs are additive: operators extend the set through the admin API.
func BuiltinCountries() []CountrySeed {
	return []CountrySeed{
		{Name: "United States", TwoLetterISOCode: "US", ThreeLetterISOCode: "USA", NumericISOCode: 840, DisplayOrder: 1, States: []StateSeed{
			{Name: "California", Abbreviation: "CA", DisplayOrder: 1},
			{Name: "New York", Abbreviation: "NY", DisplayOrder: 2},
			{Name: "Texas", Abbreviation: "TX", DisplayOrder: 3},
			{Name: "Washington", Abbreviation: "WA", DisplayOrder: 4},
		}},
		{Name: "Canada", TwoLetterISOCode: "CA", ThreeLetterISOCode: "CAN", NumericISOCode: 124, DisplayOrder: 2, States: []StateSeed{
			{Name: "Ontario", Abbreviation: "ON", DisplayOrder: 1},
			{Name: "Quebec", Abbreviation: "QC", DisplayOrder: 2},
			{Name: "British Columbia", Abbreviation: "BC", DisplayOrder: 3},
		}},
		{Name: "Brazil", TwoLetterISOCode: "BR", ThreeLetterISOCode: "BRA", NumericISOCode: 76, DisplayOrder: 3, States: []StateSeed{
			{Name: "São Paulo", Abbreviation: "SP", DisplayOrder: 1},
			{Name: "Rio de Janeiro", Abbreviation: "RJ", DisplayOrder: 2},
			{Name: "Minas Gerais", Abbreviation: "MG", DisplayOrder: 3},
		}},
		{Name: "United Kingdom", TwoLetterISOCode: "GB", ThreeLetterISOCode: "GBR", NumericISOCode: 826, DisplayOrder: 4},
		{Name: "Germany", TwoLetterISOCode: "DE", ThreeLetterISOCode: "DEU", NumericISOCode: 276, DisplayOrder: 5},
	}
}

// EnsureCountry installs a country and its states when absent. Existing
// records are left untouched and no events are published, so installs can
// run on every start without rewriting operator edits.
func (s *Service) EnsureCountry(ctx context.Context, seed CountrySeed) (storage.Country, error) {
	if s == nil || s.store == nil {
		return storage.Country{}, fmt.Errorf("directory service is not configured")
	}
	country, err := normalizeCountry(CountryInput{
		Name:               seed.Name,
		TwoLetterISOCode:   seed.TwoLetterISOCode,
		ThreeLetterISOCode: seed.ThreeLetterISOCode,
		NumericISOCode:     seed.NumericISOCode,
		Published:          true,
		DisplayOrder:       seed.DisplayOrder,
	})
	if err != nil {
		return storage.Country{}, err
	}

	existing, err := s.store.GetCountryByTwoLetterISOCode(ctx, country.TwoLetterISOCode)
	switch {
	case err == nil:
		country = existing
	case errors.Is(err, storage.ErrNotFound):
		newID, idErr := id.NewID()
		if idErr != nil {
			return storage.Country{}, fmt.Errorf("new country id: %w", idErr)
		}
		now := s.clock().UTC()
		country.ID = newID
		country.CreatedAt = now
		country.UpdatedAt = now
		if err := s.store.PutCountry(ctx, country); err != nil {
			return storage.Country{}, fmt.Errorf("store country %s: %w", country.TwoLetterISOCode, err)
		}
	default:
		return storage.Country{}, fmt.Errorf("load country %s: %w", country.TwoLetterISOCode, err)
	}

	for _, stateSeed := range seed.States {
		if err := s.ensureStateProvince(ctx, country.ID, stateSeed); err != nil {
			return storage.Country{}, err
		}
	}
	s.invalidate(ctx)
	return country, nil
}

func (s *Service) ensureStateProvince(ctx context.Context, countryID string, seed StateSeed) error {
	state, err := normalizeStateProvince(StateProvinceInput{
		CountryID:    countryID,
		Name:         seed.Name,
		Abbreviation: seed.Abbreviation,
		Published:    true,
		DisplayOrder: seed.DisplayOrder,
	})
	if err != nil {
		return err
	}

	_, err = s.store.GetStateProvinceByAbbreviation(ctx, countryID, state.Abbreviation)
	if err == nil {
		return nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("load state %s: %w", state.Abbreviation, err)
	}

	newID, err := id.NewID()
	if err != nil {
		return fmt.Errorf("new state id: %w", err)
	}
	now := s.clock().UTC()
	state.ID = newID
	state.CreatedAt = now
	state.UpdatedAt = now
	if err := s.store.PutStateProvince(ctx, state); err != nil {
		return fmt.Errorf("store state %s: %w", state.Abbreviation, err)
	}
	return nil
}
