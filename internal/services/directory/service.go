// Package directory manages the countries and state/provinces the platform
// ships to and bills in. Reads are cached and every mutation invalidates the
// whole directory cache namespace and publishes a change event.
package directory

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/louisbranch/storefront/internal/platform/cache"
	apperrors "github.com/louisbranch/storefront/internal/platform/errors"
	"github.com/louisbranch/storefront/internal/platform/events"
	"github.com/louisbranch/storefront/internal/platform/id"
	"github.com/louisbranch/storefront/internal/services/directory/storage"
)

const cachePrefix = "directory:"

const defaultCacheTTL = 5 * time.Minute

type countryAndStateStore interface {
	storage.CountryStore
	storage.StateProvinceStore
}

// CountryInput carries the caller-provided fields of a country.
type CountryInput struct {
	Name               string
	TwoLetterISOCode   string
	ThreeLetterISOCode string
	NumericISOCode     int
	Published          bool
	DisplayOrder       int
}

// StateProvinceInput carries the caller-provided fields of a state/province.
type StateProvinceInput struct {
	CountryID    string
	Name         string
	Abbreviation string
	Published    bool
	DisplayOrder int
}

// Service implements directory operations over a storage backend.
type Service struct {
	store countryAndStateStore
	cache cache.Cache
	bus   *events.Bus
	clock func() time.Time

	cacheTTL time.Duration
}

// NewService wires a directory service. The cache and bus may be nil, in
// which case reads hit storage directly and events are dropped.
func NewService(store countryAndStateStore, cacheStore cache.Cache, bus *events.Bus) *Service {
	return &Service{
		store:    store,
		cache:    cacheStore,
		bus:      bus,
		clock:    time.Now,
		cacheTTL: defaultCacheTTL,
	}
}

// SetCacheTTL overrides how long cached directory reads live. Non-positive
// values are ignored.
func (s *Service) SetCacheTTL(ttl time.Duration) {
	if s == nil || ttl <= 0 {
		return
	}
	s.cacheTTL = ttl
}

// CreateCountry validates and stores a new country.
func (s *Service) CreateCountry(ctx context.Context, input CountryInput) (storage.Country, error) {
	if s == nil || s.store == nil {
		return storage.Country{}, fmt.Errorf("directory service is not configured")
	}
	country, err := normalizeCountry(input)
	if err != nil {
		return storage.Country{}, err
	}
	if err := s.checkISOCodeFree(ctx, country.TwoLetterISOCode, ""); err != nil {
		return storage.Country{}, err
	}

	newID, err := id.NewID()
	if err != nil {
		return storage.Country{}, fmt.Errorf("new country id: %w", err)
	}
	now := s.clock().UTC()
	country.ID = newID
	country.CreatedAt = now
	country.UpdatedAt = now

	if err := s.store.PutCountry(ctx, country); err != nil {
		return storage.Country{}, fmt.Errorf("put country: %w", err)
	}
	s.invalidate(ctx)
	s.bus.Publish(ctx, events.CountryCreated, events.CountryEvent{CountryID: country.ID, Name: country.Name})
	return country, nil
}

// UpdateCountry validates and rewrites an existing country.
func (s *Service) UpdateCountry(ctx context.Context, countryID string, input CountryInput) (storage.Country, error) {
	if s == nil || s.store == nil {
		return storage.Country{}, fmt.Errorf("directory service is not configured")
	}
	countryID = strings.TrimSpace(countryID)
	if countryID == "" {
		return storage.Country{}, apperrors.New(apperrors.CodeInvalidArgument, "country id is required")
	}
	existing, err := s.store.GetCountry(ctx, countryID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return storage.Country{}, apperrors.Wrap(apperrors.CodeNotFound, "country not found", err)
		}
		return storage.Country{}, fmt.Errorf("get country: %w", err)
	}

	country, err := normalizeCountry(input)
	if err != nil {
		return storage.Country{}, err
	}
	if err := s.checkISOCodeFree(ctx, country.TwoLetterISOCode, existing.ID); err != nil {
		return storage.Country{}, err
	}

	country.ID = existing.ID
	country.CreatedAt = existing.CreatedAt
	country.UpdatedAt = s.clock().UTC()

	if err := s.store.PutCountry(ctx, country); err != nil {
		return storage.Country{}, fmt.Errorf("put country: %w", err)
	}
	s.invalidate(ctx)
	s.bus.Publish(ctx, events.CountryUpdated, events.CountryEvent{CountryID: country.ID, Name: country.Name})
	return country, nil
}

// DeleteCountry removes a country and, through the storage cascade, its
// states and provinces.
func (s *Service) DeleteCountry(ctx context.Context, countryID string) error {
	if s == nil || s.store == nil {
		return fmt.Errorf("directory service is not configured")
	}
	countryID = strings.TrimSpace(countryID)
	if countryID == "" {
		return apperrors.New(apperrors.CodeInvalidArgument, "country id is required")
	}
	existing, err := s.store.GetCountry(ctx, countryID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return apperrors.Wrap(apperrors.CodeNotFound, "country not found", err)
		}
		return fmt.Errorf("get country: %w", err)
	}
	if err := s.store.DeleteCountry(ctx, existing.ID); err != nil {
		return fmt.Errorf("delete country: %w", err)
	}
	s.invalidate(ctx)
	s.bus.Publish(ctx, events.CountryDeleted, events.CountryEvent{CountryID: existing.ID, Name: existing.Name})
	return nil
}

// GetCountry returns one country by id, served from cache when possible.
func (s *Service) GetCountry(ctx context.Context, countryID string) (storage.Country, error) {
	if s == nil || s.store == nil {
		return storage.Country{}, fmt.Errorf("directory service is not configured")
	}
	countryID = strings.TrimSpace(countryID)
	if countryID == "" {
		return storage.Country{}, apperrors.New(apperrors.CodeInvalidArgument, "country id is required")
	}
	return cache.GetOrLoad(ctx, s.cache, cachePrefix+"country:id:"+countryID, s.cacheTTL, func(ctx context.Context) (storage.Country, error) {
		country, err := s.store.GetCountry(ctx, countryID)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return storage.Country{}, apperrors.Wrap(apperrors.CodeNotFound, "country not found", err)
			}
			return storage.Country{}, fmt.Errorf("get country: %w", err)
		}
		return country, nil
	})
}

// GetCountryByTwoLetterISOCode returns one country by its two-letter code,
// served from cache when possible.
func (s *Service) GetCountryByTwoLetterISOCode(ctx context.Context, code string) (storage.Country, error) {
	if s == nil || s.store == nil {
		return storage.Country{}, fmt.Errorf("directory service is not configured")
	}
	code = strings.ToUpper(strings.TrimSpace(code))
	if !isLetters(code, 2) {
		return storage.Country{}, apperrors.WithMetadata(apperrors.CodeCountryInvalidISOCode, "two-letter iso code must be two letters", map[string]string{"iso_code": code})
	}
	return cache.GetOrLoad(ctx, s.cache, cachePrefix+"country:iso:"+code, s.cacheTTL, func(ctx context.Context) (storage.Country, error) {
		country, err := s.store.GetCountryByTwoLetterISOCode(ctx, code)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return storage.Country{}, apperrors.Wrap(apperrors.CodeNotFound, "country not found", err)
			}
			return storage.Country{}, fmt.Errorf("get country by iso code: %w", err)
		}
		return country, nil
	})
}

// ListCountries returns all countries ordered for display, served from cache
// when possible.
func (s *Service) ListCountries(ctx context.Context, onlyPublished bool) ([]storage.Country, error) {
	if s == nil || s.store == nil {
		return nil, fmt.Errorf("directory service is not configured")
	}
	key := cachePrefix + "countries:all"
	if onlyPublished {
		key = cachePrefix + "countries:published"
	}
	return cache.GetOrLoad(ctx, s.cache, key, s.cacheTTL, func(ctx context.Context) ([]storage.Country, error) {
		return s.store.ListCountries(ctx, onlyPublished)
	})
}

// CreateStateProvince validates and stores a new state or province.
func (s *Service) CreateStateProvince(ctx context.Context, input StateProvinceInput) (storage.StateProvince, error) {
	if s == nil || s.store == nil {
		return storage.StateProvince{}, fmt.Errorf("directory service is not configured")
	}
	state, err := normalizeStateProvince(input)
	if err != nil {
		return storage.StateProvince{}, err
	}
	if err := s.checkStateCountry(ctx, state.CountryID); err != nil {
		return storage.StateProvince{}, err
	}
	if err := s.checkAbbreviationFree(ctx, state.CountryID, state.Abbreviation, ""); err != nil {
		return storage.StateProvince{}, err
	}

	newID, err := id.NewID()
	if err != nil {
		return storage.StateProvince{}, fmt.Errorf("new state id: %w", err)
	}
	now := s.clock().UTC()
	state.ID = newID
	state.CreatedAt = now
	state.UpdatedAt = now

	if err := s.store.PutStateProvince(ctx, state); err != nil {
		return storage.StateProvince{}, fmt.Errorf("put state province: %w", err)
	}
	s.invalidate(ctx)
	s.bus.Publish(ctx, events.StateCreated, events.StateEvent{StateID: state.ID, CountryID: state.CountryID, Name: state.Name})
	return state, nil
}

// UpdateStateProvince validates and rewrites an existing state or province.
func (s *Service) UpdateStateProvince(ctx context.Context, stateID string, input StateProvinceInput) (storage.StateProvince, error) {
	if s == nil || s.store == nil {
		return storage.StateProvince{}, fmt.Errorf("directory service is not configured")
	}
	stateID = strings.TrimSpace(stateID)
	if stateID == "" {
		return storage.StateProvince{}, apperrors.New(apperrors.CodeInvalidArgument, "state id is required")
	}
	existing, err := s.store.GetStateProvince(ctx, stateID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return storage.StateProvince{}, apperrors.Wrap(apperrors.CodeNotFound, "state province not found", err)
		}
		return storage.StateProvince{}, fmt.Errorf("get state province: %w", err)
	}

	state, err := normalizeStateProvince(input)
	if err != nil {
		return storage.StateProvince{}, err
	}
	if err := s.checkStateCountry(ctx, state.CountryID); err != nil {
		return storage.StateProvince{}, err
	}
	if err := s.checkAbbreviationFree(ctx, state.CountryID, state.Abbreviation, existing.ID); err != nil {
		return storage.StateProvince{}, err
	}

	state.ID = existing.ID
	state.CreatedAt = existing.CreatedAt
	state.UpdatedAt = s.clock().UTC()

	if err := s.store.PutStateProvince(ctx, state); err != nil {
		return storage.StateProvince{}, fmt.Errorf("put state province: %w", err)
	}
	s.invalidate(ctx)
	s.bus.Publish(ctx, events.StateUpdated, events.StateEvent{StateID: state.ID, CountryID: state.CountryID, Name: state.Name})
	return state, nil
}

// DeleteStateProvince removes one state or province.
func (s *Service) DeleteStateProvince(ctx context.Context, stateID string) error {
	if s == nil || s.store == nil {
		return fmt.Errorf("directory service is not configured")
	}
	stateID = strings.TrimSpace(stateID)
	if stateID == "" {
		return apperrors.New(apperrors.CodeInvalidArgument, "state id is required")
	}
	existing, err := s.store.GetStateProvince(ctx, stateID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return apperrors.Wrap(apperrors.CodeNotFound, "state province not found", err)
		}
		return fmt.Errorf("get state province: %w", err)
	}
	if err := s.store.DeleteStateProvince(ctx, existing.ID); err != nil {
		return fmt.Errorf("delete state province: %w", err)
	}
	s.invalidate(ctx)
	s.bus.Publish(ctx, events.StateDeleted, events.StateEvent{StateID: existing.ID, CountryID: existing.CountryID, Name: existing.Name})
	return nil
}

// GetStateProvince returns one state or province by id.
func (s *Service) GetStateProvince(ctx context.Context, stateID string) (storage.StateProvince, error) {
	if s == nil || s.store == nil {
		return storage.StateProvince{}, fmt.Errorf("directory service is not configured")
	}
	stateID = strings.TrimSpace(stateID)
	if stateID == "" {
		return storage.StateProvince{}, apperrors.New(apperrors.CodeInvalidArgument, "state id is required")
	}
	state, err := s.store.GetStateProvince(ctx, stateID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return storage.StateProvince{}, apperrors.Wrap(apperrors.CodeNotFound, "state province not found", err)
		}
		return storage.StateProvince{}, fmt.Errorf("get state province: %w", err)
	}
	return state, nil
}

// GetStateProvinceByAbbreviation returns one state by country and
// abbreviation.
func (s *Service) GetStateProvinceByAbbreviation(ctx context.Context, countryID string, abbreviation string) (storage.StateProvince, error) {
	if s == nil || s.store == nil {
		return storage.StateProvince{}, fmt.Errorf("directory service is not configured")
	}
	countryID = strings.TrimSpace(countryID)
	if countryID == "" {
		return storage.StateProvince{}, apperrors.New(apperrors.CodeInvalidArgument, "country id is required")
	}
	abbreviation = strings.ToUpper(strings.TrimSpace(abbreviation))
	if abbreviation == "" {
		return storage.StateProvince{}, apperrors.New(apperrors.CodeInvalidArgument, "abbreviation is required")
	}
	state, err := s.store.GetStateProvinceByAbbreviation(ctx, countryID, abbreviation)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return storage.StateProvince{}, apperrors.Wrap(apperrors.CodeNotFound, "state province not found", err)
		}
		return storage.StateProvince{}, fmt.Errorf("get state by abbreviation: %w", err)
	}
	return state, nil
}

// ListStateProvincesByCountry returns the states of one country ordered for
// display, served from cache when possible.
func (s *Service) ListStateProvincesByCountry(ctx context.Context, countryID string, onlyPublished bool) ([]storage.StateProvince, error) {
	if s == nil || s.store == nil {
		return nil, fmt.Errorf("directory service is not configured")
	}
	countryID = strings.TrimSpace(countryID)
	if countryID == "" {
		return nil, apperrors.New(apperrors.CodeInvalidArgument, "country id is required")
	}
	key := cachePrefix + "states:" + countryID + ":all"
	if onlyPublished {
		key = cachePrefix + "states:" + countryID + ":published"
	}
	return cache.GetOrLoad(ctx, s.cache, key, s.cacheTTL, func(ctx context.Context) ([]storage.StateProvince, error) {
		return s.store.ListStateProvincesByCountry(ctx, countryID, onlyPublished)
	})
}

func (s *Service) checkISOCodeFree(ctx context.Context, code string, allowID string) error {
	existing, err := s.store.GetCountryByTwoLetterISOCode(ctx, code)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("check iso code: %w", err)
	}
	if existing.ID != allowID {
		return apperrors.WithMetadata(apperrors.CodeCountryISOCodeTaken, "two-letter iso code is already in use", map[string]string{"iso_code": code})
	}
	return nil
}

func (s *Service) checkStateCountry(ctx context.Context, countryID string) error {
	_, err := s.store.GetCountry(ctx, countryID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return apperrors.WithMetadata(apperrors.CodeStateCountryMissing, "country does not exist", map[string]string{"country_id": countryID})
		}
		return fmt.Errorf("get country: %w", err)
	}
	return nil
}

func (s *Service) checkAbbreviationFree(ctx context.Context, countryID string, abbreviation string, allowID string) error {
	if abbreviation == "" {
		return nil
	}
	existing, err := s.store.GetStateProvinceByAbbreviation(ctx, countryID, abbreviation)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("check abbreviation: %w", err)
	}
	if existing.ID != allowID {
		return apperrors.WithMetadata(apperrors.CodeStateAbbreviationTaken, "abbreviation is already in use in this country", map[string]string{"abbreviation": abbreviation})
	}
	return nil
}

func (s *Service) invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeletePrefix(ctx, cachePrefix); err != nil {
		log.Printf("directory: invalidate cache: %v", err)
	}
}

func normalizeCountry(input CountryInput) (storage.Country, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return storage.Country{}, apperrors.New(apperrors.CodeCountryNameEmpty, "country name is required")
	}
	twoLetter := strings.ToUpper(strings.TrimSpace(input.TwoLetterISOCode))
	if !isLetters(twoLetter, 2) {
		return storage.Country{}, apperrors.WithMetadata(apperrors.CodeCountryInvalidISOCode, "two-letter iso code must be two letters", map[string]string{"iso_code": input.TwoLetterISOCode})
	}
	threeLetter := strings.ToUpper(strings.TrimSpace(input.ThreeLetterISOCode))
	if !isLetters(threeLetter, 3) {
		return storage.Country{}, apperrors.WithMetadata(apperrors.CodeCountryInvalidISOCode, "three-letter iso code must be three letters", map[string]string{"iso_code": input.ThreeLetterISOCode})
	}
	if input.NumericISOCode < 0 || input.NumericISOCode > 999 {
		return storage.Country{}, apperrors.WithMetadata(apperrors.CodeCountryInvalidISOCode, "numeric iso code must be between 0 and 999", map[string]string{"iso_code": fmt.Sprintf("%d", input.NumericISOCode)})
	}
	return storage.Country{
		Name:               name,
		TwoLetterISOCode:   twoLetter,
		ThreeLetterISOCode: threeLetter,
		NumericISOCode:     input.NumericISOCode,
		Published:          input.Published,
		DisplayOrder:       input.DisplayOrder,
	}, nil
}

func normalizeStateProvince(input StateProvinceInput) (storage.StateProvince, error) {
	countryID := strings.TrimSpace(input.CountryID)
	if countryID == "" {
		return storage.StateProvince{}, apperrors.New(apperrors.CodeStateEmptyCountryID, "state or province requires a country")
	}
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return storage.StateProvince{}, apperrors.New(apperrors.CodeStateNameEmpty, "state or province name is required")
	}
	return storage.StateProvince{
		CountryID:    countryID,
		Name:         name,
		Abbreviation: strings.ToUpper(strings.TrimSpace(input.Abbreviation)),
		Published:    input.Published,
		DisplayOrder: input.DisplayOrder,
	}, nil
}

func isLetters(value string, length int) bool {
	if len(value) != length {
		return false
	}
	for _, r := range value {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return true
}
