// Package storage defines persistence contracts for directory service state.
package storage

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound indicates a requested directory record is missing.
var ErrNotFound = errors.New("record not found")

// Country stores one country the platform ships to or bills in.
type Country struct {
	ID                 string
	Name               string
	TwoLetterISOCode   string
	ThreeLetterISOCode string
	NumericISOCode     int
	Published          bool
	DisplayOrder       int
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// StateProvince stores one state or province belonging to a country.
type StateProvince struct {
	ID           string
	CountryID    string
	Name         string
	Abbreviation string
	Published    bool
	DisplayOrder int
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// CountryStore persists countries.
type CountryStore interface {
	PutCountry(ctx context.Context, country Country) error
	GetCountry(ctx context.Context, id string) (Country, error)
	GetCountryByTwoLetterISOCode(ctx context.Context, code string) (Country, error)
	ListCountries(ctx context.Context, onlyPublished bool) ([]Country, error)
	DeleteCountry(ctx context.Context, id string) error
}

// StateProvinceStore persists states and provinces.
type StateProvinceStore interface {
	PutStateProvince(ctx context.Context, state StateProvince) error
	GetStateProvince(ctx context.Context, id string) (StateProvince, error)
	GetStateProvinceByAbbreviation(ctx context.Context, countryID string, abbreviation string) (StateProvince, error)
	ListStateProvincesByCountry(ctx context.Context, countryID string, onlyPublished bool) ([]StateProvince, error)
	DeleteStateProvince(ctx context.Context, id string) error
}

// Store combines all directory persistence concerns.
type Store interface {
	CountryStore
	StateProvinceStore
	Close() error
}
