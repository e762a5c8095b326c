// Package sqlite provides a SQLite-backed directory storage implementation.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	sqlitemigrate "github.com/louisbranch/storefront/internal/platform/storage/sqlitemigrate"
	"github.com/louisbranch/storefront/internal/services/directory/storage"
	"github.com/louisbranch/storefront/internal/services/directory/storage/sqlite/migrations"
	_ "modernc.org/sqlite"
)

// Store persists directory state in SQLite.
type Store struct {
	sqlDB *sql.DB
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

func boolToInt(value bool) int64 {
	if value {
		return 1
	}
	return 0
}

// Open opens a SQLite directory store and applies embedded migrations.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := sqlitemigrate.ApplyMigrations(sqlDB, migrations.FS, ""); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// PutCountry upserts one country by id.
func (s *Store) PutCountry(ctx context.Context, country storage.Country) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	id := strings.TrimSpace(country.ID)
	if id == "" {
		return fmt.Errorf("country id is required")
	}

	_, err := s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO countries (id, name, two_letter_iso_code, three_letter_iso_code, numeric_iso_code, published, display_order, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   name = excluded.name,
		   two_letter_iso_code = excluded.two_letter_iso_code,
		   three_letter_iso_code = excluded.three_letter_iso_code,
		   numeric_iso_code = excluded.numeric_iso_code,
		   published = excluded.published,
		   display_order = excluded.display_order,
		   updated_at = excluded.updated_at`,
		id,
		country.Name,
		country.TwoLetterISOCode,
		country.ThreeLetterISOCode,
		country.NumericISOCode,
		boolToInt(country.Published),
		country.DisplayOrder,
		toMillis(country.CreatedAt),
		toMillis(country.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("put country: %w", err)
	}
	return nil
}

// GetCountry returns one country by id.
func (s *Store) GetCountry(ctx context.Context, id string) (storage.Country, error) {
	if err := ctx.Err(); err != nil {
		return storage.Country{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.Country{}, fmt.Errorf("storage is not configured")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return storage.Country{}, fmt.Errorf("country id is required")
	}

	row := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT id, name, two_letter_iso_code, three_letter_iso_code, numeric_iso_code, published, display_order, created_at, updated_at
		 FROM countries
		 WHERE id = ?`,
		id,
	)
	return scanCountry(row)
}

// GetCountryByTwoLetterISOCode returns one country by its two-letter ISO code.
func (s *Store) GetCountryByTwoLetterISOCode(ctx context.Context, code string) (storage.Country, error) {
	if err := ctx.Err(); err != nil {
		return storage.Country{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.Country{}, fmt.Errorf("storage is not configured")
	}
	code = strings.TrimSpace(code)
	if code == "" {
		return storage.Country{}, fmt.Errorf("iso code is required")
	}

	row := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT id, name, two_letter_iso_code, three_letter_iso_code, numeric_iso_code, published, display_order, created_at, updated_at
		 FROM countries
		 WHERE two_letter_iso_code = ?`,
		code,
	)
	return scanCountry(row)
}

// ListCountries returns all countries ordered by display order then name.
func (s *Store) ListCountries(ctx context.Context, onlyPublished bool) ([]storage.Country, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}

	query := `SELECT id, name, two_letter_iso_code, three_letter_iso_code, numeric_iso_code, published, display_order, created_at, updated_at
		 FROM countries`
	if onlyPublished {
		query += ` WHERE published = 1`
	}
	query += ` ORDER BY display_order ASC, name ASC`

	rows, err := s.sqlDB.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list countries: %w", err)
	}
	defer rows.Close()

	countries := make([]storage.Country, 0)
	for rows.Next() {
		country, err := scanCountry(rows)
		if err != nil {
			return nil, fmt.Errorf("list countries: %w", err)
		}
		countries = append(countries, country)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list countries: %w", err)
	}
	return countries, nil
}

// DeleteCountry removes one country. States referencing it cascade away.
func (s *Store) DeleteCountry(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("country id is required")
	}

	_, err := s.sqlDB.ExecContext(ctx, `DELETE FROM countries WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete country: %w", err)
	}
	return nil
}

// PutStateProvince upserts one state or province by id.
func (s *Store) PutStateProvince(ctx context.Context, state storage.StateProvince) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	id := strings.TrimSpace(state.ID)
	if id == "" {
		return fmt.Errorf("state id is required")
	}
	countryID := strings.TrimSpace(state.CountryID)
	if countryID == "" {
		return fmt.Errorf("country id is required")
	}

	_, err := s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO state_provinces (id, country_id, name, abbreviation, published, display_order, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   country_id = excluded.country_id,
		   name = excluded.name,
		   abbreviation = excluded.abbreviation,
		   published = excluded.published,
		   display_order = excluded.display_order,
		   updated_at = excluded.updated_at`,
		id,
		countryID,
		state.Name,
		state.Abbreviation,
		boolToInt(state.Published),
		state.DisplayOrder,
		toMillis(state.CreatedAt),
		toMillis(state.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("put state province: %w", err)
	}
	return nil
}

// GetStateProvince returns one state or province by id.
func (s *Store) GetStateProvince(ctx context.Context, id string) (storage.StateProvince, error) {
	if err := ctx.Err(); err != nil {
		return storage.StateProvince{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.StateProvince{}, fmt.Errorf("storage is not configured")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return storage.StateProvince{}, fmt.Errorf("state id is required")
	}

	row := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT id, country_id, name, abbreviation, published, display_order, created_at, updated_at
		 FROM state_provinces
		 WHERE id = ?`,
		id,
	)
	return scanStateProvince(row)
}

// GetStateProvinceByAbbreviation returns one state by country and abbreviation.
func (s *Store) GetStateProvinceByAbbreviation(ctx context.Context, countryID string, abbreviation string) (storage.StateProvince, error) {
	if err := ctx.Err(); err != nil {
		return storage.StateProvince{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.StateProvince{}, fmt.Errorf("storage is not configured")
	}
	countryID = strings.TrimSpace(countryID)
	if countryID == "" {
		return storage.StateProvince{}, fmt.Errorf("country id is required")
	}
	abbreviation = strings.TrimSpace(abbreviation)
	if abbreviation == "" {
		return storage.StateProvince{}, fmt.Errorf("abbreviation is required")
	}

	row := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT id, country_id, name, abbreviation, published, display_order, created_at, updated_at
		 FROM state_provinces
		 WHERE country_id = ? AND abbreviation = ?`,
		countryID,
		abbreviation,
	)
	return scanStateProvince(row)
}

// ListStateProvincesByCountry returns the states of one country ordered by
// display order then name.
func (s *Store) ListStateProvincesByCountry(ctx context.Context, countryID string, onlyPublished bool) ([]storage.StateProvince, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	countryID = strings.TrimSpace(countryID)
	if countryID == "" {
		return nil, fmt.Errorf("country id is required")
	}

	query := `SELECT id, country_id, name, abbreviation, published, display_order, created_at, updated_at
		 FROM state_provinces
		 WHERE country_id = ?`
	if onlyPublished {
		query += ` AND published = 1`
	}
	query += ` ORDER BY display_order ASC, name ASC`

	rows, err := s.sqlDB.QueryContext(ctx, query, countryID)
	if err != nil {
		return nil, fmt.Errorf("list state provinces: %w", err)
	}
	defer rows.Close()

	states := make([]storage.StateProvince, 0)
	for rows.Next() {
		state, err := scanStateProvince(rows)
		if err != nil {
			return nil, fmt.Errorf("list state provinces: %w", err)
		}
		states = append(states, state)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list state provinces: %w", err)
	}
	return states, nil
}

// DeleteStateProvince removes one state or province.
func (s *Store) DeleteStateProvince(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("state id is required")
	}

	_, err := s.sqlDB.ExecContext(ctx, `DELETE FROM state_provinces WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete state province: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCountry(row rowScanner) (storage.Country, error) {
	var (
		country   storage.Country
		published int64
		createdAt int64
		updatedAt int64
	)
	err := row.Scan(
		&country.ID,
		&country.Name,
		&country.TwoLetterISOCode,
		&country.ThreeLetterISOCode,
		&country.NumericISOCode,
		&published,
		&country.DisplayOrder,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.Country{}, storage.ErrNotFound
		}
		return storage.Country{}, fmt.Errorf("scan country: %w", err)
	}
	country.Published = published != 0
	country.CreatedAt = fromMillis(createdAt)
	country.UpdatedAt = fromMillis(updatedAt)
	return country, nil
}

func scanStateProvince(row rowScanner) (storage.StateProvince, error) {
	var (
		state     storage.StateProvince
		published int64
		createdAt int64
		updatedAt int64
	)
	err := row.Scan(
		&state.ID,
		&state.CountryID,
		&state.Name,
		&state.Abbreviation,
		&published,
		&state.DisplayOrder,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.StateProvince{}, storage.ErrNotFound
		}
		return storage.StateProvince{}, fmt.Errorf("scan state province: %w", err)
	}
	state.Published = published != 0
	state.CreatedAt = fromMillis(createdAt)
	state.UpdatedAt = fromMillis(updatedAt)
	return state, nil
}

var _ storage.Store = (*Store)(nil)
