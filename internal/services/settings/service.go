// Package settings manages persisted configuration: dotted, lowercased keys
// mapping to string values, with typed accessors on top. Reads are cached
// and every mutation invalidates the whole settings cache namespace and
// publishes a change event.
package settings

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/louisbranch/storefront/internal/platform/cache"
	apperrors "github.com/louisbranch/storefront/internal/platform/errors"
	"github.com/louisbranch/storefront/internal/platform/events"
	"github.com/louisbranch/storefront/internal/platform/id"
	"github.com/louisbranch/storefront/internal/services/settings/storage"
)

const cachePrefix = "settings:"

const defaultCacheTTL = 5 * time.Minute

// Known setting names. Seeded with defaults on first run; operators change
// the values, not the names.
const (
	KeyPlatformName         = "platform.name"
	KeyActivityRetention    = "activity.retention"
	KeyActivityStreamBuffer = "activity.stream.buffer"
	KeyDirectoryCacheTTL    = "directory.cache.ttl"
)

// Default is one seeded setting.
type Default struct {
	Name  string
	Value string
}

// Defaults returns the settings seeded on a fresh installation.
func Defaults() []Default {
	return []Default{
		{Name: KeyPlatformName, Value: "Storefront"},
		{Name: KeyActivityRetention, Value: "2160h"},
		{Name: KeyActivityStreamBuffer, Value: "16"},
		{Name: KeyDirectoryCacheTTL, Value: "5m"},
	}
}

// cachedSetting is the cached shape of one lookup. Absent settings are
// cached too so repeated fallback reads stay off the database.
type cachedSetting struct {
	Value string
	Found bool
}

// Service implements settings operations over a storage backend.
type Service struct {
	store storage.SettingStore
	cache cache.Cache
	bus   *events.Bus
	clock func() time.Time

	cacheTTL time.Duration
}

// NewService wires a settings service. The cache and bus may be nil, in
// which case reads hit storage directly and events are dropped.
func NewService(store storage.SettingStore, cacheStore cache.Cache, bus *events.Bus) *Service {
	return &Service{
		store:    store,
		cache:    cacheStore,
		bus:      bus,
		clock:    time.Now,
		cacheTTL: defaultCacheTTL,
	}
}

// SetCacheTTL overrides how long cached setting reads live. Non-positive
// values are ignored.
func (s *Service) SetCacheTTL(ttl time.Duration) {
	if s == nil || ttl <= 0 {
		return
	}
	s.cacheTTL = ttl
}

// Get returns the raw value of a setting and whether it is on record.
// Storage trouble answers as absent with a log line so config lookups never
// take a caller down.
func (s *Service) Get(ctx context.Context, name string) (string, bool) {
	if s == nil || s.store == nil {
		return "", false
	}
	normalized, err := normalizeName(name)
	if err != nil {
		return "", false
	}
	entry, err := cache.GetOrLoad(ctx, s.cache, cachePrefix+"name:"+normalized, s.cacheTTL, func(ctx context.Context) (cachedSetting, error) {
		setting, err := s.store.GetSetting(ctx, normalized)
		if errors.Is(err, storage.ErrNotFound) {
			return cachedSetting{}, nil
		}
		if err != nil {
			return cachedSetting{}, fmt.Errorf("get setting: %w", err)
		}
		return cachedSetting{Value: setting.Value, Found: true}, nil
	})
	if err != nil {
		log.Printf("settings: get %s: %v", normalized, err)
		return "", false
	}
	return entry.Value, entry.Found
}

// GetInt returns a setting parsed as an integer, or fallback when the
// setting is absent. A present but unparsable value is an error.
func (s *Service) GetInt(ctx context.Context, name string, fallback int) (int, error) {
	raw, ok := s.Get(ctx, name)
	if !ok {
		return fallback, nil
	}
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return fallback, invalidValue(name, err)
	}
	return value, nil
}

// GetBool returns a setting parsed as a boolean, or fallback when the
// setting is absent. A present but unparsable value is an error.
func (s *Service) GetBool(ctx context.Context, name string, fallback bool) (bool, error) {
	raw, ok := s.Get(ctx, name)
	if !ok {
		return fallback, nil
	}
	value, err := strconv.ParseBool(strings.TrimSpace(raw))
	if err != nil {
		return fallback, invalidValue(name, err)
	}
	return value, nil
}

// GetDuration returns a setting parsed as a duration, or fallback when the
// setting is absent. A present but unparsable value is an error.
func (s *Service) GetDuration(ctx context.Context, name string, fallback time.Duration) (time.Duration, error) {
	raw, ok := s.Get(ctx, name)
	if !ok {
		return fallback, nil
	}
	value, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return fallback, invalidValue(name, err)
	}
	return value, nil
}

// Set stores a setting value, creating the setting when the name is new.
func (s *Service) Set(ctx context.Context, name, value string) (storage.Setting, error) {
	if s == nil || s.store == nil {
		return storage.Setting{}, fmt.Errorf("settings service is not configured")
	}
	normalized, err := normalizeName(name)
	if err != nil {
		return storage.Setting{}, err
	}

	now := s.clock().UTC()
	setting := storage.Setting{
		Name:      normalized,
		Value:     value,
		CreatedAt: now,
		UpdatedAt: now,
	}
	existing, err := s.store.GetSetting(ctx, normalized)
	switch {
	case err == nil:
		setting.ID = existing.ID
		setting.CreatedAt = existing.CreatedAt
	case errors.Is(err, storage.ErrNotFound):
		newID, err := id.NewID()
		if err != nil {
			return storage.Setting{}, fmt.Errorf("new setting id: %w", err)
		}
		setting.ID = newID
	default:
		return storage.Setting{}, fmt.Errorf("get setting: %w", err)
	}

	if err := s.store.PutSetting(ctx, setting); err != nil {
		return storage.Setting{}, fmt.Errorf("put setting: %w", err)
	}
	s.invalidate(ctx)
	s.bus.Publish(ctx, events.SettingUpdated, events.SettingEvent{Name: setting.Name})
	return setting, nil
}

// Delete removes a setting by name.
func (s *Service) Delete(ctx context.Context, name string) error {
	if s == nil || s.store == nil {
		return fmt.Errorf("settings service is not configured")
	}
	normalized, err := normalizeName(name)
	if err != nil {
		return err
	}
	if err := s.store.DeleteSetting(ctx, normalized); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return apperrors.Wrap(apperrors.CodeNotFound, "setting not found", err)
		}
		return fmt.Errorf("delete setting: %w", err)
	}
	s.invalidate(ctx)
	s.bus.Publish(ctx, events.SettingDeleted, events.SettingEvent{Name: normalized})
	return nil
}

// List returns all settings whose name starts with prefix, ordered by name,
// served from cache when possible. An empty prefix returns everything.
func (s *Service) List(ctx context.Context, prefix string) ([]storage.Setting, error) {
	if s == nil || s.store == nil {
		return nil, fmt.Errorf("settings service is not configured")
	}
	prefix = strings.ToLower(strings.TrimSpace(prefix))
	return cache.GetOrLoad(ctx, s.cache, cachePrefix+"list:"+prefix, s.cacheTTL, func(ctx context.Context) ([]storage.Setting, error) {
		return s.store.ListSettings(ctx, prefix)
	})
}

// EnsureDefault stores a setting only when the name is not on record yet.
// Seeding path: existing values are left untouched and no events are
// published.
func (s *Service) EnsureDefault(ctx context.Context, name, value string) error {
	if s == nil || s.store == nil {
		return fmt.Errorf("settings service is not configured")
	}
	normalized, err := normalizeName(name)
	if err != nil {
		return err
	}
	_, err = s.store.GetSetting(ctx, normalized)
	if err == nil {
		return nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("get setting: %w", err)
	}

	newID, err := id.NewID()
	if err != nil {
		return fmt.Errorf("new setting id: %w", err)
	}
	now := s.clock().UTC()
	setting := storage.Setting{
		ID:        newID,
		Name:      normalized,
		Value:     value,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.PutSetting(ctx, setting); err != nil {
		return fmt.Errorf("put setting: %w", err)
	}
	s.invalidate(ctx)
	return nil
}

func normalizeName(name string) (string, error) {
	normalized := strings.ToLower(strings.TrimSpace(name))
	if normalized == "" {
		return "", apperrors.New(apperrors.CodeSettingNameEmpty, "setting name is required")
	}
	return normalized, nil
}

func invalidValue(name string, cause error) error {
	return apperrors.WrapWithMetadata(
		apperrors.CodeSettingValueInvalid,
		"setting value cannot be parsed",
		map[string]string{"name": strings.ToLower(strings.TrimSpace(name))},
		cause,
	)
}

func (s *Service) invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeletePrefix(ctx, cachePrefix); err != nil {
		log.Printf("settings: invalidate cache: %v", err)
	}
}
