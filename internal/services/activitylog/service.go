// Package activitylog records the platform audit trail: who did what, when,
// against which entity. Recording is tolerant by design so a dropped or
// failed log line never breaks the operation being audited.
package activitylog

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/louisbranch/storefront/internal/platform/cache"
	apperrors "github.com/louisbranch/storefront/internal/platform/errors"
	"github.com/louisbranch/storefront/internal/platform/events"
	"github.com/louisbranch/storefront/internal/platform/id"
	"github.com/louisbranch/storefront/internal/services/activitylog/filter"
	"github.com/louisbranch/storefront/internal/services/activitylog/storage"
)

const cachePrefix = "activity:"

const defaultCacheTTL = 5 * time.Minute

const (
	defaultPageSize = 50
	maxPageSize     = 200
)

type typeAndActivityStore interface {
	storage.ActivityTypeStore
	storage.ActivityStore
}

// LogInput carries the caller-provided fields of one activity entry.
type LogInput struct {
	CustomerID string
	Comment    string
	EntityName string
	EntityID   string
	IPAddress  string
}

// TypeInput carries the editable fields of an activity type.
type TypeInput struct {
	DisplayName string
	Enabled     bool
}

// SearchInput bounds one activity search request. Filter is an AIP-160
// expression over customer_id, keyword, entity_name, entity_id and created.
type SearchInput struct {
	Filter    string
	PageSize  int
	PageToken string
}

// SearchResult is one page of matching activities, newest first.
type SearchResult struct {
	Activities    []storage.Activity
	NextPageToken string
}

// Service implements activity log operations over a storage backend.
type Service struct {
	store typeAndActivityStore
	cache cache.Cache
	bus   *events.Bus
	clock func() time.Time

	cacheTTL time.Duration
}

// NewService wires an activity log service. The cache and bus may be nil.
func NewService(store typeAndActivityStore, cacheStore cache.Cache, bus *events.Bus) *Service {
	return &Service{
		store:    store,
		cache:    cacheStore,
		bus:      bus,
		clock:    time.Now,
		cacheTTL: defaultCacheTTL,
	}
}

// SetCacheTTL overrides how long cached type reads live. Non-positive values
// are ignored.
func (s *Service) SetCacheTTL(ttl time.Duration) {
	if s == nil || ttl <= 0 {
		return
	}
	s.cacheTTL = ttl
}

// EnsureType registers an activity type for systemKeyword when none exists
// and returns it. Existing types keep their Enabled flag and display name.
func (s *Service) EnsureType(ctx context.Context, systemKeyword string, displayName string) (storage.ActivityType, error) {
	if s == nil || s.store == nil {
		return storage.ActivityType{}, fmt.Errorf("activity log service is not configured")
	}
	systemKeyword = strings.TrimSpace(systemKeyword)
	if systemKeyword == "" {
		return storage.ActivityType{}, apperrors.New(apperrors.CodeActivityTypeEmptyKeyword, "activity type system keyword is required")
	}

	existing, err := s.store.GetActivityTypeBySystemKeyword(ctx, systemKeyword)
	if err == nil {
		return existing, nil
	}
	if !isNotFound(err) {
		return storage.ActivityType{}, fmt.Errorf("get activity type: %w", err)
	}

	newID, err := id.NewID()
	if err != nil {
		return storage.ActivityType{}, fmt.Errorf("new activity type id: %w", err)
	}
	activityType := storage.ActivityType{
		ID:            newID,
		SystemKeyword: systemKeyword,
		DisplayName:   strings.TrimSpace(displayName),
		Enabled:       true,
	}
	if activityType.DisplayName == "" {
		activityType.DisplayName = systemKeyword
	}
	if err := s.store.PutActivityType(ctx, activityType); err != nil {
		return storage.ActivityType{}, fmt.Errorf("put activity type: %w", err)
	}
	s.invalidate(ctx)
	return activityType, nil
}

// ListTypes returns the activity type catalog, served from cache when
// possible.
func (s *Service) ListTypes(ctx context.Context) ([]storage.ActivityType, error) {
	if s == nil || s.store == nil {
		return nil, fmt.Errorf("activity log service is not configured")
	}
	return cache.GetOrLoad(ctx, s.cache, cachePrefix+"types:all", s.cacheTTL, func(ctx context.Context) ([]storage.ActivityType, error) {
		return s.store.ListActivityTypes(ctx)
	})
}

// UpdateType rewrites the display name and enabled flag of one type.
func (s *Service) UpdateType(ctx context.Context, typeID string, input TypeInput) (storage.ActivityType, error) {
	if s == nil || s.store == nil {
		return storage.ActivityType{}, fmt.Errorf("activity log service is not configured")
	}
	typeID = strings.TrimSpace(typeID)
	if typeID == "" {
		return storage.ActivityType{}, apperrors.New(apperrors.CodeInvalidArgument, "activity type id is required")
	}
	activityType, err := s.store.GetActivityType(ctx, typeID)
	if err != nil {
		if isNotFound(err) {
			return storage.ActivityType{}, apperrors.Wrap(apperrors.CodeNotFound, "activity type not found", err)
		}
		return storage.ActivityType{}, fmt.Errorf("get activity type: %w", err)
	}

	if displayName := strings.TrimSpace(input.DisplayName); displayName != "" {
		activityType.DisplayName = displayName
	}
	activityType.Enabled = input.Enabled

	if err := s.store.PutActivityType(ctx, activityType); err != nil {
		return storage.ActivityType{}, fmt.Errorf("put activity type: %w", err)
	}
	s.invalidate(ctx)
	return activityType, nil
}

// GetTypeBySystemKeyword returns one activity type, served from cache when
// possible.
func (s *Service) GetTypeBySystemKeyword(ctx context.Context, systemKeyword string) (storage.ActivityType, error) {
	if s == nil || s.store == nil {
		return storage.ActivityType{}, fmt.Errorf("activity log service is not configured")
	}
	systemKeyword = strings.TrimSpace(systemKeyword)
	if systemKeyword == "" {
		return storage.ActivityType{}, apperrors.New(apperrors.CodeActivityTypeEmptyKeyword, "activity type system keyword is required")
	}
	return cache.GetOrLoad(ctx, s.cache, cachePrefix+"types:keyword:"+systemKeyword, s.cacheTTL, func(ctx context.Context) (storage.ActivityType, error) {
		activityType, err := s.store.GetActivityTypeBySystemKeyword(ctx, systemKeyword)
		if err != nil {
			if isNotFound(err) {
				return storage.ActivityType{}, apperrors.Wrap(apperrors.CodeNotFound, "activity type not found", err)
			}
			return storage.ActivityType{}, fmt.Errorf("get activity type: %w", err)
		}
		return activityType, nil
	})
}

// Log records one activity under systemKeyword. Unknown and disabled
// keywords drop the entry silently: the returned activity has an empty ID
// and the caller's operation proceeds as if nothing happened.
func (s *Service) Log(ctx context.Context, systemKeyword string, input LogInput) (storage.Activity, error) {
	if s == nil || s.store == nil {
		return storage.Activity{}, fmt.Errorf("activity log service is not configured")
	}
	systemKeyword = strings.TrimSpace(systemKeyword)
	if systemKeyword == "" {
		return storage.Activity{}, apperrors.New(apperrors.CodeActivityTypeEmptyKeyword, "activity type system keyword is required")
	}

	activityType, err := s.GetTypeBySystemKeyword(ctx, systemKeyword)
	if err != nil {
		if apperrors.CodeOf(err) == apperrors.CodeNotFound {
			return storage.Activity{}, nil
		}
		return storage.Activity{}, err
	}
	if !activityType.Enabled {
		return storage.Activity{}, nil
	}

	newID, err := id.NewID()
	if err != nil {
		return storage.Activity{}, fmt.Errorf("new activity id: %w", err)
	}
	activity := storage.Activity{
		ID:            newID,
		TypeID:        activityType.ID,
		SystemKeyword: activityType.SystemKeyword,
		CustomerID:    strings.TrimSpace(input.CustomerID),
		Comment:       strings.TrimSpace(input.Comment),
		EntityName:    strings.TrimSpace(input.EntityName),
		EntityID:      strings.TrimSpace(input.EntityID),
		IPAddress:     strings.TrimSpace(input.IPAddress),
		CreatedAt:     s.clock().UTC(),
	}
	if err := s.store.InsertActivity(ctx, activity); err != nil {
		return storage.Activity{}, fmt.Errorf("insert activity: %w", err)
	}
	s.bus.Publish(ctx, events.ActivityLogged, events.ActivityLoggedEvent{
		ActivityID:    activity.ID,
		SystemKeyword: activity.SystemKeyword,
		CustomerID:    activity.CustomerID,
		Comment:       activity.Comment,
		EntityName:    activity.EntityName,
		EntityID:      activity.EntityID,
		CreatedAt:     activity.CreatedAt,
	})
	return activity, nil
}

// Get returns one recorded activity by id.
func (s *Service) Get(ctx context.Context, activityID string) (storage.Activity, error) {
	if s == nil || s.store == nil {
		return storage.Activity{}, fmt.Errorf("activity log service is not configured")
	}
	activityID = strings.TrimSpace(activityID)
	if activityID == "" {
		return storage.Activity{}, apperrors.New(apperrors.CodeInvalidArgument, "activity id is required")
	}
	activity, err := s.store.GetActivity(ctx, activityID)
	if err != nil {
		if isNotFound(err) {
			return storage.Activity{}, apperrors.Wrap(apperrors.CodeNotFound, "activity not found", err)
		}
		return storage.Activity{}, fmt.Errorf("get activity: %w", err)
	}
	return activity, nil
}

// Search returns one page of activities matching input.Filter, newest first.
func (s *Service) Search(ctx context.Context, input SearchInput) (SearchResult, error) {
	if s == nil || s.store == nil {
		return SearchResult{}, fmt.Errorf("activity log service is not configured")
	}
	cond, err := filter.Parse(input.Filter)
	if err != nil {
		return SearchResult{}, apperrors.WrapWithMetadata(apperrors.CodeActivityInvalidFilter, "activity filter is invalid", map[string]string{"filter": input.Filter}, err)
	}

	pageSize := input.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	query := storage.SearchQuery{
		Filter:   storage.SearchFilter{Clause: cond.Clause, Params: cond.Params},
		PageSize: pageSize,
	}
	if token := strings.TrimSpace(input.PageToken); token != "" {
		cursor, err := decodePageToken(token)
		if err != nil {
			return SearchResult{}, apperrors.Wrap(apperrors.CodeActivityInvalidPageToken, "page token is invalid", err)
		}
		query.Cursor = cursor
	}

	page, err := s.store.SearchActivities(ctx, query)
	if err != nil {
		return SearchResult{}, fmt.Errorf("search activities: %w", err)
	}
	result := SearchResult{Activities: page.Activities}
	if page.NextCursor != nil {
		result.NextPageToken = encodePageToken(*page.NextCursor)
	}
	return result, nil
}

// Delete removes one recorded activity.
func (s *Service) Delete(ctx context.Context, activityID string) error {
	if s == nil || s.store == nil {
		return fmt.Errorf("activity log service is not configured")
	}
	activityID = strings.TrimSpace(activityID)
	if activityID == "" {
		return apperrors.New(apperrors.CodeInvalidArgument, "activity id is required")
	}
	if _, err := s.store.GetActivity(ctx, activityID); err != nil {
		if isNotFound(err) {
			return apperrors.Wrap(apperrors.CodeNotFound, "activity not found", err)
		}
		return fmt.Errorf("get activity: %w", err)
	}
	if err := s.store.DeleteActivity(ctx, activityID); err != nil {
		return fmt.Errorf("delete activity: %w", err)
	}
	return nil
}

// DeleteOlderThan purges activities created before cutoff. The retention
// cleanup task runs this on a schedule.
func (s *Service) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	if s == nil || s.store == nil {
		return 0, fmt.Errorf("activity log service is not configured")
	}
	deleted, err := s.store.DeleteActivitiesBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete activities before: %w", err)
	}
	return deleted, nil
}

// Clear removes every recorded activity.
func (s *Service) Clear(ctx context.Context) (int64, error) {
	if s == nil || s.store == nil {
		return 0, fmt.Errorf("activity log service is not configured")
	}
	cleared, err := s.store.ClearActivities(ctx)
	if err != nil {
		return 0, fmt.Errorf("clear activities: %w", err)
	}
	return cleared, nil
}

func (s *Service) invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeletePrefix(ctx, cachePrefix); err != nil {
		log.Printf("activitylog: invalidate cache: %v", err)
	}
}

func isNotFound(err error) bool {
	return errors.Is(err, storage.ErrNotFound)
}

type pageCursor struct {
	CreatedAtMillis int64  `json:"c"`
	ID              string `json:"i"`
}

func encodePageToken(cursor storage.SearchCursor) string {
	raw, err := json.Marshal(pageCursor{
		CreatedAtMillis: cursor.CreatedAt.UTC().UnixMilli(),
		ID:              cursor.ID,
	})
	if err != nil {
		return ""
	}
	return base64.RawURLEncoding.EncodeToString(raw)
}

func decodePageToken(token string) (*storage.SearchCursor, error) {
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return nil, fmt.Errorf("decode page token: %w", err)
	}
	var cursor pageCursor
	if err := json.Unmarshal(raw, &cursor); err != nil {
		return nil, fmt.Errorf("decode page token: %w", err)
	}
	if cursor.ID == "" {
		return nil, fmt.Errorf("page token is missing a cursor id")
	}
	return &storage.SearchCursor{
		CreatedAt: time.UnixMilli(cursor.CreatedAtMillis).UTC(),
		ID:        cursor.ID,
	}, nil
}
