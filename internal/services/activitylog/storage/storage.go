// Package storage defines persistence contracts for activity log state.
package storage

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound indicates a requested activity record is missing.
var ErrNotFound = errors.New("record not found")

// ActivityType stores one kind of recordable activity. Disabled types drop
// log requests silently.
type ActivityType struct {
	ID            string
	SystemKeyword string
	DisplayName   string
	Enabled       bool
}

// Activity stores one recorded audit trail entry. SystemKeyword is
// denormalized from the type so rows survive type edits.
type Activity struct {
	ID            string
	TypeID        string
	SystemKeyword string
	CustomerID    string
	Comment       string
	EntityName    string
	EntityID      string
	IPAddress     string
	CreatedAt     time.Time
}

// SearchFilter is a translated WHERE fragment with bound parameters.
type SearchFilter struct {
	Clause string
	Params []any
}

// SearchCursor marks the position just after the last returned row of a
// (created_at DESC, id DESC) ordered page.
type SearchCursor struct {
	CreatedAt time.Time
	ID        string
}

// SearchQuery bounds one page of an activity search.
type SearchQuery struct {
	Filter   SearchFilter
	Cursor   *SearchCursor
	PageSize int
}

// ActivityPage stores one page of activities plus the cursor to resume from.
type ActivityPage struct {
	Activities []Activity
	NextCursor *SearchCursor
}

// ActivityTypeStore persists activity types.
type ActivityTypeStore interface {
	PutActivityType(ctx context.Context, activityType ActivityType) error
	GetActivityType(ctx context.Context, id string) (ActivityType, error)
	GetActivityTypeBySystemKeyword(ctx context.Context, systemKeyword string) (ActivityType, error)
	ListActivityTypes(ctx context.Context) ([]ActivityType, error)
}

// ActivityStore persists recorded activities.
type ActivityStore interface {
	InsertActivity(ctx context.Context, activity Activity) error
	GetActivity(ctx context.Context, id string) (Activity, error)
	SearchActivities(ctx context.Context, query SearchQuery) (ActivityPage, error)
	DeleteActivity(ctx context.Context, id string) error
	DeleteActivitiesBefore(ctx context.Context, cutoff time.Time) (int64, error)
	ClearActivities(ctx context.Context) (int64, error)
}

// Store combines all activity log persistence concerns.
type Store interface {
	ActivityTypeStore
	ActivityStore
	Close() error
}
