// Package storage defines the persistence contracts for the settings service.
package storage

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// Setting is one persisted configuration value keyed by a dotted name.
type Setting struct {
	ID        string
	Name      string
	Value     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// SettingStore persists settings. Names are unique; lookups use the name,
// not the ID.
type SettingStore interface {
	PutSetting(ctx context.Context, setting Setting) error
	GetSetting(ctx context.Context, name string) (Setting, error)
	ListSettings(ctx context.Context, prefix string) ([]Setting, error)
	DeleteSetting(ctx context.Context, name string) error
}

// Store is the full persistence surface of the settings service.
type Store interface {
	SettingStore
	Close() error
}
