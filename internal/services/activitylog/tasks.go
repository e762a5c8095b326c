package activitylog

import (
	"context"
	"log"
	"time"
)

// CleanupTaskName is the handler name the cleanup task registers under.
const CleanupTaskName = "activity.cleanup"

// DefaultRetention applies when no retention is configured.
const DefaultRetention = 90 * 24 * time.Hour

// CleanupTask deletes activities older than the configured retention. It
// satisfies the scheduler's handler shape and is registered by the worker.
type CleanupTask struct {
	Service *Service

	// Retention resolves the configured retention window. Nil or
	// non-positive results fall back to DefaultRetention.
	Retention func(ctx context.Context) time.Duration
}

func (t CleanupTask) Name() string { return CleanupTaskName }

func (t CleanupTask) Run(ctx context.Context) error {
	retention := DefaultRetention
	if t.Retention != nil {
		if configured := t.Retention(ctx); configured > 0 {
			retention = configured
		}
	}

	cutoff := t.Service.clock().UTC().Add(-retention)
	deleted, err := t.Service.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		return err
	}
	if deleted > 0 {
		log.Printf("activitylog: cleanup removed %d activities older than %s", deleted, retention)
	}
	return nil
}
