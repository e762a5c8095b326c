// Package timeouts defines shared timeout constants used across services.
// Centralizing these values prevents drift between service boundaries and
// makes the durations discoverable.
package timeouts

import "time"

// ReadHeader limits how long an HTTP server waits for request headers.
const ReadHeader = 5 * time.Second

// Shutdown limits how long a server waits for in-flight work during
// graceful shutdown.
const Shutdown = 5 * time.Second

// TaskLease caps the advisory lock lease taken for one scheduled task run.
// A task that runs longer than its lease risks a second runner claiming it.
const TaskLease = 10 * time.Minute

// Maintenance caps a one-shot maintenance command run.
const Maintenance = 15 * time.Minute
