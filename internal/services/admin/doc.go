// Package admin exposes the operator JSON API: directory, activity log,
// scheduled tasks, access control, customers, and settings management over
// bearer-authenticated HTTP routes.
package admin
