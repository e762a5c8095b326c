// Package storage defines persistence contracts for customer account state.
package storage

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("record not found")

// Customer is an account known to the platform. System accounts back
// internal actors and never deactivate. A zero LastActivityAt means the
// customer was never seen.
type Customer struct {
	ID             string
	Email          string
	DisplayName    string
	Active         bool
	IsSystem       bool
	LastActivityAt time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// CustomerStore persists customers.
type CustomerStore interface {
	// PutCustomer inserts or replaces a customer by ID.
	PutCustomer(ctx context.Context, customer Customer) error

	// GetCustomer returns a customer by ID or ErrNotFound.
	GetCustomer(ctx context.Context, id string) (Customer, error)

	// GetCustomerByEmail returns a customer by their unique email or
	// ErrNotFound.
	GetCustomerByEmail(ctx context.Context, email string) (Customer, error)

	// ListCustomers returns up to limit customers ordered by email,
	// starting after afterEmail. An empty afterEmail starts from the top.
	ListCustomers(ctx context.Context, afterEmail string, limit int) ([]Customer, error)

	// TouchCustomerActivity sets LastActivityAt without rewriting the row,
	// or returns ErrNotFound.
	TouchCustomerActivity(ctx context.Context, id string, at time.Time) error
}

// Store is the full persistence surface of the customers service.
type Store interface {
	CustomerStore
	Close() error
}
