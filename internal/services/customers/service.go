// Package customers manages the accounts behind activity entries and role
// assignments: contact email, display name, active flag, and last-seen
// bookkeeping. Role membership itself is an access concern.
package customers

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log"
	"net/mail"
	"strings"
	"sync"
	"time"

	"github.com/louisbranch/storefront/internal/platform/cache"
	apperrors "github.com/louisbranch/storefront/internal/platform/errors"
	"github.com/louisbranch/storefront/internal/platform/events"
	"github.com/louisbranch/storefront/internal/platform/id"
	"github.com/louisbranch/storefront/internal/services/customers/storage"
)

const cachePrefix = "customers:"

const defaultCacheTTL = 5 * time.Minute

const (
	defaultPageSize = 50
	maxPageSize     = 200
)

// touchInterval is the minimum gap between persisted last-seen updates for
// one customer. Touches inside the gap are dropped.
const touchInterval = time.Minute

// CustomerInput carries the caller-provided fields of a customer account.
type CustomerInput struct {
	Email       string
	DisplayName string
	Active      bool
}

// ListResult is one page of customers ordered by email.
type ListResult struct {
	Customers     []storage.Customer
	NextPageToken string
}

// Service implements customer account operations over a storage backend.
type Service struct {
	store storage.CustomerStore
	cache cache.Cache
	bus   *events.Bus
	clock func() time.Time

	cacheTTL time.Duration

	touchMu   sync.Mutex
	lastTouch map[string]time.Time
}

// NewService wires a customers service. The cache and bus may be nil, in
// which case reads hit storage directly and events are dropped.
func NewService(store storage.CustomerStore, cacheStore cache.Cache, bus *events.Bus) *Service {
	return &Service{
		store:     store,
		cache:     cacheStore,
		bus:       bus,
		clock:     time.Now,
		cacheTTL:  defaultCacheTTL,
		lastTouch: make(map[string]time.Time),
	}
}

// SetCacheTTL overrides how long cached customer reads live. Non-positive
// values are ignored.
func (s *Service) SetCacheTTL(ttl time.Duration) {
	if s == nil || ttl <= 0 {
		return
	}
	s.cacheTTL = ttl
}

// Create validates and stores a new customer account.
func (s *Service) Create(ctx context.Context, input CustomerInput) (storage.Customer, error) {
	if s == nil || s.store == nil {
		return storage.Customer{}, fmt.Errorf("customers service is not configured")
	}
	email, err := normalizeEmail(input.Email)
	if err != nil {
		return storage.Customer{}, err
	}
	if err := s.checkEmailFree(ctx, email, ""); err != nil {
		return storage.Customer{}, err
	}

	newID, err := id.NewID()
	if err != nil {
		return storage.Customer{}, fmt.Errorf("new customer id: %w", err)
	}
	now := s.clock().UTC()
	customer := storage.Customer{
		ID:          newID,
		Email:       email,
		DisplayName: strings.TrimSpace(input.DisplayName),
		Active:      input.Active,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.store.PutCustomer(ctx, customer); err != nil {
		return storage.Customer{}, fmt.Errorf("put customer: %w", err)
	}
	s.invalidate(ctx)
	s.bus.Publish(ctx, events.CustomerCreated, events.CustomerEvent{CustomerID: customer.ID, Email: customer.Email})
	return customer, nil
}

// Update validates and rewrites an existing customer account. System
// accounts are refused.
func (s *Service) Update(ctx context.Context, customerID string, input CustomerInput) (storage.Customer, error) {
	if s == nil || s.store == nil {
		return storage.Customer{}, fmt.Errorf("customers service is not configured")
	}
	existing, err := s.lookup(ctx, customerID)
	if err != nil {
		return storage.Customer{}, err
	}
	if existing.IsSystem {
		return storage.Customer{}, apperrors.New(apperrors.CodeCustomerSystemImmutable, "system accounts cannot be modified")
	}
	email, err := normalizeEmail(input.Email)
	if err != nil {
		return storage.Customer{}, err
	}
	if err := s.checkEmailFree(ctx, email, existing.ID); err != nil {
		return storage.Customer{}, err
	}

	customer := existing
	customer.Email = email
	customer.DisplayName = strings.TrimSpace(input.DisplayName)
	customer.Active = input.Active
	customer.UpdatedAt = s.clock().UTC()

	if err := s.store.PutCustomer(ctx, customer); err != nil {
		return storage.Customer{}, fmt.Errorf("put customer: %w", err)
	}
	s.invalidate(ctx)
	s.bus.Publish(ctx, events.CustomerUpdated, events.CustomerEvent{CustomerID: customer.ID, Email: customer.Email})
	return customer, nil
}

// Deactivate marks a customer inactive. Accounts are never hard deleted so
// their activity history keeps a subject; system accounts are refused.
func (s *Service) Deactivate(ctx context.Context, customerID string) (storage.Customer, error) {
	if s == nil || s.store == nil {
		return storage.Customer{}, fmt.Errorf("customers service is not configured")
	}
	existing, err := s.lookup(ctx, customerID)
	if err != nil {
		return storage.Customer{}, err
	}
	if existing.IsSystem {
		return storage.Customer{}, apperrors.New(apperrors.CodeCustomerSystemImmutable, "system accounts cannot be deactivated")
	}
	if !existing.Active {
		return existing, nil
	}

	customer := existing
	customer.Active = false
	customer.UpdatedAt = s.clock().UTC()

	if err := s.store.PutCustomer(ctx, customer); err != nil {
		return storage.Customer{}, fmt.Errorf("put customer: %w", err)
	}
	s.invalidate(ctx)
	s.bus.Publish(ctx, events.CustomerDeactivated, events.CustomerEvent{CustomerID: customer.ID, Email: customer.Email})
	return customer, nil
}

// GetByID returns one customer by ID, served from cache when possible.
func (s *Service) GetByID(ctx context.Context, customerID string) (storage.Customer, error) {
	if s == nil || s.store == nil {
		return storage.Customer{}, fmt.Errorf("customers service is not configured")
	}
	customerID = strings.TrimSpace(customerID)
	if customerID == "" {
		return storage.Customer{}, apperrors.New(apperrors.CodeInvalidArgument, "customer id is required")
	}
	return cache.GetOrLoad(ctx, s.cache, cachePrefix+"id:"+customerID, s.cacheTTL, func(ctx context.Context) (storage.Customer, error) {
		customer, err := s.store.GetCustomer(ctx, customerID)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return storage.Customer{}, apperrors.Wrap(apperrors.CodeNotFound, "customer not found", err)
			}
			return storage.Customer{}, fmt.Errorf("get customer: %w", err)
		}
		return customer, nil
	})
}

// GetByEmail returns one customer by their unique email, served from cache
// when possible.
func (s *Service) GetByEmail(ctx context.Context, email string) (storage.Customer, error) {
	if s == nil || s.store == nil {
		return storage.Customer{}, fmt.Errorf("customers service is not configured")
	}
	normalized, err := normalizeEmail(email)
	if err != nil {
		return storage.Customer{}, err
	}
	return cache.GetOrLoad(ctx, s.cache, cachePrefix+"email:"+normalized, s.cacheTTL, func(ctx context.Context) (storage.Customer, error) {
		customer, err := s.store.GetCustomerByEmail(ctx, normalized)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return storage.Customer{}, apperrors.Wrap(apperrors.CodeNotFound, "customer not found", err)
			}
			return storage.Customer{}, fmt.Errorf("get customer by email: %w", err)
		}
		return customer, nil
	})
}

// List returns one page of customers ordered by email. The page token is
// opaque; an empty token starts from the beginning.
func (s *Service) List(ctx context.Context, pageSize int, pageToken string) (ListResult, error) {
	if s == nil || s.store == nil {
		return ListResult{}, fmt.Errorf("customers service is not configured")
	}
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	afterEmail := ""
	if token := strings.TrimSpace(pageToken); token != "" {
		decoded, err := decodePageToken(token)
		if err != nil {
			return ListResult{}, apperrors.Wrap(apperrors.CodeInvalidArgument, "page token is invalid", err)
		}
		afterEmail = decoded
	}

	// Probe one row past the page to learn whether another page exists.
	customers, err := s.store.ListCustomers(ctx, afterEmail, pageSize+1)
	if err != nil {
		return ListResult{}, fmt.Errorf("list customers: %w", err)
	}
	result := ListResult{Customers: customers}
	if len(customers) > pageSize {
		result.Customers = customers[:pageSize]
		result.NextPageToken = encodePageToken(result.Customers[pageSize-1].Email)
	}
	return result, nil
}

// TouchActivity records when a customer was last seen. Touches are persisted
// at most once per minute per customer within this process; the cached view
// of the customer is left alone and catches up when its TTL expires.
func (s *Service) TouchActivity(ctx context.Context, customerID string, at time.Time) error {
	if s == nil || s.store == nil {
		return fmt.Errorf("customers service is not configured")
	}
	customerID = strings.TrimSpace(customerID)
	if customerID == "" {
		return apperrors.New(apperrors.CodeInvalidArgument, "customer id is required")
	}
	if at.IsZero() {
		at = s.clock()
	}
	at = at.UTC()

	s.touchMu.Lock()
	last, seen := s.lastTouch[customerID]
	if seen && at.Sub(last) < touchInterval {
		s.touchMu.Unlock()
		return nil
	}
	s.lastTouch[customerID] = at
	s.touchMu.Unlock()

	if err := s.store.TouchCustomerActivity(ctx, customerID, at); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return apperrors.Wrap(apperrors.CodeNotFound, "customer not found", err)
		}
		return fmt.Errorf("touch customer activity: %w", err)
	}
	return nil
}

// CustomerExists reports whether a customer account is on record, active or
// not. The access service uses it to vet role assignment subjects.
func (s *Service) CustomerExists(ctx context.Context, customerID string) (bool, error) {
	if s == nil || s.store == nil {
		return false, fmt.Errorf("customers service is not configured")
	}
	_, err := s.GetByID(ctx, customerID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// EnsureSystemAccount creates a system account if no customer holds the
// email yet and returns the account either way. Seeding path: existing
// accounts are left untouched and no events are published.
func (s *Service) EnsureSystemAccount(ctx context.Context, email, displayName string) (storage.Customer, error) {
	if s == nil || s.store == nil {
		return storage.Customer{}, fmt.Errorf("customers service is not configured")
	}
	normalized, err := normalizeEmail(email)
	if err != nil {
		return storage.Customer{}, err
	}
	existing, err := s.store.GetCustomerByEmail(ctx, normalized)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return storage.Customer{}, fmt.Errorf("get customer by email: %w", err)
	}

	newID, err := id.NewID()
	if err != nil {
		return storage.Customer{}, fmt.Errorf("new customer id: %w", err)
	}
	now := s.clock().UTC()
	customer := storage.Customer{
		ID:          newID,
		Email:       normalized,
		DisplayName: strings.TrimSpace(displayName),
		Active:      true,
		IsSystem:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.PutCustomer(ctx, customer); err != nil {
		return storage.Customer{}, fmt.Errorf("put customer: %w", err)
	}
	s.invalidate(ctx)
	return customer, nil
}

func (s *Service) lookup(ctx context.Context, customerID string) (storage.Customer, error) {
	customerID = strings.TrimSpace(customerID)
	if customerID == "" {
		return storage.Customer{}, apperrors.New(apperrors.CodeInvalidArgument, "customer id is required")
	}
	existing, err := s.store.GetCustomer(ctx, customerID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return storage.Customer{}, apperrors.Wrap(apperrors.CodeNotFound, "customer not found", err)
		}
		return storage.Customer{}, fmt.Errorf("get customer: %w", err)
	}
	return existing, nil
}

func (s *Service) checkEmailFree(ctx context.Context, email string, allowID string) error {
	existing, err := s.store.GetCustomerByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("check email: %w", err)
	}
	if existing.ID != allowID {
		return apperrors.WithMetadata(apperrors.CodeCustomerEmailTaken, "email is already in use", map[string]string{"email": email})
	}
	return nil
}

func normalizeEmail(email string) (string, error) {
	trimmed := strings.TrimSpace(email)
	if trimmed == "" {
		return "", apperrors.New(apperrors.CodeCustomerEmailEmpty, "customer email is required")
	}
	parsed, err := mail.ParseAddress(trimmed)
	if err != nil {
		return "", apperrors.Wrap(apperrors.CodeCustomerEmailInvalid, "customer email is not a valid address", err)
	}
	return strings.ToLower(parsed.Address), nil
}

func encodePageToken(email string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(email))
}

func decodePageToken(token string) (string, error) {
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

func (s *Service) invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeletePrefix(ctx, cachePrefix); err != nil {
		log.Printf("customers: invalidate cache: %v", err)
	}
}
