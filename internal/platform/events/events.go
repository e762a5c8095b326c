// Package events defines the platform event contract and the in-process bus
// that delivers events between domain services.
package events

import "time"

// Event types published by domain services.
const (
	CountryCreated = "country.created"
	CountryUpdated = "country.updated"
	CountryDeleted = "country.deleted"
	StateCreated   = "state.created"
	StateUpdated   = "state.updated"
	StateDeleted   = "state.deleted"

	CustomerCreated     = "customer.created"
	CustomerUpdated     = "customer.updated"
	CustomerDeactivated = "customer.deactivated"

	RoleCreated            = "role.created"
	RoleUpdated            = "role.updated"
	RoleDeleted            = "role.deleted"
	RolePermissionsUpdated = "role.permissions.updated"
	CustomerRolesUpdated   = "customer.roles.updated"

	TaskCreated  = "task.created"
	TaskUpdated  = "task.updated"
	TaskDeleted  = "task.deleted"
	TaskDisabled = "task.disabled"

	SettingUpdated = "setting.updated"
	SettingDeleted = "setting.deleted"

	ActivityLogged = "activity.logged"
)

// StreamName is the Redis stream the bus mirror publishes to.
const StreamName = "storefront.events"

// Event is the envelope delivered to subscribers.
type Event struct {
	Type       string    `json:"type"`
	OccurredAt time.Time `json:"occurredAt"`
	Payload    any       `json:"payload"`
}

// CountryEvent is the payload for country.* events.
type CountryEvent struct {
	CountryID string `json:"countryId"`
	Name      string `json:"name"`
}

// StateEvent is the payload for state.* events.
type StateEvent struct {
	StateID   string `json:"stateId"`
	CountryID string `json:"countryId"`
	Name      string `json:"name"`
}

// CustomerEvent is the payload for customer.* events.
type CustomerEvent struct {
	CustomerID string `json:"customerId"`
	Email      string `json:"email"`
}

// RoleEvent is the payload for role.* events.
type RoleEvent struct {
	RoleID     string `json:"roleId"`
	SystemName string `json:"systemName"`
}

// CustomerRolesEvent is the payload for customer.roles.updated.
type CustomerRolesEvent struct {
	CustomerID string   `json:"customerId"`
	RoleIDs    []string `json:"roleIds"`
}

// TaskEvent is the payload for task.created, task.updated and task.deleted.
type TaskEvent struct {
	TaskID      string `json:"taskId"`
	Name        string `json:"name"`
	HandlerName string `json:"handlerName"`
}

// TaskDisabledEvent is the payload for task.disabled, published when a
// failing stop-on-error task is switched off.
type TaskDisabledEvent struct {
	TaskID      string `json:"taskId"`
	Name        string `json:"name"`
	HandlerName string `json:"handlerName"`
	Reason      string `json:"reason"`
}

// SettingEvent is the payload for setting.* events.
type SettingEvent struct {
	Name string `json:"name"`
}

// ActivityLoggedEvent is the payload for activity.logged, consumed by the
// live activity stream.
type ActivityLoggedEvent struct {
	ActivityID    string    `json:"activityId"`
	SystemKeyword string    `json:"systemKeyword"`
	CustomerID    string    `json:"customerId,omitempty"`
	Comment       string    `json:"comment,omitempty"`
	EntityName    string    `json:"entityName,omitempty"`
	EntityID      string    `json:"entityId,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
}
