package activitylog

import (
	"context"
	"fmt"

	"github.com/louisbranch/storefront/internal/platform/events"
	"github.com/louisbranch/storefront/internal/platform/requestctx"
)

// SubscribeDomainEvents makes the service record a system activity for every
// domain mutation published on the bus. The acting customer is taken from
// the request context the mutation ran under.
func (s *Service) SubscribeDomainEvents(bus *events.Bus) {
	if s == nil || bus == nil {
		return
	}
	bus.Subscribe("*", "activitylog.recorder", s.recordDomainEvent)
}

func (s *Service) recordDomainEvent(ctx context.Context, event events.Event) error {
	systemKeyword, input, ok := describeEvent(event)
	if !ok {
		return nil
	}
	input.CustomerID = requestctx.CustomerIDFromContext(ctx)
	_, err := s.Log(ctx, systemKeyword, input)
	return err
}

// describeEvent maps one domain event to the system keyword and entry it is
// recorded under. Events without a mapping, including activity.logged
// itself, are skipped.
func describeEvent(event events.Event) (string, LogInput, bool) {
	switch payload := event.Payload.(type) {
	case events.CountryEvent:
		input := LogInput{EntityName: "Country", EntityID: payload.CountryID}
		switch event.Type {
		case events.CountryCreated:
			input.Comment = fmt.Sprintf("Added country %q", payload.Name)
			return KeywordAddNewCountry, input, true
		case events.CountryUpdated:
			input.Comment = fmt.Sprintf("Edited country %q", payload.Name)
			return KeywordEditCountry, input, true
		case events.CountryDeleted:
			input.Comment = fmt.Sprintf("Deleted country %q", payload.Name)
			return KeywordDeleteCountry, input, true
		}
	case events.StateEvent:
		input := LogInput{EntityName: "StateProvince", EntityID: payload.StateID}
		switch event.Type {
		case events.StateCreated:
			input.Comment = fmt.Sprintf("Added state or province %q", payload.Name)
			return KeywordAddNewStateProvince, input, true
		case events.StateUpdated:
			input.Comment = fmt.Sprintf("Edited state or province %q", payload.Name)
			return KeywordEditStateProvince, input, true
		case events.StateDeleted:
			input.Comment = fmt.Sprintf("Deleted state or province %q", payload.Name)
			return KeywordDeleteStateProvince, input, true
		}
	case events.CustomerEvent:
		input := LogInput{EntityName: "Customer", EntityID: payload.CustomerID}
		switch event.Type {
		case events.CustomerCreated:
			input.Comment = fmt.Sprintf("Added customer %s", payload.Email)
			return KeywordAddNewCustomer, input, true
		case events.CustomerUpdated:
			input.Comment = fmt.Sprintf("Edited customer %s", payload.Email)
			return KeywordEditCustomer, input, true
		case events.CustomerDeactivated:
			input.Comment = fmt.Sprintf("Deactivated customer %s", payload.Email)
			return KeywordDeactivateCustomer, input, true
		}
	case events.RoleEvent:
		input := LogInput{EntityName: "Role", EntityID: payload.RoleID}
		switch event.Type {
		case events.RoleCreated:
			input.Comment = fmt.Sprintf("Added role %q", payload.SystemName)
			return KeywordAddNewRole, input, true
		case events.RoleUpdated:
			input.Comment = fmt.Sprintf("Edited role %q", payload.SystemName)
			return KeywordEditRole, input, true
		case events.RoleDeleted:
			input.Comment = fmt.Sprintf("Deleted role %q", payload.SystemName)
			return KeywordDeleteRole, input, true
		case events.RolePermissionsUpdated:
			input.Comment = fmt.Sprintf("Edited permissions of role %q", payload.SystemName)
			return KeywordEditRolePermissions, input, true
		}
	case events.CustomerRolesEvent:
		if event.Type == events.CustomerRolesUpdated {
			return KeywordEditCustomerRoles, LogInput{
				EntityName: "Customer",
				EntityID:   payload.CustomerID,
				Comment:    fmt.Sprintf("Edited role assignments of customer %s", payload.CustomerID),
			}, true
		}
	case events.TaskEvent:
		input := LogInput{EntityName: "Task", EntityID: payload.TaskID}
		switch event.Type {
		case events.TaskCreated:
			input.Comment = fmt.Sprintf("Added schedule task %q", payload.Name)
			return KeywordAddNewTask, input, true
		case events.TaskUpdated:
			input.Comment = fmt.Sprintf("Edited schedule task %q", payload.Name)
			return KeywordEditTask, input, true
		case events.TaskDeleted:
			input.Comment = fmt.Sprintf("Deleted schedule task %q", payload.Name)
			return KeywordDeleteTask, input, true
		}
	case events.TaskDisabledEvent:
		if event.Type == events.TaskDisabled {
			return KeywordDisableTask, LogInput{
				EntityName: "Task",
				EntityID:   payload.TaskID,
				Comment:    fmt.Sprintf("Disabled schedule task %q: %s", payload.Name, payload.Reason),
			}, true
		}
	case events.SettingEvent:
		input := LogInput{EntityName: "Setting", EntityID: payload.Name}
		switch event.Type {
		case events.SettingUpdated:
			input.Comment = fmt.Sprintf("Edited setting %q", payload.Name)
			return KeywordEditSettings, input, true
		case events.SettingDeleted:
			input.Comment = fmt.Sprintf("Deleted setting %q", payload.Name)
			return KeywordDeleteSetting, input, true
		}
	}
	return "", LogInput{}, false
}
