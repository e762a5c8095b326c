// Package errors provides structured error handling with i18n support.
package errors

import "net/http"

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Directory errors
	CodeCountryNameEmpty       Code = "COUNTRY_NAME_EMPTY"
	CodeCountryInvalidISOCode  Code = "COUNTRY_INVALID_ISO_CODE"
	CodeCountryISOCodeTaken    Code = "COUNTRY_ISO_CODE_TAKEN"
	CodeStateNameEmpty         Code = "STATE_NAME_EMPTY"
	CodeStateEmptyCountryID    Code = "STATE_EMPTY_COUNTRY_ID"
	CodeStateAbbreviationTaken Code = "STATE_ABBREVIATION_TAKEN"
	CodeStateCountryMissing    Code = "STATE_COUNTRY_MISSING"

	// Activity log errors
	CodeActivityTypeEmptyKeyword Code = "ACTIVITY_TYPE_EMPTY_KEYWORD"
	CodeActivityInvalidFilter    Code = "ACTIVITY_INVALID_FILTER"
	CodeActivityInvalidPageToken Code = "ACTIVITY_INVALID_PAGE_TOKEN"

	// Scheduler errors
	CodeTaskNameEmpty        Code = "TASK_NAME_EMPTY"
	CodeTaskHandlerEmpty     Code = "TASK_HANDLER_EMPTY"
	CodeTaskHandlerUnknown   Code = "TASK_HANDLER_UNKNOWN"
	CodeTaskIntervalTooShort Code = "TASK_INTERVAL_TOO_SHORT"
	CodeTaskNameTaken        Code = "TASK_NAME_TAKEN"
	CodeTaskLockBusy         Code = "TASK_LOCK_BUSY"
	CodeTaskDisabled         Code = "TASK_DISABLED"

	// Access errors
	CodeRoleNameEmpty         Code = "ROLE_NAME_EMPTY"
	CodeRoleSystemNameEmpty   Code = "ROLE_SYSTEM_NAME_EMPTY"
	CodeRoleSystemNameTaken   Code = "ROLE_SYSTEM_NAME_TAKEN"
	CodeRoleSystemImmutable   Code = "ROLE_SYSTEM_IMMUTABLE"
	CodePermissionNameEmpty   Code = "PERMISSION_NAME_EMPTY"
	CodePermissionUnknown     Code = "PERMISSION_UNKNOWN"
	CodeAssignmentRoleMissing Code = "ASSIGNMENT_ROLE_MISSING"
	CodeAssignmentSubjectGone Code = "ASSIGNMENT_SUBJECT_MISSING"

	// Customer errors
	CodeCustomerEmailEmpty      Code = "CUSTOMER_EMAIL_EMPTY"
	CodeCustomerEmailInvalid    Code = "CUSTOMER_EMAIL_INVALID"
	CodeCustomerEmailTaken      Code = "CUSTOMER_EMAIL_TAKEN"
	CodeCustomerSystemImmutable Code = "CUSTOMER_SYSTEM_IMMUTABLE"

	// Settings errors
	CodeSettingNameEmpty    Code = "SETTING_NAME_EMPTY"
	CodeSettingValueInvalid Code = "SETTING_VALUE_INVALID"

	// Storage errors
	CodeNotFound Code = "NOT_FOUND"

	// Auth errors
	CodeAuthRequired     Code = "AUTH_REQUIRED"
	CodeAuthTokenInvalid Code = "AUTH_TOKEN_INVALID"
	CodeAuthForbidden    Code = "AUTH_FORBIDDEN"

	// Request errors
	CodeInvalidArgument  Code = "INVALID_ARGUMENT"
	CodeMethodNotAllowed Code = "METHOD_NOT_ALLOWED"
)

// HTTPStatus maps domain codes to HTTP response status codes.
func (c Code) HTTPStatus() int {
	switch c {
	// Bad request - validation failures, bad input
	case CodeCountryNameEmpty,
		CodeCountryInvalidISOCode,
		CodeStateNameEmpty,
		CodeStateEmptyCountryID,
		CodeActivityTypeEmptyKeyword,
		CodeActivityInvalidFilter,
		CodeActivityInvalidPageToken,
		CodeTaskNameEmpty,
		CodeTaskHandlerEmpty,
		CodeTaskIntervalTooShort,
		CodeRoleNameEmpty,
		CodeRoleSystemNameEmpty,
		CodePermissionNameEmpty,
		CodeCustomerEmailEmpty,
		CodeCustomerEmailInvalid,
		CodeSettingNameEmpty,
		CodeSettingValueInvalid,
		CodeInvalidArgument:
		return http.StatusBadRequest

	// Conflict - unique resource constraints
	case CodeCountryISOCodeTaken,
		CodeStateAbbreviationTaken,
		CodeTaskNameTaken,
		CodeRoleSystemNameTaken,
		CodeCustomerEmailTaken,
		CodeTaskLockBusy:
		return http.StatusConflict

	// Unprocessable - state doesn't allow operation
	case CodeRoleSystemImmutable,
		CodeCustomerSystemImmutable,
		CodeTaskDisabled,
		CodeTaskHandlerUnknown:
		return http.StatusUnprocessableEntity

	// Not found - resource doesn't exist
	case CodeNotFound,
		CodeStateCountryMissing,
		CodePermissionUnknown,
		CodeAssignmentRoleMissing,
		CodeAssignmentSubjectGone:
		return http.StatusNotFound

	case CodeAuthRequired,
		CodeAuthTokenInvalid:
		return http.StatusUnauthorized

	case CodeAuthForbidden:
		return http.StatusForbidden

	case CodeMethodNotAllowed:
		return http.StatusMethodNotAllowed

	default:
		return http.StatusInternalServerError
	}
}
