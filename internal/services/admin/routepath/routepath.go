// Package routepath centralizes admin API route constants so handlers and
// tests never drift on raw strings.
package routepath

const (
	Healthz = "/healthz"
)

const (
	DirectoryPrefix = "/v1/directory/"
	Countries       = "/v1/directory/countries"
	CountriesPrefix = "/v1/directory/countries/"
	CountriesLookup = "/v1/directory/countries/lookup"
	StatesPrefix    = "/v1/directory/states/"
)

const (
	Activity       = "/v1/activity"
	ActivityPrefix = "/v1/activity/"
	ActivityTypes  = "/v1/activity/types"
	ActivityStream = "/v1/activity/stream"
)

const (
	Tasks         = "/v1/tasks"
	TasksPrefix   = "/v1/tasks/"
	TasksHandlers = "/v1/tasks/handlers"
)

const (
	AccessPrefix = "/v1/access/"
	Roles        = "/v1/access/roles"
	RolesPrefix  = "/v1/access/roles/"
	Permissions  = "/v1/access/permissions"
)

const (
	Customers       = "/v1/customers"
	CustomersPrefix = "/v1/customers/"
	CustomersLookup = "/v1/customers/lookup"
)

const (
	Settings       = "/v1/settings"
	SettingsPrefix = "/v1/settings/"
)
