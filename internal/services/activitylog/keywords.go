package activitylog

// System keywords of the built-in activity catalog. Seeded at install time;
// admins can disable individual keywords to stop recording them.
const (
	KeywordAddNewCountry = "AddNewCountry"
	KeywordEditCountry   = "EditCountry"
	KeywordDeleteCountry = "DeleteCountry"

	KeywordAddNewStateProvince = "AddNewStateProvince"
	KeywordEditStateProvince   = "EditStateProvince"
	KeywordDeleteStateProvince = "DeleteStateProvince"

	KeywordAddNewCustomer     = "AddNewCustomer"
	KeywordEditCustomer       = "EditCustomer"
	KeywordDeactivateCustomer = "DeactivateCustomer"

	KeywordAddNewRole          = "AddNewRole"
	KeywordEditRole            = "EditRole"
	KeywordDeleteRole          = "DeleteRole"
	KeywordEditRolePermissions = "EditRolePermissions"
	KeywordEditCustomerRoles   = "EditCustomerRoles"

	KeywordAddNewTask  = "AddNewTask"
	KeywordEditTask    = "EditTask"
	KeywordDeleteTask  = "DeleteTask"
	KeywordDisableTask = "DisableTask"

	KeywordEditSettings  = "EditSettings"
	KeywordDeleteSetting = "DeleteSetting"
)

// TypeSeed is a catalog entry installed by the seeder.
type TypeSeed struct {
	SystemKeyword string
	DisplayName   string
}

// BuiltinTypes lists the activity types every deployment starts with.
func BuiltinTypes() []TypeSeed {
	return []TypeSeed{
		{SystemKeyword: KeywordAddNewCountry, DisplayName: "Add a new country"},
		{SystemKeyword: KeywordEditCountry, DisplayName: "Edit a country"},
		{SystemKeyword: KeywordDeleteCountry, DisplayName: "Delete a country"},
		{SystemKeyword: KeywordAddNewStateProvince, DisplayName: "Add a new state or province"},
		{SystemKeyword: KeywordEditStateProvince, DisplayName: "Edit a state or province"},
		{SystemKeyword: KeywordDeleteStateProvince, DisplayName: "Delete a state or province"},
		{SystemKeyword: KeywordAddNewCustomer, DisplayName: "Add a new customer"},
		{SystemKeyword: KeywordEditCustomer, DisplayName: "Edit a customer"},
		{SystemKeyword: KeywordDeactivateCustomer, DisplayName: "Deactivate a customer"},
		{SystemKeyword: KeywordAddNewRole, DisplayName: "Add a new role"},
		{SystemKeyword: KeywordEditRole, DisplayName: "Edit a role"},
		{SystemKeyword: KeywordDeleteRole, DisplayName: "Delete a role"},
		{SystemKeyword: KeywordEditRolePermissions, DisplayName: "Edit role permissions"},
		{SystemKeyword: KeywordEditCustomerRoles, DisplayName: "Edit customer role assignments"},
		{SystemKeyword: KeywordAddNewTask, DisplayName: "Add a new schedule task"},
		{SystemKeyword: KeywordEditTask, DisplayName: "Edit a schedule task"},
		{SystemKeyword: KeywordDeleteTask, DisplayName: "Delete a schedule task"},
		{SystemKeyword: KeywordDisableTask, DisplayName: "Disable a failing schedule task"},
		{SystemKeyword: KeywordEditSettings, DisplayName: "Edit settings"},
		{SystemKeyword: KeywordDeleteSetting, DisplayName: "Delete a setting"},
	}
}
