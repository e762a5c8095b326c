package access

// Permission system names shipped with the platform. The seeder installs
// these through InstallPermissions.
const (
	PermissionManageAccess    = "admin.access.manage"
	PermissionReadActivity    = "admin.activity.read"
	PermissionManageActivity  = "admin.activity.manage"
	PermissionReadCustomers   = "admin.customers.read"
	PermissionManageCustomers = "admin.customers.manage"
	PermissionManageDirectory = "admin.directory.manage"
	PermissionManageSettings  = "admin.settings.manage"
	PermissionManageTasks     = "admin.tasks.manage"
	PermissionRunTasks        = "admin.tasks.run"
	PermissionMaintenance     = "system.maintenance"
)

// Built-in role system names.
const (
	RoleAdministrators = "administrators"
	RoleOperators      = "operators"
	RoleGuests         = "guests"
)

// PermissionSeed describes one catalog entry.
type PermissionSeed struct {
	SystemName string
	Name       string
	Category   string
}

// BuiltinPermissions returns the platform permission catalog.
func BuiltinPermissions() []PermissionSeed {
	return []PermissionSeed{
		{SystemName: PermissionManageAccess, Name: "Manage roles and permissions", Category: "access"},
		{SystemName: PermissionReadActivity, Name: "View activity log", Category: "activity"},
		{SystemName: PermissionManageActivity, Name: "Manage activity log", Category: "activity"},
		{SystemName: PermissionReadCustomers, Name: "View customers", Category: "customers"},
		{SystemName: PermissionManageCustomers, Name: "Manage customers", Category: "customers"},
		{SystemName: PermissionManageDirectory, Name: "Manage countries and states", Category: "directory"},
		{SystemName: PermissionManageSettings, Name: "Manage settings", Category: "settings"},
		{SystemName: PermissionManageTasks, Name: "Manage schedule tasks", Category: "tasks"},
		{SystemName: PermissionRunTasks, Name: "Run schedule tasks", Category: "tasks"},
		{SystemName: PermissionMaintenance, Name: "Run maintenance operations", Category: "system"},
	}
}

// RoleSeed describes one built-in role and the permissions it starts with.
type RoleSeed struct {
	SystemName  string
	Name        string
	Permissions []string
}

// BuiltinRoles returns the roles shipped with the platform: administrators
// hold everything, operators can look and run tasks, guests hold nothing.
func BuiltinRoles() []RoleSeed {
	catalog := BuiltinPermissions()
	all := make([]string, 0, len(catalog))
	for _, seed := range catalog {
		all = append(all, seed.SystemName)
	}

	return []RoleSeed{
		{SystemName: RoleAdministrators, Name: "Administrators", Permissions: all},
		{SystemName: RoleOperators, Name: "Operators", Permissions: []string{
			PermissionReadActivity,
			PermissionReadCustomers,
			PermissionRunTasks,
		}},
		{SystemName: RoleGuests, Name: "Guests"},
	}
}
