package auth

import "context"

const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

const (
	PermDirectoryRead  = "directory.read"
	PermDirectoryWrite = "directory.write"
	PermTasksRead      = "tasks.read"
	PermLeaveTransfer  = "tasks.leave_transfer"
	PermHolidaysRead   = "holidays.read"
	PermHolidaysWrite  = "holidays.write"
	PermHolidaysExport = "holidays.export"
	PermSystemAdmin    = "admin.system"
)

var DefaultPermissions = []string{
	PermDirectoryRead,
	PermDirectoryWrite,
	PermTasksRead,
	PermLeaveTransfer,
	PermHolidaysRead,
	PermHolidaysWrite,
	PermHolidaysExport,
	PermSystemAdmin,
}

var RolePermissions = map[string][]string{
	RoleAdmin: DefaultPermissions,
	RoleUser: {
		PermDirectoryRead,
		PermTasksRead,
		PermHolidaysRead,
		PermHolidaysExport,
	},
}

// StaticPermissions answers permission checks from RolePermissions.
type StaticPermissions struct{}

func (StaticPermissions) HasPermission(_ context.Context, role, permission string) (bool, error) {
	for _, p := range RolePermissions[role] {
		if p == permission {
			return true, nil
		}
	}
	return false, nil
}
