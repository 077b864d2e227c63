package auth

import (
	"context"
	"slices"
)

const (
	RoleEmployee    = "Employee"
	RoleManager     = "Manager"
	RoleHR          = "HR"
	RolePayroll     = "Payroll"
	RoleSystemAdmin = "SystemAdmin"
)

const (
	PermPayrollRead = "payroll.read"
	PermPayrollRun  = "payroll.run"
	PermAuditRead   = "audit.read"
	PermSystemAdmin = "admin.system"
)

var DefaultPermissions = []string{
	PermPayrollRead,
	PermPayrollRun,
	PermAuditRead,
	PermSystemAdmin,
}

var RolePermissions = map[string][]string{
	RoleEmployee: {
		PermPayrollRead,
	},
	RoleManager: {
		PermPayrollRead,
	},
	RoleHR: {
		PermPayrollRead,
		PermPayrollRun,
		PermAuditRead,
	},
	RolePayroll: {
		PermPayrollRead,
		PermPayrollRun,
	},
	RoleSystemAdmin: {
		PermAuditRead,
		PermSystemAdmin,
	},
}

// StaticPermissions resolves permissions from RolePermissions by role name.
type StaticPermissions struct{}

func (StaticPermissions) HasPermission(_ context.Context, roleName, permission string) (bool, error) {
	perms, ok := RolePermissions[roleName]
	if !ok {
		return false, nil
	}
	return slices.Contains(perms, permission), nil
}
