package auth

import "context"

const (
	RolePayrollAdmin   = "payroll_admin"
	RolePayrollOfficer = "payroll_officer"
	RoleAuditor        = "auditor"
)

const (
	PermPayrollCalculate   = "payroll.calculate"
	PermDeclarationsRead   = "declarations.read"
	PermDeclarationsWrite  = "declarations.write"
	PermDeclarationsEncode = "declarations.encode"
	PermDeclarationsSubmit = "declarations.transmit"
	PermDocumentsDownload  = "declarations.documents"
	PermAuditRead          = "audit.read"
)

var RolePermissions = map[string][]string{
	RolePayrollAdmin: {
		PermPayrollCalculate,
		PermDeclarationsRead,
		PermDeclarationsWrite,
		PermDeclarationsEncode,
		PermDeclarationsSubmit,
		PermDocumentsDownload,
		PermAuditRead,
	},
	RolePayrollOfficer: {
		PermPayrollCalculate,
		PermDeclarationsRead,
		PermDeclarationsWrite,
		PermDocumentsDownload,
	},
	RoleAuditor: {
		PermDeclarationsRead,
		PermDocumentsDownload,
		PermAuditRead,
	},
}

// StaticPermissions answers permission checks from RolePermissions. Roles
// are carried by name in the token.
type StaticPermissions struct{}

func (StaticPermissions) HasPermission(_ context.Context, role, permission string) (bool, error) {
	for _, p := range RolePermissions[role] {
		if p == permission {
			return true, nil
		}
	}
	return false, nil
}
