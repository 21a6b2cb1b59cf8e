// Package auth provides authorization types for the platform.
package auth

// Role represents a user role in the system.
type Role string

const (
	RoleAdmin   Role = "admin"   // Platform operations, assignment, audit access
	RoleDoctor  Role = "doctor"  // Reviewing specialist
	RolePatient Role = "patient" // Case owner
)

// Valid reports whether the role is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleDoctor, RolePatient:
		return true
	}
	return false
}

// Permission represents a specific action on a resource.
type Permission string

// Case permissions
const (
	PermCaseCreate   Permission = "case.create"
	PermCaseRead     Permission = "case.read"
	PermCaseUpdate   Permission = "case.update"
	PermCaseAssign   Permission = "case.assign"
	PermCaseCancel   Permission = "case.cancel"
	PermCaseComplete Permission = "case.complete"
)

// Audit permissions
const (
	PermAuditRead Permission = "audit.read"
)

// RolePermissions maps roles to their default permissions. Ownership checks
// (own case, assigned case) are enforced by the case service on top of these.
var RolePermissions = map[Role][]Permission{
	RoleAdmin: {
		PermCaseCreate, PermCaseRead, PermCaseUpdate,
		PermCaseAssign, PermCaseCancel, PermCaseComplete,
		PermAuditRead,
	},
	RoleDoctor: {
		PermCaseRead, PermCaseUpdate, PermCaseComplete,
	},
	RolePatient: {
		PermCaseCreate, PermCaseRead, PermCaseUpdate, PermCaseCancel,
	},
}

// HasPermission checks if a role has a specific permission.
func HasPermission(role Role, perm Permission) bool {
	perms, ok := RolePermissions[role]
	if !ok {
		return false
	}
	for _, p := range perms {
		if p == perm {
			return true
		}
	}
	return false
}
