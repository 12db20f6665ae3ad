package auth

import "fmt"

// Permission represents a named capability in the system.
type Permission string

// Permission constants.
const (
	PermDeviceRead    Permission = "device:read"
	PermDeviceOperate Permission = "device:operate"
	PermSystemAdmin   Permission = "system:admin"
)

// rolePermissions is the single source of truth for the authorisation
// model.
var rolePermissions = map[Role][]Permission{
	RoleViewer:   {PermDeviceRead},
	RoleOperator: {PermDeviceRead, PermDeviceOperate},
	RoleAdmin:    {PermDeviceRead, PermDeviceOperate, PermSystemAdmin},
}

// HasPermission returns true if the given role has the specified permission.
func HasPermission(role Role, perm Permission) bool {
	for _, p := range rolePermissions[role] {
		if p == perm {
			return true
		}
	}
	return false
}

// PermissionsForRole returns all permissions granted to a role.
// Returns nil for unknown roles.
func PermissionsForRole(role Role) []Permission {
	perms := rolePermissions[role]
	if perms == nil {
		return nil
	}
	result := make([]Permission, len(perms))
	copy(result, perms)
	return result
}

// Authorize returns ErrForbidden unless claims grant perm.
func Authorize(c *Claims, perm Permission) error {
	if c == nil {
		return ErrTokenMissing
	}
	if !HasPermission(c.Role, perm) {
		return fmt.Errorf("%w: role %q lacks %s", ErrForbidden, c.Role, perm)
	}
	return nil
}
