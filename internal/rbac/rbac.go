// Package rbac defines the project role hierarchy and its ordering.
package rbac

type Role string

const (
	RoleViewer Role = "viewer"
	RoleEditor Role = "editor"
	RoleOwner  Role = "owner"
)

// level maps a role onto the total order viewer < editor < owner.
// Unknown roles sit below viewer so they never satisfy a requirement.
func level(role Role) int {
	switch role {
	case RoleOwner:
		return 3
	case RoleEditor:
		return 2
	case RoleViewer:
		return 1
	default:
		return 0
	}
}

// AtLeast reports whether role grants every capability of min.
func AtLeast(role, min Role) bool {
	return level(role) >= level(min) && level(role) > 0
}

// Valid reports whether role is one of the known roles.
func Valid(role Role) bool {
	return level(role) > 0
}

// Normalize coerces arbitrary input to a known role, defaulting to viewer.
func Normalize(role string) Role {
	switch Role(role) {
	case RoleViewer, RoleEditor, RoleOwner:
		return Role(role)
	default:
		return RoleViewer
	}
}
