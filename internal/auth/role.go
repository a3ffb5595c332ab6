package auth

import "strings"

// Role is a caller role carried in the credential's role claim.
type Role string

// Known roles.
const (
	RoleUser       Role = "USER"
	RolePlaceOwner Role = "PLACE_OWNER"
	RoleAdmin      Role = "ADMIN"
)

// ParseRole parses a role name case-insensitively.
func ParseRole(s string) (Role, bool) {
	switch r := Role(strings.ToUpper(s)); r {
	case RoleUser, RolePlaceOwner, RoleAdmin:
		return r, true
	default:
		return "", false
	}
}

// CanAccessGateway reports whether the role may use this gateway.
func (r Role) CanAccessGateway() bool {
	return r == RolePlaceOwner || r == RoleAdmin
}

// String returns the role name.
func (r Role) String() string {
	return string(r)
}
