package models

// Role is the closed set of account roles.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Capability is a named permission granted by a role.
type Capability string

const (
	CapabilityRead   Capability = "read"
	CapabilityCreate Capability = "create"
	CapabilityUpdate Capability = "update"
	CapabilityDelete Capability = "delete"
)

// ParseRole maps a request string onto a known role. Empty input yields RoleUser.
func ParseRole(s string) (Role, bool) {
	switch Role(s) {
	case "", RoleUser:
		return RoleUser, true
	case RoleAdmin:
		return RoleAdmin, true
	default:
		return "", false
	}
}

// Capabilities returns the capability set of r. Unknown roles have none.
func (r Role) Capabilities() []Capability {
	switch r {
	case RoleUser:
		return []Capability{CapabilityRead, CapabilityCreate, CapabilityUpdate, CapabilityDelete}
	case RoleAdmin:
		return []Capability{CapabilityRead, CapabilityCreate, CapabilityUpdate, CapabilityDelete}
	default:
		return nil
	}
}

// Can reports whether r grants c.
func (r Role) Can(c Capability) bool {
	for _, granted := range r.Capabilities() {
		if granted == c {
			return true
		}
	}
	return false
}

// IsAdmin reports whether r bypasses ownership checks.
func (r Role) IsAdmin() bool {
	return r == RoleAdmin
}
