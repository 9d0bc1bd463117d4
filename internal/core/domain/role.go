package domain

import (
	"fmt"
	"strings"
)

// Role is the authorization level the Authorization Service assigns to a user.
// It is a closed set: every switch over Role must handle both values.
type Role int

const (
	RoleUser Role = iota
	RoleAdmin
)

const (
	roleUserName  = "user"
	roleAdminName = "admin"
)

// ParseRole maps a server-issued role string onto Role. Absent or unrecognised
// values fall back to RoleUser.
func ParseRole(s string) Role {
	r, err := ParseRoleStrict(s)
	if err != nil {
		return RoleUser
	}
	return r
}

// ParseRoleStrict is ParseRole without the fallback; it is used for input that
// will be sent to the server, where a typo must not silently become "user".
func ParseRoleStrict(s string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case roleUserName:
		return RoleUser, nil
	case roleAdminName:
		return RoleAdmin, nil
	default:
		return RoleUser, fmt.Errorf("%w: %q", ErrInvalidRole, s)
	}
}

func (r Role) String() string {
	switch r {
	case RoleAdmin:
		return roleAdminName
	case RoleUser:
		return roleUserName
	default:
		return roleUserName
	}
}

// IsAdmin reports whether r grants the privileged variant of a route.
func (r Role) IsAdmin() bool { return r == RoleAdmin }

// Label is the human-facing name shown next to a user.
func (r Role) Label() string {
	switch r {
	case RoleAdmin:
		return "Admin"
	case RoleUser:
		return "User"
	default:
		return "User"
	}
}

func (r Role) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

func (r *Role) UnmarshalText(b []byte) error {
	*r = ParseRole(string(b))
	return nil
}
