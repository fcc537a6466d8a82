// Package identity defines the canonical identity record shared by the
// session authority, the route guard, and the remote auth client.
package identity

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jmcleod/fitx/internal/util"
)

// ErrUnknownRole is returned when a role string is neither user nor admin.
var ErrUnknownRole = errors.New("unknown role")

// Role is the coarse authorization tag carried by an identity.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// ParseRole accepts any casing and surrounding whitespace.
func ParseRole(s string) (Role, error) {
	switch Role(strings.ToLower(strings.TrimSpace(s))) {
	case RoleUser:
		return RoleUser, nil
	case RoleAdmin:
		return RoleAdmin, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownRole, s)
	}
}

func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

func (r Role) IsAdmin() bool {
	return r == RoleAdmin
}

// Identity is the authenticated user's profile record.
type Identity struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	Username  string `json:"username"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Role      Role   `json:"role"`
}

// DisplayName prefers the full name, then the username, then the email.
func (i Identity) DisplayName() string {
	if name := strings.TrimSpace(i.FirstName + " " + i.LastName); name != "" {
		return name
	}
	if i.Username != "" {
		return i.Username
	}
	return i.Email
}

// Profile is the registration payload.
type Profile struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	Username  string `json:"username,omitempty"`
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
	Role      Role   `json:"role"`
	// AdminCode is forwarded to services that gate admin registration
	// behind an invite code.
	AdminCode string `json:"adminCode,omitempty"`
}

// RequestedRole is the role the caller asked for; empty means user.
func (p Profile) RequestedRole() Role {
	if p.Role == "" {
		return RoleUser
	}
	return p.Role
}

// NormalizeEmail trims, folds compatibility forms and lowercases an address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(util.Normalize(email)))
}

// SplitName breaks a single display name into first and last parts.
func SplitName(name string) (first, last string) {
	fields := strings.Fields(name)
	switch len(fields) {
	case 0:
		return "", ""
	case 1:
		return fields[0], ""
	default:
		return fields[0], strings.Join(fields[1:], " ")
	}
}

// UsernameFromEmail returns the local part of an address.
func UsernameFromEmail(email string) string {
	local, _, _ := strings.Cut(email, "@")
	return local
}
