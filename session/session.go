// Package session owns the client's authentication state: credential
// exchange, token persistence, identity caching, and the post-login
// navigation decision.
//
// An Authority is constructed once per process with an injected
// tokenstore.Store and Remote, then passed explicitly to consumers.
// Mutating operations are serialized: at most one authentication attempt
// is in flight, and results that arrive after a Logout or Close are
// discarded rather than applied.
package session

import (
	"github.com/jmcleod/fitx/identity"
)

// Status is the authentication state of a session.
type Status int

const (
	Unauthenticated Status = iota
	Authenticating
	Authenticated
	AuthError
)

func (s Status) String() string {
	switch s {
	case Unauthenticated:
		return "unauthenticated"
	case Authenticating:
		return "authenticating"
	case Authenticated:
		return "authenticated"
	case AuthError:
		return "auth_error"
	default:
		return "unknown"
	}
}

// Snapshot is a point-in-time copy of the session. Identity and Token are
// set together, and only when Status is Authenticated.
type Snapshot struct {
	Status    Status
	Identity  *identity.Identity
	Token     string
	LastError string
}

// Role returns the identity's role, or "" when there is no identity.
func (s Snapshot) Role() identity.Role {
	if s.Identity == nil {
		return ""
	}
	return s.Identity.Role
}

// Outcome is the result of Login and Register. Target is the navigation
// target on success and empty otherwise.
type Outcome struct {
	Snapshot Snapshot
	Target   string
}

// Targets names the navigation destinations the authority and the route
// guard hand back to callers.
type Targets struct {
	UserHome   string
	AdminHome  string
	Login      string
	AdminLogin string
}

// DefaultTargets returns the application's route names.
func DefaultTargets() Targets {
	return Targets{
		UserHome:   "/dashboard",
		AdminHome:  "/admin-dashboard",
		Login:      "/login",
		AdminLogin: "/admin-login",
	}
}

// Home returns the landing target for role.
func (t Targets) Home(role identity.Role) string {
	if role == identity.RoleAdmin {
		return t.AdminHome
	}
	return t.UserHome
}
