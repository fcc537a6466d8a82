// Package guard decides whether a screen may be shown for the current
// session. Decisions are pure functions of a session.Snapshot and the
// route's role requirement.
package guard

import (
	"github.com/jmcleod/fitx/identity"
	"github.com/jmcleod/fitx/session"
)

// Verdict is the kind of a Decision.
type Verdict int

const (
	// Allow renders the requested screen.
	Allow Verdict = iota
	// Pending means the session is still being established; show a
	// loading affordance rather than redirecting.
	Pending
	// Redirect navigates to Decision.Target.
	Redirect
)

func (v Verdict) String() string {
	switch v {
	case Allow:
		return "allow"
	case Pending:
		return "pending"
	case Redirect:
		return "redirect"
	default:
		return "unknown"
	}
}

// Requirement is the role a guarded route demands.
type Requirement int

const (
	// AnyRole admits every authenticated identity.
	AnyRole Requirement = iota
	UserRole
	AdminRole
)

func (r Requirement) String() string {
	switch r {
	case UserRole:
		return "user"
	case AdminRole:
		return "admin"
	default:
		return "any"
	}
}

// Decision is the outcome of a guard check.
type Decision struct {
	Verdict Verdict
	Target  string
}

func (d Decision) String() string {
	if d.Verdict == Redirect {
		return "redirect " + d.Target
	}
	return d.Verdict.String()
}

// Guard evaluates route requirements against session snapshots.
type Guard struct {
	targets session.Targets
	strict  bool
	routes  *Table
}

// Option configures a Guard.
type Option func(*Guard)

// WithTargets overrides the redirect targets.
func WithTargets(t session.Targets) Option {
	return func(g *Guard) {
		g.targets = t
	}
}

// WithStrictUserRoutes sends admins on user-only routes to the admin home
// instead of letting them through.
func WithStrictUserRoutes(strict bool) Option {
	return func(g *Guard) {
		g.strict = strict
	}
}

// WithRoutes replaces the default route table.
func WithRoutes(t *Table) Option {
	return func(g *Guard) {
		g.routes = t
	}
}

// New returns a guard using the default targets and route table.
func New(opts ...Option) *Guard {
	g := &Guard{
		targets: session.DefaultTargets(),
		routes:  DefaultTable(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Decide applies the default guard to s.
func Decide(s session.Snapshot, req Requirement) Decision {
	return New().Decide(s, req)
}

// Decide evaluates, in order: pending session, missing session, role
// requirement.
func (g *Guard) Decide(s session.Snapshot, req Requirement) Decision {
	switch s.Status {
	case session.Authenticating:
		return Decision{Verdict: Pending}
	case session.Authenticated:
	default:
		if req == AdminRole {
			return Decision{Verdict: Redirect, Target: g.targets.AdminLogin}
		}
		return Decision{Verdict: Redirect, Target: g.targets.Login}
	}

	role := s.Role()
	switch req {
	case AdminRole:
		if role != identity.RoleAdmin {
			return Decision{Verdict: Redirect, Target: g.targets.UserHome}
		}
	case UserRole:
		if role == identity.RoleAdmin && g.strict {
			return Decision{Verdict: Redirect, Target: g.targets.AdminHome}
		}
	}
	return Decision{Verdict: Allow}
}

// Check resolves path against the route table and decides. Aliases and
// unknown paths redirect without consulting the session.
func (g *Guard) Check(s session.Snapshot, path string) Decision {
	route, ok := g.routes.Resolve(path)
	switch {
	case !ok:
		return Decision{Verdict: Redirect, Target: g.targets.Login}
	case route.Alias != "":
		return Decision{Verdict: Redirect, Target: route.Alias}
	case route.Public:
		return Decision{Verdict: Allow}
	}
	return g.Decide(s, route.Require)
}

// Routes returns the route table in use.
func (g *Guard) Routes() *Table {
	return g.routes
}
