package guard

import (
	"path"
	"sort"
	"strings"
)

// Route is one navigable screen.
type Route struct {
	Path    string
	Public  bool
	Require Requirement
	// Alias, when set, redirects to another path.
	Alias string
}

// Table maps request paths to routes.
type Table struct {
	routes map[string]Route
}

// NewTable builds a table. Later routes with the same path win.
func NewTable(routes ...Route) *Table {
	t := &Table{routes: make(map[string]Route, len(routes))}
	for _, r := range routes {
		t.routes[cleanPath(r.Path)] = r
	}
	return t
}

// DefaultTable returns the application's screens.
func DefaultTable() *Table {
	return NewTable(
		Route{Path: "/", Public: true},
		Route{Path: "/login", Public: true},
		Route{Path: "/register", Public: true},
		Route{Path: "/forgot-password", Public: true},
		Route{Path: "/admin-login", Public: true},
		Route{Path: "/admin-register", Public: true},

		Route{Path: "/dashboard", Require: UserRole},
		Route{Path: "/exercise-library", Require: AnyRole},
		Route{Path: "/progress-tracking", Require: UserRole},
		Route{Path: "/user-profile", Require: AnyRole},
		Route{Path: "/workout-plans", Require: UserRole},
		Route{Path: "/system-settings", Require: AnyRole},

		Route{Path: "/admin-dashboard", Require: AdminRole},
		Route{Path: "/admin/users", Require: AdminRole},
		Route{Path: "/admin/exercise-library", Require: AdminRole},
		Route{Path: "/admin/system-settings", Require: AdminRole},

		Route{Path: "/admin", Alias: "/admin-dashboard"},
	)
}

// Resolve looks up p after cleaning it. Query strings and trailing
// slashes are ignored.
func (t *Table) Resolve(p string) (Route, bool) {
	r, ok := t.routes[cleanPath(p)]
	return r, ok
}

// All returns the routes sorted by path.
func (t *Table) All() []Route {
	out := make([]Route, 0, len(t.routes))
	for _, r := range t.routes {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

func cleanPath(p string) string {
	if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return path.Clean(p)
}
