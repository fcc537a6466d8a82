package guard

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmcleod/fitx/identity"
	"github.com/jmcleod/fitx/session"
)

func authenticated(role identity.Role) session.Snapshot {
	return session.Snapshot{
		Status:   session.Authenticated,
		Identity: &identity.Identity{ID: "1", Email: "a@example.com", Role: role},
		Token:    "tok",
	}
}

func TestDecide(t *testing.T) {
	pending := session.Snapshot{Status: session.Authenticating}
	anon := session.Snapshot{Status: session.Unauthenticated}
	failed := session.Snapshot{Status: session.AuthError, LastError: "Invalid email or password"}
	user := authenticated(identity.RoleUser)
	admin := authenticated(identity.RoleAdmin)

	allow := Decision{Verdict: Allow}
	tests := []struct {
		name string
		s    session.Snapshot
		req  Requirement
		want Decision
	}{
		{"pending any", pending, AnyRole, Decision{Verdict: Pending}},
		{"pending admin", pending, AdminRole, Decision{Verdict: Pending}},
		{"anonymous any", anon, AnyRole, Decision{Verdict: Redirect, Target: "/login"}},
		{"anonymous user", anon, UserRole, Decision{Verdict: Redirect, Target: "/login"}},
		{"anonymous admin", anon, AdminRole, Decision{Verdict: Redirect, Target: "/admin-login"}},
		{"auth error any", failed, AnyRole, Decision{Verdict: Redirect, Target: "/login"}},
		{"auth error admin", failed, AdminRole, Decision{Verdict: Redirect, Target: "/admin-login"}},
		{"user any", user, AnyRole, allow},
		{"user user", user, UserRole, allow},
		{"user admin", user, AdminRole, Decision{Verdict: Redirect, Target: "/dashboard"}},
		{"admin any", admin, AnyRole, allow},
		{"admin admin", admin, AdminRole, allow},
		{"admin user", admin, UserRole, allow},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Decide(tt.s, tt.req))
		})
	}
}

func TestStrictUserRoutes(t *testing.T) {
	g := New(WithStrictUserRoutes(true))
	assert.Equal(t, Decision{Verdict: Redirect, Target: "/admin-dashboard"}, g.Decide(authenticated(identity.RoleAdmin), UserRole))
	assert.Equal(t, Decision{Verdict: Allow}, g.Decide(authenticated(identity.RoleAdmin), AnyRole))
	assert.Equal(t, Decision{Verdict: Allow}, g.Decide(authenticated(identity.RoleUser), UserRole))
}

func TestDecideIsPure(t *testing.T) {
	s := authenticated(identity.RoleUser)
	before := *s.Identity
	for i := 0; i < 3; i++ {
		assert.Equal(t, Decide(s, AdminRole), Decide(s, AdminRole))
	}
	assert.Equal(t, before, *s.Identity)
}

func TestCheck(t *testing.T) {
	g := New()
	anon := session.Snapshot{Status: session.Unauthenticated}
	user := authenticated(identity.RoleUser)
	admin := authenticated(identity.RoleAdmin)

	tests := []struct {
		name string
		s    session.Snapshot
		path string
		want Decision
	}{
		{"public root", anon, "/", Decision{Verdict: Allow}},
		{"public login", anon, "/login", Decision{Verdict: Allow}},
		{"public admin login", anon, "/admin-login", Decision{Verdict: Allow}},
		{"public with trailing slash", anon, "/register/", Decision{Verdict: Allow}},
		{"public with query", anon, "/forgot-password?email=a", Decision{Verdict: Allow}},
		{"protected anonymous", anon, "/dashboard", Decision{Verdict: Redirect, Target: "/login"}},
		{"protected user", user, "/exercise-library", Decision{Verdict: Allow}},
		{"admin page anonymous", anon, "/admin/users", Decision{Verdict: Redirect, Target: "/admin-login"}},
		{"admin page user", user, "/admin-dashboard", Decision{Verdict: Redirect, Target: "/dashboard"}},
		{"admin page admin", admin, "/admin/system-settings", Decision{Verdict: Allow}},
		{"alias", admin, "/admin", Decision{Verdict: Redirect, Target: "/admin-dashboard"}},
		{"unknown", admin, "/nope", Decision{Verdict: Redirect, Target: "/login"}},
		{"pending", session.Snapshot{Status: session.Authenticating}, "/dashboard", Decision{Verdict: Pending}},
		{"pending public", session.Snapshot{Status: session.Authenticating}, "/login", Decision{Verdict: Allow}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, g.Check(tt.s, tt.path))
		})
	}
}

func TestCustomTargetsAndRoutes(t *testing.T) {
	targets := session.Targets{UserHome: "/home", AdminHome: "/ops", Login: "/signin", AdminLogin: "/ops/signin"}
	g := New(
		WithTargets(targets),
		WithRoutes(NewTable(Route{Path: "/reports", Require: AdminRole})),
	)
	anon := session.Snapshot{Status: session.Unauthenticated}
	assert.Equal(t, Decision{Verdict: Redirect, Target: "/ops/signin"}, g.Check(anon, "/reports"))
	assert.Equal(t, Decision{Verdict: Redirect, Target: "/signin"}, g.Check(anon, "/dashboard"))
	assert.Equal(t, Decision{Verdict: Redirect, Target: "/home"}, g.Check(authenticated(identity.RoleUser), "/reports"))
	assert.Len(t, g.Routes().All(), 1)
}

func TestDefaultTable(t *testing.T) {
	all := DefaultTable().All()
	require.NotEmpty(t, all)
	for i := 1; i < len(all); i++ {
		assert.Less(t, all[i-1].Path, all[i].Path)
	}
	r, ok := DefaultTable().Resolve("admin/users")
	require.True(t, ok)
	assert.Equal(t, AdminRole, r.Require)
}

type staticSource struct{ s session.Snapshot }

func (s staticSource) Snapshot() session.Snapshot { return s.s }

func TestMiddleware(t *testing.T) {
	newServer := func(s session.Snapshot) *httptest.Server {
		r := chi.NewRouter()
		r.Use(New().Middleware(staticSource{s}, nil))
		r.Get("/*", func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("ok " + r.URL.Path))
		})
		return httptest.NewServer(r)
	}
	noFollow := &http.Client{CheckRedirect: func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}}

	tests := []struct {
		name     string
		s        session.Snapshot
		path     string
		status   int
		location string
	}{
		{"allowed", authenticated(identity.RoleUser), "/dashboard", http.StatusOK, ""},
		{"public", session.Snapshot{}, "/login", http.StatusOK, ""},
		{"redirect", session.Snapshot{}, "/dashboard", http.StatusSeeOther, "/login"},
		{"admin redirect", authenticated(identity.RoleUser), "/admin/users", http.StatusSeeOther, "/dashboard"},
		{"pending", session.Snapshot{Status: session.Authenticating}, "/dashboard", http.StatusServiceUnavailable, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newServer(tt.s)
			defer srv.Close()

			resp, err := noFollow.Get(srv.URL + tt.path)
			require.NoError(t, err)
			defer resp.Body.Close()

			assert.Equal(t, tt.status, resp.StatusCode)
			assert.Equal(t, tt.location, resp.Header.Get("Location"))
			if tt.status == http.StatusServiceUnavailable {
				assert.Equal(t, "1", resp.Header.Get("Retry-After"))
			}
		})
	}
}

func TestStrings(t *testing.T) {
	assert.Equal(t, "allow", Decision{Verdict: Allow}.String())
	assert.Equal(t, "redirect /login", Decision{Verdict: Redirect, Target: "/login"}.String())
	assert.Equal(t, "pending", Pending.String())
	assert.Equal(t, "admin", AdminRole.String())
	assert.Equal(t, "any", AnyRole.String())
}
