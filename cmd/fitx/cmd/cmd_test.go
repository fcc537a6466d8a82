package cmd

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmcleod/fitx/authserver"
	"github.com/jmcleod/fitx/internal/util"
)

func startServer(t *testing.T) {
	t.Helper()
	s, err := authserver.New(
		authserver.WithArgon2idParams(util.Argon2idParams{Time: 1, MemoryKiB: 1024, Parallelism: 1, KeyLen: 32}),
		authserver.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		authserver.WithAdminInviteCode("invite"),
	)
	require.NoError(t, err)
	r := chi.NewRouter()
	r.Mount("/api", s.Router("/api"))
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	t.Setenv("FITX_API_URL", srv.URL+"/api")
	t.Setenv("FITX_DATA_DIR", t.TempDir())
	t.Setenv("FITX_LOG_LEVEL", "error")
}

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	root := NewRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(args)
	err := root.ExecuteContext(t.Context())
	return out.String(), err
}

func TestUserFlow(t *testing.T) {
	startServer(t)

	out, err := run(t, "", "register", "-e", "jane@example.com", "-p", "secret1", "--name", "Jane Doe")
	require.NoError(t, err, out)
	assert.Contains(t, out, "Registered Jane Doe <jane@example.com> (user)")
	assert.Contains(t, out, "Next: /dashboard")

	out, err = run(t, "secret1\n", "login", "-e", "JANE@example.com")
	require.NoError(t, err, out)
	assert.Contains(t, out, "Next: /dashboard")

	out, err = run(t, "", "status", "--json")
	require.NoError(t, err, out)
	var st statusOutput
	require.NoError(t, json.Unmarshal([]byte(out), &st))
	assert.Equal(t, "authenticated", st.Status)
	assert.Equal(t, "user", st.Role)
	assert.Equal(t, "/dashboard", st.Home)

	out, err = run(t, "", "open", "/dashboard")
	require.NoError(t, err)
	assert.Equal(t, "allow\n", out)

	out, err = run(t, "", "open", "/admin-dashboard")
	require.Error(t, err)
	assert.Contains(t, out, "redirect /dashboard")

	out, err = run(t, "", "get", "/auth/me")
	require.NoError(t, err, out)
	assert.Contains(t, out, `"email": "jane@example.com"`)

	_, err = run(t, "", "get", "/admin/users")
	require.ErrorContains(t, err, "admin access required")

	// A forbidden resource does not end the session.
	out, err = run(t, "", "open", "/dashboard")
	require.NoError(t, err)
	assert.Equal(t, "allow\n", out)

	out, err = run(t, "", "logout")
	require.NoError(t, err)
	assert.Contains(t, out, "Logged out")

	out, err = run(t, "", "status")
	require.NoError(t, err)
	assert.Contains(t, out, "Status: unauthenticated")

	out, err = run(t, "", "open", "/dashboard")
	require.Error(t, err)
	assert.Contains(t, out, "redirect /login")

	_, err = run(t, "", "get", "/auth/me")
	require.ErrorContains(t, err, "not logged in")
}

func TestAdminFlow(t *testing.T) {
	startServer(t)

	_, err := run(t, "", "register", "-e", "boss@example.com", "-p", "secret1", "--admin")
	require.EqualError(t, err, "Registration as admin was not permitted")

	_, err = run(t, "", "open", "/admin/users")
	require.Error(t, err)

	out, err := run(t, "", "register", "-e", "chief@example.com", "-p", "secret1", "--admin", "--admin-code", "invite")
	require.NoError(t, err, out)
	assert.Contains(t, out, "Next: /admin-dashboard")

	out, err = run(t, "", "open", "--list")
	require.NoError(t, err)
	assert.Contains(t, out, "/admin/users")
	assert.NotContains(t, out, "pending")

	out, err = run(t, "", "open", "/admin")
	require.Error(t, err)
	assert.Contains(t, out, "redirect /admin-dashboard")

	out, err = run(t, "", "get", "/admin/users")
	require.NoError(t, err, out)
	assert.Contains(t, out, "boss@example.com")
	assert.Contains(t, out, "chief@example.com")
}

func TestLoginErrors(t *testing.T) {
	startServer(t)

	_, err := run(t, "", "login", "-e", "ghost@example.com", "-p", "secret1")
	require.EqualError(t, err, "Invalid email or password")

	_, err = run(t, "", "login", "-p", "secret1")
	require.Error(t, err, "email is required")

	_, err = run(t, "", "--store", "nope", "status")
	require.ErrorContains(t, err, "store must be")
}

func TestLoginNetworkError(t *testing.T) {
	t.Setenv("FITX_API_URL", "http://127.0.0.1:1/api")
	t.Setenv("FITX_DATA_DIR", t.TempDir())
	t.Setenv("FITX_LOG_LEVEL", "error")

	_, err := run(t, "", "login", "-e", "a@example.com", "-p", "secret1")
	require.EqualError(t, err, "Unable to connect to server. Check if backend is running.")
}

func TestMemoryStoreDoesNotPersist(t *testing.T) {
	startServer(t)

	_, err := run(t, "", "--store", "memory", "register", "-e", "a@example.com", "-p", "secret1")
	require.NoError(t, err)

	out, err := run(t, "", "--store", "memory", "status")
	require.NoError(t, err)
	assert.Contains(t, out, "Status: unauthenticated")
}

func TestVersion(t *testing.T) {
	out, err := run(t, "", "version")
	require.NoError(t, err)
	assert.Equal(t, "fitx dev\n", out)
}
