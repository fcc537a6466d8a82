package session_test

import (
	"context"
	"io"
	"log/slog"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmcleod/fitx/authclient"
	"github.com/jmcleod/fitx/authserver"
	"github.com/jmcleod/fitx/guard"
	"github.com/jmcleod/fitx/identity"
	"github.com/jmcleod/fitx/internal/util"
	"github.com/jmcleod/fitx/session"
	boltstore "github.com/jmcleod/fitx/tokenstore/bbolt"
	"github.com/jmcleod/fitx/tokenstore/memory"
)

func startAuthServer(t *testing.T, opts ...authserver.Option) string {
	t.Helper()
	opts = append([]authserver.Option{
		authserver.WithArgon2idParams(util.Argon2idParams{Time: 1, MemoryKiB: 1024, Parallelism: 1, KeyLen: 32}),
		authserver.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	}, opts...)
	s, err := authserver.New(opts...)
	require.NoError(t, err)
	r := chi.NewRouter()
	r.Mount("/api", s.Router("/api"))
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv.URL + "/api"
}

func TestSessionAgainstAuthServer(t *testing.T) {
	ctx := context.Background()
	baseURL := startAuthServer(t, authserver.WithAdminInviteCode("invite"))
	client := authclient.New(baseURL)

	key, err := util.NewAESKey()
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "session.db")

	store, err := boltstore.Open(path, key)
	require.NoError(t, err)
	a := session.New(store, client)

	out, err := a.Register(ctx, identity.Profile{
		Email: "coach@example.com", Password: "secret1", Role: identity.RoleAdmin, AdminCode: "invite",
	})
	require.NoError(t, err)
	assert.Equal(t, "/admin-dashboard", out.Target)

	g := guard.New()
	assert.Equal(t, guard.Decision{Verdict: guard.Allow}, g.Check(a.Snapshot(), "/admin/users"))

	var users authserver.ListUsersResponse
	require.NoError(t, a.Do(ctx, func(ctx context.Context, token string) error {
		return client.Call(ctx, token, "GET", "/admin/users", nil, &users)
	}))
	require.Len(t, users.Users, 1)

	a.Close()
	require.NoError(t, store.Close())

	// A new process restores and verifies the persisted session.
	store, err = boltstore.Open(path, key)
	require.NoError(t, err)
	defer store.Close()
	b := session.New(store, client)
	defer b.Close()

	assert.Equal(t, guard.Decision{Verdict: guard.Pending}, g.Check(b.Snapshot(), "/dashboard"))
	snap, err := b.VerifySession(ctx)
	require.NoError(t, err)
	assert.Equal(t, session.Authenticated, snap.Status)
	assert.Equal(t, identity.RoleAdmin, snap.Role())
	assert.Equal(t, "coach@example.com", snap.Identity.Email)

	token := snap.Token
	b.Logout()
	_, ok := store.Load()
	assert.False(t, ok)

	// The revoked token no longer resolves once the background revoke lands.
	b.Close()
	_, err = client.FetchCurrentIdentity(ctx, token)
	require.ErrorIs(t, err, authclient.ErrUnauthorized)
}

func TestUnverifiedLogoutRevokesAgainstAuthServer(t *testing.T) {
	ctx := context.Background()
	client := authclient.New(startAuthServer(t))
	store := memory.New()

	a := session.New(store, client)
	out, err := a.Register(ctx, identity.Profile{Email: "jo@example.com", Password: "secret1"})
	require.NoError(t, err)
	token := out.Snapshot.Token
	a.Close()

	// A later process logs out without verifying the stored token first.
	b := session.New(store, client)
	require.Equal(t, session.Authenticating, b.Snapshot().Status)
	b.Logout()
	b.Close()

	_, err = client.FetchCurrentIdentity(ctx, token)
	require.ErrorIs(t, err, authclient.ErrUnauthorized)
}

func TestSessionAdminDowngradeAgainstAuthServer(t *testing.T) {
	ctx := context.Background()
	client := authclient.New(startAuthServer(t))

	a := session.New(memory.New(), client)
	defer a.Close()

	out, err := a.Register(ctx, identity.Profile{
		Email: "sneaky@example.com", Password: "secret1", Role: identity.RoleAdmin,
	})
	require.ErrorIs(t, err, authclient.ErrUnauthorized)
	assert.Equal(t, session.AuthError, out.Snapshot.Status)
	assert.Equal(t, session.MsgAdminNotPermitted, out.Snapshot.LastError)

	a.ClearError()
	out, err = a.Login(ctx, "sneaky@example.com", "wrong")
	require.ErrorIs(t, err, authclient.ErrInvalidCredentials)
	assert.Equal(t, session.MsgInvalidCredentials, out.Snapshot.LastError)

	out, err = a.Login(ctx, "sneaky@example.com", "secret1")
	require.NoError(t, err)
	assert.Equal(t, "/dashboard", out.Target)

	_, err = a.Register(ctx, identity.Profile{Email: "sneaky@example.com", Password: "secret1"})
	require.ErrorIs(t, err, authclient.ErrConflict)
	assert.Equal(t, "User already exists", a.Snapshot().LastError)
}

func TestSessionNetworkFailure(t *testing.T) {
	srv := httptest.NewServer(nil)
	url := srv.URL
	srv.Close()

	a := session.New(memory.New(), authclient.New(url))
	defer a.Close()

	out, err := a.Login(context.Background(), "a@example.com", "pw")
	require.ErrorIs(t, err, authclient.ErrNetwork)
	assert.Equal(t, session.MsgNetwork, out.Snapshot.LastError)
}
