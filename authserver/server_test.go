package authserver_test

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmcleod/fitx/authserver"
	"github.com/jmcleod/fitx/identity"
	"github.com/jmcleod/fitx/internal/util"
)

var fastParams = util.Argon2idParams{Time: 1, MemoryKiB: 1024, Parallelism: 1, KeyLen: 32}

func setupServer(t *testing.T, opts ...authserver.Option) *httptest.Server {
	t.Helper()
	opts = append([]authserver.Option{
		authserver.WithArgon2idParams(fastParams),
		authserver.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	}, opts...)
	s, err := authserver.New(opts...)
	require.NoError(t, err)
	r := chi.NewRouter()
	r.Mount("/api", s.Router("/api"))
	return httptest.NewServer(r)
}

func doJSON(t *testing.T, method, url, token string, body any) *http.Response {
	t.Helper()
	var reqBody bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&reqBody).Encode(body))
	}
	req, err := http.NewRequestWithContext(t.Context(), method, url, &reqBody)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func decodeEnvelope[T any](t *testing.T, resp *http.Response) (authserver.Envelope, T) {
	t.Helper()
	defer resp.Body.Close()
	var env authserver.Envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	var data T
	if len(env.Data) > 0 {
		require.NoError(t, json.Unmarshal(env.Data, &data))
	}
	return env, data
}

func register(t *testing.T, baseURL string, req authserver.RegisterRequest) authserver.AuthResponse {
	t.Helper()
	resp := doJSON(t, http.MethodPost, baseURL+"/api/auth/register", "", req)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	env, data := decodeEnvelope[authserver.AuthResponse](t, resp)
	require.True(t, env.Success)
	require.NotEmpty(t, data.Token)
	return data
}

func TestRegisterLoginMeLogout(t *testing.T) {
	srv := setupServer(t)
	defer srv.Close()

	reg := register(t, srv.URL, authserver.RegisterRequest{
		Email: "Jane@Example.com", Password: "secret1", Name: "Jane Doe",
	})
	assert.Equal(t, "jane@example.com", reg.User.Email)
	assert.Equal(t, "Jane", reg.User.FirstName)
	assert.Equal(t, "Doe", reg.User.LastName)
	assert.Equal(t, "jane", reg.User.Username)
	assert.Equal(t, identity.RoleUser, reg.User.Role)

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/auth/login", "", authserver.LoginRequest{
		Email: "jane@example.com", Password: "secret1",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	_, login := decodeEnvelope[authserver.AuthResponse](t, resp)
	assert.Equal(t, reg.User.ID, login.User.ID)

	resp = doJSON(t, http.MethodGet, srv.URL+"/api/auth/me", login.Token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	_, me := decodeEnvelope[authserver.MeResponse](t, resp)
	assert.Equal(t, reg.User.ID, me.User.ID)

	resp = doJSON(t, http.MethodPost, srv.URL+"/api/auth/logout", login.Token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = doJSON(t, http.MethodGet, srv.URL+"/api/auth/me", login.Token, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()

	// Other tokens for the same account stay valid.
	resp = doJSON(t, http.MethodGet, srv.URL+"/api/auth/me", reg.Token, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()
}

func TestRegisterValidation(t *testing.T) {
	srv := setupServer(t)
	defer srv.Close()

	register(t, srv.URL, authserver.RegisterRequest{Email: "taken@example.com", Password: "secret1"})

	tests := []struct {
		name   string
		body   any
		status int
		msg    string
	}{
		{"duplicate", authserver.RegisterRequest{Email: "TAKEN@example.com", Password: "secret1"}, http.StatusConflict, "User already exists"},
		{"missing password", authserver.RegisterRequest{Email: "a@example.com"}, http.StatusBadRequest, "Email and password are required"},
		{"bad email", authserver.RegisterRequest{Email: "nope", Password: "secret1"}, http.StatusBadRequest, "Invalid email address"},
		{"short password", authserver.RegisterRequest{Email: "a@example.com", Password: "abc"}, http.StatusBadRequest, "Password must be at least 6 characters"},
		{"bad role", authserver.RegisterRequest{Email: "a@example.com", Password: "secret1", Role: "root"}, http.StatusBadRequest, "Invalid role"},
		{"bad body", "not an object", http.StatusBadRequest, "invalid request body"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := doJSON(t, http.MethodPost, srv.URL+"/api/auth/register", "", tt.body)
			assert.Equal(t, tt.status, resp.StatusCode)
			env, _ := decodeEnvelope[struct{}](t, resp)
			assert.False(t, env.Success)
			assert.Equal(t, tt.msg, env.Message)
		})
	}
}

func TestAdminRegistration(t *testing.T) {
	t.Run("without invite code configured", func(t *testing.T) {
		srv := setupServer(t)
		defer srv.Close()
		reg := register(t, srv.URL, authserver.RegisterRequest{
			Email: "boss@example.com", Password: "secret1", Role: "admin", AdminCode: "anything",
		})
		assert.Equal(t, identity.RoleUser, reg.User.Role)
	})

	t.Run("with invite code", func(t *testing.T) {
		srv := setupServer(t, authserver.WithAdminInviteCode("let-me-in"))
		defer srv.Close()

		wrong := register(t, srv.URL, authserver.RegisterRequest{
			Email: "a@example.com", Password: "secret1", Role: "admin", AdminCode: "guess",
		})
		assert.Equal(t, identity.RoleUser, wrong.User.Role)

		admin := register(t, srv.URL, authserver.RegisterRequest{
			Email: "b@example.com", Password: "secret1", Role: "admin", AdminCode: "let-me-in",
		})
		assert.Equal(t, identity.RoleAdmin, admin.User.Role)

		resp := doJSON(t, http.MethodGet, srv.URL+"/api/admin/users", admin.Token, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		_, list := decodeEnvelope[authserver.ListUsersResponse](t, resp)
		require.Len(t, list.Users, 2)
		assert.Equal(t, "a@example.com", list.Users[0].Email)

		resp = doJSON(t, http.MethodGet, srv.URL+"/api/admin/users", wrong.Token, nil)
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
		resp.Body.Close()
	})
}

func TestLoginFailuresAndRateLimit(t *testing.T) {
	srv := setupServer(t)
	defer srv.Close()
	register(t, srv.URL, authserver.RegisterRequest{Email: "a@example.com", Password: "secret1"})

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/auth/login", "", authserver.LoginRequest{Email: "ghost@example.com", Password: "secret1"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	env, _ := decodeEnvelope[struct{}](t, resp)
	assert.Equal(t, "Invalid email or password", env.Message)

	for i := 0; i < 5; i++ {
		resp := doJSON(t, http.MethodPost, srv.URL+"/api/auth/login", "", authserver.LoginRequest{Email: "a@example.com", Password: "wrong-pw"})
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		resp.Body.Close()
	}

	// Locked out even with the right password.
	resp = doJSON(t, http.MethodPost, srv.URL+"/api/auth/login", "", authserver.LoginRequest{Email: "a@example.com", Password: "secret1"})
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("Retry-After"))
	resp.Body.Close()

	resp = doJSON(t, http.MethodPost, srv.URL+"/api/auth/login", "", authserver.LoginRequest{Email: "a@example.com"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}

func TestBearerRequired(t *testing.T) {
	srv := setupServer(t)
	defer srv.Close()

	for _, token := range []string{"", "garbage"} {
		resp := doJSON(t, http.MethodGet, srv.URL+"/api/auth/me", token, nil)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		env, _ := decodeEnvelope[struct{}](t, resp)
		assert.False(t, env.Success)
	}
}

func TestSigningKeyIsolation(t *testing.T) {
	key := bytes.Repeat([]byte{7}, 32)
	a := setupServer(t, authserver.WithSigningKey(key))
	defer a.Close()
	b := setupServer(t)
	defer b.Close()

	reg := register(t, a.URL, authserver.RegisterRequest{Email: "a@example.com", Password: "secret1"})
	resp := doJSON(t, http.MethodGet, b.URL+"/api/auth/me", reg.Token, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()
}

func TestHealthDocsAndHeaders(t *testing.T) {
	srv := setupServer(t)
	defer srv.Close()

	resp := doJSON(t, http.MethodGet, srv.URL+"/api/health", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "nosniff", resp.Header.Get("X-Content-Type-Options"))
	_, health := decodeEnvelope[authserver.HealthResponse](t, resp)
	assert.Equal(t, "ok", health.Status)

	resp = doJSON(t, http.MethodGet, srv.URL+"/api/openapi.yaml", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(body), "openapi:"))

	resp = doJSON(t, http.MethodGet, srv.URL+"/api/docs", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, err = io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Contains(t, strings.ToLower(string(body)), "swagger")
}
