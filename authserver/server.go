// Package authserver is a small reference implementation of the remote
// auth service the fitx client talks to. It keeps users in memory, hashes
// passwords with argon2id and issues HS256 bearer tokens.
package authserver

import (
	_ "embed"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-openapi/runtime/middleware"

	"github.com/jmcleod/fitx/internal/util"
)

// DefaultTokenTTL is how long issued tokens stay valid.
const DefaultTokenTTL = 24 * time.Hour

//go:embed openapi.yaml
var openapiSpec []byte

// Server holds the dependencies of the auth endpoints.
type Server struct {
	users       *userStore
	tokens      *tokenIssuer
	rateLimiter *loginRateLimiter
	audit       *auditLogger

	inviteCode string
	ttl        time.Duration
	params     util.Argon2idParams
	signingKey []byte
	logger     *slog.Logger
}

// Option configures the Server.
type Option func(*Server)

// WithLogger sets the structured logger for audit events.
// If not set, a JSON logger writing to stderr is used.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithAdminInviteCode enables admin registration for callers presenting
// code. Without it every account is created with the user role.
func WithAdminInviteCode(code string) Option {
	return func(s *Server) {
		s.inviteCode = code
	}
}

// WithTokenTTL sets the lifetime of issued tokens.
func WithTokenTTL(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.ttl = d
		}
	}
}

// WithSigningKey fixes the HMAC key. A random key is generated otherwise,
// which invalidates every token when the process restarts.
func WithSigningKey(key []byte) Option {
	return func(s *Server) {
		s.signingKey = util.CopyBytes(key)
	}
}

// WithArgon2idParams overrides the password hashing cost.
func WithArgon2idParams(p util.Argon2idParams) Option {
	return func(s *Server) {
		s.params = p
	}
}

// New creates a Server.
func New(opts ...Option) (*Server, error) {
	s := &Server{
		ttl:         DefaultTokenTTL,
		params:      util.DefaultArgon2idParams(),
		rateLimiter: newLoginRateLimiter(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.New(slog.NewJSONHandler(os.Stderr, nil))
	}
	if len(s.signingKey) == 0 {
		key, err := util.RandomBytes(32)
		if err != nil {
			return nil, fmt.Errorf("generating signing key: %w", err)
		}
		s.signingKey = key
	}
	s.users = newUserStore(s.params)
	s.tokens = newTokenIssuer(s.signingKey, s.ttl)
	s.audit = newAuditLogger(s.logger)
	return s, nil
}

// Router returns a chi.Router with every endpoint mounted. basePath is the
// prefix the router will be mounted under, used by the docs page.
func (s *Server) Router(basePath string) chi.Router {
	basePath = strings.TrimSuffix(basePath, "/")

	r := chi.NewRouter()
	r.Use(SecurityHeaders)

	r.Get("/openapi.yaml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/yaml")
		w.Write(openapiSpec)
	})
	r.Handle("/docs*", middleware.SwaggerUI(middleware.SwaggerUIOpts{
		SpecURL: basePath + "/openapi.yaml",
		Path:    strings.TrimPrefix(basePath+"/docs", "/"),
	}, nil))

	r.Get("/health", s.Health)
	r.Route("/auth", func(r chi.Router) {
		r.Use(chimw.NoCache)
		r.Post("/register", s.Register)
		r.Post("/login", s.Login)
		r.With(s.AuthMiddleware).Get("/me", s.Me)
		r.With(s.AuthMiddleware).Post("/logout", s.Logout)
	})
	r.With(s.AuthMiddleware, s.requireAdmin).Get("/admin/users", s.ListUsers)

	return r
}

// Sweep drops expired rate-limit records and revoked token IDs. Call it
// periodically from a background goroutine.
func (s *Server) Sweep() {
	s.rateLimiter.sweep()
	s.tokens.sweep()
}
