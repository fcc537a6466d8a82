package authserver

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/jmcleod/fitx/identity"
)

type contextKey int

const claimsKey contextKey = iota

// AuthMiddleware validates the bearer token and stores its claims on the
// request context.
func (s *Server) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, ok := bearerToken(r)
		if !ok {
			writeError(w, http.StatusUnauthorized, "authentication required")
			return
		}
		c, err := s.tokens.parse(raw)
		if err != nil {
			s.audit.logFailure(AuditTokenRejected, r, err.Error())
			mapError(w, err)
			return
		}
		if _, ok := s.users.get(c.Subject); !ok {
			s.audit.logFailure(AuditTokenRejected, r, "unknown subject", slog.String("user_id", c.Subject))
			writeError(w, http.StatusUnauthorized, "account no longer exists")
			return
		}
		ctx := context.WithValue(r.Context(), claimsKey, c)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireAdmin rejects non-admin callers. It must run after AuthMiddleware.
func (s *Server) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c := claimsFromContext(r.Context())
		if c == nil || c.Role != identity.RoleAdmin {
			if c != nil {
				s.audit.logEvent(AuditAdminDenied, r, c.Subject, slog.String("path", r.URL.Path))
			}
			writeError(w, http.StatusForbidden, "admin access required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// SecurityHeaders sets standard security response headers.
func SecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		if requestIsSecure(r) {
			w.Header().Set("Strict-Transport-Security", "max-age=63072000; includeSubDomains")
		}
		next.ServeHTTP(w, r)
	})
}

func bearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func requestIsSecure(r *http.Request) bool {
	if r.TLS != nil {
		return true
	}
	return strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https")
}

func claimsFromContext(ctx context.Context) *claims {
	c, _ := ctx.Value(claimsKey).(*claims)
	return c
}
