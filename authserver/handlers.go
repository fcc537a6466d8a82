package authserver

import (
	"crypto/subtle"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/jmcleod/fitx/identity"
)

// minPasswordLen is the shortest password accepted at registration.
const minPasswordLen = 6

// Register handles POST /auth/register.
func (s *Server) Register(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeJSON[RegisterRequest](w, r)
	if !ok {
		return
	}
	email := identity.NormalizeEmail(req.Email)
	if email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "Email and password are required")
		return
	}
	if !strings.Contains(email, "@") {
		writeError(w, http.StatusBadRequest, "Invalid email address")
		return
	}
	if len(req.Password) < minPasswordLen {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Password must be at least %d characters", minPasswordLen))
		return
	}

	requested := identity.RoleUser
	if req.Role != "" {
		role, err := identity.ParseRole(req.Role)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid role")
			return
		}
		requested = role
	}
	role := requested
	if requested == identity.RoleAdmin && !s.inviteAccepted(req.AdminCode) {
		// The account is still created; the caller sees the granted role.
		role = identity.RoleUser
		s.audit.logFailure(AuditRegisterRejected, r, "admin invite code not accepted")
	}

	u := User{
		Email:     email,
		Username:  strings.TrimSpace(req.Username),
		FirstName: strings.TrimSpace(req.FirstName),
		LastName:  strings.TrimSpace(req.LastName),
		Role:      role,
	}
	if u.FirstName == "" && u.LastName == "" && req.Name != "" {
		u.FirstName, u.LastName = identity.SplitName(req.Name)
	}
	if u.Username == "" {
		u.Username = identity.UsernameFromEmail(email)
	}

	created, err := s.users.create(u, req.Password)
	if err != nil {
		mapError(w, err)
		return
	}
	token, err := s.tokens.issue(created)
	if err != nil {
		writeInternalError(w, s.logger, "failed to issue token", err)
		return
	}

	s.audit.logEvent(AuditRegister, r, created.ID, slog.String("role", string(created.Role)))
	writeData(w, http.StatusCreated, "User registered successfully", AuthResponse{User: created, Token: token})
}

// Login handles POST /auth/login.
func (s *Server) Login(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeJSON[LoginRequest](w, r)
	if !ok {
		return
	}
	email := identity.NormalizeEmail(req.Email)
	if email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "Email and password are required")
		return
	}

	if blocked, retryAfter := s.rateLimiter.check(email); blocked {
		s.audit.logFailure(AuditLoginRateLimited, r, "rate limited")
		writeRateLimited(w, retryAfter)
		return
	}

	u, err := s.users.authenticate(email, req.Password)
	if err != nil {
		s.rateLimiter.recordFailure(email)
		s.audit.logFailure(AuditLoginFailure, r, "invalid credentials")
		mapError(w, err)
		return
	}
	s.rateLimiter.recordSuccess(email)

	token, err := s.tokens.issue(u)
	if err != nil {
		writeInternalError(w, s.logger, "failed to issue token", err)
		return
	}
	s.audit.logEvent(AuditLoginSuccess, r, u.ID)
	writeData(w, http.StatusOK, "Login successful", AuthResponse{User: u, Token: token})
}

// Me handles GET /auth/me.
func (s *Server) Me(w http.ResponseWriter, r *http.Request) {
	c := claimsFromContext(r.Context())
	u, ok := s.users.get(c.Subject)
	if !ok {
		writeError(w, http.StatusUnauthorized, "account no longer exists")
		return
	}
	writeData(w, http.StatusOK, "", MeResponse{User: u})
}

// Logout handles POST /auth/logout by revoking the presented token.
func (s *Server) Logout(w http.ResponseWriter, r *http.Request) {
	c := claimsFromContext(r.Context())
	s.tokens.revoke(c)
	s.audit.logEvent(AuditLogout, r, c.Subject)
	writeData(w, http.StatusOK, "Logged out", struct{}{})
}

// ListUsers handles GET /admin/users.
func (s *Server) ListUsers(w http.ResponseWriter, r *http.Request) {
	writeData(w, http.StatusOK, "", ListUsersResponse{Users: s.users.list()})
}

// Health handles GET /health.
func (s *Server) Health(w http.ResponseWriter, r *http.Request) {
	writeData(w, http.StatusOK, "", HealthResponse{Status: "ok"})
}

func (s *Server) inviteAccepted(code string) bool {
	if s.inviteCode == "" || code == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(code), []byte(s.inviteCode)) == 1
}
