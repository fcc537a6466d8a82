package authserver

import (
	"log/slog"
	"net/http"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
)

// AuditEvent identifies a security-relevant action.
type AuditEvent string

const (
	AuditLoginSuccess     AuditEvent = "login_success"
	AuditLoginFailure     AuditEvent = "login_failure"
	AuditLoginRateLimited AuditEvent = "login_rate_limited"
	AuditRegister         AuditEvent = "register"
	AuditRegisterRejected AuditEvent = "register_rejected"
	AuditAdminDenied      AuditEvent = "admin_denied"
	AuditLogout           AuditEvent = "logout"
	AuditTokenRejected    AuditEvent = "token_rejected"
)

// auditLogger wraps slog.Logger for security audit entries. Passwords and
// tokens are never logged.
type auditLogger struct {
	logger *slog.Logger
}

func newAuditLogger(logger *slog.Logger) *auditLogger {
	return &auditLogger{
		logger: logger.With("component", "audit"),
	}
}

func (al *auditLogger) log(event AuditEvent, r *http.Request, attrs ...slog.Attr) {
	base := []slog.Attr{
		slog.String("event", string(event)),
		slog.String("remote_addr", r.RemoteAddr),
		slog.String("timestamp", time.Now().UTC().Format(time.RFC3339)),
	}
	if id := chimw.GetReqID(r.Context()); id != "" {
		base = append(base, slog.String("request_id", id))
	} else if id := r.Header.Get("X-Request-ID"); id != "" {
		base = append(base, slog.String("request_id", id))
	}
	al.logger.LogAttrs(r.Context(), slog.LevelInfo, "audit", append(base, attrs...)...)
}

// logEvent records an event for a known user.
func (al *auditLogger) logEvent(event AuditEvent, r *http.Request, userID string, extra ...slog.Attr) {
	al.log(event, r, append([]slog.Attr{slog.String("user_id", userID)}, extra...)...)
}

// logFailure records a rejected request.
func (al *auditLogger) logFailure(event AuditEvent, r *http.Request, reason string, extra ...slog.Attr) {
	al.log(event, r, append([]slog.Attr{slog.String("reason", reason)}, extra...)...)
}
