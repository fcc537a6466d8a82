package guard

import (
	"io"
	"log/slog"
	"net/http"

	"github.com/jmcleod/fitx/session"
)

// SnapshotSource supplies the current session. *session.Authority
// satisfies it.
type SnapshotSource interface {
	Snapshot() session.Snapshot
}

var _ SnapshotSource = (*session.Authority)(nil)

// Middleware gates HTTP requests by path. Allowed requests reach next;
// pending sessions get 503 with Retry-After; redirects use 303 See Other.
func (g *Guard) Middleware(src SnapshotSource, logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			d := g.Check(src.Snapshot(), r.URL.Path)
			switch d.Verdict {
			case Allow:
				next.ServeHTTP(w, r)
			case Pending:
				w.Header().Set("Retry-After", "1")
				http.Error(w, "session is being verified", http.StatusServiceUnavailable)
			default:
				logger.Debug("guard redirect", "path", r.URL.Path, "target", d.Target)
				http.Redirect(w, r, d.Target, http.StatusSeeOther)
			}
		})
	}
}
