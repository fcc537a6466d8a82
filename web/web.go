// Package web serves placeholder pages for the application's screens,
// gated by the route guard against a live session.
package web

import (
	"embed"
	"fmt"
	"html/template"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/jmcleod/fitx/guard"
)

//go:embed templates/*.html
var content embed.FS

type screen struct {
	Title string
	Path  string
	User  string
	Role  string
	Error string
	Links []string
}

// Handler returns an http.Handler that renders every route in g's table.
// Requests pass through g's middleware first, so only screens the session
// may open are rendered. A nil logger discards.
func Handler(g *guard.Guard, src guard.SnapshotSource, logger *slog.Logger) (http.Handler, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	tmpl, err := template.ParseFS(content, "templates/screen.html")
	if err != nil {
		return nil, fmt.Errorf("loading embedded templates: %w", err)
	}

	var links []string
	for _, r := range g.Routes().All() {
		if r.Alias == "" {
			links = append(links, r.Path)
		}
	}

	r := chi.NewRouter()
	r.Use(g.Middleware(src, logger))
	r.Get("/*", func(w http.ResponseWriter, r *http.Request) {
		snap := src.Snapshot()
		page := screen{
			Title: title(r.URL.Path),
			Path:  r.URL.Path,
			Error: snap.LastError,
			Links: links,
		}
		if id := snap.Identity; id != nil {
			page.User, page.Role = id.DisplayName(), string(id.Role)
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := tmpl.Execute(w, page); err != nil {
			logger.Error("rendering screen", "path", r.URL.Path, "error", err)
		}
	})
	return r, nil
}

// title turns "/admin/exercise-library" into "Admin Exercise Library".
func title(p string) string {
	p = strings.Trim(p, "/")
	if p == "" {
		return "Home"
	}
	words := strings.FieldsFunc(p, func(r rune) bool { return r == '/' || r == '-' })
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
