package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"

	"github.com/jmcleod/fitx/authserver"
)

const (
	apiPrefix     = "/api"
	sweepInterval = 5 * time.Minute
)

func newServeCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the reference auth service",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := c.cfg.Logger(os.Stderr)
			opts := []authserver.Option{
				authserver.WithLogger(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: c.cfg.Level()}))),
				authserver.WithTokenTTL(c.cfg.TokenTTL),
			}
			if c.cfg.AdminInviteCode != "" {
				opts = append(opts, authserver.WithAdminInviteCode(c.cfg.AdminInviteCode))
			} else {
				logger.Warn("no admin invite code configured; admin registration is disabled")
			}
			if c.cfg.SigningKey != "" {
				opts = append(opts, authserver.WithSigningKey([]byte(c.cfg.SigningKey)))
			}
			srv, err := authserver.New(opts...)
			if err != nil {
				return err
			}

			r := chi.NewRouter()
			r.Use(middleware.RequestID)
			r.Use(middleware.Logger)
			r.Use(middleware.Recoverer)
			r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte("OK"))
			})
			r.Mount(apiPrefix, srv.Router(apiPrefix))

			server := &http.Server{
				Addr:              c.cfg.Listen,
				Handler:           r,
				ReadHeaderTimeout: 10 * time.Second,
				ReadTimeout:       15 * time.Second,
				WriteTimeout:      30 * time.Second,
				IdleTimeout:       60 * time.Second,
			}

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()
			go func() {
				t := time.NewTicker(sweepInterval)
				defer t.Stop()
				for {
					select {
					case <-ctx.Done():
						return
					case <-t.C:
						srv.Sweep()
					}
				}
			}()

			done := make(chan error, 1)
			go func() {
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					done <- fmt.Errorf("server failed: %w", err)
					return
				}
				done <- nil
			}()

			out := cmd.OutOrStdout()
			printBanner(out)
			fmt.Fprintf(out, "Listening on %s (API at %s, docs at %s/docs)\n", c.cfg.Listen, apiPrefix, apiPrefix)

			select {
			case <-ctx.Done():
				fmt.Fprintln(out, "\nShutting down...")
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				if err := server.Shutdown(shutdownCtx); err != nil {
					return fmt.Errorf("server shutdown failed: %w", err)
				}
				return nil
			case err := <-done:
				return err
			}
		},
	}
	f := cmd.Flags()
	f.String("listen", ":5000", "Address to listen on")
	f.String("admin-invite-code", "", "Invite code required to register admins")
	f.Duration("token-ttl", 0, "Lifetime of issued tokens (default 24h)")
	f.String("signing-key", "", "HMAC signing key; random per process when empty")
	return cmd
}
