package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/jmcleod/fitx/web"
)

func newPreviewCmd(c *cli) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "preview",
		Short: "Serve the app's screens locally, gated by the current session",
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withSession(cmd, func(env *sessionEnv) error {
				h, err := web.Handler(env.guard, env.auth, env.logger)
				if err != nil {
					return err
				}
				server := &http.Server{
					Addr:              addr,
					Handler:           h,
					ReadHeaderTimeout: 10 * time.Second,
				}

				done := make(chan error, 1)
				go func() {
					if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
						done <- fmt.Errorf("preview server failed: %w", err)
						return
					}
					done <- nil
				}()

				fmt.Fprintf(cmd.OutOrStdout(), "Previewing as %s on http://%s\n", describe(env.auth.Snapshot()), addr)

				select {
				case <-cmd.Context().Done():
					shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					return server.Shutdown(shutdownCtx)
				case err := <-done:
					return err
				}
			})
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:5173", "Address to serve screens on")
	return cmd
}
