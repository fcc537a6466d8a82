package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/jmcleod/fitx/session"
)

func newGetCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "get <path>",
		Short: "Send an authenticated GET to the auth service and print the data",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withSession(cmd, func(env *sessionEnv) error {
				var data json.RawMessage
				err := env.auth.Do(cmd.Context(), func(ctx context.Context, token string) error {
					return env.client.Call(ctx, token, http.MethodGet, args[0], nil, &data)
				})
				if err == session.ErrNotAuthenticated {
					return fmt.Errorf("not logged in; run fitx login first")
				}
				if err != nil {
					return failure(env.auth.Snapshot(), err)
				}
				var buf bytes.Buffer
				if err := json.Indent(&buf, data, "", "  "); err != nil {
					buf.Reset()
					buf.Write(data)
				}
				fmt.Fprintln(cmd.OutOrStdout(), buf.String())
				return nil
			})
		},
	}
}
