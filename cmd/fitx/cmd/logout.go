package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newLogoutCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "End the session and forget the stored token",
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := c.openSession()
			if err != nil {
				return err
			}
			defer env.close()

			// No verification: logout must work offline.
			env.auth.Logout()
			fmt.Fprintln(cmd.OutOrStdout(), "Logged out")
			return nil
		},
	}
}
