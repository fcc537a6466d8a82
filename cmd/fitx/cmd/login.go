package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newLoginCmd(c *cli) *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and store the session token",
		RunE: func(cmd *cobra.Command, args []string) error {
			pw, err := readSecret(cmd.InOrStdin(), cmd.ErrOrStderr(), "Password: ", password)
			if err != nil {
				return err
			}
			return c.withSession(cmd, func(env *sessionEnv) error {
				out, err := env.auth.Login(cmd.Context(), email, pw)
				if err != nil {
					return failure(out.Snapshot, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s\nNext: %s\n", describe(out.Snapshot), out.Target)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&email, "email", "e", "", "Account email")
	cmd.Flags().StringVarP(&password, "password", "p", "", "Account password (read from stdin when omitted)")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}
