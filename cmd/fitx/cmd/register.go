package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jmcleod/fitx/identity"
)

func newRegisterCmd(c *cli) *cobra.Command {
	var (
		p     identity.Profile
		name  string
		admin bool
	)
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account and sign in",
		RunE: func(cmd *cobra.Command, args []string) error {
			pw, err := readSecret(cmd.InOrStdin(), cmd.ErrOrStderr(), "Password: ", p.Password)
			if err != nil {
				return err
			}
			profile := p
			profile.Password = pw
			if name != "" && profile.FirstName == "" && profile.LastName == "" {
				profile.FirstName, profile.LastName = identity.SplitName(name)
			}
			if admin {
				profile.Role = identity.RoleAdmin
			}
			return c.withSession(cmd, func(env *sessionEnv) error {
				out, err := env.auth.Register(cmd.Context(), profile)
				if err != nil {
					return failure(out.Snapshot, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Registered %s\nNext: %s\n", describe(out.Snapshot), out.Target)
				return nil
			})
		},
	}
	f := cmd.Flags()
	f.StringVarP(&p.Email, "email", "e", "", "Account email")
	f.StringVarP(&p.Password, "password", "p", "", "Account password (read from stdin when omitted)")
	f.StringVar(&p.Username, "username", "", "Username (defaults to the email's local part)")
	f.StringVar(&p.FirstName, "first-name", "", "First name")
	f.StringVar(&p.LastName, "last-name", "", "Last name")
	f.StringVar(&name, "name", "", "Full name, split into first and last")
	f.BoolVar(&admin, "admin", false, "Request the admin role")
	f.StringVar(&p.AdminCode, "admin-code", "", "Admin invite code")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}
