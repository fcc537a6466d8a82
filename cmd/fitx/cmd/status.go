package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

type statusOutput struct {
	Status    string `json:"status"`
	ID        string `json:"id,omitempty"`
	Email     string `json:"email,omitempty"`
	Name      string `json:"name,omitempty"`
	Role      string `json:"role,omitempty"`
	Home      string `json:"home,omitempty"`
	LastError string `json:"last_error,omitempty"`
}

func newStatusCmd(c *cli) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Verify the stored session and show the current identity",
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withSession(cmd, func(env *sessionEnv) error {
				snap := env.auth.Snapshot()
				out := statusOutput{Status: snap.Status.String(), LastError: snap.LastError}
				if id := snap.Identity; id != nil {
					out.ID, out.Email, out.Name, out.Role = id.ID, id.Email, id.DisplayName(), string(id.Role)
					out.Home = env.auth.Targets().Home(id.Role)
				}

				w := cmd.OutOrStdout()
				if asJSON {
					enc := json.NewEncoder(w)
					enc.SetIndent("", "  ")
					return enc.Encode(out)
				}
				fmt.Fprintf(w, "Status: %s\n", out.Status)
				if snap.Identity != nil {
					fmt.Fprintf(w, "User:   %s\n", describe(snap))
					fmt.Fprintf(w, "Home:   %s\n", out.Home)
				}
				if out.LastError != "" {
					fmt.Fprintf(w, "Error:  %s\n", out.LastError)
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print as JSON")
	return cmd
}
