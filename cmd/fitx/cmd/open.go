package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jmcleod/fitx/guard"
)

func newOpenCmd(c *cli) *cobra.Command {
	var list bool
	cmd := &cobra.Command{
		Use:   "open [path]",
		Short: "Show whether the current session may open a screen",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !list && len(args) == 0 {
				return fmt.Errorf("a path is required unless --list is set")
			}
			return c.withSession(cmd, func(env *sessionEnv) error {
				snap := env.auth.Snapshot()
				w := cmd.OutOrStdout()
				if list {
					for _, r := range env.guard.Routes().All() {
						fmt.Fprintf(w, "%-26s %s\n", r.Path, env.guard.Check(snap, r.Path))
					}
					return nil
				}
				d := env.guard.Check(snap, args[0])
				fmt.Fprintln(w, d)
				if d.Verdict != guard.Allow {
					return fmt.Errorf("cannot open %s", args[0])
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&list, "list", false, "Show the decision for every known screen")
	return cmd
}
