package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jmcleod/fitx/internal/config"
)

// Version is set at build time with -ldflags.
var Version = "dev"

// cli carries state shared by every subcommand of one invocation.
type cli struct {
	v          *viper.Viper
	configPath string
	cfg        *config.Config
}

// NewRootCommand builds the fitx command tree.
func NewRootCommand() *cobra.Command {
	c := &cli{v: config.New()}

	root := &cobra.Command{
		Use:   "fitx",
		Short: "FitX session client",
		Long: `Sign in to a FitX auth service, keep the session on disk and check
which screens the current identity may open.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := config.BindFlags(c.v, cmd.Flags()); err != nil {
				return err
			}
			cfg, err := config.Load(c.v, c.configPath)
			if err != nil {
				return err
			}
			c.cfg = cfg
			return nil
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&c.configPath, "config", "", "Path to a config file (yaml, toml or json)")
	pf.String("api-url", "http://localhost:5000/api", "Base URL of the auth service")
	pf.String("data-dir", "", "Directory for the session database and wrapping key")
	pf.Duration("timeout", 0, "Per-request timeout (default 15s)")
	pf.String("store", "", "Token store: bbolt or memory (default bbolt)")
	pf.Bool("strict-user-routes", false, "Send admins on user-only screens to the admin home")
	pf.String("log-level", "", "Log level: debug, info, warn or error (default warn)")

	root.AddCommand(
		newLoginCmd(c),
		newRegisterCmd(c),
		newLogoutCmd(c),
		newStatusCmd(c),
		newOpenCmd(c),
		newGetCmd(c),
		newPreviewCmd(c),
		newServeCmd(c),
		newVersionCmd(),
	)
	return root
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := NewRootCommand().ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
