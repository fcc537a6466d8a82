package cmd

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jmcleod/fitx/authclient"
	"github.com/jmcleod/fitx/guard"
	"github.com/jmcleod/fitx/internal/config"
	"github.com/jmcleod/fitx/session"
	"github.com/jmcleod/fitx/tokenstore"
	boltstore "github.com/jmcleod/fitx/tokenstore/bbolt"
	"github.com/jmcleod/fitx/tokenstore/memory"
)

// sessionEnv is the client-side object graph: token store, auth client,
// session authority and route guard.
type sessionEnv struct {
	logger *slog.Logger
	client *authclient.Client
	auth   *session.Authority
	guard  *guard.Guard
	close  func() error
}

func (c *cli) openSession() (*sessionEnv, error) {
	logger := c.cfg.Logger(os.Stderr)

	var (
		store      tokenstore.Store
		closeStore = func() error { return nil }
	)
	switch c.cfg.Store {
	case config.StoreMemory:
		store = memory.New()
	default:
		key, err := c.cfg.LoadWrappingKey()
		if err != nil {
			return nil, fmt.Errorf("failed to load wrapping key: %w", err)
		}
		bs, err := boltstore.Open(c.cfg.SessionDBPath(), key, boltstore.WithLogger(logger))
		if err != nil {
			return nil, fmt.Errorf("failed to open session store: %w", err)
		}
		store, closeStore = bs, bs.Close
	}

	client := authclient.New(c.cfg.APIURL,
		authclient.WithLogger(logger),
		authclient.WithUserAgent("fitx/"+Version),
	)
	auth := session.New(store, client,
		session.WithTimeout(c.cfg.Timeout),
		session.WithLogger(logger),
	)
	return &sessionEnv{
		logger: logger,
		client: client,
		auth:   auth,
		guard:  guard.New(guard.WithStrictUserRoutes(c.cfg.StrictUserRoutes)),
		close: func() error {
			auth.Close()
			return closeStore()
		},
	}, nil
}

// withSession opens the session, resolves any stored token and runs fn.
func (c *cli) withSession(cmd *cobra.Command, fn func(env *sessionEnv) error) error {
	env, err := c.openSession()
	if err != nil {
		return err
	}
	defer env.close()

	// A verification failure is reflected in the snapshot; callers decide
	// what to report.
	if _, err := env.auth.VerifySession(cmd.Context()); err != nil {
		env.logger.Debug("stored session not restored", "error", err)
	}
	return fn(env)
}

// failure turns a failed operation into the user-facing error.
func failure(snap session.Snapshot, err error) error {
	if snap.LastError != "" {
		return fmt.Errorf("%s", snap.LastError)
	}
	return err
}

func describe(snap session.Snapshot) string {
	if snap.Identity == nil {
		return snap.Status.String()
	}
	id := snap.Identity
	return fmt.Sprintf("%s <%s> (%s)", id.DisplayName(), id.Email, id.Role)
}

// readSecret returns flagValue, or reads one line from in when it is empty.
func readSecret(in io.Reader, out io.Writer, prompt, flagValue string) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	fmt.Fprint(out, prompt)
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", fmt.Errorf("reading %s: %w", strings.TrimSuffix(strings.ToLower(prompt), ": "), err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}
