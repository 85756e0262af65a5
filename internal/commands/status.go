package commands

import (
	"context"
	"flag"
	"fmt"
	"io"
	"path/filepath"

	"todosync/internal/app"
	"todosync/internal/config"
	"todosync/internal/exitcode"
	"todosync/internal/localstore"
	"todosync/internal/service"
)

func init() {
	Register(&StatusCmd{})
}

// StatusCmd prints the resolved configuration without contacting any store.
type StatusCmd struct{}

func (c *StatusCmd) Name() string       { return "status" }
func (c *StatusCmd) Aliases() []string  { return nil }
func (c *StatusCmd) Synopsis() string   { return "Show backend and config status" }
func (c *StatusCmd) Usage() string      { return "todosync status" }
func (c *StatusCmd) NeedsSession() bool { return false }

func (c *StatusCmd) RegisterFlags(fs *flag.FlagSet) {}

func (c *StatusCmd) Run(ctx context.Context, cfg *config.Config, sess *app.Session, args []string, out, errOut io.Writer) int {
	owner, err := app.Owner(cfg)
	if err != nil {
		fmt.Fprintf(errOut, "error: auth error: %v\n", err)
		return exitcode.AuthError
	}

	remote := "not configured (using local snapshot)"
	if cfg.RemoteUsable() {
		remote = "configured"
	}
	if owner == "" {
		owner = "anonymous"
	}

	fmt.Fprintf(out, "config:   %s\n", cfg.ConfigPath())
	fmt.Fprintf(out, "backend:  %s\n", cfg.Backend)
	fmt.Fprintf(out, "remote:   %s\n", remote)
	fmt.Fprintf(out, "owner:    %s\n", owner)
	fmt.Fprintf(out, "local:    %s (%s)\n", cfg.Local.Driver, localPath(cfg))
	fmt.Fprintf(out, "poll:     every %s, while active within %s\n",
		cfg.PollInterval(owner != "anonymous"), cfg.ActivityWindow())
	return exitcode.Success
}

func localPath(cfg *config.Config) string {
	if cfg.Local.Driver == config.LocalDriverSQLite {
		return filepath.Join(cfg.Dir, localstore.SQLiteFile)
	}
	return filepath.Join(cfg.Dir, service.LocalSnapshotKey+".json")
}
