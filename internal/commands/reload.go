package commands

import (
	"context"
	"flag"
	"fmt"
	"io"

	"todosync/internal/app"
	"todosync/internal/config"
	"todosync/internal/exitcode"
	"todosync/internal/reconciler"
)

func init() {
	Register(&ReloadCmd{})
}

// ReloadCmd implements the reload command: an explicit retry of the load.
type ReloadCmd struct{}

func (c *ReloadCmd) Name() string       { return "reload" }
func (c *ReloadCmd) Aliases() []string  { return []string{"retry"} }
func (c *ReloadCmd) Synopsis() string   { return "Reload tasks from the server" }
func (c *ReloadCmd) Usage() string      { return "todosync reload" }
func (c *ReloadCmd) NeedsSession() bool { return true }

func (c *ReloadCmd) RegisterFlags(fs *flag.FlagSet) {}

func (c *ReloadCmd) Run(ctx context.Context, cfg *config.Config, sess *app.Session, args []string, out, errOut io.Writer) int {
	if len(args) > 0 {
		return tooManyArgs(errOut)
	}
	// An unreachable server is reported by the console observer; the local
	// snapshot still counts as a successful reload.
	res := sess.Tasks.Load(ctx)
	if !cfg.Quiet {
		fmt.Fprintf(out, "loaded %d from %s\n", res.Count, sourceLabel(res.Source))
	}
	return exitcode.Success
}

func sourceLabel(s reconciler.Source) string {
	if s == reconciler.SourceRemote {
		return "server"
	}
	return "local snapshot"
}
