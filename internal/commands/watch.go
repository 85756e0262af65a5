package commands

import (
	"context"
	"flag"
	"fmt"
	"io"

	"todosync/internal/app"
	"todosync/internal/config"
	"todosync/internal/exitcode"
	"todosync/internal/poller"
	"todosync/internal/tui"
)

func init() {
	Register(&WatchCmd{})
}

// WatchCmd opens the interactive view and keeps it refreshed.
type WatchCmd struct{}

func (c *WatchCmd) Name() string       { return "watch" }
func (c *WatchCmd) Aliases() []string  { return []string{"ui"} }
func (c *WatchCmd) Synopsis() string   { return "Interactive task list with live refresh" }
func (c *WatchCmd) Usage() string      { return "todosync watch" }
func (c *WatchCmd) NeedsSession() bool { return true }
func (c *WatchCmd) FullScreen() bool   { return true }

func (c *WatchCmd) RegisterFlags(fs *flag.FlagSet) {}

func (c *WatchCmd) Run(ctx context.Context, cfg *config.Config, sess *app.Session, args []string, out, errOut io.Writer) int {
	if sess.DetachConsole != nil {
		sess.DetachConsole()
	}

	p := startPoller(ctx, cfg, sess)
	defer p.Stop()

	if err := tui.Run(ctx, sess.Tasks, sess.Observers, p); err != nil {
		fmt.Fprintf(errOut, "error: %v\n", err)
		return exitcode.UserError
	}
	return exitcode.Success
}

// startPoller builds the refresh loop for a long-running view. Without a
// usable remote store there is nothing to refresh from, so it is not started.
func startPoller(ctx context.Context, cfg *config.Config, sess *app.Session) *poller.Poller {
	p := poller.New(sess.Tasks,
		poller.WithInterval(sess.PollInterval(cfg)),
		poller.WithActivityWindow(cfg.ActivityWindow()),
		poller.WithLogger(sess.Logger),
	)
	if sess.Tasks.RemoteEnabled() {
		p.Start(ctx)
	}
	return p
}
