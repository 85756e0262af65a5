package commands

import (
	"context"
	"flag"
	"io"

	"todosync/internal/app"
	"todosync/internal/config"
	"todosync/internal/exitcode"
)

func init() {
	Register(&DoneCmd{})
}

// DoneCmd implements the done command. Running it on a completed task marks
// it active again.
type DoneCmd struct{}

func (c *DoneCmd) Name() string       { return "done" }
func (c *DoneCmd) Aliases() []string  { return []string{"toggle"} }
func (c *DoneCmd) Synopsis() string   { return "Toggle a task's completed state" }
func (c *DoneCmd) Usage() string      { return "todosync done <ref>" }
func (c *DoneCmd) NeedsSession() bool { return true }

func (c *DoneCmd) RegisterFlags(fs *flag.FlagSet) {}

func (c *DoneCmd) Run(ctx context.Context, cfg *config.Config, sess *app.Session, args []string, out, errOut io.Writer) int {
	if len(args) > 1 {
		return tooManyArgs(errOut)
	}
	task, err := resolveArgs(sess.Tasks, args)
	if err != nil {
		return refExit(err, errOut)
	}
	return settle(ctx, cfg, sess.Tasks.Toggle(ctx, task.ID), out, errOut)
}

// tooManyArgs reports extra positional arguments.
func tooManyArgs(errOut io.Writer) int {
	io.WriteString(errOut, "error: too many arguments\n")
	return exitcode.UserError
}
