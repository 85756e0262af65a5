package commands

import (
	"context"
	"flag"
	"io"

	"todosync/internal/app"
	"todosync/internal/config"
)

func init() {
	Register(&RmCmd{})
}

// RmCmd implements the rm command.
type RmCmd struct{}

func (c *RmCmd) Name() string       { return "rm" }
func (c *RmCmd) Aliases() []string  { return []string{"delete"} }
func (c *RmCmd) Synopsis() string   { return "Delete a task" }
func (c *RmCmd) Usage() string      { return "todosync rm <ref>" }
func (c *RmCmd) NeedsSession() bool { return true }

func (c *RmCmd) RegisterFlags(fs *flag.FlagSet) {}

func (c *RmCmd) Run(ctx context.Context, cfg *config.Config, sess *app.Session, args []string, out, errOut io.Writer) int {
	if len(args) > 1 {
		return tooManyArgs(errOut)
	}
	task, err := resolveArgs(sess.Tasks, args)
	if err != nil {
		return refExit(err, errOut)
	}
	return settle(ctx, cfg, sess.Tasks.Remove(ctx, task.ID), out, errOut)
}
