package commands

import (
	"context"
	"flag"
	"io"
	"strings"

	"todosync/internal/app"
	"todosync/internal/config"
	"todosync/internal/service"
)

func init() {
	Register(&EditCmd{})
}

// EditCmd implements the edit command.
type EditCmd struct{}

func (c *EditCmd) Name() string       { return "edit" }
func (c *EditCmd) Aliases() []string  { return []string{"rename"} }
func (c *EditCmd) Synopsis() string   { return "Change a task's text" }
func (c *EditCmd) Usage() string      { return "todosync edit <ref> <text...>" }
func (c *EditCmd) NeedsSession() bool { return true }

func (c *EditCmd) RegisterFlags(fs *flag.FlagSet) {}

func (c *EditCmd) Run(ctx context.Context, cfg *config.Config, sess *app.Session, args []string, out, errOut io.Writer) int {
	task, err := resolveArgs(sess.Tasks, args)
	if err != nil {
		return refExit(err, errOut)
	}

	// An empty edit cancels in the interactive views; here it is an error.
	text := strings.Join(args[1:], " ")
	if strings.TrimSpace(text) == "" {
		return validationExit(service.ErrEmptyText, errOut)
	}

	pending, err := sess.Tasks.Rename(ctx, task.ID, text)
	if err != nil {
		return validationExit(err, errOut)
	}
	return settle(ctx, cfg, pending, out, errOut)
}
