package commands

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"

	"todosync/internal/app"
	"todosync/internal/config"
	"todosync/internal/exitcode"
	"todosync/internal/service"
)

func init() {
	Register(&AddCmd{})
}

// AddCmd implements the add command.
type AddCmd struct{}

func (c *AddCmd) Name() string       { return "add" }
func (c *AddCmd) Aliases() []string  { return []string{"create"} }
func (c *AddCmd) Synopsis() string   { return "Create a task" }
func (c *AddCmd) Usage() string      { return "todosync add <text...>" }
func (c *AddCmd) NeedsSession() bool { return true }

func (c *AddCmd) RegisterFlags(fs *flag.FlagSet) {}

func (c *AddCmd) Run(ctx context.Context, cfg *config.Config, sess *app.Session, args []string, out, errOut io.Writer) int {
	// Validation notices also reach the console observer; the command error
	// is printed here so quiet runs still see it.
	pending, err := sess.Tasks.Add(ctx, strings.Join(args, " "))
	if err != nil {
		return validationExit(err, errOut)
	}
	return settle(ctx, cfg, pending, out, errOut)
}

func validationExit(err error, errOut io.Writer) int {
	switch {
	case errors.Is(err, service.ErrEmptyText):
		fmt.Fprintln(errOut, "error: text required")
	case errors.Is(err, service.ErrTextTooLong):
		fmt.Fprintf(errOut, "error: text too long (max %d characters)\n", service.MaxTextLength)
	default:
		fmt.Fprintf(errOut, "error: %v\n", err)
	}
	return exitcode.UserError
}
