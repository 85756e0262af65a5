// Package commands provides the command interface and implementations.
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

// Command defines the interface for CLI commands.
type Command interface {
	// Name returns the primary command name.
	Name() string

	// Aliases returns alternative names for the command.
	Aliases() []string

	// Synopsis returns a short description for help output.
	Synopsis() string

	// Usage returns the usage string for help output.
	Usage() string

	// NeedsSession returns true if the command works on the task list.
	// Commands like help, version, login, logout and status return false.
	NeedsSession() bool

	// RegisterFlags registers command-specific flags.
	RegisterFlags(fs *flag.FlagSet)

	// Run executes the command.
	// cfg is always provided.
	// sess is nil if NeedsSession() returns false; otherwise the initial
	// load has already happened.
	// args contains positional arguments after flag parsing.
	// Returns exit code.
	Run(ctx context.Context, cfg *config.Config, sess *app.Session, args []string, out, errOut io.Writer) int
}

// FullScreen is implemented by commands that take over the terminal. Their
// logs go to a file instead of stderr.
type FullScreen interface {
	FullScreen() bool
}

// settle waits for the background half of a mutation so the write lands
// before the process exits. Absorbed remote failures have already been
// reported as warnings and do not fail the command.
func settle(ctx context.Context, cfg *config.Config, p *reconciler.Pending, out, errOut io.Writer) int {
	if _, err := p.Wait(ctx); err != nil {
		fmt.Fprintln(errOut, "error: interrupted before the change was saved")
		return exitcode.BackendError
	}
	if !cfg.Quiet {
		fmt.Fprintln(out, "ok")
	}
	return exitcode.Success
}
