// Package cli parses the command line and runs commands against a session.
package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"todosync/internal/app"
	"todosync/internal/commands"
	"todosync/internal/config"
	"todosync/internal/exitcode"
	"todosync/internal/logging"
	"todosync/internal/output"
	"todosync/internal/reconciler"
)

// CloseTimeout bounds how long the dispatcher waits for in-flight writes
// after a command returns.
const CloseTimeout = 10 * time.Second

// SessionFactory opens a session from config. Notices raised during the
// initial load go to obs.
type SessionFactory func(ctx context.Context, cfg *config.Config, obs *reconciler.Broadcast, logger *log.Logger) (*app.Session, error)

// Dispatcher handles command-line parsing and dispatch.
type Dispatcher struct {
	registry *commands.Registry
	factory  SessionFactory
}

// NewDispatcher creates a new dispatcher with the given registry and session factory.
func NewDispatcher(registry *commands.Registry, factory SessionFactory) *Dispatcher {
	return &Dispatcher{
		registry: registry,
		factory:  factory,
	}
}

// Run parses arguments and dispatches to the appropriate command.
// Returns the exit code.
func (d *Dispatcher) Run(ctx context.Context, args []string, out, errOut io.Writer) int {
	// No args -> dispatch to "list" command with no args
	if len(args) == 0 {
		return d.dispatch(ctx, "list", nil, out, errOut)
	}

	cmdName := args[0]

	// If first token starts with -, it's an error (flags require a command)
	if strings.HasPrefix(cmdName, "-") {
		fmt.Fprintf(errOut, "error: unknown command: %s\n", cmdName)
		return exitcode.UserError
	}

	return d.dispatch(ctx, cmdName, args[1:], out, errOut)
}

func (d *Dispatcher) dispatch(ctx context.Context, cmdName string, args []string, out, errOut io.Writer) int {
	cmd, ok := d.registry.Find(cmdName)
	if !ok {
		fmt.Fprintf(errOut, "error: unknown command: %s\n", cmdName)
		return exitcode.UserError
	}
	return d.dispatchCommand(ctx, cmd, args, out, errOut)
}

func (d *Dispatcher) dispatchCommand(ctx context.Context, cmd commands.Command, args []string, out, errOut io.Writer) int {
	// Create flag set with custom error handling
	fs := flag.NewFlagSet(cmd.Name(), flag.ContinueOnError)
	fs.SetOutput(io.Discard) // We handle errors ourselves

	// Common flags
	var configDir string
	var quiet bool
	var debug bool

	fs.StringVar(&configDir, "config", "", "")
	fs.BoolVar(&quiet, "quiet", false, "")
	fs.BoolVar(&debug, "debug", false, "")

	// Register command-specific flags
	cmd.RegisterFlags(fs)

	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(errOut, "error: %s\n", flagError(err))
		return exitcode.UserError
	}

	// Check if first positional arg starts with - (should have been parsed as flag)
	positionalArgs := fs.Args()
	if len(positionalArgs) > 0 && strings.HasPrefix(positionalArgs[0], "-") && positionalArgs[0] != "-" {
		fmt.Fprintf(errOut, "error: unknown flag: %s\n", positionalArgs[0])
		return exitcode.UserError
	}

	cfg, err := config.Load(configDir)
	if err != nil {
		fmt.Fprintf(errOut, "error: config error: %s\n", err)
		return exitcode.AuthError
	}
	cfg.Quiet = quiet
	cfg.Debug = debug

	if !cmd.NeedsSession() {
		return cmd.Run(ctx, cfg, nil, positionalArgs, out, errOut)
	}

	logger := logging.ForCommand(errOut, debug)
	if fsc, ok := cmd.(commands.FullScreen); ok && fsc.FullScreen() {
		fileLogger, f, err := logging.ToFile(cfg.Dir, config.LogFile, debug)
		if err != nil {
			fmt.Fprintf(errOut, "error: failed to open log file: %s\n", err)
			return exitcode.UserError
		}
		defer f.Close()
		logger = fileLogger
	}

	obs := reconciler.NewBroadcast()
	detach := obs.Add(consolePrinter(cfg, errOut))

	sess, err := d.factory(ctx, cfg, obs, logger)
	if err != nil {
		detach()
		return sessionError(err, errOut)
	}
	sess.DetachConsole = detach

	code := cmd.Run(ctx, cfg, sess, positionalArgs, out, errOut)

	closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), CloseTimeout)
	defer cancel()
	if err := sess.Close(closeCtx); err != nil {
		logger.Warn("closing session", "err", err)
	}
	detach()
	return code
}

// consolePrinter reports absorbed failures as warning lines. Successes are
// left to the command's own output.
func consolePrinter(cfg *config.Config, errOut io.Writer) reconciler.Observer {
	return reconciler.ObserverFuncs{
		OnNotice: func(n reconciler.Notice) {
			if cfg.Quiet {
				return
			}
			switch n.Level {
			case reconciler.LevelError, reconciler.LevelWarning:
				output.FormatNotice(errOut, n)
			}
		},
	}
}

func sessionError(err error, errOut io.Writer) int {
	switch {
	case errors.Is(err, config.ErrUnknownBackend):
		fmt.Fprintf(errOut, "error: config error: %s\n", err)
		return exitcode.AuthError
	case strings.Contains(err.Error(), "auth") || strings.Contains(err.Error(), "token"):
		fmt.Fprintf(errOut, "error: %s\n", ensurePrefix(err.Error(), "auth error: "))
		return exitcode.AuthError
	default:
		fmt.Fprintf(errOut, "error: backend error: %s\n", err)
		return exitcode.BackendError
	}
}

func ensurePrefix(s, prefix string) string {
	if strings.HasPrefix(s, prefix) {
		return s
	}
	return prefix + s
}

// flagError rewrites flag package errors into the CLI's wording.
func flagError(err error) string {
	errStr := err.Error()

	// Check for missing flag value
	if strings.HasPrefix(errStr, "flag needs an argument:") {
		flagName := strings.TrimSpace(strings.TrimPrefix(errStr, "flag needs an argument:"))
		return "flag needs an argument: " + flagName
	}

	// Check for unknown flag
	if strings.HasPrefix(errStr, "flag provided but not defined:") {
		flagName := strings.TrimPrefix(errStr, "flag provided but not defined: ")
		return "unknown flag: " + flagName
	}

	return errStr
}
