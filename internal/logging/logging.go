// Package logging builds the leveled console logger shared by all components.
package logging

import (
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
)

// Options holds logger configuration.
type Options struct {
	Level           log.Level
	Formatter       log.Formatter
	ReportTimestamp bool
	Prefix          string
}

// DefaultOptions returns the options used by the CLI: warnings and errors only.
func DefaultOptions() Options {
	return Options{
		Level:     log.WarnLevel,
		Formatter: log.TextFormatter,
		Prefix:    "todosync",
	}
}

// New creates a logger writing to w.
func New(w io.Writer, opts Options) *log.Logger {
	return log.NewWithOptions(w, log.Options{
		Level:           opts.Level,
		Formatter:       opts.Formatter,
		ReportTimestamp: opts.ReportTimestamp,
		Prefix:          opts.Prefix,
	})
}

// ForCLI returns a stderr logger. debug lowers the level to debug.
func ForCLI(w io.Writer, debug bool) *log.Logger {
	opts := DefaultOptions()
	if debug {
		opts.Level = log.DebugLevel
		opts.ReportTimestamp = true
	}
	return New(w, opts)
}

// ForCommand returns the stderr logger for one-shot commands. Absorbed
// failures already reach the terminal as notices, so only errors are logged
// unless debug is set.
func ForCommand(w io.Writer, debug bool) *log.Logger {
	if debug {
		return ForCLI(w, true)
	}
	opts := DefaultOptions()
	opts.Level = log.ErrorLevel
	return New(w, opts)
}

// ToFile opens (or creates) a log file in dir so full-screen views keep the
// terminal clean. The caller closes the returned file.
func ToFile(dir, name string, debug bool) (*log.Logger, *os.File, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, nil, err
	}
	f, err := os.OpenFile(filepath.Join(dir, name), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
	if err != nil {
		return nil, nil, err
	}
	opts := DefaultOptions()
	opts.ReportTimestamp = true
	opts.Formatter = log.LogfmtFormatter
	if debug {
		opts.Level = log.DebugLevel
	}
	return New(f, opts), f, nil
}

// Discard returns a logger that writes nothing.
func Discard() *log.Logger {
	return log.NewWithOptions(io.Discard, log.Options{Level: log.FatalLevel})
}

// ParseLevel parses a level name, defaulting to warn.
func ParseLevel(level string) log.Level {
	switch level {
	case "debug":
		return log.DebugLevel
	case "info":
		return log.InfoLevel
	case "error":
		return log.ErrorLevel
	default:
		return log.WarnLevel
	}
}
