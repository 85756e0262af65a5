package commands

import (
	"context"
	"flag"
	"fmt"
	"io"
	"time"

	"todosync/internal/app"
	"todosync/internal/config"
	"todosync/internal/exitcode"
	"todosync/internal/output"
	"todosync/internal/view"
)

func init() {
	Register(&ListCmd{})
}

// ListCmd implements the list command. It is also what `todosync` with no
// arguments runs.
type ListCmd struct {
	filter string
	now    func() time.Time
}

// SetFilter sets the filter name (for testing).
func (c *ListCmd) SetFilter(name string) {
	c.filter = name
}

// SetClock sets the time used for age labels (for testing).
func (c *ListCmd) SetClock(now func() time.Time) {
	c.now = now
}

func (c *ListCmd) Name() string       { return "list" }
func (c *ListCmd) Aliases() []string  { return []string{"ls"} }
func (c *ListCmd) Synopsis() string   { return "List tasks" }
func (c *ListCmd) Usage() string      { return "todosync list [--filter all|active|completed]" }
func (c *ListCmd) NeedsSession() bool { return true }

func (c *ListCmd) RegisterFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.filter, "filter", "", "")
	fs.StringVar(&c.filter, "f", "", "")
}

func (c *ListCmd) Run(ctx context.Context, cfg *config.Config, sess *app.Session, args []string, out, errOut io.Writer) int {
	if len(args) > 0 {
		fmt.Fprintf(errOut, "error: unexpected argument: %s\n", args[0])
		return exitcode.UserError
	}

	rec := sess.Tasks
	if c.filter != "" {
		f, err := view.ParseFilter(c.filter)
		if err != nil {
			fmt.Fprintf(errOut, "error: %v\n", err)
			return exitcode.UserError
		}
		rec.SetFilter(f)
	}

	now := time.Now
	if c.now != nil {
		now = c.now
	}

	filter := rec.Filter()
	tasks := rec.Visible()
	if filter != view.FilterAll {
		output.FormatListHeader(out, filter, rec.Stats())
	}
	for i, task := range tasks {
		output.FormatTask(out, i+1, task, now())
	}

	if len(tasks) == 0 && !cfg.Quiet {
		fmt.Fprintln(out, "no tasks found")
	}
	return exitcode.Success
}
