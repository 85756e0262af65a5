// Package output provides formatters for CLI output.
package output

import (
	"fmt"
	"html"
	"io"
	"strings"
	"time"

	"todosync/internal/reconciler"
	"todosync/internal/service"
	"todosync/internal/view"
)

const (
	// ListSeparator is the separator line for list sections.
	ListSeparator = "------------"

	// idWidth is how many id characters are shown; enough to use as a prefix ref.
	idWidth = 8
)

// FormatTask formats a task line.
// Format: "{N:>4}  [x] {TEXT}  ({AGE})  {ID}\n"
func FormatTask(w io.Writer, num int, task service.Task, now time.Time) {
	fmt.Fprintf(w, "%4d  %s %s  (%s)  %s\n",
		num, checkbox(task.Completed), DisplayText(task.Text), view.FormatAge(task.CreatedAt, now), ShortID(task.ID))
}

// FormatListHeader formats the section header printed above a filtered list.
func FormatListHeader(w io.Writer, f view.Filter, stats view.Stats) {
	fmt.Fprintln(w, ListSeparator)
	fmt.Fprintf(w, "%s (%d)\n", FilterTitle(f), stats.Count(f))
	fmt.Fprintln(w, ListSeparator)
}

// FormatStats formats the stats footer.
func FormatStats(w io.Writer, stats view.Stats) {
	fmt.Fprintln(w, stats.Summary())
	if stats.CanClearCompleted() {
		fmt.Fprintf(w, "%d completed (run: clear)\n", stats.Completed)
	}
}

// FormatNotice formats a notice for the terminal.
func FormatNotice(w io.Writer, n reconciler.Notice) {
	switch n.Level {
	case reconciler.LevelError, reconciler.LevelWarning:
		fmt.Fprintf(w, "warning: %s\n", n.Message)
	default:
		fmt.Fprintln(w, n.Message)
	}
}

// FilterTitle is the display name of a filter.
func FilterTitle(f view.Filter) string {
	switch f {
	case view.FilterActive:
		return "Active"
	case view.FilterCompleted:
		return "Completed"
	default:
		return "All"
	}
}

// DisplayText turns stored (escaped) task text back into what the user typed.
// - Empty or whitespace-only text becomes "(untitled)"
// - Newlines are replaced with spaces
func DisplayText(text string) string {
	text = html.UnescapeString(text)
	text = strings.ReplaceAll(text, "\r", " ")
	text = strings.ReplaceAll(text, "\n", " ")

	if strings.TrimSpace(text) == "" {
		return "(untitled)"
	}
	return text
}

// ShortID truncates an id for display.
func ShortID(id string) string {
	if len(id) <= idWidth {
		return id
	}
	return id[:idWidth]
}

func checkbox(completed bool) string {
	if completed {
		return "[x]"
	}
	return "[ ]"
}
