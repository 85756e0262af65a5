// Package view holds read-only projections over the task list:
// filters, counters and date labels. Nothing here mutates its input.
package view

import (
	"fmt"
	"math"
	"strings"
	"time"

	"todosync/internal/service"
)

// Filter selects which tasks a view shows.
type Filter string

const (
	FilterAll       Filter = "all"
	FilterActive    Filter = "active"
	FilterCompleted Filter = "completed"
)

// Filters lists every filter in display order.
var Filters = []Filter{FilterAll, FilterActive, FilterCompleted}

// ParseFilter parses a filter name. The empty string means all.
func ParseFilter(s string) (Filter, error) {
	switch Filter(strings.ToLower(strings.TrimSpace(s))) {
	case "", FilterAll:
		return FilterAll, nil
	case FilterActive:
		return FilterActive, nil
	case FilterCompleted:
		return FilterCompleted, nil
	default:
		return FilterAll, fmt.Errorf("invalid filter: %s", s)
	}
}

// Apply returns the tasks matching f in their original order.
// The result never aliases tasks.
func Apply(tasks []service.Task, f Filter) []service.Task {
	out := make([]service.Task, 0, len(tasks))
	for _, t := range tasks {
		switch f {
		case FilterActive:
			if t.Completed {
				continue
			}
		case FilterCompleted:
			if !t.Completed {
				continue
			}
		}
		out = append(out, t)
	}
	return out
}

// Stats holds task counters.
type Stats struct {
	Total     int `json:"total"`
	Active    int `json:"active"`
	Completed int `json:"completed"`
}

// Summarize counts tasks.
func Summarize(tasks []service.Task) Stats {
	s := Stats{Total: len(tasks)}
	for _, t := range tasks {
		if t.Completed {
			s.Completed++
		}
	}
	s.Active = s.Total - s.Completed
	return s
}

// CanClearCompleted reports whether the bulk clear action should be enabled.
func (s Stats) CanClearCompleted() bool {
	return s.Completed > 0
}

// Count returns the counter that matches f.
func (s Stats) Count(f Filter) int {
	switch f {
	case FilterActive:
		return s.Active
	case FilterCompleted:
		return s.Completed
	default:
		return s.Total
	}
}

// Summary returns the one-line stats text.
func (s Stats) Summary() string {
	if s.Total == 0 {
		return "No tasks yet"
	}
	return fmt.Sprintf("%d total, %d active, %d completed", s.Total, s.Active, s.Completed)
}

// FormatAge renders a creation time relative to now:
// "Today 15:04", "Yesterday", "N days ago" within a week, else the date.
func FormatAge(created, now time.Time) string {
	created = created.In(now.Location())
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	day := time.Date(created.Year(), created.Month(), created.Day(), 0, 0, 0, 0, now.Location())

	days := int(math.Round(today.Sub(day).Hours() / 24))
	switch {
	case days <= 0:
		return "Today " + created.Format("15:04")
	case days == 1:
		return "Yesterday"
	case days < 7:
		return fmt.Sprintf("%d days ago", days)
	default:
		return created.Format("2006-01-02")
	}
}
