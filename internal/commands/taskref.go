package commands

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode"

	"todosync/internal/exitcode"
	"todosync/internal/reconciler"
	"todosync/internal/service"
)

// TaskRef is a parsed task reference: either a 1-based row number in the
// current filtered view, or an id prefix.
type TaskRef struct {
	Num    int
	Prefix string
}

// ErrTaskRefRequired indicates no task reference was provided.
var ErrTaskRefRequired = errors.New("task reference required")

// ErrAmbiguousRef indicates an id prefix matched more than one task.
var ErrAmbiguousRef = errors.New("ambiguous task reference")

// ParseTaskRef parses the task reference in args[0].
//
// Parsing rules:
// 1. No args → error: task reference required
// 2. All digits → row number
// 3. Anything else without whitespace → id prefix
func ParseTaskRef(args []string) (TaskRef, error) {
	if len(args) == 0 || strings.TrimSpace(args[0]) == "" {
		return TaskRef{}, ErrTaskRefRequired
	}

	arg := args[0]
	if isAllDigits(arg) {
		num, err := strconv.Atoi(arg)
		if err != nil {
			return TaskRef{}, fmt.Errorf("invalid task reference: %s", arg)
		}
		return TaskRef{Num: num}, nil
	}

	if strings.IndexFunc(arg, unicode.IsSpace) >= 0 {
		return TaskRef{}, fmt.Errorf("invalid task reference: %s", arg)
	}
	return TaskRef{Prefix: arg}, nil
}

// ResolveTask finds the task a reference points at. Row numbers count in the
// filtered view; prefixes match against every task.
func ResolveTask(rec *reconciler.Reconciler, ref TaskRef) (service.Task, error) {
	if ref.Prefix == "" {
		visible := rec.Visible()
		if ref.Num < 1 || ref.Num > len(visible) {
			return service.Task{}, fmt.Errorf("task number out of range: %d", ref.Num)
		}
		return visible[ref.Num-1], nil
	}

	if task, ok := rec.Find(ref.Prefix); ok {
		return task, nil
	}

	var matches []service.Task
	for _, t := range rec.Tasks() {
		if strings.HasPrefix(t.ID, ref.Prefix) {
			matches = append(matches, t)
		}
	}
	switch len(matches) {
	case 0:
		return service.Task{}, fmt.Errorf("task %w: %s", service.ErrNotFound, ref.Prefix)
	case 1:
		return matches[0], nil
	default:
		return service.Task{}, fmt.Errorf("%w: %s matches %d tasks", ErrAmbiguousRef, ref.Prefix, len(matches))
	}
}

// resolveArgs parses and resolves args[0], printing a user error on failure.
func resolveArgs(rec *reconciler.Reconciler, args []string) (service.Task, error) {
	ref, err := ParseTaskRef(args)
	if err != nil {
		return service.Task{}, err
	}
	return ResolveTask(rec, ref)
}

// isAllDigits returns true if s consists only of ASCII digits and is non-empty.
func isAllDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// refExit prints a task reference error and returns the user error code.
func refExit(err error, errOut io.Writer) int {
	fmt.Fprintf(errOut, "error: %v\n", err)
	return exitcode.UserError
}
