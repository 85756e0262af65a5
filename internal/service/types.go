// Package service defines the backend-agnostic types and store contracts for tasks.
package service

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

// MaxTextLength is the maximum task text length in runes, measured after trimming.
const MaxTextLength = 200

// LocalSnapshotKey is the fixed key the local fallback snapshot is stored under.
const LocalSnapshotKey = "todoApp_tasks"

var (
	// ErrValidation is the parent of every input validation error.
	ErrValidation = errors.New("validation failed")

	// ErrEmptyText is returned when task text is empty after trimming.
	ErrEmptyText = fmt.Errorf("%w: please enter a task description", ErrValidation)

	// ErrTextTooLong is returned when task text exceeds MaxTextLength.
	ErrTextTooLong = fmt.Errorf("%w: task description is too long (max %d characters)", ErrValidation, MaxTextLength)

	// ErrNotFound is returned by stores when a resource does not exist.
	ErrNotFound = errors.New("not found")
)

// Task represents a single todo item.
type Task struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	Completed bool      `json:"completed"`
	CreatedAt time.Time `json:"created_at"`
	UserID    string    `json:"user_id,omitempty"`
}

// Patch is a partial update. Nil fields are left untouched.
type Patch struct {
	Text      *string `json:"text,omitempty"`
	Completed *bool   `json:"completed,omitempty"`
}

// Empty reports whether the patch changes nothing.
func (p Patch) Empty() bool {
	return p.Text == nil && p.Completed == nil
}

// Apply returns t with the patch applied.
func (p Patch) Apply(t Task) Task {
	if p.Text != nil {
		t.Text = *p.Text
	}
	if p.Completed != nil {
		t.Completed = *p.Completed
	}
	return t
}

var markupReplacer = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")

// Sanitize neutralizes markup in user text.
func Sanitize(s string) string {
	return markupReplacer.Replace(s)
}

// NormalizeText trims, validates and sanitizes raw task text.
func NormalizeText(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", ErrEmptyText
	}
	if utf8.RuneCountInString(trimmed) > MaxTextLength {
		return "", ErrTextTooLong
	}
	return Sanitize(trimmed), nil
}

// NewLocalID returns a client-side id: a base-36 millisecond timestamp
// followed by a random suffix.
func NewLocalID(now time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:10]
	return strconv.FormatInt(now.UnixMilli(), 36) + suffix
}

// SortNewestFirst orders tasks by creation time, newest first. Ties keep their order.
func SortNewestFirst(tasks []Task) {
	sort.SliceStable(tasks, func(i, j int) bool {
		return tasks[i].CreatedAt.After(tasks[j].CreatedAt)
	})
}

// Clone returns a copy of tasks that shares no backing array.
func Clone(tasks []Task) []Task {
	if tasks == nil {
		return nil
	}
	out := make([]Task, len(tasks))
	copy(out, tasks)
	return out
}

// BoolPtr returns a pointer to b.
func BoolPtr(b bool) *bool { return &b }

// StringPtr returns a pointer to s.
func StringPtr(s string) *string { return &s }
