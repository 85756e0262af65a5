// Package service defines the backend-agnostic types and store contracts for tasks.
package service

import "context"

// RemoteStore is the hosted, table-backed task store.
// Every operation is scoped to owner. An empty owner means the anonymous scope.
// Implementations must return an error rather than rows belonging to another owner.
// Commands and views never import a backend SDK directly.
type RemoteStore interface {
	// ListTasks returns the owner's tasks, newest first.
	ListTasks(ctx context.Context, owner string) ([]Task, error)

	// InsertTask stores one task and returns the server's copy,
	// which may carry a server-assigned ID and timestamp.
	InsertTask(ctx context.Context, owner string, task Task) (Task, error)

	// UpdateTask applies a partial update to the task with the given id.
	// Updating a row that no longer exists affects nothing and is not an error.
	UpdateTask(ctx context.Context, owner, id string, patch Patch) error

	// DeleteTask deletes the task with the given id.
	DeleteTask(ctx context.Context, owner, id string) error

	// DeleteCompleted deletes every completed task of the owner.
	DeleteCompleted(ctx context.Context, owner string) error
}

// LocalStore holds one serialized snapshot of the whole task list.
// It is advisory and only read or written when the remote store is
// unusable or fails.
type LocalStore interface {
	// Load returns the most recently saved snapshot. A store that was
	// never written returns an empty list and no error.
	Load(ctx context.Context) ([]Task, error)

	// Save replaces the snapshot.
	Save(ctx context.Context, tasks []Task) error
}
