// Package testutil provides testing utilities.
package testutil

import (
	"context"
	"fmt"
	"sync"
	"time"

	"todosync/internal/service"
)

// FakeStore is an in-memory implementation of service.RemoteStore for testing.
// Rows are kept per owner; the anonymous owner is "".
type FakeStore struct {
	mu    sync.Mutex
	rows  map[string][]service.Task // owner -> tasks, newest first
	seq   int
	calls []string
	gate  chan struct{}

	// Error injection for testing
	ListErr            error
	InsertErr          error
	UpdateErr          error
	DeleteErr          error
	DeleteCompletedErr error
}

// NewFakeStore creates an empty FakeStore.
func NewFakeStore() *FakeStore {
	return &FakeStore{rows: make(map[string][]service.Task)}
}

// Seed adds tasks for owner as if they already existed on the server.
func (f *FakeStore) Seed(owner string, tasks ...service.Task) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, t := range tasks {
		t.UserID = owner
		f.rows[owner] = append(f.rows[owner], t)
	}
	service.SortNewestFirst(f.rows[owner])
}

// Rows returns what the server currently holds for owner.
func (f *FakeStore) Rows(owner string) []service.Task {
	f.mu.Lock()
	defer f.mu.Unlock()
	return service.Clone(f.rows[owner])
}

// Calls returns the method names called so far, in order.
func (f *FakeStore) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.calls))
	copy(out, f.calls)
	return out
}

// Hold makes every following call block until the returned release func is
// called. Use it to observe state while remote writes are in flight.
func (f *FakeStore) Hold() (release func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	gate := make(chan struct{})
	f.gate = gate

	var once sync.Once
	return func() {
		once.Do(func() {
			f.mu.Lock()
			if f.gate == gate {
				f.gate = nil
			}
			f.mu.Unlock()
			close(gate)
		})
	}
}

// enter records the call and waits on the gate, if any.
func (f *FakeStore) enter(ctx context.Context, name string) error {
	f.mu.Lock()
	f.calls = append(f.calls, name)
	gate := f.gate
	f.mu.Unlock()

	if gate == nil {
		return nil
	}
	select {
	case <-gate:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ListTasks implements service.RemoteStore.
func (f *FakeStore) ListTasks(ctx context.Context, owner string) ([]service.Task, error) {
	if err := f.enter(ctx, "ListTasks"); err != nil {
		return nil, err
	}
	if f.ListErr != nil {
		return nil, f.ListErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	out := service.Clone(f.rows[owner])
	if out == nil {
		out = []service.Task{}
	}
	return out, nil
}

// InsertTask implements service.RemoteStore. The server assigns the id.
func (f *FakeStore) InsertTask(ctx context.Context, owner string, task service.Task) (service.Task, error) {
	if err := f.enter(ctx, "InsertTask"); err != nil {
		return service.Task{}, err
	}
	if f.InsertErr != nil {
		return service.Task{}, f.InsertErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	f.seq++
	task.ID = fmt.Sprintf("srv-%d", f.seq)
	task.UserID = owner
	if task.CreatedAt.IsZero() {
		task.CreatedAt = time.Now()
	}
	f.rows[owner] = append([]service.Task{task}, f.rows[owner]...)
	return task, nil
}

// UpdateTask implements service.RemoteStore. Unknown ids affect no rows.
func (f *FakeStore) UpdateTask(ctx context.Context, owner, id string, patch service.Patch) error {
	if err := f.enter(ctx, "UpdateTask"); err != nil {
		return err
	}
	if f.UpdateErr != nil {
		return f.UpdateErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	for i, t := range f.rows[owner] {
		if t.ID == id {
			f.rows[owner][i] = patch.Apply(t)
			return nil
		}
	}
	return nil
}

// DeleteTask implements service.RemoteStore. Unknown ids affect no rows.
func (f *FakeStore) DeleteTask(ctx context.Context, owner, id string) error {
	if err := f.enter(ctx, "DeleteTask"); err != nil {
		return err
	}
	if f.DeleteErr != nil {
		return f.DeleteErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	rows := f.rows[owner]
	for i, t := range rows {
		if t.ID == id {
			f.rows[owner] = append(rows[:i], rows[i+1:]...)
			return nil
		}
	}
	return nil
}

// DeleteCompleted implements service.RemoteStore.
func (f *FakeStore) DeleteCompleted(ctx context.Context, owner string) error {
	if err := f.enter(ctx, "DeleteCompleted"); err != nil {
		return err
	}
	if f.DeleteCompletedErr != nil {
		return f.DeleteCompletedErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	kept := f.rows[owner][:0]
	for _, t := range f.rows[owner] {
		if !t.Completed {
			kept = append(kept, t)
		}
	}
	f.rows[owner] = kept
	return nil
}

var _ service.RemoteStore = (*FakeStore)(nil)
