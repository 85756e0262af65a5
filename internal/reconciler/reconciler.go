// Package reconciler owns the authoritative in-memory task list.
//
// Every mutation is applied to the list before the call returns. The
// matching remote write then runs in the background: server-assigned ids are
// reconciled in place, and on failure the list falls back to the local
// snapshot store. Remote errors never escape. They surface as notices.
package reconciler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"todosync/internal/logging"
	"todosync/internal/service"
	"todosync/internal/view"
)

// Source tells where a load got its data from.
type Source string

const (
	SourceRemote Source = "remote"
	SourceLocal  Source = "local"
)

// LoadResult describes the outcome of Load.
type LoadResult struct {
	Source Source
	Count  int

	// Unreachable is set when the remote store was configured but failed,
	// which is distinct from it returning no tasks.
	Unreachable bool

	// Err holds the absorbed remote and/or local error.
	Err error
}

// Reconciler is the single owner of the task list for a session.
type Reconciler struct {
	remote service.RemoteStore
	usable bool
	local  service.LocalStore
	owner  string
	obs    Observer
	logger *log.Logger
	now    func() time.Time
	newID  func(time.Time) string

	mu     sync.Mutex
	tasks  []service.Task
	filter view.Filter

	// adds tracks temporary tasks whose insert is still running. The value
	// is the last copy of a task a load dropped from the list, nil otherwise.
	adds map[string]*service.Task

	// saveMu orders local snapshot writes so the last save holds the
	// latest list.
	saveMu sync.Mutex

	inflight sync.WaitGroup
}

// Option configures a Reconciler.
type Option func(*Reconciler)

// WithRemote sets the remote store. usable is the configuration check; when
// false the store is never called.
func WithRemote(store service.RemoteStore, usable bool) Option {
	return func(r *Reconciler) {
		r.remote = store
		r.usable = usable
	}
}

// WithOwner scopes every remote call to owner. Empty means anonymous.
func WithOwner(owner string) Option {
	return func(r *Reconciler) { r.owner = owner }
}

// WithObserver registers the view callbacks.
func WithObserver(obs Observer) Option {
	return func(r *Reconciler) {
		if obs != nil {
			r.obs = obs
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *log.Logger) Option {
	return func(r *Reconciler) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(r *Reconciler) { r.now = now }
}

// WithIDGenerator overrides client-side id generation.
func WithIDGenerator(fn func(time.Time) string) Option {
	return func(r *Reconciler) { r.newID = fn }
}

// New creates a Reconciler. local is required; the remote store is optional.
func New(local service.LocalStore, opts ...Option) *Reconciler {
	r := &Reconciler{
		local:  local,
		obs:    NopObserver{},
		logger: logging.Discard(),
		now:    time.Now,
		newID:  service.NewLocalID,
		filter: view.FilterAll,
		adds:   make(map[string]*service.Task),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Start performs the initial load.
func (r *Reconciler) Start(ctx context.Context) LoadResult {
	return r.Load(ctx)
}

// Stop waits for in-flight remote and fallback writes to finish or for ctx to end.
// In-flight writes are never cancelled.
func (r *Reconciler) Stop(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		r.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Owner returns the owner scope.
func (r *Reconciler) Owner() string {
	return r.owner
}

// RemoteEnabled reports whether mutations are mirrored to the remote store.
func (r *Reconciler) RemoteEnabled() bool {
	return r.remote != nil && r.usable
}

// Load replaces the list with the owner's remote tasks, or with the local
// snapshot when the remote store is unusable or fails.
func (r *Reconciler) Load(ctx context.Context) LoadResult {
	if !r.RemoteEnabled() {
		r.logger.Debug("remote store not configured, loading local snapshot")
		return r.loadLocal(ctx, false, nil)
	}

	tasks, err := r.remote.ListTasks(ctx, r.owner)
	if err != nil {
		r.logger.Warn("failed to load tasks", "err", err)
		r.notify(LevelError, "Failed to load tasks from server")
		return r.loadLocal(ctx, true, err)
	}

	service.SortNewestFirst(tasks)
	r.replace(tasks)
	r.logger.Debug("loaded tasks", "source", SourceRemote, "count", len(tasks))
	if len(tasks) > 0 {
		r.notify(LevelInfo, fmt.Sprintf("Loaded %d tasks", len(tasks)))
	}
	return LoadResult{Source: SourceRemote, Count: len(tasks)}
}

func (r *Reconciler) loadLocal(ctx context.Context, unreachable bool, cause error) LoadResult {
	res := LoadResult{Source: SourceLocal, Unreachable: unreachable, Err: cause}

	tasks, err := r.local.Load(ctx)
	if err != nil {
		r.logger.Error("failed to load local snapshot", "err", err)
		tasks = nil
		res.Err = errors.Join(cause, err)
	}

	service.SortNewestFirst(tasks)
	r.replace(tasks)
	res.Count = len(tasks)
	return res
}

// Add validates raw text and prepends a new task. The returned Pending
// completes once the remote insert (or local fallback) is done.
func (r *Reconciler) Add(ctx context.Context, raw string) (*Pending, error) {
	text, err := service.NormalizeText(raw)
	if err != nil {
		r.notify(LevelError, validationMessage(err))
		return nil, err
	}

	now := r.now()
	temp := service.Task{
		ID:        r.newID(now),
		Text:      text,
		Completed: false,
		CreatedAt: now,
		UserID:    r.owner,
	}

	r.mu.Lock()
	r.tasks = append([]service.Task{temp}, r.tasks...)
	r.adds[temp.ID] = nil
	snap := service.Clone(r.tasks)
	r.mu.Unlock()
	r.obs.TasksChanged(snap)

	return r.dispatch(ctx, func(ctx context.Context) Result {
		defer r.settleAdd(temp.ID)

		if !r.RemoteEnabled() {
			res := r.persistLocal(ctx, nil, temp.ID)
			r.notify(LevelSuccess, "Task added!")
			return res
		}

		saved, err := r.remote.InsertTask(ctx, r.owner, temp)
		if err != nil {
			r.logger.Warn("failed to save task, keeping it locally", "id", temp.ID, "err", err)
			r.notify(LevelError, "Failed to save task")
			res := r.persistLocal(ctx, err, temp.ID)
			r.notify(LevelSuccess, "Task added!")
			return res
		}

		if saved.ID != "" && saved.ID != temp.ID {
			r.reconcile(temp.ID, saved)
		}
		r.notify(LevelSuccess, "Task added!")
		return Result{Applied: true}
	}), nil
}

func (r *Reconciler) settleAdd(tempID string) {
	r.mu.Lock()
	delete(r.adds, tempID)
	r.mu.Unlock()
}

// reconcile swaps a temporary task for the server's copy at the same position.
func (r *Reconciler) reconcile(tempID string, saved service.Task) {
	r.mu.Lock()
	idx := r.indexOf(tempID)
	if idx < 0 {
		r.mu.Unlock()
		r.logger.Debug("temporary task gone before insert returned", "temp_id", tempID, "id", saved.ID)
		return
	}
	if r.indexOf(saved.ID) >= 0 {
		// A load already brought the server row in.
		r.tasks = append(r.tasks[:idx], r.tasks[idx+1:]...)
	} else {
		r.tasks[idx] = saved
	}
	snap := service.Clone(r.tasks)
	r.mu.Unlock()

	r.logger.Debug("reconciled task id", "temp_id", tempID, "id", saved.ID)
	r.obs.TasksChanged(snap)
}

// Toggle flips the completed flag of id. An unknown id is a no-op.
func (r *Reconciler) Toggle(ctx context.Context, id string) *Pending {
	r.mu.Lock()
	idx := r.indexOf(id)
	if idx < 0 {
		r.mu.Unlock()
		return resolved(Result{})
	}
	r.tasks[idx].Completed = !r.tasks[idx].Completed
	completed := r.tasks[idx].Completed
	snap := service.Clone(r.tasks)
	r.mu.Unlock()
	r.obs.TasksChanged(snap)

	patch := service.Patch{Completed: service.BoolPtr(completed)}
	return r.dispatch(ctx, func(ctx context.Context) Result {
		res := r.mirror(ctx, "update task", func(ctx context.Context) error {
			return r.remote.UpdateTask(ctx, r.owner, id, patch)
		})
		if completed {
			r.notifyIfClean(res, LevelSuccess, "Task completed!")
		} else {
			r.notifyIfClean(res, LevelInfo, "Task marked as active")
		}
		return res
	})
}

// Rename replaces the text of id. Empty or unchanged text and unknown ids
// are no-ops; over-long text is a validation error.
func (r *Reconciler) Rename(ctx context.Context, id, newText string) (*Pending, error) {
	text, err := service.NormalizeText(newText)
	if errors.Is(err, service.ErrEmptyText) {
		return resolved(Result{}), nil
	}
	if err != nil {
		r.notify(LevelError, validationMessage(err))
		return nil, err
	}

	r.mu.Lock()
	idx := r.indexOf(id)
	if idx < 0 || r.tasks[idx].Text == text {
		r.mu.Unlock()
		return resolved(Result{}), nil
	}
	r.tasks[idx].Text = text
	snap := service.Clone(r.tasks)
	r.mu.Unlock()
	r.obs.TasksChanged(snap)

	patch := service.Patch{Text: service.StringPtr(text)}
	return r.dispatch(ctx, func(ctx context.Context) Result {
		res := r.mirror(ctx, "update task", func(ctx context.Context) error {
			return r.remote.UpdateTask(ctx, r.owner, id, patch)
		})
		r.notifyIfClean(res, LevelSuccess, "Task updated!")
		return res
	}), nil
}

// Remove drops id from the list immediately. An unknown id is a no-op.
func (r *Reconciler) Remove(ctx context.Context, id string) *Pending {
	r.mu.Lock()
	idx := r.indexOf(id)
	if idx < 0 {
		r.mu.Unlock()
		return resolved(Result{})
	}
	r.tasks = append(r.tasks[:idx], r.tasks[idx+1:]...)
	delete(r.adds, id)
	snap := service.Clone(r.tasks)
	r.mu.Unlock()
	r.obs.TasksChanged(snap)

	return r.dispatch(ctx, func(ctx context.Context) Result {
		res := r.mirror(ctx, "delete task", func(ctx context.Context) error {
			return r.remote.DeleteTask(ctx, r.owner, id)
		})
		r.notifyIfClean(res, LevelSuccess, "Task deleted!")
		return res
	})
}

// ClearCompleted drops every completed task immediately. Without completed
// tasks it is a no-op.
func (r *Reconciler) ClearCompleted(ctx context.Context) *Pending {
	r.mu.Lock()
	kept := make([]service.Task, 0, len(r.tasks))
	for _, t := range r.tasks {
		if !t.Completed {
			kept = append(kept, t)
		} else {
			delete(r.adds, t.ID)
		}
	}
	removed := len(r.tasks) - len(kept)
	if removed == 0 {
		r.mu.Unlock()
		return resolved(Result{})
	}
	r.tasks = kept
	snap := service.Clone(r.tasks)
	r.mu.Unlock()
	r.obs.TasksChanged(snap)

	return r.dispatch(ctx, func(ctx context.Context) Result {
		res := r.mirror(ctx, "clear completed tasks", func(ctx context.Context) error {
			return r.remote.DeleteCompleted(ctx, r.owner)
		})
		r.notifyIfClean(res, LevelSuccess, fmt.Sprintf("%d completed %s deleted!", removed, plural(removed, "task")))
		return res
	})
}

// Tasks returns a copy of the full list, newest first.
func (r *Reconciler) Tasks() []service.Task {
	r.mu.Lock()
	defer r.mu.Unlock()
	return service.Clone(r.tasks)
}

// Visible returns the list under the current filter.
func (r *Reconciler) Visible() []service.Task {
	r.mu.Lock()
	defer r.mu.Unlock()
	return view.Apply(r.tasks, r.filter)
}

// Find returns the task with the given id.
func (r *Reconciler) Find(id string) (service.Task, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if idx := r.indexOf(id); idx >= 0 {
		return r.tasks[idx], true
	}
	return service.Task{}, false
}

// Filter returns the current filter.
func (r *Reconciler) Filter() view.Filter {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.filter
}

// SetFilter changes the current filter. The list itself is untouched.
func (r *Reconciler) SetFilter(f view.Filter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.filter = f
}

// Stats returns counters over the full list.
func (r *Reconciler) Stats() view.Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return view.Summarize(r.tasks)
}

// dispatch runs op in the background on a context that outlives the caller's.
func (r *Reconciler) dispatch(ctx context.Context, op func(context.Context) Result) *Pending {
	p := newPending()
	ctx = context.WithoutCancel(ctx)

	r.inflight.Add(1)
	go func() {
		defer r.inflight.Done()
		p.resolve(op(ctx))
	}()
	return p
}

// mirror runs a remote mutation, falling back to the local snapshot when the
// remote store is unusable or the call fails.
func (r *Reconciler) mirror(ctx context.Context, action string, call func(context.Context) error) Result {
	if !r.RemoteEnabled() {
		return r.persistLocal(ctx, nil)
	}
	if err := call(ctx); err != nil {
		r.logger.Warn("remote write failed, saving locally", "action", action, "err", err)
		r.notify(LevelError, "Failed to "+action)
		return r.persistLocal(ctx, err)
	}
	return Result{Applied: true}
}

// persistLocal saves the current list as the local snapshot. A pending add
// that a load dropped from the list is put back at the head first.
func (r *Reconciler) persistLocal(ctx context.Context, cause error, restore ...string) Result {
	r.saveMu.Lock()
	defer r.saveMu.Unlock()

	r.mu.Lock()
	restored := false
	for _, id := range restore {
		dropped := r.adds[id]
		if dropped == nil || r.indexOf(id) >= 0 {
			continue
		}
		r.tasks = append([]service.Task{*dropped}, r.tasks...)
		r.adds[id] = nil
		restored = true
		r.logger.Debug("restored task dropped by a load", "id", id)
	}
	snap := service.Clone(r.tasks)
	r.mu.Unlock()
	if restored {
		r.obs.TasksChanged(service.Clone(snap))
	}

	res := Result{Applied: true, Fallback: true, Err: cause}
	if err := r.local.Save(ctx, snap); err != nil {
		r.logger.Error("failed to save local snapshot", "err", err)
		r.notify(LevelError, "Failed to save tasks locally")
		res.Err = errors.Join(cause, err)
	}
	return res
}

func (r *Reconciler) replace(tasks []service.Task) {
	r.mu.Lock()
	for id := range r.adds {
		if idx := r.indexOf(id); idx >= 0 && !containsID(tasks, id) {
			dropped := r.tasks[idx]
			r.adds[id] = &dropped
		}
	}
	r.tasks = service.Clone(tasks)
	snap := service.Clone(r.tasks)
	r.mu.Unlock()
	r.obs.TasksChanged(snap)
}

func containsID(tasks []service.Task, id string) bool {
	for i := range tasks {
		if tasks[i].ID == id {
			return true
		}
	}
	return false
}

// indexOf must be called with mu held.
func (r *Reconciler) indexOf(id string) int {
	for i := range r.tasks {
		if r.tasks[i].ID == id {
			return i
		}
	}
	return -1
}

func (r *Reconciler) notify(level Level, msg string) {
	r.obs.Notice(Notice{Level: level, Message: msg, At: r.now()})
}

func (r *Reconciler) notifyIfClean(res Result, level Level, msg string) {
	if res.Err == nil {
		r.notify(level, msg)
	}
}

func validationMessage(err error) string {
	switch {
	case errors.Is(err, service.ErrEmptyText):
		return "Please enter a task description"
	case errors.Is(err, service.ErrTextTooLong):
		return fmt.Sprintf("Task description is too long (max %d characters)", service.MaxTextLength)
	default:
		return err.Error()
	}
}

func plural(n int, word string) string {
	if n == 1 {
		return word
	}
	return word + "s"
}
