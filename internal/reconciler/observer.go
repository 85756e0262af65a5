package reconciler

import (
	"sync"
	"time"

	"todosync/internal/service"
)

// Level is the severity of a user-visible notice.
type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Notice is a user-visible notification.
type Notice struct {
	Level   Level     `json:"level"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

// Observer is the view layer's hook into the reconciler. Callbacks run
// without the reconciler lock held and may call back into it.
type Observer interface {
	// TasksChanged is called after every load and every list mutation.
	TasksChanged(tasks []service.Task)

	// Notice is called for every user-visible notification.
	Notice(n Notice)
}

// NopObserver ignores everything.
type NopObserver struct{}

func (NopObserver) TasksChanged([]service.Task) {}
func (NopObserver) Notice(Notice)               {}

// ObserverFuncs adapts plain functions to Observer. Nil fields are skipped.
type ObserverFuncs struct {
	OnChange func([]service.Task)
	OnNotice func(Notice)
}

func (o ObserverFuncs) TasksChanged(tasks []service.Task) {
	if o.OnChange != nil {
		o.OnChange(tasks)
	}
}

func (o ObserverFuncs) Notice(n Notice) {
	if o.OnNotice != nil {
		o.OnNotice(n)
	}
}

// Broadcast fans callbacks out to a changing set of observers, so views can
// attach after the reconciler is built.
type Broadcast struct {
	mu   sync.RWMutex
	next int
	obs  map[int]Observer
}

// NewBroadcast returns an empty Broadcast.
func NewBroadcast() *Broadcast {
	return &Broadcast{obs: make(map[int]Observer)}
}

// Add attaches obs and returns a func that detaches it.
func (b *Broadcast) Add(obs Observer) (remove func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.next
	b.next++
	b.obs[id] = obs

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.obs, id)
	}
}

func (b *Broadcast) snapshot() []Observer {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]Observer, 0, len(b.obs))
	for i := 0; i < b.next; i++ {
		if o, ok := b.obs[i]; ok {
			out = append(out, o)
		}
	}
	return out
}

func (b *Broadcast) TasksChanged(tasks []service.Task) {
	for _, o := range b.snapshot() {
		o.TasksChanged(service.Clone(tasks))
	}
}

func (b *Broadcast) Notice(n Notice) {
	for _, o := range b.snapshot() {
		o.Notice(n)
	}
}
