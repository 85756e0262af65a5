package localstore

import (
	"context"
	"sync"

	"todosync/internal/service"
)

// Memory keeps the snapshot in process memory.
type Memory struct {
	mu    sync.Mutex
	tasks []service.Task
	saves int

	// LoadErr and SaveErr are returned when set.
	LoadErr error
	SaveErr error
}

// NewMemory returns an empty in-memory snapshot store.
func NewMemory(initial ...service.Task) *Memory {
	return &Memory{tasks: service.Clone(initial)}
}

// Load implements service.LocalStore.
func (m *Memory) Load(ctx context.Context) ([]service.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.LoadErr != nil {
		return nil, m.LoadErr
	}
	if m.tasks == nil {
		return []service.Task{}, nil
	}
	return service.Clone(m.tasks), nil
}

// Save implements service.LocalStore.
func (m *Memory) Save(ctx context.Context, tasks []service.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SaveErr != nil {
		return m.SaveErr
	}
	m.tasks = service.Clone(tasks)
	m.saves++
	return nil
}

// Snapshot returns the stored tasks without going through Load.
func (m *Memory) Snapshot() []service.Task {
	m.mu.Lock()
	defer m.mu.Unlock()
	return service.Clone(m.tasks)
}

// Saves returns how many times Save succeeded.
func (m *Memory) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}
