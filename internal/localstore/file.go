// Package localstore implements service.LocalStore: a single whole-list
// snapshot kept on the local machine.
package localstore

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"syscall"

	"todosync/internal/service"
)

// File keeps the snapshot as a JSON file. An advisory lock serializes
// readers and writers across processes.
type File struct {
	path string
}

// NewFile returns a JSON snapshot store under dir.
func NewFile(dir string) (*File, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create local store directory: %w", err)
	}
	return &File{path: filepath.Join(dir, service.LocalSnapshotKey+".json")}, nil
}

// Path returns the snapshot file path.
func (f *File) Path() string {
	return f.path
}

// Load implements service.LocalStore.
func (f *File) Load(ctx context.Context) ([]service.Task, error) {
	var tasks []service.Task
	err := f.withLock(syscall.LOCK_SH, func(file *os.File) error {
		data, err := io.ReadAll(file)
		if err != nil {
			return err
		}
		if len(data) == 0 {
			return nil
		}
		return json.Unmarshal(data, &tasks)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load local snapshot: %w", err)
	}
	if tasks == nil {
		tasks = []service.Task{}
	}
	return tasks, nil
}

// Save implements service.LocalStore.
func (f *File) Save(ctx context.Context, tasks []service.Task) error {
	if tasks == nil {
		tasks = []service.Task{}
	}
	data, err := json.MarshalIndent(tasks, "", "  ")
	if err != nil {
		return err
	}
	err = f.withLock(syscall.LOCK_EX, func(file *os.File) error {
		if err := file.Truncate(0); err != nil {
			return err
		}
		if _, err := file.Seek(0, io.SeekStart); err != nil {
			return err
		}
		if _, err := file.Write(data); err != nil {
			return err
		}
		return file.Sync()
	})
	if err != nil {
		return fmt.Errorf("failed to save local snapshot: %w", err)
	}
	return nil
}

// withLock opens the snapshot, creating it if needed, and runs fn under flock.
func (f *File) withLock(how int, fn func(*os.File) error) error {
	file, err := os.OpenFile(f.path, os.O_RDWR|os.O_CREATE, 0600)
	if err != nil {
		return err
	}
	defer file.Close()

	if err := syscall.Flock(int(file.Fd()), how); err != nil {
		return fmt.Errorf("failed to lock %s: %w", f.path, err)
	}
	defer syscall.Flock(int(file.Fd()), syscall.LOCK_UN)

	return fn(file)
}
