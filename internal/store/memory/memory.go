// Package memory is a process-local task.Repository, used by `--store.driver
// memory` and by tests that do not need SQL.
package memory

import (
	"context"
	"sync"

	"task-api/internal/task"
)

// Store keeps tasks in a slice indexed by id-1. Ids are never reused since
// tasks are never removed.
type Store struct {
	mu    sync.Mutex
	tasks []task.Task
}

func New() *Store { return &Store{} }

func (s *Store) Create(ctx context.Context, title string) (task.Task, error) {
	if err := ctx.Err(); err != nil {
		return task.Task{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	t := task.Task{ID: int64(len(s.tasks)) + 1, Title: title}
	s.tasks = append(s.tasks, t)
	return t, nil
}

func (s *Store) List(ctx context.Context) ([]task.Task, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]task.Task{}, s.tasks...), nil
}

func (s *Store) Get(ctx context.Context, id int64) (task.Task, error) {
	if err := ctx.Err(); err != nil {
		return task.Task{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.lookup(id)
	if !ok {
		return task.Task{}, task.ErrNotFound
	}
	return *t, nil
}

func (s *Store) SwapDone(ctx context.Context, id int64, done bool) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.lookup(id)
	if !ok || t.Done == done {
		return false, nil
	}
	t.Done = done
	return true, nil
}

func (s *Store) Close() error { return nil }

func (s *Store) lookup(id int64) (*task.Task, bool) {
	if id < 1 || id > int64(len(s.tasks)) {
		return nil, false
	}
	return &s.tasks[id-1], true
}
