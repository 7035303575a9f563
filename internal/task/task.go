package task

import (
	"context"
	"errors"
)

// Task is the only persisted entity. Title is immutable after Create; Done
// is changed only through Manager.MarkDone and Manager.ClearDone.
type Task struct {
	ID    int64  `db:"id" json:"id"`
	Title string `db:"title" json:"title"`
	Done  bool   `db:"done" json:"done"`
}

var (
	ErrNotFound     = errors.New("task not found")
	ErrAlreadyDone  = errors.New("task already done")
	ErrInvalidTitle = errors.New("invalid title")
)

// Repository is the persistence contract shared by the sqlite/mysql,
// postgres and memory stores.
type Repository interface {
	Create(ctx context.Context, title string) (Task, error)
	// List returns every task ordered by id.
	List(ctx context.Context) ([]Task, error)
	Get(ctx context.Context, id int64) (Task, error)
	// SwapDone sets done on task id only if it currently holds the opposite
	// value, as one atomic step. It reports whether the row changed; a
	// missing id reports false with a nil error.
	SwapDone(ctx context.Context, id int64, done bool) (bool, error)
	Close() error
}
