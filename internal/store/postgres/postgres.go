package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"task-api/internal/task"
)

// Storage is the PostgreSQL task.Repository.
type Storage struct {
	pool *pgxpool.Pool
}

// New connects using a postgres:// connection string and creates the tasks
// table if it does not exist.
func New(ctx context.Context, constr string) (*Storage, error) {
	pool, err := pgxpool.New(ctx, constr)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS tasks (
			id BIGSERIAL PRIMARY KEY,
			title TEXT NOT NULL,
			done BOOLEAN NOT NULL DEFAULT FALSE
		);
	`); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Storage{pool: pool}, nil
}

func (s *Storage) Close() error {
	s.pool.Close()
	return nil
}

// Create inserts a task and returns it with its id.
func (s *Storage) Create(ctx context.Context, title string) (task.Task, error) {
	t := task.Task{Title: title}
	err := s.pool.QueryRow(ctx, `
		INSERT INTO tasks (title)
		VALUES ($1) RETURNING id;
	`,
		title,
	).Scan(&t.ID)
	if err != nil {
		return task.Task{}, fmt.Errorf("insert task: %w", err)
	}
	return t, nil
}

// List returns all tasks ordered by id.
func (s *Storage) List(ctx context.Context) ([]task.Task, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, title, done
		FROM tasks
		ORDER BY id;
	`)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	tasks := []task.Task{}
	for rows.Next() {
		var t task.Task
		if err := rows.Scan(&t.ID, &t.Title, &t.Done); err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// Get returns a task by id.
func (s *Storage) Get(ctx context.Context, id int64) (task.Task, error) {
	var t task.Task
	err := s.pool.QueryRow(ctx, `
		SELECT id, title, done
		FROM tasks
		WHERE id = $1;
	`,
		id,
	).Scan(&t.ID, &t.Title, &t.Done)
	if errors.Is(err, pgx.ErrNoRows) {
		return task.Task{}, task.ErrNotFound
	}
	if err != nil {
		return task.Task{}, fmt.Errorf("get task %d: %w", id, err)
	}
	return t, nil
}

// SwapDone flips done with a single conditional UPDATE.
func (s *Storage) SwapDone(ctx context.Context, id int64, done bool) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE tasks
		SET done = $2
		WHERE id = $1 AND done <> $2;
	`,
		id,
		done,
	)
	if err != nil {
		return false, fmt.Errorf("update task %d: %w", id, err)
	}
	return tag.RowsAffected() == 1, nil
}
