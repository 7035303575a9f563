package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	"task-api/internal/task"
)

// Store is the database/sql backed task.Repository for sqlite3 and mysql.
type Store struct {
	db *sqlx.DB
}

// New opens and migrates a store. driver is a database/sql driver name:
// "sqlite3" or "mysql".
func New(ctx context.Context, driver, dsn string) (*Store, error) {
	ddl, ok := schema[driver]
	if !ok {
		return nil, fmt.Errorf("unsupported sql driver %q", driver)
	}
	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, err
	}
	if driver == "sqlite3" {
		// one connection: sqlite has a single writer and each new
		// connection to :memory: would see an empty database
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", driver, err)
	}
	if _, err := db.ExecContext(ctx, ddl); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

var schema = map[string]string{
	"sqlite3": `CREATE TABLE IF NOT EXISTS tasks (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    title VARCHAR(1024) NOT NULL,
    done BOOLEAN NOT NULL DEFAULT FALSE
)`,
	"mysql": `CREATE TABLE IF NOT EXISTS tasks (
    id BIGINT PRIMARY KEY AUTO_INCREMENT,
    title VARCHAR(1024) NOT NULL,
    done BOOLEAN NOT NULL DEFAULT FALSE
) DEFAULT CHARSET=utf8mb4`,
}

func (s *Store) Create(ctx context.Context, title string) (task.Task, error) {
	res, err := s.db.ExecContext(ctx, `INSERT INTO tasks (title, done) VALUES (?, ?)`, title, false)
	if err != nil {
		return task.Task{}, fmt.Errorf("insert task: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return task.Task{}, fmt.Errorf("insert task: %w", err)
	}
	return task.Task{ID: id, Title: title}, nil
}

func (s *Store) List(ctx context.Context) ([]task.Task, error) {
	out := []task.Task{}
	if err := s.db.SelectContext(ctx, &out, `SELECT id, title, done FROM tasks ORDER BY id`); err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	return out, nil
}

func (s *Store) Get(ctx context.Context, id int64) (task.Task, error) {
	var t task.Task
	err := s.db.GetContext(ctx, &t, `SELECT id, title, done FROM tasks WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return task.Task{}, task.ErrNotFound
	}
	if err != nil {
		return task.Task{}, fmt.Errorf("get task %d: %w", id, err)
	}
	return t, nil
}

func (s *Store) SwapDone(ctx context.Context, id int64, done bool) (bool, error) {
	res, err := s.db.ExecContext(ctx, `UPDATE tasks SET done = ? WHERE id = ? AND done <> ?`, done, id, done)
	if err != nil {
		return false, fmt.Errorf("update task %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("update task %d: %w", id, err)
	}
	return n == 1, nil
}
