package task

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"task-api/pkg/cache"
	"task-api/pkg/mq"
)

const (
	TopicCreated = "task.created"
	TopicDone    = "task.done"
	TopicUndone  = "task.undone"

	listKey = "tasks"
)

// Event is the payload published on every successful mutation.
type Event struct {
	ID   string    `json:"id"`
	Type string    `json:"type"`
	Task Task      `json:"task"`
	At   time.Time `json:"at"`
}

type Manager struct {
	repo        Repository
	pub         mq.Publisher
	list        *cache.MemoryCache[[]Task]
	listMu      sync.Mutex
	listGen     uint64 // bumped by every write, guarded by listMu
	maxTitleLen int
	log         *slog.Logger
}

type Option func(*Manager)

func WithPublisher(p mq.Publisher) Option { return func(m *Manager) { m.pub = p } }

// WithListCache caches List results for ttl; writes through this Manager
// invalidate it.
func WithListCache(ttl time.Duration) Option {
	return func(m *Manager) { m.list = cache.NewMemory[[]Task](ttl) }
}

// WithMaxTitleLen limits titles to n runes. Zero means unlimited.
func WithMaxTitleLen(n int) Option { return func(m *Manager) { m.maxTitleLen = n } }

func WithLogger(l *slog.Logger) Option { return func(m *Manager) { m.log = l } }

func NewManager(repo Repository, opts ...Option) *Manager {
	m := &Manager{repo: repo, pub: mq.Noop{}, log: slog.Default()}
	for _, o := range opts {
		o(m)
	}
	return m
}

func (m *Manager) Create(ctx context.Context, title string) (Task, error) {
	if err := m.validateTitle(title); err != nil {
		return Task{}, err
	}
	t, err := m.repo.Create(ctx, title)
	if err != nil {
		return Task{}, err
	}
	m.changed(ctx, TopicCreated, t)
	return t, nil
}

func (m *Manager) List(ctx context.Context) ([]Task, error) {
	if ts, ok := m.list.Get(listKey); ok {
		return append([]Task(nil), ts...), nil
	}
	m.listMu.Lock()
	gen := m.listGen
	m.listMu.Unlock()

	ts, err := m.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	if ts == nil {
		ts = []Task{}
	}
	// a write that committed while we read may not be in ts
	m.listMu.Lock()
	if m.listGen == gen {
		m.list.Set(listKey, append([]Task(nil), ts...))
	}
	m.listMu.Unlock()
	return ts, nil
}

func (m *Manager) Get(ctx context.Context, id int64) (Task, error) {
	return m.repo.Get(ctx, id)
}

// MarkDone moves a task from not-done to done. A task that is already done
// yields ErrAlreadyDone and is left unchanged.
func (m *Manager) MarkDone(ctx context.Context, id int64) (Task, error) {
	ok, err := m.repo.SwapDone(ctx, id, true)
	if err != nil {
		return Task{}, err
	}
	t, err := m.repo.Get(ctx, id)
	if !ok {
		if err != nil {
			return Task{}, err
		}
		return Task{}, ErrAlreadyDone
	}
	if err != nil {
		// the swap is committed; report it even without the title
		m.log.Warn("reload task after done", "task_id", id, "err", err)
		t = Task{ID: id}
	}
	// t.Done may already be false again if a ClearDone ran in between.
	t.Done = true
	m.changed(ctx, TopicDone, t)
	return t, nil
}

// ClearDone moves a task from done to not-done. A task that is not done, or
// that does not exist, yields ErrNotFound.
func (m *Manager) ClearDone(ctx context.Context, id int64) error {
	ok, err := m.repo.SwapDone(ctx, id, false)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}
	t, err := m.repo.Get(ctx, id)
	if err != nil {
		t = Task{ID: id}
	}
	t.Done = false
	m.changed(ctx, TopicUndone, t)
	return nil
}

func (m *Manager) validateTitle(title string) error {
	if strings.TrimSpace(title) == "" {
		return fmt.Errorf("%w: title is required", ErrInvalidTitle)
	}
	if m.maxTitleLen > 0 && utf8.RuneCountInString(title) > m.maxTitleLen {
		return fmt.Errorf("%w: longer than %d characters", ErrInvalidTitle, m.maxTitleLen)
	}
	return nil
}

// changed drops the list snapshot and publishes the event. Publish failures
// are logged only; the write has already been committed.
func (m *Manager) changed(ctx context.Context, topic string, t Task) {
	m.listMu.Lock()
	m.listGen++
	m.list.Delete(listKey)
	m.listMu.Unlock()

	b, err := json.Marshal(Event{ID: uuid.NewString(), Type: topic, Task: t, At: time.Now().UTC()})
	if err != nil {
		m.log.Error("encode task event", "topic", topic, "err", err)
		return
	}
	if err := m.pub.Publish(ctx, topic, b); err != nil {
		m.log.Warn("publish task event", "topic", topic, "task_id", t.ID, "err", err)
	}
}
