package task_test

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"task-api/internal/store/memory"
	"task-api/internal/task"
	"task-api/pkg/mq"
)

func newManager(t *testing.T, opts ...task.Option) (*task.Manager, *memory.Store) {
	t.Helper()
	st := memory.New()
	return task.NewManager(st, opts...), st
}

func TestCreateAndList(t *testing.T) {
	m, _ := newManager(t)
	ctx := context.Background()

	created, err := m.Create(ctx, "테스트 작업")
	require.NoError(t, err)
	assert.Equal(t, "테스트 작업", created.Title)
	assert.False(t, created.Done)

	all, err := m.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, task.Task{ID: 1, Title: "테스트 작업", Done: false}, all[0])
}

func TestListEmptyIsNotNil(t *testing.T) {
	m, _ := newManager(t)
	all, err := m.List(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, all)
	assert.Empty(t, all)
}

func TestListKeepsCreationOrder(t *testing.T) {
	m, _ := newManager(t)
	ctx := context.Background()
	titles := []string{"a", "b", "c", "d"}
	for _, title := range titles {
		_, err := m.Create(ctx, title)
		require.NoError(t, err)
	}
	all, err := m.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, len(titles))
	for i, got := range all {
		assert.Equal(t, int64(i+1), got.ID)
		assert.Equal(t, titles[i], got.Title)
	}
}

func TestCreateRejectsBadTitles(t *testing.T) {
	m, _ := newManager(t, task.WithMaxTitleLen(5))
	ctx := context.Background()

	for _, title := range []string{"", "   ", "\t\n", "abcdef"} {
		_, err := m.Create(ctx, title)
		assert.ErrorIs(t, err, task.ErrInvalidTitle, "title=%q", title)
	}
	// length counts runes, not bytes
	_, err := m.Create(ctx, "작업작업작")
	assert.NoError(t, err)
}

func TestDoneToggle(t *testing.T) {
	m, _ := newManager(t)
	ctx := context.Background()
	_, err := m.Create(ctx, "테스트 작업2")
	require.NoError(t, err)

	got, err := m.MarkDone(ctx, 1)
	require.NoError(t, err)
	assert.True(t, got.Done)

	_, err = m.MarkDone(ctx, 1)
	assert.ErrorIs(t, err, task.ErrAlreadyDone)

	require.NoError(t, m.ClearDone(ctx, 1))
	assert.ErrorIs(t, m.ClearDone(ctx, 1), task.ErrNotFound)

	cur, err := m.Get(ctx, 1)
	require.NoError(t, err)
	assert.False(t, cur.Done)
}

func TestToggleRoundTripsAreRepeatable(t *testing.T) {
	m, _ := newManager(t)
	ctx := context.Background()
	_, _ = m.Create(ctx, "x")
	for i := 0; i < 5; i++ {
		_, err := m.MarkDone(ctx, 1)
		require.NoError(t, err)
		require.NoError(t, m.ClearDone(ctx, 1))
	}
	cur, _ := m.Get(ctx, 1)
	assert.Equal(t, task.Task{ID: 1, Title: "x"}, cur)
}

func TestToggleMissingTask(t *testing.T) {
	m, _ := newManager(t)
	ctx := context.Background()
	_, err := m.MarkDone(ctx, 7)
	assert.ErrorIs(t, err, task.ErrNotFound)
	assert.ErrorIs(t, m.ClearDone(ctx, 7), task.ErrNotFound)
}

func TestConcurrentMarkDoneHasOneWinner(t *testing.T) {
	m, _ := newManager(t)
	ctx := context.Background()
	_, _ = m.Create(ctx, "x")

	const n = 16
	errs := make(chan error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := m.MarkDone(ctx, 1)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	var ok, conflict int
	for err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, task.ErrAlreadyDone):
			conflict++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, n-1, conflict)
}

func TestEventsArePublished(t *testing.T) {
	bus := mq.NewBus()
	var got []task.Event
	for _, topic := range []string{task.TopicCreated, task.TopicDone, task.TopicUndone} {
		require.NoError(t, bus.Subscribe(topic, func(b []byte) error {
			var ev task.Event
			if err := json.Unmarshal(b, &ev); err != nil {
				return err
			}
			got = append(got, ev)
			return nil
		}))
	}
	m, _ := newManager(t, task.WithPublisher(bus))
	ctx := context.Background()

	_, _ = m.Create(ctx, "x")
	_, _ = m.MarkDone(ctx, 1)
	_, _ = m.MarkDone(ctx, 1) // rejected, no event
	_ = m.ClearDone(ctx, 1)

	require.Len(t, got, 3)
	assert.Equal(t, task.TopicCreated, got[0].Type)
	assert.Equal(t, task.TopicDone, got[1].Type)
	assert.True(t, got[1].Task.Done)
	assert.Equal(t, task.TopicUndone, got[2].Type)
	assert.Equal(t, "x", got[2].Task.Title)
	assert.False(t, got[2].Task.Done)
	for _, ev := range got {
		assert.NotEmpty(t, ev.ID)
		assert.Equal(t, int64(1), ev.Task.ID)
	}
}

type failingPublisher struct{}

func (failingPublisher) Publish(context.Context, string, []byte) error {
	return errors.New("broker down")
}

func TestPublishFailureDoesNotFailWrite(t *testing.T) {
	m, _ := newManager(t, task.WithPublisher(failingPublisher{}))
	got, err := m.Create(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.ID)
}

// countingRepo counts List calls to observe the cache.
type countingRepo struct {
	*memory.Store
	lists int
}

func (r *countingRepo) List(ctx context.Context) ([]task.Task, error) {
	r.lists++
	return r.Store.List(ctx)
}

func TestListCache(t *testing.T) {
	repo := &countingRepo{Store: memory.New()}
	m := task.NewManager(repo, task.WithListCache(time.Minute))
	ctx := context.Background()

	_, _ = m.Create(ctx, "a")
	first, _ := m.List(ctx)
	_, _ = m.List(ctx)
	assert.Equal(t, 1, repo.lists, "second List should be served from cache")

	first[0].Title = strings.ToUpper(first[0].Title)
	again, _ := m.List(ctx)
	assert.Equal(t, "a", again[0].Title, "callers must not mutate the cached snapshot")

	_, _ = m.MarkDone(ctx, 1)
	after, _ := m.List(ctx)
	assert.Equal(t, 2, repo.lists, "writes invalidate the cache")
	assert.True(t, after[0].Done)
}

// pausingRepo holds the first List after it has read rows until resume is
// closed, so a write can commit in between.
type pausingRepo struct {
	*memory.Store
	once   sync.Once
	read   chan struct{}
	resume chan struct{}
}

func (r *pausingRepo) List(ctx context.Context) ([]task.Task, error) {
	ts, err := r.Store.List(ctx)
	r.once.Do(func() {
		close(r.read)
		<-r.resume
	})
	return ts, err
}

func TestListCacheDropsSnapshotReadBeforeWrite(t *testing.T) {
	repo := &pausingRepo{Store: memory.New(), read: make(chan struct{}), resume: make(chan struct{})}
	m := task.NewManager(repo, task.WithListCache(time.Minute))
	ctx := context.Background()
	_, err := m.Create(ctx, "a")
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = m.List(ctx)
	}()
	<-repo.read
	_, err = m.MarkDone(ctx, 1)
	require.NoError(t, err)
	close(repo.resume)
	<-done

	after, err := m.List(ctx)
	require.NoError(t, err)
	require.Len(t, after, 1)
	assert.True(t, after[0].Done, "List after MarkDone returned a snapshot taken before it")
}

// reloadFailRepo fails Get while failGet is set.
type reloadFailRepo struct {
	*memory.Store
	failGet bool
}

func (r *reloadFailRepo) Get(ctx context.Context, id int64) (task.Task, error) {
	if r.failGet {
		return task.Task{}, errors.New("read timeout")
	}
	return r.Store.Get(ctx, id)
}

func TestMarkDoneSucceedsWhenReloadFails(t *testing.T) {
	bus := mq.NewBus()
	var events int
	require.NoError(t, bus.Subscribe(task.TopicDone, func([]byte) error { events++; return nil }))

	repo := &reloadFailRepo{Store: memory.New()}
	m := task.NewManager(repo, task.WithPublisher(bus))
	ctx := context.Background()
	_, err := m.Create(ctx, "a")
	require.NoError(t, err)

	repo.failGet = true
	got, err := m.MarkDone(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, task.Task{ID: 1, Done: true}, got)
	assert.Equal(t, 1, events)

	repo.failGet = false
	cur, err := m.Get(ctx, 1)
	require.NoError(t, err)
	assert.True(t, cur.Done)
}
