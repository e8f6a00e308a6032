package taskqueue

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"
	redisc "github.com/casaflora/tienda-core/internal/pkg/redis"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return NewService(redisc.NewFromRaw(rdb), zap.NewNop())
}

func TestEnqueue_CreatesPendingTask(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	task, err := s.Enqueue(ctx, "welcome_email", map[string]string{"email": "a@b.com"})
	require.NoError(t, err)
	require.NotEmpty(t, task.ID)
	assert.Equal(t, TaskPending, task.Status)

	got, err := s.GetByID(ctx, task.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "welcome_email", got.Type)
	assert.Equal(t, TaskPending, got.Status)
}

func TestGetByID_MissingReturnsNil(t *testing.T) {
	s := newTestService(t)
	got, err := s.GetByID(context.Background(), "does-not-exist")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestDrain_RunsHandlerAndCompletes(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	var seen []string
	s.Register("welcome_email", func(_ context.Context, payload json.RawMessage) error {
		var p struct {
			Email string `json:"email"`
		}
		if err := json.Unmarshal(payload, &p); err != nil {
			return err
		}
		seen = append(seen, p.Email)
		return nil
	})

	t1, err := s.Enqueue(ctx, "welcome_email", map[string]string{"email": "uno@example.com"})
	require.NoError(t, err)
	t2, err := s.Enqueue(ctx, "welcome_email", map[string]string{"email": "dos@example.com"})
	require.NoError(t, err)

	s.drain(ctx)

	assert.Equal(t, []string{"uno@example.com", "dos@example.com"}, seen)
	for _, id := range []string{t1.ID, t2.ID} {
		got, err := s.GetByID(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, TaskCompleted, got.Status)
	}
}

func TestDrain_HandlerErrorMarksFailed(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	s.Register("welcome_email", func(context.Context, json.RawMessage) error {
		return errors.New("smtp down")
	})

	task, err := s.Enqueue(ctx, "welcome_email", nil)
	require.NoError(t, err)

	s.drain(ctx)

	got, err := s.GetByID(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, TaskFailed, got.Status)
	assert.Equal(t, "smtp down", got.Error)
}

func TestDrain_UnknownTypeMarksFailed(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	task, err := s.Enqueue(ctx, "mystery", nil)
	require.NoError(t, err)

	s.drain(ctx)

	got, err := s.GetByID(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, TaskFailed, got.Status)
	assert.Contains(t, got.Error, "mystery")
}

func TestList_FiltersByStatus(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	s.Register("ok", func(context.Context, json.RawMessage) error { return nil })
	s.Register("bad", func(context.Context, json.RawMessage) error { return errors.New("x") })

	_, err := s.Enqueue(ctx, "ok", nil)
	require.NoError(t, err)
	_, err = s.Enqueue(ctx, "bad", nil)
	require.NoError(t, err)

	s.drain(ctx)

	failed := TaskFailed
	tasks, total, err := s.List(ctx, 1, 10, &failed)
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, tasks, 1)
	assert.Equal(t, "bad", tasks[0].Type)
}

func TestPurgeFinished(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	s.Register("ok", func(context.Context, json.RawMessage) error { return nil })

	done, err := s.Enqueue(ctx, "ok", nil)
	require.NoError(t, err)
	s.drain(ctx)

	pending, err := s.Enqueue(ctx, "ok", nil)
	require.NoError(t, err)

	require.NoError(t, s.PurgeFinished(ctx, 0))

	got, err := s.GetByID(ctx, done.ID)
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = s.GetByID(ctx, pending.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, TaskPending, got.Status)
}
