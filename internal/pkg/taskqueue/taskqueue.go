package taskqueue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	redisc "github.com/casaflora/tienda-core/internal/pkg/redis"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// TaskStatus represents the lifecycle state of a task.
type TaskStatus string

const (
	TaskPending   TaskStatus = "pending"
	TaskRunning   TaskStatus = "running"
	TaskCompleted TaskStatus = "completed"
	TaskFailed    TaskStatus = "failed"
)

// Task is a unit of background work stored in Redis.
type Task struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	Status    TaskStatus      `json:"status"`
	Error     string          `json:"error,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

const (
	keyPrefix  = "tienda:task:"
	keyIndex   = "tienda:tasks:index" // sorted set: score=created_at, member=task_id
	keyPending = "tienda:tasks:pending"
	taskTTL    = 7 * 24 * time.Hour

	pollInterval = 500 * time.Millisecond
)

// Handler executes one task payload.
type Handler func(ctx context.Context, payload json.RawMessage) error

// Service manages the Redis-backed task queue and its polling worker.
type Service struct {
	rc     *redisc.Client
	logger *zap.Logger

	mu       sync.RWMutex
	handlers map[string]Handler
}

func NewService(rc *redisc.Client, logger *zap.Logger) *Service {
	return &Service{rc: rc, logger: logger, handlers: map[string]Handler{}}
}

func (s *Service) taskKey(id string) string { return keyPrefix + id }

// Register binds a handler to a task type. Enqueued tasks of unknown types
// are marked failed by the worker.
func (s *Service) Register(taskType string, h Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[taskType] = h
}

// Enqueue creates a new pending task and pushes it onto the work list.
func (s *Service) Enqueue(ctx context.Context, taskType string, payload interface{}) (*Task, error) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	task := &Task{
		ID:        uuid.New().String(),
		Type:      taskType,
		Payload:   payloadBytes,
		Status:    TaskPending,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}

	data, err := json.Marshal(task)
	if err != nil {
		return nil, err
	}

	pipe := s.rc.Raw().TxPipeline()
	pipe.Set(ctx, s.taskKey(task.ID), data, taskTTL)
	pipe.ZAdd(ctx, keyIndex, redis.Z{
		Score:  float64(task.CreatedAt.UnixMilli()),
		Member: task.ID,
	})
	pipe.LPush(ctx, keyPending, task.ID)
	_, err = pipe.Exec(ctx)
	return task, err
}

// GetByID retrieves a task by its ID. Missing tasks return (nil, nil).
func (s *Service) GetByID(ctx context.Context, id string) (*Task, error) {
	data, err := s.rc.Raw().Get(ctx, s.taskKey(id)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var task Task
	return &task, json.Unmarshal(data, &task)
}

// UpdateStatus sets a task's status and optional error message.
func (s *Service) UpdateStatus(ctx context.Context, id string, status TaskStatus, errMsg string) error {
	task, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if task == nil {
		return fmt.Errorf("task %s not found", id)
	}

	task.Status = status
	task.UpdatedAt = time.Now()
	task.Error = errMsg

	data, err := json.Marshal(task)
	if err != nil {
		return err
	}
	return s.rc.Raw().Set(ctx, s.taskKey(id), data, taskTTL).Err()
}

// List returns tasks ordered by creation time descending, filtered by an
// optional status.
func (s *Service) List(ctx context.Context, page, size int, status *TaskStatus) ([]*Task, int64, error) {
	ids, err := s.rc.Raw().ZRevRange(ctx, keyIndex, 0, -1).Result()
	if err != nil {
		return nil, 0, err
	}

	var tasks []*Task
	for _, id := range ids {
		task, err := s.GetByID(ctx, id)
		if err != nil || task == nil {
			continue
		}
		if status != nil && task.Status != *status {
			continue
		}
		tasks = append(tasks, task)
	}

	total := int64(len(tasks))
	start := (page - 1) * size
	end := start + size
	if start >= len(tasks) {
		return []*Task{}, total, nil
	}
	if end > len(tasks) {
		end = len(tasks)
	}
	return tasks[start:end], total, nil
}

// PurgeFinished removes completed and failed tasks created before the cutoff.
func (s *Service) PurgeFinished(ctx context.Context, beforeMS int64) error {
	ids, err := s.rc.Raw().ZRange(ctx, keyIndex, 0, -1).Result()
	if err != nil {
		return err
	}
	pipe := s.rc.Raw().TxPipeline()
	for _, id := range ids {
		task, err := s.GetByID(ctx, id)
		if err != nil || task == nil {
			continue
		}
		if task.Status != TaskCompleted && task.Status != TaskFailed {
			continue
		}
		if beforeMS > 0 && task.CreatedAt.UnixMilli() >= beforeMS {
			continue
		}
		pipe.Del(ctx, s.taskKey(id))
		pipe.ZRem(ctx, keyIndex, id)
	}
	_, err = pipe.Exec(ctx)
	return err
}

// Start runs the polling worker until the context is cancelled. Tasks are
// popped off the pending list and dispatched to their registered handler.
func (s *Service) Start(ctx context.Context) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.drain(ctx)
		}
	}
}

func (s *Service) drain(ctx context.Context) {
	for {
		id, err := s.rc.Raw().RPop(ctx, keyPending).Result()
		if err == redis.Nil {
			return
		}
		if err != nil {
			s.logger.Warn("task queue pop failed", zap.Error(err))
			return
		}
		s.runTask(ctx, id)
	}
}

func (s *Service) runTask(ctx context.Context, id string) {
	task, err := s.GetByID(ctx, id)
	if err != nil || task == nil {
		return
	}

	s.mu.RLock()
	handler, ok := s.handlers[task.Type]
	s.mu.RUnlock()
	if !ok {
		s.UpdateStatus(ctx, id, TaskFailed, fmt.Sprintf("no handler for task type %q", task.Type))
		return
	}

	s.UpdateStatus(ctx, id, TaskRunning, "")
	if err := handler(ctx, task.Payload); err != nil {
		s.logger.Warn("task failed",
			zap.String("id", id),
			zap.String("type", task.Type),
			zap.Error(err),
		)
		s.UpdateStatus(ctx, id, TaskFailed, err.Error())
		return
	}
	s.UpdateStatus(ctx, id, TaskCompleted, "")
}
