// Package memory provides an in-process task store. It backs unit tests and
// one-shot CLI runs; durable deployments use the NATS KV store.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mindgrove/triage/storage"
	"github.com/mindgrove/triage/task"
)

// Store is a mutex-guarded in-memory task store keyed by user then task ID.
type Store struct {
	mu    sync.RWMutex
	tasks map[string]map[string]task.Task
	now   func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the timestamp source. Tests use this to get
// deterministic created/updated times.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// NewStore creates an empty in-memory store.
func NewStore(opts ...Option) *Store {
	s := &Store{
		tasks: make(map[string]map[string]task.Task),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateTask inserts a new task, assigning ID and timestamps when unset.
func (s *Store) CreateTask(_ context.Context, t task.Task) (task.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	now := s.now()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	t.UpdatedAt = now

	userTasks, ok := s.tasks[t.UserID]
	if !ok {
		userTasks = make(map[string]task.Task)
		s.tasks[t.UserID] = userTasks
	}
	userTasks[t.ID] = cloneTask(t)

	return t, nil
}

// GetTask returns one task, or storage.ErrNotFound.
func (s *Store) GetTask(_ context.Context, userID, id string) (task.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tasks[userID][id]
	if !ok {
		return task.Task{}, storage.ErrNotFound
	}
	return cloneTask(t), nil
}

// UpdateTask replaces a stored task, or returns storage.ErrNotFound.
func (s *Store) UpdateTask(_ context.Context, t task.Task) (task.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	userTasks := s.tasks[t.UserID]
	if _, ok := userTasks[t.ID]; !ok {
		return task.Task{}, storage.ErrNotFound
	}

	if t.UpdatedAt.IsZero() {
		t.UpdatedAt = s.now()
	}
	userTasks[t.ID] = cloneTask(t)

	return t, nil
}

// ListTasks returns all of a user's tasks, newest created first.
func (s *Store) ListTasks(_ context.Context, userID string) ([]task.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]task.Task, 0, len(s.tasks[userID]))
	for _, t := range s.tasks[userID] {
		out = append(out, cloneTask(t))
	}
	sortNewestFirst(out)

	return out, nil
}

// ListOpenTasks returns the user's tasks with status ≠ done.
func (s *Store) ListOpenTasks(ctx context.Context, userID string) ([]task.Task, error) {
	all, err := s.ListTasks(ctx, userID)
	if err != nil {
		return nil, err
	}

	open := all[:0]
	for _, t := range all {
		if t.Open() {
			open = append(open, t)
		}
	}
	return open, nil
}

// cloneTask copies a task including its note history so callers can't
// mutate stored state through the returned slice.
func cloneTask(t task.Task) task.Task {
	if len(t.NoteHistory) > 0 {
		history := make([]task.NoteEntry, len(t.NoteHistory))
		copy(history, t.NoteHistory)
		t.NoteHistory = history
	}
	return t
}

func sortNewestFirst(tasks []task.Task) {
	sort.SliceStable(tasks, func(i, j int) bool {
		return tasks[i].CreatedAt.After(tasks[j].CreatedAt)
	})
}
