// Package natskv implements the task store on a NATS JetStream key-value
// bucket. Keys are {user_id}.{task_id} so one user's tasks can be listed by
// prefix.
package natskv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/mindgrove/triage/storage"
	"github.com/mindgrove/triage/task"
)

// DefaultBucket is the KV bucket name for task records.
const DefaultBucket = "TRIAGE_TASKS"

// Store persists tasks in a JetStream KV bucket.
type Store struct {
	bucket jetstream.KeyValue
	logger *slog.Logger
	now    func() time.Time
}

// Option configures a Store.
type Option func(*storeConfig)

type storeConfig struct {
	bucket string
	logger *slog.Logger
	now    func() time.Time
}

// WithBucket overrides the KV bucket name.
func WithBucket(name string) Option {
	return func(c *storeConfig) {
		c.bucket = name
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *storeConfig) {
		c.logger = logger
	}
}

// WithClock overrides the timestamp source (tests).
func WithClock(now func() time.Time) Option {
	return func(c *storeConfig) {
		c.now = now
	}
}

// NewStore creates the task bucket if needed and returns a store over it.
// The context bounds the initial bucket creation only.
func NewStore(ctx context.Context, js jetstream.JetStream, opts ...Option) (*Store, error) {
	if js == nil {
		return nil, fmt.Errorf("jetstream context required")
	}

	cfg := &storeConfig{
		bucket: DefaultBucket,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	// CreateOrUpdateKeyValue is idempotent and handles race conditions
	bucket, err := js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:      cfg.bucket,
		Description: "Task records for the triage engine",
	})
	if err != nil {
		return nil, fmt.Errorf("create/update kv bucket: %w", err)
	}

	return &Store{
		bucket: bucket,
		logger: cfg.logger,
		now:    cfg.now,
	}, nil
}

// CreateTask inserts a new task, assigning ID and timestamps when unset.
func (s *Store) CreateTask(ctx context.Context, t task.Task) (task.Task, error) {
	if t.UserID == "" {
		return task.Task{}, fmt.Errorf("user_id is required")
	}

	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	now := s.now()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	t.UpdatedAt = now

	if err := s.put(ctx, t); err != nil {
		return task.Task{}, err
	}
	return t, nil
}

// GetTask returns one task, or storage.ErrNotFound.
func (s *Store) GetTask(ctx context.Context, userID, id string) (task.Task, error) {
	entry, err := s.bucket.Get(ctx, taskKey(userID, id))
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return task.Task{}, storage.ErrNotFound
		}
		return task.Task{}, fmt.Errorf("get task: %w", err)
	}

	var t task.Task
	if err := json.Unmarshal(entry.Value(), &t); err != nil {
		return task.Task{}, fmt.Errorf("unmarshal task %s: %w", id, err)
	}
	return t, nil
}

// UpdateTask replaces a stored task, or returns storage.ErrNotFound.
func (s *Store) UpdateTask(ctx context.Context, t task.Task) (task.Task, error) {
	if _, err := s.GetTask(ctx, t.UserID, t.ID); err != nil {
		return task.Task{}, err
	}

	if t.UpdatedAt.IsZero() {
		t.UpdatedAt = s.now()
	}
	if err := s.put(ctx, t); err != nil {
		return task.Task{}, err
	}
	return t, nil
}

// ListTasks returns all of a user's tasks, newest created first.
func (s *Store) ListTasks(ctx context.Context, userID string) ([]task.Task, error) {
	lister, err := s.bucket.ListKeys(ctx)
	if err != nil {
		if errors.Is(err, jetstream.ErrNoKeysFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("list keys: %w", err)
	}

	prefix := userID + "."
	var tasks []task.Task
	for key := range lister.Keys() {
		if !strings.HasPrefix(key, prefix) {
			continue
		}

		entry, err := s.bucket.Get(ctx, key)
		if err != nil {
			// Deleted between list and get; skip it
			if errors.Is(err, jetstream.ErrKeyNotFound) {
				continue
			}
			return nil, fmt.Errorf("get task %s: %w", key, err)
		}

		var t task.Task
		if err := json.Unmarshal(entry.Value(), &t); err != nil {
			s.logger.Warn("Skipping unreadable task record",
				"key", key,
				"error", err)
			continue
		}
		tasks = append(tasks, t)
	}

	sort.SliceStable(tasks, func(i, j int) bool {
		return tasks[i].CreatedAt.After(tasks[j].CreatedAt)
	})

	return tasks, nil
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

func (s *Store) put(ctx context.Context, t task.Task) error {
	data, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("marshal task: %w", err)
	}
	if _, err := s.bucket.Put(ctx, taskKey(t.UserID, t.ID), data); err != nil {
		return fmt.Errorf("store task: %w", err)
	}
	return nil
}

func taskKey(userID, id string) string {
	return userID + "." + id
}
