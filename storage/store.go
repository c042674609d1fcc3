// Package storage defines the task store contract the engine writes through.
// The engine itself never deletes tasks; deletion is a user action handled
// outside this core.
package storage

import (
	"context"
	"errors"

	"github.com/mindgrove/triage/task"
)

// ErrNotFound is returned when a task does not exist.
var ErrNotFound = errors.New("task not found")

// Store persists tasks per user. Implementations must assign ID and
// creation/update timestamps on create when the caller leaves them zero.
type Store interface {
	// CreateTask inserts a new task and returns it with ID and
	// timestamps populated.
	CreateTask(ctx context.Context, t task.Task) (task.Task, error)

	// GetTask returns one task by owner and ID, or ErrNotFound.
	GetTask(ctx context.Context, userID, id string) (task.Task, error)

	// UpdateTask replaces the stored task identified by t.ID, or returns
	// ErrNotFound. Callers read-modify-write; there is no partial patch.
	UpdateTask(ctx context.Context, t task.Task) (task.Task, error)

	// ListTasks returns all of a user's tasks, newest created first.
	ListTasks(ctx context.Context, userID string) ([]task.Task, error)

	// ListOpenTasks returns the user's tasks with status ≠ done, newest
	// created first. This is the set the matcher scans for duplicates.
	ListOpenTasks(ctx context.Context, userID string) ([]task.Task, error)
}
