package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mindgrove/triage/storage"
	"github.com/mindgrove/triage/task"
)

func TestStore_CreateAssignsIDAndTimestamps(t *testing.T) {
	fixed := time.Date(2026, 8, 28, 9, 0, 0, 0, time.UTC)
	s := NewStore(WithClock(func() time.Time { return fixed }))

	created, err := s.CreateTask(context.Background(), task.Task{
		UserID: "u1",
		Title:  "Email parents",
		Status: task.StatusTodo,
	})
	require.NoError(t, err)

	assert.NotEmpty(t, created.ID)
	assert.Equal(t, fixed, created.CreatedAt)
	assert.Equal(t, fixed, created.UpdatedAt)

	got, err := s.GetTask(context.Background(), "u1", created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Email parents", got.Title)
}

func TestStore_GetNotFound(t *testing.T) {
	s := NewStore()

	_, err := s.GetTask(context.Background(), "u1", "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestStore_UpdateNotFound(t *testing.T) {
	s := NewStore()

	_, err := s.UpdateTask(context.Background(), task.Task{UserID: "u1", ID: "missing"})
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestStore_UpdateReplaces(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	created, err := s.CreateTask(ctx, task.Task{UserID: "u1", Title: "Draft report", Status: task.StatusTodo})
	require.NoError(t, err)

	created.Status = task.StatusInProgress
	created.Urgent = true
	_, err = s.UpdateTask(ctx, created)
	require.NoError(t, err)

	got, err := s.GetTask(ctx, "u1", created.ID)
	require.NoError(t, err)
	assert.Equal(t, task.StatusInProgress, got.Status)
	assert.True(t, got.Urgent)
}

func TestStore_ListOpenTasksExcludesDoneAndOtherUsers(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	_, err := s.CreateTask(ctx, task.Task{UserID: "u1", Title: "open", Status: task.StatusTodo})
	require.NoError(t, err)
	_, err = s.CreateTask(ctx, task.Task{UserID: "u1", Title: "running", Status: task.StatusInProgress})
	require.NoError(t, err)
	_, err = s.CreateTask(ctx, task.Task{UserID: "u1", Title: "finished", Status: task.StatusDone})
	require.NoError(t, err)
	_, err = s.CreateTask(ctx, task.Task{UserID: "u2", Title: "someone else", Status: task.StatusTodo})
	require.NoError(t, err)

	open, err := s.ListOpenTasks(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, open, 2)
	for _, tk := range open {
		assert.NotEqual(t, task.StatusDone, tk.Status)
		assert.Equal(t, "u1", tk.UserID)
	}
}

func TestStore_ListTasksNewestFirst(t *testing.T) {
	current := time.Date(2026, 8, 28, 9, 0, 0, 0, time.UTC)
	s := NewStore(WithClock(func() time.Time {
		current = current.Add(time.Minute)
		return current
	}))
	ctx := context.Background()

	_, err := s.CreateTask(ctx, task.Task{UserID: "u1", Title: "older", Status: task.StatusTodo})
	require.NoError(t, err)
	_, err = s.CreateTask(ctx, task.Task{UserID: "u1", Title: "newer", Status: task.StatusTodo})
	require.NoError(t, err)

	all, err := s.ListTasks(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "newer", all[0].Title)
	assert.Equal(t, "older", all[1].Title)
}

func TestStore_ReturnedHistoryIsACopy(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	created, err := s.CreateTask(ctx, task.Task{
		UserID: "u1",
		Title:  "with history",
		Status: task.StatusTodo,
		NoteHistory: []task.NoteEntry{
			{Content: "original", Source: task.NoteSourceManual},
		},
	})
	require.NoError(t, err)

	got, err := s.GetTask(ctx, "u1", created.ID)
	require.NoError(t, err)
	got.NoteHistory[0].Content = "mutated"

	again, err := s.GetTask(ctx, "u1", created.ID)
	require.NoError(t, err)
	assert.Equal(t, "original", again.NoteHistory[0].Content)
}
