package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mindgrove/triage/llm"
	"github.com/mindgrove/triage/llm/testutil"
	"github.com/mindgrove/triage/priority"
	"github.com/mindgrove/triage/review"
	"github.com/mindgrove/triage/storage/memory"
	"github.com/mindgrove/triage/task"
)

var engineNow = time.Date(2026, 8, 26, 9, 0, 0, 0, time.UTC)

func newEngine(mock *testutil.MockClient) (*Engine, *memory.Store) {
	store := memory.NewStore()
	e := New(store, mock, WithClock(func() time.Time { return engineNow }))
	return e, store
}

func TestIntake_NoteToSession(t *testing.T) {
	mock := &testutil.MockClient{
		Responses: []*llm.Response{{
			Content: `[{"title":"Email parents about excursion","urgent":true,"important":true,"area":"work"}]`,
			Model:   "test-model",
		}},
	}
	e, _ := newEngine(mock)

	session, err := e.Intake(context.Background(), "u1", "Email parents by Friday about excursion")
	require.NoError(t, err)
	require.Len(t, session.Items, 1)

	// No open tasks yet, so no matching call happens and the item
	// defaults to create.
	assert.Equal(t, review.DecisionCreate, session.Items[0].Decision.Kind())
	assert.Equal(t, 1, mock.CallCount())
}

func TestIntake_MatchesAgainstOpenTasks(t *testing.T) {
	mock := &testutil.MockClient{
		Responses: []*llm.Response{
			{Content: `[{"title":"Record ADE walkthrough","area":"work"}]`, Model: "test-model"},
			{Content: `[{"task_index":0,"similarity":85,"reasoning":"same video"}]`, Model: "test-model"},
		},
	}
	e, store := newEngine(mock)
	ctx := context.Background()

	existing, err := store.CreateTask(ctx, task.Task{
		UserID: "u1", Title: "Finish demo video", Status: task.StatusTodo,
	})
	require.NoError(t, err)

	session, err := e.Intake(ctx, "u1", "Record the storyboard walkthrough for ADE")
	require.NoError(t, err)
	require.Len(t, session.Items, 1)
	require.Len(t, session.Items[0].Candidates, 1)
	assert.Equal(t, existing.ID, session.Items[0].Candidates[0].Task.ID)
	assert.Equal(t, review.DecisionPending, session.Items[0].Decision.Kind())
}

func TestIntakeThenCommit_EndToEnd(t *testing.T) {
	mock := &testutil.MockClient{
		Responses: []*llm.Response{{
			Content: `[{"title":"Book dentist","area":"health","urgent":false}]`,
			Model:   "test-model",
		}},
	}
	e, store := newEngine(mock)
	ctx := context.Background()

	session, err := e.Intake(ctx, "u1", "Need to book the dentist sometime")
	require.NoError(t, err)

	results, err := e.Commit(ctx, session)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, review.OutcomeCreated, results[0].Outcome)

	open, err := store.ListOpenTasks(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, "Book dentist", open[0].Title)
	assert.Equal(t, task.AreaHealth, open[0].Area)
}

func TestIntake_MeetingRefFlowsThrough(t *testing.T) {
	mock := &testutil.MockClient{
		Responses: []*llm.Response{{
			Content: `[{"title":"Send Sam the deck","area":"work"}]`,
			Model:   "test-model",
		}},
	}
	e, store := newEngine(mock)
	ctx := context.Background()

	session, err := e.Intake(ctx, "u1", "Send Sam the deck after standup",
		WithMeetingRef("standup-2026-08-26"))
	require.NoError(t, err)
	assert.Equal(t, "standup-2026-08-26", session.MeetingRef)

	results, err := e.Commit(ctx, session)
	require.NoError(t, err)

	created, err := store.GetTask(ctx, "u1", results[0].TaskID)
	require.NoError(t, err)
	assert.Equal(t, "standup-2026-08-26", created.MeetingRef)
}

func TestNextTask_EmptyStore(t *testing.T) {
	e, _ := newEngine(&testutil.MockClient{})

	next, err := e.NextTask(context.Background(), "u1")
	require.NoError(t, err)
	assert.Nil(t, next)
}

func TestNextTask_PicksHighestPriority(t *testing.T) {
	e, store := newEngine(&testutil.MockClient{})
	ctx := context.Background()

	_, err := store.CreateTask(ctx, task.Task{UserID: "u1", Title: "low", Status: task.StatusTodo})
	require.NoError(t, err)
	urgent, err := store.CreateTask(ctx, task.Task{
		UserID: "u1", Title: "urgent", Status: task.StatusTodo, Urgent: true, Important: true,
	})
	require.NoError(t, err)

	next, err := e.NextTask(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, next)
	assert.Equal(t, urgent.ID, next.ID)
}

func TestWIPPressure(t *testing.T) {
	e, store := newEngine(&testutil.MockClient{})
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		_, err := store.CreateTask(ctx, task.Task{
			UserID: "u1", Title: "busy", Status: task.StatusInProgress,
		})
		require.NoError(t, err)
	}

	p, err := e.WIPPressure(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 4, p.Count)
	assert.True(t, p.Exceeded)
}

func TestMatrix(t *testing.T) {
	e, store := newEngine(&testutil.MockClient{})
	ctx := context.Background()

	_, err := store.CreateTask(ctx, task.Task{
		UserID: "u1", Title: "fire", Status: task.StatusTodo, Urgent: true, Important: true,
	})
	require.NoError(t, err)
	_, err = store.CreateTask(ctx, task.Task{
		UserID: "u1", Title: "someday", Status: task.StatusTodo,
	})
	require.NoError(t, err)

	m, err := e.Matrix(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, m[priority.QuadrantDoFirst], 1)
	assert.Len(t, m[priority.QuadrantEliminate], 1)
}

func TestAdvanceStatus_FullCycle(t *testing.T) {
	e, store := newEngine(&testutil.MockClient{})
	ctx := context.Background()

	created, err := store.CreateTask(ctx, task.Task{
		UserID: "u1", Title: "cycle me", Status: task.StatusTodo,
	})
	require.NoError(t, err)

	t1, err := e.AdvanceStatus(ctx, "u1", created.ID)
	require.NoError(t, err)
	assert.Equal(t, task.StatusInProgress, t1.Status)
	assert.Nil(t, t1.CompletedAt)

	t2, err := e.AdvanceStatus(ctx, "u1", created.ID)
	require.NoError(t, err)
	assert.Equal(t, task.StatusDone, t2.Status)
	require.NotNil(t, t2.CompletedAt)
	assert.True(t, t2.CompletedAt.Equal(engineNow))

	t3, err := e.AdvanceStatus(ctx, "u1", created.ID)
	require.NoError(t, err)
	assert.Equal(t, task.StatusTodo, t3.Status)
	assert.Nil(t, t3.CompletedAt)
}
