package review

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/mindgrove/triage/storage"
	"github.com/mindgrove/triage/task"
)

// Outcome names what happened to one item at commit.
type Outcome string

const (
	OutcomeCreated Outcome = "created"
	OutcomeMerged  Outcome = "merged"
	OutcomeSkipped Outcome = "skipped"
	OutcomeFailed  Outcome = "failed"
)

// CommitResult reports the fate of one review item.
type CommitResult struct {
	Outcome Outcome
	TaskID  string
	Err     error
}

// PartialFailureError reports that some items of a session failed to commit
// while others went through. The per-item results carry the detail.
type PartialFailureError struct {
	Failed int
	Total  int
}

func (e *PartialFailureError) Error() string {
	return fmt.Sprintf("commit: %d of %d items failed", e.Failed, e.Total)
}

// Committer writes resolved review sessions to task storage.
type Committer struct {
	store  storage.Store
	logger *slog.Logger
	now    func() time.Time
}

// CommitterOption configures a Committer.
type CommitterOption func(*Committer)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) CommitterOption {
	return func(c *Committer) {
		c.logger = logger
	}
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) CommitterOption {
	return func(c *Committer) {
		c.now = now
	}
}

// NewCommitter creates a committer over the given store.
func NewCommitter(store storage.Store, opts ...CommitterOption) *Committer {
	c := &Committer{
		store:  store,
		logger: slog.Default(),
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Commit applies every item's decision, one result per item in item order.
// Pending items get the default resolution: merge into the best candidate
// when one exists, create otherwise. Accepting suggestions must cost the
// user nothing.
//
// Items commit independently. A failed item never aborts its siblings; when
// any fail, Commit returns all results plus a PartialFailureError.
func (c *Committer) Commit(ctx context.Context, session *Session) ([]CommitResult, error) {
	results := make([]CommitResult, len(session.Items))

	failed := 0
	for i := range session.Items {
		results[i] = c.commitItem(ctx, session, &session.Items[i])
		if results[i].Outcome == OutcomeFailed {
			failed++
		}
	}

	c.logger.Info("Committed review session",
		"session_id", session.ID,
		"user_id", session.UserID,
		"items", len(session.Items),
		"failed", failed)

	if failed > 0 {
		return results, &PartialFailureError{Failed: failed, Total: len(session.Items)}
	}
	return results, nil
}

func (c *Committer) commitItem(ctx context.Context, session *Session, item *Item) CommitResult {
	decision := item.Decision
	if decision.Kind() == DecisionPending {
		if best, ok := item.BestCandidate(); ok {
			decision = Decision{kind: DecisionMerge, targetID: best.Task.ID}
		} else {
			decision = Create()
		}
	}

	switch decision.Kind() {
	case DecisionSkip:
		return CommitResult{Outcome: OutcomeSkipped}

	case DecisionMerge:
		merged, err := c.merge(ctx, session, item, decision.MergeTargetID())
		if err != nil {
			c.logger.Warn("Merge failed",
				"session_id", session.ID,
				"target_id", decision.MergeTargetID(),
				"error", err)
			return CommitResult{Outcome: OutcomeFailed, TaskID: decision.MergeTargetID(), Err: err}
		}
		return CommitResult{Outcome: OutcomeMerged, TaskID: merged.ID}

	default:
		created, err := c.create(ctx, session, item)
		if err != nil {
			c.logger.Warn("Create failed",
				"session_id", session.ID,
				"title", item.Draft.Title,
				"error", err)
			return CommitResult{Outcome: OutcomeFailed, Err: err}
		}
		return CommitResult{Outcome: OutcomeCreated, TaskID: created.ID}
	}
}

func (c *Committer) create(ctx context.Context, session *Session, item *Item) (task.Task, error) {
	now := c.now()
	d := item.Draft

	t := task.Task{
		UserID:           session.UserID,
		Title:            d.Title,
		Notes:            d.Notes,
		Status:           task.StatusTodo,
		Urgent:           d.Urgent,
		Important:        d.Important,
		Area:             d.Area,
		EstimatedMinutes: d.EstimatedMinutes,
		DueDate:          d.DueDate,
		MeetingRef:       session.MeetingRef,
	}
	t.AppendNote(now, d.Context(), task.NoteSourceAIExtract)

	return c.store.CreateTask(ctx, t)
}

func (c *Committer) merge(ctx context.Context, session *Session, item *Item, targetID string) (task.Task, error) {
	existing, err := c.store.GetTask(ctx, session.UserID, targetID)
	if err != nil {
		return task.Task{}, fmt.Errorf("load merge target: %w", err)
	}

	merged := MergeDraft(existing, item.Draft, c.now())
	if session.MeetingRef != "" {
		merged.MeetingRef = session.MeetingRef
	}

	return c.store.UpdateTask(ctx, merged)
}

// MergeDraft folds a draft into an existing task. Flags only ever turn on: a
// merge never downgrades urgency or importance the user may have set by
// hand. The draft's due date wins when present; the draft's context is
// appended to the notes as a dated block.
func MergeDraft(existing task.Task, d task.Draft, now time.Time) task.Task {
	merged := existing

	merged.Urgent = existing.Urgent || d.Urgent
	merged.Important = existing.Important || d.Important
	if d.DueDate != nil {
		merged.DueDate = d.DueDate
	}
	if d.EstimatedMinutes > merged.EstimatedMinutes {
		merged.EstimatedMinutes = d.EstimatedMinutes
	}

	merged.Notes = appendNoteBlock(existing.Notes, d, now)
	merged.AppendNote(now, d.Context(), task.NoteSourceAIMerge)
	merged.UpdatedAt = now

	return merged
}

// appendNoteBlock renders the draft's context as a dated block under the
// existing notes.
func appendNoteBlock(notes string, d task.Draft, now time.Time) string {
	due := "Not specified"
	if d.DueDate != nil {
		due = d.DueDate.Format("2006-01-02")
	}

	block := fmt.Sprintf("---\nAdded %s:\n%s\nDue: %s",
		now.Format("2006-01-02"), d.Context(), due)

	if strings.TrimSpace(notes) == "" {
		return block
	}
	return notes + "\n\n" + block
}
