// Package engine is the façade over intake, matching, review, and priority.
// Callers (the HTTP API, the CLI, the inbox watcher) talk to the engine;
// the engine owns the wiring between the pieces.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/mindgrove/triage/intake"
	"github.com/mindgrove/triage/llm"
	"github.com/mindgrove/triage/match"
	"github.com/mindgrove/triage/priority"
	"github.com/mindgrove/triage/review"
	"github.com/mindgrove/triage/storage"
	"github.com/mindgrove/triage/task"
)

// LLMClient is the completion capability the engine passes down to intake
// and matching.
type LLMClient interface {
	Complete(ctx context.Context, req llm.Request) (*llm.Response, error)
}

// Engine coordinates the note-to-task pipeline over one task store.
type Engine struct {
	store            storage.Store
	extractor        *intake.Extractor
	matcher          *match.Matcher
	committer        *review.Committer
	wipLimit         int
	logger           *slog.Logger
	now              func() time.Time
	matchDegradeHook func()
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger, which is also handed to the pipeline stages.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithWIPLimit overrides the in-progress task limit.
func WithWIPLimit(limit int) Option {
	return func(e *Engine) {
		if limit > 0 {
			e.wipLimit = limit
		}
	}
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// WithMatchDegradeHook is forwarded to the matcher; callers use it to count
// degraded similarity checks.
func WithMatchDegradeHook(fn func()) Option {
	return func(e *Engine) {
		e.matchDegradeHook = fn
	}
}

// New creates an engine over the given store and completion client.
func New(store storage.Store, client LLMClient, opts ...Option) *Engine {
	e := &Engine{
		store:    store,
		wipLimit: priority.DefaultWIPLimit,
		logger:   slog.Default(),
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(e)
	}

	e.extractor = intake.NewExtractor(client, intake.WithLogger(e.logger))

	matcherOpts := []match.MatcherOption{match.WithLogger(e.logger)}
	if e.matchDegradeHook != nil {
		matcherOpts = append(matcherOpts, match.WithDegradeHook(e.matchDegradeHook))
	}
	e.matcher = match.NewMatcher(client, matcherOpts...)
	e.committer = review.NewCommitter(store,
		review.WithLogger(e.logger),
		review.WithClock(e.now))

	return e
}

// IntakeOption configures one intake run.
type IntakeOption func(*intakeOptions)

type intakeOptions struct {
	meetingRef string
}

// WithMeetingRef tags the resulting session with its source meeting.
func WithMeetingRef(ref string) IntakeOption {
	return func(o *intakeOptions) {
		o.meetingRef = ref
	}
}

// Intake extracts tasks from a note, scores each draft against the user's
// open tasks, and returns a review session awaiting confirmation. A note
// with no action items yields a session with zero items.
//
// Extraction failure fails the intake; matching failure does not: drafts
// whose comparison degraded simply arrive with no candidates.
func (e *Engine) Intake(ctx context.Context, userID, note string, opts ...IntakeOption) (*review.Session, error) {
	var o intakeOptions
	for _, opt := range opts {
		opt(&o)
	}

	drafts, err := e.extractor.Extract(ctx, note, e.now())
	if err != nil {
		return nil, err
	}

	var candidates [][]task.CandidateMatch
	if len(drafts) > 0 {
		open, err := e.store.ListOpenTasks(ctx, userID)
		if err != nil {
			return nil, fmt.Errorf("list open tasks: %w", err)
		}
		candidates = e.matcher.MatchAll(ctx, drafts, open)
	}

	var sessionOpts []review.SessionOption
	if o.meetingRef != "" {
		sessionOpts = append(sessionOpts, review.WithMeetingRef(o.meetingRef))
	}

	session := review.NewSession(userID, drafts, candidates, sessionOpts...)

	e.logger.Info("Intake complete",
		"session_id", session.ID,
		"user_id", userID,
		"drafts", len(drafts))

	return session, nil
}

// Commit applies a review session's decisions to the store.
func (e *Engine) Commit(ctx context.Context, session *review.Session) ([]review.CommitResult, error) {
	return e.committer.Commit(ctx, session)
}

// NextTask returns the user's single highest-priority open task, or nil
// when nothing is open.
func (e *Engine) NextTask(ctx context.Context, userID string) (*task.Task, error) {
	open, err := e.store.ListOpenTasks(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list open tasks: %w", err)
	}
	return priority.NextTask(open, e.now()), nil
}

// WIPPressure reports the user's in-progress load against the limit.
func (e *Engine) WIPPressure(ctx context.Context, userID string) (priority.WIPPressure, error) {
	open, err := e.store.ListOpenTasks(ctx, userID)
	if err != nil {
		return priority.WIPPressure{}, fmt.Errorf("list open tasks: %w", err)
	}
	return priority.MeasureWIP(open, e.wipLimit), nil
}

// Matrix returns the user's open tasks grouped into Eisenhower quadrants.
func (e *Engine) Matrix(ctx context.Context, userID string) (map[priority.Quadrant][]task.Task, error) {
	open, err := e.store.ListOpenTasks(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list open tasks: %w", err)
	}
	return priority.Matrix(open), nil
}

// AdvanceStatus moves a task to the next lifecycle state in the cycle
// todo → in-progress → done → todo, stamping CompletedAt on completion and
// clearing it when a done task is reopened.
func (e *Engine) AdvanceStatus(ctx context.Context, userID, taskID string) (task.Task, error) {
	t, err := e.store.GetTask(ctx, userID, taskID)
	if err != nil {
		return task.Task{}, err
	}

	now := e.now()
	t.Status = t.Status.Next()
	t.UpdatedAt = now
	switch t.Status {
	case task.StatusDone:
		t.CompletedAt = &now
	default:
		t.CompletedAt = nil
	}

	return e.store.UpdateTask(ctx, t)
}
