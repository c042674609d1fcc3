package review

import (
	"time"

	"github.com/google/uuid"

	"github.com/mindgrove/triage/task"
)

// Item pairs one extracted draft with its duplicate candidates and the
// user's decision about it.
type Item struct {
	Draft      task.Draft
	Candidates []task.CandidateMatch
	Decision   Decision
}

// BestCandidate returns the highest-scoring candidate, or false when the
// item has none. Candidates arrive sorted by descending similarity.
func (it *Item) BestCandidate() (task.CandidateMatch, bool) {
	if len(it.Candidates) == 0 {
		return task.CandidateMatch{}, false
	}
	return it.Candidates[0], true
}

// ResolveMerge records a decision to merge the draft into taskID. The target
// must be one of the item's own candidates.
func (it *Item) ResolveMerge(taskID string) error {
	for _, c := range it.Candidates {
		if c.Task.ID == taskID {
			it.Decision = Decision{kind: DecisionMerge, targetID: taskID}
			return nil
		}
	}
	return ErrInvalidMergeTarget
}

// ResolveCreate records a decision to create a new task from the draft.
func (it *Item) ResolveCreate() { it.Decision = Create() }

// ResolveSkip records a decision to discard the draft.
func (it *Item) ResolveSkip() { it.Decision = Skip() }

// Session is one intake's worth of drafts awaiting confirmation.
type Session struct {
	ID         string
	UserID     string
	MeetingRef string
	Items      []Item
	CreatedAt  time.Time
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithMeetingRef tags the session's tasks with the meeting they came from.
func WithMeetingRef(ref string) SessionOption {
	return func(s *Session) {
		s.MeetingRef = ref
	}
}

// NewSession builds a review session from extracted drafts and their
// candidates, paired by index. Items with no candidates default to create;
// there is nothing to confirm for them. Items with candidates stay pending.
func NewSession(userID string, drafts []task.Draft, candidates [][]task.CandidateMatch, opts ...SessionOption) *Session {
	s := &Session{
		ID:        uuid.New().String(),
		UserID:    userID,
		CreatedAt: time.Now().UTC(),
		Items:     make([]Item, len(drafts)),
	}
	for _, opt := range opts {
		opt(s)
	}

	for i, d := range drafts {
		var cands []task.CandidateMatch
		if i < len(candidates) {
			cands = candidates[i]
		}

		item := Item{Draft: d, Candidates: cands}
		if len(cands) == 0 {
			item.Decision = Create()
		}
		s.Items[i] = item
	}

	return s
}
