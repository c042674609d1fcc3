// Package review holds extracted drafts with their duplicate candidates for
// user confirmation, then commits the resolved decisions to storage.
package review

import "errors"

// ErrInvalidMergeTarget reports a merge decision naming a task that is not
// among the item's candidates.
var ErrInvalidMergeTarget = errors.New("merge target is not a candidate for this draft")

// DecisionKind names how a reviewed draft should be committed.
type DecisionKind string

const (
	// DecisionPending means the user has not resolved the item; commit
	// applies the default resolution.
	DecisionPending DecisionKind = "pending"
	// DecisionCreate commits the draft as a new task.
	DecisionCreate DecisionKind = "create"
	// DecisionMerge folds the draft into an existing candidate task.
	DecisionMerge DecisionKind = "merge"
	// DecisionSkip discards the draft without touching storage.
	DecisionSkip DecisionKind = "skip"
)

// Decision is a resolved (or pending) choice for one review item. The zero
// value is pending. Merge decisions are built through Item.ResolveMerge so
// the target is always validated against the item's own candidates.
type Decision struct {
	kind     DecisionKind
	targetID string
}

// Pending returns the unresolved decision.
func Pending() Decision { return Decision{kind: DecisionPending} }

// Create returns a decision to create a new task from the draft.
func Create() Decision { return Decision{kind: DecisionCreate} }

// Skip returns a decision to discard the draft.
func Skip() Decision { return Decision{kind: DecisionSkip} }

// Kind returns the decision kind. A zero-value Decision is pending.
func (d Decision) Kind() DecisionKind {
	if d.kind == "" {
		return DecisionPending
	}
	return d.kind
}

// MergeTargetID returns the task the draft merges into, empty unless the
// decision is a merge.
func (d Decision) MergeTargetID() string { return d.targetID }
