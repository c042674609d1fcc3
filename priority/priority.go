// Package priority scores open tasks and answers the single question that
// matters to an overwhelmed user: what should I work on right now.
package priority

import (
	"time"

	"github.com/mindgrove/triage/task"
)

// Score weights. Deadline pressure dominates: an overdue task outranks even
// urgent+important+pinned+in-progress combined (200 vs 100+50+25+30).
const (
	weightUrgent     = 100
	weightImportant  = 50
	weightPinned     = 25
	weightInProgress = 30

	weightOverdue   = 200
	weightDueIn1Day = 75
	weightDueIn3Day = 40
	weightDueIn7Day = 20
)

// DefaultWIPLimit is how many in-progress tasks are comfortable to carry
// before the engine flags overcommitment.
const DefaultWIPLimit = 3

// Score computes a task's priority at the given instant. Done tasks score 0:
// they are out of the running entirely.
func Score(t task.Task, now time.Time) int {
	if !t.Open() {
		return 0
	}

	score := 0
	if t.Urgent {
		score += weightUrgent
	}
	if t.Important {
		score += weightImportant
	}
	if t.Pinned {
		score += weightPinned
	}
	if t.Status == task.StatusInProgress {
		score += weightInProgress
	}

	if t.DueDate != nil {
		until := t.DueDate.Sub(now)
		switch {
		case until < 0:
			score += weightOverdue
		case until <= 24*time.Hour:
			score += weightDueIn1Day
		case until <= 72*time.Hour:
			score += weightDueIn3Day
		case until <= 168*time.Hour:
			score += weightDueIn7Day
		}
	}

	return score
}

// NextTask returns the single highest-priority open task, or nil when
// nothing is open. The answer is deterministic: equal scores break toward
// the earlier-created task, then toward input order.
func NextTask(tasks []task.Task, now time.Time) *task.Task {
	var best *task.Task
	bestScore := -1

	for i := range tasks {
		t := &tasks[i]
		if !t.Open() {
			continue
		}

		score := Score(*t, now)
		switch {
		case score > bestScore:
		case score == bestScore && t.CreatedAt.Before(best.CreatedAt):
		default:
			continue
		}
		best = t
		bestScore = score
	}

	if best == nil {
		return nil
	}
	picked := *best
	return &picked
}

// WIPPressure reports how loaded the user's in-progress lane is.
type WIPPressure struct {
	Count    int  `json:"count"`
	Limit    int  `json:"limit"`
	Exceeded bool `json:"exceeded"`
}

// MeasureWIP counts in-progress tasks against the limit. At exactly the
// limit the lane is full but not exceeded.
func MeasureWIP(tasks []task.Task, limit int) WIPPressure {
	if limit <= 0 {
		limit = DefaultWIPLimit
	}

	count := 0
	for _, t := range tasks {
		if t.Status == task.StatusInProgress {
			count++
		}
	}

	return WIPPressure{
		Count:    count,
		Limit:    limit,
		Exceeded: count > limit,
	}
}
