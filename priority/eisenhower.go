package priority

import "github.com/mindgrove/triage/task"

// Quadrant places a task in the Eisenhower matrix.
type Quadrant string

const (
	// QuadrantDoFirst holds urgent and important work.
	QuadrantDoFirst Quadrant = "do_first"
	// QuadrantSchedule holds important but not urgent work.
	QuadrantSchedule Quadrant = "schedule"
	// QuadrantPlan holds urgent but not important work.
	QuadrantPlan Quadrant = "plan"
	// QuadrantEliminate holds work that is neither.
	QuadrantEliminate Quadrant = "eliminate"
)

// Label returns the human-readable quadrant name.
func (q Quadrant) Label() string {
	switch q {
	case QuadrantDoFirst:
		return "Do First"
	case QuadrantSchedule:
		return "Schedule"
	case QuadrantPlan:
		return "Plan"
	default:
		return "Eliminate"
	}
}

// Classify maps a task's urgency and importance flags to its quadrant.
func Classify(t task.Task) Quadrant {
	switch {
	case t.Urgent && t.Important:
		return QuadrantDoFirst
	case t.Important:
		return QuadrantSchedule
	case t.Urgent:
		return QuadrantPlan
	default:
		return QuadrantEliminate
	}
}

// Matrix groups open tasks by quadrant. Done tasks are excluded.
func Matrix(tasks []task.Task) map[Quadrant][]task.Task {
	m := make(map[Quadrant][]task.Task)
	for _, t := range tasks {
		if !t.Open() {
			continue
		}
		q := Classify(t)
		m[q] = append(m[q], t)
	}
	return m
}
