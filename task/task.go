// Package task defines the core task domain model shared by the intake,
// matching, review, and priority packages.
package task

import "time"

// Status represents the lifecycle state of a task.
type Status string

// Task lifecycle states. Transitions are user-driven and cyclic:
// todo → in-progress → done → todo.
const (
	StatusTodo       Status = "todo"
	StatusInProgress Status = "in-progress"
	StatusDone       Status = "done"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusTodo, StatusInProgress, StatusDone:
		return true
	default:
		return false
	}
}

// Next returns the status that follows s in the cycle.
// Unknown statuses reset to todo.
func (s Status) Next() Status {
	switch s {
	case StatusTodo:
		return StatusInProgress
	case StatusInProgress:
		return StatusDone
	default:
		return StatusTodo
	}
}

// Area classifies a task into one of four fixed life areas.
type Area string

// The closed area set. Extraction never invents new areas; anything the
// model returns outside this set is normalized to personal.
const (
	AreaWork     Area = "work"
	AreaPersonal Area = "personal"
	AreaHealth   Area = "health"
	AreaSocial   Area = "social"
)

// Valid reports whether a is a known area.
func (a Area) Valid() bool {
	switch a {
	case AreaWork, AreaPersonal, AreaHealth, AreaSocial:
		return true
	default:
		return false
	}
}

// Note history sources.
const (
	NoteSourceManual    = "manual"
	NoteSourceQuickNote = "quick_note"
	NoteSourceAIExtract = "ai_extract"
	NoteSourceAIMerge   = "ai_merge"
)

// NoteEntry is one entry in a task's append-only note history.
type NoteEntry struct {
	AddedAt time.Time `json:"added_at"`
	Content string    `json:"content"`
	Source  string    `json:"source"`
}

// Task is the persistent task entity. Tasks are owned exclusively by one
// user and are never hard-deleted by the engine; NoteHistory only grows.
type Task struct {
	ID     string `json:"id"`
	UserID string `json:"user_id"`
	Title  string `json:"title"`
	Notes  string `json:"notes,omitempty"`
	Status Status `json:"status"`

	// Urgent and Important are independent booleans, not a single
	// priority scalar (Eisenhower semantics).
	Urgent    bool `json:"urgent"`
	Important bool `json:"important"`

	Area             Area       `json:"area"`
	EstimatedMinutes int        `json:"estimated_minutes,omitempty"`
	DueDate          *time.Time `json:"due_date,omitempty"`
	Pinned           bool       `json:"pinned"`

	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	NoteHistory []NoteEntry `json:"note_history,omitempty"`

	// MeetingRef links the task back to the originating meeting or
	// transcript, when the task came out of an intake session.
	MeetingRef string `json:"meeting_ref,omitempty"`
}

// Open reports whether the task is still actionable (status ≠ done).
func (t Task) Open() bool {
	return t.Status != StatusDone
}

// AppendNote records a new note entry. The history is append-only; existing
// entries are never rewritten or reordered.
func (t *Task) AppendNote(at time.Time, content, source string) {
	t.NoteHistory = append(t.NoteHistory, NoteEntry{
		AddedAt: at,
		Content: content,
		Source:  source,
	})
}
