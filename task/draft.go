package task

import "time"

// Draft is an ephemeral task proposal extracted from free text. Drafts are
// never persisted; they exist only for the duration of one intake session.
type Draft struct {
	Title            string     `json:"title"`
	Notes            string     `json:"notes,omitempty"`
	Urgent           bool       `json:"urgent"`
	Important        bool       `json:"important"`
	Area             Area       `json:"area"`
	EstimatedMinutes int        `json:"estimated_minutes,omitempty"`
	DueDate          *time.Time `json:"due_date,omitempty"`

	// Reasoning is the model's short justification for the flags it chose.
	// Shown to the user during review, carried into merge note blocks.
	Reasoning string `json:"reasoning,omitempty"`
}

// Context returns the free-text context to carry into a created or merged
// task's notes: the draft's notes when present, otherwise its title.
func (d Draft) Context() string {
	if d.Notes != "" {
		return d.Notes
	}
	return d.Title
}

// MatchThreshold is the minimum similarity score a candidate duplicate must
// reach before consumers act on it.
const MatchThreshold = 70

// CandidateMatch pairs a draft with an existing open task that may be the
// same piece of work, scored 0-100.
type CandidateMatch struct {
	Task       Task   `json:"task"`
	Similarity int    `json:"similarity"`
	Reasoning  string `json:"reasoning,omitempty"`
}
