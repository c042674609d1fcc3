// Package intake turns free-form notes and meeting transcripts into
// structured task drafts.
package intake

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/mindgrove/triage/llm"
	"github.com/mindgrove/triage/task"
)

// maxNoteChars bounds note content sent for extraction. Notes are capped at
// roughly transcript length; anything beyond is truncated at a paragraph
// boundary where possible.
const maxNoteChars = 50000

// LLMClient is the completion capability the extractor depends on.
type LLMClient interface {
	Complete(ctx context.Context, req llm.Request) (*llm.Response, error)
}

// ExtractionError reports that the model's output could not be turned into
// task drafts. It is fatal to the one intake and is never retried
// automatically: the caller keeps the original note for retry or manual
// entry.
type ExtractionError struct {
	err error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extract tasks: %v", e.err)
}

func (e *ExtractionError) Unwrap() error { return e.err }

// Extractor extracts task drafts from notes using a language model.
type Extractor struct {
	client LLMClient
	logger *slog.Logger
}

// ExtractorOption configures an Extractor.
type ExtractorOption func(*Extractor)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ExtractorOption {
	return func(e *Extractor) {
		e.logger = logger
	}
}

// NewExtractor creates an extractor over the given completion client.
func NewExtractor(client LLMClient, opts ...ExtractorOption) *Extractor {
	e := &Extractor{
		client: client,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract turns a note into zero or more task drafts. Zero drafts is a
// valid outcome (pure commentary). Relative dates in the note resolve
// against now; phrases with no resolvable anchor get no due date.
func (e *Extractor) Extract(ctx context.Context, note string, now time.Time) ([]task.Draft, error) {
	if strings.TrimSpace(note) == "" {
		return nil, nil
	}

	content := truncateNote(note, maxNoteChars)

	temp := 0.2 // Low temperature for consistent extraction
	resp, err := e.client.Complete(ctx, llm.Request{
		Messages: []llm.Message{
			{Role: "system", Content: extractionSystemPrompt},
			{Role: "user", Content: fmt.Sprintf(extractionUserPrompt,
				now.Format("2006-01-02"), now.Weekday(), content)},
		},
		Temperature: &temp,
		MaxTokens:   2048,
	})
	if err != nil {
		return nil, &ExtractionError{err: err}
	}

	drafts, err := parseExtractionResponse(resp.Content, now)
	if err != nil {
		return nil, &ExtractionError{err: err}
	}

	e.logger.Debug("Extracted task drafts",
		"request_id", resp.RequestID,
		"drafts", len(drafts))

	return drafts, nil
}

// extractedDraft is the wire form the model returns for one draft.
type extractedDraft struct {
	Title            string `json:"title"`
	Notes            string `json:"notes"`
	Urgent           bool   `json:"urgent"`
	Important        bool   `json:"important"`
	Area             string `json:"area"`
	EstimatedMinutes int    `json:"estimated_minutes"`
	DueDate          string `json:"due_date"`
	Reasoning        string `json:"reasoning"`
}

// parseExtractionResponse converts the model output into drafts. A missing
// or malformed JSON array is a hard failure; individual field oddities are
// normalized instead (unknown area → personal, unparsable date → no date).
func parseExtractionResponse(content string, now time.Time) ([]task.Draft, error) {
	jsonStr := llm.ExtractJSONArray(content)
	if jsonStr == "" {
		return nil, fmt.Errorf("no JSON array found in response")
	}

	var raw []extractedDraft
	if err := json.Unmarshal([]byte(jsonStr), &raw); err != nil {
		return nil, fmt.Errorf("invalid JSON response: %w", err)
	}

	drafts := make([]task.Draft, 0, len(raw))
	for i, r := range raw {
		title := strings.TrimSpace(r.Title)
		if title == "" {
			return nil, fmt.Errorf("draft %d has no title", i)
		}

		area := task.Area(strings.ToLower(strings.TrimSpace(r.Area)))
		if !area.Valid() {
			area = task.AreaPersonal
		}

		estimate := r.EstimatedMinutes
		if estimate < 0 {
			estimate = 0
		}

		drafts = append(drafts, task.Draft{
			Title:            title,
			Notes:            strings.TrimSpace(r.Notes),
			Urgent:           r.Urgent,
			Important:        r.Important,
			Area:             area,
			EstimatedMinutes: estimate,
			DueDate:          parseDueDate(r.DueDate, now),
			Reasoning:        strings.TrimSpace(r.Reasoning),
		})
	}

	return drafts, nil
}

// parseDueDate parses the model's due date. The prompt asks for RFC 3339; a
// bare date is accepted too. Anything else means the model could not anchor
// the date, which per policy resolves to "no due date" rather than a guess.
func parseDueDate(s string, now time.Time) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "null") || strings.EqualFold(s, "none") {
		return nil
	}

	if ts, err := time.Parse(time.RFC3339, s); err == nil {
		return &ts
	}
	if d, err := time.ParseInLocation("2006-01-02", s, now.Location()); err == nil {
		// End of working day, matching how people read a bare date
		ts := d.Add(17 * time.Hour)
		return &ts
	}

	return nil
}

// truncateNote trims a note to maxChars, preferring a paragraph boundary.
func truncateNote(note string, maxChars int) string {
	if len(note) <= maxChars {
		return note
	}

	truncated := note[:maxChars]
	if lastPara := strings.LastIndex(truncated, "\n\n"); lastPara > maxChars/2 {
		return truncated[:lastPara]
	}
	return truncated
}
