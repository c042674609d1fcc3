// Package match finds likely duplicates of a draft among a user's open
// tasks using semantic comparison, so new notes amend existing work instead
// of spawning copies.
package match

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/mindgrove/triage/llm"
	"github.com/mindgrove/triage/task"
)

// noteExcerptChars bounds how much of an existing task's notes goes into
// the comparison prompt.
const noteExcerptChars = 200

// LLMClient is the completion capability the matcher depends on.
type LLMClient interface {
	Complete(ctx context.Context, req llm.Request) (*llm.Response, error)
}

// Matcher scores a new note against existing open tasks.
//
// Matching degrades instead of failing: if the comparison call errors or its
// output cannot be parsed, Match returns no candidates. A duplicate slipping
// through is recoverable; blocking task creation is not.
type Matcher struct {
	client    LLMClient
	logger    *slog.Logger
	onDegrade func()
}

// MatcherOption configures a Matcher.
type MatcherOption func(*Matcher)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) MatcherOption {
	return func(m *Matcher) {
		m.logger = logger
	}
}

// WithDegradeHook registers a callback invoked each time a comparison
// degrades to no candidates. Callers use it for instrumentation; the matcher
// itself stays metrics-free. The hook must be safe for concurrent use.
func WithDegradeHook(fn func()) MatcherOption {
	return func(m *Matcher) {
		m.onDegrade = fn
	}
}

// NewMatcher creates a matcher over the given completion client.
func NewMatcher(client LLMClient, opts ...MatcherOption) *Matcher {
	m := &Matcher{
		client: client,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Match returns candidate duplicates for note among openTasks, filtered to
// similarity ≥ task.MatchThreshold and ordered by descending similarity.
// Ties prefer the more recently created task. An empty open-task set makes
// no model call and returns nothing.
func (m *Matcher) Match(ctx context.Context, note string, openTasks []task.Task) []task.CandidateMatch {
	if len(openTasks) == 0 {
		return nil
	}

	temp := 0.2
	resp, err := m.client.Complete(ctx, llm.Request{
		Messages: []llm.Message{
			{Role: "system", Content: matchSystemPrompt},
			{Role: "user", Content: fmt.Sprintf(matchUserPrompt, note, formatTaskList(openTasks))},
		},
		Temperature: &temp,
		MaxTokens:   1024,
	})
	if err != nil {
		m.logger.Warn("Similarity matching degraded to no candidates",
			"error", err)
		m.degraded()
		return nil
	}

	matches, err := parseMatchResponse(resp.Content, openTasks)
	if err != nil {
		m.logger.Warn("Similarity matching degraded to no candidates",
			"request_id", resp.RequestID,
			"error", err)
		m.degraded()
		return nil
	}

	return matches
}

func (m *Matcher) degraded() {
	if m.onDegrade != nil {
		m.onDegrade()
	}
}

// MatchAll runs Match for every draft concurrently and fans the results
// back in preserving draft order. Per-draft comparisons are independent; no
// draft's result depends on another's.
func (m *Matcher) MatchAll(ctx context.Context, drafts []task.Draft, openTasks []task.Task) [][]task.CandidateMatch {
	results := make([][]task.CandidateMatch, len(drafts))

	var wg sync.WaitGroup
	for i, d := range drafts {
		wg.Add(1)
		go func(i int, d task.Draft) {
			defer wg.Done()
			results[i] = m.Match(ctx, d.Context(), openTasks)
		}(i, d)
	}
	wg.Wait()

	return results
}

// wireMatch is the per-candidate form the model returns. task_index is the
// zero-based position in the prompt's task list.
type wireMatch struct {
	TaskIndex  int    `json:"task_index"`
	Similarity int    `json:"similarity"`
	Reasoning  string `json:"reasoning"`
}

// parseMatchResponse converts model output into candidate matches, dropping
// out-of-range indexes and scores below the acceptance threshold.
func parseMatchResponse(content string, openTasks []task.Task) ([]task.CandidateMatch, error) {
	jsonStr := llm.ExtractJSONArray(content)
	if jsonStr == "" {
		return nil, fmt.Errorf("no JSON array found in response")
	}

	var raw []wireMatch
	if err := json.Unmarshal([]byte(jsonStr), &raw); err != nil {
		return nil, fmt.Errorf("invalid JSON response: %w", err)
	}

	matches := make([]task.CandidateMatch, 0, len(raw))
	for _, r := range raw {
		if r.TaskIndex < 0 || r.TaskIndex >= len(openTasks) {
			continue
		}
		if r.Similarity < task.MatchThreshold {
			continue
		}
		if r.Similarity > 100 {
			r.Similarity = 100
		}

		matches = append(matches, task.CandidateMatch{
			Task:       openTasks[r.TaskIndex],
			Similarity: r.Similarity,
			Reasoning:  strings.TrimSpace(r.Reasoning),
		})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Similarity != matches[j].Similarity {
			return matches[i].Similarity > matches[j].Similarity
		}
		return matches[i].Task.CreatedAt.After(matches[j].Task.CreatedAt)
	})

	return matches, nil
}

// formatTaskList renders open tasks as a zero-indexed list for the prompt,
// with a short excerpt of each task's notes for context.
func formatTaskList(openTasks []task.Task) string {
	var b strings.Builder
	for i, t := range openTasks {
		fmt.Fprintf(&b, "%d. %q", i, t.Title)
		if t.Notes != "" {
			excerpt := t.Notes
			if len(excerpt) > noteExcerptChars {
				excerpt = excerpt[:noteExcerptChars] + "..."
			}
			fmt.Fprintf(&b, " (notes: %s)", excerpt)
		}
		b.WriteByte('\n')
	}
	return b.String()
}
