// Package api exposes the triage engine over HTTP. The API is stateless:
// intake returns the full review session in the response, and commit sends
// the resolved session back. Nothing is parked server-side between the two
// calls.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/mindgrove/triage/engine"
	"github.com/mindgrove/triage/metric"
	"github.com/mindgrove/triage/review"
	"github.com/mindgrove/triage/storage"
	"github.com/mindgrove/triage/task"
)

// maxRequestBodySize limits POST body sizes to prevent DoS.
const maxRequestBodySize = 1 << 20 // 1 MB

// Server handles the triage HTTP API.
type Server struct {
	engine  *engine.Engine
	metrics *metric.Metrics
	logger  *slog.Logger
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ServerOption {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithMetrics attaches a metric set; without one the server runs
// uninstrumented.
func WithMetrics(m *metric.Metrics) ServerOption {
	return func(s *Server) {
		s.metrics = m
	}
}

// NewServer creates an API server over the given engine.
func NewServer(eng *engine.Engine, opts ...ServerOption) *Server {
	s := &Server{
		engine: eng,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RegisterHTTPHandlers registers all triage HTTP handlers under the given prefix.
// The prefix should be the path segment without a trailing slash (e.g. "api/triage").
// Handlers are registered as:
//
//	POST <prefix>/intake
//	POST <prefix>/commit
//	GET  <prefix>/next
//	GET  <prefix>/wip
//	GET  <prefix>/matrix
//	POST <prefix>/advance
func (s *Server) RegisterHTTPHandlers(prefix string, mux *http.ServeMux) {
	// Normalise: ensure leading slash and trailing slash.
	if !strings.HasPrefix(prefix, "/") {
		prefix = "/" + prefix
	}
	if !strings.HasSuffix(prefix, "/") {
		prefix = prefix + "/"
	}

	mux.HandleFunc(prefix+"intake", s.handleIntake)
	mux.HandleFunc(prefix+"commit", s.handleCommit)
	mux.HandleFunc(prefix+"next", s.handleNext)
	mux.HandleFunc(prefix+"wip", s.handleWIP)
	mux.HandleFunc(prefix+"matrix", s.handleMatrix)
	mux.HandleFunc(prefix+"advance", s.handleAdvance)
}

// ----------------------------------------------------------------------------
// POST /api/triage/intake
// ----------------------------------------------------------------------------

// IntakeRequest is the request body for POST /api/triage/intake.
type IntakeRequest struct {
	UserID string `json:"user_id"`
	Note   string `json:"note"`
	// MeetingRef optionally names the meeting or transcript the note came
	// from; it is carried onto every task the session produces.
	MeetingRef string `json:"meeting_ref,omitempty"`
}

// IntakeItem is one extracted draft plus its duplicate candidates.
type IntakeItem struct {
	Draft      task.Draft            `json:"draft"`
	Candidates []task.CandidateMatch `json:"candidates,omitempty"`
	// Decision is the default resolution the engine will apply at commit
	// if the user changes nothing.
	Decision review.DecisionKind `json:"decision"`
}

// IntakeResponse is the response body for POST /api/triage/intake.
type IntakeResponse struct {
	SessionID  string       `json:"session_id"`
	MeetingRef string       `json:"meeting_ref,omitempty"`
	Items      []IntakeItem `json:"items"`
}

// handleIntake extracts tasks from a note and returns the review session.
// A note with no action items is a 200 with zero items, not an error.
func (s *Server) handleIntake(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)

	var req IntakeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.UserID == "" {
		http.Error(w, "user_id is required", http.StatusBadRequest)
		return
	}

	var opts []engine.IntakeOption
	if req.MeetingRef != "" {
		opts = append(opts, engine.WithMeetingRef(req.MeetingRef))
	}

	if s.metrics != nil {
		s.metrics.IntakesTotal.Inc()
	}

	session, err := s.engine.Intake(r.Context(), req.UserID, req.Note, opts...)
	if err != nil {
		if s.metrics != nil {
			s.metrics.IntakeFailures.Inc()
		}
		s.logger.Error("Intake failed", "user_id", req.UserID, "error", err)
		http.Error(w, "Extraction failed; the note was not consumed", http.StatusBadGateway)
		return
	}

	items := make([]IntakeItem, len(session.Items))
	for i, it := range session.Items {
		items[i] = IntakeItem{
			Draft:      it.Draft,
			Candidates: it.Candidates,
			Decision:   it.Decision.Kind(),
		}
	}
	if s.metrics != nil {
		s.metrics.DraftsExtracted.Add(float64(len(items)))
	}

	writeJSON(w, http.StatusOK, IntakeResponse{
		SessionID:  session.ID,
		MeetingRef: session.MeetingRef,
		Items:      items,
	})
}

// ----------------------------------------------------------------------------
// POST /api/triage/commit
// ----------------------------------------------------------------------------

// CommitItem is one resolved draft sent back for commit. Candidates travel
// as task IDs only; the engine reloads the targets it needs.
type CommitItem struct {
	Draft            task.Draft          `json:"draft"`
	CandidateTaskIDs []string            `json:"candidate_task_ids,omitempty"`
	Decision         review.DecisionKind `json:"decision"`
	MergeTargetID    string              `json:"merge_target_id,omitempty"`
}

// CommitRequest is the request body for POST /api/triage/commit.
type CommitRequest struct {
	UserID     string       `json:"user_id"`
	MeetingRef string       `json:"meeting_ref,omitempty"`
	Items      []CommitItem `json:"items"`
}

// CommitItemResult is the outcome for one committed item.
type CommitItemResult struct {
	Outcome review.Outcome `json:"outcome"`
	TaskID  string         `json:"task_id,omitempty"`
	Error   string         `json:"error,omitempty"`
}

// CommitResponse is the response body for POST /api/triage/commit.
type CommitResponse struct {
	Results []CommitItemResult `json:"results"`
}

// handleCommit applies the caller's decisions. Items commit independently:
// an invalid merge target fails its own item without blocking siblings, and
// a 207 response means some items failed while others went through, with
// the per-item results saying which.
func (s *Server) handleCommit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)

	var req CommitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.UserID == "" {
		http.Error(w, "user_id is required", http.StatusBadRequest)
		return
	}

	session, itemErrs, err := buildSession(req)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	// Commit only the items that resolved; the rest report as failed below.
	commit := *session
	commit.Items = make([]review.Item, 0, len(session.Items))
	for i, it := range session.Items {
		if itemErrs[i] == nil {
			commit.Items = append(commit.Items, it)
		}
	}

	results, err := s.engine.Commit(r.Context(), &commit)
	status := http.StatusOK
	if err != nil {
		var partial *review.PartialFailureError
		if !errors.As(err, &partial) {
			s.logger.Error("Commit failed", "user_id", req.UserID, "error", err)
			http.Error(w, "Commit failed", http.StatusInternalServerError)
			return
		}
		status = http.StatusMultiStatus
	}

	out := make([]CommitItemResult, len(session.Items))
	next := 0
	for i := range session.Items {
		if itemErrs[i] != nil {
			out[i] = CommitItemResult{Outcome: review.OutcomeFailed, Error: itemErrs[i].Error()}
			status = http.StatusMultiStatus
		} else {
			res := results[next]
			next++
			out[i] = CommitItemResult{Outcome: res.Outcome, TaskID: res.TaskID}
			if res.Err != nil {
				out[i].Error = res.Err.Error()
			}
		}
		if s.metrics != nil {
			s.metrics.CommitsByOutcome.WithLabelValues(string(out[i].Outcome)).Inc()
		}
	}

	writeJSON(w, status, CommitResponse{Results: out})
}

// buildSession reconstructs a review session from the stateless commit
// request. Candidate IDs become stub tasks so merge targets validate against
// what the caller was actually shown. A merge naming a task outside the
// item's candidates fails only that item: itemErrs marks its position and
// the siblings keep their decisions. A malformed decision kind fails the
// whole request.
func buildSession(req CommitRequest) (*review.Session, []error, error) {
	drafts := make([]task.Draft, len(req.Items))
	candidates := make([][]task.CandidateMatch, len(req.Items))
	for i, it := range req.Items {
		drafts[i] = it.Draft
		for _, id := range it.CandidateTaskIDs {
			candidates[i] = append(candidates[i], task.CandidateMatch{
				Task: task.Task{ID: id},
			})
		}
	}

	var opts []review.SessionOption
	if req.MeetingRef != "" {
		opts = append(opts, review.WithMeetingRef(req.MeetingRef))
	}
	session := review.NewSession(req.UserID, drafts, candidates, opts...)

	itemErrs := make([]error, len(req.Items))
	for i, it := range req.Items {
		item := &session.Items[i]
		switch it.Decision {
		case review.DecisionMerge:
			if err := item.ResolveMerge(it.MergeTargetID); err != nil {
				itemErrs[i] = err
			}
		case review.DecisionCreate:
			item.ResolveCreate()
		case review.DecisionSkip:
			item.ResolveSkip()
		case review.DecisionPending, "":
			// NewSession already defaulted no-candidate items to create;
			// leave the rest pending for the commit-time default.
		default:
			return nil, nil, fmt.Errorf("unknown decision %q", it.Decision)
		}
	}

	return session, itemErrs, nil
}

// ----------------------------------------------------------------------------
// GET /api/triage/next
// ----------------------------------------------------------------------------

// NextResponse is the response body for GET /api/triage/next.
type NextResponse struct {
	// Task is the single highest-priority open task, null when the user
	// has nothing open.
	Task *task.Task `json:"task"`
}

// handleNext answers "what should I work on right now" with at most one task.
func (s *Server) handleNext(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		http.Error(w, "user_id is required", http.StatusBadRequest)
		return
	}

	next, err := s.engine.NextTask(r.Context(), userID)
	if err != nil {
		s.logger.Error("Next task lookup failed", "user_id", userID, "error", err)
		http.Error(w, "Lookup failed", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, NextResponse{Task: next})
}

// ----------------------------------------------------------------------------
// GET /api/triage/wip
// ----------------------------------------------------------------------------

// handleWIP reports in-progress load against the configured limit.
func (s *Server) handleWIP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		http.Error(w, "user_id is required", http.StatusBadRequest)
		return
	}

	pressure, err := s.engine.WIPPressure(r.Context(), userID)
	if err != nil {
		s.logger.Error("WIP lookup failed", "user_id", userID, "error", err)
		http.Error(w, "Lookup failed", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, pressure)
}

// ----------------------------------------------------------------------------
// GET /api/triage/matrix
// ----------------------------------------------------------------------------

// MatrixQuadrant is one Eisenhower quadrant with its tasks.
type MatrixQuadrant struct {
	Label string      `json:"label"`
	Tasks []task.Task `json:"tasks"`
}

// handleMatrix returns the user's open tasks grouped by Eisenhower quadrant.
func (s *Server) handleMatrix(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		http.Error(w, "user_id is required", http.StatusBadRequest)
		return
	}

	matrix, err := s.engine.Matrix(r.Context(), userID)
	if err != nil {
		s.logger.Error("Matrix lookup failed", "user_id", userID, "error", err)
		http.Error(w, "Lookup failed", http.StatusInternalServerError)
		return
	}

	out := make(map[string]MatrixQuadrant, len(matrix))
	for q, tasks := range matrix {
		out[string(q)] = MatrixQuadrant{Label: q.Label(), Tasks: tasks}
	}

	writeJSON(w, http.StatusOK, out)
}

// ----------------------------------------------------------------------------
// POST /api/triage/advance
// ----------------------------------------------------------------------------

// AdvanceRequest is the request body for POST /api/triage/advance.
type AdvanceRequest struct {
	UserID string `json:"user_id"`
	TaskID string `json:"task_id"`
}

// handleAdvance cycles a task's status: todo → in-progress → done → todo.
func (s *Server) handleAdvance(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)

	var req AdvanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.UserID == "" || req.TaskID == "" {
		http.Error(w, "user_id and task_id are required", http.StatusBadRequest)
		return
	}

	updated, err := s.engine.AdvanceStatus(r.Context(), req.UserID, req.TaskID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			http.Error(w, "task not found", http.StatusNotFound)
			return
		}
		s.logger.Error("Advance failed", "user_id", req.UserID, "task_id", req.TaskID, "error", err)
		http.Error(w, "Advance failed", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, updated)
}

// ----------------------------------------------------------------------------
// Helpers
// ----------------------------------------------------------------------------

// writeJSON marshals v as JSON and writes it to w with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		// Response is already partially written; nothing useful to do.
		_ = err
	}
}
