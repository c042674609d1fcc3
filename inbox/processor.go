package inbox

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/mindgrove/triage/engine"
	"github.com/mindgrove/triage/metric"
)

// processedDir is the subdirectory consumed note files are moved into.
const processedDir = "processed"

// Processor consumes settled note events and runs them through the engine
// with default resolutions: best candidate merges, everything else becomes
// a new task. Nobody is around to review inbox intakes, so silence means
// accept.
type Processor struct {
	engine  *engine.Engine
	userID  string
	logger  *slog.Logger
	metrics *metric.Metrics
}

// ProcessorOption configures a Processor.
type ProcessorOption func(*Processor)

// WithProcessorLogger sets the logger.
func WithProcessorLogger(logger *slog.Logger) ProcessorOption {
	return func(p *Processor) {
		p.logger = logger
	}
}

// WithProcessorMetrics attaches a metric set.
func WithProcessorMetrics(m *metric.Metrics) ProcessorOption {
	return func(p *Processor) {
		p.metrics = m
	}
}

// NewProcessor creates a processor committing inbox notes for one user.
func NewProcessor(eng *engine.Engine, userID string, opts ...ProcessorOption) *Processor {
	p := &Processor{
		engine: eng,
		userID: userID,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run consumes events until the channel closes or ctx is cancelled.
func (p *Processor) Run(ctx context.Context, events <-chan NoteEvent) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			if err := p.Process(ctx, event); err != nil {
				p.logger.Error("Inbox note failed",
					"path", event.Path,
					"error", err)
			}
		}
	}
}

// Process runs one note through intake and commit, then moves the file into
// the processed subdirectory. A failed note stays in the inbox untouched so
// the next run retries it; the note is only consumed once its tasks exist.
// Delivery is therefore at-least-once: a retry after a partial commit
// failure runs intake over the whole note again, and pairs that already
// committed can come back a second time. The rerun's matcher usually
// surfaces them as their own duplicates and merges instead of re-creating.
func (p *Processor) Process(ctx context.Context, event NoteEvent) error {
	if p.metrics != nil {
		p.metrics.InboxFilesSeen.Inc()
	}

	session, err := p.engine.Intake(ctx, p.userID, event.Content,
		engine.WithMeetingRef(filepath.Base(event.Path)))
	if err != nil {
		if p.metrics != nil {
			p.metrics.IntakeFailures.Inc()
		}
		return fmt.Errorf("intake: %w", err)
	}
	if p.metrics != nil {
		p.metrics.IntakesTotal.Inc()
		p.metrics.DraftsExtracted.Add(float64(len(session.Items)))
	}

	results, err := p.engine.Commit(ctx, session)
	if p.metrics != nil {
		for _, res := range results {
			p.metrics.CommitsByOutcome.WithLabelValues(string(res.Outcome)).Inc()
		}
	}
	if err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	if err := p.archive(event.Path); err != nil {
		// Tasks exist; a stuck file only risks a duplicate intake.
		p.logger.Warn("Failed to archive processed note",
			"path", event.Path,
			"error", err)
	}

	p.logger.Info("Inbox note processed",
		"path", event.Path,
		"tasks", len(results))

	return nil
}

// archive moves a consumed note into the processed subdirectory.
func (p *Processor) archive(path string) error {
	dir := filepath.Join(filepath.Dir(path), processedDir)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	return os.Rename(path, filepath.Join(dir, filepath.Base(path)))
}
