// Package inbox watches a drop directory for note files. Any .txt or .md
// file saved into the inbox is picked up, run through intake with default
// resolutions, and moved aside once its tasks are committed. The inbox is
// the zero-friction capture path: write a file, walk away.
package inbox

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
)

const (
	// eventChannelBuffer is the size of the note event channel.
	eventChannelBuffer = 64

	// defaultDebounce is how long a file must stay quiet before intake
	// runs. Editors write in bursts; one save should mean one intake.
	defaultDebounce = 2 * time.Second
)

// watchedExtensions are the note file types the inbox reacts to.
var watchedExtensions = map[string]bool{
	".txt": true,
	".md":  true,
}

// NoteEvent is one settled note file ready for intake.
type NoteEvent struct {
	// Path is the absolute path of the note file.
	Path string
	// Content is the note text at flush time.
	Content string
}

// Watcher watches the inbox directory and emits debounced note events.
type Watcher struct {
	dir      string
	debounce time.Duration
	watcher  *fsnotify.Watcher
	logger   *slog.Logger

	// Debouncing: collect changes before processing
	pendingMu sync.Mutex
	pending   map[string]struct{}

	events chan NoteEvent

	droppedEvents atomic.Int64
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithDebounce overrides the quiet period before a file is processed.
func WithDebounce(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) WatcherOption {
	return func(w *Watcher) {
		w.logger = logger
	}
}

// NewWatcher creates an inbox watcher on dir.
func NewWatcher(dir string, opts ...WatcherOption) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		dir:      dir,
		debounce: defaultDebounce,
		watcher:  fsw,
		logger:   slog.Default(),
		pending:  make(map[string]struct{}),
		events:   make(chan NoteEvent, eventChannelBuffer),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Events returns the channel of settled note events.
func (w *Watcher) Events() <-chan NoteEvent {
	return w.events
}

// Start begins watching the inbox directory. Files already sitting in the
// inbox at startup are queued too, so notes dropped while the engine was
// down are not lost.
func (w *Watcher) Start(ctx context.Context) error {
	if err := os.MkdirAll(w.dir, 0755); err != nil {
		return err
	}

	if err := w.watcher.Add(w.dir); err != nil {
		return err
	}

	w.queueExisting()

	go w.processEvents(ctx)

	w.logger.Info("Inbox watcher started",
		"dir", w.dir,
		"debounce", w.debounce)

	return nil
}

// Stop stops the watcher.
// The events channel is closed by processEvents when it exits.
func (w *Watcher) Stop() error {
	return w.watcher.Close()
}

// DroppedEvents returns the number of events dropped due to channel overflow.
func (w *Watcher) DroppedEvents() int64 {
	return w.droppedEvents.Load()
}

// queueExisting marks every note file already in the inbox as pending.
func (w *Watcher) queueExisting() {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		w.logger.Warn("Failed to scan inbox at startup", "error", err)
		return
	}

	w.pendingMu.Lock()
	defer w.pendingMu.Unlock()
	for _, e := range entries {
		if e.IsDir() || !watchedExtensions[strings.ToLower(filepath.Ext(e.Name()))] {
			continue
		}
		w.pending[filepath.Join(w.dir, e.Name())] = struct{}{}
	}
}

// processEvents handles fsnotify events with debouncing.
func (w *Watcher) processEvents(ctx context.Context) {
	defer close(w.events)
	ticker := time.NewTicker(w.debounce)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleFSEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("Watcher error", "error", err)

		case <-ticker.C:
			w.flushPending(ctx)
		}
	}
}

// handleFSEvent accumulates writes to note files; everything else is noise.
func (w *Watcher) handleFSEvent(event fsnotify.Event) {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
		return
	}
	if !watchedExtensions[strings.ToLower(filepath.Ext(event.Name))] {
		return
	}

	w.pendingMu.Lock()
	w.pending[event.Name] = struct{}{}
	w.pendingMu.Unlock()

	w.logger.Debug("Note change detected",
		"path", event.Name,
		"op", event.Op.String())
}

// flushPending emits events for files that have settled.
func (w *Watcher) flushPending(ctx context.Context) {
	w.pendingMu.Lock()
	if len(w.pending) == 0 {
		w.pendingMu.Unlock()
		return
	}
	toProcess := w.pending
	w.pending = make(map[string]struct{})
	w.pendingMu.Unlock()

	for path := range toProcess {
		select {
		case <-ctx.Done():
			return
		default:
		}

		content, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				w.logger.Warn("Failed to read note file", "path", path, "error", err)
			}
			continue
		}

		w.sendEvent(NoteEvent{Path: path, Content: string(content)})
	}
}

// sendEvent sends an event without blocking the watch loop.
func (w *Watcher) sendEvent(event NoteEvent) {
	select {
	case w.events <- event:
		w.logger.Debug("Queued note for intake", "path", event.Path)
	default:
		dropped := w.droppedEvents.Add(1)
		w.logger.Warn("Event channel full, dropping note event",
			"path", event.Path,
			"total_dropped", dropped)
	}
}
