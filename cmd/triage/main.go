// Package main provides the triage binary entry point.
// Triage turns free-form notes into deduplicated, prioritized tasks and
// answers one question on demand: what should I work on right now.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"
	"strings"

	// Register LLM providers via init()
	_ "github.com/mindgrove/triage/llm/providers"

	"github.com/spf13/cobra"

	"github.com/mindgrove/triage/engine"
	"github.com/mindgrove/triage/priority"
	"github.com/mindgrove/triage/review"
	"github.com/mindgrove/triage/task"
)

const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "triage"
)

func main() {
	// Add panic recovery
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var (
		configPath string
		logLevel   string
		userID     string
	)

	cmd := &cobra.Command{
		Use:   "triage",
		Short: "Task intake and prioritization engine",
		Long: `Triage captures free-form notes, extracts the tasks hiding in them,
folds duplicates into existing work, and keeps a priority order so that
"what should I do next" always has exactly one answer.

Notes go in via the note command, a watched inbox directory, or the HTTP
API; tasks come out ranked by urgency, importance, and deadline pressure.`,
	}

	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file path (YAML)")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().StringVarP(&userID, "user", "u", defaultUserID(), "User the tasks belong to")

	buildApp := func() (*app, error) {
		return newApp(configPath, logLevel, userID)
	}

	cmd.AddCommand(noteCmd(buildApp))
	cmd.AddCommand(nextCmd(buildApp))
	cmd.AddCommand(wipCmd(buildApp))
	cmd.AddCommand(matrixCmd(buildApp))
	cmd.AddCommand(advanceCmd(buildApp))
	cmd.AddCommand(serveCmd(buildApp))

	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("%s version %s (build: %s)\n", appName, Version, BuildTime)
		},
	})

	return cmd
}

// defaultUserID picks a stable single-user default so the CLI works with no
// flags at all.
func defaultUserID() string {
	if u := os.Getenv("TRIAGE_USER"); u != "" {
		return u
	}
	return "default"
}

func noteCmd(newApp func() (*app, error)) *cobra.Command {
	var (
		filePath   string
		meetingRef string
		dryRun     bool
	)

	cmd := &cobra.Command{
		Use:   "note [text]",
		Short: "Capture a note and turn it into tasks",
		Long: `Extracts tasks from a note, checks each one against your open tasks
for duplicates, and commits the results: likely duplicates are folded into
the existing task, everything else is created fresh.

The note comes from the argument, --file, or stdin, in that order.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			note, err := readNote(args, filePath)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			var opts []engine.IntakeOption
			if meetingRef != "" {
				opts = append(opts, engine.WithMeetingRef(meetingRef))
			}

			session, err := a.engine.Intake(ctx, a.userID, note, opts...)
			if err != nil {
				return err
			}

			if len(session.Items) == 0 {
				fmt.Println("No action items found.")
				return nil
			}

			if dryRun {
				return printJSON(newSessionView(session))
			}

			results, err := a.engine.Commit(ctx, session)
			if err != nil && len(results) == 0 {
				return err
			}
			printCommitResults(session, results)
			return err
		},
	}

	cmd.Flags().StringVarP(&filePath, "file", "f", "", "Read the note from a file")
	cmd.Flags().StringVar(&meetingRef, "meeting", "", "Meeting or transcript this note came from")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Show extracted tasks without committing")

	return cmd
}

func nextCmd(newApp func() (*app, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "next",
		Short: "Show the single task to work on right now",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			next, err := a.engine.NextTask(cmd.Context(), a.userID)
			if err != nil {
				return err
			}
			if next == nil {
				fmt.Println("Nothing open. Enjoy it.")
				return nil
			}

			fmt.Printf("→ %s\n", next.Title)
			if next.DueDate != nil {
				fmt.Printf("  due %s\n", next.DueDate.Format("Mon Jan 2 15:04"))
			}
			if next.EstimatedMinutes > 0 {
				fmt.Printf("  ~%d min\n", next.EstimatedMinutes)
			}
			fmt.Printf("  [%s] %s\n", next.Area, priority.Classify(*next).Label())
			return nil
		},
	}
}

func wipCmd(newApp func() (*app, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "wip",
		Short: "Show how many tasks are in progress",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			p, err := a.engine.WIPPressure(cmd.Context(), a.userID)
			if err != nil {
				return err
			}

			fmt.Printf("%d of %d in progress\n", p.Count, p.Limit)
			if p.Exceeded {
				fmt.Println("Over the limit. Consider finishing something before starting more.")
			}
			return nil
		},
	}
}

func matrixCmd(newApp func() (*app, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "matrix",
		Short: "Show open tasks by Eisenhower quadrant",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			m, err := a.engine.Matrix(cmd.Context(), a.userID)
			if err != nil {
				return err
			}

			for _, q := range []priority.Quadrant{
				priority.QuadrantDoFirst,
				priority.QuadrantSchedule,
				priority.QuadrantPlan,
				priority.QuadrantEliminate,
			} {
				tasks := m[q]
				if len(tasks) == 0 {
					continue
				}
				fmt.Printf("%s:\n", q.Label())
				for _, t := range tasks {
					fmt.Printf("  - %s\n", t.Title)
				}
			}
			return nil
		},
	}
}

func advanceCmd(newApp func() (*app, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "advance <task-id>",
		Short: "Cycle a task's status (todo → in-progress → done)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			updated, err := a.engine.AdvanceStatus(cmd.Context(), a.userID, args[0])
			if err != nil {
				return err
			}
			fmt.Printf("%s → %s\n", updated.Title, updated.Status)
			return nil
		},
	}
}

// readNote resolves the note text from args, a file, or stdin.
func readNote(args []string, filePath string) (string, error) {
	if len(args) > 0 {
		return strings.Join(args, " "), nil
	}
	if filePath != "" {
		data, err := os.ReadFile(filePath)
		if err != nil {
			return "", fmt.Errorf("read note file: %w", err)
		}
		return string(data), nil
	}

	data, err := readAllStdin()
	if err != nil {
		return "", fmt.Errorf("read note from stdin: %w", err)
	}
	if strings.TrimSpace(data) == "" {
		return "", fmt.Errorf("no note given: pass text, --file, or pipe to stdin")
	}
	return data, nil
}

func readAllStdin() (string, error) {
	info, err := os.Stdin.Stat()
	if err != nil {
		return "", err
	}
	// Refuse to block on an interactive terminal with no input.
	if info.Mode()&os.ModeCharDevice != 0 {
		return "", nil
	}
	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// sessionView is the dry-run JSON shape for a review session.
type sessionView struct {
	SessionID string        `json:"session_id"`
	Items     []sessionItem `json:"items"`
}

type sessionItem struct {
	Draft      task.Draft            `json:"draft"`
	Candidates []task.CandidateMatch `json:"candidates,omitempty"`
	Decision   review.DecisionKind   `json:"decision"`
}

func newSessionView(session *review.Session) sessionView {
	view := sessionView{
		SessionID: session.ID,
		Items:     make([]sessionItem, len(session.Items)),
	}
	for i, it := range session.Items {
		view.Items[i] = sessionItem{
			Draft:      it.Draft,
			Candidates: it.Candidates,
			Decision:   it.Decision.Kind(),
		}
	}
	return view
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printCommitResults(session *review.Session, results []review.CommitResult) {
	for i, res := range results {
		title := session.Items[i].Draft.Title
		switch res.Outcome {
		case review.OutcomeCreated:
			fmt.Printf("created: %s\n", title)
		case review.OutcomeMerged:
			fmt.Printf("merged:  %s → task %s\n", title, res.TaskID)
		case review.OutcomeSkipped:
			fmt.Printf("skipped: %s\n", title)
		case review.OutcomeFailed:
			fmt.Printf("FAILED:  %s (%v)\n", title, res.Err)
		}
	}
}

func setupLogger(logLevel string) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(logLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return logger
}
