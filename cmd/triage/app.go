package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/spf13/cobra"

	"github.com/mindgrove/triage/api"
	"github.com/mindgrove/triage/config"
	"github.com/mindgrove/triage/engine"
	"github.com/mindgrove/triage/inbox"
	"github.com/mindgrove/triage/llm"
	"github.com/mindgrove/triage/metric"
	"github.com/mindgrove/triage/storage"
	"github.com/mindgrove/triage/storage/memory"
	"github.com/mindgrove/triage/storage/natskv"
)

// app is the wired-up application shared by all subcommands.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	engine  *engine.Engine
	metrics *metric.Metrics
	userID  string

	nc *nats.Conn
}

// newApp loads configuration and builds the engine with its store and
// completion client.
func newApp(configPath, logLevel, userID string) (*app, error) {
	logger := setupLogger(logLevel)

	cfg, err := loadConfig(configPath, logger)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	a := &app{
		cfg:     cfg,
		logger:  logger,
		metrics: metric.New(),
		userID:  userID,
	}

	store, err := a.buildStore(context.Background())
	if err != nil {
		return nil, err
	}

	client, err := buildLLMClient(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("build llm client: %w", err)
	}

	a.engine = engine.New(store, client,
		engine.WithLogger(logger),
		engine.WithWIPLimit(cfg.WIP.Limit),
		engine.WithMatchDegradeHook(a.metrics.MatchesDegraded.Inc))

	return a, nil
}

// Close releases held connections.
func (a *app) Close() {
	if a.nc != nil {
		a.nc.Close()
	}
}

func loadConfig(configPath string, logger *slog.Logger) (*config.Config, error) {
	if configPath != "" {
		cfg, err := config.LoadFromFile(configPath)
		if err != nil {
			return nil, err
		}
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
		return cfg, nil
	}
	return config.NewLoader(logger).Load()
}

// buildStore creates the configured task store backend.
func (a *app) buildStore(ctx context.Context) (storage.Store, error) {
	switch a.cfg.Store.Backend {
	case config.StoreBackendNATS:
		nc, err := nats.Connect(a.cfg.Store.NATSURL,
			nats.Name(appName),
			nats.MaxReconnects(-1))
		if err != nil {
			return nil, fmt.Errorf("connect to NATS: %w", err)
		}
		a.nc = nc

		js, err := jetstream.New(nc)
		if err != nil {
			return nil, fmt.Errorf("create JetStream context: %w", err)
		}

		ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()

		opts := []natskv.Option{natskv.WithLogger(a.logger)}
		if a.cfg.Store.Bucket != "" {
			opts = append(opts, natskv.WithBucket(a.cfg.Store.Bucket))
		}
		store, err := natskv.NewStore(ctx, js, opts...)
		if err != nil {
			return nil, fmt.Errorf("create task bucket: %w", err)
		}

		a.logger.Info("Using NATS task store", "url", a.cfg.Store.NATSURL)
		return store, nil

	default:
		a.logger.Info("Using in-memory task store; tasks will not survive restarts")
		return memory.NewStore(), nil
	}
}

// buildLLMClient assembles the endpoint fallback chain from config.
func buildLLMClient(cfg *config.Config, logger *slog.Logger) (*llm.Client, error) {
	endpoints := []llm.Endpoint{{
		Provider: cfg.Model.Provider,
		URL:      cfg.Model.Endpoint,
		Model:    cfg.Model.Model,
	}}
	for _, fb := range cfg.Model.Fallbacks {
		endpoints = append(endpoints, llm.Endpoint{
			Provider: fb.Provider,
			URL:      fb.Endpoint,
			Model:    fb.Model,
		})
	}

	opts := []llm.ClientOption{llm.WithLogger(logger)}
	if cfg.Model.Timeout > 0 {
		opts = append(opts, llm.WithTimeout(cfg.Model.Timeout))
	}

	return llm.NewClient(endpoints, opts...)
}

func serveCmd(newApp func() (*app, error)) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and inbox watcher",
		Long: `Starts the triage HTTP API and, when configured, the inbox watcher.

Endpoints are registered under /api/triage/ and Prometheus metrics are
exposed at /metrics.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			if addr == "" {
				addr = a.cfg.HTTP.Addr
			}
			return a.serve(addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (overrides config)")
	return cmd
}

// serve runs the HTTP server until SIGINT/SIGTERM, then drains.
func (a *app) serve(addr string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	mux := http.NewServeMux()
	apiServer := api.NewServer(a.engine,
		api.WithLogger(a.logger),
		api.WithMetrics(a.metrics))
	apiServer.RegisterHTTPHandlers("api/triage", mux)
	mux.Handle("/metrics", a.metrics.Handler())

	if a.cfg.Inbox.Enabled {
		if err := a.startInbox(ctx); err != nil {
			return fmt.Errorf("start inbox: %w", err)
		}
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("HTTP API listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	a.logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// startInbox launches the watcher and its processor in the background.
func (a *app) startInbox(ctx context.Context) error {
	watcher, err := inbox.NewWatcher(a.cfg.Inbox.Dir,
		inbox.WithDebounce(a.cfg.Inbox.Debounce),
		inbox.WithLogger(a.logger))
	if err != nil {
		return err
	}
	if err := watcher.Start(ctx); err != nil {
		return err
	}

	processor := inbox.NewProcessor(a.engine, a.userID,
		inbox.WithProcessorLogger(a.logger),
		inbox.WithProcessorMetrics(a.metrics))
	go processor.Run(ctx, watcher.Events())

	go func() {
		<-ctx.Done()
		_ = watcher.Stop()
	}()

	return nil
}
