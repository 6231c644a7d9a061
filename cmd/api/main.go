package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq" // postgres driver

	"github.com/nyashahama/kpi-copilot-backend/internal/agent"
	"github.com/nyashahama/kpi-copilot-backend/internal/api"
	"github.com/nyashahama/kpi-copilot-backend/internal/config"
	"github.com/nyashahama/kpi-copilot-backend/internal/jobs"
	"github.com/nyashahama/kpi-copilot-backend/internal/narrative"
	"github.com/nyashahama/kpi-copilot-backend/internal/store"
)

func main() {
	// ── Logger ────────────────────────────────────────────────────────────────
	// JSON in production, pretty text in development.
	var logger *slog.Logger
	if os.Getenv("ENV") == "production" {
		logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		}))
	} else {
		logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		}))
	}
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	// ── Config ────────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	logger.Info("config loaded", "env", cfg.Env, "port", cfg.Port, "ai_enabled", cfg.AIEnabled())

	// ── Database ──────────────────────────────────────────────────────────────
	st, err := store.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	defer st.Close()
	logger.Info("database connected")

	// Best-effort schema bootstrap. A locked-down database (no DDL grants) is
	// a supported deployment; the tables just have to exist already.
	schemaCtx, cancelSchema := context.WithTimeout(context.Background(), 15*time.Second)
	if err := st.EnsureSchema(schemaCtx); err != nil {
		logger.Warn("schema bootstrap failed, assuming tables exist", "error", err)
	}
	cancelSchema()

	// ── AI ────────────────────────────────────────────────────────────────────
	// Both clients are optional. Without OPENAI_API_KEY the orchestrator skips
	// straight to the rule-based strategies and narratives are rule-only.
	var agentClient agent.Client
	var generator narrative.Generator
	if cfg.AIEnabled() {
		agentClient = agent.NewOpenAIClient(cfg.OpenAIAPIKey, cfg.OpenAIModel)
		generator = narrative.NewOpenAIGenerator(cfg.OpenAIAPIKey, cfg.OpenAIModel)
		logger.Info("ai: openai agent and narrative generator enabled", "model", cfg.OpenAIModel)
	} else {
		logger.Info("ai: disabled, rule-based strategies only")
	}

	engine := narrative.NewEngine(generator, logger)
	orch := agent.New(agentClient, st, engine, logger)

	// ── Jobs ──────────────────────────────────────────────────────────────────
	jobStore := jobs.NewStore()
	runner := jobs.NewRunner(orch, jobStore, jobs.RunnerConfig{
		Workers:    cfg.WorkerCount,
		JobTimeout: cfg.JobTimeout,
	}, logger)

	// ── HTTP server ───────────────────────────────────────────────────────────
	handler := api.NewServer(
		st,
		orch,
		jobStore,
		runner, // *Runner satisfies jobs.Enqueuer
		api.Config{
			BaseURL:     cfg.BaseURL,
			Env:         cfg.Env,
			APIKey:      cfg.APIKey,
			CORSOrigins: cfg.CORSOrigins,
			AIEnabled:   cfg.AIEnabled(),
			Model:       cfg.OpenAIModel,
		},
		logger,
	)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 90 * time.Second, // generous — the sync query path can wait on an LLM
		IdleTimeout:  120 * time.Second,
	}

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	// Root context cancelled by OS signal. Worker pool and HTTP server both
	// respect it.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Start the worker pool in a background goroutine. It blocks until ctx is done.
	go runner.Start(ctx)

	// Start the HTTP server in a background goroutine.
	serverErr := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Block until either a signal arrives or the server dies unexpectedly.
	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-serverErr:
		return fmt.Errorf("server error: %w", err)
	}

	// Give in-flight HTTP requests up to 20 seconds to finish.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	// The worker goroutine exits when ctx is cancelled (already done).
	logger.Info("shutdown complete")
	return nil
}
