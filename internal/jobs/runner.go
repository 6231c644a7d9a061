package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nyashahama/kpi-copilot-backend/internal/agent"
)

// ─── ENQUEUER INTERFACE ───────────────────────────────────────────────────────

// Enqueuer is the narrow interface the api package uses to hand off an
// accepted question. Keeping it here (not in api/) means api/ does not need
// to import the concrete Runner type.
//
// The concrete implementation is *Runner. In tests, any struct with a Submit
// method satisfies the interface.
type Enqueuer interface {
	Submit(ctx context.Context, jobID, question string) error
}

// ChainRunner is the slice of the orchestrator the runner needs.
// *agent.Orchestrator satisfies it; tests stub it with canned results.
type ChainRunner interface {
	Run(ctx context.Context, question string) (agent.Result, error)
}

// ─── RUNNER ───────────────────────────────────────────────────────────────────

// RunnerConfig holds tuning parameters for the Runner. Zero-valued fields
// fall back to DefaultRunnerConfig().
type RunnerConfig struct {
	// Workers is the number of concurrent job goroutines. Default: 3.
	Workers int

	// JobTimeout is the per-job context deadline. Default: 2 minutes.
	// Set this longer than your AI provider's p99 latency.
	JobTimeout time.Duration
}

// DefaultRunnerConfig returns safe production defaults.
func DefaultRunnerConfig() RunnerConfig {
	return RunnerConfig{
		Workers:    3,
		JobTimeout: 2 * time.Minute,
	}
}

type task struct {
	jobID    string
	question string
}

// Runner manages a pool of worker goroutines fed by an in-process channel.
// The job registry is in-memory only, so there is no recovery path: work
// submitted before a crash is simply gone, along with its record.
type Runner struct {
	chain  ChainRunner
	jobs   *Store
	cfg    RunnerConfig
	logger *slog.Logger

	queue chan task
	wg    sync.WaitGroup
}

// NewRunner constructs a Runner. Call Start() to begin processing.
func NewRunner(chain ChainRunner, jobs *Store, cfg RunnerConfig, logger *slog.Logger) *Runner {
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultRunnerConfig().Workers
	}
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = DefaultRunnerConfig().JobTimeout
	}

	return &Runner{
		chain:  chain,
		jobs:   jobs,
		cfg:    cfg,
		logger: logger,
		// Buffer = Workers*4 so Submit rarely rejects under normal load.
		queue: make(chan task, cfg.Workers*4),
	}
}

// Submit pushes a job onto the in-process channel. It satisfies the Enqueuer
// interface. If the channel is full it returns an error rather than blocking
// the HTTP response; the caller is expected to fail the job record.
func (r *Runner) Submit(_ context.Context, jobID, question string) error {
	select {
	case r.queue <- task{jobID: jobID, question: question}:
		r.logger.Info("jobs: submitted", "job_id", jobID)
		return nil
	default:
		return errors.New("jobs: queue is full")
	}
}

// Start launches the worker pool. It blocks until ctx is cancelled. Call it
// in a goroutine from main:
//
//	go runner.Start(ctx)
func (r *Runner) Start(ctx context.Context) {
	r.logger.Info("jobs: starting", "workers", r.cfg.Workers, "job_timeout", r.cfg.JobTimeout)

	for i := 0; i < r.cfg.Workers; i++ {
		r.wg.Add(1)
		go r.work(ctx, i)
	}

	r.wg.Wait()
	r.logger.Info("jobs: stopped")
}

// work is the inner loop for each worker goroutine.
func (r *Runner) work(ctx context.Context, id int) {
	defer r.wg.Done()
	log := r.logger.With("worker_id", id)
	log.Info("jobs: goroutine started")

	for {
		select {
		case <-ctx.Done():
			log.Info("jobs: goroutine stopping")
			return
		case t := <-r.queue:
			r.execute(ctx, t, log)
		}
	}
}

// execute runs one job through the orchestration chain and records the
// terminal state. A panic inside the chain fails the single job, never the
// worker pool.
func (r *Runner) execute(ctx context.Context, t task, log *slog.Logger) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Error("jobs: job panicked", "job_id", t.jobID, "panic", rec)
			r.jobs.MarkFailed(t.jobID, fmt.Sprintf("internal error: %v", rec))
		}
	}()

	r.jobs.MarkRunning(t.jobID)

	jobCtx, cancel := context.WithTimeout(ctx, r.cfg.JobTimeout)
	defer cancel()

	start := time.Now()
	result, err := r.chain.Run(jobCtx, t.question)
	if err != nil {
		log.Warn("jobs: job failed", "job_id", t.jobID, "error", err)
		r.jobs.MarkFailed(t.jobID, err.Error())
		return
	}

	r.jobs.MarkSucceeded(t.jobID, result)
	log.Info("jobs: job completed",
		"job_id", t.jobID,
		"mode", result.Mode,
		"latency_ms", time.Since(start).Milliseconds(),
	)
}
