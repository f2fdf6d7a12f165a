// Package worker drains the job queue: it claims queued jobs, runs the
// pipeline under the job deadline, and records the terminal state.
package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/clienthubhq/clienthub-api/internal/logging"
	"github.com/clienthubhq/clienthub-api/internal/models"
	"github.com/clienthubhq/clienthub-api/internal/repository"
	"github.com/clienthubhq/clienthub-api/internal/service"
)

// Worker processes background jobs.
type Worker struct {
	jobRepo       repository.JobRepository
	jobs          *service.JobService
	pipeline      *service.PipelineService
	notify        *service.NotifyService
	pollInterval  time.Duration
	concurrency   int
	jobTimeout    time.Duration
	shutdownGrace time.Duration
	inFlight      atomic.Int64
	stop          chan struct{}
	wg            sync.WaitGroup
	logger        *slog.Logger
}

// Config holds worker configuration.
type Config struct {
	PollInterval  time.Duration
	Concurrency   int
	JobTimeout    time.Duration
	ShutdownGrace time.Duration
}

// New creates a new worker.
func New(
	jobRepo repository.JobRepository,
	jobs *service.JobService,
	pipeline *service.PipelineService,
	notify *service.NotifyService,
	cfg Config,
	logger *slog.Logger,
) *Worker {
	if cfg.PollInterval == 0 {
		cfg.PollInterval = 5 * time.Second
	}
	if cfg.Concurrency == 0 {
		cfg.Concurrency = 3
	}
	if cfg.JobTimeout == 0 {
		cfg.JobTimeout = 5 * time.Minute
	}
	if cfg.ShutdownGrace == 0 {
		cfg.ShutdownGrace = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{
		jobRepo:       jobRepo,
		jobs:          jobs,
		pipeline:      pipeline,
		notify:        notify,
		pollInterval:  cfg.PollInterval,
		concurrency:   cfg.Concurrency,
		jobTimeout:    cfg.JobTimeout,
		shutdownGrace: cfg.ShutdownGrace,
		stop:          make(chan struct{}),
		logger:        logger.With("component", "worker"),
	}
}

// Start begins processing jobs.
func (w *Worker) Start(ctx context.Context) {
	w.logger.Info("starting", "concurrency", w.concurrency, "poll_interval", w.pollInterval.String())

	for i := 0; i < w.concurrency; i++ {
		w.wg.Add(1)
		go w.runWorker(ctx, i)
	}
}

// Busy reports whether any job is currently in flight.
func (w *Worker) Busy() bool {
	return w.inFlight.Load() > 0
}

// Stop stops claiming new jobs and waits up to the shutdown grace period
// for in-flight jobs to finish.
func (w *Worker) Stop() {
	w.logger.Info("stopping")
	close(w.stop)

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		w.logger.Info("stopped")
	case <-time.After(w.shutdownGrace):
		w.logger.Warn("shutdown grace period expired with jobs still in flight")
	}
}

func (w *Worker) runWorker(ctx context.Context, workerID int) {
	defer w.wg.Done()

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stop:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.processNextJob(ctx, workerID)
		}
	}
}

func (w *Worker) processNextJob(ctx context.Context, workerID int) {
	job, err := w.jobRepo.ClaimQueued(ctx)
	if err != nil {
		w.logger.Error("failed to claim job", "worker_id", workerID, "error", err)
		return
	}
	if job == nil {
		return // Queue is empty
	}

	w.inFlight.Add(1)
	defer w.inFlight.Add(-1)

	w.logger.Info("processing job",
		"worker_id", workerID,
		"job_id", job.ID,
		"type", job.Type,
		"url", job.URL,
	)

	// The job context carries the deadline, cooperative cancellation and
	// the log scoping IDs; Cancel reaches it through the registry.
	runCtx, cancel := context.WithTimeout(ctx, w.jobTimeout)
	runCtx = logging.WithJobID(runCtx, job.ID)
	runCtx = logging.WithClientID(runCtx, job.ClientID)
	w.jobs.RegisterRunning(job.ID, cancel)

	started := time.Now()
	summary, runErr := w.pipeline.Run(runCtx, job)

	w.jobs.UnregisterRunning(job.ID)
	cancel()

	w.finishJob(job, summary, runErr, time.Since(started))
}

// finishJob records the terminal state and fires the notification. The
// writes use a fresh context: the outcome must land even when the claim
// context died mid-run.
func (w *Worker) finishJob(job *models.Job, summary models.ResultSummary, runErr error, took time.Duration) {
	ctx := context.Background()

	switch {
	case runErr == nil:
		if _, err := w.jobRepo.MarkSucceeded(ctx, job.ID, summary); err != nil {
			w.logger.Error("failed to mark job succeeded", "job_id", job.ID, "error", err)
			return
		}
		w.logger.Info("job succeeded",
			"job_id", job.ID,
			"chunks_produced", summary.ChunksProduced,
			"took", took.String(),
		)

	default:
		var stageErr *service.StageError
		jobErr := models.JobError{Stage: models.StageOrchestrate, Kind: models.ErrKindInternal, Message: runErr.Error()}
		if errors.As(runErr, &stageErr) {
			jobErr = stageErr.JobError()
		}

		if jobErr.Kind == models.ErrKindCancelled {
			if _, err := w.jobRepo.MarkCancelled(ctx, job.ID); err != nil {
				w.logger.Error("failed to mark job cancelled", "job_id", job.ID, "error", err)
				return
			}
			w.logger.Info("job cancelled", "job_id", job.ID, "stage", jobErr.Stage, "took", took.String())
		} else {
			if _, err := w.jobRepo.MarkFailed(ctx, job.ID, jobErr); err != nil {
				w.logger.Error("failed to mark job failed", "job_id", job.ID, "error", err)
				return
			}
			w.logger.Warn("job failed",
				"job_id", job.ID,
				"stage", jobErr.Stage,
				"kind", jobErr.Kind,
				"error", jobErr.Message,
				"took", took.String(),
			)
		}
	}

	fresh, err := w.jobRepo.GetByID(ctx, job.ID)
	if err != nil || fresh == nil {
		w.logger.Error("failed to reload finished job", "job_id", job.ID, "error", err)
		return
	}
	w.notify.JobFinished(fresh)
}
