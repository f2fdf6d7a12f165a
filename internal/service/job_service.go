package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/clienthubhq/clienthub-api/internal/config"
	"github.com/clienthubhq/clienthub-api/internal/models"
	"github.com/clienthubhq/clienthub-api/internal/repository"
)

var (
	ErrJobNotFound     = errors.New("job not found")
	ErrJobNotCancelled = errors.New("job is already finished")
	ErrNoDocument      = errors.New("job produced no document")
	ErrInvalidURL      = errors.New("invalid target URL")
	ErrInvalidStrategy = errors.New("unknown scraping strategy")
)

// JobService handles job submission and lifecycle operations. Execution
// belongs to the worker; this service only moves rows and fires the
// in-process cancel hooks the worker registers.
type JobService struct {
	cfg     *config.Config
	repos   *repository.Repositories
	storage *StorageService
	notify  *NotifyService
	logger  *slog.Logger

	mu      sync.Mutex
	running map[string]context.CancelFunc
}

// NewJobService creates a new job service.
func NewJobService(cfg *config.Config, repos *repository.Repositories, storage *StorageService, notify *NotifyService, logger *slog.Logger) *JobService {
	return &JobService{
		cfg:     cfg,
		repos:   repos,
		storage: storage,
		notify:  notify,
		logger:  logger,
		running: make(map[string]context.CancelFunc),
	}
}

// SubmitScrapeInput holds a scrape submission.
type SubmitScrapeInput struct {
	ClientID  string
	URL       string
	Strategy  models.Strategy
	NotifyURL string
}

// SubmitOutput points the caller at the queued job.
type SubmitOutput struct {
	JobID     string `json:"job_id"`
	Status    string `json:"status"`
	StatusURL string `json:"status_url"`
}

// Submit validates a scrape request and enqueues it. Never blocks on
// execution; the worker picks the job up.
func (s *JobService) Submit(ctx context.Context, input SubmitScrapeInput) (*SubmitOutput, error) {
	client, err := s.repos.Client.GetByID(ctx, input.ClientID)
	if err != nil {
		return nil, fmt.Errorf("failed to get client: %w", err)
	}
	if client == nil {
		return nil, ErrClientNotFound
	}
	if !client.IsActive {
		return nil, ErrClientInactive
	}

	if err := validateTargetURL(input.URL); err != nil {
		return nil, err
	}

	strategy := input.Strategy
	if strategy == "" {
		strategy = models.StrategyAuto
	}
	if !strategy.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStrategy, input.Strategy)
	}

	now := time.Now()
	job := &models.Job{
		ID:                ulid.Make().String(),
		ClientID:          input.ClientID,
		Type:              models.JobTypeScrape,
		Status:            models.JobStatusQueued,
		URL:               input.URL,
		RequestedStrategy: strategy,
		NotifyURL:         input.NotifyURL,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	if err := s.repos.Job.Create(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to create job: %w", err)
	}

	s.logger.Info("job submitted", "job_id", job.ID, "client_id", job.ClientID, "url", job.URL)
	return &SubmitOutput{
		JobID:     job.ID,
		Status:    string(job.Status),
		StatusURL: fmt.Sprintf("%s/api/v1/jobs/%s", s.cfg.BaseURL, job.ID),
	}, nil
}

// Get retrieves a job snapshot by ID. Returns nil, nil when absent. Never
// blocks on a running job.
func (s *JobService) Get(ctx context.Context, jobID string) (*models.Job, error) {
	job, err := s.repos.Job.GetByID(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return job, nil
}

// List returns a client's jobs, newest first.
func (s *JobService) List(ctx context.Context, clientID string, limit, offset int) ([]*models.Job, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	jobs, err := s.repos.Job.GetByClientID(ctx, clientID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	return jobs, nil
}

// Cancel requests cancellation. Queued jobs move to cancelled immediately;
// running jobs are cancelled cooperatively through the worker's job context
// and move once the pipeline observes it. Returns the fresh snapshot.
func (s *JobService) Cancel(ctx context.Context, jobID string) (*models.Job, error) {
	job, err := s.repos.Job.GetByID(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	if job == nil {
		return nil, ErrJobNotFound
	}

	switch job.Status {
	case models.JobStatusQueued:
		moved, err := s.repos.Job.CancelIfQueued(ctx, jobID)
		if err != nil {
			return nil, fmt.Errorf("failed to cancel job: %w", err)
		}
		if !moved {
			// Claimed between the read and the update; fall through to
			// the running path on the fresh row.
			return s.Cancel(ctx, jobID)
		}
		job, err = s.repos.Job.GetByID(ctx, jobID)
		if err != nil {
			return nil, fmt.Errorf("failed to get job: %w", err)
		}
		s.notify.JobFinished(job)
		s.logger.Info("job cancelled", "job_id", jobID, "was", "queued")
		return job, nil

	case models.JobStatusRunning:
		if cancel, ok := s.cancelFunc(jobID); ok {
			cancel()
			s.logger.Info("job cancellation requested", "job_id", jobID)
			return job, nil
		}
		// No live worker owns the job (it predates a restart); move the
		// row directly.
		moved, err := s.repos.Job.MarkCancelled(ctx, jobID)
		if err != nil {
			return nil, fmt.Errorf("failed to cancel job: %w", err)
		}
		if moved {
			job, err = s.repos.Job.GetByID(ctx, jobID)
			if err != nil {
				return nil, fmt.Errorf("failed to get job: %w", err)
			}
			s.notify.JobFinished(job)
			s.logger.Info("job cancelled", "job_id", jobID, "was", "orphaned running")
		}
		return job, nil

	default:
		return nil, fmt.Errorf("%w: status is %s", ErrJobNotCancelled, job.Status)
	}
}

// Reprocess creates a derived queued job that re-chunks and re-embeds the
// parent's stored payload without refetching. Requires the parent to have
// produced a document and the sink to be enabled.
func (s *JobService) Reprocess(ctx context.Context, jobID string) (*SubmitOutput, error) {
	parent, err := s.repos.Job.GetByID(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	if parent == nil {
		return nil, ErrJobNotFound
	}

	doc, err := s.repos.Document.GetByJobID(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to get document: %w", err)
	}
	if doc == nil {
		return nil, ErrNoDocument
	}

	if !s.storage.IsEnabled() {
		return nil, ErrStorageDisabled
	}

	now := time.Now()
	job := &models.Job{
		ID:                ulid.Make().String(),
		ClientID:          parent.ClientID,
		Type:              models.JobTypeReprocess,
		ParentJobID:       parent.ID,
		Status:            models.JobStatusQueued,
		URL:               parent.URL,
		RequestedStrategy: parent.RequestedStrategy,
		NotifyURL:         parent.NotifyURL,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	if err := s.repos.Job.Create(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to create job: %w", err)
	}

	s.logger.Info("reprocess queued", "job_id", job.ID, "parent_job_id", parent.ID)
	return &SubmitOutput{
		JobID:     job.ID,
		Status:    string(job.Status),
		StatusURL: fmt.Sprintf("%s/api/v1/jobs/%s", s.cfg.BaseURL, job.ID),
	}, nil
}

// SweepStale fails any job still marked running. Runs at startup before the
// worker pool exists, so every running row is an orphan from a previous
// process.
func (s *JobService) SweepStale(ctx context.Context) (int64, error) {
	swept, err := s.repos.Job.MarkStaleRunningJobsFailed(ctx, 0)
	if err != nil {
		return 0, fmt.Errorf("failed to sweep stale jobs: %w", err)
	}
	if swept > 0 {
		s.logger.Warn("swept stale running jobs", "count", swept)
	}
	return swept, nil
}

// RegisterRunning stores the cancel hook for a job the worker just claimed.
func (s *JobService) RegisterRunning(jobID string, cancel context.CancelFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running[jobID] = cancel
}

// UnregisterRunning drops a job's cancel hook once the worker is done.
func (s *JobService) UnregisterRunning(jobID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.running, jobID)
}

func (s *JobService) cancelFunc(jobID string) (context.CancelFunc, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cancel, ok := s.running[jobID]
	return cancel, ok
}

// validateTargetURL accepts absolute http(s) URLs with a host.
func validateTargetURL(raw string) error {
	if raw == "" {
		return fmt.Errorf("%w: empty", ErrInvalidURL)
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("%w: scheme must be http or https", ErrInvalidURL)
	}
	if parsed.Host == "" {
		return fmt.Errorf("%w: missing host", ErrInvalidURL)
	}
	return nil
}
