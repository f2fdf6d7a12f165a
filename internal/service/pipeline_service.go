package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/oklog/ulid/v2"

	"github.com/clienthubhq/clienthub-api/internal/chunker"
	"github.com/clienthubhq/clienthub-api/internal/config"
	"github.com/clienthubhq/clienthub-api/internal/logging"
	"github.com/clienthubhq/clienthub-api/internal/models"
	"github.com/clienthubhq/clienthub-api/internal/repository"
	"github.com/clienthubhq/clienthub-api/internal/scrape"
	"github.com/clienthubhq/clienthub-api/internal/vector"
)

// StageError is a pipeline failure pinned to the stage it happened in. The
// worker persists it on the job row.
type StageError struct {
	Stage string
	Kind  string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Stage, e.Kind, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// JobError converts the failure into its persisted form.
func (e *StageError) JobError() models.JobError {
	return models.JobError{Stage: e.Stage, Kind: e.Kind, Message: e.Err.Error()}
}

// stageFailure classifies err into the error taxonomy at the given stage.
func stageFailure(stage string, err error) *StageError {
	kind := models.ErrKindInternal
	var fetchErr *scrape.FetchError
	switch {
	case errors.Is(err, context.Canceled):
		kind = models.ErrKindCancelled
	case errors.Is(err, context.DeadlineExceeded):
		kind = models.ErrKindTimeout
	case errors.As(err, &fetchErr):
		kind = string(fetchErr.Kind)
	case errors.Is(err, vector.ErrIndexUnavailable):
		kind = models.ErrKindIndexUnavailable
	}
	return &StageError{Stage: stage, Kind: kind, Err: err}
}

// PipelineService runs a claimed job through its stages: extract, persist,
// chunk, upsert. It does not touch job status; the worker owns transitions.
type PipelineService struct {
	cfg      *config.Config
	repos    *repository.Repositories
	selector *scrape.Selector
	chunker  *chunker.Chunker
	index    *vector.Index
	storage  *StorageService
	logger   *slog.Logger
}

// NewPipelineService creates a new pipeline service.
func NewPipelineService(cfg *config.Config, repos *repository.Repositories, selector *scrape.Selector, splitter *chunker.Chunker, index *vector.Index, storage *StorageService, logger *slog.Logger) *PipelineService {
	return &PipelineService{
		cfg:      cfg,
		repos:    repos,
		selector: selector,
		chunker:  splitter,
		index:    index,
		storage:  storage,
		logger:   logger,
	}
}

// Run executes a job and returns the result summary. A returned error is
// always a *StageError. Stage boundaries observe cancellation, so a partial
// run never leaves chunks behind: upsert is the final stage and all rows of
// a document land atomically or not at all.
func (s *PipelineService) Run(ctx context.Context, job *models.Job) (models.ResultSummary, error) {
	switch job.Type {
	case models.JobTypeReprocess:
		return s.runReprocess(ctx, job)
	default:
		return s.runScrape(ctx, job)
	}
}

func (s *PipelineService) runScrape(ctx context.Context, job *models.Job) (models.ResultSummary, error) {
	var summary models.ResultSummary

	doc, err := s.selector.Extract(ctx, job.URL, job.RequestedStrategy, s.extractOptions())
	if err != nil {
		return summary, stageFailure(models.StageExtract, err)
	}
	summary.PagesFetched = 1
	summary.BytesExtracted = int64(len(doc.Text))

	if err := ctx.Err(); err != nil {
		return summary, stageFailure(models.StagePersist, err)
	}

	if err := s.persistDocument(ctx, job, doc); err != nil {
		return summary, stageFailure(models.StagePersist, err)
	}

	if err := ctx.Err(); err != nil {
		return summary, stageFailure(models.StageChunk, err)
	}

	chunks := s.chunker.Split(doc)
	summary.ChunksProduced = len(chunks)

	if err := ctx.Err(); err != nil {
		return summary, stageFailure(models.StageUpsert, err)
	}

	result, err := s.index.Upsert(ctx, job.ClientID, chunks)
	if err != nil {
		return summary, stageFailure(models.StageUpsert, err)
	}

	logging.FromContext(ctx, s.logger).Info("pipeline finished",
		"strategy_used", doc.StrategyUsed,
		"chunks_produced", len(chunks),
		"chunks_indexed", result.Indexed,
		"chunks_skipped", result.Skipped,
		"low_content", doc.LowContent,
	)
	return summary, nil
}

func (s *PipelineService) runReprocess(ctx context.Context, job *models.Job) (models.ResultSummary, error) {
	var summary models.ResultSummary

	row, err := s.repos.Document.GetByJobID(ctx, job.ParentJobID)
	if err != nil {
		return summary, stageFailure(models.StageOrchestrate, err)
	}
	if row == nil {
		return summary, &StageError{
			Stage: models.StageOrchestrate,
			Kind:  models.ErrKindValidation,
			Err:   fmt.Errorf("parent job %s has no document", job.ParentJobID),
		}
	}

	doc, err := s.storage.GetDocument(ctx, job.ClientID, row.ContentHash)
	if err != nil {
		return summary, stageFailure(models.StagePersist, err)
	}
	summary.BytesExtracted = int64(len(doc.Text))

	if err := ctx.Err(); err != nil {
		return summary, stageFailure(models.StageChunk, err)
	}

	chunks := s.chunker.Split(doc)
	summary.ChunksProduced = len(chunks)

	if err := ctx.Err(); err != nil {
		return summary, stageFailure(models.StageUpsert, err)
	}

	result, err := s.index.Reindex(ctx, job.ClientID, row.ContentHash, chunks)
	if err != nil {
		return summary, stageFailure(models.StageUpsert, err)
	}

	logging.FromContext(ctx, s.logger).Info("reprocess finished",
		"parent_job_id", job.ParentJobID,
		"chunks_indexed", result.Indexed,
	)
	return summary, nil
}

// persistDocument writes the payload to the sink and upserts the metadata
// row keyed on (client, content hash).
func (s *PipelineService) persistDocument(ctx context.Context, job *models.Job, doc *models.ExtractedDocument) error {
	if err := s.storage.PutDocument(ctx, job.ClientID, doc); err != nil {
		return err
	}

	row := &models.Document{
		ID:           ulid.Make().String(),
		ClientID:     job.ClientID,
		JobID:        job.ID,
		SourceURL:    doc.SourceURL,
		SourceType:   "scraped",
		Title:        doc.Title,
		StrategyUsed: doc.StrategyUsed,
		ContentHash:  doc.ContentHash,
		TextLength:   int64(utf8.RuneCountInString(doc.Text)),
		LowContent:   doc.LowContent,
		FetchedAt:    doc.FetchedAt,
		CreatedAt:    time.Now(),
	}
	if err := s.repos.Document.Upsert(ctx, row); err != nil {
		return fmt.Errorf("failed to upsert document row: %w", err)
	}
	return nil
}

func (s *PipelineService) extractOptions() scrape.Options {
	return scrape.Options{
		Timeout:             s.cfg.ScrapeTimeout,
		MaxFetchBytes:       s.cfg.MaxFetchBytes,
		UserAgent:           s.cfg.UserAgent,
		LowContentThreshold: s.cfg.LowContentThreshold,
	}
}
