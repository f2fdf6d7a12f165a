package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/clienthubhq/clienthub-api/internal/repository"
)

// CleanupService removes old finished jobs. Documents, chunks and sink
// payloads are the client's corpus and are never aged out here; they go
// through the document purge instead.
type CleanupService struct {
	jobRepo repository.JobRepository
	logger  *slog.Logger
}

// NewCleanupService creates a new cleanup service.
func NewCleanupService(jobRepo repository.JobRepository, logger *slog.Logger) *CleanupService {
	return &CleanupService{
		jobRepo: jobRepo,
		logger:  logger.With("component", "cleanup"),
	}
}

// CleanupResult contains the results of a cleanup run.
type CleanupResult struct {
	JobsDeleted int
}

// CleanupOldJobs deletes terminal job rows older than maxAge. Queued and
// running rows are left alone regardless of age.
func (s *CleanupService) CleanupOldJobs(ctx context.Context, maxAge time.Duration) (*CleanupResult, error) {
	cutoff := time.Now().Add(-maxAge)

	deleted, err := s.jobRepo.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		s.logger.Error("failed to delete old jobs", "error", err)
		return nil, err
	}

	if len(deleted) > 0 {
		s.logger.Info("deleted old jobs", "count", len(deleted), "cutoff", cutoff.Format(time.RFC3339))
	}
	return &CleanupResult{JobsDeleted: len(deleted)}, nil
}

// RunScheduledCleanup runs cleanup immediately and then at the given
// interval until the context is cancelled. Intended to run as a background
// goroutine.
func (s *CleanupService) RunScheduledCleanup(ctx context.Context, maxAge, interval time.Duration) {
	s.logger.Info("starting scheduled cleanup",
		"max_age", maxAge.String(),
		"interval", interval.String(),
	)

	if _, err := s.CleanupOldJobs(ctx, maxAge); err != nil {
		s.logger.Error("initial cleanup failed", "error", err)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduled cleanup stopped")
			return
		case <-ticker.C:
			if _, err := s.CleanupOldJobs(ctx, maxAge); err != nil {
				s.logger.Error("scheduled cleanup failed", "error", err)
			}
		}
	}
}
