package service

import (
	"context"
	"testing"
	"time"

	"github.com/clienthubhq/clienthub-api/internal/models"
)

func seedJob(t *testing.T, repo *mockJobRepository, id string, status models.JobStatus, age time.Duration) {
	t.Helper()
	now := time.Now()
	job := &models.Job{
		ID:        id,
		ClientID:  "client_1",
		Type:      models.JobTypeScrape,
		Status:    status,
		URL:       "https://example.com",
		CreatedAt: now.Add(-age),
		UpdatedAt: now.Add(-age),
	}
	if err := repo.Create(context.Background(), job); err != nil {
		t.Fatalf("Create() error: %v", err)
	}
}

func TestCleanupOldJobs(t *testing.T) {
	jobs := newMockJobRepository()
	seedJob(t, jobs, "old_done", models.JobStatusSucceeded, 48*time.Hour)
	seedJob(t, jobs, "old_failed", models.JobStatusFailed, 48*time.Hour)
	seedJob(t, jobs, "old_running", models.JobStatusRunning, 48*time.Hour)
	seedJob(t, jobs, "fresh_done", models.JobStatusSucceeded, time.Hour)

	svc := NewCleanupService(jobs, discardLogger())
	result, err := svc.CleanupOldJobs(context.Background(), 24*time.Hour)
	if err != nil {
		t.Fatalf("CleanupOldJobs() error: %v", err)
	}
	if result.JobsDeleted != 2 {
		t.Errorf("JobsDeleted = %d, want 2", result.JobsDeleted)
	}

	// Non-terminal rows never age out, however old.
	if job, _ := jobs.GetByID(context.Background(), "old_running"); job == nil {
		t.Error("expected the running job to survive")
	}
	if job, _ := jobs.GetByID(context.Background(), "fresh_done"); job == nil {
		t.Error("expected the fresh job to survive")
	}
	if job, _ := jobs.GetByID(context.Background(), "old_done"); job != nil {
		t.Error("expected the old finished job to be deleted")
	}
}

func TestRunScheduledCleanup_RunsImmediatelyAndStops(t *testing.T) {
	jobs := newMockJobRepository()
	seedJob(t, jobs, "old_done", models.JobStatusSucceeded, 48*time.Hour)

	svc := NewCleanupService(jobs, discardLogger())
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		svc.RunScheduledCleanup(ctx, 24*time.Hour, time.Hour)
		close(done)
	}()

	// The initial pass runs before the first tick.
	deadline := time.After(2 * time.Second)
	for {
		if job, _ := jobs.GetByID(context.Background(), "old_done"); job == nil {
			break
		}
		select {
		case <-deadline:
			t.Fatal("timed out waiting for the initial cleanup pass")
		case <-time.After(10 * time.Millisecond):
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for the cleanup loop to stop")
	}
}
