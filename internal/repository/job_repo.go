package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/clienthubhq/clienthub-api/internal/models"
)

// SQLiteJobRepository implements JobRepository for SQLite.
type SQLiteJobRepository struct {
	db *sql.DB
}

// NewSQLiteJobRepository creates a new SQLite job repository.
func NewSQLiteJobRepository(db *sql.DB) *SQLiteJobRepository {
	return &SQLiteJobRepository{db: db}
}

const jobColumns = `id, client_id, type, parent_job_id, target_url, requested_strategy, status,
	notify_url, error_stage, error_kind, error_message,
	pages_fetched, chunks_produced, bytes_extracted,
	created_at, updated_at, started_at, finished_at`

func (r *SQLiteJobRepository) Create(ctx context.Context, job *models.Job) error {
	query := `
		INSERT INTO jobs (id, client_id, type, parent_job_id, target_url, requested_strategy,
			status, notify_url, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, query,
		job.ID,
		job.ClientID,
		job.Type,
		nullString(job.ParentJobID),
		job.URL,
		job.RequestedStrategy,
		job.Status,
		nullString(job.NotifyURL),
		job.CreatedAt.Format(time.RFC3339),
		job.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to create job: %w", err)
	}
	return nil
}

func (r *SQLiteJobRepository) GetByID(ctx context.Context, id string) (*models.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE id = ?`
	return r.scanJob(r.db.QueryRowContext(ctx, query, id))
}

func (r *SQLiteJobRepository) GetByClientID(ctx context.Context, clientID string, limit, offset int) ([]*models.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE client_id = ? ORDER BY created_at DESC LIMIT ? OFFSET ?`
	rows, err := r.db.QueryContext(ctx, query, clientID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*models.Job
	for rows.Next() {
		job, err := r.scanJobFromRows(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

func (r *SQLiteJobRepository) ClaimQueued(ctx context.Context) (*models.Job, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}

	committed := false
	defer func() {
		if !committed {
			tx.Rollback()
		}
	}()

	// UPDATE ... RETURNING claims and fetches in one statement, so two
	// workers can never claim the same job.
	now := time.Now().UTC().Format(time.RFC3339)
	query := `
		UPDATE jobs
		SET status = 'running', started_at = ?, updated_at = ?
		WHERE id = (
			SELECT id FROM jobs
			WHERE status = 'queued'
			ORDER BY created_at ASC
			LIMIT 1
		)
		RETURNING ` + jobColumns

	job, err := r.scanJob(tx.QueryRowContext(ctx, query, now, now))
	if err != nil {
		return nil, fmt.Errorf("failed to claim job: %w", err)
	}
	if job == nil {
		// No queued jobs, which is the common case
		return nil, nil
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	committed = true

	return job, nil
}

func (r *SQLiteJobRepository) MarkSucceeded(ctx context.Context, id string, summary models.ResultSummary) (bool, error) {
	now := time.Now().UTC().Format(time.RFC3339)
	query := `
		UPDATE jobs
		SET status = 'succeeded', pages_fetched = ?, chunks_produced = ?, bytes_extracted = ?,
			finished_at = ?, updated_at = ?
		WHERE id = ? AND status = 'running'
	`
	result, err := r.db.ExecContext(ctx, query,
		summary.PagesFetched, summary.ChunksProduced, summary.BytesExtracted,
		now, now, id,
	)
	if err != nil {
		return false, fmt.Errorf("failed to mark job succeeded: %w", err)
	}
	affected, _ := result.RowsAffected()
	return affected > 0, nil
}

func (r *SQLiteJobRepository) MarkFailed(ctx context.Context, id string, jobErr models.JobError) (bool, error) {
	now := time.Now().UTC().Format(time.RFC3339)
	query := `
		UPDATE jobs
		SET status = 'failed', error_stage = ?, error_kind = ?, error_message = ?,
			finished_at = ?, updated_at = ?
		WHERE id = ? AND status = 'running'
	`
	result, err := r.db.ExecContext(ctx, query,
		jobErr.Stage, jobErr.Kind, jobErr.Message,
		now, now, id,
	)
	if err != nil {
		return false, fmt.Errorf("failed to mark job failed: %w", err)
	}
	affected, _ := result.RowsAffected()
	return affected > 0, nil
}

func (r *SQLiteJobRepository) CancelIfQueued(ctx context.Context, id string) (bool, error) {
	now := time.Now().UTC().Format(time.RFC3339)
	query := `
		UPDATE jobs SET status = 'cancelled', finished_at = ?, updated_at = ?
		WHERE id = ? AND status = 'queued'
	`
	result, err := r.db.ExecContext(ctx, query, now, now, id)
	if err != nil {
		return false, fmt.Errorf("failed to cancel queued job: %w", err)
	}
	affected, _ := result.RowsAffected()
	return affected > 0, nil
}

func (r *SQLiteJobRepository) MarkCancelled(ctx context.Context, id string) (bool, error) {
	now := time.Now().UTC().Format(time.RFC3339)
	query := `
		UPDATE jobs SET status = 'cancelled', finished_at = ?, updated_at = ?
		WHERE id = ? AND status = 'running'
	`
	result, err := r.db.ExecContext(ctx, query, now, now, id)
	if err != nil {
		return false, fmt.Errorf("failed to mark job cancelled: %w", err)
	}
	affected, _ := result.RowsAffected()
	return affected > 0, nil
}

// MarkStaleRunningJobsFailed marks jobs that have been running longer than
// maxAge as failed. This cleans up jobs left in "running" state by a
// restart, since no worker will ever finish them.
func (r *SQLiteJobRepository) MarkStaleRunningJobsFailed(ctx context.Context, maxAge time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-maxAge).Format(time.RFC3339)
	now := time.Now().UTC().Format(time.RFC3339)

	query := `
		UPDATE jobs
		SET status = 'failed', error_stage = ?, error_kind = ?, error_message = ?,
			finished_at = ?, updated_at = ?
		WHERE status = 'running' AND started_at < ?
	`
	result, err := r.db.ExecContext(ctx, query,
		models.StageOrchestrate,
		models.ErrKindStale,
		"job abandoned: no live worker (server restart?)",
		now, now, cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to mark stale jobs as failed: %w", err)
	}

	count, _ := result.RowsAffected()
	return count, nil
}

// DeleteOlderThan deletes terminal jobs older than the specified time and
// returns the deleted job IDs.
func (r *SQLiteJobRepository) DeleteOlderThan(ctx context.Context, before time.Time) ([]string, error) {
	query := `SELECT id FROM jobs WHERE created_at < ? AND status IN ('succeeded', 'failed', 'cancelled')`
	rows, err := r.db.QueryContext(ctx, query, before.Format(time.RFC3339))
	if err != nil {
		return nil, fmt.Errorf("failed to query old jobs: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan job id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating job ids: %w", err)
	}

	if len(ids) == 0 {
		return nil, nil
	}

	deleteQuery := `DELETE FROM jobs WHERE created_at < ? AND status IN ('succeeded', 'failed', 'cancelled')`
	if _, err := r.db.ExecContext(ctx, deleteQuery, before.Format(time.RFC3339)); err != nil {
		return nil, fmt.Errorf("failed to delete old jobs: %w", err)
	}

	return ids, nil
}

func (r *SQLiteJobRepository) scanJob(row *sql.Row) (*models.Job, error) {
	var job models.Job
	var parentJobID, notifyURL, errorStage, errorKind, errorMessage sql.NullString
	var startedAt, finishedAt sql.NullString
	var pagesFetched, chunksProduced int
	var bytesExtracted int64
	var createdAt, updatedAt string

	err := row.Scan(
		&job.ID, &job.ClientID, &job.Type, &parentJobID, &job.URL, &job.RequestedStrategy, &job.Status,
		&notifyURL, &errorStage, &errorKind, &errorMessage,
		&pagesFetched, &chunksProduced, &bytesExtracted,
		&createdAt, &updatedAt, &startedAt, &finishedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan job: %w", err)
	}

	hydrateJob(&job, parentJobID, notifyURL, errorStage, errorKind, errorMessage,
		pagesFetched, chunksProduced, bytesExtracted, createdAt, updatedAt, startedAt, finishedAt)
	return &job, nil
}

func (r *SQLiteJobRepository) scanJobFromRows(rows *sql.Rows) (*models.Job, error) {
	var job models.Job
	var parentJobID, notifyURL, errorStage, errorKind, errorMessage sql.NullString
	var startedAt, finishedAt sql.NullString
	var pagesFetched, chunksProduced int
	var bytesExtracted int64
	var createdAt, updatedAt string

	err := rows.Scan(
		&job.ID, &job.ClientID, &job.Type, &parentJobID, &job.URL, &job.RequestedStrategy, &job.Status,
		&notifyURL, &errorStage, &errorKind, &errorMessage,
		&pagesFetched, &chunksProduced, &bytesExtracted,
		&createdAt, &updatedAt, &startedAt, &finishedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan job: %w", err)
	}

	hydrateJob(&job, parentJobID, notifyURL, errorStage, errorKind, errorMessage,
		pagesFetched, chunksProduced, bytesExtracted, createdAt, updatedAt, startedAt, finishedAt)
	return &job, nil
}

func hydrateJob(job *models.Job,
	parentJobID, notifyURL, errorStage, errorKind, errorMessage sql.NullString,
	pagesFetched, chunksProduced int, bytesExtracted int64,
	createdAt, updatedAt string, startedAt, finishedAt sql.NullString,
) {
	job.ParentJobID = parentJobID.String
	job.NotifyURL = notifyURL.String

	if errorStage.Valid || errorKind.Valid || errorMessage.Valid {
		job.Error = &models.JobError{
			Stage:   errorStage.String,
			Kind:    errorKind.String,
			Message: errorMessage.String,
		}
	}
	if job.Status == models.JobStatusSucceeded {
		job.Summary = &models.ResultSummary{
			PagesFetched:   pagesFetched,
			ChunksProduced: chunksProduced,
			BytesExtracted: bytesExtracted,
		}
	}

	job.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	job.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	if startedAt.Valid {
		t, _ := time.Parse(time.RFC3339, startedAt.String)
		job.StartedAt = &t
	}
	if finishedAt.Valid {
		t, _ := time.Parse(time.RFC3339, finishedAt.String)
		job.FinishedAt = &t
	}
}

// Helper functions
func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
