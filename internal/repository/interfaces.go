// Package repository defines repository interfaces for data access.
package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/clienthubhq/clienthub-api/internal/models"
)

// ClientRepository defines methods for client data access.
type ClientRepository interface {
	Create(ctx context.Context, client *models.Client) error
	GetByID(ctx context.Context, id string) (*models.Client, error)
	GetByEmail(ctx context.Context, email string) (*models.Client, error)
	List(ctx context.Context, includeInactive bool, limit, offset int) ([]*models.Client, error)
	Update(ctx context.Context, client *models.Client) error
	// Deactivate soft deletes a client. The row stays so job and document
	// history keeps resolving.
	Deactivate(ctx context.Context, id string) error
}

// JobRepository defines methods for job data access. Status transitions are
// enforced in SQL: every transition method guards on the expected current
// status and reports whether the row actually moved.
type JobRepository interface {
	Create(ctx context.Context, job *models.Job) error
	GetByID(ctx context.Context, id string) (*models.Job, error)
	GetByClientID(ctx context.Context, clientID string, limit, offset int) ([]*models.Job, error)
	// ClaimQueued atomically claims the oldest queued job and returns it.
	// Returns nil when the queue is empty.
	ClaimQueued(ctx context.Context) (*models.Job, error)
	MarkSucceeded(ctx context.Context, id string, summary models.ResultSummary) (bool, error)
	MarkFailed(ctx context.Context, id string, jobErr models.JobError) (bool, error)
	// CancelIfQueued flips a queued job straight to cancelled.
	CancelIfQueued(ctx context.Context, id string) (bool, error)
	// MarkCancelled finishes a running job as cancelled after its context
	// fired.
	MarkCancelled(ctx context.Context, id string) (bool, error)
	// MarkStaleRunningJobsFailed fails running jobs whose worker is gone,
	// e.g. after a restart. Returns the number of jobs swept.
	MarkStaleRunningJobsFailed(ctx context.Context, maxAge time.Duration) (int64, error)
	// DeleteOlderThan deletes terminal jobs older than the given time and
	// returns the deleted job IDs.
	DeleteOlderThan(ctx context.Context, before time.Time) ([]string, error)
}

// DocumentRepository defines methods for document metadata access. The full
// extracted payload lives in the document sink; these rows carry the
// metadata needed for listing and reprocessing.
type DocumentRepository interface {
	// Upsert inserts the document or, when (client_id, content_hash) already
	// exists, refreshes the mutable fields. doc.ID is set to the canonical
	// row ID either way.
	Upsert(ctx context.Context, doc *models.Document) error
	GetByID(ctx context.Context, id string) (*models.Document, error)
	GetByJobID(ctx context.Context, jobID string) (*models.Document, error)
	GetByClientAndHash(ctx context.Context, clientID, contentHash string) (*models.Document, error)
	ListByClientID(ctx context.Context, clientID string) ([]*models.Document, error)
	DeleteByClientID(ctx context.Context, clientID string) (int64, error)
}

// ChunkRepository defines methods for chunk vector access. It is the
// storage half of the vector index.
type ChunkRepository interface {
	// UpsertBatch writes all chunks in one transaction.
	UpsertBatch(ctx context.Context, chunks []models.Chunk) error
	ExistingIDs(ctx context.Context, clientID string, ids []string) (map[string]struct{}, error)
	ListByClient(ctx context.Context, clientID string) ([]models.Chunk, error)
	ListSourcesByClient(ctx context.Context, clientID string) ([]string, error)
	DeleteByClient(ctx context.Context, clientID string) (int64, error)
	DeleteByContentHash(ctx context.Context, clientID, contentHash string) (int64, error)
	CountByClient(ctx context.Context, clientID string) (int64, error)
}

// Repositories holds all repository instances.
type Repositories struct {
	Client   ClientRepository
	Job      JobRepository
	Document DocumentRepository
	Chunk    ChunkRepository
}

// NewRepositories creates all repository instances.
func NewRepositories(db *sql.DB) *Repositories {
	return &Repositories{
		Client:   NewSQLiteClientRepository(db),
		Job:      NewSQLiteJobRepository(db),
		Document: NewSQLiteDocumentRepository(db),
		Chunk:    NewSQLiteChunkRepository(db),
	}
}
