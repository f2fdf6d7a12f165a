package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/clienthubhq/clienthub-api/internal/models"
)

// SQLiteDocumentRepository implements DocumentRepository for SQLite.
type SQLiteDocumentRepository struct {
	db *sql.DB
}

// NewSQLiteDocumentRepository creates a new SQLite document repository.
func NewSQLiteDocumentRepository(db *sql.DB) *SQLiteDocumentRepository {
	return &SQLiteDocumentRepository{db: db}
}

const documentColumns = `id, client_id, job_id, source_url, source_type, strategy_used,
	content_hash, title, text_length, low_content, fetched_at, created_at`

func (r *SQLiteDocumentRepository) Upsert(ctx context.Context, doc *models.Document) error {
	// Re-ingesting identical content refreshes the existing row instead of
	// growing the table; RETURNING hands back the canonical row ID.
	query := `
		INSERT INTO documents (id, client_id, job_id, source_url, source_type, strategy_used,
			content_hash, title, text_length, low_content, fetched_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(client_id, content_hash) DO UPDATE SET
			job_id = excluded.job_id,
			source_url = excluded.source_url,
			strategy_used = excluded.strategy_used,
			title = excluded.title,
			low_content = excluded.low_content,
			fetched_at = excluded.fetched_at
		RETURNING id
	`
	lowContent := 0
	if doc.LowContent {
		lowContent = 1
	}
	var id string
	err := r.db.QueryRowContext(ctx, query,
		doc.ID,
		doc.ClientID,
		nullString(doc.JobID),
		nullString(doc.SourceURL),
		doc.SourceType,
		nullString(string(doc.StrategyUsed)),
		doc.ContentHash,
		nullString(doc.Title),
		doc.TextLength,
		lowContent,
		doc.FetchedAt.Format(time.RFC3339),
		doc.CreatedAt.Format(time.RFC3339),
	).Scan(&id)
	if err != nil {
		return fmt.Errorf("failed to upsert document: %w", err)
	}
	doc.ID = id
	return nil
}

func (r *SQLiteDocumentRepository) GetByID(ctx context.Context, id string) (*models.Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents WHERE id = ?`
	return r.scanDocument(r.db.QueryRowContext(ctx, query, id))
}

func (r *SQLiteDocumentRepository) GetByJobID(ctx context.Context, jobID string) (*models.Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents WHERE job_id = ? ORDER BY created_at DESC LIMIT 1`
	return r.scanDocument(r.db.QueryRowContext(ctx, query, jobID))
}

func (r *SQLiteDocumentRepository) GetByClientAndHash(ctx context.Context, clientID, contentHash string) (*models.Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents WHERE client_id = ? AND content_hash = ?`
	return r.scanDocument(r.db.QueryRowContext(ctx, query, clientID, contentHash))
}

func (r *SQLiteDocumentRepository) ListByClientID(ctx context.Context, clientID string) ([]*models.Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents WHERE client_id = ? ORDER BY created_at DESC`
	rows, err := r.db.QueryContext(ctx, query, clientID)
	if err != nil {
		return nil, fmt.Errorf("failed to query documents: %w", err)
	}
	defer rows.Close()

	var docs []*models.Document
	for rows.Next() {
		doc, err := r.scanDocumentFromRows(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

func (r *SQLiteDocumentRepository) DeleteByClientID(ctx context.Context, clientID string) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM documents WHERE client_id = ?`, clientID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete documents: %w", err)
	}
	count, _ := result.RowsAffected()
	return count, nil
}

func (r *SQLiteDocumentRepository) scanDocument(row *sql.Row) (*models.Document, error) {
	var doc models.Document
	var jobID, sourceURL, strategyUsed, title sql.NullString
	var lowContent int
	var fetchedAt, createdAt string

	err := row.Scan(
		&doc.ID, &doc.ClientID, &jobID, &sourceURL, &doc.SourceType, &strategyUsed,
		&doc.ContentHash, &title, &doc.TextLength, &lowContent, &fetchedAt, &createdAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan document: %w", err)
	}

	doc.JobID = jobID.String
	doc.SourceURL = sourceURL.String
	doc.StrategyUsed = models.Strategy(strategyUsed.String)
	doc.Title = title.String
	doc.LowContent = lowContent == 1
	doc.FetchedAt, _ = time.Parse(time.RFC3339, fetchedAt)
	doc.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)

	return &doc, nil
}

func (r *SQLiteDocumentRepository) scanDocumentFromRows(rows *sql.Rows) (*models.Document, error) {
	var doc models.Document
	var jobID, sourceURL, strategyUsed, title sql.NullString
	var lowContent int
	var fetchedAt, createdAt string

	err := rows.Scan(
		&doc.ID, &doc.ClientID, &jobID, &sourceURL, &doc.SourceType, &strategyUsed,
		&doc.ContentHash, &title, &doc.TextLength, &lowContent, &fetchedAt, &createdAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan document: %w", err)
	}

	doc.JobID = jobID.String
	doc.SourceURL = sourceURL.String
	doc.StrategyUsed = models.Strategy(strategyUsed.String)
	doc.Title = title.String
	doc.LowContent = lowContent == 1
	doc.FetchedAt, _ = time.Parse(time.RFC3339, fetchedAt)
	doc.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)

	return &doc, nil
}
