package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/clienthubhq/clienthub-api/internal/models"
)

// SQLiteChunkRepository implements ChunkRepository for SQLite.
type SQLiteChunkRepository struct {
	db *sql.DB
}

// NewSQLiteChunkRepository creates a new SQLite chunk repository.
func NewSQLiteChunkRepository(db *sql.DB) *SQLiteChunkRepository {
	return &SQLiteChunkRepository{db: db}
}

// existingIDsBatch bounds the IN clause size per query.
const existingIDsBatch = 500

// UpsertBatch writes all chunks inside one transaction, so a failed batch
// leaves the namespace exactly as it was.
func (r *SQLiteChunkRepository) UpsertBatch(ctx context.Context, chunks []models.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO chunks (client_id, chunk_id, content_hash, source_url, chunk_offset, text, embedding, fetched_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(client_id, chunk_id) DO UPDATE SET
			content_hash = excluded.content_hash,
			source_url = excluded.source_url,
			chunk_offset = excluded.chunk_offset,
			text = excluded.text,
			embedding = excluded.embedding,
			fetched_at = excluded.fetched_at
	`
	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to prepare chunk upsert: %w", err)
	}
	defer stmt.Close()

	for _, chunk := range chunks {
		_, err := stmt.ExecContext(ctx,
			chunk.ClientID,
			chunk.ID,
			chunk.ContentHash,
			chunk.SourceURL,
			chunk.Offset,
			chunk.Text,
			chunk.Embedding,
			chunk.FetchedAt.Format(time.RFC3339),
		)
		if err != nil {
			return fmt.Errorf("failed to upsert chunk %s: %w", chunk.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit chunk batch: %w", err)
	}
	return nil
}

func (r *SQLiteChunkRepository) ExistingIDs(ctx context.Context, clientID string, ids []string) (map[string]struct{}, error) {
	existing := make(map[string]struct{})

	for start := 0; start < len(ids); start += existingIDsBatch {
		end := start + existingIDsBatch
		if end > len(ids) {
			end = len(ids)
		}
		batch := ids[start:end]

		placeholders := make([]string, len(batch))
		args := make([]interface{}, 0, len(batch)+1)
		args = append(args, clientID)
		for i, id := range batch {
			placeholders[i] = "?"
			args = append(args, id)
		}

		query := fmt.Sprintf(
			"SELECT chunk_id FROM chunks WHERE client_id = ? AND chunk_id IN (%s)",
			strings.Join(placeholders, ","),
		)
		rows, err := r.db.QueryContext(ctx, query, args...)
		if err != nil {
			return nil, fmt.Errorf("failed to query existing chunks: %w", err)
		}

		for rows.Next() {
			var id string
			if err := rows.Scan(&id); err != nil {
				rows.Close()
				return nil, fmt.Errorf("failed to scan chunk id: %w", err)
			}
			existing[id] = struct{}{}
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, fmt.Errorf("error iterating chunk ids: %w", err)
		}
		rows.Close()
	}

	return existing, nil
}

func (r *SQLiteChunkRepository) ListByClient(ctx context.Context, clientID string) ([]models.Chunk, error) {
	query := `
		SELECT client_id, chunk_id, content_hash, source_url, chunk_offset, text, embedding, fetched_at
		FROM chunks WHERE client_id = ?
	`
	rows, err := r.db.QueryContext(ctx, query, clientID)
	if err != nil {
		return nil, fmt.Errorf("failed to query chunks: %w", err)
	}
	defer rows.Close()

	var chunks []models.Chunk
	for rows.Next() {
		var chunk models.Chunk
		var fetchedAt string
		err := rows.Scan(
			&chunk.ClientID, &chunk.ID, &chunk.ContentHash, &chunk.SourceURL,
			&chunk.Offset, &chunk.Text, &chunk.Embedding, &fetchedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan chunk: %w", err)
		}
		chunk.FetchedAt, _ = time.Parse(time.RFC3339, fetchedAt)
		chunks = append(chunks, chunk)
	}
	return chunks, rows.Err()
}

func (r *SQLiteChunkRepository) ListSourcesByClient(ctx context.Context, clientID string) ([]string, error) {
	query := `
		SELECT DISTINCT source_url FROM chunks
		WHERE client_id = ? AND source_url != ''
		ORDER BY source_url
	`
	rows, err := r.db.QueryContext(ctx, query, clientID)
	if err != nil {
		return nil, fmt.Errorf("failed to query chunk sources: %w", err)
	}
	defer rows.Close()

	var sources []string
	for rows.Next() {
		var source string
		if err := rows.Scan(&source); err != nil {
			return nil, fmt.Errorf("failed to scan source: %w", err)
		}
		sources = append(sources, source)
	}
	return sources, rows.Err()
}

func (r *SQLiteChunkRepository) DeleteByClient(ctx context.Context, clientID string) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM chunks WHERE client_id = ?`, clientID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete chunks: %w", err)
	}
	count, _ := result.RowsAffected()
	return count, nil
}

func (r *SQLiteChunkRepository) DeleteByContentHash(ctx context.Context, clientID, contentHash string) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM chunks WHERE client_id = ? AND content_hash = ?`,
		clientID, contentHash,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete chunks: %w", err)
	}
	count, _ := result.RowsAffected()
	return count, nil
}

func (r *SQLiteChunkRepository) CountByClient(ctx context.Context, clientID string) (int64, error) {
	var count int64
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chunks WHERE client_id = ?`, clientID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count chunks: %w", err)
	}
	return count, nil
}
