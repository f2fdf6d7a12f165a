package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/oklog/ulid/v2"

	"github.com/clienthubhq/clienthub-api/internal/chunker"
	"github.com/clienthubhq/clienthub-api/internal/models"
	"github.com/clienthubhq/clienthub-api/internal/repository"
	"github.com/clienthubhq/clienthub-api/internal/vector"
)

// DocumentService handles manual document ingestion and the per-client
// document listing and purge operations.
type DocumentService struct {
	repos   *repository.Repositories
	chunker *chunker.Chunker
	index   *vector.Index
	storage *StorageService
	logger  *slog.Logger
}

// NewDocumentService creates a new document service.
func NewDocumentService(repos *repository.Repositories, splitter *chunker.Chunker, index *vector.Index, storage *StorageService, logger *slog.Logger) *DocumentService {
	return &DocumentService{
		repos:   repos,
		chunker: splitter,
		index:   index,
		storage: storage,
		logger:  logger,
	}
}

// AddDocumentInput holds a manual ingestion request.
type AddDocumentInput struct {
	ClientID  string
	Content   string
	Title     string
	SourceURL string
}

// Add ingests a document directly, bypassing extraction: the content is
// persisted, chunked and embedded synchronously before returning.
func (s *DocumentService) Add(ctx context.Context, input AddDocumentInput) (*models.Document, error) {
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
	if input.Content == "" {
		return nil, fmt.Errorf("document content is required")
	}

	sum := sha256.Sum256([]byte(input.Content))
	contentHash := hex.EncodeToString(sum[:])

	sourceURL := input.SourceURL
	if sourceURL == "" {
		// Stable per content, so re-adding the same text dedupes cleanly.
		sourceURL = "manual://" + contentHash[:12]
	}

	now := time.Now()
	doc := &models.ExtractedDocument{
		SourceURL:   sourceURL,
		Title:       input.Title,
		Text:        input.Content,
		FetchedAt:   now,
		ContentHash: contentHash,
	}

	if err := s.storage.PutDocument(ctx, input.ClientID, doc); err != nil {
		return nil, fmt.Errorf("failed to store document payload: %w", err)
	}

	row := &models.Document{
		ID:          ulid.Make().String(),
		ClientID:    input.ClientID,
		SourceURL:   sourceURL,
		SourceType:  "manual",
		Title:       input.Title,
		ContentHash: contentHash,
		TextLength:  int64(utf8.RuneCountInString(input.Content)),
		FetchedAt:   now,
		CreatedAt:   now,
	}
	if err := s.repos.Document.Upsert(ctx, row); err != nil {
		return nil, fmt.Errorf("failed to upsert document row: %w", err)
	}

	chunks := s.chunker.Split(doc)
	result, err := s.index.Upsert(ctx, input.ClientID, chunks)
	if err != nil {
		return nil, fmt.Errorf("failed to index document: %w", err)
	}

	s.logger.Info("document added",
		"client_id", input.ClientID,
		"document_id", row.ID,
		"chunks_indexed", result.Indexed,
		"chunks_skipped", result.Skipped,
	)
	return row, nil
}

// List returns a client's document metadata rows, newest first.
func (s *DocumentService) List(ctx context.Context, clientID string) ([]*models.Document, error) {
	client, err := s.repos.Client.GetByID(ctx, clientID)
	if err != nil {
		return nil, fmt.Errorf("failed to get client: %w", err)
	}
	if client == nil {
		return nil, ErrClientNotFound
	}

	docs, err := s.repos.Document.ListByClientID(ctx, clientID)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	return docs, nil
}

// PurgeResult reports what a purge removed.
type PurgeResult struct {
	DocumentsDeleted int64 `json:"documents_deleted"`
	ChunksDeleted    int64 `json:"chunks_deleted"`
	PayloadsDeleted  int   `json:"payloads_deleted"`
}

// Purge removes every document a client has: sink payloads, metadata rows
// and the vector namespace.
func (s *DocumentService) Purge(ctx context.Context, clientID string) (*PurgeResult, error) {
	client, err := s.repos.Client.GetByID(ctx, clientID)
	if err != nil {
		return nil, fmt.Errorf("failed to get client: %w", err)
	}
	if client == nil {
		return nil, ErrClientNotFound
	}

	payloads, err := s.storage.DeleteClientDocuments(ctx, clientID)
	if err != nil {
		return nil, fmt.Errorf("failed to purge sink payloads: %w", err)
	}

	docs, err := s.repos.Document.DeleteByClientID(ctx, clientID)
	if err != nil {
		return nil, fmt.Errorf("failed to delete document rows: %w", err)
	}

	chunks, err := s.index.Purge(ctx, clientID)
	if err != nil {
		return nil, fmt.Errorf("failed to purge namespace: %w", err)
	}

	s.logger.Info("documents purged",
		"client_id", clientID,
		"documents", docs,
		"chunks", chunks,
		"payloads", payloads,
	)
	return &PurgeResult{
		DocumentsDeleted: docs,
		ChunksDeleted:    chunks,
		PayloadsDeleted:  payloads,
	}, nil
}
