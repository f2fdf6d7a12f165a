package handlers

import (
	"context"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/clienthubhq/clienthub-api/internal/models"
	"github.com/clienthubhq/clienthub-api/internal/service"
)

// DocumentHandler handles manual document ingestion and per-client document
// listing and purge.
type DocumentHandler struct {
	docSvc *service.DocumentService
}

// NewDocumentHandler creates a new document handler.
func NewDocumentHandler(docSvc *service.DocumentService) *DocumentHandler {
	return &DocumentHandler{docSvc: docSvc}
}

// DocumentBody is a document metadata row in API responses. The raw text
// lives in the sink, not in the API.
type DocumentBody struct {
	ID           string    `json:"id" example:"01J9F0M2T3GW7H0QXS3S8B3EXD" doc:"Document identifier (ULID)"`
	ClientID     string    `json:"client_id"`
	JobID        string    `json:"job_id,omitempty" doc:"Scrape job that produced this document, if any"`
	SourceURL    string    `json:"source_url,omitempty"`
	SourceType   string    `json:"source_type" example:"manual" doc:"scraped or manual"`
	Title        string    `json:"title,omitempty"`
	StrategyUsed string    `json:"strategy_used,omitempty" doc:"Extraction strategy that produced the text"`
	ContentHash  string    `json:"content_hash" doc:"SHA-256 of the extracted text"`
	TextLength   int64     `json:"text_length" doc:"Extracted text length in runes"`
	LowContent   bool      `json:"low_content,omitempty" doc:"Extraction yielded suspiciously little text"`
	FetchedAt    time.Time `json:"fetched_at"`
	CreatedAt    time.Time `json:"created_at"`
}

func documentBody(doc *models.Document) DocumentBody {
	return DocumentBody{
		ID:           doc.ID,
		ClientID:     doc.ClientID,
		JobID:        doc.JobID,
		SourceURL:    doc.SourceURL,
		SourceType:   doc.SourceType,
		Title:        doc.Title,
		StrategyUsed: string(doc.StrategyUsed),
		ContentHash:  doc.ContentHash,
		TextLength:   doc.TextLength,
		LowContent:   doc.LowContent,
		FetchedAt:    doc.FetchedAt,
		CreatedAt:    doc.CreatedAt,
	}
}

// AddDocumentInput represents manual document ingestion request.
type AddDocumentInput struct {
	Body struct {
		ClientID  string `json:"client_id" minLength:"1" example:"01J9F0M2T3GW7H0QXS3S8B3EXD" doc:"Client to ingest for"`
		Content   string `json:"content" minLength:"1" doc:"Raw text to index, bypassing extraction"`
		Title     string `json:"title,omitempty" maxLength:"500" doc:"Display title"`
		SourceURL string `json:"source_url,omitempty" format:"uri" doc:"Origin of the content, if it has one"`
	}
}

// AddDocumentOutput represents manual document ingestion response.
type AddDocumentOutput struct {
	Body DocumentBody
}

// AddDocument ingests text directly: the content is persisted, chunked and
// embedded synchronously, so the document is queryable when this returns.
func (h *DocumentHandler) AddDocument(ctx context.Context, input *AddDocumentInput) (*AddDocumentOutput, error) {
	if callerSubject(ctx) == "" {
		return nil, huma.Error401Unauthorized("unauthorized")
	}

	doc, err := h.docSvc.Add(ctx, service.AddDocumentInput{
		ClientID:  input.Body.ClientID,
		Content:   input.Body.Content,
		Title:     input.Body.Title,
		SourceURL: input.Body.SourceURL,
	})
	if err != nil {
		return nil, mapServiceError("failed to add document", err)
	}

	return &AddDocumentOutput{Body: documentBody(doc)}, nil
}

// ListClientDocumentsInput represents document listing request.
type ListClientDocumentsInput struct {
	ID string `path:"id" doc:"Client ID"`
}

// ListClientDocumentsOutput represents document listing response.
type ListClientDocumentsOutput struct {
	Body struct {
		Documents []DocumentBody `json:"documents"`
		Count     int            `json:"count"`
	}
}

// ListClientDocuments returns a client's document metadata, newest first.
func (h *DocumentHandler) ListClientDocuments(ctx context.Context, input *ListClientDocumentsInput) (*ListClientDocumentsOutput, error) {
	if callerSubject(ctx) == "" {
		return nil, huma.Error401Unauthorized("unauthorized")
	}

	docs, err := h.docSvc.List(ctx, input.ID)
	if err != nil {
		return nil, mapServiceError("failed to list documents", err)
	}

	bodies := make([]DocumentBody, 0, len(docs))
	for _, doc := range docs {
		bodies = append(bodies, documentBody(doc))
	}

	out := &ListClientDocumentsOutput{}
	out.Body.Documents = bodies
	out.Body.Count = len(bodies)
	return out, nil
}

// PurgeClientDocumentsInput represents document purge request.
type PurgeClientDocumentsInput struct {
	ID string `path:"id" doc:"Client ID"`
}

// PurgeClientDocumentsOutput represents document purge response.
type PurgeClientDocumentsOutput struct {
	Body struct {
		DocumentsDeleted int64 `json:"documents_deleted"`
		ChunksDeleted    int64 `json:"chunks_deleted"`
		PayloadsDeleted  int   `json:"payloads_deleted"`
	}
}

// PurgeClientDocuments removes everything indexed for a client: sink
// payloads, metadata rows and the vector namespace.
func (h *DocumentHandler) PurgeClientDocuments(ctx context.Context, input *PurgeClientDocumentsInput) (*PurgeClientDocumentsOutput, error) {
	if callerSubject(ctx) == "" {
		return nil, huma.Error401Unauthorized("unauthorized")
	}

	result, err := h.docSvc.Purge(ctx, input.ID)
	if err != nil {
		return nil, mapServiceError("failed to purge documents", err)
	}

	out := &PurgeClientDocumentsOutput{}
	out.Body.DocumentsDeleted = result.DocumentsDeleted
	out.Body.ChunksDeleted = result.ChunksDeleted
	out.Body.PayloadsDeleted = result.PayloadsDeleted
	return out, nil
}
