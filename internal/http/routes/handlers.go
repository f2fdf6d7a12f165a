// Package routes provides shared route registration for the ClientHub API.
// This allows both the main server and the OpenAPI generator to use
// the same route definitions, ensuring the OpenAPI spec is always in sync.
package routes

import (
	"context"

	"github.com/clienthubhq/clienthub-api/internal/http/handlers"
)

// ClientHandlers defines the interface for client record operations.
type ClientHandlers interface {
	CreateClient(ctx context.Context, input *handlers.CreateClientInput) (*handlers.CreateClientOutput, error)
	ListClients(ctx context.Context, input *handlers.ListClientsInput) (*handlers.ListClientsOutput, error)
	GetClient(ctx context.Context, input *handlers.GetClientInput) (*handlers.GetClientOutput, error)
	UpdateClient(ctx context.Context, input *handlers.UpdateClientInput) (*handlers.UpdateClientOutput, error)
	DeleteClient(ctx context.Context, input *handlers.DeleteClientInput) (*handlers.DeleteClientOutput, error)
}

// ScrapeHandlers defines the interface for scrape job submission.
type ScrapeHandlers interface {
	CreateScrapeJob(ctx context.Context, input *handlers.CreateScrapeJobInput) (*handlers.CreateScrapeJobOutput, error)
}

// JobHandlers defines the interface for job status and lifecycle operations.
type JobHandlers interface {
	ListJobs(ctx context.Context, input *handlers.ListJobsInput) (*handlers.ListJobsOutput, error)
	GetJob(ctx context.Context, input *handlers.GetJobInput) (*handlers.GetJobOutput, error)
	CancelJob(ctx context.Context, input *handlers.CancelJobInput) (*handlers.CancelJobOutput, error)
	ReprocessJob(ctx context.Context, input *handlers.ReprocessJobInput) (*handlers.ReprocessJobOutput, error)
}

// RAGHandlers defines the interface for retrieval and question answering.
type RAGHandlers interface {
	QueryRAG(ctx context.Context, input *handlers.QueryRAGInput) (*handlers.QueryRAGOutput, error)
	SearchRAG(ctx context.Context, input *handlers.SearchRAGInput) (*handlers.SearchRAGOutput, error)
}

// DocumentHandlers defines the interface for document operations.
type DocumentHandlers interface {
	AddDocument(ctx context.Context, input *handlers.AddDocumentInput) (*handlers.AddDocumentOutput, error)
	ListClientDocuments(ctx context.Context, input *handlers.ListClientDocumentsInput) (*handlers.ListClientDocumentsOutput, error)
	PurgeClientDocuments(ctx context.Context, input *handlers.PurgeClientDocumentsInput) (*handlers.PurgeClientDocumentsOutput, error)
}

// AnalysisHandlers defines the interface for client analysis operations.
type AnalysisHandlers interface {
	AnalyzeClient(ctx context.Context, input *handlers.AnalyzeClientInput) (*handlers.AnalyzeClientOutput, error)
}

// AuthHandlers defines the interface for token exchange.
type AuthHandlers interface {
	CreateToken(ctx context.Context, input *handlers.CreateTokenInput) (*handlers.CreateTokenOutput, error)
}

// Handlers aggregates all route handlers. The server wires real
// implementations; the OpenAPI generator uses stubs.
type Handlers struct {
	// Public endpoints
	HealthCheck func(ctx context.Context, input *struct{}) (*handlers.HealthCheckOutput, error)

	// Kubernetes probes (hidden from docs)
	Livez  func(ctx context.Context, input *struct{}) (*handlers.LivezOutput, error)
	Readyz func(ctx context.Context, input *struct{}) (*handlers.ReadyzOutput, error)

	// Protected endpoint handlers
	Client   ClientHandlers
	Scrape   ScrapeHandlers
	Job      JobHandlers
	RAG      RAGHandlers
	Document DocumentHandlers
	Analysis AnalysisHandlers
	Auth     AuthHandlers
}
