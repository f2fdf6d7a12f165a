package routes

import (
	"context"

	"github.com/clienthubhq/clienthub-api/internal/http/handlers"
)

// StubHandlers returns a Handlers instance with stub implementations.
// All handlers return nil responses - these are only used for OpenAPI generation
// where Huma extracts type information from function signatures.
func StubHandlers() *Handlers {
	return &Handlers{
		// Public endpoints
		HealthCheck: stubHealthCheck,

		// Kubernetes probes
		Livez:  stubLivez,
		Readyz: stubReadyz,

		// Protected endpoint handlers
		Client:   &stubClientHandlers{},
		Scrape:   &stubScrapeHandlers{},
		Job:      &stubJobHandlers{},
		RAG:      &stubRAGHandlers{},
		Document: &stubDocumentHandlers{},
		Analysis: &stubAnalysisHandlers{},
		Auth:     &stubAuthHandlers{},
	}
}

// --- Public endpoint stubs ---

func stubHealthCheck(_ context.Context, _ *struct{}) (*handlers.HealthCheckOutput, error) {
	return nil, nil
}

func stubLivez(_ context.Context, _ *struct{}) (*handlers.LivezOutput, error) {
	return nil, nil
}

func stubReadyz(_ context.Context, _ *struct{}) (*handlers.ReadyzOutput, error) {
	return nil, nil
}

// --- Client handlers stub ---

type stubClientHandlers struct{}

func (s *stubClientHandlers) CreateClient(_ context.Context, _ *handlers.CreateClientInput) (*handlers.CreateClientOutput, error) {
	return nil, nil
}

func (s *stubClientHandlers) ListClients(_ context.Context, _ *handlers.ListClientsInput) (*handlers.ListClientsOutput, error) {
	return nil, nil
}

func (s *stubClientHandlers) GetClient(_ context.Context, _ *handlers.GetClientInput) (*handlers.GetClientOutput, error) {
	return nil, nil
}

func (s *stubClientHandlers) UpdateClient(_ context.Context, _ *handlers.UpdateClientInput) (*handlers.UpdateClientOutput, error) {
	return nil, nil
}

func (s *stubClientHandlers) DeleteClient(_ context.Context, _ *handlers.DeleteClientInput) (*handlers.DeleteClientOutput, error) {
	return nil, nil
}

// --- Scrape handlers stub ---

type stubScrapeHandlers struct{}

func (s *stubScrapeHandlers) CreateScrapeJob(_ context.Context, _ *handlers.CreateScrapeJobInput) (*handlers.CreateScrapeJobOutput, error) {
	return nil, nil
}

// --- Job handlers stub ---

type stubJobHandlers struct{}

func (s *stubJobHandlers) ListJobs(_ context.Context, _ *handlers.ListJobsInput) (*handlers.ListJobsOutput, error) {
	return nil, nil
}

func (s *stubJobHandlers) GetJob(_ context.Context, _ *handlers.GetJobInput) (*handlers.GetJobOutput, error) {
	return nil, nil
}

func (s *stubJobHandlers) CancelJob(_ context.Context, _ *handlers.CancelJobInput) (*handlers.CancelJobOutput, error) {
	return nil, nil
}

func (s *stubJobHandlers) ReprocessJob(_ context.Context, _ *handlers.ReprocessJobInput) (*handlers.ReprocessJobOutput, error) {
	return nil, nil
}

// --- RAG handlers stub ---

type stubRAGHandlers struct{}

func (s *stubRAGHandlers) QueryRAG(_ context.Context, _ *handlers.QueryRAGInput) (*handlers.QueryRAGOutput, error) {
	return nil, nil
}

func (s *stubRAGHandlers) SearchRAG(_ context.Context, _ *handlers.SearchRAGInput) (*handlers.SearchRAGOutput, error) {
	return nil, nil
}

// --- Document handlers stub ---

type stubDocumentHandlers struct{}

func (s *stubDocumentHandlers) AddDocument(_ context.Context, _ *handlers.AddDocumentInput) (*handlers.AddDocumentOutput, error) {
	return nil, nil
}

func (s *stubDocumentHandlers) ListClientDocuments(_ context.Context, _ *handlers.ListClientDocumentsInput) (*handlers.ListClientDocumentsOutput, error) {
	return nil, nil
}

func (s *stubDocumentHandlers) PurgeClientDocuments(_ context.Context, _ *handlers.PurgeClientDocumentsInput) (*handlers.PurgeClientDocumentsOutput, error) {
	return nil, nil
}

// --- Analysis handlers stub ---

type stubAnalysisHandlers struct{}

func (s *stubAnalysisHandlers) AnalyzeClient(_ context.Context, _ *handlers.AnalyzeClientInput) (*handlers.AnalyzeClientOutput, error) {
	return nil, nil
}

// --- Auth handlers stub ---

type stubAuthHandlers struct{}

func (s *stubAuthHandlers) CreateToken(_ context.Context, _ *handlers.CreateTokenInput) (*handlers.CreateTokenOutput, error) {
	return nil, nil
}
