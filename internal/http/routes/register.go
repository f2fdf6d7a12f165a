package routes

import (
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/clienthubhq/clienthub-api/internal/http/mw"
)

// Register registers all API routes with the given Huma API instance.
// Pass real handler implementations for the main server, or stub implementations
// for OpenAPI generation.
func Register(api huma.API, h *Handlers) {
	// =========================================================================
	// Public Routes (no auth required)
	// =========================================================================

	// Health check
	mw.PublicGet(api, "/api/v1/health", h.HealthCheck,
		mw.WithTags("Health"),
		mw.WithSummary("Health check"),
		mw.WithOperationID("healthCheck"))

	// Token exchange: the API key in the body is the credential
	mw.PublicPost(api, "/api/v1/auth/token", h.Auth.CreateToken,
		mw.WithTags("Auth"),
		mw.WithSummary("Exchange an API key for a short-lived token"),
		mw.WithOperationID("createToken"))

	// Kubernetes probes (hidden from docs - internal use only)
	mw.HiddenGet(api, "/healthz", h.Livez)
	mw.HiddenGet(api, "/readyz", h.Readyz)

	// =========================================================================
	// Protected Routes (require bearer auth)
	// =========================================================================

	// --- Clients ---
	mw.ProtectedPost(api, "/api/v1/clients", h.Client.CreateClient,
		mw.WithTags("Clients"),
		mw.WithSummary("Create client"),
		mw.WithOperationID("createClient"),
		mw.WithStatus(http.StatusCreated))
	mw.ProtectedGet(api, "/api/v1/clients", h.Client.ListClients,
		mw.WithTags("Clients"),
		mw.WithSummary("List clients"),
		mw.WithOperationID("listClients"))
	mw.ProtectedGet(api, "/api/v1/clients/{id}", h.Client.GetClient,
		mw.WithTags("Clients"),
		mw.WithSummary("Get client"),
		mw.WithOperationID("getClient"))
	mw.ProtectedPut(api, "/api/v1/clients/{id}", h.Client.UpdateClient,
		mw.WithTags("Clients"),
		mw.WithSummary("Update client"),
		mw.WithOperationID("updateClient"))
	mw.ProtectedDelete(api, "/api/v1/clients/{id}", h.Client.DeleteClient,
		mw.WithTags("Clients"),
		mw.WithSummary("Delete client"),
		mw.WithDescription("Soft-deletes the client and purges its vector namespace. The record stays listable with include_inactive; the indexed content is removed."),
		mw.WithOperationID("deleteClient"))

	// --- Scraping ---
	mw.ProtectedPost(api, "/api/v1/scrape", h.Scrape.CreateScrapeJob,
		mw.WithTags("Scraping"),
		mw.WithSummary("Submit scrape job"),
		mw.WithDescription("Queues a scrape-and-ingest job and returns immediately. Poll the job endpoint or supply notify_url to learn the outcome."),
		mw.WithOperationID("createScrapeJob"),
		mw.WithStatus(http.StatusAccepted))

	// --- Jobs ---
	mw.ProtectedGet(api, "/api/v1/jobs", h.Job.ListJobs,
		mw.WithTags("Jobs"),
		mw.WithSummary("List jobs"),
		mw.WithOperationID("listJobs"))
	mw.ProtectedGet(api, "/api/v1/jobs/{id}", h.Job.GetJob,
		mw.WithTags("Jobs"),
		mw.WithSummary("Get job details"),
		mw.WithOperationID("getJob"))
	mw.ProtectedPost(api, "/api/v1/jobs/{id}/cancel", h.Job.CancelJob,
		mw.WithTags("Jobs"),
		mw.WithSummary("Cancel job"),
		mw.WithOperationID("cancelJob"))
	mw.ProtectedPost(api, "/api/v1/jobs/{id}/reprocess", h.Job.ReprocessJob,
		mw.WithTags("Jobs"),
		mw.WithSummary("Reprocess job"),
		mw.WithDescription("Queues a new job that re-chunks and re-embeds the stored document of a succeeded job without refetching the page."),
		mw.WithOperationID("reprocessJob"),
		mw.WithStatus(http.StatusAccepted))

	// --- RAG ---
	mw.ProtectedPost(api, "/api/v1/rag/query", h.RAG.QueryRAG,
		mw.WithTags("RAG"),
		mw.WithSummary("Ask a question"),
		mw.WithDescription("Retrieves the most relevant chunks for the question and generates a grounded answer when a generation backend is configured."),
		mw.WithOperationID("queryRag"))
	mw.ProtectedPost(api, "/api/v1/rag/search", h.RAG.SearchRAG,
		mw.WithTags("RAG"),
		mw.WithSummary("Search indexed content"),
		mw.WithDescription("Retrieval only: returns ranked chunks and the assembled context without invoking the generation backend."),
		mw.WithOperationID("searchRag"))

	// --- Documents ---
	mw.ProtectedPost(api, "/api/v1/documents", h.Document.AddDocument,
		mw.WithTags("Documents"),
		mw.WithSummary("Add document"),
		mw.WithDescription("Ingests raw text directly, bypassing extraction. The document is chunked and embedded before the call returns."),
		mw.WithOperationID("addDocument"),
		mw.WithStatus(http.StatusCreated))
	mw.ProtectedGet(api, "/api/v1/clients/{id}/documents", h.Document.ListClientDocuments,
		mw.WithTags("Documents"),
		mw.WithSummary("List client documents"),
		mw.WithOperationID("listClientDocuments"))
	mw.ProtectedDelete(api, "/api/v1/clients/{id}/documents", h.Document.PurgeClientDocuments,
		mw.WithTags("Documents"),
		mw.WithSummary("Purge client documents"),
		mw.WithOperationID("purgeClientDocuments"))

	// --- Analysis ---
	mw.ProtectedPost(api, "/api/v1/clients/{id}/analysis", h.Analysis.AnalyzeClient,
		mw.WithTags("Analysis"),
		mw.WithSummary("Analyze client"),
		mw.WithDescription("Generates an analysis of the client from its record, its indexed content and an optional competitor lookup."),
		mw.WithOperationID("analyzeClient"))
}
