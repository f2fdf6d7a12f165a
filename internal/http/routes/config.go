// Package routes provides shared route registration for the ClientHub API.
// This allows both the main server and the OpenAPI generator to use
// the same route definitions, ensuring the OpenAPI spec is always in sync.
package routes

import (
	"github.com/danielgtaylor/huma/v2"

	"github.com/clienthubhq/clienthub-api/internal/http/mw"
	"github.com/clienthubhq/clienthub-api/internal/version"
)

// NewHumaConfig creates the shared Huma configuration for the API.
// This includes API metadata, security schemes, and tag definitions.
func NewHumaConfig(baseURL string) huma.Config {
	cfg := huma.DefaultConfig("ClientHub API", version.Get().Short())
	cfg.Info.Description = "Client management and research API: scrapes client web presence into per-client vector namespaces and answers questions over the indexed content."

	// Disable $schema field in responses - it conflicts with "schema" field in SDK code generators
	cfg.CreateHooks = nil

	if baseURL != "" {
		cfg.Servers = []*huma.Server{
			{URL: baseURL, Description: "API Server"},
		}
	}

	// Add security scheme for Bearer auth
	cfg.Components.SecuritySchemes = map[string]*huma.SecurityScheme{
		mw.SecurityScheme: {
			Type:        "http",
			Scheme:      "bearer",
			Description: "Bearer authentication. Pass either a configured API key or a token minted via /api/v1/auth/token as `Bearer ch_your_key`.",
		},
	}

	// Define OpenAPI tags with display names for documentation
	cfg.Tags = []*huma.Tag{
		{Name: "Clients", Description: "Client record management", Extensions: map[string]any{"x-displayName": "Clients"}},
		{Name: "Scraping", Description: "Scrape job submission", Extensions: map[string]any{"x-displayName": "Scraping"}},
		{Name: "Jobs", Description: "Job status and lifecycle", Extensions: map[string]any{"x-displayName": "Jobs"}},
		{Name: "RAG", Description: "Retrieval and question answering over indexed content", Extensions: map[string]any{"x-displayName": "RAG"}},
		{Name: "Documents", Description: "Manual ingestion and per-client document management", Extensions: map[string]any{"x-displayName": "Documents"}},
		{Name: "Analysis", Description: "Generated client analyses", Extensions: map[string]any{"x-displayName": "Analysis"}},
		{Name: "Auth", Description: "Token exchange", Extensions: map[string]any{"x-displayName": "Auth"}},
		{Name: "Health", Description: "System health and status", Extensions: map[string]any{"x-displayName": "Health"}},
	}

	return cfg
}
