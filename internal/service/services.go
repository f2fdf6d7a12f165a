package service

import (
	"fmt"
	"log/slog"

	"github.com/clienthubhq/clienthub-api/internal/auth"
	"github.com/clienthubhq/clienthub-api/internal/chunker"
	appconfig "github.com/clienthubhq/clienthub-api/internal/config"
	"github.com/clienthubhq/clienthub-api/internal/llm"
	"github.com/clienthubhq/clienthub-api/internal/places"
	"github.com/clienthubhq/clienthub-api/internal/repository"
	"github.com/clienthubhq/clienthub-api/internal/scrape"
	"github.com/clienthubhq/clienthub-api/internal/vector"
)

// Services holds all service instances.
type Services struct {
	Auth     *auth.Authenticator
	Storage  *StorageService
	Notify   *NotifyService
	Client   *ClientService
	Job      *JobService
	Pipeline *PipelineService
	RAG      *RAGService
	Document *DocumentService
	Analysis *AnalysisService
	Cleanup  *CleanupService

	// Generator is exposed for the HTTP layer, which turns retrieved
	// context into generated answers. Nil when unconfigured.
	Generator llm.Generator
}

// Collaborators carries the externally constructed dependencies the
// services are wired with. Generator and Finder may be nil.
type Collaborators struct {
	Selector  *scrape.Selector
	Chunker   *chunker.Chunker
	Index     *vector.Index
	Generator llm.Generator
	Finder    places.Finder
}

// NewServices creates all service instances.
func NewServices(cfg *appconfig.Config, repos *repository.Repositories, collab Collaborators, logger *slog.Logger) (*Services, error) {
	// Storage first: the job and document services both need the sink.
	storageSvc, err := NewStorageService(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage service: %w", err)
	}

	notifySvc, err := NewNotifyService(cfg.WebhookSigningSecret, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create notify service: %w", err)
	}

	authn := auth.NewAuthenticator(cfg.APIKeys, cfg.JWTSigningKey, cfg.JWTExpiry)

	clientSvc := NewClientService(repos, collab.Index, storageSvc, logger)
	jobSvc := NewJobService(cfg, repos, storageSvc, notifySvc, logger)
	pipelineSvc := NewPipelineService(cfg, repos, collab.Selector, collab.Chunker, collab.Index, storageSvc, logger)
	ragSvc := NewRAGService(cfg, collab.Index, logger)
	documentSvc := NewDocumentService(repos, collab.Chunker, collab.Index, storageSvc, logger)
	cleanupSvc := NewCleanupService(repos.Job, logger)

	if collab.Generator == nil {
		logger.Warn("no generation backend configured - RAG answers and analysis unavailable")
	}
	if collab.Finder == nil {
		logger.Warn("no places backend configured - competitor lookup unavailable")
	}
	analysisSvc := NewAnalysisService(cfg, repos, ragSvc, collab.Index, collab.Generator, collab.Finder, logger)

	return &Services{
		Auth:      authn,
		Storage:   storageSvc,
		Notify:    notifySvc,
		Client:    clientSvc,
		Job:       jobSvc,
		Pipeline:  pipelineSvc,
		RAG:       ragSvc,
		Document:  documentSvc,
		Analysis:  analysisSvc,
		Cleanup:   cleanupSvc,
		Generator: collab.Generator,
	}, nil
}
