// Package main is the entry point for the clienthub-api server.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/clienthubhq/clienthub-api/internal/chunker"
	"github.com/clienthubhq/clienthub-api/internal/config"
	"github.com/clienthubhq/clienthub-api/internal/database"
	"github.com/clienthubhq/clienthub-api/internal/http/handlers"
	"github.com/clienthubhq/clienthub-api/internal/http/mw"
	"github.com/clienthubhq/clienthub-api/internal/http/routes"
	"github.com/clienthubhq/clienthub-api/internal/llm"
	"github.com/clienthubhq/clienthub-api/internal/logging"
	"github.com/clienthubhq/clienthub-api/internal/places"
	"github.com/clienthubhq/clienthub-api/internal/repository"
	"github.com/clienthubhq/clienthub-api/internal/scrape"
	"github.com/clienthubhq/clienthub-api/internal/service"
	"github.com/clienthubhq/clienthub-api/internal/shutdown"
	"github.com/clienthubhq/clienthub-api/internal/vector"
	"github.com/clienthubhq/clienthub-api/internal/version"
	"github.com/clienthubhq/clienthub-api/internal/worker"
)

func main() {
	// Initialize logger with TTY detection, source paths, and format control
	logger := logging.SetDefault()

	// Log version info first thing
	v := version.Get()
	logger.Info("starting clienthub-api",
		"version", v.Version,
		"commit", v.Commit,
		"built", v.Date,
		"go_version", v.GoVersion,
	)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Initialize database
	db, err := database.New(cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	// Run migrations (with logging for each migration applied)
	if err := database.MigrateWithLogger(db, logger); err != nil {
		logger.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	// Log current schema version
	schemaVersion, err := database.SchemaVersion(db)
	if err != nil {
		logger.Warn("failed to get schema version", "error", err)
	} else if schemaVersion != "" {
		logger.Info("database schema ready", "schema_version", schemaVersion)
	}

	// Initialize repositories
	repos := repository.NewRepositories(db)

	// Scraping strategies share one browser pool; Chrome launches lazily on
	// the first fetch that needs it.
	pool := scrape.NewBrowserPool(scrape.PoolConfig{
		Size:       cfg.BrowserPoolSize,
		MaxAge:     cfg.BrowserMaxAge,
		MaxPages:   cfg.BrowserMaxPages,
		ChromePath: cfg.ChromePath,
	}, logger)
	selector := scrape.NewSelector(
		scrape.NewHTTPExtractor(),
		scrape.NewHeadlessExtractor(pool, logger),
		scrape.NewAutomatedExtractor(pool, logger),
		logger,
	)

	splitter := chunker.New(
		chunker.WithChunkSize(cfg.ChunkSize),
		chunker.WithOverlap(cfg.ChunkOverlap),
	)

	embedder, err := vector.NewEmbeddingClient(vector.EmbeddingConfig{
		APIKey:     cfg.EmbeddingsAPIKey,
		BaseURL:    cfg.EmbeddingsBaseURL,
		Model:      cfg.EmbeddingsModel,
		Dimensions: cfg.EmbeddingsDimensions,
	})
	if err != nil {
		logger.Error("failed to create embeddings client", "error", err)
		os.Exit(1)
	}
	index := vector.NewIndex(embedder, repos.Chunk, logger)

	// Generation and places backends are optional; the services degrade to
	// retrieval-only answers and analysis without competitors.
	var generator llm.Generator
	if cfg.GenerationEnabled() {
		gen, err := llm.NewClient(llm.Config{
			APIKey:  cfg.LLMAPIKey,
			BaseURL: cfg.LLMBaseURL,
			Model:   cfg.LLMModel,
		})
		if err != nil {
			logger.Error("failed to create generation client", "error", err)
			os.Exit(1)
		}
		generator = gen
	}

	var finder places.Finder
	if cfg.PlacesEnabled() {
		pl, err := places.NewClient(places.Config{
			APIKey:  cfg.PlacesAPIKey,
			BaseURL: cfg.PlacesBaseURL,
		})
		if err != nil {
			logger.Error("failed to create places client", "error", err)
			os.Exit(1)
		}
		finder = pl
	}

	// Initialize services
	services, err := service.NewServices(cfg, repos, service.Collaborators{
		Selector:  selector,
		Chunker:   splitter,
		Index:     index,
		Generator: generator,
		Finder:    finder,
	}, logger)
	if err != nil {
		logger.Error("failed to initialize services", "error", err)
		os.Exit(1)
	}

	// Fail running jobs left behind by a previous server run. The worker
	// pool does not exist yet, so every running row is an orphan.
	if _, err := services.Job.SweepStale(context.Background()); err != nil {
		logger.Warn("failed to sweep stale jobs", "error", err)
	}

	// Start background worker for job processing
	jobWorker := worker.New(
		repos.Job,
		services.Job,
		services.Pipeline,
		services.Notify,
		worker.Config{
			PollInterval:  cfg.WorkerPollInterval,
			Concurrency:   cfg.WorkerConcurrency,
			JobTimeout:    cfg.JobTimeout,
			ShutdownGrace: cfg.WorkerShutdownGracePeriod,
		},
		logger,
	)
	ctx, cancel := context.WithCancel(context.Background())
	jobWorker.Start(ctx)

	// Start cleanup service if enabled
	if cfg.CleanupEnabled {
		go services.Cleanup.RunScheduledCleanup(ctx, cfg.CleanupMaxAgeJobs, cfg.CleanupInterval)
	}

	// Idle monitor for scale-to-zero platforms. Probe traffic is excluded
	// and running jobs count as activity, so a machine only stops once the
	// queue has drained and real traffic has gone quiet.
	idleMonitor := shutdown.NewIdleMonitor(shutdown.IdleMonitorConfig{
		Timeout:             cfg.IdleTimeout,
		Logger:              logger,
		ExcludePaths:        []string{"/healthz", "/readyz", "/api/v1/health"},
		BackgroundWorkCheck: jobWorker.Busy,
	})
	idleMonitor.Start()

	// Create router
	router := chi.NewRouter()

	// Global middleware
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(idleMonitor.Middleware)

	// IP blocklist, stored alongside the document payloads (early in the
	// chain to reject bad actors quickly)
	if services.Storage.IsEnabled() {
		blocklist := mw.NewIPBlocklist(mw.BlocklistConfig{
			S3Client: services.Storage.Client(),
			Bucket:   cfg.StorageBucket,
			Key:      "config/blocklist.json",
			Logger:   logger,
		})
		router.Use(blocklist.Middleware())
		logger.Info("IP blocklist enabled", "bucket", cfg.StorageBucket)
	}

	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	// Request timeout middleware with different timeouts per endpoint type.
	// RAG and analysis call the generation backend and need the headroom.
	router.Use(mw.Timeout(mw.TimeoutConfig{
		Default:          30 * time.Second,
		Extended:         120 * time.Second,
		ExtendedPatterns: []string{"/rag/", "/analysis"},
	}))

	// CORS configuration
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"Link", "X-Request-ID", "X-RateLimit-Limit", "X-RateLimit-Remaining", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Request size limit (1MB) - prevent large payload attacks
	router.Use(middleware.RequestSize(1 * 1024 * 1024))

	// Global concurrency throttle - prevent system overload
	router.Use(middleware.Throttle(100))

	router.Use(mw.APIVersion())
	router.Use(mw.Cache(mw.DefaultCacheConfig()))

	// Per-credential rate limit, falling back to per-IP for anonymous
	// requests
	router.Use(mw.RateLimitByCredential(mw.DefaultRateLimitConfig()))

	// Huma API over the shared route table. The same table drives the
	// OpenAPI generator in cmd/clienthub-openapi.
	api := humachi.New(router, routes.NewHumaConfig(cfg.BaseURL))
	api.UseMiddleware(mw.HumaAuth(api, services.Auth))

	routes.Register(api, &routes.Handlers{
		HealthCheck: handlers.HealthCheck,
		Livez:       handlers.Livez,
		Readyz:      handlers.NewReadyzHandler(db).Readyz,
		Client:      handlers.NewClientHandler(services.Client),
		Scrape:      handlers.NewScrapeHandler(services.Job),
		Job:         handlers.NewJobHandler(services.Job),
		RAG:         handlers.NewRAGHandler(services.RAG, services.Generator),
		Document:    handlers.NewDocumentHandler(services.Document),
		Analysis:    handlers.NewAnalysisHandler(services.Analysis),
		Auth:        handlers.NewTokenHandler(services.Auth),
	})

	// Create server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)

		select {
		case sig := <-sigChan:
			logger.Info("received signal, shutting down", "signal", sig.String())
		case <-idleMonitor.ShutdownChan():
			logger.Info("idle timeout reached, shutting down")
		}

		// Stop the worker first so in-flight jobs finish or record failure
		cancel()
		jobWorker.Stop()
		idleMonitor.Stop()

		// Browser processes outlive requests; kill them explicitly
		pool.Close()
		if err := selector.Close(); err != nil {
			logger.Warn("failed to close extractors", "error", err)
		}

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown error", "error", err)
		}
	}()

	// Start server
	logger.Info("starting server",
		"port", cfg.Port,
		"base_url", cfg.BaseURL,
		"docs", cfg.BaseURL+"/docs",
	)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}
