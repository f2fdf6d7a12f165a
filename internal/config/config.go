// Package config handles application configuration.
package config

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/hkdf"
)

// Config holds all application configuration. It is loaded once at startup
// and passed around read-only; nothing mutates it after Load returns.
type Config struct {
	// Server settings
	Port        int
	BaseURL     string
	CORSOrigins []string
	IdleTimeout time.Duration // shut down after this long with no traffic (0 = disabled)

	// Database
	DatabaseURL string

	// Authentication
	APIKeys       []string      // accepted API keys, comma separated in the env
	SecretKey     string        // master secret all signing keys derive from
	JWTExpiry     time.Duration // lifetime of minted access tokens
	JWTSigningKey []byte        // derived, HS256

	// Scraping
	ScrapeTimeout       time.Duration // per fetch attempt
	JobTimeout          time.Duration // whole pipeline run
	MaxFetchBytes       int64
	UserAgent           string
	LowContentThreshold int

	// Browser pool
	BrowserPoolSize int
	BrowserMaxAge   time.Duration
	BrowserMaxPages int
	ChromePath      string

	// Chunking and retrieval
	ChunkSize        int
	ChunkOverlap     int
	RAGTopK          int
	RAGContextBudget int // rune budget for assembled LLM context

	// Worker
	WorkerPollInterval        time.Duration
	WorkerConcurrency         int
	WorkerShutdownGracePeriod time.Duration

	// Cleanup
	CleanupEnabled    bool
	CleanupMaxAgeJobs time.Duration
	CleanupInterval   time.Duration

	// Embeddings backend (OpenAI-compatible)
	EmbeddingsAPIKey     string
	EmbeddingsBaseURL    string
	EmbeddingsModel      string
	EmbeddingsDimensions int

	// Generation backend (OpenAI-compatible), optional
	LLMAPIKey  string
	LLMBaseURL string
	LLMModel   string

	// Places lookup, optional
	PlacesAPIKey  string
	PlacesBaseURL string

	// Object storage for extracted documents (S3-compatible)
	StorageEnabled   bool
	StorageEndpoint  string // AWS_ENDPOINT_URL_S3
	StorageAccessKey string // AWS_ACCESS_KEY_ID
	StorageSecretKey string // AWS_SECRET_ACCESS_KEY
	StorageBucket    string
	StorageRegion    string

	// Outbound job notifications
	WebhookSigningSecret string // whsec_..., derived from SecretKey when unset
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Port:        getEnvInt("PORT", 8080),
		BaseURL:     getEnv("BASE_URL", "http://localhost:8080"),
		IdleTimeout: getEnvDuration("IDLE_TIMEOUT", 0),
		DatabaseURL: getEnv("DATABASE_URL", "file:clienthub.db?_journal=WAL&_timeout=5000"),

		APIKeys:   getEnvSlice("API_KEYS", nil),
		SecretKey: getEnv("SECRET_KEY", ""),
		JWTExpiry: getEnvDuration("JWT_EXPIRY", 15*time.Minute),

		ScrapeTimeout:       getEnvDuration("SCRAPE_TIMEOUT", 30*time.Second),
		JobTimeout:          getEnvDuration("JOB_TIMEOUT", 5*time.Minute),
		MaxFetchBytes:       getEnvInt64("MAX_FETCH_BYTES", 10*1024*1024),
		UserAgent:           getEnv("SCRAPE_USER_AGENT", ""),
		LowContentThreshold: getEnvInt("LOW_CONTENT_THRESHOLD", 200),

		BrowserPoolSize: getEnvInt("BROWSER_POOL_SIZE", 2),
		BrowserMaxAge:   getEnvDuration("BROWSER_MAX_AGE", 30*time.Minute),
		BrowserMaxPages: getEnvInt("BROWSER_MAX_PAGES", 100),
		ChromePath:      getEnv("CHROME_PATH", ""),

		ChunkSize:        getEnvInt("CHUNK_SIZE", 1000),
		ChunkOverlap:     getEnvInt("CHUNK_OVERLAP", 200),
		RAGTopK:          getEnvInt("RAG_TOP_K", 5),
		RAGContextBudget: getEnvInt("RAG_CONTEXT_BUDGET", 6000),

		WorkerPollInterval:        getEnvDuration("WORKER_POLL_INTERVAL", 5*time.Second),
		WorkerConcurrency:         getEnvInt("WORKER_CONCURRENCY", 3),
		WorkerShutdownGracePeriod: getEnvDuration("WORKER_SHUTDOWN_GRACE_PERIOD", 5*time.Minute),

		CleanupEnabled:    getEnvBool("CLEANUP_ENABLED", true),
		CleanupMaxAgeJobs: getEnvDuration("CLEANUP_MAX_AGE_JOBS", 30*24*time.Hour),
		CleanupInterval:   getEnvDuration("CLEANUP_INTERVAL", 24*time.Hour),

		EmbeddingsAPIKey:     getEnv("EMBEDDINGS_API_KEY", ""),
		EmbeddingsBaseURL:    getEnv("EMBEDDINGS_BASE_URL", ""),
		EmbeddingsModel:      getEnv("EMBEDDINGS_MODEL", ""),
		EmbeddingsDimensions: getEnvInt("EMBEDDINGS_DIMENSIONS", 0),

		LLMAPIKey:  getEnv("LLM_API_KEY", ""),
		LLMBaseURL: getEnv("LLM_BASE_URL", ""),
		LLMModel:   getEnv("LLM_MODEL", ""),

		PlacesAPIKey:  getEnv("PLACES_API_KEY", ""),
		PlacesBaseURL: getEnv("PLACES_BASE_URL", ""),

		// S3-compatible storage uses the standard AWS env vars
		StorageEndpoint:  getEnv("AWS_ENDPOINT_URL_S3", ""),
		StorageAccessKey: getEnv("AWS_ACCESS_KEY_ID", ""),
		StorageSecretKey: getEnv("AWS_SECRET_ACCESS_KEY", ""),
		StorageBucket:    getEnvWithFallback("BUCKET_NAME", "STORAGE_BUCKET", ""),
		StorageRegion:    getEnv("AWS_REGION", "auto"),

		WebhookSigningSecret: getEnv("WEBHOOK_SIGNING_SECRET", ""),

		CORSOrigins: getEnvSlice("CORS_ORIGINS", []string{"http://localhost:3000"}),
	}

	cfg.StorageEnabled = cfg.StorageBucket != "" && cfg.StorageEndpoint != ""

	if cfg.EmbeddingsAPIKey == "" {
		return nil, fmt.Errorf("EMBEDDINGS_API_KEY is required")
	}
	if cfg.ChunkOverlap >= cfg.ChunkSize {
		return nil, fmt.Errorf("CHUNK_OVERLAP (%d) must be smaller than CHUNK_SIZE (%d)", cfg.ChunkOverlap, cfg.ChunkSize)
	}

	// A per-boot random secret keeps single-node deployments working, at
	// the cost of invalidating tokens across restarts.
	if cfg.SecretKey == "" {
		cfg.SecretKey = generateRandomSecret(64)
	}

	cfg.JWTSigningKey = deriveKey(cfg.SecretKey, "jwt-hs256-signing")
	if cfg.WebhookSigningSecret == "" {
		cfg.WebhookSigningSecret = "whsec_" + base64.StdEncoding.EncodeToString(deriveKey(cfg.SecretKey, "webhook-signing"))
	}

	return cfg, nil
}

// GenerationEnabled reports whether a generation backend is configured.
// Without one, retrieval still works but answer synthesis does not.
func (c *Config) GenerationEnabled() bool {
	return c.LLMAPIKey != ""
}

// PlacesEnabled reports whether the places lookup backend is configured.
func (c *Config) PlacesEnabled() bool {
	return c.PlacesAPIKey != ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		lower := strings.ToLower(value)
		return lower == "true" || lower == "1" || lower == "yes"
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				out = append(out, trimmed)
			}
		}
		return out
	}
	return defaultValue
}

func getEnvWithFallback(primary, fallback, defaultValue string) string {
	if value := os.Getenv(primary); value != "" {
		return value
	}
	if value := os.Getenv(fallback); value != "" {
		return value
	}
	return defaultValue
}

func generateRandomSecret(length int) string {
	bytes := make([]byte, length)
	if _, err := rand.Read(bytes); err != nil {
		// Fallback (should never happen)
		return "change-me-" + base64.StdEncoding.EncodeToString([]byte(fmt.Sprintf("%d", time.Now().UnixNano())))
	}
	return base64.URLEncoding.EncodeToString(bytes)
}

// deriveKey creates a 32-byte key from the master secret using HKDF with
// SHA-256. The info string binds each derived key to its purpose so the
// JWT and webhook keys can never collide.
func deriveKey(secret, info string) []byte {
	salt := []byte("clienthub-api-kdf-v1")

	hkdfReader := hkdf.New(sha256.New, []byte(secret), salt, []byte(info))

	key := make([]byte, 32)
	if _, err := io.ReadFull(hkdfReader, key); err != nil {
		panic("hkdf: failed to derive key: " + err.Error())
	}

	return key
}
