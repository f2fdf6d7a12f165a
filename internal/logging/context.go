package logging

import (
	"context"
	"log/slog"
)

// ContextKey is a type for context keys used in logging.
type ContextKey string

const (
	// JobIDKey is the context key for the job being processed.
	JobIDKey ContextKey = "log_job_id"
	// ClientIDKey is the context key for the client the work belongs to.
	ClientIDKey ContextKey = "log_client_id"
)

// WithJobID adds a job ID to the context for logging.
func WithJobID(ctx context.Context, jobID string) context.Context {
	return context.WithValue(ctx, JobIDKey, jobID)
}

// WithClientID adds a client ID to the context for logging.
func WithClientID(ctx context.Context, clientID string) context.Context {
	return context.WithValue(ctx, ClientIDKey, clientID)
}

// GetJobID extracts the job ID from context.
func GetJobID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v := ctx.Value(JobIDKey); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// GetClientID extracts the client ID from context.
func GetClientID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v := ctx.Value(ClientIDKey); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// FromContext returns a logger with any job and client IDs from the context
// added as attributes. The original logger is returned unchanged when the
// context carries neither.
func FromContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if ctx == nil {
		return logger
	}

	if jobID := GetJobID(ctx); jobID != "" {
		logger = logger.With("job_id", jobID)
	}
	if clientID := GetClientID(ctx); clientID != "" {
		logger = logger.With("client_id", clientID)
	}
	return logger
}
