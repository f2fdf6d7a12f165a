// Package handlers contains HTTP handlers for the API.
package handlers

import (
	"context"

	"github.com/clienthubhq/clienthub-api/internal/http/mw"
	"github.com/clienthubhq/clienthub-api/internal/version"
)

// HealthCheckOutput represents health check response.
type HealthCheckOutput struct {
	Body struct {
		Status  string `json:"status"`
		Version string `json:"version"`
	}
}

// HealthCheck returns the health status of the API.
func HealthCheck(ctx context.Context, input *struct{}) (*HealthCheckOutput, error) {
	out := &HealthCheckOutput{}
	out.Body.Status = "healthy"
	out.Body.Version = version.Get().Short()
	return out, nil
}

// callerSubject extracts the authenticated caller's subject from context.
// Empty for unauthenticated requests.
func callerSubject(ctx context.Context) string {
	p := mw.GetPrincipal(ctx)
	if p == nil {
		return ""
	}
	return p.Subject
}
