package handlers

import (
	"context"

	"github.com/danielgtaylor/huma/v2"
)

// LivezOutput represents the liveness probe response.
type LivezOutput struct {
	Body struct {
		Status string `json:"status"`
	}
}

// Livez is the Kubernetes liveness probe. It answers as long as the
// process can serve requests at all.
func Livez(ctx context.Context, input *struct{}) (*LivezOutput, error) {
	out := &LivezOutput{}
	out.Body.Status = "ok"
	return out, nil
}

// DBPinger is the minimal database surface the readiness probe needs.
type DBPinger interface {
	Ping() error
}

// ReadyzOutput represents the readiness probe response.
type ReadyzOutput struct {
	Body struct {
		Status string `json:"status"`
	}
}

// ReadyzHandler reports readiness based on database connectivity.
type ReadyzHandler struct {
	db DBPinger
}

// NewReadyzHandler creates a readiness probe handler.
func NewReadyzHandler(db DBPinger) *ReadyzHandler {
	return &ReadyzHandler{db: db}
}

// Readyz is the Kubernetes readiness probe. Not ready while the database
// is unreachable.
func (h *ReadyzHandler) Readyz(ctx context.Context, input *struct{}) (*ReadyzOutput, error) {
	if h.db != nil {
		if err := h.db.Ping(); err != nil {
			return nil, huma.Error503ServiceUnavailable("database unavailable")
		}
	}
	out := &ReadyzOutput{}
	out.Body.Status = "ok"
	return out, nil
}
