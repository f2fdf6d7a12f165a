package handlers

import (
	"context"

	"github.com/danielgtaylor/huma/v2"

	"github.com/clienthubhq/clienthub-api/internal/models"
	"github.com/clienthubhq/clienthub-api/internal/service"
)

// ScrapeHandler handles scrape job submission.
type ScrapeHandler struct {
	jobSvc *service.JobService
}

// NewScrapeHandler creates a new scrape handler.
func NewScrapeHandler(jobSvc *service.JobService) *ScrapeHandler {
	return &ScrapeHandler{jobSvc: jobSvc}
}

// CreateScrapeJobInput represents scrape submission request.
type CreateScrapeJobInput struct {
	Body struct {
		ClientID  string `json:"client_id" minLength:"1" example:"01J9F0M2T3GW7H0QXS3S8B3EXD" doc:"Client to ingest for"`
		URL       string `json:"url" format:"uri" example:"https://acme.example/services" doc:"Page to scrape (http or https)"`
		Strategy  string `json:"strategy,omitempty" enum:"auto,http,headless-browser,automated-browser" doc:"Fetch strategy; auto escalates as needed"`
		NotifyURL string `json:"notify_url,omitempty" format:"uri" doc:"Webhook invoked when the job reaches a terminal state"`
	}
}

// CreateScrapeJobOutput represents scrape submission response.
type CreateScrapeJobOutput struct {
	Body struct {
		JobID     string `json:"job_id" example:"01J9F0M2T3GW7H0QXS3S8B3EXD" doc:"Queued job"`
		Status    string `json:"status" example:"queued"`
		StatusURL string `json:"status_url" doc:"URL to poll for job status"`
	}
}

// CreateScrapeJob enqueues a scrape-and-ingest job for a client and returns
// immediately with a pointer to the job. The pipeline runs in the worker:
// fetch, extract, chunk, embed, upsert into the client's namespace.
func (h *ScrapeHandler) CreateScrapeJob(ctx context.Context, input *CreateScrapeJobInput) (*CreateScrapeJobOutput, error) {
	if callerSubject(ctx) == "" {
		return nil, huma.Error401Unauthorized("unauthorized")
	}

	result, err := h.jobSvc.Submit(ctx, service.SubmitScrapeInput{
		ClientID:  input.Body.ClientID,
		URL:       input.Body.URL,
		Strategy:  models.Strategy(input.Body.Strategy),
		NotifyURL: input.Body.NotifyURL,
	})
	if err != nil {
		return nil, mapServiceError("failed to submit scrape job", err)
	}

	out := &CreateScrapeJobOutput{}
	out.Body.JobID = result.JobID
	out.Body.Status = result.Status
	out.Body.StatusURL = result.StatusURL
	return out, nil
}
