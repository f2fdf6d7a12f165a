package handlers

import (
	"context"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/clienthubhq/clienthub-api/internal/models"
	"github.com/clienthubhq/clienthub-api/internal/service"
)

// JobHandler handles job status and lifecycle endpoints.
type JobHandler struct {
	jobSvc *service.JobService
}

// NewJobHandler creates a new job handler.
func NewJobHandler(jobSvc *service.JobService) *JobHandler {
	return &JobHandler{jobSvc: jobSvc}
}

// JobErrorBody is the structured failure record on a failed job.
type JobErrorBody struct {
	Stage   string `json:"stage" example:"extract" doc:"Pipeline stage that failed"`
	Kind    string `json:"kind" example:"timeout" doc:"Failure classification"`
	Message string `json:"message" doc:"Human-readable error detail"`
}

// ResultSummaryBody holds the counters recorded when a job succeeds.
type ResultSummaryBody struct {
	PagesFetched   int   `json:"pages_fetched" example:"1"`
	ChunksProduced int   `json:"chunks_produced" example:"12"`
	BytesExtracted int64 `json:"bytes_extracted" example:"48213"`
}

// JobBody is a job snapshot in API responses.
type JobBody struct {
	ID                string             `json:"id" example:"01J9F0M2T3GW7H0QXS3S8B3EXD" doc:"Job identifier (ULID)"`
	ClientID          string             `json:"client_id" doc:"Owning client"`
	Type              string             `json:"type" example:"scrape" doc:"scrape or reprocess"`
	ParentJobID       string             `json:"parent_job_id,omitempty" doc:"Job this reprocess was forked from"`
	Status            string             `json:"status" example:"queued" doc:"queued, running, succeeded, failed or cancelled"`
	URL               string             `json:"url" example:"https://acme.example/services"`
	RequestedStrategy string             `json:"requested_strategy" example:"auto"`
	NotifyURL         string             `json:"notify_url,omitempty" doc:"Webhook invoked on terminal transitions"`
	Error             *JobErrorBody      `json:"error,omitempty" doc:"Set when the job failed"`
	ResultSummary     *ResultSummaryBody `json:"result_summary,omitempty" doc:"Set when the job succeeded"`
	StartedAt         *time.Time         `json:"started_at,omitempty"`
	FinishedAt        *time.Time         `json:"finished_at,omitempty"`
	CreatedAt         time.Time          `json:"created_at"`
	UpdatedAt         time.Time          `json:"updated_at"`
}

func jobBody(job *models.Job) JobBody {
	body := JobBody{
		ID:                job.ID,
		ClientID:          job.ClientID,
		Type:              string(job.Type),
		ParentJobID:       job.ParentJobID,
		Status:            string(job.Status),
		URL:               job.URL,
		RequestedStrategy: string(job.RequestedStrategy),
		NotifyURL:         job.NotifyURL,
		StartedAt:         job.StartedAt,
		FinishedAt:        job.FinishedAt,
		CreatedAt:         job.CreatedAt,
		UpdatedAt:         job.UpdatedAt,
	}
	if job.Error != nil {
		body.Error = &JobErrorBody{
			Stage:   job.Error.Stage,
			Kind:    job.Error.Kind,
			Message: job.Error.Message,
		}
	}
	if job.Summary != nil {
		body.ResultSummary = &ResultSummaryBody{
			PagesFetched:   job.Summary.PagesFetched,
			ChunksProduced: job.Summary.ChunksProduced,
			BytesExtracted: job.Summary.BytesExtracted,
		}
	}
	return body
}

// ListJobsInput represents job listing request.
type ListJobsInput struct {
	ClientID string `query:"client_id" required:"true" doc:"Client whose jobs to list"`
	Limit    int    `query:"limit" default:"20" minimum:"1" maximum:"100" doc:"Number of jobs to return"`
	Offset   int    `query:"offset" default:"0" minimum:"0" doc:"Offset for pagination"`
}

// ListJobsOutput represents job listing response.
type ListJobsOutput struct {
	Body struct {
		Jobs  []JobBody `json:"jobs"`
		Count int       `json:"count" doc:"Number of jobs in this page"`
	}
}

// ListJobs lists a client's jobs, newest first.
func (h *JobHandler) ListJobs(ctx context.Context, input *ListJobsInput) (*ListJobsOutput, error) {
	if callerSubject(ctx) == "" {
		return nil, huma.Error401Unauthorized("unauthorized")
	}

	jobs, err := h.jobSvc.List(ctx, input.ClientID, input.Limit, input.Offset)
	if err != nil {
		return nil, mapServiceError("failed to list jobs", err)
	}

	bodies := make([]JobBody, 0, len(jobs))
	for _, job := range jobs {
		bodies = append(bodies, jobBody(job))
	}

	out := &ListJobsOutput{}
	out.Body.Jobs = bodies
	out.Body.Count = len(bodies)
	return out, nil
}

// GetJobInput represents get job request.
type GetJobInput struct {
	ID string `path:"id" doc:"Job ID"`
}

// GetJobOutput represents get job response.
type GetJobOutput struct {
	Body JobBody
}

// GetJob returns a job snapshot. Never blocks on a running job.
func (h *JobHandler) GetJob(ctx context.Context, input *GetJobInput) (*GetJobOutput, error) {
	if callerSubject(ctx) == "" {
		return nil, huma.Error401Unauthorized("unauthorized")
	}

	job, err := h.jobSvc.Get(ctx, input.ID)
	if err != nil {
		return nil, mapServiceError("failed to get job", err)
	}
	if job == nil {
		return nil, huma.Error404NotFound("job not found")
	}

	return &GetJobOutput{Body: jobBody(job)}, nil
}

// CancelJobInput represents job cancellation request.
type CancelJobInput struct {
	ID string `path:"id" doc:"Job ID"`
}

// CancelJobOutput represents job cancellation response.
type CancelJobOutput struct {
	Body JobBody
}

// CancelJob cancels a queued or running job. Queued jobs flip to cancelled
// immediately; running jobs get their context cancelled and settle through
// the worker. Cancelling a finished job is a conflict.
func (h *JobHandler) CancelJob(ctx context.Context, input *CancelJobInput) (*CancelJobOutput, error) {
	if callerSubject(ctx) == "" {
		return nil, huma.Error401Unauthorized("unauthorized")
	}

	job, err := h.jobSvc.Cancel(ctx, input.ID)
	if err != nil {
		return nil, mapServiceError("failed to cancel job", err)
	}

	return &CancelJobOutput{Body: jobBody(job)}, nil
}

// ReprocessJobInput represents job reprocess request.
type ReprocessJobInput struct {
	ID string `path:"id" doc:"Job whose document to re-ingest"`
}

// ReprocessJobOutput represents job reprocess response.
type ReprocessJobOutput struct {
	Body struct {
		JobID     string `json:"job_id" example:"01J9F0M2T3GW7H0QXS3S8B3EXD" doc:"New reprocess job"`
		Status    string `json:"status" example:"queued"`
		StatusURL string `json:"status_url" doc:"URL to poll for job status"`
	}
}

// ReprocessJob queues a new job that re-chunks and re-embeds the stored
// document of a previously succeeded job, without refetching the page.
func (h *JobHandler) ReprocessJob(ctx context.Context, input *ReprocessJobInput) (*ReprocessJobOutput, error) {
	if callerSubject(ctx) == "" {
		return nil, huma.Error401Unauthorized("unauthorized")
	}

	result, err := h.jobSvc.Reprocess(ctx, input.ID)
	if err != nil {
		return nil, mapServiceError("failed to reprocess job", err)
	}

	out := &ReprocessJobOutput{}
	out.Body.JobID = result.JobID
	out.Body.Status = result.Status
	out.Body.StatusURL = result.StatusURL
	return out, nil
}
