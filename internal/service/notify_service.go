package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/oklog/ulid/v2"
	svix "github.com/svix/svix-webhooks/go"

	"github.com/clienthubhq/clienthub-api/internal/models"
)

// JobEvent is the payload POSTed to a job's notify URL when it reaches a
// terminal state.
type JobEvent struct {
	Type string      `json:"type"` // job.succeeded, job.failed, job.cancelled
	Job  *models.Job `json:"job"`
}

// NotifyService delivers signed job notifications. Receivers verify the
// svix-id/svix-timestamp/svix-signature headers against the shared secret.
type NotifyService struct {
	logger *slog.Logger
	client *http.Client
	signer *svix.Webhook
}

// NewNotifyService creates a notify service signing with the given secret.
func NewNotifyService(signingSecret string, logger *slog.Logger) (*NotifyService, error) {
	signer, err := svix.NewWebhook(signingSecret)
	if err != nil {
		return nil, fmt.Errorf("failed to create webhook signer: %w", err)
	}
	return &NotifyService{
		logger: logger,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
		signer: signer,
	}, nil
}

// JobFinished notifies the job's notify URL about a terminal transition.
// Fire-and-forget; no-op when the job carries no notify URL.
func (s *NotifyService) JobFinished(job *models.Job) {
	if job.NotifyURL == "" {
		return
	}
	event := &JobEvent{
		Type: fmt.Sprintf("job.%s", job.Status),
		Job:  job,
	}
	go func() {
		_ = s.deliver(context.Background(), job.NotifyURL, event)
	}()
}

// SendSync delivers an event and waits for the outcome. Used by tests and
// shutdown paths that must not leave deliveries behind.
func (s *NotifyService) SendSync(ctx context.Context, url string, event *JobEvent) error {
	return s.deliver(ctx, url, event)
}

func (s *NotifyService) deliver(ctx context.Context, url string, event *JobEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		s.logger.Error("notify: failed to marshal payload", "error", err)
		return err
	}

	msgID := ulid.Make().String()
	timestamp := time.Now()
	signature, err := s.signer.Sign(msgID, timestamp, body)
	if err != nil {
		s.logger.Error("notify: failed to sign payload", "error", err)
		return err
	}

	// Retry up to 3 times with quadratic backoff
	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		if attempt > 0 {
			time.Sleep(time.Duration(attempt*attempt) * time.Second)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			s.logger.Error("notify: failed to create request", "error", err)
			return err
		}

		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("User-Agent", "ClientHub-Webhook/1.0")
		req.Header.Set("svix-id", msgID)
		req.Header.Set("svix-timestamp", fmt.Sprintf("%d", timestamp.Unix()))
		req.Header.Set("svix-signature", signature)

		resp, err := s.client.Do(req)
		if err != nil {
			lastErr = err
			s.logger.Warn("notify: delivery failed", "url", url, "attempt", attempt+1, "error", err)
			continue
		}
		resp.Body.Close()

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			s.logger.Info("notify: delivered", "url", url, "event", event.Type, "status", resp.StatusCode)
			return nil
		}

		lastErr = &WebhookError{StatusCode: resp.StatusCode}
		s.logger.Warn("notify: non-success status", "url", url, "status", resp.StatusCode, "attempt", attempt+1)
	}

	s.logger.Error("notify: delivery failed after retries", "url", url, "error", lastErr)
	return lastErr
}

// WebhookError represents a webhook delivery error.
type WebhookError struct {
	StatusCode int
}

func (e *WebhookError) Error() string {
	return "webhook delivery failed with status: " + http.StatusText(e.StatusCode)
}
