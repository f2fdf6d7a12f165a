package handlers

import (
	"errors"

	"github.com/danielgtaylor/huma/v2"

	"github.com/clienthubhq/clienthub-api/internal/service"
	"github.com/clienthubhq/clienthub-api/internal/vector"
)

// mapServiceError converts known service errors into huma status errors.
// Anything unrecognized becomes a 500 prefixed with the handler-supplied
// action so the message stays actionable without leaking internals the
// caller cannot act on.
func mapServiceError(action string, err error) error {
	switch {
	case errors.Is(err, service.ErrClientNotFound):
		return huma.Error404NotFound("client not found")
	case errors.Is(err, service.ErrClientInactive):
		return huma.Error409Conflict("client is inactive")
	case errors.Is(err, service.ErrEmailTaken):
		return huma.Error409Conflict("a client with this email already exists")
	case errors.Is(err, service.ErrJobNotFound):
		return huma.Error404NotFound("job not found")
	case errors.Is(err, service.ErrJobNotCancelled):
		return huma.Error409Conflict("job already finished")
	case errors.Is(err, service.ErrNoDocument):
		return huma.Error409Conflict("job has no stored document to reprocess")
	case errors.Is(err, service.ErrInvalidURL):
		return huma.Error422UnprocessableEntity("url must be a valid http or https URL")
	case errors.Is(err, service.ErrInvalidStrategy):
		return huma.Error422UnprocessableEntity("unknown scraping strategy")
	case errors.Is(err, service.ErrNoDocumentsIndexed):
		return huma.Error404NotFound("no documents indexed for this client")
	case errors.Is(err, service.ErrGenerationUnavailable):
		return huma.Error503ServiceUnavailable("generation backend is not configured")
	case errors.Is(err, service.ErrStorageDisabled):
		return huma.Error409Conflict("document storage is not enabled")
	case errors.Is(err, vector.ErrIndexUnavailable):
		return huma.Error503ServiceUnavailable("vector index is unavailable")
	}
	return huma.Error500InternalServerError(action + ": " + err.Error())
}
