package handlers

import (
	"context"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/clienthubhq/clienthub-api/internal/auth"
)

// TokenHandler exchanges API keys for short-lived bearer tokens.
type TokenHandler struct {
	authn *auth.Authenticator
}

// NewTokenHandler creates a new token handler.
func NewTokenHandler(authn *auth.Authenticator) *TokenHandler {
	return &TokenHandler{authn: authn}
}

// CreateTokenInput represents token exchange request.
type CreateTokenInput struct {
	Body struct {
		APIKey string `json:"api_key" minLength:"1" doc:"A configured API key"`
	}
}

// CreateTokenOutput represents token exchange response.
type CreateTokenOutput struct {
	Body struct {
		Token     string    `json:"token" doc:"Signed JWT for the Authorization header"`
		TokenType string    `json:"token_type" example:"Bearer"`
		ExpiresAt time.Time `json:"expires_at"`
	}
}

// CreateToken validates an API key and mints a short-lived JWT carrying the
// key's fingerprint as subject. The endpoint is public; the key in the body
// is the credential.
func (h *TokenHandler) CreateToken(ctx context.Context, input *CreateTokenInput) (*CreateTokenOutput, error) {
	if err := h.authn.ValidateAPIKey(input.Body.APIKey); err != nil {
		return nil, huma.Error401Unauthorized("invalid API key")
	}

	token, expiresAt, err := h.authn.MintToken(auth.Fingerprint(input.Body.APIKey))
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to mint token")
	}

	out := &CreateTokenOutput{}
	out.Body.Token = token
	out.Body.TokenType = "Bearer"
	out.Body.ExpiresAt = expiresAt
	return out, nil
}
