// Package mw contains HTTP middleware for the ClientHub API.
package mw

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"

	"github.com/clienthubhq/clienthub-api/internal/auth"
)

// ContextKey is a type for context keys.
type ContextKey string

const (
	// PrincipalKey is the context key for the authenticated principal.
	PrincipalKey ContextKey = "principal"
)

// SecurityScheme is the name of the security scheme used in OpenAPI.
const SecurityScheme = "bearerAuth"

// Authentication methods recorded on the principal.
const (
	AuthMethodAPIKey = "api_key"
	AuthMethodToken  = "token"
)

// Principal identifies an authenticated caller. Subject is the fingerprint
// of the API key that authenticated the request, taken either from the
// presented key itself or from the sub claim of an exchanged token.
type Principal struct {
	Subject string
	Method  string
}

// GetPrincipal extracts the principal from the context.
// Returns nil for unauthenticated requests.
func GetPrincipal(ctx context.Context) *Principal {
	p, _ := ctx.Value(PrincipalKey).(*Principal)
	return p
}

// HumaAuth returns a Huma middleware that handles authentication based on
// operation security. It checks ctx.Operation().Security to determine if
// authentication is required, so public operations pass through untouched.
//
// A bearer credential is either a configured API key or a token minted by
// the exchange endpoint; tokens are recognised by their two-dot JWS shape.
func HumaAuth(api huma.API, authn *auth.Authenticator) func(ctx huma.Context, next func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		op := ctx.Operation()
		if op == nil || !operationRequiresAuth(op) {
			next(ctx)
			return
		}

		authHeader := ctx.Header("Authorization")
		if authHeader == "" {
			huma.WriteErr(api, ctx, http.StatusUnauthorized, "missing authorization header")
			return
		}
		credential := strings.TrimPrefix(authHeader, "Bearer ")

		principal, err := authenticate(authn, credential)
		if err != nil {
			slog.Debug("auth validation failed", "error", err)
			huma.WriteErr(api, ctx, http.StatusUnauthorized, "invalid credentials")
			return
		}

		newCtx := context.WithValue(ctx.Context(), PrincipalKey, principal)
		next(huma.WithContext(ctx, newCtx))
	}
}

// authenticate resolves a bearer credential to a principal.
func authenticate(authn *auth.Authenticator, credential string) (*Principal, error) {
	if strings.Count(credential, ".") == 2 {
		claims, err := authn.VerifyToken(credential)
		if err != nil {
			return nil, err
		}
		return &Principal{Subject: claims.Subject, Method: AuthMethodToken}, nil
	}

	if err := authn.ValidateAPIKey(credential); err != nil {
		return nil, err
	}
	return &Principal{Subject: auth.Fingerprint(credential), Method: AuthMethodAPIKey}, nil
}

// operationRequiresAuth checks if the operation has bearerAuth in its security requirements.
func operationRequiresAuth(op *huma.Operation) bool {
	for _, secReq := range op.Security {
		if _, ok := secReq[SecurityScheme]; ok {
			return true
		}
	}
	return false
}
