package mw

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/httprate"

	"github.com/clienthubhq/clienthub-api/internal/auth"
)

// RateLimitConfig holds configuration for rate limiting.
type RateLimitConfig struct {
	// PerCredential is the per-minute budget for requests carrying a
	// bearer credential. Zero disables credential-based limiting.
	PerCredential int
	// PerIP is the per-minute budget for everything else.
	PerIP int
}

// DefaultRateLimitConfig returns the standard limits.
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		PerCredential: 120,
		PerIP:         30,
	}
}

// RateLimitByCredential returns a middleware that rate limits by presented
// bearer credential, falling back to the client IP for anonymous requests.
// The credential is keyed by fingerprint before validation, so each API key
// gets its own budget without this middleware needing the authenticator.
func RateLimitByCredential(cfg RateLimitConfig) func(http.Handler) http.Handler {
	credentialLimiter := httprate.NewRateLimiter(
		cfg.PerCredential,
		time.Minute,
		httprate.WithKeyFuncs(func(r *http.Request) (string, error) {
			if cred := bearerCredential(r); cred != "" {
				return auth.Fingerprint(cred), nil
			}
			return httprate.KeyByIP(r)
		}),
	)
	ipLimiter := httprate.NewRateLimiter(
		cfg.PerIP,
		time.Minute,
		httprate.WithKeyFuncs(httprate.KeyByIP),
	)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if bearerCredential(r) != "" {
				if cfg.PerCredential == 0 {
					next.ServeHTTP(w, r)
					return
				}
				credentialLimiter.Handler(next).ServeHTTP(w, r)
				return
			}
			ipLimiter.Handler(next).ServeHTTP(w, r)
		})
	}
}

// bearerCredential extracts the bearer credential from the Authorization
// header, or "" when absent.
func bearerCredential(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	return strings.TrimPrefix(header, "Bearer ")
}

// RateLimitByIP returns a middleware that rate limits by IP address.
// Useful for public endpoints or as a global fallback.
func RateLimitByIP(requestsPerMinute int) func(http.Handler) http.Handler {
	return httprate.LimitByIP(requestsPerMinute, time.Minute)
}

// RateLimitGlobal returns a middleware that applies a global rate limit
// to prevent overall system overload. Uses a sliding window.
func RateLimitGlobal(requestsPerMinute int) func(http.Handler) http.Handler {
	return httprate.Limit(
		requestsPerMinute,
		time.Minute,
		httprate.WithKeyFuncs(func(r *http.Request) (string, error) {
			return "global", nil
		}),
	)
}
