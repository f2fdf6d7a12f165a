package mw

import (
	"net/http"

	"github.com/clienthubhq/clienthub-api/internal/version"
)

// APIVersion returns middleware that adds the X-API-Version header to all
// responses so clients can check compatibility.
func APIVersion() func(http.Handler) http.Handler {
	// Resolved once at middleware creation time
	apiVersion := version.Get().Short()

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-API-Version", apiVersion)
			next.ServeHTTP(w, r)
		})
	}
}
