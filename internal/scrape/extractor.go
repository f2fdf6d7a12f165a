// Package scrape implements the content extraction strategies and the
// escalation ladder that picks between them.
package scrape

import (
	"context"
	"time"

	"github.com/clienthubhq/clienthub-api/internal/models"
)

// defaultUserAgent is used when no user agent is configured.
const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// Options holds per-fetch settings passed to an extractor.
type Options struct {
	// Timeout bounds a single fetch attempt. The caller's context may
	// impose a shorter deadline.
	Timeout time.Duration

	// MaxFetchBytes caps the response body size. Fetches that exceed it
	// fail with a too_large error. Zero means no cap.
	MaxFetchBytes int64

	// UserAgent overrides the default user agent string.
	UserAgent string

	// LowContentThreshold is the minimum number of runes of extracted
	// text below which a document is flagged as low content.
	LowContentThreshold int

	// WaitStable, when set, makes browser strategies wait for the DOM to
	// stop mutating before capturing HTML. Ignored by the plain HTTP
	// strategy.
	WaitStable time.Duration
}

func (o Options) userAgent() string {
	if o.UserAgent != "" {
		return o.UserAgent
	}
	return defaultUserAgent
}

func (o Options) timeout() time.Duration {
	if o.Timeout > 0 {
		return o.Timeout
	}
	return 30 * time.Second
}

// Extractor fetches a URL and produces a normalized document. Implementations
// map one-to-one onto the scraping strategies exposed to clients.
type Extractor interface {
	// Extract fetches the page and returns the normalized document.
	// Fetch-level failures are reported as *FetchError so the caller can
	// classify them; a document flagged LowContent is a success.
	Extract(ctx context.Context, rawurl string, opts Options) (*models.ExtractedDocument, error)

	// Strategy returns the strategy this extractor implements.
	Strategy() models.Strategy

	// Close releases any resources held by the extractor.
	Close() error
}
