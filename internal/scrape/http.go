package scrape

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/clienthubhq/clienthub-api/internal/models"
	"github.com/clienthubhq/clienthub-api/internal/protection"
)

// HTTPExtractor fetches pages with a plain HTTP client. It is the cheapest
// strategy and the first rung of the auto ladder, but it sees only the
// server-rendered markup.
type HTTPExtractor struct {
	detector *protection.Detector
}

// NewHTTPExtractor creates the plain HTTP strategy.
func NewHTTPExtractor() *HTTPExtractor {
	return &HTTPExtractor{detector: protection.NewDetector()}
}

// Strategy returns the strategy identifier.
func (e *HTTPExtractor) Strategy() models.Strategy {
	return models.StrategyHTTP
}

// Close releases resources. The HTTP strategy holds none.
func (e *HTTPExtractor) Close() error {
	return nil
}

// Extract fetches the URL and normalizes the response body.
func (e *HTTPExtractor) Extract(ctx context.Context, rawurl string, opts Options) (*models.ExtractedDocument, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	collectorOpts := []colly.CollectorOption{
		colly.UserAgent(opts.userAgent()),
		colly.AllowURLRevisit(),
		// Error statuses still deliver their bodies so challenge pages
		// can be told apart from plain failures.
		colly.ParseHTTPErrorResponse(),
	}
	if opts.MaxFetchBytes > 0 {
		// One byte of headroom so an at-limit body can be told apart
		// from a truncated one.
		collectorOpts = append(collectorOpts, colly.MaxBodySize(int(opts.MaxFetchBytes)+1))
	}

	c := colly.NewCollector(collectorOpts...)
	c.SetRequestTimeout(clampTimeout(ctx, opts.timeout()))

	var (
		rawHTML  string
		tooLarge bool
		status   int
		headers  http.Header
	)

	c.OnResponseHeaders(func(r *colly.Response) {
		if opts.MaxFetchBytes <= 0 {
			return
		}
		if length, err := strconv.ParseInt(r.Headers.Get("Content-Length"), 10, 64); err == nil && length > opts.MaxFetchBytes {
			tooLarge = true
			r.Request.Abort()
		}
	})

	c.OnResponse(func(r *colly.Response) {
		status = r.StatusCode
		if r.Headers != nil {
			headers = *r.Headers
		}
		if opts.MaxFetchBytes > 0 && int64(len(r.Body)) > opts.MaxFetchBytes {
			tooLarge = true
			return
		}
		rawHTML = string(r.Body)
	})

	if err := c.Visit(rawurl); err != nil {
		if tooLarge {
			return nil, newFetchError(FetchKindTooLarge, rawurl, fmt.Errorf("response exceeds %d bytes", opts.MaxFetchBytes))
		}
		return nil, classifyFetchError(rawurl, err)
	}
	if tooLarge {
		return nil, newFetchError(FetchKindTooLarge, rawurl, fmt.Errorf("response exceeds %d bytes", opts.MaxFetchBytes))
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// A hard verdict means the response itself proves a block; the auto
	// ladder answers a blocked error by moving up a rung.
	verdict := e.detector.Check(status, headers, []byte(rawHTML))
	if verdict.Hard {
		return nil, newFetchError(FetchKindBlocked, rawurl, errors.New(verdict.Reason))
	}
	if status >= 400 {
		return nil, newFetchError(FetchKindNetwork, rawurl, fmt.Errorf("HTTP %d: %s", status, http.StatusText(status)))
	}

	doc, err := buildDocument(rawurl, rawHTML, models.StrategyHTTP, opts)
	if err != nil {
		return nil, err
	}
	// Soft verdicts (shell markup, challenge text inside an otherwise valid
	// page) flag the document instead of failing it, so explicit HTTP
	// fetches still return content while auto escalates to rendering.
	if verdict.Detected {
		doc.LowContent = true
	}
	return doc, nil
}

// clampTimeout bounds the per-fetch timeout by the context deadline so a job
// deadline cannot be overshot by a slow fetch.
func clampTimeout(ctx context.Context, timeout time.Duration) time.Duration {
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining > 0 && remaining < timeout {
			return remaining
		}
	}
	return timeout
}
