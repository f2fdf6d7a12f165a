package scrape

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"

	"github.com/clienthubhq/clienthub-api/internal/models"
	"github.com/clienthubhq/clienthub-api/internal/protection"
)

// consentSelectors are tried in order when the automated strategy dismisses
// cookie banners. Best effort only.
var consentSelectors = []string{
	"#onetrust-accept-btn-handler",
	"button[id*='accept']",
	"button[class*='accept']",
	"button[aria-label*='accept' i]",
	"[data-testid='cookie-policy-manage-dialog-accept-button']",
}

// BrowserExtractor renders pages in pooled Chrome processes. In headless mode
// it loads the page and captures the rendered DOM; in automated mode it also
// applies stealth patches, dismisses consent dialogs and scrolls to trigger
// lazy-loaded content.
type BrowserExtractor struct {
	pool      *BrowserPool
	strategy  models.Strategy
	automated bool
	detector  *protection.Detector
	logger    *slog.Logger
}

// NewHeadlessExtractor creates the headless-browser strategy.
func NewHeadlessExtractor(pool *BrowserPool, logger *slog.Logger) *BrowserExtractor {
	return &BrowserExtractor{
		pool:     pool,
		strategy: models.StrategyHeadless,
		detector: protection.NewDetector(),
		logger:   logger,
	}
}

// NewAutomatedExtractor creates the automated-browser strategy.
func NewAutomatedExtractor(pool *BrowserPool, logger *slog.Logger) *BrowserExtractor {
	return &BrowserExtractor{
		pool:      pool,
		strategy:  models.StrategyBrowser,
		automated: true,
		detector:  protection.NewDetector(),
		logger:    logger,
	}
}

// Strategy returns the strategy identifier.
func (e *BrowserExtractor) Strategy() models.Strategy {
	return e.strategy
}

// Close is a no-op; the shared pool owns the browser processes.
func (e *BrowserExtractor) Close() error {
	return nil
}

// Extract renders the URL in a pooled browser and normalizes the captured DOM.
func (e *BrowserExtractor) Extract(ctx context.Context, rawurl string, opts Options) (*models.ExtractedDocument, error) {
	inst, err := e.pool.Acquire(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, newFetchError(FetchKindNetwork, rawurl, err)
	}
	defer e.pool.Release(inst)

	page, err := e.newPage(inst.Browser)
	if err != nil {
		return nil, newFetchError(FetchKindNetwork, rawurl, err)
	}
	defer page.Close()

	page = page.Context(ctx).Timeout(clampTimeout(ctx, opts.timeout()))

	if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: opts.userAgent()}); err != nil {
		e.logger.Warn("failed to set user agent", "error", err)
	}

	if err := page.Navigate(rawurl); err != nil {
		return nil, classifyFetchError(rawurl, err)
	}
	if err := page.WaitLoad(); err != nil {
		return nil, classifyFetchError(rawurl, err)
	}

	if e.automated {
		e.interact(page, opts)
	}

	rawHTML, err := page.HTML()
	if err != nil {
		return nil, classifyFetchError(rawurl, err)
	}
	if opts.MaxFetchBytes > 0 && int64(len(rawHTML)) > opts.MaxFetchBytes {
		return nil, newFetchError(FetchKindTooLarge, rawurl, fmt.Errorf("rendered page exceeds %d bytes", opts.MaxFetchBytes))
	}

	// Plain rendering does not clear interstitials; report a block so the
	// auto ladder escalates to the stealth strategy. The automated rung is
	// the last one and returns whatever it rendered.
	if !e.automated {
		if verdict := e.detector.CheckContent(rawHTML); verdict.Interstitial() {
			return nil, newFetchError(FetchKindBlocked, rawurl, errors.New(verdict.Reason))
		}
	}

	return buildDocument(rawurl, rawHTML, e.strategy, opts)
}

// newPage opens a fresh page; the automated strategy gets stealth patches.
func (e *BrowserExtractor) newPage(browser *rod.Browser) (*rod.Page, error) {
	if e.automated {
		return stealth.Page(browser)
	}
	return browser.Page(proto.TargetCreateTarget{})
}

// interact drives the page the way a user would: dismiss consent dialogs,
// scroll to the bottom and wait for the DOM to settle. All best effort.
func (e *BrowserExtractor) interact(page *rod.Page, opts Options) {
	e.dismissConsent(page)

	if _, err := page.Eval(`() => window.scrollTo(0, document.body.scrollHeight)`); err != nil {
		e.logger.Debug("scroll failed", "error", err)
	}

	stable := opts.WaitStable
	if stable <= 0 {
		stable = time.Second
	}
	if err := page.WaitDOMStable(stable, 0); err != nil {
		e.logger.Debug("dom did not settle", "error", err)
	}
}

func (e *BrowserExtractor) dismissConsent(page *rod.Page) {
	for _, selector := range consentSelectors {
		elem, err := page.Timeout(500 * time.Millisecond).Element(selector)
		if err != nil {
			continue
		}
		if visible, err := elem.Visible(); err != nil || !visible {
			continue
		}
		if err := elem.Click(proto.InputMouseButtonLeft, 1); err != nil {
			e.logger.Debug("failed to click consent button", "selector", selector, "error", err)
			continue
		}
		e.logger.Debug("dismissed consent dialog", "selector", selector)
		return
	}
}
