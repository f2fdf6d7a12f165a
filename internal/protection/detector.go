// Package protection detects bot-protection challenges and JavaScript-only
// shells in fetched pages. The scraping strategies use the verdict to decide
// whether escalating to a heavier rendering strategy is worth a try.
package protection

import (
	"net/http"
	"regexp"
	"strings"
)

// Signal classifies what tripped the detector.
type Signal string

const (
	SignalNone         Signal = ""
	SignalChallenge    Signal = "challenge"
	SignalCaptcha      Signal = "captcha"
	SignalAccessDenied Signal = "access_denied"
	SignalRateLimited  Signal = "rate_limited"
	SignalEmptyContent Signal = "empty_content"
	SignalJSRequired   Signal = "javascript_required"
)

// Detection is the verdict for one fetched page.
type Detection struct {
	Detected   bool
	Signal     Signal
	Confidence int    // 0-100
	Reason     string // for logs and job errors

	// Hard reports an active block proven by response metadata (status
	// code or headers). Soft detections come from page text and can be
	// false positives, so callers downgrade the result instead of
	// failing it.
	Hard bool
}

// Interstitial reports whether the page text is a challenge interstitial
// rather than real content with protection artifacts embedded in it.
func (d Detection) Interstitial() bool {
	return d.Detected && d.Signal == SignalChallenge
}

// Detector inspects the status, headers and body of a fetched page.
type Detector struct {
	// MinContentLength flags bodies shorter than this that also lack any
	// recognizable content structure.
	MinContentLength int
}

// NewDetector creates a detector with default settings.
func NewDetector() *Detector {
	return &Detector{
		MinContentLength: 500,
	}
}

// Check runs the full inspection: status code first, then headers, then body.
func (d *Detector) Check(statusCode int, headers http.Header, body []byte) Detection {
	if verdict := checkStatus(statusCode); verdict.Detected {
		return verdict
	}
	if verdict := checkHeaders(headers); verdict.Detected {
		return verdict
	}
	return d.checkBody(body)
}

// CheckContent inspects markup alone, for callers without response metadata
// such as HTML captured out of a browser.
func (d *Detector) CheckContent(content string) Detection {
	return d.checkBody([]byte(content))
}

// checkStatus maps blocking status codes to hard detections.
func checkStatus(statusCode int) Detection {
	switch statusCode {
	case http.StatusForbidden:
		return Detection{
			Detected:   true,
			Signal:     SignalAccessDenied,
			Confidence: 90,
			Reason:     "HTTP 403: site is refusing automated requests",
			Hard:       true,
		}
	case http.StatusServiceUnavailable:
		// Challenge proxies answer 503 while the interstitial runs.
		return Detection{
			Detected:   true,
			Signal:     SignalChallenge,
			Confidence: 70,
			Reason:     "HTTP 503: likely a bot-protection interstitial",
			Hard:       true,
		}
	case http.StatusTooManyRequests:
		return Detection{
			Detected:   true,
			Signal:     SignalRateLimited,
			Confidence: 95,
			Reason:     "HTTP 429: rate limited",
			Hard:       true,
		}
	}
	return Detection{}
}

// checkHeaders looks for challenge markers in response headers.
func checkHeaders(headers http.Header) Detection {
	if headers == nil {
		return Detection{}
	}

	// A cf-ray header alone just means Cloudflare fronts the site;
	// cf-mitigated marks an actual challenge.
	if headers.Get("cf-ray") != "" && headers.Get("cf-mitigated") == "challenge" {
		return Detection{
			Detected:   true,
			Signal:     SignalChallenge,
			Confidence: 95,
			Reason:     "challenge mitigation header present",
			Hard:       true,
		}
	}

	return Detection{}
}

// Page-text markers, matched case-insensitively.
var (
	// Interstitial pages served in place of content.
	challengePatterns = []string{
		"cf-browser-verification",
		"challenge-platform",
		"cf_chl_opt",
		"_cf_chl",
		"checking your browser",
		"just a moment...",
		"attention required! | cloudflare",
	}

	captchaPatterns = []string{
		"g-recaptcha",
		"grecaptcha",
		"h-captcha",
		"hcaptcha",
		"data-sitekey",
		"captcha-container",
		"cf-turnstile",
	}

	deniedPatterns = []string{
		"access denied",
		"access to this page has been denied",
		"you don't have permission",
		"request blocked",
		"bot detected",
		"automated access",
		"please verify you are human",
		"are you a robot",
	}

	jsShellPatterns = []string{
		"enable javascript",
		"javascript is required",
		"requires javascript",
	}

	// Empty framework mount points mean the markup is a shell and the
	// content arrives via scripts.
	spaRootRes = []*regexp.Regexp{
		regexp.MustCompile(`<div\s+id=["'](?:root|app|__next|__nuxt)["'][^>]*>\s*</div>`),
		regexp.MustCompile(`<app-root[^>]*>\s*</app-root>`),
		regexp.MustCompile(`<div\s+id=["']react-root["'][^>]*>\s*</div>`),
	}

	contentStructureRe = regexp.MustCompile(`<(article|main|section|div[^>]*class[^>]*content)[^>]*>`)

	scriptBlockRe = regexp.MustCompile(`(?is)<script[^>]*>.*?</script>`)
	styleBlockRe  = regexp.MustCompile(`(?is)<style[^>]*>.*?</style>`)
	noscriptRe    = regexp.MustCompile(`(?is)<noscript[^>]*>.*?</noscript>`)
	tagRe         = regexp.MustCompile(`<[^>]+>`)
	whitespaceRe  = regexp.MustCompile(`\s+`)
)

// checkBody scans the page text for protection markers and shell markup.
// All body-derived verdicts are soft.
func (d *Detector) checkBody(body []byte) Detection {
	if len(body) == 0 {
		return Detection{
			Detected:   true,
			Signal:     SignalEmptyContent,
			Confidence: 80,
			Reason:     "empty response body",
		}
	}

	content := string(body)
	lower := strings.ToLower(content)

	if pattern := firstMatch(lower, challengePatterns); pattern != "" {
		return Detection{
			Detected:   true,
			Signal:     SignalChallenge,
			Confidence: 90,
			Reason:     "challenge interstitial marker: " + pattern,
		}
	}
	if pattern := firstMatch(lower, captchaPatterns); pattern != "" {
		return Detection{
			Detected:   true,
			Signal:     SignalCaptcha,
			Confidence: 95,
			Reason:     "captcha marker: " + pattern,
		}
	}
	if pattern := firstMatch(lower, deniedPatterns); pattern != "" {
		return Detection{
			Detected:   true,
			Signal:     SignalAccessDenied,
			Confidence: 85,
			Reason:     "access denied message: " + pattern,
		}
	}
	if pattern := firstMatch(lower, jsShellPatterns); pattern != "" {
		return Detection{
			Detected:   true,
			Signal:     SignalJSRequired,
			Confidence: 80,
			Reason:     "page asks for JavaScript: " + pattern,
		}
	}

	for _, re := range spaRootRes {
		if re.MatchString(content) {
			return Detection{
				Detected:   true,
				Signal:     SignalJSRequired,
				Confidence: 90,
				Reason:     "empty SPA mount point, content is script-rendered",
			}
		}
	}

	if verdict := d.checkTextRatio(content); verdict.Detected {
		return verdict
	}

	if len(body) < d.MinContentLength && !contentStructureRe.MatchString(content) {
		return Detection{
			Detected:   true,
			Signal:     SignalEmptyContent,
			Confidence: 60,
			Reason:     "response too small to be a content page",
		}
	}

	return Detection{}
}

// checkTextRatio measures visible text against markup size. Pages whose
// static HTML carries almost no text (navigation and footer only) render
// their content via scripts.
func (d *Detector) checkTextRatio(content string) Detection {
	cleaned := scriptBlockRe.ReplaceAllString(content, "")
	cleaned = styleBlockRe.ReplaceAllString(cleaned, "")
	cleaned = noscriptRe.ReplaceAllString(cleaned, "")

	visible := tagRe.ReplaceAllString(cleaned, " ")
	visible = strings.TrimSpace(whitespaceRe.ReplaceAllString(visible, " "))

	textLen := len(visible)
	htmlLen := len(content)

	// Short text plus a pile of links reads as a navigation shell.
	if textLen < 300 && strings.Count(strings.ToLower(content), "<a ") > 5 {
		return Detection{
			Detected:   true,
			Signal:     SignalJSRequired,
			Confidence: 75,
			Reason:     "only navigation text in static markup",
		}
	}

	if htmlLen > 1000 && float64(textLen)/float64(htmlLen) < 0.02 {
		return Detection{
			Detected:   true,
			Signal:     SignalJSRequired,
			Confidence: 70,
			Reason:     "visible text is under 2% of the markup",
		}
	}

	return Detection{}
}

func firstMatch(lower string, patterns []string) string {
	for _, pattern := range patterns {
		if strings.Contains(lower, pattern) {
			return pattern
		}
	}
	return ""
}
