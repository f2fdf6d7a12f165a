package mw

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// IPBlocklist rejects requests from denied addresses. The deny list is a
// JSON array of IPs and CIDR ranges stored in the document sink bucket,
// refreshed lazily with etag-conditional fetches. Any storage failure
// fails open: a broken blocklist must never take the API down with it.
type IPBlocklist struct {
	s3Client *s3.Client
	bucket   string
	key      string

	mu           sync.RWMutex
	exact        map[string]struct{}
	ranges       []*net.IPNet
	etag         string
	checkedAt    time.Time
	erroredAt    time.Time
	loaded       bool
	refreshEvery time.Duration
	retryAfter   time.Duration
	logger       *slog.Logger
}

// BlocklistConfig holds configuration for the IP blocklist.
type BlocklistConfig struct {
	S3Client     *s3.Client
	Bucket       string
	Key          string
	RefreshEvery time.Duration // how often to check for updates (default: 5 min)
	RetryAfter   time.Duration // backoff after a fetch error (default: 1 min)
	Logger       *slog.Logger
}

// NewIPBlocklist creates the blocklist middleware. Nothing is fetched
// until the first request arrives.
func NewIPBlocklist(cfg BlocklistConfig) *IPBlocklist {
	if cfg.RefreshEvery == 0 {
		cfg.RefreshEvery = 5 * time.Minute
	}
	if cfg.RetryAfter == 0 {
		cfg.RetryAfter = 1 * time.Minute
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &IPBlocklist{
		s3Client:     cfg.S3Client,
		bucket:       cfg.Bucket,
		key:          cfg.Key,
		exact:        make(map[string]struct{}),
		refreshEvery: cfg.RefreshEvery,
		retryAfter:   cfg.RetryAfter,
		logger:       cfg.Logger,
	}
}

// Middleware returns the HTTP middleware handler.
func (b *IPBlocklist) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if b.s3Client == nil {
				next.ServeHTTP(w, r)
				return
			}

			b.maybeRefresh(r.Context())

			ip := clientIP(r)
			if b.Blocked(ip) {
				b.logger.Warn("blocked request from denied IP", "ip", ip, "path", r.URL.Path)
				http.Error(w, "Forbidden", http.StatusForbidden)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// Blocked reports whether the address is on the deny list.
func (b *IPBlocklist) Blocked(ipStr string) bool {
	ip := net.ParseIP(ipStr)
	if ip == nil {
		return false
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	if _, ok := b.exact[ip.String()]; ok {
		return true
	}
	for _, r := range b.ranges {
		if r.Contains(ip) {
			return true
		}
	}
	return false
}

// maybeRefresh kicks off a background refresh when the cached list is due
// and the last fetch error has aged out. Requests are never blocked on it.
func (b *IPBlocklist) maybeRefresh(ctx context.Context) {
	b.mu.RLock()
	due := !b.loaded || time.Since(b.checkedAt) > b.refreshEvery
	backingOff := !b.erroredAt.IsZero() && time.Since(b.erroredAt) < b.retryAfter
	b.mu.RUnlock()

	if due && !backingOff {
		go b.refresh(ctx)
	}
}

func (b *IPBlocklist) refresh(ctx context.Context) {
	b.mu.Lock()
	if b.loaded && time.Since(b.checkedAt) < b.refreshEvery {
		b.mu.Unlock()
		return
	}
	etag := b.etag
	b.mu.Unlock()

	input := &s3.GetObjectInput{
		Bucket: &b.bucket,
		Key:    &b.key,
	}
	if etag != "" {
		input.IfNoneMatch = &etag
	}

	resp, err := b.s3Client.GetObject(ctx, input)
	if err != nil {
		b.recordFetchError(err)
		return
	}
	defer resp.Body.Close()

	var entries []string
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		b.recordFetchError(err)
		b.logger.Error("failed to parse blocklist JSON", "error", err)
		return
	}

	exact := make(map[string]struct{})
	var ranges []*net.IPNet
	for _, entry := range entries {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		if strings.Contains(entry, "/") {
			_, ipNet, err := net.ParseCIDR(entry)
			if err != nil {
				b.logger.Warn("invalid CIDR in blocklist", "entry", entry, "error", err)
				continue
			}
			ranges = append(ranges, ipNet)
			continue
		}
		if ip := net.ParseIP(entry); ip != nil {
			exact[ip.String()] = struct{}{}
		} else {
			b.logger.Warn("invalid IP in blocklist", "entry", entry)
		}
	}

	b.mu.Lock()
	b.exact = exact
	b.ranges = ranges
	b.loaded = true
	b.checkedAt = time.Now()
	b.erroredAt = time.Time{}
	if resp.ETag != nil {
		b.etag = *resp.ETag
	}
	b.mu.Unlock()

	b.logger.Info("blocklist refreshed", "ips", len(exact), "ranges", len(ranges))
}

// recordFetchError classifies a GetObject failure. A missing object and an
// etag match are both normal; anything else logs and backs off.
func (b *IPBlocklist) recordFetchError(err error) {
	var noKey *types.NoSuchKey
	if errors.As(err, &noKey) {
		b.mu.Lock()
		b.loaded = true
		b.checkedAt = time.Now()
		b.erroredAt = time.Now()
		b.mu.Unlock()
		b.logger.Debug("no blocklist object in bucket", "bucket", b.bucket, "key", b.key)
		return
	}

	var notModified interface{ ErrorCode() string }
	if errors.As(err, &notModified) && notModified.ErrorCode() == "NotModified" {
		b.mu.Lock()
		b.checkedAt = time.Now()
		b.mu.Unlock()
		return
	}

	b.mu.Lock()
	b.loaded = true
	b.erroredAt = time.Now()
	b.mu.Unlock()
	b.logger.Error("failed to fetch blocklist", "error", err, "bucket", b.bucket, "key", b.key)
}

// clientIP gets the client IP from the request.
// Assumes middleware.RealIP has already been applied.
func clientIP(r *http.Request) string {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		// RemoteAddr might not carry a port
		return r.RemoteAddr
	}
	return ip
}
