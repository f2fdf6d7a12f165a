package mw

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

// ========================================
// RateLimitByCredential Tests
// ========================================

func TestRateLimitByCredential_Anonymous(t *testing.T) {
	handler := RateLimitByCredential(RateLimitConfig{PerCredential: 10, PerIP: 2})(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	req.RemoteAddr = "192.168.1.1:12345"

	// Anonymous requests draw from the per-IP budget
	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d, want %d", i+1, rec.Code, http.StatusOK)
		}
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("status = %d, want %d after budget exhausted", rec.Code, http.StatusTooManyRequests)
	}
}

func TestRateLimitByCredential_CredentialGetsOwnBudget(t *testing.T) {
	handler := RateLimitByCredential(RateLimitConfig{PerCredential: 3, PerIP: 1})(okHandler())

	// Exhaust the IP budget first
	anon := httptest.NewRequest(http.MethodGet, "/api/v1/jobs", nil)
	anon.RemoteAddr = "10.0.0.1:9999"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, anon)
	if rec.Code != http.StatusOK {
		t.Fatalf("anonymous request: status = %d, want %d", rec.Code, http.StatusOK)
	}

	// A credentialed request from the same IP still passes
	authed := httptest.NewRequest(http.MethodGet, "/api/v1/jobs", nil)
	authed.RemoteAddr = "10.0.0.1:9999"
	authed.Header.Set("Authorization", "Bearer ch_live_abc123")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, authed)
	if rec.Code != http.StatusOK {
		t.Errorf("credentialed request: status = %d, want %d", rec.Code, http.StatusOK)
	}
}

func TestRateLimitByCredential_ZeroMeansUnlimited(t *testing.T) {
	handler := RateLimitByCredential(RateLimitConfig{PerCredential: 0, PerIP: 1})(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/jobs", nil)
	req.RemoteAddr = "10.0.0.2:9999"
	req.Header.Set("Authorization", "Bearer ch_live_abc123")

	for i := 0; i < 20; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d, want %d", i+1, rec.Code, http.StatusOK)
		}
	}
}

// ========================================
// bearerCredential Tests
// ========================================

func TestBearerCredential(t *testing.T) {
	tests := []struct {
		name   string
		header string
		want   string
	}{
		{"no header", "", ""},
		{"bearer prefix", "Bearer ch_live_abc", "ch_live_abc"},
		{"bare credential", "ch_live_abc", "ch_live_abc"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			if got := bearerCredential(req); got != tt.want {
				t.Errorf("bearerCredential() = %q, want %q", got, tt.want)
			}
		})
	}
}

// ========================================
// DefaultRateLimitConfig Tests
// ========================================

func TestDefaultRateLimitConfig(t *testing.T) {
	cfg := DefaultRateLimitConfig()
	if cfg.PerCredential <= cfg.PerIP {
		t.Errorf("PerCredential (%d) should exceed PerIP (%d)", cfg.PerCredential, cfg.PerIP)
	}
}

// ========================================
// RateLimitGlobal Tests
// ========================================

func TestRateLimitGlobal_SharedBudget(t *testing.T) {
	handler := RateLimitGlobal(2)(okHandler())

	// Two different IPs share the single global budget
	for i, addr := range []string{"1.1.1.1:1", "2.2.2.2:2"} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = addr
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d, want %d", i+1, rec.Code, http.StatusOK)
		}
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "3.3.3.3:3"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusTooManyRequests)
	}
}
