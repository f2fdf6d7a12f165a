package mw

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestTimeout_FastRequestPasses(t *testing.T) {
	handler := Timeout(TimeoutConfig{Default: 500 * time.Millisecond})(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/jobs", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}
}

func TestTimeout_SlowRequestTimesOut(t *testing.T) {
	slow := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
			w.WriteHeader(http.StatusOK)
		}
	})
	handler := Timeout(TimeoutConfig{Default: 20 * time.Millisecond})(slow)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/jobs", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusGatewayTimeout {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusGatewayTimeout)
	}
}

func TestTimeout_ExtendedPattern(t *testing.T) {
	// Sleeps past the default timeout but inside the extended one
	slowish := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(50 * time.Millisecond):
			w.WriteHeader(http.StatusOK)
		}
	})
	handler := Timeout(TimeoutConfig{
		Default:          10 * time.Millisecond,
		Extended:         time.Second,
		ExtendedPatterns: []string{"/rag/"},
	})(slowish)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/rag/query", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d for extended path", rec.Code, http.StatusOK)
	}
}

func TestTimeout_PanicPropagates(t *testing.T) {
	panicking := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	})
	handler := Timeout(TimeoutConfig{Default: time.Second})(panicking)

	defer func() {
		if recover() == nil {
			t.Error("expected panic to propagate through the middleware")
		}
	}()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	handler.ServeHTTP(httptest.NewRecorder(), req)
}
