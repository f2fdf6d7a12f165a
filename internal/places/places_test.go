package places

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestSearchText(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/places:searchText" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("X-Goog-Api-Key"); got != "test-key" {
			t.Errorf("X-Goog-Api-Key = %q, want test-key", got)
		}
		if got := r.Header.Get("X-Goog-FieldMask"); got == "" {
			t.Error("X-Goog-FieldMask header missing")
		}

		var req searchTextRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.TextQuery != "plumbers in Leeds" {
			t.Errorf("textQuery = %q, want %q", req.TextQuery, "plumbers in Leeds")
		}
		if req.PageSize != 5 {
			t.Errorf("pageSize = %d, want 5", req.PageSize)
		}

		resp := map[string]any{
			"places": []map[string]any{
				{
					"displayName":      map[string]any{"text": "Ace Plumbing"},
					"formattedAddress": "1 High St, Leeds",
					"rating":           4.6,
					"userRatingCount":  128,
					"websiteUri":       "https://aceplumbing.example.com",
					"types":            []string{"plumber"},
				},
				{
					"displayName":      map[string]any{"text": "Drain Masters"},
					"formattedAddress": "2 Low Rd, Leeds",
				},
			},
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	client, err := NewClient(Config{APIKey: "test-key", BaseURL: server.URL})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	result, err := client.SearchText(context.Background(), "plumbers in Leeds", 5)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(result) != 2 {
		t.Fatalf("expected 2 places, got %d", len(result))
	}
	if result[0].Name != "Ace Plumbing" {
		t.Errorf("Name = %q, want %q", result[0].Name, "Ace Plumbing")
	}
	if result[0].Rating != 4.6 {
		t.Errorf("Rating = %v, want 4.6", result[0].Rating)
	}
	if result[0].RatingCount != 128 {
		t.Errorf("RatingCount = %d, want 128", result[0].RatingCount)
	}
	if result[1].Website != "" {
		t.Errorf("Website = %q, want empty", result[1].Website)
	}
}

func TestSearchText_ClampsPageSize(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req searchTextRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.PageSize != maxPageSize {
			t.Errorf("pageSize = %d, want %d", req.PageSize, maxPageSize)
		}
		json.NewEncoder(w).Encode(map[string]any{"places": []map[string]any{}})
	}))
	defer server.Close()

	client, err := NewClient(Config{APIKey: "test-key", BaseURL: server.URL})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	if _, err := client.SearchText(context.Background(), "anything", 500); err != nil {
		t.Fatalf("search: %v", err)
	}
}

func TestSearchText_BackendError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]any{"message": "API key not valid", "status": "PERMISSION_DENIED"},
		})
	}))
	defer server.Close()

	client, err := NewClient(Config{APIKey: "bad-key", BaseURL: server.URL})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	if _, err := client.SearchText(context.Background(), "anything", 5); err == nil {
		t.Error("expected error from backend failure")
	}
}

func TestSearchText_RequiresQuery(t *testing.T) {
	client, err := NewClient(Config{APIKey: "test-key"})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	if _, err := client.SearchText(context.Background(), "", 5); err == nil {
		t.Error("expected error for empty query")
	}
}

func TestNewClient_RequiresAPIKey(t *testing.T) {
	if _, err := NewClient(Config{}); err == nil {
		t.Error("expected error for missing API key")
	}
}
