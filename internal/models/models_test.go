package models

import (
	"encoding/json"
	"testing"
)

func TestStrategy_Valid(t *testing.T) {
	tests := []struct {
		name     string
		strategy Strategy
		want     bool
	}{
		{name: "auto", strategy: StrategyAuto, want: true},
		{name: "http", strategy: StrategyHTTP, want: true},
		{name: "headless", strategy: StrategyHeadless, want: true},
		{name: "automated", strategy: StrategyBrowser, want: true},
		{name: "empty", strategy: Strategy(""), want: false},
		{name: "unknown", strategy: Strategy("curl"), want: false},
		{name: "case sensitive", strategy: Strategy("HTTP"), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.strategy.Valid(); got != tt.want {
				t.Errorf("Strategy(%q).Valid() = %v, want %v", tt.strategy, got, tt.want)
			}
		})
	}
}

func TestJobStatus_Terminal(t *testing.T) {
	tests := []struct {
		name   string
		status JobStatus
		want   bool
	}{
		{name: "queued", status: JobStatusQueued, want: false},
		{name: "running", status: JobStatusRunning, want: false},
		{name: "succeeded", status: JobStatusSucceeded, want: true},
		{name: "failed", status: JobStatusFailed, want: true},
		{name: "cancelled", status: JobStatusCancelled, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.status.Terminal(); got != tt.want {
				t.Errorf("JobStatus(%q).Terminal() = %v, want %v", tt.status, got, tt.want)
			}
		})
	}
}

func TestJob_JSONOmitsUnsetLifecycleFields(t *testing.T) {
	job := Job{
		ID:                "job_01",
		ClientID:          "client_01",
		Type:              JobTypeScrape,
		Status:            JobStatusQueued,
		URL:               "https://example.com",
		RequestedStrategy: StrategyAuto,
	}

	data, err := json.Marshal(job)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}

	// A queued job has no error, summary or timestamps yet; serializing
	// them as null would leak lifecycle internals to API clients.
	for _, field := range []string{"error", "result_summary", "started_at", "finished_at", "parent_job_id", "notify_url"} {
		if _, present := decoded[field]; present {
			t.Errorf("queued job JSON contains %q, want it omitted", field)
		}
	}
}

func TestChunk_EmbeddingNeverSerialized(t *testing.T) {
	chunk := Chunk{
		ID:        "chunk_01",
		ClientID:  "client_01",
		Text:      "some text",
		Embedding: []byte{1, 2, 3, 4},
	}

	data, err := json.Marshal(chunk)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if _, present := decoded["Embedding"]; present {
		t.Error("chunk JSON contains raw embedding bytes")
	}
	if _, present := decoded["embedding"]; present {
		t.Error("chunk JSON contains raw embedding bytes")
	}
}
