// Package models defines the domain models for the application.
package models

import (
	"time"
)

// Strategy identifies an extraction strategy.
type Strategy string

const (
	// StrategyAuto lets the selector escalate from the cheapest strategy.
	StrategyAuto Strategy = "auto"
	// StrategyHTTP is a plain HTTP fetch without script execution.
	StrategyHTTP Strategy = "http"
	// StrategyHeadless renders the page in a headless browser.
	StrategyHeadless Strategy = "headless-browser"
	// StrategyBrowser renders the page with full browser automation
	// (stealth profile, scroll and settle). Heaviest, most reliable.
	StrategyBrowser Strategy = "automated-browser"
)

// Valid reports whether s is a known strategy value.
func (s Strategy) Valid() bool {
	switch s {
	case StrategyAuto, StrategyHTTP, StrategyHeadless, StrategyBrowser:
		return true
	}
	return false
}

// JobStatus represents the status of a job.
type JobStatus string

const (
	JobStatusQueued    JobStatus = "queued"
	JobStatusRunning   JobStatus = "running"
	JobStatusSucceeded JobStatus = "succeeded"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

// Terminal reports whether the status is a terminal state.
func (s JobStatus) Terminal() bool {
	return s == JobStatusSucceeded || s == JobStatusFailed || s == JobStatusCancelled
}

// JobType represents the type of job.
type JobType string

const (
	// JobTypeScrape fetches a URL and ingests the extracted content.
	JobTypeScrape JobType = "scrape"
	// JobTypeReprocess re-chunks and re-embeds an already-fetched document.
	JobTypeReprocess JobType = "reprocess"
)

// Job stages, recorded on failure so every error is attributable.
const (
	StageExtract     = "extract"
	StageChunk       = "chunk"
	StageUpsert      = "upsert"
	StagePersist     = "persist"
	StageOrchestrate = "orchestrate"
)

// Error kinds, stored alongside the stage.
const (
	ErrKindNetwork          = "network"
	ErrKindTimeout          = "timeout"
	ErrKindTooLarge         = "too_large"
	ErrKindBlocked          = "blocked"
	ErrKindIndexUnavailable = "index_unavailable"
	ErrKindCancelled        = "cancelled"
	ErrKindValidation       = "validation"
	ErrKindStale            = "stale"
	ErrKindInternal         = "internal"
)

// JobError is the structured failure record on a failed job.
type JobError struct {
	Stage   string `json:"stage"`
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// ResultSummary holds the counters populated when a job succeeds.
type ResultSummary struct {
	PagesFetched   int   `json:"pages_fetched"`
	ChunksProduced int   `json:"chunks_produced"`
	BytesExtracted int64 `json:"bytes_extracted"`
}

// Job represents one scrape-and-ingest request with a lifecycle.
// Status transitions are monotonic: queued -> running -> succeeded|failed,
// with cancelled reachable from queued or running.
type Job struct {
	ID                string         `json:"id"`
	ClientID          string         `json:"client_id"`
	Type              JobType        `json:"type"`
	ParentJobID       string         `json:"parent_job_id,omitempty"`
	Status            JobStatus      `json:"status"`
	URL               string         `json:"url"`
	RequestedStrategy Strategy       `json:"requested_strategy"`
	NotifyURL         string         `json:"notify_url,omitempty"`
	Error             *JobError      `json:"error,omitempty"`
	Summary           *ResultSummary `json:"result_summary,omitempty"`
	StartedAt         *time.Time     `json:"started_at,omitempty"`
	FinishedAt        *time.Time     `json:"finished_at,omitempty"`
	CreatedAt         time.Time      `json:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at"`
}

// Client is a managed client record. Jobs, documents and the vector
// namespace all hang off the client ID.
type Client struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Company   string    `json:"company,omitempty"`
	Website   string    `json:"website,omitempty"`
	Phone     string    `json:"phone,omitempty"`
	Industry  string    `json:"industry,omitempty"`
	Notes     string    `json:"notes,omitempty"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Heading is a document heading with its level and DOM attributes.
type Heading struct {
	Level int    `json:"level"`
	Text  string `json:"text"`
	ID    string `json:"id,omitempty"`
	Class string `json:"class,omitempty"`
}

// Link is an anchor found in the document.
type Link struct {
	Text        string `json:"text"`
	Href        string `json:"href"`
	AbsoluteURL string `json:"absolute_url"`
	Title       string `json:"title,omitempty"`
	Target      string `json:"target,omitempty"`
}

// Image is an image reference found in the document.
type Image struct {
	Src         string `json:"src"`
	AbsoluteURL string `json:"absolute_url"`
	Alt         string `json:"alt,omitempty"`
	Title       string `json:"title,omitempty"`
	Width       string `json:"width,omitempty"`
	Height      string `json:"height,omitempty"`
}

// FormInput is a single input inside a form.
type FormInput struct {
	Type        string `json:"type"`
	Name        string `json:"name,omitempty"`
	ID          string `json:"id,omitempty"`
	Placeholder string `json:"placeholder,omitempty"`
	Required    bool   `json:"required"`
}

// Form is a form element with its inputs.
type Form struct {
	Action string      `json:"action,omitempty"`
	Method string      `json:"method,omitempty"`
	Inputs []FormInput `json:"inputs,omitempty"`
}

// Table is a table element flattened to rows of cell text.
type Table struct {
	ID    string     `json:"id,omitempty"`
	Class string     `json:"class,omitempty"`
	Rows  [][]string `json:"rows,omitempty"`
}

// StructuredFields holds the typed records extracted alongside the text.
// Scripts and styles are stripped from the text but preserved here.
type StructuredFields struct {
	MetaDescription string    `json:"meta_description,omitempty"`
	MetaKeywords    string    `json:"meta_keywords,omitempty"`
	Headings        []Heading `json:"headings,omitempty"`
	Links           []Link    `json:"links,omitempty"`
	Images          []Image   `json:"images,omitempty"`
	Forms           []Form    `json:"forms,omitempty"`
	Tables          []Table   `json:"tables,omitempty"`
	Scripts         []string  `json:"scripts,omitempty"`
	Styles          []string  `json:"styles,omitempty"`
}

// ExtractedDocument is the normalized output of one extraction attempt.
// ContentHash is stable for byte-identical Text, which makes re-ingestion
// idempotent all the way down to chunk IDs.
type ExtractedDocument struct {
	SourceURL    string           `json:"source_url"`
	StrategyUsed Strategy         `json:"strategy_used"`
	Title        string           `json:"title,omitempty"`
	Text         string           `json:"text"`
	Structured   StructuredFields `json:"structured_fields"`
	RawHTML      string           `json:"raw_html,omitempty"`
	FetchedAt    time.Time        `json:"fetched_at"`
	ContentHash  string           `json:"content_hash"`
	LowContent   bool             `json:"low_content,omitempty"`
}

// Document is the persisted metadata row for an ExtractedDocument. The
// full payload lives in the document sink under ContentHash.
type Document struct {
	ID           string    `json:"id"`
	ClientID     string    `json:"client_id"`
	JobID        string    `json:"job_id,omitempty"`
	SourceURL    string    `json:"source_url,omitempty"`
	SourceType   string    `json:"source_type"` // scraped, manual
	Title        string    `json:"title,omitempty"`
	StrategyUsed Strategy  `json:"strategy_used,omitempty"`
	ContentHash  string    `json:"content_hash"`
	TextLength   int64     `json:"text_length"`
	LowContent   bool      `json:"low_content,omitempty"`
	FetchedAt    time.Time `json:"fetched_at"`
	CreatedAt    time.Time `json:"created_at"`
}

// Chunk is a bounded text segment with deterministic identity. ID is a
// hash over the source document's content hash and the chunk offset, so
// re-chunking identical input yields identical IDs.
type Chunk struct {
	ID          string    `json:"id"`
	ClientID    string    `json:"client_id"`
	ContentHash string    `json:"content_hash"`
	SourceURL   string    `json:"source_url,omitempty"`
	Offset      int       `json:"offset"`
	Text        string    `json:"text"`
	FetchedAt   time.Time `json:"fetched_at"`

	// Embedding is the encoded vector, populated at index time and never
	// exposed over the API.
	Embedding []byte `json:"-"`
}

// ScoredChunk pairs a retrieved chunk with its similarity score.
type ScoredChunk struct {
	Chunk Chunk   `json:"chunk"`
	Score float64 `json:"score"`
}

// QueryResult is the outcome of one RAG retrieval: ranked chunks plus the
// assembled context string. Ephemeral, never persisted.
type QueryResult struct {
	Chunks  []ScoredChunk `json:"chunks"`
	Context string        `json:"context"`
}
