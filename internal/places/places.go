// Package places looks up businesses for competitor analysis via the Google
// Places text-search API.
package places

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Default configuration values.
const (
	DefaultBaseURL = "https://places.googleapis.com/v1"
	DefaultTimeout = 30 * time.Second

	// maxPageSize is the largest result count the API accepts per request.
	maxPageSize = 20
)

// Place is a single business returned by a text search.
type Place struct {
	Name        string   `json:"name"`
	Address     string   `json:"address,omitempty"`
	Rating      float64  `json:"rating,omitempty"`
	RatingCount int      `json:"rating_count,omitempty"`
	Website     string   `json:"website,omitempty"`
	Types       []string `json:"types,omitempty"`
}

// Finder answers free-text business lookups. Tests substitute canned
// implementations.
type Finder interface {
	SearchText(ctx context.Context, query string, limit int) ([]Place, error)
}

var _ Finder = (*Client)(nil)

// Config holds settings for the Places backend.
type Config struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
}

// Client calls the Places searchText endpoint.
type Client struct {
	client  *http.Client
	baseURL string
	apiKey  string
}

type searchTextRequest struct {
	TextQuery string `json:"textQuery"`
	PageSize  int    `json:"pageSize,omitempty"`
}

type searchTextResponse struct {
	Places []struct {
		DisplayName struct {
			Text string `json:"text"`
		} `json:"displayName"`
		FormattedAddress string   `json:"formattedAddress"`
		Rating           float64  `json:"rating"`
		UserRatingCount  int      `json:"userRatingCount"`
		WebsiteURI       string   `json:"websiteUri"`
		Types            []string `json:"types"`
	} `json:"places"`
	Error *struct {
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error,omitempty"`
}

// fieldMask limits the response to the fields Place carries.
const fieldMask = "places.displayName,places.formattedAddress,places.rating,places.userRatingCount,places.websiteUri,places.types"

// NewClient creates a Places client.
func NewClient(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("places: API key is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}

	return &Client{
		client:  &http.Client{Timeout: cfg.Timeout},
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
	}, nil
}

// SearchText runs a free-text search and returns up to limit places.
func (c *Client) SearchText(ctx context.Context, query string, limit int) ([]Place, error) {
	if query == "" {
		return nil, fmt.Errorf("places: query is required")
	}
	if limit <= 0 || limit > maxPageSize {
		limit = maxPageSize
	}

	jsonBody, err := json.Marshal(searchTextRequest{TextQuery: query, PageSize: limit})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/places:searchText", bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Goog-Api-Key", c.apiKey)
	req.Header.Set("X-Goog-FieldMask", fieldMask)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var parsed searchTextResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if parsed.Error != nil {
		return nil, fmt.Errorf("places backend: %s", parsed.Error.Message)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("places backend returned status %d: %s", resp.StatusCode, string(body))
	}

	result := make([]Place, 0, len(parsed.Places))
	for _, p := range parsed.Places {
		result = append(result, Place{
			Name:        p.DisplayName.Text,
			Address:     p.FormattedAddress,
			Rating:      p.Rating,
			RatingCount: p.UserRatingCount,
			Website:     p.WebsiteURI,
			Types:       p.Types,
		})
	}
	return result, nil
}
