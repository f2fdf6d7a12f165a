package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	appconfig "github.com/clienthubhq/clienthub-api/internal/config"
	"github.com/clienthubhq/clienthub-api/internal/llm"
	"github.com/clienthubhq/clienthub-api/internal/models"
	"github.com/clienthubhq/clienthub-api/internal/places"
	"github.com/clienthubhq/clienthub-api/internal/repository"
	"github.com/clienthubhq/clienthub-api/internal/vector"
)

// ErrGenerationUnavailable is returned when no generation backend is
// configured.
var ErrGenerationUnavailable = errors.New("generation backend is not configured")

const (
	analysisMaxTokens   = 1024
	analysisTemperature = 0.3
	competitorLimit     = 5
)

// AnalysisService assembles a client analysis from the client record, the
// indexed content and an optional competitor lookup.
type AnalysisService struct {
	cfg       *appconfig.Config
	repos     *repository.Repositories
	rag       *RAGService
	index     *vector.Index
	generator llm.Generator
	finder    places.Finder
	logger    *slog.Logger
}

// NewAnalysisService creates a new analysis service. generator and finder
// may be nil when the corresponding backends are not configured.
func NewAnalysisService(cfg *appconfig.Config, repos *repository.Repositories, rag *RAGService, index *vector.Index, generator llm.Generator, finder places.Finder, logger *slog.Logger) *AnalysisService {
	return &AnalysisService{
		cfg:       cfg,
		repos:     repos,
		rag:       rag,
		index:     index,
		generator: generator,
		finder:    finder,
		logger:    logger,
	}
}

// AnalyzeInput holds an analysis request. Focus is an optional free-text
// angle for the analysis, e.g. "pricing strategy".
type AnalyzeInput struct {
	ClientID string
	Focus    string
}

// AnalysisResult is a generated client analysis.
type AnalysisResult struct {
	ClientID    string         `json:"client_id"`
	Summary     string         `json:"summary"`
	Sources     []string       `json:"sources,omitempty"`
	Competitors []places.Place `json:"competitors,omitempty"`
	GeneratedAt time.Time      `json:"generated_at"`
}

// Analyze generates an analysis for a client. Indexed content and the
// competitor lookup are both optional inputs: a client with nothing indexed
// still gets an analysis from its record alone.
func (s *AnalysisService) Analyze(ctx context.Context, input AnalyzeInput) (*AnalysisResult, error) {
	if s.generator == nil {
		return nil, ErrGenerationUnavailable
	}

	client, err := s.repos.Client.GetByID(ctx, input.ClientID)
	if err != nil {
		return nil, fmt.Errorf("failed to get client: %w", err)
	}
	if client == nil {
		return nil, ErrClientNotFound
	}

	question := input.Focus
	if question == "" {
		question = "What does this business offer and how does it position itself?"
	}

	var ragContext string
	var sources []string
	retrieval, err := s.rag.Answer(ctx, client.ID, question, s.cfg.RAGTopK)
	switch {
	case errors.Is(err, ErrNoDocumentsIndexed):
		// Nothing indexed yet. The record alone still supports an analysis.
	case err != nil:
		return nil, fmt.Errorf("failed to retrieve context: %w", err)
	default:
		ragContext = retrieval.Context
		sources, err = s.index.ListSources(ctx, client.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to list sources: %w", err)
		}
	}

	competitors := s.lookupCompetitors(ctx, client)

	prompt := buildAnalysisPrompt(client, ragContext, competitors, input.Focus)
	messages := []llm.Message{
		{Role: "system", Content: "You are a business analyst. Answer concisely in plain prose, grounded only in the material provided."},
		{Role: "user", Content: prompt},
	}

	summary, err := s.generator.Generate(ctx, messages, llm.GenerateOptions{
		MaxTokens:   analysisMaxTokens,
		Temperature: analysisTemperature,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to generate analysis: %w", err)
	}

	s.logger.Info("analysis generated",
		"client_id", client.ID,
		"context_chars", len(ragContext),
		"sources", len(sources),
		"competitors", len(competitors),
	)
	return &AnalysisResult{
		ClientID:    client.ID,
		Summary:     summary,
		Sources:     sources,
		Competitors: competitors,
		GeneratedAt: time.Now(),
	}, nil
}

// lookupCompetitors queries the places backend for businesses in the
// client's industry. Failures degrade to no competitors rather than failing
// the analysis.
func (s *AnalysisService) lookupCompetitors(ctx context.Context, client *models.Client) []places.Place {
	if s.finder == nil || client.Industry == "" {
		return nil
	}

	query := client.Industry + " companies"
	results, err := s.finder.SearchText(ctx, query, competitorLimit)
	if err != nil {
		s.logger.Warn("competitor lookup failed", "client_id", client.ID, "error", err)
		return nil
	}

	// The client's own site is not a competitor.
	filtered := results[:0]
	for _, p := range results {
		if client.Website != "" && p.Website == client.Website {
			continue
		}
		filtered = append(filtered, p)
	}
	return filtered
}

func buildAnalysisPrompt(client *models.Client, ragContext string, competitors []places.Place, focus string) string {
	var sb strings.Builder

	sb.WriteString("## Client Record\n")
	sb.WriteString(fmt.Sprintf("Name: %s\n", client.Name))
	if client.Company != "" {
		sb.WriteString(fmt.Sprintf("Company: %s\n", client.Company))
	}
	if client.Industry != "" {
		sb.WriteString(fmt.Sprintf("Industry: %s\n", client.Industry))
	}
	if client.Website != "" {
		sb.WriteString(fmt.Sprintf("Website: %s\n", client.Website))
	}
	if client.Notes != "" {
		sb.WriteString(fmt.Sprintf("Notes: %s\n", client.Notes))
	}

	if ragContext != "" {
		sb.WriteString("\n## Indexed Content\n")
		sb.WriteString(ragContext)
		sb.WriteString("\n")
	}

	if len(competitors) > 0 {
		sb.WriteString("\n## Nearby Businesses In The Same Industry\n")
		for _, p := range competitors {
			sb.WriteString(fmt.Sprintf("- %s (%s)", p.Name, p.Address))
			if p.Rating > 0 {
				sb.WriteString(fmt.Sprintf(", rated %.1f by %d reviews", p.Rating, p.RatingCount))
			}
			sb.WriteString("\n")
		}
	}

	sb.WriteString("\n## Task\n")
	if focus != "" {
		sb.WriteString(fmt.Sprintf("Analyze this client with a focus on: %s.\n", focus))
	} else {
		sb.WriteString("Summarize what this client's business does, its apparent strengths, and any gaps worth discussing with them.\n")
	}
	sb.WriteString("If competitor businesses are listed, briefly compare the client against them.")

	return sb.String()
}
