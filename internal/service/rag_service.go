package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/clienthubhq/clienthub-api/internal/config"
	"github.com/clienthubhq/clienthub-api/internal/models"
	"github.com/clienthubhq/clienthub-api/internal/vector"
)

// ErrNoDocumentsIndexed is returned when a client has nothing in its
// namespace yet. Distinct from an empty hit set, which is a valid result.
var ErrNoDocumentsIndexed = errors.New("no documents indexed for client")

// RAGService retrieves ranked chunks and assembles the generation context.
// It never calls the generation backend itself.
type RAGService struct {
	cfg    *config.Config
	index  *vector.Index
	logger *slog.Logger
}

// NewRAGService creates a new RAG service.
func NewRAGService(cfg *config.Config, index *vector.Index, logger *slog.Logger) *RAGService {
	return &RAGService{
		cfg:    cfg,
		index:  index,
		logger: logger,
	}
}

// Answer retrieves the k most relevant chunks for the question and assembles
// the context string. A client with no indexed documents at all yields
// ErrNoDocumentsIndexed; an empty hit set over a non-empty namespace yields
// an empty result.
func (s *RAGService) Answer(ctx context.Context, clientID, question string, k int) (*models.QueryResult, error) {
	if question == "" {
		return nil, fmt.Errorf("question is required")
	}
	if k <= 0 {
		k = s.cfg.RAGTopK
	}

	hits, err := s.index.Query(ctx, clientID, question, k)
	if err != nil {
		if errors.Is(err, vector.ErrNamespaceEmpty) {
			return nil, ErrNoDocumentsIndexed
		}
		return nil, fmt.Errorf("failed to query index: %w", err)
	}

	result := &models.QueryResult{
		Chunks:  hits,
		Context: assembleContext(hits, s.cfg.RAGContextBudget),
	}

	s.logger.Debug("rag retrieval",
		"client_id", clientID,
		"hits", len(hits),
		"context_chars", len([]rune(result.Context)),
	)
	return result, nil
}

// assembleContext concatenates chunk texts in rank order, each annotated
// with its source, truncated to at most budget characters.
func assembleContext(hits []models.ScoredChunk, budget int) string {
	if len(hits) == 0 || budget <= 0 {
		return ""
	}

	var b strings.Builder
	used := 0
	for _, hit := range hits {
		block := fmt.Sprintf("[source: %s]\n%s", hit.Chunk.SourceURL, hit.Chunk.Text)
		if b.Len() > 0 {
			block = "\n\n" + block
		}

		runes := []rune(block)
		if used+len(runes) > budget {
			remaining := budget - used
			if remaining > 0 {
				b.WriteString(string(runes[:remaining]))
			}
			break
		}

		b.WriteString(block)
		used += len(runes)
	}
	return b.String()
}
