package handlers

import (
	"context"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/clienthubhq/clienthub-api/internal/llm"
	"github.com/clienthubhq/clienthub-api/internal/models"
	"github.com/clienthubhq/clienthub-api/internal/service"
)

// ragSystemPrompt frames the generation backend as a grounded assistant.
// Answers must come from the retrieved context, not model memory.
const ragSystemPrompt = `You are an assistant answering questions about a specific client using only the provided context. The context consists of excerpts scraped from the client's web presence, each annotated with its source URL. Answer the question using only that context. If the context does not contain the answer, say so plainly instead of guessing. Keep answers concise and cite source URLs where relevant.`

// RAGHandler handles retrieval and question answering over a client's
// indexed documents.
type RAGHandler struct {
	ragSvc    *service.RAGService
	generator llm.Generator
}

// NewRAGHandler creates a new RAG handler. generator may be nil, in which
// case query falls back to retrieval-only responses.
func NewRAGHandler(ragSvc *service.RAGService, generator llm.Generator) *RAGHandler {
	return &RAGHandler{ragSvc: ragSvc, generator: generator}
}

// ScoredChunkBody is one retrieval hit in API responses.
type ScoredChunkBody struct {
	ID        string    `json:"id" doc:"Chunk identifier"`
	SourceURL string    `json:"source_url,omitempty" doc:"Page the chunk was extracted from"`
	Text      string    `json:"text" doc:"Chunk text"`
	Score     float64   `json:"score" example:"0.87" doc:"Cosine similarity to the question"`
	FetchedAt time.Time `json:"fetched_at" doc:"When the source page was fetched"`
}

func scoredChunkBodies(hits []models.ScoredChunk) []ScoredChunkBody {
	bodies := make([]ScoredChunkBody, 0, len(hits))
	for _, hit := range hits {
		bodies = append(bodies, ScoredChunkBody{
			ID:        hit.Chunk.ID,
			SourceURL: hit.Chunk.SourceURL,
			Text:      hit.Chunk.Text,
			Score:     hit.Score,
			FetchedAt: hit.Chunk.FetchedAt,
		})
	}
	return bodies
}

// QueryRAGInput represents a RAG question.
type QueryRAGInput struct {
	Body struct {
		ClientID string `json:"client_id" minLength:"1" example:"01J9F0M2T3GW7H0QXS3S8B3EXD" doc:"Client whose documents to query"`
		Question string `json:"question" minLength:"1" maxLength:"2000" example:"What services does this client offer?" doc:"Natural-language question"`
		TopK     int    `json:"top_k,omitempty" minimum:"1" maximum:"20" doc:"Number of chunks to retrieve (default from server config)"`
	}
}

// QueryRAGOutput represents a RAG answer.
type QueryRAGOutput struct {
	Body struct {
		Answer    string            `json:"answer,omitempty" doc:"Generated answer; empty when no generation backend is configured"`
		Generated bool              `json:"generated" doc:"Whether answer came from the generation backend"`
		Chunks    []ScoredChunkBody `json:"chunks" doc:"Retrieved chunks the answer is grounded on"`
		Context   string            `json:"context" doc:"Assembled context handed to the generator"`
	}
}

// QueryRAG retrieves the most relevant chunks for the question and, when a
// generation backend is configured, produces a grounded answer. Without a
// backend the response degrades to retrieval-only.
func (h *RAGHandler) QueryRAG(ctx context.Context, input *QueryRAGInput) (*QueryRAGOutput, error) {
	if callerSubject(ctx) == "" {
		return nil, huma.Error401Unauthorized("unauthorized")
	}

	result, err := h.ragSvc.Answer(ctx, input.Body.ClientID, input.Body.Question, input.Body.TopK)
	if err != nil {
		return nil, mapServiceError("failed to query documents", err)
	}

	out := &QueryRAGOutput{}
	out.Body.Chunks = scoredChunkBodies(result.Chunks)
	out.Body.Context = result.Context

	if h.generator == nil || result.Context == "" {
		return out, nil
	}

	answer, err := h.generator.Generate(ctx, []llm.Message{
		{Role: "system", Content: ragSystemPrompt},
		{Role: "user", Content: "Context:\n" + result.Context + "\n\nQuestion: " + input.Body.Question},
	}, llm.GenerateOptions{})
	if err != nil {
		// Callers wanting retrieval without the generation dependency
		// use /rag/search instead.
		return nil, huma.Error502BadGateway("generation backend failed: " + err.Error())
	}

	out.Body.Answer = answer
	out.Body.Generated = true
	return out, nil
}

// SearchRAGInput represents a retrieval-only search.
type SearchRAGInput struct {
	Body struct {
		ClientID string `json:"client_id" minLength:"1" example:"01J9F0M2T3GW7H0QXS3S8B3EXD" doc:"Client whose documents to search"`
		Question string `json:"question" minLength:"1" maxLength:"2000" doc:"Query text"`
		TopK     int    `json:"top_k,omitempty" minimum:"1" maximum:"20" doc:"Number of chunks to retrieve (default from server config)"`
	}
}

// SearchRAGOutput represents retrieval-only results.
type SearchRAGOutput struct {
	Body struct {
		Chunks  []ScoredChunkBody `json:"chunks"`
		Context string            `json:"context" doc:"Assembled context string, ready for an external generator"`
	}
}

// SearchRAG retrieves ranked chunks without invoking the generation backend.
func (h *RAGHandler) SearchRAG(ctx context.Context, input *SearchRAGInput) (*SearchRAGOutput, error) {
	if callerSubject(ctx) == "" {
		return nil, huma.Error401Unauthorized("unauthorized")
	}

	result, err := h.ragSvc.Answer(ctx, input.Body.ClientID, input.Body.Question, input.Body.TopK)
	if err != nil {
		return nil, mapServiceError("failed to search documents", err)
	}

	out := &SearchRAGOutput{}
	out.Body.Chunks = scoredChunkBodies(result.Chunks)
	out.Body.Context = result.Context
	return out, nil
}
