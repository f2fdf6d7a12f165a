package handlers

import (
	"context"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/clienthubhq/clienthub-api/internal/places"
	"github.com/clienthubhq/clienthub-api/internal/service"
)

// AnalysisHandler handles on-demand client analysis.
type AnalysisHandler struct {
	analysisSvc *service.AnalysisService
}

// NewAnalysisHandler creates a new analysis handler.
func NewAnalysisHandler(analysisSvc *service.AnalysisService) *AnalysisHandler {
	return &AnalysisHandler{analysisSvc: analysisSvc}
}

// CompetitorBody is one competitor business in an analysis response.
type CompetitorBody struct {
	Name        string  `json:"name"`
	Address     string  `json:"address,omitempty"`
	Rating      float64 `json:"rating,omitempty" example:"4.3"`
	RatingCount int     `json:"rating_count,omitempty"`
	Website     string  `json:"website,omitempty"`
}

func competitorBodies(found []places.Place) []CompetitorBody {
	if len(found) == 0 {
		return nil
	}
	bodies := make([]CompetitorBody, 0, len(found))
	for _, p := range found {
		bodies = append(bodies, CompetitorBody{
			Name:        p.Name,
			Address:     p.Address,
			Rating:      p.Rating,
			RatingCount: p.RatingCount,
			Website:     p.Website,
		})
	}
	return bodies
}

// AnalyzeClientInput represents client analysis request.
type AnalyzeClientInput struct {
	ID   string `path:"id" doc:"Client ID"`
	Body struct {
		Focus string `json:"focus,omitempty" maxLength:"500" example:"pricing strategy" doc:"Optional angle for the analysis"`
	}
}

// AnalyzeClientOutput represents client analysis response.
type AnalyzeClientOutput struct {
	Body struct {
		ClientID    string           `json:"client_id"`
		Summary     string           `json:"summary" doc:"Generated analysis"`
		Sources     []string         `json:"sources,omitempty" doc:"Indexed source URLs the analysis drew on"`
		Competitors []CompetitorBody `json:"competitors,omitempty" doc:"Businesses in the client's industry, when the places backend is configured"`
		GeneratedAt time.Time        `json:"generated_at"`
	}
}

// AnalyzeClient generates an analysis of a client from its record, its
// indexed content and an optional competitor lookup. Requires a generation
// backend; returns 503 when none is configured.
func (h *AnalysisHandler) AnalyzeClient(ctx context.Context, input *AnalyzeClientInput) (*AnalyzeClientOutput, error) {
	if callerSubject(ctx) == "" {
		return nil, huma.Error401Unauthorized("unauthorized")
	}

	result, err := h.analysisSvc.Analyze(ctx, service.AnalyzeInput{
		ClientID: input.ID,
		Focus:    input.Body.Focus,
	})
	if err != nil {
		return nil, mapServiceError("failed to analyze client", err)
	}

	out := &AnalyzeClientOutput{}
	out.Body.ClientID = result.ClientID
	out.Body.Summary = result.Summary
	out.Body.Sources = result.Sources
	out.Body.Competitors = competitorBodies(result.Competitors)
	out.Body.GeneratedAt = result.GeneratedAt
	return out, nil
}
