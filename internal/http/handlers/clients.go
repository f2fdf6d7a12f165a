package handlers

import (
	"context"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/clienthubhq/clienthub-api/internal/models"
	"github.com/clienthubhq/clienthub-api/internal/service"
)

// ClientHandler handles client management endpoints.
type ClientHandler struct {
	clientSvc *service.ClientService
}

// NewClientHandler creates a new client handler.
func NewClientHandler(clientSvc *service.ClientService) *ClientHandler {
	return &ClientHandler{clientSvc: clientSvc}
}

// ClientBody is a client record in API responses.
type ClientBody struct {
	ID        string    `json:"id" example:"01J9F0M2T3GW7H0QXS3S8B3EXD" doc:"Client identifier (ULID)"`
	Name      string    `json:"name" example:"Acme Web Design"`
	Email     string    `json:"email" example:"hello@acme.example"`
	Company   string    `json:"company,omitempty" example:"Acme Inc"`
	Website   string    `json:"website,omitempty" example:"https://acme.example"`
	Phone     string    `json:"phone,omitempty"`
	Industry  string    `json:"industry,omitempty" example:"web design"`
	Notes     string    `json:"notes,omitempty"`
	IsActive  bool      `json:"is_active" doc:"False after soft delete"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func clientBody(c *models.Client) ClientBody {
	return ClientBody{
		ID:        c.ID,
		Name:      c.Name,
		Email:     c.Email,
		Company:   c.Company,
		Website:   c.Website,
		Phone:     c.Phone,
		Industry:  c.Industry,
		Notes:     c.Notes,
		IsActive:  c.IsActive,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
}

// CreateClientInput represents client creation request.
type CreateClientInput struct {
	Body struct {
		Name     string `json:"name" minLength:"1" maxLength:"200" example:"Acme Web Design" doc:"Display name"`
		Email    string `json:"email" format:"email" example:"hello@acme.example" doc:"Contact email, unique across clients"`
		Company  string `json:"company,omitempty" maxLength:"200" doc:"Company name"`
		Website  string `json:"website,omitempty" format:"uri" example:"https://acme.example" doc:"Primary website, used as the default scrape target"`
		Phone    string `json:"phone,omitempty" maxLength:"50"`
		Industry string `json:"industry,omitempty" maxLength:"100" example:"e-commerce"`
		Notes    string `json:"notes,omitempty" maxLength:"4000" doc:"Free-form notes"`
	}
}

// CreateClientOutput represents client creation response.
type CreateClientOutput struct {
	Body ClientBody
}

// CreateClient creates a new client record.
func (h *ClientHandler) CreateClient(ctx context.Context, input *CreateClientInput) (*CreateClientOutput, error) {
	if callerSubject(ctx) == "" {
		return nil, huma.Error401Unauthorized("unauthorized")
	}

	client, err := h.clientSvc.Create(ctx, service.CreateClientInput{
		Name:     input.Body.Name,
		Email:    input.Body.Email,
		Company:  input.Body.Company,
		Website:  input.Body.Website,
		Phone:    input.Body.Phone,
		Industry: input.Body.Industry,
		Notes:    input.Body.Notes,
	})
	if err != nil {
		return nil, mapServiceError("failed to create client", err)
	}

	return &CreateClientOutput{Body: clientBody(client)}, nil
}

// ListClientsInput represents client listing request.
type ListClientsInput struct {
	IncludeInactive bool `query:"include_inactive" default:"false" doc:"Include soft-deleted clients"`
	Limit           int  `query:"limit" default:"50" minimum:"1" maximum:"200" doc:"Number of clients to return"`
	Offset          int  `query:"offset" default:"0" minimum:"0" doc:"Offset for pagination"`
}

// ListClientsOutput represents client listing response.
type ListClientsOutput struct {
	Body struct {
		Clients []ClientBody `json:"clients"`
		Count   int          `json:"count" doc:"Number of clients in this page"`
	}
}

// ListClients lists client records, newest first.
func (h *ClientHandler) ListClients(ctx context.Context, input *ListClientsInput) (*ListClientsOutput, error) {
	if callerSubject(ctx) == "" {
		return nil, huma.Error401Unauthorized("unauthorized")
	}

	clients, err := h.clientSvc.List(ctx, input.IncludeInactive, input.Limit, input.Offset)
	if err != nil {
		return nil, mapServiceError("failed to list clients", err)
	}

	bodies := make([]ClientBody, 0, len(clients))
	for _, c := range clients {
		bodies = append(bodies, clientBody(c))
	}

	out := &ListClientsOutput{}
	out.Body.Clients = bodies
	out.Body.Count = len(bodies)
	return out, nil
}

// GetClientInput represents get client request.
type GetClientInput struct {
	ID string `path:"id" doc:"Client ID"`
}

// GetClientOutput represents get client response.
type GetClientOutput struct {
	Body ClientBody
}

// GetClient returns a single client record.
func (h *ClientHandler) GetClient(ctx context.Context, input *GetClientInput) (*GetClientOutput, error) {
	if callerSubject(ctx) == "" {
		return nil, huma.Error401Unauthorized("unauthorized")
	}

	client, err := h.clientSvc.Get(ctx, input.ID)
	if err != nil {
		return nil, mapServiceError("failed to get client", err)
	}
	if client == nil {
		return nil, huma.Error404NotFound("client not found")
	}

	return &GetClientOutput{Body: clientBody(client)}, nil
}

// UpdateClientInput represents client update request. Only fields present
// in the body are changed.
type UpdateClientInput struct {
	ID   string `path:"id" doc:"Client ID"`
	Body struct {
		Name     *string `json:"name,omitempty" maxLength:"200"`
		Email    *string `json:"email,omitempty" format:"email"`
		Company  *string `json:"company,omitempty" maxLength:"200"`
		Website  *string `json:"website,omitempty" format:"uri"`
		Phone    *string `json:"phone,omitempty" maxLength:"50"`
		Industry *string `json:"industry,omitempty" maxLength:"100"`
		Notes    *string `json:"notes,omitempty" maxLength:"4000"`
	}
}

// UpdateClientOutput represents client update response.
type UpdateClientOutput struct {
	Body ClientBody
}

// UpdateClient applies a partial update to a client record.
func (h *ClientHandler) UpdateClient(ctx context.Context, input *UpdateClientInput) (*UpdateClientOutput, error) {
	if callerSubject(ctx) == "" {
		return nil, huma.Error401Unauthorized("unauthorized")
	}

	client, err := h.clientSvc.Update(ctx, input.ID, service.UpdateClientInput{
		Name:     input.Body.Name,
		Email:    input.Body.Email,
		Company:  input.Body.Company,
		Website:  input.Body.Website,
		Phone:    input.Body.Phone,
		Industry: input.Body.Industry,
		Notes:    input.Body.Notes,
	})
	if err != nil {
		return nil, mapServiceError("failed to update client", err)
	}

	return &UpdateClientOutput{Body: clientBody(client)}, nil
}

// DeleteClientInput represents client deletion request.
type DeleteClientInput struct {
	ID string `path:"id" doc:"Client ID"`
}

// DeleteClientOutput represents client deletion response.
type DeleteClientOutput struct {
	Body struct {
		Success bool `json:"success" doc:"Whether deletion was successful"`
	}
}

// DeleteClient soft-deletes a client and purges its vector namespace.
// The record stays queryable with include_inactive; indexed content is gone.
func (h *ClientHandler) DeleteClient(ctx context.Context, input *DeleteClientInput) (*DeleteClientOutput, error) {
	if callerSubject(ctx) == "" {
		return nil, huma.Error401Unauthorized("unauthorized")
	}

	if err := h.clientSvc.Delete(ctx, input.ID); err != nil {
		return nil, mapServiceError("failed to delete client", err)
	}

	out := &DeleteClientOutput{}
	out.Body.Success = true
	return out, nil
}
