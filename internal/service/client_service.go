package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/clienthubhq/clienthub-api/internal/models"
	"github.com/clienthubhq/clienthub-api/internal/repository"
	"github.com/clienthubhq/clienthub-api/internal/vector"
)

var (
	ErrClientNotFound = errors.New("client not found")
	ErrClientInactive = errors.New("client is inactive")
	ErrEmailTaken     = errors.New("email already in use")
)

// ClientService manages client records and their lifecycle.
type ClientService struct {
	repos   *repository.Repositories
	index   *vector.Index
	storage *StorageService
	logger  *slog.Logger
}

// NewClientService creates a new client service.
func NewClientService(repos *repository.Repositories, index *vector.Index, storage *StorageService, logger *slog.Logger) *ClientService {
	return &ClientService{
		repos:   repos,
		index:   index,
		storage: storage,
		logger:  logger,
	}
}

// CreateClientInput holds the fields accepted when creating a client.
type CreateClientInput struct {
	Name     string
	Email    string
	Company  string
	Website  string
	Phone    string
	Industry string
	Notes    string
}

// UpdateClientInput holds the updatable fields. Nil pointers leave the
// current value untouched.
type UpdateClientInput struct {
	Name     *string
	Email    *string
	Company  *string
	Website  *string
	Phone    *string
	Industry *string
	Notes    *string
}

// Create validates and stores a new client record.
func (s *ClientService) Create(ctx context.Context, input CreateClientInput) (*models.Client, error) {
	if input.Name == "" {
		return nil, fmt.Errorf("client name is required")
	}
	if _, err := mail.ParseAddress(input.Email); err != nil {
		return nil, fmt.Errorf("invalid email address: %w", err)
	}

	existing, err := s.repos.Client.GetByEmail(ctx, input.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to check email: %w", err)
	}
	if existing != nil {
		return nil, ErrEmailTaken
	}

	now := time.Now()
	client := &models.Client{
		ID:        ulid.Make().String(),
		Name:      input.Name,
		Email:     input.Email,
		Company:   input.Company,
		Website:   input.Website,
		Phone:     input.Phone,
		Industry:  input.Industry,
		Notes:     input.Notes,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.repos.Client.Create(ctx, client); err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}

	s.logger.Info("client created", "client_id", client.ID, "name", client.Name)
	return client, nil
}

// Get retrieves a client by ID. Returns nil, nil when absent.
func (s *ClientService) Get(ctx context.Context, id string) (*models.Client, error) {
	client, err := s.repos.Client.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get client: %w", err)
	}
	return client, nil
}

// List returns clients, active only unless includeInactive is set.
func (s *ClientService) List(ctx context.Context, includeInactive bool, limit, offset int) ([]*models.Client, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	clients, err := s.repos.Client.List(ctx, includeInactive, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list clients: %w", err)
	}
	return clients, nil
}

// Update applies the provided fields to a client record.
func (s *ClientService) Update(ctx context.Context, id string, input UpdateClientInput) (*models.Client, error) {
	client, err := s.repos.Client.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get client: %w", err)
	}
	if client == nil {
		return nil, ErrClientNotFound
	}

	if input.Name != nil {
		if *input.Name == "" {
			return nil, fmt.Errorf("client name is required")
		}
		client.Name = *input.Name
	}
	if input.Email != nil {
		if _, err := mail.ParseAddress(*input.Email); err != nil {
			return nil, fmt.Errorf("invalid email address: %w", err)
		}
		if *input.Email != client.Email {
			existing, err := s.repos.Client.GetByEmail(ctx, *input.Email)
			if err != nil {
				return nil, fmt.Errorf("failed to check email: %w", err)
			}
			if existing != nil {
				return nil, ErrEmailTaken
			}
		}
		client.Email = *input.Email
	}
	if input.Company != nil {
		client.Company = *input.Company
	}
	if input.Website != nil {
		client.Website = *input.Website
	}
	if input.Phone != nil {
		client.Phone = *input.Phone
	}
	if input.Industry != nil {
		client.Industry = *input.Industry
	}
	if input.Notes != nil {
		client.Notes = *input.Notes
	}
	client.UpdatedAt = time.Now()

	if err := s.repos.Client.Update(ctx, client); err != nil {
		return nil, fmt.Errorf("failed to update client: %w", err)
	}
	return client, nil
}

// Delete soft-deletes a client and purges its vector namespace. Document
// metadata and sink payloads survive; the documents endpoint purges those
// separately.
func (s *ClientService) Delete(ctx context.Context, id string) error {
	client, err := s.repos.Client.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to get client: %w", err)
	}
	if client == nil {
		return ErrClientNotFound
	}

	if err := s.repos.Client.Deactivate(ctx, id); err != nil {
		return fmt.Errorf("failed to deactivate client: %w", err)
	}

	purged, err := s.index.Purge(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to purge client namespace: %w", err)
	}

	s.logger.Info("client deleted", "client_id", id, "chunks_purged", purged)
	return nil
}
