package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/clienthubhq/clienthub-api/internal/models"
)

// SQLiteClientRepository implements ClientRepository for SQLite.
type SQLiteClientRepository struct {
	db *sql.DB
}

// NewSQLiteClientRepository creates a new SQLite client repository.
func NewSQLiteClientRepository(db *sql.DB) *SQLiteClientRepository {
	return &SQLiteClientRepository{db: db}
}

const clientColumns = `id, name, email, company, website, phone, industry, notes, is_active, created_at, updated_at`

func (r *SQLiteClientRepository) Create(ctx context.Context, client *models.Client) error {
	query := `
		INSERT INTO clients (id, name, email, company, website, phone, industry, notes, is_active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	isActive := 0
	if client.IsActive {
		isActive = 1
	}
	_, err := r.db.ExecContext(ctx, query,
		client.ID,
		client.Name,
		client.Email,
		nullString(client.Company),
		nullString(client.Website),
		nullString(client.Phone),
		nullString(client.Industry),
		nullString(client.Notes),
		isActive,
		client.CreatedAt.Format(time.RFC3339),
		client.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to create client: %w", err)
	}
	return nil
}

func (r *SQLiteClientRepository) GetByID(ctx context.Context, id string) (*models.Client, error) {
	query := `SELECT ` + clientColumns + ` FROM clients WHERE id = ?`
	return r.scanClient(r.db.QueryRowContext(ctx, query, id))
}

func (r *SQLiteClientRepository) GetByEmail(ctx context.Context, email string) (*models.Client, error) {
	query := `SELECT ` + clientColumns + ` FROM clients WHERE email = ?`
	return r.scanClient(r.db.QueryRowContext(ctx, query, email))
}

func (r *SQLiteClientRepository) List(ctx context.Context, includeInactive bool, limit, offset int) ([]*models.Client, error) {
	query := `SELECT ` + clientColumns + ` FROM clients`
	if !includeInactive {
		query += ` WHERE is_active = 1`
	}
	query += ` ORDER BY created_at DESC LIMIT ? OFFSET ?`

	rows, err := r.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query clients: %w", err)
	}
	defer rows.Close()

	var clients []*models.Client
	for rows.Next() {
		client, err := r.scanClientFromRows(rows)
		if err != nil {
			return nil, err
		}
		clients = append(clients, client)
	}
	return clients, rows.Err()
}

func (r *SQLiteClientRepository) Update(ctx context.Context, client *models.Client) error {
	query := `
		UPDATE clients SET name = ?, email = ?, company = ?, website = ?, phone = ?,
			industry = ?, notes = ?, is_active = ?, updated_at = ?
		WHERE id = ?
	`
	isActive := 0
	if client.IsActive {
		isActive = 1
	}
	_, err := r.db.ExecContext(ctx, query,
		client.Name,
		client.Email,
		nullString(client.Company),
		nullString(client.Website),
		nullString(client.Phone),
		nullString(client.Industry),
		nullString(client.Notes),
		isActive,
		time.Now().UTC().Format(time.RFC3339),
		client.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update client: %w", err)
	}
	return nil
}

func (r *SQLiteClientRepository) Deactivate(ctx context.Context, id string) error {
	query := `UPDATE clients SET is_active = 0, updated_at = ? WHERE id = ?`
	_, err := r.db.ExecContext(ctx, query, time.Now().UTC().Format(time.RFC3339), id)
	if err != nil {
		return fmt.Errorf("failed to deactivate client: %w", err)
	}
	return nil
}

func (r *SQLiteClientRepository) scanClient(row *sql.Row) (*models.Client, error) {
	var client models.Client
	var company, website, phone, industry, notes sql.NullString
	var isActive int
	var createdAt, updatedAt string

	err := row.Scan(
		&client.ID, &client.Name, &client.Email, &company, &website, &phone,
		&industry, &notes, &isActive, &createdAt, &updatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan client: %w", err)
	}

	client.Company = company.String
	client.Website = website.String
	client.Phone = phone.String
	client.Industry = industry.String
	client.Notes = notes.String
	client.IsActive = isActive == 1
	client.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	client.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)

	return &client, nil
}

func (r *SQLiteClientRepository) scanClientFromRows(rows *sql.Rows) (*models.Client, error) {
	var client models.Client
	var company, website, phone, industry, notes sql.NullString
	var isActive int
	var createdAt, updatedAt string

	err := rows.Scan(
		&client.ID, &client.Name, &client.Email, &company, &website, &phone,
		&industry, &notes, &isActive, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan client: %w", err)
	}

	client.Company = company.String
	client.Website = website.String
	client.Phone = phone.String
	client.Industry = industry.String
	client.Notes = notes.String
	client.IsActive = isActive == 1
	client.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	client.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)

	return &client, nil
}
