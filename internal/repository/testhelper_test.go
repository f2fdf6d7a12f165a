package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/clienthubhq/clienthub-api/internal/database/migrations"
	"github.com/clienthubhq/clienthub-api/internal/models"
	"github.com/oklog/ulid/v2"
	_ "github.com/tursodatabase/go-libsql"
)

// setupTestDB creates an in-memory SQLite database for testing.
// It runs migrations and returns a database connection that will be cleaned up
// when the test completes.
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	// Create in-memory database
	db, err := sql.Open("libsql", ":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		t.Fatalf("failed to enable foreign keys: %v", err)
	}

	// Run migrations
	if err := migrations.Run(db, nil); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	// Clean up when test completes
	t.Cleanup(func() {
		_ = db.Close()
	})

	return db
}

// setupTestRepos creates all repositories using a test database.
func setupTestRepos(t *testing.T) *Repositories {
	t.Helper()
	db := setupTestDB(t)
	return NewRepositories(db)
}

// createTestClient inserts a client through the repository and returns it.
// Each call uses a fresh email so the unique constraint never trips.
func createTestClient(t *testing.T, repos *Repositories) *models.Client {
	t.Helper()
	client := &models.Client{
		ID:        ulid.Make().String(),
		Name:      "Acme Industrial",
		Email:     ulid.Make().String() + "@example.com",
		IsActive:  true,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	if err := repos.Client.Create(context.Background(), client); err != nil {
		t.Fatalf("failed to create test client: %v", err)
	}
	return client
}

// InsertTestClient is a helper to insert a test client directly.
func InsertTestClient(t *testing.T, db *sql.DB, id, name, email string) {
	t.Helper()
	query := `
		INSERT INTO clients (id, name, email, is_active, created_at, updated_at)
		VALUES (?, ?, ?, 1, strftime('%Y-%m-%dT%H:%M:%SZ', 'now'), strftime('%Y-%m-%dT%H:%M:%SZ', 'now'))
	`
	if _, err := db.Exec(query, id, name, email); err != nil {
		t.Fatalf("failed to insert test client: %v", err)
	}
}

// InsertTestJob is a helper to insert a test job directly. Timestamps are
// written in RFC3339 so they sort and parse the same as repository writes.
func InsertTestJob(t *testing.T, db *sql.DB, id, clientID, status string) {
	t.Helper()
	query := `
		INSERT INTO jobs (id, client_id, type, status, target_url, requested_strategy, created_at, updated_at)
		VALUES (?, ?, 'scrape', ?, 'https://example.com', 'auto', strftime('%Y-%m-%dT%H:%M:%SZ', 'now'), strftime('%Y-%m-%dT%H:%M:%SZ', 'now'))
	`
	if _, err := db.Exec(query, id, clientID, status); err != nil {
		t.Fatalf("failed to insert test job: %v", err)
	}
}

// InsertTestDocument is a helper to insert a test document directly.
func InsertTestDocument(t *testing.T, db *sql.DB, id, clientID, jobID, contentHash string) {
	t.Helper()
	query := `
		INSERT INTO documents (id, client_id, job_id, source_url, source_type, content_hash, fetched_at, created_at)
		VALUES (?, ?, ?, 'https://example.com', 'scraped', ?, strftime('%Y-%m-%dT%H:%M:%SZ', 'now'), strftime('%Y-%m-%dT%H:%M:%SZ', 'now'))
	`
	if _, err := db.Exec(query, id, clientID, jobID, contentHash); err != nil {
		t.Fatalf("failed to insert test document: %v", err)
	}
}
