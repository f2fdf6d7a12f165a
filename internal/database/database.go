// Package database opens the libsql connection and runs migrations.
package database

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/tursodatabase/go-libsql"

	"github.com/clienthubhq/clienthub-api/internal/database/migrations"
)

// New opens a database connection. Three deployment shapes are supported:
//
//   - plain local file: DATABASE_URL="file:clienthub.db?..."
//   - embedded replica: TURSO_URL + TURSO_AUTH_TOKEN set, local file syncs
//     with the remote
//   - libsql server: DATABASE_URL="http://127.0.0.1:8080" (turso dev)
func New(dsn string) (*sql.DB, error) {
	db, err := open(dsn)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return db, nil
}

func open(dsn string) (*sql.DB, error) {
	tursoURL := os.Getenv("TURSO_URL")
	tursoToken := os.Getenv("TURSO_AUTH_TOKEN")

	if tursoURL == "" || tursoToken == "" {
		db, err := sql.Open("libsql", dsn)
		if err != nil {
			return nil, fmt.Errorf("open database: %w", err)
		}
		return db, nil
	}

	// Embedded replica: reads hit the local file, writes sync with Turso.
	// The connector wants a bare path, not a file: URL.
	dbPath := strings.TrimPrefix(dsn, "file:")
	dbPath = strings.Split(dbPath, "?")[0]

	connector, err := libsql.NewEmbeddedReplicaConnector(dbPath, tursoURL,
		libsql.WithAuthToken(tursoToken),
		libsql.WithReadYourWrites(true),
	)
	if err != nil {
		return nil, fmt.Errorf("create replica connector: %w", err)
	}
	return sql.OpenDB(connector), nil
}

// Migrate runs database migrations.
func Migrate(db *sql.DB) error {
	return MigrateWithLogger(db, nil)
}

// MigrateWithLogger runs database migrations with a custom logger.
func MigrateWithLogger(db *sql.DB, logger *slog.Logger) error {
	return migrations.Run(db, logger)
}

// SchemaVersion returns the latest applied migration version, for the
// health endpoint.
func SchemaVersion(db *sql.DB) (string, error) {
	return migrations.GetLatestVersion(db)
}
