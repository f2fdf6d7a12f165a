// Package migrations applies versioned schema changes exactly once.
// Each migration lives in its own file named YYYYMMDD-HHmmss-description.go
// and registers itself from init(); applied versions are recorded in the
// schema_migrations table so restarts skip them.
package migrations

import (
	"database/sql"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"
)

// Migration is one schema change. Timestamp (YYYYMMDD-HHmmss) orders
// migrations and keys the applied-versions table.
type Migration struct {
	Timestamp   string
	Description string
	Up          []string // SQL statements, applied in order within one transaction
}

var registry []Migration

// Register adds a migration. Called from init() in each migration file.
func Register(m Migration) {
	registry = append(registry, m)
}

// Run applies every registered migration that has not run yet, oldest
// first. It creates the tracking table on first use.
func Run(db *sql.DB, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version TEXT PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at TEXT NOT NULL
		)
	`); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	applied, err := appliedVersions(db)
	if err != nil {
		return fmt.Errorf("read applied migrations: %w", err)
	}

	pending := make([]Migration, 0, len(registry))
	for _, m := range registry {
		if !applied[m.Timestamp] {
			pending = append(pending, m)
		}
	}
	sort.Slice(pending, func(i, j int) bool {
		return pending[i].Timestamp < pending[j].Timestamp
	})

	for _, m := range pending {
		logger.Info("applying migration", "version", m.Timestamp, "description", m.Description)
		if err := apply(db, m); err != nil {
			return fmt.Errorf("migration %s (%s): %w", m.Timestamp, m.Description, err)
		}
	}

	return nil
}

func appliedVersions(db *sql.DB) (map[string]bool, error) {
	rows, err := db.Query("SELECT version FROM schema_migrations")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	applied := make(map[string]bool)
	for rows.Next() {
		var version string
		if err := rows.Scan(&version); err != nil {
			return nil, err
		}
		applied[version] = true
	}

	return applied, rows.Err()
}

// apply runs one migration and records it, all in a single transaction so
// a failed statement leaves no partial schema change behind.
func apply(db *sql.DB, m Migration) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, stmt := range m.Up {
		if _, err := tx.Exec(stmt); err != nil {
			if ignorable(err, stmt) {
				continue
			}
			return fmt.Errorf("exec failed: %w\n%s", err, stmt)
		}
	}

	if _, err := tx.Exec(
		"INSERT INTO schema_migrations (version, description, applied_at) VALUES (?, ?, ?)",
		m.Timestamp, m.Description, time.Now().UTC().Format(time.RFC3339),
	); err != nil {
		return fmt.Errorf("record migration: %w", err)
	}

	return tx.Commit()
}

// ignorable reports whether an error means the statement's work is already
// done. Databases that predate the tracking table can have columns or
// indexes in place before the migration that adds them is recorded.
func ignorable(err error, stmt string) bool {
	msg := err.Error()

	if strings.Contains(msg, "duplicate column") {
		return true
	}
	if strings.Contains(msg, "already exists") && strings.Contains(stmt, "CREATE INDEX") {
		return true
	}

	return false
}

// GetLatestVersion returns the newest applied migration version, or the
// empty string when none have run.
func GetLatestVersion(db *sql.DB) (string, error) {
	var version sql.NullString
	err := db.QueryRow("SELECT version FROM schema_migrations ORDER BY version DESC LIMIT 1").Scan(&version)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return version.String, nil
}
