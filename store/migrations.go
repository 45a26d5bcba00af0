package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

// migration represents a single schema migration.
type migration struct {
	version     int
	description string
	apply       func(tx *sql.Tx) error
}

// migrations is the ordered list of all schema migrations.
// New migrations are appended at the end; never modify existing entries.
var migrations = []migration{
	{
		version:     1,
		description: "initial schema (applied via schemaSQL)",
		apply:       func(tx *sql.Tx) error { return nil }, // base schema applied separately
	},
	{
		version:     2,
		description: "index query_log by outcome and time",
		apply: func(tx *sql.Tx) error {
			for _, stmt := range []string{
				"CREATE INDEX IF NOT EXISTS idx_query_log_outcome ON query_log(outcome)",
				"CREATE INDEX IF NOT EXISTS idx_query_log_created ON query_log(created_at)",
			} {
				if _, err := tx.Exec(stmt); err != nil {
					return err
				}
			}
			return nil
		},
	},
}

// Migrate runs all pending schema migrations.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER PRIMARY KEY,
			description TEXT,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`); err != nil {
		return fmt.Errorf("creating schema_version table: %w", err)
	}

	current, err := s.SchemaVersion(ctx)
	if err != nil {
		return err
	}

	for _, m := range migrations {
		if m.version <= current {
			continue
		}

		slog.Info("store: applying migration", "version", m.version, "description", m.description)

		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", m.version, err)
		}

		if err := m.apply(tx); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d failed: %w", m.version, err)
		}

		if _, err := tx.ExecContext(ctx,
			"INSERT INTO schema_version (version, description) VALUES (?, ?)",
			m.version, m.description); err != nil {
			tx.Rollback()
			return fmt.Errorf("recording migration %d: %w", m.version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing migration %d: %w", m.version, err)
		}
	}

	return nil
}

// SchemaVersion returns the highest applied migration.
func (s *Store) SchemaVersion(ctx context.Context) (int, error) {
	var current int
	row := s.db.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_version")
	if err := row.Scan(&current); err != nil {
		return 0, fmt.Errorf("reading schema version: %w", err)
	}
	return current, nil
}
