package state

import (
	"context"
	"database/sql"
	"fmt"
)

// migrations holds the DDL of each schema version, in order. Version N is
// migrations[N-1]. All statements use IF NOT EXISTS so a partially applied
// version can be re-run.
var migrations = [][]string{
	{
		`CREATE TABLE IF NOT EXISTS selections (
			id          TEXT    PRIMARY KEY,
			provider_id TEXT    NOT NULL,
			model       TEXT    NOT NULL DEFAULT '',
			model_index INTEGER NOT NULL DEFAULT 0,
			selected_at TEXT    NOT NULL
		)`,

		`CREATE INDEX IF NOT EXISTS idx_selections_time ON selections(selected_at)`,

		`CREATE TABLE IF NOT EXISTS credentials (
			env_key    TEXT PRIMARY KEY,
			api_key    TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS settings (
			name  TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,
	},
}

// schemaVersion is the latest schema version.
var schemaVersion = len(migrations)

// migrate brings the database schema up to schemaVersion. Running it on an
// up-to-date database is a no-op.
func migrate(ctx context.Context, db *sql.DB) error {
	// Ensure schema_version table exists first.
	if _, err := db.ExecContext(ctx, "CREATE TABLE IF NOT EXISTS schema_version (version INTEGER PRIMARY KEY)"); err != nil {
		return fmt.Errorf("state: create schema_version: %w", err)
	}

	var current int
	if err := db.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_version").Scan(&current); err != nil {
		return fmt.Errorf("state: read schema version: %w", err)
	}

	for v := current + 1; v <= schemaVersion; v++ {
		for _, stmt := range migrations[v-1] {
			if _, err := db.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("state: migrate to v%d: %w\nstatement: %s", v, err, stmt)
			}
		}
		if _, err := db.ExecContext(ctx, "INSERT OR REPLACE INTO schema_version (version) VALUES (?)", v); err != nil {
			return fmt.Errorf("state: record schema version %d: %w", v, err)
		}
	}

	return nil
}
