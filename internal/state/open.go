// Package state persists the active provider selection, the credential
// exported for it and the selection history in a local SQLite database.
package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver registration
)

// defaultBusyTimeout is the SQLite busy timeout in milliseconds.
const defaultBusyTimeout = 5000

// Store is the selection store. It is safe for concurrent use.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// DefaultPath returns $XDG_DATA_HOME/codexsw/state.db, falling back to
// ~/.local/share/codexsw/state.db.
func DefaultPath() (string, error) {
	if dir := os.Getenv("XDG_DATA_HOME"); dir != "" {
		return filepath.Join(dir, "codexsw", "state.db"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("state: resolve home directory: %w", err)
	}
	return filepath.Join(home, ".local", "share", "codexsw", "state.db"), nil
}

// Open opens the database at path, creating it and its directory when
// missing. The database uses WAL mode, a 5 s busy timeout and a single
// connection (SQLite serialises writes). The schema is migrated
// automatically.
func Open(ctx context.Context, path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("state: create directory %s: %w", dir, err)
		}
	}
	// The store holds credentials; create it private before SQLite does.
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return nil, fmt.Errorf("state: create %s: %w", path, err)
	}
	_ = f.Close()

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("state: open %s: %w", path, err)
	}

	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("state: enable WAL: %w", err)
	}

	if _, err := db.ExecContext(ctx, fmt.Sprintf("PRAGMA busy_timeout=%d", defaultBusyTimeout)); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("state: set busy_timeout: %w", err)
	}

	if err := migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db, now: time.Now}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	if err := s.db.Close(); err != nil && !errors.Is(err, sql.ErrConnDone) {
		return fmt.Errorf("state: close: %w", err)
	}
	return nil
}
