package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrNoSelection is returned by Current before any selection was recorded.
var ErrNoSelection = errors.New("state: no provider selected")

const (
	// settingEnvKey names the settings row holding the last exported env key.
	settingEnvKey = "env_key"

	// SettingCodexConfig holds the Codex config.toml path chosen with
	// "codexsw set codex-config".
	SettingCodexConfig = "codex_config"
)

// Selection is one recorded provider switch.
type Selection struct {
	ID         string    `json:"id"`
	ProviderID string    `json:"provider"`
	Model      string    `json:"model,omitempty"`
	ModelIndex int       `json:"model_index,omitempty"`
	SelectedAt time.Time `json:"selected_at"`
}

// RecordSelection appends a selection; the newest one is current.
// modelIndex is 1-based and 0 when the provider lists no models.
func (s *Store) RecordSelection(ctx context.Context, providerID, model string, modelIndex int) (Selection, error) {
	if providerID == "" {
		return Selection{}, errors.New("state: empty provider id")
	}
	sel := Selection{
		ID:         uuid.NewString(),
		ProviderID: providerID,
		Model:      model,
		ModelIndex: modelIndex,
		SelectedAt: s.now().UTC(),
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO selections (id, provider_id, model, model_index, selected_at)
		VALUES (?, ?, ?, ?, ?)`,
		sel.ID, sel.ProviderID, sel.Model, sel.ModelIndex, sel.SelectedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return Selection{}, fmt.Errorf("state: record selection: %w", err)
	}
	return sel, nil
}

// Current returns the most recent selection or ErrNoSelection.
func (s *Store) Current(ctx context.Context) (Selection, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, provider_id, model, model_index, selected_at
		FROM selections
		ORDER BY rowid DESC
		LIMIT 1`)
	sel, err := scanSelection(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Selection{}, ErrNoSelection
	}
	return sel, err
}

// History returns up to limit selections, newest first.
func (s *Store) History(ctx context.Context, limit int) ([]Selection, error) {
	if limit <= 0 {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, provider_id, model, model_index, selected_at
		FROM selections
		ORDER BY rowid DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("state: history: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []Selection
	for rows.Next() {
		sel, err := scanSelection(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sel)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("state: history rows: %w", err)
	}
	return out, nil
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanSelection(sc scanner) (Selection, error) {
	var (
		sel Selection
		at  string
	)
	if err := sc.Scan(&sel.ID, &sel.ProviderID, &sel.Model, &sel.ModelIndex, &at); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Selection{}, err
		}
		return Selection{}, fmt.Errorf("state: scan selection: %w", err)
	}
	t, err := time.Parse(time.RFC3339Nano, at)
	if err != nil {
		return Selection{}, fmt.Errorf("state: parse selected_at %q: %w", at, err)
	}
	sel.SelectedAt = t
	return sel, nil
}

// RecordCredential stores apiKey as the credential exported under envKey.
func (s *Store) RecordCredential(ctx context.Context, envKey, apiKey string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO credentials (env_key, api_key, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(env_key) DO UPDATE SET api_key = excluded.api_key, updated_at = excluded.updated_at`,
		envKey, apiKey, s.now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("state: record credential: %w", err)
	}
	return nil
}

// Credential returns the credential stored under envKey, or "" when none.
func (s *Store) Credential(ctx context.Context, envKey string) (string, error) {
	var key string
	err := s.db.QueryRowContext(ctx, "SELECT api_key FROM credentials WHERE env_key = ?", envKey).Scan(&key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("state: read credential: %w", err)
	}
	return key, nil
}

// ForgetCredential removes the credential stored under envKey.
func (s *Store) ForgetCredential(ctx context.Context, envKey string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM credentials WHERE env_key = ?", envKey); err != nil {
		return fmt.Errorf("state: forget credential: %w", err)
	}
	return nil
}

// RecordEnvKey remembers the environment variable name last exported.
func (s *Store) RecordEnvKey(ctx context.Context, envKey string) error {
	return s.RecordSetting(ctx, settingEnvKey, envKey)
}

// CurrentEnvKey returns the last exported environment variable name, or ""
// when nothing was exported yet.
func (s *Store) CurrentEnvKey(ctx context.Context) (string, error) {
	return s.Setting(ctx, settingEnvKey)
}

// RecordSetting stores value under name, replacing any previous value.
func (s *Store) RecordSetting(ctx context.Context, name, value string) error {
	if name == "" {
		return errors.New("state: empty setting name")
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO settings (name, value) VALUES (?, ?)
		ON CONFLICT(name) DO UPDATE SET value = excluded.value`,
		name, value,
	)
	if err != nil {
		return fmt.Errorf("state: record setting %s: %w", name, err)
	}
	return nil
}

// Setting returns the value stored under name, or "" when unset.
func (s *Store) Setting(ctx context.Context, name string) (string, error) {
	var v string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM settings WHERE name = ?", name).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("state: read setting %s: %w", name, err)
	}
	return v, nil
}
