// Package codex points the Codex CLI at a provider by editing its
// config.toml and auth.json.
package codex

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/pelletier/go-toml/v2"
)

const (
	// AuthKey is the auth.json field Codex reads the API key from.
	AuthKey = "OPENAI_API_KEY"

	// WireAPI is written for providers that do not declare one.
	WireAPI = "responses"

	configName = "config.toml"
	authName   = "auth.json"
	filePerm   = 0o600
)

// Activation describes the provider Codex should switch to.
type Activation struct {
	ProviderID string
	Name       string
	BaseURL    string
	EnvKey     string

	// Model is left untouched in config.toml when empty.
	Model string

	APIKey string
}

// Files edits a Codex configuration directory. auth.json lives next to
// config.toml.
type Files struct {
	configPath string
	mu         sync.Mutex
}

// New returns Files for the config.toml at configPath.
func New(configPath string) *Files {
	return &Files{configPath: configPath}
}

// DefaultConfigPath returns $CODEX_HOME/config.toml, falling back to
// ~/.codex/config.toml.
func DefaultConfigPath() (string, error) {
	if dir := os.Getenv("CODEX_HOME"); dir != "" {
		return filepath.Join(dir, configName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("codex: resolve home directory: %w", err)
	}
	return filepath.Join(home, ".codex", configName), nil
}

// ConfigPath returns the config.toml location.
func (f *Files) ConfigPath() string {
	return f.configPath
}

// AuthPath returns the auth.json location.
func (f *Files) AuthPath() string {
	return filepath.Join(filepath.Dir(f.configPath), authName)
}

// Activate sets model_provider and model in config.toml, upserts the
// provider table under model_providers and stores the key in auth.json.
// Unrelated keys in both files are preserved. A config.toml that does not
// parse is left alone and reported as an error.
func (f *Files) Activate(ctx context.Context, a Activation) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if a.ProviderID == "" {
		return errors.New("codex: empty provider id")
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	doc, err := f.readConfig()
	if err != nil {
		return err
	}
	applyProvider(doc, a)
	content, err := toml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("codex: encode %s: %w", f.configPath, err)
	}
	if err := writeAtomic(f.configPath, content); err != nil {
		return err
	}

	auth := f.readAuth()
	auth[AuthKey] = a.APIKey
	content, err = json.MarshalIndent(auth, "", "  ")
	if err != nil {
		return fmt.Errorf("codex: encode %s: %w", f.AuthPath(), err)
	}
	return writeAtomic(f.AuthPath(), append(content, '\n'))
}

func applyProvider(doc map[string]any, a Activation) {
	doc["model_provider"] = a.ProviderID
	if a.Model != "" {
		doc["model"] = a.Model
	}

	providers, ok := doc["model_providers"].(map[string]any)
	if !ok {
		providers = map[string]any{}
		doc["model_providers"] = providers
	}
	entry, ok := providers[a.ProviderID].(map[string]any)
	if !ok {
		entry = map[string]any{}
		providers[a.ProviderID] = entry
	}

	if _, ok := entry["name"]; !ok {
		name := a.Name
		if name == "" {
			name = a.ProviderID
		}
		entry["name"] = name
	}
	if _, ok := entry["wire_api"]; !ok {
		entry["wire_api"] = WireAPI
	}
	if a.BaseURL != "" {
		entry["base_url"] = a.BaseURL
	}
	if a.EnvKey != "" {
		entry["env_key"] = a.EnvKey
	}
}

func (f *Files) readConfig() (map[string]any, error) {
	raw, err := os.ReadFile(f.configPath)
	if errors.Is(err, fs.ErrNotExist) {
		return map[string]any{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("codex: read %s: %w", f.configPath, err)
	}
	doc := map[string]any{}
	if err := toml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("codex: parse %s: %w", f.configPath, err)
	}
	return doc, nil
}

// readAuth returns the auth.json fields. A missing or malformed file reads
// as empty.
func (f *Files) readAuth() map[string]any {
	auth := map[string]any{}
	raw, err := os.ReadFile(f.AuthPath())
	if err != nil {
		return auth
	}
	if err := json.Unmarshal(raw, &auth); err != nil || auth == nil {
		return map[string]any{}
	}
	return auth
}

func writeAtomic(path string, content []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("codex: create directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+"-*")
	if err != nil {
		return fmt.Errorf("codex: create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if err := tmp.Chmod(filePerm); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("codex: chmod: %w", err)
	}
	if _, err := tmp.Write(content); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("codex: write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("codex: close: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("codex: replace %s: %w", path, err)
	}
	return nil
}
