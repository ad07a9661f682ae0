// Package switcher makes a provider the active one: it records the
// selection, stores the chosen credential and exports it under the
// provider's environment variable. With a Client it also points the Codex
// CLI at the provider.
package switcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/flemzord/codexsw/internal/codex"
	"github.com/flemzord/codexsw/internal/config"
	"github.com/flemzord/codexsw/internal/provider"
	"github.com/flemzord/codexsw/internal/security"
	"github.com/flemzord/codexsw/internal/state"
)

var (
	// ErrUnknownProvider is returned when the provider id is not configured.
	ErrUnknownProvider = errors.New("switcher: unknown provider")

	// ErrIndexOutOfRange is returned for a key or model index outside the
	// configured list.
	ErrIndexOutOfRange = errors.New("switcher: index out of range")
)

// Store is the subset of *state.Store used by the Switcher.
type Store interface {
	RecordSelection(ctx context.Context, providerID, model string, modelIndex int) (state.Selection, error)
	RecordCredential(ctx context.Context, envKey, apiKey string) error
	ForgetCredential(ctx context.Context, envKey string) error
	RecordEnvKey(ctx context.Context, envKey string) error
	CurrentEnvKey(ctx context.Context) (string, error)
}

// Env is the subset of *envfile.File used by the Switcher.
type Env interface {
	Set(key, value string) (bool, error)
	Unset(key string) (bool, error)
}

// Client is the subset of *codex.Files used by the Switcher.
type Client interface {
	Activate(ctx context.Context, a codex.Activation) error
}

// Options select which credential and model of the provider become active.
// Indices are 1-based; zero means the first entry.
type Options struct {
	ModelIndex int
	KeyIndex   int
}

// Outcome describes a completed switch.
type Outcome struct {
	Selection state.Selection `json:"selection"`

	BaseURL        string `json:"base_url,omitempty"`
	EnvKey         string `json:"env_key"`
	KeyIndex       int    `json:"key_index"`
	CredentialHint string `json:"key"`

	// ClearedEnvKey is the previously exported variable that was removed
	// because the new provider exports a different one.
	ClearedEnvKey string `json:"cleared_env_key,omitempty"`

	// EnvExported is false when writing the env file failed. The
	// selection and credential are recorded regardless.
	EnvExported bool `json:"env_exported"`

	// CodexUpdated is true when the Codex config and auth files were
	// rewritten.
	CodexUpdated bool `json:"codex_updated"`
}

// Switcher applies provider switches.
type Switcher struct {
	providers config.Providers
	store     Store
	env       Env
	client    Client
	logger    *slog.Logger
}

// Option configures a Switcher.
type Option func(*Switcher)

// WithClient makes every switch also update the Codex configuration.
func WithClient(c Client) Option {
	return func(s *Switcher) {
		s.client = c
	}
}

// New creates a Switcher over the configured providers.
func New(providers config.Providers, store Store, env Env, logger *slog.Logger, opts ...Option) *Switcher {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Switcher{providers: providers, store: store, env: env, logger: logger}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Use makes providerID active. Indices are validated before anything is
// written.
func (s *Switcher) Use(ctx context.Context, providerID string, opts Options) (Outcome, error) {
	p, ok := s.providers.Lookup(providerID)
	if !ok {
		return Outcome{}, fmt.Errorf("%w %q (available: %v)", ErrUnknownProvider, providerID, s.providers.IDs())
	}
	if len(p.APIKey) == 0 {
		return Outcome{}, fmt.Errorf("switcher: provider %q: %w", providerID, provider.ErrMissingCredential)
	}

	keyIndex := opts.KeyIndex
	if keyIndex == 0 {
		keyIndex = 1
	}
	if keyIndex < 1 || keyIndex > len(p.APIKey) {
		return Outcome{}, fmt.Errorf("%w: key %d, provider %q has %d", ErrIndexOutOfRange, keyIndex, providerID, len(p.APIKey))
	}

	modelIndex := opts.ModelIndex
	var model string
	switch {
	case len(p.Models) == 0 && modelIndex > 1:
		return Outcome{}, fmt.Errorf("%w: model %d, provider %q lists no models", ErrIndexOutOfRange, modelIndex, providerID)
	case len(p.Models) == 0:
		modelIndex = 0
	default:
		if modelIndex == 0 {
			modelIndex = 1
		}
		if modelIndex < 1 || modelIndex > len(p.Models) {
			return Outcome{}, fmt.Errorf("%w: model %d, provider %q has %d", ErrIndexOutOfRange, modelIndex, providerID, len(p.Models))
		}
		model = p.Models[modelIndex-1]
	}

	apiKey := p.APIKey[keyIndex-1]
	envKey := p.Descriptor().EnvKeyOrDefault()
	out := Outcome{
		BaseURL:        p.BaseURL,
		EnvKey:         envKey,
		KeyIndex:       keyIndex,
		CredentialHint: security.Mask(apiKey),
	}

	if s.client != nil {
		err := s.client.Activate(ctx, codex.Activation{
			ProviderID: providerID,
			Name:       p.Name,
			BaseURL:    p.BaseURL,
			EnvKey:     envKey,
			Model:      model,
			APIKey:     apiKey,
		})
		if err != nil {
			return Outcome{}, fmt.Errorf("switcher: update codex config: %w", err)
		}
		out.CodexUpdated = true
	}

	previous, err := s.store.CurrentEnvKey(ctx)
	if err != nil {
		return Outcome{}, err
	}
	if previous != "" && previous != envKey {
		if _, err := s.env.Unset(previous); err != nil {
			s.logger.Warn("switcher: clearing previous env key failed", "env_key", previous, "error", err)
		} else {
			out.ClearedEnvKey = previous
		}
		if err := s.store.ForgetCredential(ctx, previous); err != nil {
			return Outcome{}, err
		}
	}

	sel, err := s.store.RecordSelection(ctx, providerID, model, modelIndex)
	if err != nil {
		return Outcome{}, err
	}
	out.Selection = sel

	if err := s.store.RecordCredential(ctx, envKey, apiKey); err != nil {
		return Outcome{}, err
	}

	if _, err := s.env.Set(envKey, apiKey); err != nil {
		s.logger.Warn("switcher: exporting credential failed", "env_key", envKey, "error", err)
		return out, nil
	}
	out.EnvExported = true
	if err := s.store.RecordEnvKey(ctx, envKey); err != nil {
		return Outcome{}, err
	}

	s.logger.Info("switcher: provider selected",
		"provider", providerID,
		"model", model,
		"env_key", envKey,
		"key", out.CredentialHint,
	)
	return out, nil
}
