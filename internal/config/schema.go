// Package config loads the provider registry and probe settings from YAML,
// expands environment variables and validates the result.
package config

import (
	"fmt"
	"time"

	"github.com/flemzord/codexsw/internal/provider"
	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration structure.
type Config struct {
	// Version is the config format version. Currently only "1" is supported.
	Version string `yaml:"version"`

	Settings Settings `yaml:"settings"`

	// Serve configures the long-running exporter.
	Serve Serve `yaml:"serve"`

	// Providers keeps the order in which entries appear in the file. That
	// order is the discovery order used for tie-breaks when ranking.
	Providers Providers `yaml:"providers"`
}

// Settings holds the knobs passed explicitly to the prober and transport.
type Settings struct {
	// TestTimeout bounds one validity probe. Default: 30s.
	TestTimeout time.Duration `yaml:"test_timeout"`

	// PingTimeout bounds one reachability check. Default: 5s.
	PingTimeout time.Duration `yaml:"ping_timeout"`

	// ShowResponse controls whether listings include the response sample
	// or error text. Default: true.
	ShowResponse *bool `yaml:"show_response"`

	// PrimaryModel and FallbackModel stand in for providers that list
	// fewer than two models. Defaults: gpt-5, gpt-5-codex.
	PrimaryModel  string `yaml:"primary_model"`
	FallbackModel string `yaml:"fallback_model"`

	// UserAgent and Originator identify the client to the provider.
	UserAgent  string `yaml:"user_agent"`
	Originator string `yaml:"originator"`

	// Headers are added to every probe request.
	Headers map[string]string `yaml:"headers"`

	// StatePath is the SQLite database holding the current selection.
	// Empty means the platform data directory.
	StatePath string `yaml:"state_path"`

	// EnvFile receives the exported credential. Empty means the platform
	// config directory.
	EnvFile string `yaml:"env_file"`

	// CodexConfig is the Codex CLI config.toml updated on every switch;
	// auth.json is written next to it. Empty falls back to the path saved
	// with "codexsw set codex-config", then to ~/.codex/config.toml.
	CodexConfig string `yaml:"codex_config"`
}

// Serve holds the exporter settings.
type Serve struct {
	// Bind is the listen address. Default: 127.0.0.1:9464.
	Bind string `yaml:"bind"`

	// Schedule is a cron expression or descriptor for periodic probing.
	// Default: every five minutes.
	Schedule string `yaml:"schedule"`

	// Mode is "validity" (default) or "reachability".
	Mode string `yaml:"mode"`

	// Admin endpoints are only mounted when one of these is set.
	BearerToken string `yaml:"bearer_token"`
	BasicUser   string `yaml:"basic_user"`
	BasicPass   string `yaml:"basic_pass"`
}

// Default values for Settings.
const (
	DefaultTestTimeout   = 30 * time.Second
	DefaultPingTimeout   = 5 * time.Second
	DefaultPrimaryModel  = "gpt-5"
	DefaultFallbackModel = "gpt-5-codex"
	DefaultUserAgent     = "codex_cli_rs/0.39.0"
	DefaultOriginator    = "codex_cli_rs"
)

// ApplyDefaults fills zero-valued settings.
func (s *Settings) ApplyDefaults() {
	if s.TestTimeout == 0 {
		s.TestTimeout = DefaultTestTimeout
	}
	if s.PingTimeout == 0 {
		s.PingTimeout = DefaultPingTimeout
	}
	if s.ShowResponse == nil {
		t := true
		s.ShowResponse = &t
	}
	if s.PrimaryModel == "" {
		s.PrimaryModel = DefaultPrimaryModel
	}
	if s.FallbackModel == "" {
		s.FallbackModel = DefaultFallbackModel
	}
	if s.UserAgent == "" {
		s.UserAgent = DefaultUserAgent
	}
	if s.Originator == "" {
		s.Originator = DefaultOriginator
	}
}

// ResponseVisible reports whether listings should show response text.
func (s Settings) ResponseVisible() bool {
	return s.ShowResponse == nil || *s.ShowResponse
}

// ProviderConfig is one entry under providers.
type ProviderConfig struct {
	// ID is the mapping key; it is not read from the entry body.
	ID string `yaml:"-"`

	Name    string      `yaml:"name"`
	BaseURL string      `yaml:"base_url"`
	APIKey  Credentials `yaml:"api_key"`
	Models  []string    `yaml:"models"`
	EnvKey  string      `yaml:"env_key"`
}

// Descriptor converts the entry into the form consumed by the prober.
func (p ProviderConfig) Descriptor() provider.Descriptor {
	return provider.Descriptor{
		ID:          p.ID,
		Name:        p.Name,
		BaseURL:     p.BaseURL,
		Credentials: append([]string(nil), p.APIKey...),
		Models:      append([]string(nil), p.Models...),
		EnvKey:      p.EnvKey,
	}
}

// Credentials accepts either a single string or a list of strings.
type Credentials []string

// UnmarshalYAML implements yaml.Unmarshaler.
func (c *Credentials) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		var s string
		if err := node.Decode(&s); err != nil {
			return err
		}
		if s == "" {
			*c = nil
			return nil
		}
		*c = Credentials{s}
		return nil
	case yaml.SequenceNode:
		var list []string
		if err := node.Decode(&list); err != nil {
			return err
		}
		*c = list
		return nil
	default:
		return fmt.Errorf("line %d: api_key must be a string or a list of strings", node.Line)
	}
}

// Providers is the ordered provider registry.
type Providers []ProviderConfig

// UnmarshalYAML implements yaml.Unmarshaler. It walks the mapping node
// directly so document order survives decoding.
func (p *Providers) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: providers must be a mapping", node.Line)
	}
	out := make(Providers, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		keyNode, valNode := node.Content[i], node.Content[i+1]
		var entry ProviderConfig
		if err := valNode.Decode(&entry); err != nil {
			return fmt.Errorf("provider %q: %w", keyNode.Value, err)
		}
		entry.ID = keyNode.Value
		out = append(out, entry)
	}
	*p = out
	return nil
}

// Lookup returns the provider with the given id.
func (p Providers) Lookup(id string) (ProviderConfig, bool) {
	for _, entry := range p {
		if entry.ID == id {
			return entry, true
		}
	}
	return ProviderConfig{}, false
}

// IDs returns provider ids in discovery order.
func (p Providers) IDs() []string {
	ids := make([]string, len(p))
	for i, entry := range p {
		ids[i] = entry.ID
	}
	return ids
}

// Descriptors returns every provider in discovery order.
func (p Providers) Descriptors() []provider.Descriptor {
	out := make([]provider.Descriptor, len(p))
	for i, entry := range p {
		out[i] = entry.Descriptor()
	}
	return out
}

// Credentials returns every credential of every provider, for registering
// with the log redactor.
func (p Providers) Credentials() []string {
	var out []string
	for _, entry := range p {
		out = append(out, entry.APIKey...)
	}
	return out
}
