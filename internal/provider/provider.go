// Package provider defines the provider descriptor consumed by the probing
// engine and the error taxonomy shared by the transport and the orchestrator.
package provider

// DefaultEnvKey is the environment variable a provider's credential is
// exported under when the configuration does not name one.
const DefaultEnvKey = "OPENAI_API_KEY"

// Descriptor describes one remote endpoint and the credentials and models
// that can be used against it. Descriptors are immutable for the duration
// of a probing run.
type Descriptor struct {
	// ID is the registry key of the provider.
	ID string

	// Name is an optional human-readable label.
	Name string

	// BaseURL is the endpoint root; requests go to BaseURL + "/responses".
	// Empty means the provider is not probeable.
	BaseURL string

	// Credentials holds the API keys in configuration order.
	Credentials []string

	// Models lists candidate model identifiers, primary first.
	Models []string

	// EnvKey is the environment variable the selected credential is
	// exported under. Defaults to DefaultEnvKey.
	EnvKey string
}

// EnvKeyOrDefault returns the configured environment key or DefaultEnvKey.
func (d Descriptor) EnvKeyOrDefault() string {
	if d.EnvKey == "" {
		return DefaultEnvKey
	}
	return d.EnvKey
}

// Model returns the 1-based model candidate at idx, or "" when out of range.
func (d Descriptor) Model(idx int) string {
	if idx < 1 || idx > len(d.Models) {
		return ""
	}
	return d.Models[idx-1]
}
