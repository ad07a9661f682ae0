package probe

import (
	"strings"
	"time"
)

// Mode selects what a run measures.
type Mode int

const (
	// Reachability checks that the base URL answers at all.
	Reachability Mode = iota
	// Validity sends a real Responses request per credential.
	Validity
)

// String returns the mode name used in logs, metrics and JSON output.
func (m Mode) String() string {
	switch m {
	case Reachability:
		return "reachability"
	case Validity:
		return "validity"
	default:
		return "unknown"
	}
}

// FailureLatency marks the latency of a failed probe. It is never a
// measured duration.
const FailureLatency time.Duration = -1

// maxSampleRunes bounds the response text kept on a Result.
const maxSampleRunes = 50

// Result is the outcome of probing one (provider, credential) pair.
type Result struct {
	ProviderID string `json:"provider"`
	BaseURL    string `json:"base_url,omitempty"`

	// CredentialIndex is 1-based; 0 when no credential was involved.
	CredentialIndex int    `json:"credential_index,omitempty"`
	CredentialHint  string `json:"credential_hint,omitempty"`

	Success bool `json:"success"`

	// Latency is FailureLatency when Success is false.
	Latency time.Duration `json:"latency"`

	Error    string `json:"error,omitempty"`
	Response string `json:"response,omitempty"`
	Model    string `json:"model,omitempty"`

	// Attempt is 2 when the fallback model produced the outcome.
	Attempt int `json:"attempt,omitempty"`
}

// Measured reports whether Latency holds a real, positive duration.
func (r Result) Measured() bool {
	return r.Latency > 0
}

// sample strips newlines from text and truncates it for display.
func sample(text string) string {
	text = strings.TrimSpace(stripNewlines(text))
	runes := []rune(text)
	if len(runes) > maxSampleRunes {
		return string(runes[:maxSampleRunes]) + "..."
	}
	return text
}

// errorText flattens err into a single trimmed line.
func errorText(err error) string {
	return strings.TrimSpace(stripNewlines(err.Error()))
}

func stripNewlines(s string) string {
	return strings.NewReplacer("\r", "", "\n", "").Replace(s)
}
