// Package security keeps provider credentials out of logs and terminal
// output: a Redactor for free text, a slog.Handler that applies it, and
// Mask for showing a recognisable fragment of a key.
package security

import (
	"regexp"
	"strings"
	"sync"
	"unicode/utf8"
)

// RedactPlaceholder replaces redacted secrets.
const RedactPlaceholder = "***"

// minLiteralLen is the shortest literal the redactor replaces. Shorter
// values produce too many false positives ("on", "1", ...).
const minLiteralLen = 8

// defaultPatterns match common API key and bearer token shapes.
var defaultPatterns = []*regexp.Regexp{
	regexp.MustCompile(`sk-[A-Za-z0-9_\-]{20,}`),
	regexp.MustCompile(`(?i)bearer\s+[A-Za-z0-9._\-]{12,}`),
}

// Redactor replaces known secrets in strings. Safe for concurrent use.
type Redactor struct {
	mu       sync.RWMutex
	patterns []*regexp.Regexp
	literals []string
}

// NewRedactor returns a redactor preloaded with the default key patterns.
func NewRedactor() *Redactor {
	return &Redactor{patterns: defaultPatterns}
}

// AddLiteral registers exact secret values, typically every credential of
// every configured provider. Values shorter than 8 bytes are ignored.
func (r *Redactor) AddLiteral(secrets ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range secrets {
		if len(s) >= minLiteralLen {
			r.literals = append(r.literals, s)
		}
	}
}

// Redact returns s with every literal and pattern match replaced.
func (r *Redactor) Redact(s string) string {
	if s == "" {
		return s
	}

	r.mu.RLock()
	patterns := r.patterns
	literals := r.literals
	r.mu.RUnlock()

	// Literals first: a key that also matches a pattern would otherwise be
	// partially replaced and no longer found.
	for _, lit := range literals {
		s = strings.ReplaceAll(s, lit, RedactPlaceholder)
	}
	for _, p := range patterns {
		s = p.ReplaceAllString(s, RedactPlaceholder)
	}
	return s
}

// Mask shortens a credential for display: the first six and last four
// characters survive. Keys of twelve characters or less are hidden
// entirely. An empty key renders as the placeholder.
func Mask(key string) string {
	n := utf8.RuneCountInString(key)
	if n <= 12 {
		return RedactPlaceholder
	}
	runes := []rune(key)
	return string(runes[:6]) + "..." + string(runes[n-4:])
}
