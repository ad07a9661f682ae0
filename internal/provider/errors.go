package provider

import (
	"context"
	"errors"
	"fmt"
)

// Sentinel errors for probe operations.
var (
	// ErrNetwork indicates the connection could not be established or was
	// reset before the response completed.
	ErrNetwork = errors.New("network error")

	// ErrTimeout indicates the per-request deadline expired and the
	// connection was aborted.
	ErrTimeout = errors.New("request timeout")

	// ErrMissingBaseURL indicates the provider has no base_url configured.
	ErrMissingBaseURL = errors.New("no base_url configured")

	// ErrMissingCredential indicates the provider has no api_key configured.
	ErrMissingCredential = errors.New("no api_key configured")

	// ErrNoProviders indicates the probing run was started without providers.
	ErrNoProviders = errors.New("no providers configured")
)

// HTTPStatusError is returned when the remote service answers with a
// non-2xx status. Message holds the error message extracted from the body.
type HTTPStatusError struct {
	StatusCode int
	Message    string
}

func (e *HTTPStatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("HTTP %d", e.StatusCode)
	}
	return e.Message
}

// Error kinds reported by Classify. They double as metric label values.
const (
	KindTimeout           = "timeout"
	KindNetwork           = "network"
	KindHTTPStatus        = "http_status"
	KindMissingBaseURL    = "missing_base_url"
	KindMissingCredential = "missing_credential"
	KindCanceled          = "canceled"
	KindUnknown           = "unknown"
)

// Classify maps err onto one of the Kind constants. A nil error yields "".
func Classify(err error) string {
	if err == nil {
		return ""
	}
	var statusErr *HTTPStatusError
	switch {
	case errors.Is(err, ErrTimeout):
		return KindTimeout
	case errors.As(err, &statusErr):
		return KindHTTPStatus
	case errors.Is(err, ErrNetwork):
		return KindNetwork
	case errors.Is(err, ErrMissingBaseURL):
		return KindMissingBaseURL
	case errors.Is(err, ErrMissingCredential):
		return KindMissingCredential
	case errors.Is(err, context.Canceled):
		return KindCanceled
	default:
		return KindUnknown
	}
}
