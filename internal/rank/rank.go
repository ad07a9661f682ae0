// Package rank orders probe results for display and selects the best
// provider from them.
package rank

import (
	"errors"
	"slices"
	"strings"
	"time"

	"github.com/flemzord/codexsw/internal/probe"
)

var (
	// ErrNoResults is returned by Decide when there is nothing to rank.
	ErrNoResults = errors.New("rank: no probe results")

	// ErrNoQualifying is returned by Decide when results exist but none
	// passes the selection predicate of the mode.
	ErrNoQualifying = errors.New("rank: no qualifying provider")
)

// Candidate is the provider chosen by Select.
type Candidate struct {
	ProviderID string        `json:"provider"`
	Latency    time.Duration `json:"latency"`
	BaseURL    string        `json:"base_url,omitempty"`

	// CredentialIndex is the 1-based credential that produced the winning
	// result; 0 when none was involved.
	CredentialIndex int `json:"credential_index,omitempty"`
}

// Sort returns results in display order: measured latencies first in
// ascending order, then every other result ordered by provider id. Equal
// keys keep their input order. The input is not modified.
func Sort(results []probe.Result) []probe.Result {
	out := slices.Clone(results)
	slices.SortStableFunc(out, compare)
	return out
}

func compare(a, b probe.Result) int {
	am, bm := displayMeasured(a), displayMeasured(b)
	switch {
	case am && bm:
		return cmpDuration(a.Latency, b.Latency)
	case am:
		return -1
	case bm:
		return 1
	default:
		return strings.Compare(a.ProviderID, b.ProviderID)
	}
}

// displayMeasured reports whether r sorts with the timed results. A
// success without a measured latency sorts with the failures.
func displayMeasured(r probe.Result) bool {
	return r.Success && r.Measured()
}

func cmpDuration(a, b time.Duration) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// Qualifies reports whether r may be selected under mode. Validity needs a
// successful probe with a measured latency; reachability only needs the
// measured latency.
func Qualifies(r probe.Result, mode probe.Mode) bool {
	if !r.Measured() {
		return false
	}
	if mode == probe.Validity {
		return r.Success
	}
	return true
}

// Select returns the qualifying result with the lowest latency. Ties keep
// the earliest result. The boolean is false when nothing qualifies.
func Select(results []probe.Result, mode probe.Mode) (Candidate, bool) {
	var (
		best  probe.Result
		found bool
	)
	for _, r := range results {
		if !Qualifies(r, mode) {
			continue
		}
		if !found || r.Latency < best.Latency {
			best, found = r, true
		}
	}
	if !found {
		return Candidate{}, false
	}
	return Candidate{
		ProviderID: best.ProviderID,
		Latency:    best.Latency,
		BaseURL:    best.BaseURL,

		CredentialIndex: best.CredentialIndex,
	}, true
}

// Decide is Select with the two empty outcomes told apart.
func Decide(results []probe.Result, mode probe.Mode) (Candidate, error) {
	if len(results) == 0 {
		return Candidate{}, ErrNoResults
	}
	c, ok := Select(results, mode)
	if !ok {
		return Candidate{}, ErrNoQualifying
	}
	return c, nil
}

// Summary counts successful results against the total.
func Summary(results []probe.Result) (ok, total int) {
	for _, r := range results {
		if r.Success {
			ok++
		}
	}
	return ok, len(results)
}
