package probe

import "time"

// Attempt describes one request made while probing a credential.
type Attempt struct {
	ProviderID      string
	CredentialIndex int
	Number          int
	Model           string
	Latency         time.Duration
	Err             error
}

// Observer receives probe events as they happen. Implementations must be
// safe for concurrent use: providers are probed in parallel.
type Observer interface {
	// ObserveAttempt is called after every validity request, including
	// the first attempt of a credential that is later retried.
	ObserveAttempt(a Attempt)

	// ObserveResult is called once per final Result.
	ObserveResult(mode Mode, r Result)
}

type nopObserver struct{}

func (nopObserver) ObserveAttempt(Attempt) {}
func (nopObserver) ObserveResult(Mode, Result) {}
