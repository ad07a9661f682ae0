// Package probetest provides test helpers for the probe package.
package probetest

import (
	"context"
	"sync"
	"time"

	"github.com/flemzord/codexsw/internal/probe"
	"github.com/flemzord/codexsw/internal/transport"
)

// MockTransport is a configurable test double for probe.Transport.
// Set the Func fields to control behavior. Unset funcs panic on call.
// All methods are safe for concurrent use.
type MockTransport struct {
	SendFunc func(ctx context.Context, req transport.Request) (*transport.Response, error)
	PingFunc func(ctx context.Context, url string, timeout time.Duration) (int, error)

	mu        sync.Mutex
	SendCalls int
	PingCalls int
	Requests  []transport.Request
}

// Send delegates to SendFunc and records the request.
func (m *MockTransport) Send(ctx context.Context, req transport.Request) (*transport.Response, error) {
	m.mu.Lock()
	m.SendCalls++
	m.Requests = append(m.Requests, req)
	m.mu.Unlock()
	return m.SendFunc(ctx, req)
}

// Ping delegates to PingFunc and tracks call count.
func (m *MockTransport) Ping(ctx context.Context, url string, timeout time.Duration) (int, error) {
	m.mu.Lock()
	m.PingCalls++
	m.mu.Unlock()
	return m.PingFunc(ctx, url, timeout)
}

// Calls returns the number of Send and Ping calls made so far.
func (m *MockTransport) Calls() (send, ping int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.SendCalls, m.PingCalls
}

// Sent returns a copy of the recorded requests.
func (m *MockTransport) Sent() []transport.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]transport.Request(nil), m.Requests...)
}

// RecordingObserver collects everything reported to probe.Observer.
type RecordingObserver struct {
	mu       sync.Mutex
	attempts []probe.Attempt
	results  []probe.Result
}

// ObserveAttempt implements probe.Observer.
func (o *RecordingObserver) ObserveAttempt(a probe.Attempt) {
	o.mu.Lock()
	o.attempts = append(o.attempts, a)
	o.mu.Unlock()
}

// ObserveResult implements probe.Observer.
func (o *RecordingObserver) ObserveResult(_ probe.Mode, r probe.Result) {
	o.mu.Lock()
	o.results = append(o.results, r)
	o.mu.Unlock()
}

// Attempts returns a copy of the observed attempts.
func (o *RecordingObserver) Attempts() []probe.Attempt {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]probe.Attempt(nil), o.attempts...)
}

// Results returns a copy of the observed results.
func (o *RecordingObserver) Results() []probe.Result {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]probe.Result(nil), o.results...)
}

// Interface guards.
var (
	_ probe.Transport = (*MockTransport)(nil)
	_ probe.Observer  = (*RecordingObserver)(nil)
)
