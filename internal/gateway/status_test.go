package gateway

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"
)

func TestStatus(t *testing.T) {
	t.Parallel()

	g := newTestGateway(&fakeProber{results: mixedResults()}, AuthConfig{BearerToken: "tok"})
	start := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	g.startedAt = start
	g.now = func() time.Time { return start.Add(90 * time.Second) }

	if err := g.Refresh(t.Context()); err != nil {
		t.Fatal(err)
	}

	rr := serve(g.Handler(), http.MethodGet, "/status", "tok")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}

	var resp StatusResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Uptime != 90*time.Second {
		t.Errorf("Uptime = %v, want 90s", resp.Uptime)
	}
	if resp.Mode != "validity" || resp.Providers != 3 {
		t.Errorf("mode/providers = %q/%d", resp.Mode, resp.Providers)
	}
	if resp.Metrics == nil || resp.Metrics.Runs != 1 {
		t.Errorf("Metrics = %+v, want one run", resp.Metrics)
	}
	if resp.Latest == nil || resp.Latest.OK != 2 {
		t.Errorf("Latest = %+v", resp.Latest)
	}
}

func TestProbe(t *testing.T) {
	t.Parallel()

	p := &fakeProber{results: mixedResults()}
	g := newTestGateway(p, AuthConfig{BearerToken: "tok"})

	rr := serve(g.Handler(), http.MethodPost, "/probe", "tok")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	var snap Snapshot
	if err := json.NewDecoder(rr.Body).Decode(&snap); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if snap.Total != 3 || p.calls.Load() != 1 {
		t.Errorf("total = %d, calls = %d", snap.Total, p.calls.Load())
	}
}

func TestProbe_Conflict(t *testing.T) {
	t.Parallel()

	g := newTestGateway(&fakeProber{}, AuthConfig{BearerToken: "tok"})
	g.refreshMu.Lock()
	defer g.refreshMu.Unlock()

	if rr := serve(g.Handler(), http.MethodPost, "/probe", "tok"); rr.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409", rr.Code)
	}
}

func TestProbe_Failure(t *testing.T) {
	t.Parallel()

	g := newTestGateway(&fakeProber{err: errBoom}, AuthConfig{BearerToken: "tok"})
	if rr := serve(g.Handler(), http.MethodPost, "/probe", "tok"); rr.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rr.Code)
	}
}
