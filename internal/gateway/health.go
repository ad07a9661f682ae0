package gateway

import (
	"encoding/json"
	"net/http"
	"time"
)

// HealthResponse is the JSON response for GET /health.
type HealthResponse struct {
	Status  string     `json:"status"` // "ok", "degraded" or "pending"
	OK      int        `json:"ok"`
	Total   int        `json:"total"`
	Best    string     `json:"best,omitempty"`
	LastRun *time.Time `json:"last_run,omitempty"`
}

// handleHealth returns an http.HandlerFunc for GET /health.
// Returns 200 while some provider qualifies or before the first run, and
// 503 once a run found no usable provider.
func (g *Gateway) handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		resp := HealthResponse{Status: "pending"}

		if snap := g.Latest(); snap != nil {
			resp.OK, resp.Total = snap.OK, snap.Total
			runAt := snap.RunAt
			resp.LastRun = &runAt
			if snap.Best != nil {
				resp.Status = "ok"
				resp.Best = snap.Best.ProviderID
			} else {
				resp.Status = "degraded"
			}
		}

		writeJSON(w, statusFor(resp.Status), resp)
	}
}

func statusFor(health string) int {
	if health == "degraded" {
		return http.StatusServiceUnavailable
	}
	return http.StatusOK
}

// handleResults returns an http.HandlerFunc for GET /results.
func (g *Gateway) handleResults() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		snap := g.Latest()
		if snap == nil {
			http.Error(w, "no probe run completed yet", http.StatusServiceUnavailable)
			return
		}
		writeJSON(w, http.StatusOK, snap)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
