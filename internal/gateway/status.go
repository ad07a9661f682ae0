package gateway

import (
	"errors"
	"net/http"
	"time"

	"github.com/flemzord/codexsw/internal/metrics"
)

// StatusResponse is the JSON response for GET /status.
type StatusResponse struct {
	Uptime    time.Duration     `json:"uptime"`
	Mode      string            `json:"mode"`
	Providers int               `json:"providers"`
	Metrics   *metrics.Snapshot `json:"metrics,omitempty"`
	Latest    *Snapshot         `json:"latest,omitempty"`
}

// handleStatus returns an http.HandlerFunc for GET /status.
func (g *Gateway) handleStatus() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		resp := StatusResponse{
			Uptime:    g.now().Sub(g.startedAt).Truncate(time.Second),
			Mode:      g.mode.String(),
			Providers: len(g.Providers()),
			Latest:    g.Latest(),
		}
		if g.metrics != nil {
			snap := g.metrics.Snapshot()
			resp.Metrics = &snap
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// handleProbe returns an http.HandlerFunc for POST /probe. The run is
// synchronous; the response is the new snapshot.
func (g *Gateway) handleProbe() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := g.Refresh(r.Context())
		switch {
		case errors.Is(err, ErrRefreshInProgress):
			http.Error(w, err.Error(), http.StatusConflict)
			return
		case err != nil:
			g.logger.Error("gateway: probe failed", "error", err)
			http.Error(w, "probe failed", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, g.Latest())
	}
}
