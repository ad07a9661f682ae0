// Package gateway serves the exporter's HTTP API: health, the latest probe
// results, on-demand probing and Prometheus metrics.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/flemzord/codexsw/internal/metrics"
	"github.com/flemzord/codexsw/internal/probe"
	"github.com/flemzord/codexsw/internal/provider"
	"github.com/flemzord/codexsw/internal/rank"
)

// ErrRefreshInProgress is returned by Refresh when a run is already going.
var ErrRefreshInProgress = errors.New("gateway: probe run already in progress")

// Prober runs one probing pass. *probe.Prober satisfies it.
type Prober interface {
	RunAll(ctx context.Context, providers []provider.Descriptor, mode probe.Mode) ([]probe.Result, error)
}

// Snapshot is the outcome of the latest run.
type Snapshot struct {
	Mode    string          `json:"mode"`
	RunAt   time.Time       `json:"run_at"`
	Elapsed time.Duration   `json:"elapsed_ns"`
	OK      int             `json:"ok"`
	Total   int             `json:"total"`
	Best    *rank.Candidate `json:"best"`
	Results []probe.Result  `json:"results"`
}

// Gateway owns the HTTP server and the latest results.
type Gateway struct {
	config    Config
	logger    *slog.Logger
	prober    Prober
	providers []provider.Descriptor
	mode      probe.Mode
	metrics   *metrics.Collector
	now       func() time.Time

	server    *http.Server
	startedAt time.Time

	refreshMu sync.Mutex
	mu        sync.RWMutex
	latest    *Snapshot
}

// New creates a Gateway that probes providers in mode. collector may be
// nil, in which case /metrics is not mounted.
func New(cfg Config, prober Prober, providers []provider.Descriptor, mode probe.Mode, collector *metrics.Collector, logger *slog.Logger) *Gateway {
	cfg.defaults()
	if logger == nil {
		logger = slog.Default()
	}
	return &Gateway{
		config:    cfg,
		logger:    logger,
		prober:    prober,
		providers: providers,
		mode:      mode,
		metrics:   collector,
		now:       time.Now,
		startedAt: time.Now(),
	}
}

// Refresh runs the prober once and publishes the results. It implements
// cron.Refresher.
func (g *Gateway) Refresh(ctx context.Context) error {
	if !g.refreshMu.TryLock() {
		return ErrRefreshInProgress
	}
	defer g.refreshMu.Unlock()

	start := g.now()
	results, err := g.prober.RunAll(ctx, g.Providers(), g.mode)
	if err != nil {
		return fmt.Errorf("gateway: refresh: %w", err)
	}
	end := g.now()

	ok, total := rank.Summary(results)
	snap := &Snapshot{
		Mode:    g.mode.String(),
		RunAt:   end,
		Elapsed: end.Sub(start),
		OK:      ok,
		Total:   total,
		Results: rank.Sort(results),
	}
	if best, found := rank.Select(results, g.mode); found {
		snap.Best = &best
	}

	g.mu.Lock()
	g.latest = snap
	g.mu.Unlock()

	if g.metrics != nil {
		g.metrics.ObserveRun(g.mode, end)
	}
	return nil
}

// SetProviders replaces the providers probed by the next refresh.
func (g *Gateway) SetProviders(providers []provider.Descriptor) {
	g.mu.Lock()
	g.providers = providers
	g.mu.Unlock()
}

// Providers returns the providers currently probed.
func (g *Gateway) Providers() []provider.Descriptor {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.providers
}

// Latest returns the most recent snapshot, or nil before the first run.
func (g *Gateway) Latest() *Snapshot {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.latest
}

// Start listens on the configured address and serves in the background.
func (g *Gateway) Start(ctx context.Context) error {
	g.startedAt = g.now()
	g.server = &http.Server{
		Addr:         g.config.Bind,
		Handler:      g.Handler(),
		ReadTimeout:  g.config.ReadTimeout,
		WriteTimeout: g.config.WriteTimeout,
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", g.config.Bind)
	if err != nil {
		return fmt.Errorf("gateway: listen failed: %w", err)
	}

	go func() {
		g.logger.Info("gateway listening", "addr", ln.Addr().String())
		if err := g.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			g.logger.Error("gateway serve error", "error", err)
		}
	}()
	return nil
}

// Stop shuts the server down gracefully within the configured timeout.
func (g *Gateway) Stop(ctx context.Context) error {
	if g.server == nil {
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, g.config.ShutdownTimeout)
	defer cancel()

	g.logger.Info("gateway shutting down")
	return g.server.Shutdown(shutdownCtx)
}
