// Package metrics exposes probe outcomes as Prometheus metrics, either
// over HTTP for the exporter or as a node_exporter textfile after a
// one-shot run.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/flemzord/codexsw/internal/probe"
	"github.com/flemzord/codexsw/internal/provider"
)

const namespace = "codexsw"

// Collector records probe events. It implements probe.Observer and is safe
// for concurrent use.
type Collector struct {
	registry *prometheus.Registry

	results  *prometheus.CounterVec
	attempts *prometheus.CounterVec
	latency  *prometheus.HistogramVec
	up       *prometheus.GaugeVec
	runs     *prometheus.CounterVec
	lastRun  *prometheus.GaugeVec

	mu   sync.Mutex
	snap Snapshot
}

var _ probe.Observer = (*Collector)(nil)

// New creates a Collector backed by its own registry. The Go runtime and
// process collectors are registered alongside the probe metrics.
func New() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		results: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "probe_results_total",
			Help:      "Final probe results by provider, mode and outcome.",
		}, []string{"provider", "mode", "outcome"}),
		attempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "probe_attempts_total",
			Help:      "Validity requests by provider, attempt number and error kind.",
		}, []string{"provider", "attempt", "kind"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "probe_latency_seconds",
			Help:      "Latency of successful probes.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		}, []string{"provider", "mode"}),
		up: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "probe_up",
			Help:      "1 when the last probe of the provider credential succeeded.",
		}, []string{"provider", "credential", "mode"}),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "probe_runs_total",
			Help:      "Completed probing runs by mode.",
		}, []string{"mode"}),
		lastRun: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "probe_last_run_timestamp_seconds",
			Help:      "Unix time of the last completed run by mode.",
		}, []string{"mode"}),
	}
	c.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		c.results, c.attempts, c.latency, c.up, c.runs, c.lastRun,
	)
	return c
}

// ObserveAttempt implements probe.Observer.
func (c *Collector) ObserveAttempt(a probe.Attempt) {
	kind := provider.Classify(a.Err)
	if kind == "" {
		kind = "ok"
	}
	c.attempts.WithLabelValues(a.ProviderID, strconv.Itoa(a.Number), kind).Inc()

	c.mu.Lock()
	c.snap.Attempts++
	if a.Number > 1 {
		c.snap.Retries++
	}
	c.mu.Unlock()
}

// ObserveResult implements probe.Observer.
func (c *Collector) ObserveResult(mode probe.Mode, r probe.Result) {
	outcome, up := "fail", 0.0
	if r.Success {
		outcome, up = "ok", 1
	}
	c.results.WithLabelValues(r.ProviderID, mode.String(), outcome).Inc()
	c.up.WithLabelValues(r.ProviderID, strconv.Itoa(r.CredentialIndex), mode.String()).Set(up)
	if r.Measured() {
		c.latency.WithLabelValues(r.ProviderID, mode.String()).Observe(r.Latency.Seconds())
	}

	c.mu.Lock()
	c.snap.Results++
	if r.Success {
		c.snap.Successes++
	}
	c.mu.Unlock()
}

// ObserveRun records the completion of a RunAll call.
func (c *Collector) ObserveRun(mode probe.Mode, at time.Time) {
	c.runs.WithLabelValues(mode.String()).Inc()
	c.lastRun.WithLabelValues(mode.String()).Set(float64(at.Unix()))

	c.mu.Lock()
	c.snap.Runs++
	c.snap.LastRun = at
	c.mu.Unlock()
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// WriteTextfile writes the registry to path in the textfile collector
// format. The file is replaced atomically.
func (c *Collector) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, c.registry)
}

// Snapshot returns a point-in-time view of the counters.
func (c *Collector) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snap
}

// Snapshot is a serializable summary used by the exporter status endpoint.
type Snapshot struct {
	Runs      int64     `json:"runs"`
	Attempts  int64     `json:"attempts"`
	Retries   int64     `json:"retries"`
	Results   int64     `json:"results"`
	Successes int64     `json:"successes"`
	LastRun   time.Time `json:"last_run"`
}
