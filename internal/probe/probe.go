// Package probe runs reachability and validity checks against every
// configured provider concurrently and reports one Result per probed
// (provider, credential) pair.
package probe

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/flemzord/codexsw/internal/provider"
	"github.com/flemzord/codexsw/internal/responses"
	"github.com/flemzord/codexsw/internal/security"
	"github.com/flemzord/codexsw/internal/sse"
	"github.com/flemzord/codexsw/internal/transport"
)

// Default models used when a provider lists fewer than two.
const (
	DefaultPrimaryModel  = "gpt-5"
	DefaultFallbackModel = "gpt-5-codex"
)

const tracerName = "github.com/flemzord/codexsw/internal/probe"

// Config holds the explicit settings of a Prober.
type Config struct {
	// TestTimeout bounds each validity request.
	TestTimeout time.Duration

	// PingTimeout bounds each reachability check.
	PingTimeout time.Duration

	PrimaryModel  string
	FallbackModel string

	UserAgent  string
	Originator string

	// ExtraHeaders are sent with every validity request and may override
	// the defaults.
	ExtraHeaders map[string]string

	// Prompt and Instructions default to the responses package values.
	Prompt       string
	Instructions string
}

func (c *Config) applyDefaults() {
	if c.TestTimeout <= 0 {
		c.TestTimeout = transport.DefaultTimeout
	}
	if c.PingTimeout <= 0 {
		c.PingTimeout = 5 * time.Second
	}
	if c.PrimaryModel == "" {
		c.PrimaryModel = DefaultPrimaryModel
	}
	if c.FallbackModel == "" {
		c.FallbackModel = DefaultFallbackModel
	}
	if c.Prompt == "" {
		c.Prompt = responses.DefaultPrompt
	}
	if c.Instructions == "" {
		c.Instructions = responses.DefaultInstructions
	}
}

// Transport is the subset of *transport.Client used by the Prober.
type Transport interface {
	Send(ctx context.Context, req transport.Request) (*transport.Response, error)
	Ping(ctx context.Context, url string, timeout time.Duration) (int, error)
}

// Prober runs probes. A Prober holds no per-run state and may be reused.
type Prober struct {
	cfg       Config
	transport Transport
	logger    *slog.Logger
	observer  Observer
	tracer    trace.Tracer
	now       func() time.Time
}

// Option configures a Prober.
type Option func(*Prober)

// WithTransport replaces the default transport client.
func WithTransport(t Transport) Option {
	return func(p *Prober) {
		p.transport = t
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Prober) {
		p.logger = l
	}
}

// WithObserver registers an observer for attempts and results.
func WithObserver(o Observer) Option {
	return func(p *Prober) {
		p.observer = o
	}
}

// WithTracer sets the tracer used for run, provider and attempt spans.
func WithTracer(t trace.Tracer) Option {
	return func(p *Prober) {
		p.tracer = t
	}
}

// WithClock replaces time.Now for latency measurement.
func WithClock(now func() time.Time) Option {
	return func(p *Prober) {
		p.now = now
	}
}

// New creates a Prober.
func New(cfg Config, opts ...Option) *Prober {
	cfg.applyDefaults()
	p := &Prober{
		cfg:      cfg,
		logger:   slog.Default(),
		observer: nopObserver{},
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.transport == nil {
		p.transport = transport.New(
			transport.WithLogger(p.logger),
			transport.WithEventHook(p.logEvent),
		)
	}
	if p.tracer == nil {
		p.tracer = otel.Tracer(tracerName)
	}
	return p
}

// RunAll probes every provider concurrently and returns the results
// flattened in provider order, credentials in their configured order.
// Individual probe failures are reported as failed Results; the only
// error is provider.ErrNoProviders for an empty input.
//
// RunAll returns once every provider has settled. A slow provider only
// delays the return; it never cancels its siblings.
func (p *Prober) RunAll(ctx context.Context, providers []provider.Descriptor, mode Mode) ([]Result, error) {
	if len(providers) == 0 {
		return nil, provider.ErrNoProviders
	}

	runID := uuid.NewString()
	ctx, span := p.tracer.Start(ctx, "probe.run", trace.WithAttributes(
		attribute.String("probe.run_id", runID),
		attribute.String("probe.mode", mode.String()),
		attribute.Int("probe.providers", len(providers)),
	))
	defer span.End()

	logger := p.logger.With("run_id", runID, "mode", mode.String())
	logger.Info("probe: run started", "providers", len(providers))
	start := p.now()

	slots := make([][]Result, len(providers))
	var g errgroup.Group
	for i, d := range providers {
		g.Go(func() error {
			slots[i] = p.runProvider(ctx, logger, d, mode)
			return nil
		})
	}
	_ = g.Wait()

	var results []Result
	for _, s := range slots {
		results = append(results, s...)
	}

	ok := 0
	for _, r := range results {
		if r.Success {
			ok++
		}
	}
	span.SetAttributes(attribute.Int("probe.results", len(results)), attribute.Int("probe.ok", ok))
	logger.Info("probe: run finished",
		"results", len(results),
		"ok", ok,
		"elapsed", p.now().Sub(start),
	)
	return results, nil
}

func (p *Prober) runProvider(ctx context.Context, logger *slog.Logger, d provider.Descriptor, mode Mode) []Result {
	ctx, span := p.tracer.Start(ctx, "probe.provider", trace.WithAttributes(
		attribute.String("provider.id", d.ID),
	))
	defer span.End()

	logger = logger.With("provider", d.ID)

	var results []Result
	switch mode {
	case Reachability:
		results = []Result{p.ping(ctx, d)}
	default:
		results = p.validate(ctx, logger, d)
	}

	for _, r := range results {
		p.observer.ObserveResult(mode, r)
		if r.Success {
			logger.Debug("probe: provider ok", "credential", r.CredentialIndex, "latency", r.Latency, "attempt", r.Attempt)
		} else {
			logger.Warn("probe: provider failed", "credential", r.CredentialIndex, "error", r.Error)
			span.SetStatus(codes.Error, r.Error)
		}
	}
	return results
}

// ping performs the reachability check. Any HTTP response counts.
func (p *Prober) ping(ctx context.Context, d provider.Descriptor) Result {
	if d.BaseURL == "" {
		return failed(d, provider.ErrMissingBaseURL)
	}

	start := p.now()
	_, err := p.transport.Ping(ctx, d.BaseURL, p.cfg.PingTimeout)
	latency := measured(p.now().Sub(start))
	if err != nil {
		return failed(d, err)
	}
	return Result{
		ProviderID: d.ID,
		BaseURL:    d.BaseURL,
		Success:    true,
		Latency:    latency,
		Attempt:    1,
	}
}

// validate probes each credential in turn. Credentials are never probed in
// parallel against the same provider.
func (p *Prober) validate(ctx context.Context, logger *slog.Logger, d provider.Descriptor) []Result {
	if d.BaseURL == "" {
		return []Result{failed(d, provider.ErrMissingBaseURL)}
	}
	if len(d.Credentials) == 0 {
		return []Result{failed(d, provider.ErrMissingCredential)}
	}

	primary, secondary := p.models(d)
	results := make([]Result, 0, len(d.Credentials))
	for i, key := range d.Credentials {
		idx := i + 1
		r := p.attempt(ctx, d, idx, key, primary, 1)
		if !r.Success {
			logger.Debug("probe: retrying with fallback model",
				"credential", idx,
				"model", secondary,
				"error", r.Error,
			)
			r = p.attempt(ctx, d, idx, key, secondary, 2)
		}
		results = append(results, r)
	}
	return results
}

// models returns the primary and secondary model for d.
func (p *Prober) models(d provider.Descriptor) (primary, secondary string) {
	primary, secondary = p.cfg.PrimaryModel, p.cfg.FallbackModel
	if len(d.Models) > 0 && d.Models[0] != "" {
		primary = d.Models[0]
	}
	if len(d.Models) > 1 && d.Models[1] != "" {
		secondary = d.Models[1]
	}
	return primary, secondary
}

// attempt sends one probe request and measures it end to end, including
// output extraction.
func (p *Prober) attempt(ctx context.Context, d provider.Descriptor, idx int, key, model string, number int) Result {
	ctx, span := p.tracer.Start(ctx, "probe.attempt", trace.WithAttributes(
		attribute.String("provider.id", d.ID),
		attribute.Int("probe.credential", idx),
		attribute.Int("probe.attempt", number),
		attribute.String("probe.model", model),
	))
	defer span.End()

	req := transport.Request{
		URL:     endpoint(d.BaseURL),
		Body:    responses.NewProbeRequest(model, p.cfg.Instructions, p.cfg.Prompt),
		Headers: p.headers(key),
		Timeout: p.cfg.TestTimeout,
	}

	start := p.now()
	resp, err := p.transport.Send(ctx, req)
	var text string
	if err == nil {
		text = responses.OutputText(resp.Events)
	}
	latency := measured(p.now().Sub(start))

	p.observer.ObserveAttempt(Attempt{
		ProviderID:      d.ID,
		CredentialIndex: idx,
		Number:          number,
		Model:           model,
		Latency:         latency,
		Err:             err,
	})

	r := Result{
		ProviderID:      d.ID,
		BaseURL:         d.BaseURL,
		CredentialIndex: idx,
		CredentialHint:  security.Mask(key),
		Model:           model,
		Attempt:         number,
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, provider.Classify(err))
		r.Latency = FailureLatency
		r.Error = errorText(err)
		return r
	}
	span.SetAttributes(
		attribute.Int64("probe.latency_ms", latency.Milliseconds()),
		attribute.Int("probe.events", len(resp.Events)),
	)
	if p.logger.Enabled(ctx, slog.LevelDebug) {
		p.logger.DebugContext(ctx, "probe: stream received",
			"provider", d.ID,
			"model", model,
			"events", responses.CountEventTypes(resp.Events),
		)
	}
	r.Success = true
	r.Latency = latency
	r.Response = sample(text)
	return r
}

func (p *Prober) headers(key string) map[string]string {
	h := map[string]string{
		"Authorization": "Bearer " + key,
		"openai-beta":   "responses=experimental",
	}
	if p.cfg.UserAgent != "" {
		h["User-Agent"] = p.cfg.UserAgent
	}
	if p.cfg.Originator != "" {
		h["originator"] = p.cfg.Originator
	}
	for k, v := range p.cfg.ExtraHeaders {
		h[k] = v
	}
	return h
}

// endpoint returns the Responses URL under baseURL.
// logEvent traces stream events as they arrive.
func (p *Prober) logEvent(ev sse.Event) {
	p.logger.Debug("probe: stream event", "event", ev.Name, "bytes", len(ev.Data)+len(ev.Raw))
}

// measured clamps a completed round-trip to a positive duration so that a
// success always carries a measured latency, even under a coarse clock.
func measured(d time.Duration) time.Duration {
	if d <= 0 {
		return time.Nanosecond
	}
	return d
}

func endpoint(baseURL string) string {
	return strings.TrimRight(baseURL, "/") + "/responses"
}

// failed builds a Result for a provider that could not be probed at all.
func failed(d provider.Descriptor, err error) Result {
	return Result{
		ProviderID: d.ID,
		BaseURL:    d.BaseURL,
		Latency:    FailureLatency,
		Error:      errorText(err),
	}
}
