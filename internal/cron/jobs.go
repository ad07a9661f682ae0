package cron

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// DefaultRefreshSchedule probes every five minutes.
const DefaultRefreshSchedule = "*/5 * * * *"

// Refresher re-probes providers and publishes the new results.
type Refresher interface {
	Refresh(ctx context.Context) error
}

// ProbeRefreshJob periodically refreshes probe results for the exporter.
type ProbeRefreshJob struct {
	Refresher    Refresher
	Logger       *slog.Logger
	Mode         string // label only, e.g. "validity"
	ScheduleExpr string // empty = DefaultRefreshSchedule
}

// Compile-time interface check.
var _ Job = (*ProbeRefreshJob)(nil)

// Name implements Job.
func (j *ProbeRefreshJob) Name() string {
	if j.Mode != "" {
		return "probe_refresh:" + j.Mode
	}
	return "probe_refresh"
}

// Schedule implements Job.
func (j *ProbeRefreshJob) Schedule() string {
	if j.ScheduleExpr != "" {
		return j.ScheduleExpr
	}
	return DefaultRefreshSchedule
}

// Run refreshes the results once.
func (j *ProbeRefreshJob) Run(ctx context.Context) error {
	if ctx.Err() != nil {
		return fmt.Errorf("cron: probe refresh cancelled: %w", ctx.Err())
	}
	start := time.Now()
	if err := j.Refresher.Refresh(ctx); err != nil {
		return fmt.Errorf("cron: probe refresh: %w", err)
	}
	if j.Logger != nil {
		j.Logger.Info("cron: probe results refreshed", "mode", j.Mode, "elapsed", time.Since(start))
	}
	return nil
}
