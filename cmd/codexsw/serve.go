package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/flemzord/codexsw/internal/config"
	"github.com/flemzord/codexsw/internal/cron"
	"github.com/flemzord/codexsw/internal/gateway"
	"github.com/flemzord/codexsw/internal/probe"
	"github.com/flemzord/codexsw/internal/reload"
)

func serveCmd(g *globalFlags) *cobra.Command {
	var bind, schedule string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Probe on a schedule and export results over HTTP",
		Args:  cobra.NoArgs,
		RunE: run(g, func(a *app, cmd *cobra.Command, _ []string) error {
			sc := a.cfg.Serve
			if bind != "" {
				sc.Bind = bind
			}
			if schedule != "" {
				sc.Schedule = schedule
			}
			if sc.Schedule == "" {
				sc.Schedule = cron.DefaultRefreshSchedule
			}
			if err := cron.ValidateSchedule(sc.Schedule); err != nil {
				return err
			}
			return serve(cmd.Context(), a, sc)
		}),
	}
	cmd.Flags().StringVar(&bind, "bind", "", "Listen address (overrides serve.bind)")
	cmd.Flags().StringVar(&schedule, "schedule", "", "Cron schedule for probing (overrides serve.schedule)")
	return cmd
}

func serveMode(s string) probe.Mode {
	if s == "reachability" {
		return probe.Reachability
	}
	return probe.Validity
}

func serve(ctx context.Context, a *app, sc config.Serve) error {
	mode := serveMode(sc.Mode)
	gw := gateway.New(gateway.Config{
		Bind: sc.Bind,
		Auth: gateway.AuthConfig{
			BearerToken: sc.BearerToken,
			BasicUser:   sc.BasicUser,
			BasicPass:   sc.BasicPass,
		},
	}, a.prober(), a.cfg.Providers.Descriptors(), mode, a.metrics, a.logger)

	job := &cron.ProbeRefreshJob{
		Refresher:    gw,
		Logger:       a.logger,
		Mode:         mode.String(),
		ScheduleExpr: sc.Schedule,
	}
	sched := cron.NewScheduler(a.logger)
	if err := sched.RegisterJob(job); err != nil {
		return err
	}

	if err := gw.Start(ctx); err != nil {
		return err
	}
	if err := sched.Start(ctx); err != nil {
		return errors.Join(err, gw.Stop(context.WithoutCancel(ctx)))
	}

	fmt.Fprintf(a.cmd.ErrOrStderr(), "codexsw serving %s probes on %s (schedule %q)\n", mode, bindOrDefault(sc.Bind), sc.Schedule)

	// First results without waiting for the schedule.
	initial := make(chan struct{})
	go func() {
		defer close(initial)
		if _, err := sched.RunNow(job.Name()); err != nil {
			a.logger.Warn("initial probe run failed", "error", err)
		}
	}()

	watchConfig(ctx, a, gw)

	<-ctx.Done()

	stopCtx := context.WithoutCancel(ctx)
	err := errors.Join(sched.Stop(stopCtx), gw.Stop(stopCtx))
	<-initial
	return err
}

// watchConfig reloads the provider registry when the configuration file
// changes or the process receives SIGHUP. Settings other than providers
// need a restart.
func watchConfig(ctx context.Context, a *app, gw *gateway.Gateway) {
	watcher := reload.NewWatcher(reload.WatcherConfig{ConfigPath: a.configPath})
	watcher.Start(ctx)

	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	signals := make(chan struct{})
	go func() {
		defer signal.Stop(hup)
		for {
			select {
			case <-ctx.Done():
				return
			case <-hup:
				select {
				case signals <- struct{}{}:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	handler := reload.NewHandler(a.configPath, reload.TargetFunc(func(cfg *config.Config) {
		a.redactor.AddLiteral(cfg.Providers.Credentials()...)
		gw.SetProviders(cfg.Providers.Descriptors())
	}), a.logger)
	go func() {
		handler.Run(ctx, watcher.Changes(), signals)
		watcher.Stop()
	}()
}

func bindOrDefault(bind string) string {
	if bind == "" {
		return "127.0.0.1:9464"
	}
	return bind
}
