package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/flemzord/codexsw/internal/codex"
	"github.com/flemzord/codexsw/internal/config"
	"github.com/flemzord/codexsw/internal/envfile"
	"github.com/flemzord/codexsw/internal/metrics"
	"github.com/flemzord/codexsw/internal/probe"
	"github.com/flemzord/codexsw/internal/provider"
	"github.com/flemzord/codexsw/internal/render"
	"github.com/flemzord/codexsw/internal/security"
	"github.com/flemzord/codexsw/internal/state"
	"github.com/flemzord/codexsw/internal/telemetry"
)

// app bundles what a command needs once the configuration is loaded.
type app struct {
	flags      *globalFlags
	cmd        *cobra.Command
	configPath string
	cfg        *config.Config
	logger     *slog.Logger
	redactor   *security.Redactor
	metrics    *metrics.Collector
	tracing    *telemetry.Provider
}

// newApp loads and validates the configuration, then sets up logging,
// metrics and tracing. Callers must call close.
func newApp(cmd *cobra.Command, g *globalFlags) (*app, error) {
	path, err := config.Resolve(g.configPath)
	if err != nil {
		return nil, err
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}
	cfg.Settings.ApplyDefaults()

	level, err := parseLevel(g.logLevel)
	if err != nil {
		return nil, err
	}
	redactor := security.NewRedactor()
	redactor.AddLiteral(cfg.Providers.Credentials()...)
	logger := slog.New(security.NewRedactingHandler(
		slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}),
		redactor,
	))
	slog.SetDefault(logger)

	tracing, err := telemetry.Setup(cmd.Context(), telemetry.Config{
		Endpoint:       g.otlpEndpoint,
		ServiceName:    "codexsw",
		ServiceVersion: version,
	})
	if err != nil {
		return nil, err
	}

	logger.Debug("configuration loaded", "path", path, "providers", len(cfg.Providers))
	return &app{
		flags:      g,
		cmd:        cmd,
		configPath: path,
		cfg:        cfg,
		logger:     logger,
		redactor:   redactor,
		metrics:    metrics.New(),
		tracing:    tracing,
	}, nil
}

// close flushes traces and writes the metrics textfile when requested.
func (a *app) close(ctx context.Context) error {
	var errs []error
	if a.flags.metricsTextfile != "" {
		if err := a.metrics.WriteTextfile(a.flags.metricsTextfile); err != nil {
			errs = append(errs, err)
		}
	}
	if err := a.tracing.Shutdown(ctx); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (a *app) prober() *probe.Prober {
	s := a.cfg.Settings
	return probe.New(probe.Config{
		TestTimeout:   s.TestTimeout,
		PingTimeout:   s.PingTimeout,
		PrimaryModel:  s.PrimaryModel,
		FallbackModel: s.FallbackModel,
		UserAgent:     s.UserAgent,
		Originator:    s.Originator,
		ExtraHeaders:  s.Headers,
	},
		probe.WithLogger(a.logger),
		probe.WithObserver(a.metrics),
		probe.WithTracer(a.tracing.Tracer("github.com/flemzord/codexsw/internal/probe")),
	)
}

// descriptors returns every provider, or only the one named by args.
func (a *app) descriptors(args []string) ([]provider.Descriptor, error) {
	if len(args) == 0 {
		return a.cfg.Providers.Descriptors(), nil
	}
	p, ok := a.cfg.Providers.Lookup(args[0])
	if !ok {
		return nil, fmt.Errorf("unknown provider %q (available: %s)", args[0], strings.Join(a.cfg.Providers.IDs(), ", "))
	}
	return []provider.Descriptor{p.Descriptor()}, nil
}

func (a *app) openStore(ctx context.Context) (*state.Store, error) {
	path := a.cfg.Settings.StatePath
	if path == "" {
		var err error
		if path, err = state.DefaultPath(); err != nil {
			return nil, err
		}
	}
	return state.Open(ctx, path)
}

// codexFiles resolves the Codex config.toml: the YAML setting wins over
// the path saved in the state store, which wins over the default.
func (a *app) codexFiles(ctx context.Context, store *state.Store) (*codex.Files, error) {
	if path := a.cfg.Settings.CodexConfig; path != "" {
		return codex.New(path), nil
	}
	path, err := store.Setting(ctx, state.SettingCodexConfig)
	if err != nil {
		return nil, err
	}
	if path == "" {
		if path, err = codex.DefaultConfigPath(); err != nil {
			return nil, err
		}
	}
	return codex.New(path), nil
}

func (a *app) envFile() (*envfile.File, error) {
	path := a.cfg.Settings.EnvFile
	if path == "" {
		var err error
		if path, err = envfile.DefaultPath(); err != nil {
			return nil, err
		}
	}
	return envfile.New(path), nil
}

func (a *app) printer() *render.Printer {
	return render.New(a.cmd.OutOrStdout(), a.cfg.Settings.ResponseVisible())
}

// run is the RunE body shared by commands that need an app.
func run(g *globalFlags, fn func(a *app, cmd *cobra.Command, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) (err error) {
		a, err := newApp(cmd, g)
		if err != nil {
			return err
		}
		defer func() {
			if cerr := a.close(context.WithoutCancel(cmd.Context())); cerr != nil && err == nil {
				err = cerr
			}
		}()
		return fn(a, cmd, args)
	}
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("invalid log level %q", s)
	}
	return level, nil
}

// stdinIsTerminal reports whether an interactive prompt can be shown.
func stdinIsTerminal() bool {
	info, err := os.Stdin.Stat()
	return err == nil && info.Mode()&os.ModeCharDevice != 0
}
