package reload

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/flemzord/codexsw/internal/config"
)

// Target receives a freshly loaded configuration.
type Target interface {
	ApplyConfig(cfg *config.Config)
}

// TargetFunc adapts a function to Target.
type TargetFunc func(cfg *config.Config)

// ApplyConfig implements Target.
func (f TargetFunc) ApplyConfig(cfg *config.Config) { f(cfg) }

// Handler reloads the configuration file and hands it to a Target. An
// invalid file leaves the running configuration untouched.
type Handler struct {
	path   string
	target Target
	logger *slog.Logger
}

// NewHandler creates a reload handler for the file at path.
func NewHandler(path string, target Target, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{path: path, target: target, logger: logger}
}

// HandleReload loads, validates and applies the configuration.
func (h *Handler) HandleReload(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("reload: context cancelled before reload: %w", err)
	}

	cfg, err := config.Load(h.path)
	if err != nil {
		return fmt.Errorf("reload: %w", err)
	}
	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("reload: validating config: %w", err)
	}
	cfg.Settings.ApplyDefaults()

	h.target.ApplyConfig(cfg)
	h.logger.Info("configuration reloaded", "path", h.path, "providers", len(cfg.Providers))
	return nil
}

// Run reloads on every watcher change or signal until ctx is done.
// Failed reloads are logged and the previous configuration stays active.
func (h *Handler) Run(ctx context.Context, changes <-chan struct{}, signals <-chan struct{}) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-changes:
		case <-signals:
		}
		if err := h.HandleReload(ctx); err != nil {
			h.logger.Error("configuration reload failed", "error", err)
		}
	}
}
