package main

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strconv"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/flemzord/codexsw/internal/security"
	"github.com/flemzord/codexsw/internal/state"
	"github.com/flemzord/codexsw/internal/switcher"
)

func listCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List configured providers",
		Args:    cobra.NoArgs,
		RunE: run(g, func(a *app, cmd *cobra.Command, _ []string) error {
			current, err := currentSelection(cmd.Context(), a)
			if err != nil {
				return err
			}
			if a.flags.json {
				type entry struct {
					ID      string   `json:"id"`
					Name    string   `json:"name,omitempty"`
					BaseURL string   `json:"base_url,omitempty"`
					Keys    []string `json:"keys"`
					Models  []string `json:"models,omitempty"`
					EnvKey  string   `json:"env_key"`
					Current bool     `json:"current"`
				}
				out := make([]entry, 0, len(a.cfg.Providers))
				for _, p := range a.cfg.Providers {
					keys := make([]string, len(p.APIKey))
					for i, k := range p.APIKey {
						keys[i] = security.Mask(k)
					}
					out = append(out, entry{
						ID:      p.ID,
						Name:    p.Name,
						BaseURL: p.BaseURL,
						Keys:    keys,
						Models:  p.Models,
						EnvKey:  p.Descriptor().EnvKeyOrDefault(),
						Current: p.ID == current.ProviderID,
					})
				}
				return writeJSON(cmd.OutOrStdout(), out)
			}
			a.printer().Providers(a.cfg.Providers, current.ProviderID, current.Model)
			return nil
		}),
	}
}

// currentSelection returns the recorded selection, or a zero Selection
// when there is none.
func currentSelection(ctx context.Context, a *app) (state.Selection, error) {
	store, err := a.openStore(ctx)
	if err != nil {
		return state.Selection{}, err
	}
	defer func() { _ = store.Close() }()

	sel, err := store.Current(ctx)
	if errors.Is(err, state.ErrNoSelection) {
		return state.Selection{}, nil
	}
	return sel, err
}

func useCmd(g *globalFlags) *cobra.Command {
	var opts switcher.Options
	cmd := &cobra.Command{
		Use:   "use [provider]",
		Short: "Switch to a provider",
		Long:  "Switch to a provider. Without an argument, pick one interactively.",
		Args:  cobra.MaximumNArgs(1),
		RunE: run(g, func(a *app, cmd *cobra.Command, args []string) error {
			var id string
			if len(args) == 1 {
				id = args[0]
			} else {
				picked, err := pickProvider(a)
				if err != nil {
					return err
				}
				id = picked
			}

			out, err := useProvider(a, cmd, id, opts)
			if err != nil {
				return err
			}
			if a.flags.json {
				return writeJSON(cmd.OutOrStdout(), out)
			}
			a.printer().Switched(out)
			return nil
		}),
	}
	cmd.Flags().IntVarP(&opts.ModelIndex, "model", "m", 0, "Model number (1-based)")
	cmd.Flags().IntVarP(&opts.KeyIndex, "key", "k", 0, "API key number (1-based)")
	return cmd
}

func pickProvider(a *app) (string, error) {
	if len(a.cfg.Providers) == 0 {
		return "", errors.New("no providers configured")
	}
	if !stdinIsTerminal() {
		return "", errors.New("provider argument required when not running in a terminal")
	}

	options := make([]huh.Option[string], 0, len(a.cfg.Providers))
	for _, p := range a.cfg.Providers {
		label := p.ID
		if p.Name != "" {
			label += " (" + p.Name + ")"
		}
		options = append(options, huh.NewOption(label, p.ID))
	}

	var id string
	err := huh.NewSelect[string]().
		Title("Select a provider").
		Options(options...).
		Value(&id).
		Run()
	if err != nil {
		return "", fmt.Errorf("provider selection: %w", err)
	}
	return id, nil
}

func useProvider(a *app, cmd *cobra.Command, id string, opts switcher.Options) (switcher.Outcome, error) {
	ctx := cmd.Context()
	store, err := a.openStore(ctx)
	if err != nil {
		return switcher.Outcome{}, err
	}
	defer func() { _ = store.Close() }()

	env, err := a.envFile()
	if err != nil {
		return switcher.Outcome{}, err
	}
	files, err := a.codexFiles(ctx, store)
	if err != nil {
		return switcher.Outcome{}, err
	}
	sw := switcher.New(a.cfg.Providers, store, env, a.logger, switcher.WithClient(files))
	return sw.Use(ctx, id, opts)
}

func currentCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "current",
		Short: "Show the active provider",
		Args:  cobra.NoArgs,
		RunE: run(g, func(a *app, cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			store, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			sel, err := store.Current(ctx)
			if errors.Is(err, state.ErrNoSelection) {
				if a.flags.json {
					return writeJSON(cmd.OutOrStdout(), nil)
				}
				fmt.Fprintln(cmd.OutOrStdout(), "No provider selected.")
				return nil
			}
			if err != nil {
				return err
			}
			envKey, err := store.CurrentEnvKey(ctx)
			if err != nil {
				return err
			}
			credential, err := store.Credential(ctx, envKey)
			if err != nil {
				return err
			}

			if a.flags.json {
				exported, err := isExported(a, envKey, credential)
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), struct {
					state.Selection
					EnvKey   string `json:"env_key,omitempty"`
					Key      string `json:"key,omitempty"`
					Exported bool   `json:"exported"`
				}{sel, envKey, security.Mask(credential), exported})
			}
			a.printer().Current(sel, envKey, credential)
			return nil
		}),
	}
}

// isExported reports whether the env file still holds credential under
// envKey.
func isExported(a *app, envKey, credential string) (bool, error) {
	if envKey == "" {
		return false, nil
	}
	env, err := a.envFile()
	if err != nil {
		return false, err
	}
	v, ok, err := env.Get(envKey)
	if err != nil {
		return false, err
	}
	return ok && v == credential, nil
}

func historyCmd(g *globalFlags) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show past provider switches",
		Args:  cobra.NoArgs,
		RunE: run(g, func(a *app, cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			store, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			history, err := store.History(ctx, limit)
			if err != nil {
				return err
			}
			if a.flags.json {
				return writeJSON(cmd.OutOrStdout(), history)
			}
			a.printer().History(history)
			return nil
		}),
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of entries")
	return cmd
}

func envCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "env",
		Short: "Print exported variables as shell export statements",
		Long:  "Print exported variables as shell export statements, e.g. eval \"$(codexsw env)\".",
		Args:  cobra.NoArgs,
		RunE: run(g, func(a *app, cmd *cobra.Command, _ []string) error {
			env, err := a.envFile()
			if err != nil {
				return err
			}
			vars, err := env.Load()
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "# %s\n", env.Path())
			for _, k := range slices.Sorted(maps.Keys(vars)) {
				fmt.Fprintf(cmd.OutOrStdout(), "export %s=%s\n", k, strconv.Quote(vars[k]))
			}
			return nil
		}),
	}
}
