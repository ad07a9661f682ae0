package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/flemzord/codexsw/internal/state"
)

func setCmd(g *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "set",
		Short: "Change persistent settings",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "codex-config [path]",
		Short: "Show or save the Codex config.toml updated on every switch",
		Args:  cobra.MaximumNArgs(1),
		RunE: run(g, func(a *app, cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			out := cmd.OutOrStdout()
			if len(args) == 1 {
				path, err := filepath.Abs(args[0])
				if err != nil {
					return err
				}
				if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
					fmt.Fprintf(cmd.ErrOrStderr(), "Warning: %s does not exist yet; it will be created on the next switch.\n", path)
				}
				if err := store.RecordSetting(ctx, state.SettingCodexConfig, path); err != nil {
					return err
				}
				if a.cfg.Settings.CodexConfig != "" {
					fmt.Fprintf(cmd.ErrOrStderr(), "Warning: settings.codex_config in %s takes precedence.\n", a.configPath)
				}
			}

			files, err := a.codexFiles(ctx, store)
			if err != nil {
				return err
			}
			_, statErr := os.Stat(files.ConfigPath())
			exists := statErr == nil
			if a.flags.json {
				return writeJSON(out, struct {
					Path   string `json:"path"`
					Auth   string `json:"auth"`
					Exists bool   `json:"exists"`
				}{files.ConfigPath(), files.AuthPath(), exists})
			}
			status := "present"
			if !exists {
				status = "missing"
			}
			fmt.Fprintf(out, "Codex config: %s (%s)\n", files.ConfigPath(), status)
			fmt.Fprintf(out, "Codex auth:   %s\n", files.AuthPath())
			return nil
		}),
	})
	return cmd
}
