// Package main is the entry point for the codexsw CLI.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// Set by goreleaser ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// globalFlags are the persistent flags shared by every subcommand.
type globalFlags struct {
	configPath      string
	logLevel        string
	json            bool
	metricsTextfile string
	otlpEndpoint    string
}

func rootCmd() *cobra.Command {
	g := &globalFlags{}
	root := &cobra.Command{
		Use:           "codexsw",
		Short:         "Probe, rank and switch OpenAI Responses API providers",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&g.configPath, "config", "c", "", "Path to configuration file")
	pf.StringVar(&g.logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")
	pf.BoolVar(&g.json, "json", false, "Print machine-readable JSON")
	pf.StringVar(&g.metricsTextfile, "metrics-textfile", "", "Write probe metrics to this file after the command")
	pf.StringVar(&g.otlpEndpoint, "otlp-endpoint", os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"), "OTLP/HTTP endpoint for trace export")

	root.AddCommand(
		versionCmd(),
		listCmd(g),
		testCmd(g),
		pingCmd(g),
		autoCmd(g),
		useCmd(g),
		currentCmd(g),
		historyCmd(g),
		envCmd(g),
		setCmd(g),
		serveCmd(g),
		configCmd(),
	)
	return root
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "codexsw %s (commit: %s, built: %s)\n", version, commit, date)
		},
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
