package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/flemzord/codexsw/internal/probe"
	"github.com/flemzord/codexsw/internal/rank"
	"github.com/flemzord/codexsw/internal/switcher"
)

// probeReport is the --json form of test and ping.
type probeReport struct {
	Mode    string         `json:"mode"`
	OK      int            `json:"ok"`
	Total   int            `json:"total"`
	Results []probe.Result `json:"results"`
}

func testCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "test [provider]",
		Short: "Send a real request with every key and report validity and latency",
		Args:  cobra.MaximumNArgs(1),
		RunE: run(g, func(a *app, cmd *cobra.Command, args []string) error {
			return probeAndPrint(a, cmd, args, probe.Validity)
		}),
	}
}

func pingCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "ping [provider]",
		Short: "Check that provider endpoints answer",
		Args:  cobra.MaximumNArgs(1),
		RunE: run(g, func(a *app, cmd *cobra.Command, args []string) error {
			return probeAndPrint(a, cmd, args, probe.Reachability)
		}),
	}
}

func probeAndPrint(a *app, cmd *cobra.Command, args []string, mode probe.Mode) error {
	descriptors, err := a.descriptors(args)
	if err != nil {
		return err
	}
	results, err := a.prober().RunAll(cmd.Context(), descriptors, mode)
	if err != nil {
		return err
	}
	a.metrics.ObserveRun(mode, time.Now())

	sorted := rank.Sort(results)
	ok, total := rank.Summary(results)
	if a.flags.json {
		return writeJSON(cmd.OutOrStdout(), probeReport{Mode: mode.String(), OK: ok, Total: total, Results: sorted})
	}

	p := a.printer()
	p.Results(sorted, mode)
	p.Summary(ok, total, mode)
	return nil
}

// autoReport is the --json form of auto.
type autoReport struct {
	Mode     string            `json:"mode"`
	Selected *rank.Candidate   `json:"selected"`
	Outcome  *switcher.Outcome `json:"outcome,omitempty"`
	Results  []probe.Result    `json:"results"`
}

func autoCmd(g *globalFlags) *cobra.Command {
	var ping bool
	cmd := &cobra.Command{
		Use:   "auto [provider]",
		Short: "Probe providers and switch to the fastest one that works",
		Args:  cobra.MaximumNArgs(1),
		RunE: run(g, func(a *app, cmd *cobra.Command, args []string) error {
			mode := probe.Validity
			if ping {
				mode = probe.Reachability
			}

			descriptors, err := a.descriptors(args)
			if err != nil {
				return err
			}
			results, err := a.prober().RunAll(cmd.Context(), descriptors, mode)
			if err != nil {
				return err
			}
			a.metrics.ObserveRun(mode, time.Now())
			sorted := rank.Sort(results)

			p := a.printer()
			if !a.flags.json {
				p.Results(sorted, mode)
				ok, total := rank.Summary(results)
				p.Summary(ok, total, mode)
			}

			best, err := rank.Decide(results, mode)
			if err != nil {
				if a.flags.json {
					_ = writeJSON(cmd.OutOrStdout(), autoReport{Mode: mode.String(), Results: sorted})
				}
				return decideError(err, mode)
			}

			out, err := useProvider(a, cmd, best.ProviderID, switcher.Options{ModelIndex: 1, KeyIndex: best.CredentialIndex})
			if err != nil {
				return err
			}
			if a.flags.json {
				return writeJSON(cmd.OutOrStdout(), autoReport{Mode: mode.String(), Selected: &best, Outcome: &out, Results: sorted})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "\nFastest: %s (%dms)\n", best.ProviderID, best.Latency.Milliseconds())
			p.Switched(out)
			return nil
		}),
	}
	cmd.Flags().BoolVar(&ping, "ping", false, "Rank by reachability instead of a real request")
	return cmd
}

func decideError(err error, mode probe.Mode) error {
	switch {
	case errors.Is(err, rank.ErrNoResults):
		return errors.New("no providers were probed")
	case errors.Is(err, rank.ErrNoQualifying) && mode == probe.Reachability:
		return errors.New("no provider is reachable")
	case errors.Is(err, rank.ErrNoQualifying):
		return errors.New("no provider returned a valid response")
	}
	return err
}
