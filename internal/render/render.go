// Package render prints probe results, the provider list and selection
// state for terminals.
package render

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/flemzord/codexsw/internal/config"
	"github.com/flemzord/codexsw/internal/probe"
	"github.com/flemzord/codexsw/internal/security"
	"github.com/flemzord/codexsw/internal/state"
	"github.com/flemzord/codexsw/internal/switcher"
)

// Latency thresholds for coloring.
const (
	FastLatency = 300 * time.Millisecond
	SlowLatency = 800 * time.Millisecond
)

// maxURLLen bounds base URLs in reachability listings.
const maxURLLen = 50

// Printer writes styled output. Colors are only emitted when w is a
// terminal.
type Printer struct {
	w            io.Writer
	showResponse bool

	header  lipgloss.Style
	name    lipgloss.Style
	current lipgloss.Style
	good    lipgloss.Style
	warn    lipgloss.Style
	bad     lipgloss.Style
	faint   lipgloss.Style
}

// New creates a Printer. showResponse controls whether result lines carry
// the response sample or error text.
func New(w io.Writer, showResponse bool) *Printer {
	r := lipgloss.NewRenderer(w)
	return &Printer{
		w:            w,
		showResponse: showResponse,
		header:       r.NewStyle().Bold(true).Foreground(lipgloss.Color("11")),
		name:         r.NewStyle().Bold(true).Foreground(lipgloss.Color("14")),
		current:      r.NewStyle().Bold(true).Foreground(lipgloss.Color("10")),
		good:         r.NewStyle().Foreground(lipgloss.Color("10")),
		warn:         r.NewStyle().Foreground(lipgloss.Color("11")),
		bad:          r.NewStyle().Foreground(lipgloss.Color("9")),
		faint:        r.NewStyle().Faint(true),
	}
}

func (p *Printer) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(p.w, format, args...)
}

// latencyStyle picks the color for a measured latency.
func (p *Printer) latencyStyle(d time.Duration) lipgloss.Style {
	switch {
	case d <= 0:
		return p.bad
	case d <= FastLatency:
		return p.good
	case d <= SlowLatency:
		return p.warn
	default:
		return p.bad
	}
}

// FormatLatency renders a latency in whole milliseconds, or "error" for
// failed probes.
func FormatLatency(d time.Duration) string {
	if d <= 0 {
		return "error"
	}
	return fmt.Sprintf("%dms", d.Milliseconds())
}

// Results prints results grouped by provider. results should already be in
// display order; groups appear in order of their first result.
func (p *Printer) Results(results []probe.Result, mode probe.Mode) {
	title := "Validity test results"
	if mode == probe.Reachability {
		title = "Latency test results"
	}
	p.printf("\n%s\n\n", p.header.Render(title))

	var order []string
	groups := make(map[string][]probe.Result)
	for _, r := range results {
		if _, seen := groups[r.ProviderID]; !seen {
			order = append(order, r.ProviderID)
		}
		groups[r.ProviderID] = append(groups[r.ProviderID], r)
	}

	for _, id := range order {
		p.printf("%s\n", p.name.Render("["+id+"]"))
		for i, r := range groups[id] {
			p.printf("    %d.[%s] %s(%s)%s\n",
				i+1,
				p.subject(r, mode),
				p.status(r, mode),
				p.latencyStyle(r.Latency).Bold(true).Render(FormatLatency(r.Latency)),
				p.detail(r),
			)
		}
		p.printf("\n")
	}
}

// subject is the masked credential for validity results and the base URL
// for reachability results.
func (p *Printer) subject(r probe.Result, mode probe.Mode) string {
	if mode == probe.Validity && r.CredentialHint != "" {
		return r.CredentialHint
	}
	if r.BaseURL == "" {
		return "no base_url"
	}
	return truncate(r.BaseURL, maxURLLen)
}

func (p *Printer) status(r probe.Result, mode probe.Mode) string {
	ok, label := r.Success && r.Measured(), "valid"
	if mode == probe.Reachability {
		label = "reachable"
	}
	if !ok {
		label = "invalid"
		if mode == probe.Reachability {
			label = "failed"
		}
		return "✗ " + p.bad.Bold(true).Render(label)
	}
	return "✓ " + p.good.Bold(true).Render(label)
}

func (p *Printer) detail(r probe.Result) string {
	if !p.showResponse {
		return ""
	}
	text := r.Response
	switch {
	case !r.Success:
		text = r.Error
	case text == "":
		text = "Success"
	}
	if r.Attempt > 1 && r.Model != "" {
		text += p.faint.Render(" via " + r.Model)
	}
	return " [Response: " + text + "]"
}

// Summary prints the "N/M valid" footer.
func (p *Printer) Summary(ok, total int, mode probe.Mode) {
	word := "valid"
	if mode == probe.Reachability {
		word = "reachable"
	}
	style := p.good
	if ok == 0 {
		style = p.bad
	}
	p.printf("%s\n", style.Bold(true).Render(fmt.Sprintf("Test complete: %d/%d %s", ok, total, word)))
}

// Providers lists configured providers with masked keys. current and
// currentModel mark the active selection; both may be empty.
func (p *Printer) Providers(providers config.Providers, current, currentModel string) {
	if len(providers) == 0 {
		p.printf("%s\n", p.warn.Render("No providers configured."))
		return
	}
	p.printf("%s\n\n", p.header.Render("Available providers"))

	for _, prov := range providers {
		active := prov.ID == current
		if active {
			p.printf("%s%s\n", p.current.Render("* "), p.current.Render("["+prov.ID+"]"))
		} else {
			p.printf("  %s\n", p.name.Render("["+prov.ID+"]"))
		}
		if prov.Name != "" {
			p.printf("    Name: %s\n", prov.Name)
		}
		if prov.BaseURL != "" {
			p.printf("    URL: %s\n", prov.BaseURL)
		}
		for i, key := range prov.APIKey {
			p.printf("    Key %d: %s\n", i+1, security.Mask(key))
		}
		p.printf("    Env: %s\n", prov.Descriptor().EnvKeyOrDefault())
		if len(prov.Models) > 0 {
			p.printf("    Models:\n")
			for i, m := range prov.Models {
				if active && m == currentModel {
					p.printf("    %s\n", p.current.Render(fmt.Sprintf("* - %d: %s", i+1, m)))
					continue
				}
				p.printf("      - %d: %s\n", i+1, m)
			}
		}
		p.printf("\n")
	}

	if current != "" {
		p.printf("%s\n", p.current.Render("Current provider: "+current))
	} else {
		p.printf("%s\n", p.warn.Render("No provider selected."))
	}
}

// Switched prints the outcome of a provider switch.
func (p *Printer) Switched(out switcher.Outcome) {
	p.printf("\n%s\n", p.current.Render("Switched to "+out.Selection.ProviderID))
	if out.ClearedEnvKey != "" {
		p.printf("  Cleared: %s\n", out.ClearedEnvKey)
	}
	if out.BaseURL != "" {
		p.printf("  URL: %s\n", out.BaseURL)
	}
	if out.Selection.Model != "" {
		p.printf("  Model: %s\n", out.Selection.Model)
	}
	p.printf("  Key %d: %s\n", out.KeyIndex, out.CredentialHint)
	if out.EnvExported {
		p.printf("  Env: %s\n", out.EnvKey)
	} else {
		p.printf("  %s\n", p.warn.Render("Env: "+out.EnvKey+" could not be exported"))
	}
	if out.CodexUpdated {
		p.printf("  Codex: config.toml and auth.json updated\n")
	}
}

// Current prints the active selection.
func (p *Printer) Current(sel state.Selection, envKey, credential string) {
	p.printf("%s\n", p.current.Render("Current provider: "+sel.ProviderID))
	if sel.Model != "" {
		p.printf("  Model: %s\n", sel.Model)
	}
	if envKey != "" {
		p.printf("  Env: %s\n", envKey)
	}
	if credential != "" {
		p.printf("  Key: %s\n", security.Mask(credential))
	}
	p.printf("  Since: %s\n", sel.SelectedAt.Local().Format(time.DateTime))
}

// History prints past selections, newest first.
func (p *Printer) History(history []state.Selection) {
	if len(history) == 0 {
		p.printf("%s\n", p.warn.Render("No selections recorded."))
		return
	}
	for _, sel := range history {
		model := sel.Model
		if model == "" {
			model = "-"
		}
		p.printf("%s  %-20s %s\n",
			p.faint.Render(sel.SelectedAt.Local().Format(time.DateTime)),
			sel.ProviderID,
			model,
		)
	}
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return strings.TrimSpace(string(runes[:n-3])) + "..."
}
