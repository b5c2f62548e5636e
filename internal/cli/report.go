/*
PURPOSE:
  Renders the end-of-run summary printed by the 'run' subcommand.

REQUIREMENTS:
  User-specified:
  - Show per-model average latencies after a run.

  Implementation-discovered:
  - Failed and skipped keys are listed so a CI log explains gaps in
    the dashboard without opening meta.json.

ARCHITECTURE INTEGRATION:
  - Called by: internal/cli/run.go
  - Reads: engine.Report

ERROR HANDLING:
  - None. Missing averages render as "-".

IMPLEMENTATION RULES:
  - Pure string formatting; no I/O.

USAGE:
  fmt.Fprint(cmd.OutOrStdout(), renderSummary(report))

SELF-HEALING INSTRUCTIONS:
  - If a summary field is added to ResultRecord, add a column here.

RELATED FILES:
  - internal/engine/runner.go

MAINTENANCE:
  - None.
*/

package cli

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/daryltucker/apispeedtest-runner/internal/engine"
)

// renderSummary formats the end-of-run report printed by 'run'.
func renderSummary(report *engine.Report) string {
	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("5"))
	colHeaderStyle := lipgloss.NewStyle().Bold(true).Underline(true)
	okStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	errorStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	faint := lipgloss.NewStyle().Faint(true)

	var b strings.Builder
	b.WriteString(titleStyle.Render("Benchmark "+report.Meta.GeneratedAt) + "\n")
	b.WriteString(colHeaderStyle.Render(fmt.Sprintf("%-32s %10s %10s %10s", "MODEL", "NONSTREAM", "TTFB", "STREAM")) + "\n")

	for _, r := range report.Records {
		b.WriteString(fmt.Sprintf("%-32s %10s %10s %10s\n",
			r.Key,
			seconds(r.NonStreamingAvgS),
			seconds(r.StreamingTTFBAvgS),
			seconds(r.StreamingTotalAvgS),
		))
	}

	for _, f := range report.Batch.Failures {
		b.WriteString(errorStyle.Render(fmt.Sprintf("FAILED  %s: %v", f.Key, f.Err)) + "\n")
	}
	for _, key := range report.Batch.Skipped {
		b.WriteString(faint.Render("skipped "+key+" (not in registry)") + "\n")
	}

	if report.Meta.ErrorMessage != "" {
		b.WriteString(errorStyle.Render(report.Meta.ErrorMessage))
	} else {
		b.WriteString(okStyle.Render(fmt.Sprintf("%d model(s) measured", len(report.Records))))
	}
	return b.String()
}

func seconds(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%.3fs", *v)
}
