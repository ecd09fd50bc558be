package xcompat

import (
	"fmt"
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/openxcorr/xcompat/reporting"
	"github.com/openxcorr/xcompat/types"
)

// printResultsTable prints the run's results to the console.
func (x *xcompat) printResultsTable(result *reporting.ComprehensiveReport) {
	x.config.Log.Info("Printing results...")
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetTitle(fmt.Sprintf("Cross-Version Test Results (%s)", formatDuration(result.Duration)))

	t.AppendHeader(table.Row{
		"Configuration", "Records", "Equal", "Differing", "Max Diff", "Perf Δ", "Verdict", "Reason",
	})

	t.SetColumnConfigs([]table.ColumnConfig{
		{Name: "Configuration", WidthMax: 30, WidthMaxEnforcer: text.WrapSoft},
		{Name: "Records", Align: text.AlignRight},
		{Name: "Equal", Align: text.AlignRight},
		{Name: "Differing", Align: text.AlignRight},
		{Name: "Max Diff", Align: text.AlignRight},
		{Name: "Perf Δ", Align: text.AlignRight},
		{Name: "Reason", WidthMax: 60, WidthMaxEnforcer: text.WrapSoft},
	})

	for _, cr := range result.Reports {
		records, equal, differing, maxDiff := "-", "-", "-", "-"
		if cmp := cr.Comparison; cmp != nil {
			records = fmt.Sprintf("%d", cmp.TotalRecords)
			equal = fmt.Sprintf("%d", cmp.EqualRecords)
			differing = fmt.Sprintf("%d", cmp.DifferingRecords)
			maxDiff = fmt.Sprintf("%.3e", cmp.MaxDifference)
		}

		perf := "n/a"
		if cr.Perf != nil {
			perf = fmt.Sprintf("%+.1f%%", cr.Perf.DeltaPercent)
		}

		reason := ""
		if cr.Reason != types.ReasonNone {
			reason = string(cr.Reason)
		}

		t.AppendRow(table.Row{
			cr.Config.Name,
			records,
			equal,
			differing,
			maxDiff,
			perf,
			getVerdictString(cr.Verdict),
			reason,
		})
	}

	t.AppendSeparator()
	t.AppendFooter(table.Row{
		"Total", len(result.Reports), "", "", "", "",
		fmt.Sprintf("%d passed, %d failed", result.Passed, result.Failed), "",
	})

	if result.Status == types.VerdictPass {
		t.SetStyle(table.StyleColoredBlackOnGreenWhite)
	} else {
		t.SetStyle(table.StyleColoredBlackOnRedWhite)
	}
	t.Render()
}

// getVerdictString returns a symbol-prefixed string for the verdict.
func getVerdictString(v types.Verdict) string {
	if v == types.VerdictPass {
		return "✓ pass"
	}
	return "✗ fail"
}

func formatDuration(d time.Duration) string {
	return fmt.Sprintf("%.1fs", d.Seconds())
}
