package commands

import (
	"fmt"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/driftwood-labs/salespipe/internal/cli/output"
	"github.com/driftwood-labs/salespipe/internal/state"
)

// NewRunsCommand creates the runs command, which shows run history.
func NewRunsCommand() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Show recent pipeline runs",
		Long: `Show the run history recorded in the state database, newest first.

Each entry lists the run kind, its status, when it started, and how
long it took. Use --limit to control how many runs are shown.`,
		Example: `  # Show the ten most recent runs
  salespipe runs

  # Show the last three runs as JSON
  salespipe runs --limit 3 --output json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runRuns(cmd, limit)
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 10, "Maximum number of runs to show")

	return cmd
}

func runRuns(cmd *cobra.Command, limit int) error {
	cmdCtx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	runs, err := cmdCtx.Engine.Store().ListRuns(limit)
	if err != nil {
		return fmt.Errorf("failed to list runs: %w", err)
	}

	r := cmdCtx.Renderer
	switch r.EffectiveMode() {
	case output.ModeJSON:
		return runsJSON(r, runs)
	case output.ModeMarkdown:
		runsMarkdown(r, runs)
		return nil
	default:
		runsText(r, runs)
		return nil
	}
}

func runsText(r *output.Renderer, runs []*state.Run) {
	r.Header(1, fmt.Sprintf("Runs (%d)", len(runs)))

	if len(runs) == 0 {
		r.Muted("No runs recorded yet. Try: salespipe run")
		return
	}

	tw := table.NewWriter()
	tw.SetOutputMirror(r.Writer())
	tw.SetStyle(table.StyleLight)
	tw.AppendHeader(table.Row{"ID", "Kind", "Status", "Started", "Duration"})
	for _, run := range runs {
		tw.AppendRow(table.Row{
			shortID(run.ID),
			string(run.Kind),
			string(run.Status),
			run.StartedAt.Format("2006-01-02 15:04:05"),
			formatRunDuration(run),
		})
	}
	tw.Render()

	for _, run := range runs {
		if run.Error != "" {
			r.Println("")
			r.Warning(fmt.Sprintf("%s: %s", shortID(run.ID), run.Error))
		}
	}
}

func runsMarkdown(r *output.Renderer, runs []*state.Run) {
	r.Println(output.FormatHeader(1, fmt.Sprintf("Runs (%d)", len(runs))))
	r.Println("")

	if len(runs) == 0 {
		r.Println("No runs recorded yet.")
		return
	}

	r.Println("| ID | Kind | Status | Started | Duration |")
	r.Println("|----|------|--------|---------|----------|")
	for _, run := range runs {
		r.Println(fmt.Sprintf("| %s | %s | %s | %s | %s |",
			shortID(run.ID),
			string(run.Kind),
			string(run.Status),
			run.StartedAt.Format(time.RFC3339),
			formatRunDuration(run),
		))
	}

	for _, run := range runs {
		if run.Error != "" {
			r.Println("")
			r.Println(output.FormatKeyValue("Error "+shortID(run.ID), run.Error))
		}
	}
}

func runsJSON(r *output.Renderer, runs []*state.Run) error {
	summaries := make([]RunSummary, 0, len(runs))
	for _, run := range runs {
		summaries = append(summaries, newRunSummary(run))
	}
	return r.JSON(summaries)
}

// formatRunDuration reports elapsed time for a finished run, or "running"
// while the run is still in flight.
func formatRunDuration(run *state.Run) string {
	if run.CompletedAt == nil {
		return "running"
	}
	return runDuration(run).Round(time.Millisecond).String()
}
