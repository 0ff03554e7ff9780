package commands

import (
	"github.com/driftwood-labs/salespipe/internal/cli/output"
	"github.com/spf13/cobra"
)

// NewPrepCommand creates the prep command.
func NewPrepCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prep",
		Short: "Load raw sales CSVs and build cleaned datasets",
		Long: `Load the raw CSV files from the data directory into the warehouse,
repair missing transaction totals, and export the cleaned datasets as CSVs.

Sources load in dependency order. A failed source only blocks the
datasets that depend on it; independent branches keep running.

Output adapts to environment:
  - Terminal: Styled, colored output
  - Piped/Scripted: Markdown format (agent-friendly)

Use --output to override: auto, text, markdown, json`,
		Example: `  # Run the prep stage
  salespipe prep

  # Run against a different data directory
  salespipe prep --data-dir ./exports/2024-q3

  # Emit the run report as JSON
  salespipe prep --output json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runPrep(cmd)
		},
	}

	return cmd
}

func runPrep(cmd *cobra.Command) error {
	cmdCtx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	if err := cmdCtx.Cfg.ValidateDirectories(); err != nil {
		return err
	}

	r := cmdCtx.Renderer
	effectiveMode := r.EffectiveMode()

	var spinner *output.Spinner
	if effectiveMode == output.ModeText {
		spinner = r.NewSpinner("Running prep pipeline...")
		spinner.Start()
	}

	run, steps, runErr := cmdCtx.Engine.Prep(cmd.Context())

	if spinner != nil {
		if runErr != nil {
			spinner.Fail("Prep pipeline failed")
		} else {
			spinner.Success("Prep pipeline completed")
		}
	}

	if run == nil {
		// The run never started; there is no report to render.
		return runErr
	}

	switch effectiveMode {
	case output.ModeJSON:
		if err := r.JSON(newRunReport(run, steps)); err != nil && runErr == nil {
			runErr = err
		}
	case output.ModeMarkdown:
		renderStepsMarkdown(r, "Prep Pipeline", run, steps)
	default:
		r.Println("")
		r.Header(2, "Prep Steps")
		renderStepsText(r, run, steps)
	}

	return runErr
}
