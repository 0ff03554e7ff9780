package commands

import (
	"github.com/spf13/cobra"

	"github.com/driftwood-labs/salespipe/internal/cli/output"
	"github.com/driftwood-labs/salespipe/internal/pipeline"
)

// PipelineReport is the JSON shape of a full pipeline run.
type PipelineReport struct {
	Prep    *RunReport     `json:"prep,omitempty"`
	Segment *SegmentReport `json:"segment,omitempty"`
}

// NewRunCommand creates the run command, which executes prep then segment.
func NewRunCommand() *cobra.Command {
	opts := &SegmentOptions{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the full pipeline: prep then segment",
		Long: `Execute both pipeline stages in order.

Prep loads the raw CSVs, repairs transaction totals, and exports the
cleaned datasets. Segment then computes RFM metrics and clusters
customers. Segmentation is skipped when prep fails.`,
		Example: `  # Run both stages
  salespipe run

  # Run with six segments and no chart
  salespipe run --clusters 6 --no-chart

  # Emit both run reports as JSON
  salespipe run --output json`,
		Aliases: []string{"build"},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runPipeline(cmd, opts)
		},
	}

	cmd.Flags().IntVar(&opts.Clusters, "clusters", 0, "Number of customer segments (default from config)")
	cmd.Flags().Int64Var(&opts.Seed, "seed", 0, "Random seed for clustering (default from config)")
	cmd.Flags().BoolVar(&opts.NoChart, "no-chart", false, "Skip writing the cluster chart")

	return cmd
}

func runPipeline(cmd *cobra.Command, opts *SegmentOptions) error {
	cmdCtx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	if err := cmdCtx.Cfg.ValidateDirectories(); err != nil {
		return err
	}

	cfg := cmdCtx.Cfg

	// CLI flags override config file
	clusters := cfg.Clusters
	if cmd.Flags().Changed("clusters") {
		clusters = opts.Clusters
	}
	seed := cfg.Seed
	if cmd.Flags().Changed("seed") {
		seed = opts.Seed
	}

	r := cmdCtx.Renderer
	effectiveMode := r.EffectiveMode()
	ctx := cmd.Context()

	var spinner *output.Spinner
	if effectiveMode == output.ModeText {
		spinner = r.NewSpinner("Running prep pipeline...")
		spinner.Start()
	}

	prepRun, prepSteps, prepErr := cmdCtx.Engine.Prep(ctx)

	if spinner != nil {
		if prepErr != nil {
			spinner.Fail("Prep pipeline failed")
		} else {
			spinner.Success("Prep pipeline completed")
		}
	}

	// Segmentation only makes sense on a clean prep run.
	var res *pipeline.SegmentResult
	var segErr error
	if prepErr == nil && prepRun != nil {
		if effectiveMode == output.ModeText {
			spinner = r.NewSpinner("Segmenting customers...")
			spinner.Start()
		}

		res, segErr = cmdCtx.Engine.Segment(ctx, pipeline.SegmentOptions{
			Clusters: clusters,
			Seed:     seed,
			NoChart:  opts.NoChart,
		})

		if spinner != nil {
			if segErr != nil {
				spinner.Fail("Segmentation failed")
			} else {
				spinner.Success("Segmentation completed")
			}
		}
	}

	switch effectiveMode {
	case output.ModeJSON:
		report := PipelineReport{}
		if prepRun != nil {
			prep := newRunReport(prepRun, prepSteps)
			report.Prep = &prep
		}
		if res != nil && res.Run != nil {
			seg := newSegmentReport(res)
			report.Segment = &seg
		}
		if err := r.JSON(report); err != nil && prepErr == nil && segErr == nil {
			segErr = err
		}
	case output.ModeMarkdown:
		if prepRun != nil {
			renderStepsMarkdown(r, "Prep Pipeline", prepRun, prepSteps)
			r.Println("")
		}
		if res != nil && res.Run != nil {
			renderSegmentMarkdown(r, res)
		} else if prepErr != nil {
			r.Println(output.FormatKeyValue("Segmentation", "skipped, prep failed"))
		}
	default:
		if prepRun != nil {
			r.Println("")
			r.Header(2, "Prep Steps")
			renderStepsText(r, prepRun, prepSteps)
		}
		if res != nil && res.Run != nil {
			renderSegmentText(r, res)
		} else if prepErr != nil {
			r.Println("")
			r.Muted("Segmentation skipped: prep failed")
		}
	}

	if prepErr != nil {
		return prepErr
	}
	return segErr
}
