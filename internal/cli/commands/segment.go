package commands

import (
	"fmt"
	"path/filepath"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/driftwood-labs/salespipe/internal/cli/output"
	"github.com/driftwood-labs/salespipe/internal/pipeline"
	"github.com/driftwood-labs/salespipe/internal/rfm"
)

// SegmentOptions holds options for the segment command.
type SegmentOptions struct {
	Clusters int
	Seed     int64
	NoChart  bool
	Open     bool
}

// ClusterSummary describes one customer segment in JSON output.
type ClusterSummary struct {
	Cluster       int     `json:"cluster"`
	Customers     int     `json:"customers"`
	MeanRecency   float64 `json:"mean_recency"`
	MeanFrequency float64 `json:"mean_frequency"`
	MeanMonetary  float64 `json:"mean_monetary"`
}

// SegmentReport is the JSON shape of a segmentation run.
type SegmentReport struct {
	Run      RunSummary       `json:"run"`
	Steps    []StepReport     `json:"steps"`
	Clusters []ClusterSummary `json:"clusters,omitempty"`
	Dropped  int              `json:"dropped_customers"`
	CSV      string           `json:"csv,omitempty"`
	Chart    string           `json:"chart,omitempty"`
}

// NewSegmentCommand creates the segment command.
func NewSegmentCommand() *cobra.Command {
	opts := &SegmentOptions{}

	cmd := &cobra.Command{
		Use:   "segment",
		Short: "Cluster customers into RFM segments",
		Long: `Compute recency, frequency, and monetary metrics per customer from
the cleaned RFM dataset, cluster customers with k-means, and write the
segmented CSV plus an interactive cluster chart.

Run prep first; segment reads the cleaned_rfm_analysis.csv it produces.

Output adapts to environment:
  - Terminal: Styled, colored output
  - Piped/Scripted: Markdown format (agent-friendly)

Use --output to override: auto, text, markdown, json`,
		Example: `  # Segment with defaults (4 clusters, seed 42)
  salespipe segment

  # Use six segments
  salespipe segment --clusters 6

  # Skip the chart, e.g. in CI
  salespipe segment --no-chart

  # Open the cluster chart when done
  salespipe segment --open`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSegment(cmd, opts)
		},
	}

	cmd.Flags().IntVar(&opts.Clusters, "clusters", 0, "Number of customer segments (default from config)")
	cmd.Flags().Int64Var(&opts.Seed, "seed", 0, "Random seed for clustering (default from config)")
	cmd.Flags().BoolVar(&opts.NoChart, "no-chart", false, "Skip writing the cluster chart")
	cmd.Flags().BoolVar(&opts.Open, "open", false, "Open the cluster chart in a browser when done")

	return cmd
}

func runSegment(cmd *cobra.Command, opts *SegmentOptions) error {
	cmdCtx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

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

	var spinner *output.Spinner
	if effectiveMode == output.ModeText {
		spinner = r.NewSpinner("Segmenting customers...")
		spinner.Start()
	}

	res, runErr := cmdCtx.Engine.Segment(cmd.Context(), pipeline.SegmentOptions{
		Clusters: clusters,
		Seed:     seed,
		NoChart:  opts.NoChart,
	})

	if spinner != nil {
		if runErr != nil {
			spinner.Fail("Segmentation failed")
		} else {
			spinner.Success("Segmentation completed")
		}
	}

	if res == nil || res.Run == nil {
		return runErr
	}

	switch effectiveMode {
	case output.ModeJSON:
		if err := r.JSON(newSegmentReport(res)); err != nil && runErr == nil {
			runErr = err
		}
	case output.ModeMarkdown:
		renderSegmentMarkdown(r, res)
	default:
		renderSegmentText(r, res)
	}

	if runErr == nil && opts.Open && res.ChartPath != "" {
		path, err := filepath.Abs(res.ChartPath)
		if err == nil {
			openBrowser(path)
		}
	}

	return runErr
}

func newSegmentReport(res *pipeline.SegmentResult) SegmentReport {
	report := SegmentReport{
		Run:     newRunSummary(res.Run),
		Steps:   newStepReports(res.Steps),
		Dropped: res.Dropped,
		CSV:     res.CSVPath,
		Chart:   res.ChartPath,
	}
	for _, s := range res.Summaries {
		report.Clusters = append(report.Clusters, ClusterSummary{
			Cluster:       s.Cluster,
			Customers:     s.Customers,
			MeanRecency:   s.MeanRecency,
			MeanFrequency: s.MeanFrequency,
			MeanMonetary:  s.MeanMonetary,
		})
	}
	return report
}

// renderSegmentText outputs the segmentation run in styled text format.
func renderSegmentText(r *output.Renderer, res *pipeline.SegmentResult) {
	r.Println("")
	r.Header(2, "Segmentation Steps")
	renderStepsText(r, res.Run, res.Steps)

	if res.Dropped > 0 {
		r.Warning(fmt.Sprintf("%d customer(s) dropped for missing purchase dates", res.Dropped))
	}

	if len(res.Summaries) > 0 {
		r.Println("")
		r.Header(2, "Segments")
		renderClusterTable(r, res.Summaries)
	}

	if res.CSVPath != "" || res.ChartPath != "" {
		r.Println("")
		if res.CSVPath != "" {
			r.Muted("Segments: " + res.CSVPath)
		}
		if res.ChartPath != "" {
			r.Muted("Chart: " + res.ChartPath)
		}
	}
}

func renderClusterTable(r *output.Renderer, summaries []rfm.Summary) {
	t := table.NewWriter()
	t.SetOutputMirror(r.Writer())
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Cluster", "Customers", "Mean Recency", "Mean Frequency", "Mean Monetary"})
	for _, s := range summaries {
		t.AppendRow(table.Row{
			s.Cluster,
			s.Customers,
			fmt.Sprintf("%.1f", s.MeanRecency),
			fmt.Sprintf("%.1f", s.MeanFrequency),
			fmt.Sprintf("%.2f", s.MeanMonetary),
		})
	}
	t.Render()
}

// renderSegmentMarkdown outputs the segmentation run in markdown format.
func renderSegmentMarkdown(r *output.Renderer, res *pipeline.SegmentResult) {
	renderStepsMarkdown(r, "Segmentation", res.Run, res.Steps)

	if res.Dropped > 0 {
		r.Println("")
		r.Println(output.FormatKeyValue("Dropped Customers", fmt.Sprintf("%d", res.Dropped)))
	}

	if len(res.Summaries) > 0 {
		r.Println("")
		r.Println(output.FormatHeader(2, "Segments"))
		r.Println("")
		r.Println("| Cluster | Customers | Mean Recency | Mean Frequency | Mean Monetary |")
		r.Println("|--------:|----------:|-------------:|---------------:|--------------:|")
		for _, s := range res.Summaries {
			r.Printf("| %d | %d | %.1f | %.1f | %.2f |\n",
				s.Cluster, s.Customers, s.MeanRecency, s.MeanFrequency, s.MeanMonetary)
		}
	}

	if res.CSVPath != "" {
		r.Println("")
		r.Println(output.FormatKeyValue("Segments", res.CSVPath))
	}
	if res.ChartPath != "" {
		r.Println(output.FormatKeyValue("Chart", res.ChartPath))
	}
}
