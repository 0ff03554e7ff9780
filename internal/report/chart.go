// Package report renders segmentation results: the interactive 3D cluster
// chart and the HTTP server that exposes pipeline artifacts.
package report

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/driftwood-labs/salespipe/internal/rfm"
)

// ChartTitle is the display title of the cluster chart.
const ChartTitle = "Customer Segmentation (RFM Analysis)"

// RenderClusterChart writes an interactive 3D scatter of the clustered
// customers as a standalone HTML page. Axes carry the raw feature values,
// one series per cluster.
func RenderClusterChart(w io.Writer, records []rfm.Record, k int) error {
	if k < 1 {
		return fmt.Errorf("cluster count must be positive, got %d", k)
	}

	scatter := charts.NewScatter3D()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			PageTitle: ChartTitle,
			Width:     "1200px",
			Height:    "800px",
		}),
		charts.WithTitleOpts(opts.Title{Title: ChartTitle}),
		charts.WithXAxis3DOpts(opts.XAxis3D{Name: "Recency", Show: opts.Bool(true)}),
		charts.WithYAxis3DOpts(opts.YAxis3D{Name: "Frequency", Show: opts.Bool(true)}),
		charts.WithZAxis3DOpts(opts.ZAxis3D{Name: "Monetary", Show: opts.Bool(true)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
	)

	series := make([][]opts.Chart3DData, k)
	for _, r := range records {
		if r.Cluster < 0 || r.Cluster >= k {
			return fmt.Errorf("customer %d has cluster %d outside [0, %d)", r.CustomerID, r.Cluster, k)
		}
		series[r.Cluster] = append(series[r.Cluster], opts.Chart3DData{
			Name:  fmt.Sprintf("customer %d", r.CustomerID),
			Value: []interface{}{r.Recency, r.Frequency, r.Monetary},
		})
	}
	for cluster, data := range series {
		scatter.AddSeries(fmt.Sprintf("Cluster %d", cluster), data)
	}

	if err := scatter.Render(w); err != nil {
		return fmt.Errorf("failed to render cluster chart: %w", err)
	}
	return nil
}

// WriteClusterChart renders the chart to an HTML file, creating parent
// directories as needed.
func WriteClusterChart(path string, records []rfm.Record, k int) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}

	if err := RenderClusterChart(f, records, k); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", path, err)
	}
	return nil
}
