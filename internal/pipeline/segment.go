package pipeline

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/driftwood-labs/salespipe/internal/report"
	"github.com/driftwood-labs/salespipe/internal/rfm"
	"github.com/driftwood-labs/salespipe/internal/state"
	"github.com/driftwood-labs/salespipe/internal/warehouse"
)

const (
	// RFMSourceTable holds the prep output the segmentation stage reads.
	RFMSourceTable = "rfm_source"
	// SegmentedFile is the segmented customer CSV under the processed directory.
	SegmentedFile = "rfm_segmented_customers.csv"
	// ChartFile is the cluster scatter chart under the processed directory.
	ChartFile = "rfm_clusters.html"
)

// rfmQuery aggregates one row per customer from the staged RFM dataset.
// Recency counts calendar days between the customer's last purchase date and
// the newest purchase date in the dataset. TRY_CAST keeps customers with
// unparseable dates in the result with a NULL recency instead of failing the
// query; the scan loop drops them.
const rfmQuery = `
WITH ref AS (
    SELECT MAX(TRY_CAST(SalesDate AS DATE)) AS ref_date FROM rfm_source
)
SELECT
    s.CustomerID,
    date_diff('day', MAX(TRY_CAST(s.SalesDate AS DATE)), ref.ref_date) AS recency,
    COUNT(*) AS frequency,
    COALESCE(SUM(s.TotalPrice), 0) AS monetary
FROM rfm_source AS s
CROSS JOIN ref
WHERE s.CustomerID IS NOT NULL
GROUP BY s.CustomerID, ref.ref_date
ORDER BY s.CustomerID`

// SegmentOptions control the segmentation stage.
type SegmentOptions struct {
	// Clusters is the number of segments to partition customers into.
	Clusters int
	// Seed pins the clustering randomness so repeat runs agree.
	Seed int64
	// NoChart skips rendering the scatter chart.
	NoChart bool
}

// SegmentResult is the output of a segmentation run.
type SegmentResult struct {
	Run       *state.Run
	Steps     []StepResult
	Records   []rfm.Record
	Summaries []rfm.Summary
	// Dropped counts customers excluded because no purchase date parsed.
	Dropped int
	// CSVPath and ChartPath are set once the matching step succeeds.
	CSVPath   string
	ChartPath string
}

// Segment runs the segmentation stage: load the prepared RFM dataset, compute
// per-customer metrics, cluster, and write the segmented CSV and chart.
//
// Steps run strictly in order. When one fails the remaining steps are
// recorded as skipped, since each consumes the previous step's output.
func (e *Engine) Segment(ctx context.Context, opts SegmentOptions) (*SegmentResult, error) {
	e.logger.Info("starting segmentation", "clusters", opts.Clusters, "seed", opts.Seed)

	if err := e.ensureWarehouse(ctx); err != nil {
		return nil, err
	}

	run, err := e.store.CreateRun(state.RunKindSegment)
	if err != nil {
		return nil, fmt.Errorf("failed to create run: %w", err)
	}

	e.logger.Debug("created run", "run_id", run.ID)

	res := &SegmentResult{Run: run}

	type segmentStep struct {
		name string
		run  func(context.Context) (rows int64, artifact string, err error)
	}

	steps := []segmentStep{
		{"load", func(ctx context.Context) (int64, string, error) {
			rows, err := e.loadRFMSource(ctx)
			return rows, "", err
		}},
		{"rfm", func(ctx context.Context) (int64, string, error) {
			records, dropped, err := e.computeRFM(ctx)
			if err != nil {
				return 0, "", err
			}
			res.Records = records
			res.Dropped = dropped
			return int64(len(records)), "", nil
		}},
		{"cluster", func(context.Context) (int64, string, error) {
			if err := rfm.Cluster(res.Records, opts.Clusters, opts.Seed); err != nil {
				return 0, "", err
			}
			res.Summaries = rfm.Summaries(res.Records, opts.Clusters)
			return int64(len(res.Records)), "", nil
		}},
		{"export", func(context.Context) (int64, string, error) {
			path := filepath.Join(e.cfg.ProcessedDir, SegmentedFile)
			if err := rfm.WriteFile(path, res.Records); err != nil {
				return 0, "", err
			}
			res.CSVPath = path
			return int64(len(res.Records)), path, nil
		}},
	}
	if !opts.NoChart {
		steps = append(steps, segmentStep{"chart", func(context.Context) (int64, string, error) {
			path := filepath.Join(e.cfg.ProcessedDir, ChartFile)
			if err := report.WriteClusterChart(path, res.Records, opts.Clusters); err != nil {
				return 0, "", err
			}
			res.ChartPath = path
			return int64(len(res.Records)), path, nil
		}})
	}

	var failedStep string
	var runErr error
	for _, st := range steps {
		if runErr != nil {
			res.Steps = append(res.Steps, e.skipStep(run.ID, st.name, fmt.Sprintf("skipped: upstream step %s failed", failedStep)))
			continue
		}

		step, err := e.store.RecordStep(run.ID, st.name)
		if err != nil {
			res.Steps = append(res.Steps, StepResult{Name: st.name, Status: state.StepStatusFailed, Error: err.Error()})
			failedStep = st.name
			runErr = fmt.Errorf("%s: failed to record step: %w", st.name, err)
			continue
		}

		start := time.Now()
		rows, artifact, err := st.run(ctx)
		if err != nil {
			e.logger.Debug("segment step failed", "step", st.name, "error", err)
			res.Steps = append(res.Steps, e.finishStep(step, state.StepStatusFailed, 0, "", err.Error(), start))
			failedStep = st.name
			runErr = fmt.Errorf("%s: %w", st.name, err)
			continue
		}

		e.logger.Debug("segment step finished", "step", st.name, "rows", rows)
		res.Steps = append(res.Steps, e.finishStep(step, state.StepStatusSuccess, rows, artifact, "", start))
	}

	if runErr != nil {
		e.logger.Info("segmentation failed", "run_id", run.ID, "error", runErr.Error())
		_ = e.store.CompleteRun(run.ID, state.RunStatusFailed, runErr.Error())
	} else {
		e.logger.Info("segmentation completed", "run_id", run.ID, "customers", len(res.Records))
		_ = e.store.CompleteRun(run.ID, state.RunStatusCompleted, "")
	}

	res.Run, _ = e.store.GetRun(run.ID)
	return res, runErr
}

// loadRFMSource stages the prep-built RFM dataset for aggregation.
func (e *Engine) loadRFMSource(ctx context.Context) (int64, error) {
	ds, ok := DatasetByName("rfm_analysis")
	if !ok {
		return 0, fmt.Errorf("rfm_analysis dataset not registered")
	}

	path := filepath.Join(e.cfg.CleanedDir, ds.OutputFile)
	if _, err := os.Stat(path); err != nil {
		return 0, fmt.Errorf("%s not found, run prep first", ds.OutputFile)
	}

	return e.wh.LoadCSV(ctx, RFMSourceTable, path, warehouse.CSVOptions{})
}

// computeRFM aggregates per-customer metrics and reports how many customers
// were dropped for having no parseable purchase date.
func (e *Engine) computeRFM(ctx context.Context) ([]rfm.Record, int, error) {
	rows, err := e.wh.Query(ctx, rfmQuery)
	if err != nil {
		return nil, 0, err
	}
	defer func() { _ = rows.Close() }()

	var records []rfm.Record
	dropped := 0
	for rows.Next() {
		var (
			customerID int64
			recency    sql.NullInt64
			frequency  int64
			monetary   float64
		)
		if err := rows.Scan(&customerID, &recency, &frequency, &monetary); err != nil {
			return nil, 0, fmt.Errorf("failed to scan customer metrics: %w", err)
		}
		if !recency.Valid {
			dropped++
			continue
		}
		records = append(records, rfm.Record{
			CustomerID: customerID,
			Recency:    int(recency.Int64),
			Frequency:  frequency,
			Monetary:   monetary,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to read customer metrics: %w", err)
	}

	if dropped > 0 {
		e.logger.Warn("dropped customers without purchase dates", "count", dropped)
	}
	return records, dropped, nil
}
