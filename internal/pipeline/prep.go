package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/driftwood-labs/salespipe/internal/state"
	"github.com/driftwood-labs/salespipe/internal/warehouse"
)

// Prep stages the raw source files into the warehouse, repairs TotalPrice,
// and builds and exports the analysis datasets.
//
// Steps run in dependency order. When a step fails its descendants are
// recorded as skipped, but independent branches keep running so one bad
// source file does not sink the whole run.
func (e *Engine) Prep(ctx context.Context) (*state.Run, []StepResult, error) {
	e.logger.Info("starting prep", "data_dir", e.cfg.DataDir)

	if err := e.ensureWarehouse(ctx); err != nil {
		return nil, nil, err
	}

	run, err := e.store.CreateRun(state.RunKindPrep)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create run: %w", err)
	}

	e.logger.Debug("created run", "run_id", run.ID)

	order, err := e.graph.Sort()
	if err != nil {
		_ = e.store.CompleteRun(run.ID, state.RunStatusFailed, fmt.Sprintf("dependency sort failed: %v", err))
		return run, nil, err
	}

	sources := make(map[string]Source, len(order))
	for _, src := range Sources() {
		sources[src.Name] = src
	}

	blocked := make(map[string]bool)
	results := make([]StepResult, 0, len(order))
	var stepErrs []error

	for _, name := range order {
		if parent, isBlocked := e.failedParent(name, blocked); isBlocked {
			blocked[name] = true
			results = append(results, e.skipStep(run.ID, name, fmt.Sprintf("skipped: upstream step %s failed", parent)))
			continue
		}

		var res StepResult
		if src, ok := sources[name]; ok {
			res = e.loadSourceStep(ctx, run.ID, src)
		} else if name == StagingTable {
			res = e.buildStagingStep(ctx, run.ID)
		} else if ds, ok := DatasetByName(name); ok {
			res = e.buildDatasetStep(ctx, run.ID, ds)
		} else {
			// Unreachable while BuildGraph and the step handlers agree.
			res = e.skipStep(run.ID, name, "skipped: no handler for step")
		}

		if res.Status == state.StepStatusFailed {
			blocked[name] = true
			stepErrs = append(stepErrs, fmt.Errorf("%s: %s", name, res.Error))
		}
		results = append(results, res)
	}

	if len(stepErrs) > 0 {
		e.logger.Info("prep failed", "run_id", run.ID, "failed_steps", len(stepErrs))
		_ = e.store.CompleteRun(run.ID, state.RunStatusFailed, fmt.Sprintf("%d step(s) failed", len(stepErrs)))
	} else {
		e.logger.Info("prep completed", "run_id", run.ID, "steps", len(results))
		_ = e.store.CompleteRun(run.ID, state.RunStatusCompleted, "")
	}

	run, _ = e.store.GetRun(run.ID)
	return run, results, errors.Join(stepErrs...)
}

// failedParent returns a direct parent of the step that failed or was itself
// blocked. Blocked status propagates step by step, so checking direct parents
// covers the whole ancestry.
func (e *Engine) failedParent(name string, blocked map[string]bool) (string, bool) {
	for _, parent := range e.graph.Parents(name) {
		if blocked[parent] {
			return parent, true
		}
	}
	return "", false
}

// loadSourceStep stages one raw CSV into the warehouse under its source name.
func (e *Engine) loadSourceStep(ctx context.Context, runID string, src Source) StepResult {
	step, err := e.store.RecordStep(runID, src.Name)
	if err != nil {
		return StepResult{Name: src.Name, Status: state.StepStatusFailed, Error: err.Error()}
	}
	start := time.Now()

	path := filepath.Join(e.cfg.DataDir, src.File)
	rows, err := e.wh.LoadCSV(ctx, src.Name, path, warehouse.CSVOptions{})
	if err != nil {
		e.logger.Debug("source load failed", "source", src.Name, "error", err)
		return e.finishStep(step, state.StepStatusFailed, 0, "", err.Error(), start)
	}

	e.logger.Debug("source loaded", "source", src.Name, "rows", rows)
	return e.finishStep(step, state.StepStatusSuccess, rows, "", "", start)
}

// buildStagingStep rebuilds stg_sales with repaired TotalPrice values.
func (e *Engine) buildStagingStep(ctx context.Context, runID string) StepResult {
	step, err := e.store.RecordStep(runID, StagingTable)
	if err != nil {
		return StepResult{Name: StagingTable, Status: state.StepStatusFailed, Error: err.Error()}
	}
	start := time.Now()

	rows, err := e.wh.CreateTableAs(ctx, StagingTable, stagingQuery)
	if err != nil {
		e.logger.Debug("staging build failed", "error", err)
		return e.finishStep(step, state.StepStatusFailed, 0, "", err.Error(), start)
	}

	e.logger.Debug("staging built", "table", StagingTable, "rows", rows)
	return e.finishStep(step, state.StepStatusSuccess, rows, "", "", start)
}

// buildDatasetStep materializes one dataset table and exports it to CSV.
func (e *Engine) buildDatasetStep(ctx context.Context, runID string, ds Dataset) StepResult {
	step, err := e.store.RecordStep(runID, ds.Name)
	if err != nil {
		return StepResult{Name: ds.Name, Status: state.StepStatusFailed, Error: err.Error()}
	}
	start := time.Now()

	rows, err := e.wh.CreateTableAs(ctx, ds.Name, ds.Query)
	if err != nil {
		e.logger.Debug("dataset build failed", "dataset", ds.Name, "error", err)
		return e.finishStep(step, state.StepStatusFailed, 0, "", err.Error(), start)
	}

	outPath := filepath.Join(e.cfg.CleanedDir, ds.OutputFile)
	if _, err := e.wh.ExportCSV(ctx, ds.Name, outPath); err != nil {
		e.logger.Debug("dataset export failed", "dataset", ds.Name, "error", err)
		return e.finishStep(step, state.StepStatusFailed, rows, "", err.Error(), start)
	}

	e.logger.Debug("dataset built", "dataset", ds.Name, "rows", rows, "file", outPath)
	return e.finishStep(step, state.StepStatusSuccess, rows, outPath, "", start)
}

// skipStep records a step that never ran because an ancestor failed.
func (e *Engine) skipStep(runID, name, reason string) StepResult {
	step, err := e.store.RecordStep(runID, name)
	if err != nil {
		return StepResult{Name: name, Status: state.StepStatusSkipped, Error: reason}
	}
	return e.finishStep(step, state.StepStatusSkipped, 0, "", reason, time.Now())
}
