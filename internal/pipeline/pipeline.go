// Package pipeline orchestrates the two pipeline stages: staging raw sales
// CSVs into the warehouse and building the cleaned datasets (prep), and
// computing clustered RFM segments from the prepared data (segment).
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/driftwood-labs/salespipe/internal/dag"
	"github.com/driftwood-labs/salespipe/internal/state"
	"github.com/driftwood-labs/salespipe/internal/warehouse"
)

// Engine runs pipeline stages and records them in the state store.
type Engine struct {
	// Warehouse connection (lazy initialized)
	wh          *warehouse.DB
	whConnected bool
	dbMu        sync.Mutex

	cfg    Config
	store  state.Store
	graph  *dag.Graph
	logger *slog.Logger
}

// Config holds engine configuration.
type Config struct {
	// DataDir holds the raw source CSVs.
	DataDir string
	// CleanedDir receives the prep stage outputs.
	CleanedDir string
	// ProcessedDir receives the segment stage outputs.
	ProcessedDir string
	// DatabasePath is the DuckDB database path (empty for in-memory).
	DatabasePath string
	// StatePath is the run-history SQLite database path.
	StatePath string
	// WarehouseParams are session settings applied on connect.
	WarehouseParams warehouse.Params
	// Logger is the structured logger (optional, uses discard if nil).
	Logger *slog.Logger
}

// New creates an engine with a lazy warehouse connection. The state store
// is opened and migrated immediately.
func New(cfg Config) (*Engine, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	logger.Debug("initializing engine", "data_dir", cfg.DataDir, "state_path", cfg.StatePath)

	store := state.NewSQLiteStore(logger)
	if err := store.Open(cfg.StatePath); err != nil {
		return nil, fmt.Errorf("failed to open state store: %w", err)
	}
	if err := store.Migrate(); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to migrate state store: %w", err)
	}

	graph, err := BuildGraph()
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to build step graph: %w", err)
	}

	return &Engine{
		cfg:    cfg,
		store:  store,
		graph:  graph,
		logger: logger,
	}, nil
}

// ensureWarehouse lazily opens the warehouse connection.
func (e *Engine) ensureWarehouse(ctx context.Context) error {
	e.dbMu.Lock()
	defer e.dbMu.Unlock()

	if e.whConnected {
		return nil
	}

	e.logger.Debug("connecting to warehouse", "database", e.cfg.DatabasePath)

	wh, err := warehouse.Open(ctx, e.cfg.DatabasePath, e.logger, e.cfg.WarehouseParams)
	if err != nil {
		return fmt.Errorf("failed to connect to warehouse: %w", err)
	}

	e.wh = wh
	e.whConnected = true
	return nil
}

// Close releases all resources.
func (e *Engine) Close() error {
	e.logger.Debug("closing engine")

	var errs []error
	if e.wh != nil {
		if err := e.wh.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if e.store != nil {
		if err := e.store.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("errors closing engine: %v", errs)
	}
	return nil
}

// Store returns the state store.
func (e *Engine) Store() state.Store {
	return e.store
}

// Graph returns the step dependency graph.
func (e *Engine) Graph() *dag.Graph {
	return e.graph
}

// StepResult summarizes one executed step for terminal reporting.
type StepResult struct {
	Name     string
	Status   state.StepStatus
	Rows     int64
	Artifact string
	Error    string
	Duration time.Duration
}

// finishStep persists a step outcome and returns it as a StepResult.
func (e *Engine) finishStep(step *state.StepRun, status state.StepStatus, rows int64, artifact, errMsg string, start time.Time) StepResult {
	duration := time.Since(start)
	if err := e.store.UpdateStep(step.ID, status, rows, artifact, errMsg, duration.Milliseconds()); err != nil {
		e.logger.Error("failed to update step", "step", step.Name, "error", err)
	}
	return StepResult{
		Name:     step.Name,
		Status:   status,
		Rows:     rows,
		Artifact: artifact,
		Error:    errMsg,
		Duration: duration,
	}
}
