// Package state tracks pipeline run history in a SQLite database.
// Every prep or segment execution is recorded as a run with per-step
// status, row counts, and artifact paths.
package state

import "time"

// RunKind identifies which pipeline stage a run executed.
type RunKind string

const (
	RunKindPrep    RunKind = "prep"
	RunKindSegment RunKind = "segment"
)

// RunStatus is the lifecycle state of a run.
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// StepStatus is the outcome of a single step within a run.
type StepStatus string

const (
	StepStatusRunning StepStatus = "running"
	StepStatusSuccess StepStatus = "success"
	StepStatusFailed  StepStatus = "failed"
	StepStatusSkipped StepStatus = "skipped"
)

// Run is one execution of a pipeline stage.
type Run struct {
	ID          string
	Kind        RunKind
	Status      RunStatus
	StartedAt   time.Time
	CompletedAt *time.Time
	Error       string
}

// StepRun is one step (source load, dataset build, cluster, export)
// within a run.
type StepRun struct {
	ID          string
	RunID       string
	Name        string
	Status      StepStatus
	Rows        int64
	Artifact    string
	Error       string
	StartedAt   time.Time
	CompletedAt *time.Time
	DurationMS  int64
}

// Store persists runs and their steps.
type Store interface {
	CreateRun(kind RunKind) (*Run, error)
	CompleteRun(id string, status RunStatus, errMsg string) error
	GetRun(id string) (*Run, error)
	GetLatestRun(kind RunKind) (*Run, error)
	ListRuns(limit int) ([]*Run, error)

	RecordStep(runID, name string) (*StepRun, error)
	UpdateStep(id string, status StepStatus, rows int64, artifact, errMsg string, durationMS int64) error
	GetStepsForRun(runID string) ([]*StepRun, error)

	Close() error
}
