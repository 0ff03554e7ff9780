package state

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store on a SQLite database.
type SQLiteStore struct {
	db     *sql.DB
	path   string
	logger *slog.Logger
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore creates an unopened store. A nil logger discards logs.
func NewSQLiteStore(logger *slog.Logger) *SQLiteStore {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &SQLiteStore{logger: logger}
}

// Open opens the database at path, creating parent directories as needed.
// Use ":memory:" for an in-memory database.
func (s *SQLiteStore) Open(path string) error {
	dsn := path
	if path == ":memory:" {
		dsn = ":memory:?_pragma=foreign_keys(1)"
	} else {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return fmt.Errorf("failed to create state directory: %w", err)
			}
		}
		dsn = fmt.Sprintf("%s?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("failed to open state database: %w", err)
	}
	if path == ":memory:" {
		// A second pool connection would see a different empty database.
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping state database: %w", err)
	}

	s.db = db
	s.path = path
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Path returns the database path the store was opened with.
func (s *SQLiteStore) Path() string {
	return s.path
}

func generateID() string {
	return uuid.New().String()
}

// --- Run operations ---

// CreateRun inserts a new running run of the given kind.
func (s *SQLiteStore) CreateRun(kind RunKind) (*Run, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	run := &Run{
		ID:        generateID(),
		Kind:      kind,
		Status:    RunStatusRunning,
		StartedAt: time.Now().UTC(),
	}

	s.logger.Debug("creating run", "id", run.ID, "kind", kind)

	_, err := s.db.Exec(
		`INSERT INTO runs (id, kind, status, started_at) VALUES (?, ?, ?, ?)`,
		run.ID, string(run.Kind), string(run.Status), run.StartedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create run: %w", err)
	}
	return run, nil
}

// CompleteRun marks a run as finished with the given status.
func (s *SQLiteStore) CompleteRun(id string, status RunStatus, errMsg string) error {
	if s.db == nil {
		return fmt.Errorf("database not opened")
	}

	var errorPtr *string
	if errMsg != "" {
		errorPtr = &errMsg
	}

	result, err := s.db.Exec(
		`UPDATE runs SET status = ?, completed_at = ?, error = ? WHERE id = ?`,
		string(status), time.Now().UTC(), errorPtr, id,
	)
	if err != nil {
		return fmt.Errorf("failed to complete run: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("run not found: %s", id)
	}
	return nil
}

// GetRun retrieves a run by ID.
func (s *SQLiteStore) GetRun(id string) (*Run, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	row := s.db.QueryRow(
		`SELECT id, kind, status, started_at, completed_at, error FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return run, nil
}

// GetLatestRun retrieves the most recent run of a kind, or nil when none exist.
func (s *SQLiteStore) GetLatestRun(kind RunKind) (*Run, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	row := s.db.QueryRow(
		`SELECT id, kind, status, started_at, completed_at, error
		 FROM runs WHERE kind = ? ORDER BY started_at DESC LIMIT 1`, string(kind))
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest run: %w", err)
	}
	return run, nil
}

// ListRuns retrieves the most recent runs, newest first, up to limit.
func (s *SQLiteStore) ListRuns(limit int) ([]*Run, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.Query(
		`SELECT id, kind, status, started_at, completed_at, error
		 FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*Run, error) {
	run := &Run{}
	var kind, status string
	var completedAt sql.NullTime
	var errMsg sql.NullString

	if err := row.Scan(&run.ID, &kind, &status, &run.StartedAt, &completedAt, &errMsg); err != nil {
		return nil, err
	}
	run.Kind = RunKind(kind)
	run.Status = RunStatus(status)
	if completedAt.Valid {
		run.CompletedAt = &completedAt.Time
	}
	if errMsg.Valid {
		run.Error = errMsg.String
	}
	return run, nil
}

// --- Step operations ---

// RecordStep inserts a running step for the given run.
func (s *SQLiteStore) RecordStep(runID, name string) (*StepRun, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	step := &StepRun{
		ID:        generateID(),
		RunID:     runID,
		Name:      name,
		Status:    StepStatusRunning,
		StartedAt: time.Now().UTC(),
	}

	_, err := s.db.Exec(
		`INSERT INTO step_runs (id, run_id, name, status, started_at) VALUES (?, ?, ?, ?, ?)`,
		step.ID, step.RunID, step.Name, string(step.Status), step.StartedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to record step %s: %w", name, err)
	}
	return step, nil
}

// UpdateStep finalizes a step with its outcome.
func (s *SQLiteStore) UpdateStep(id string, status StepStatus, rows int64, artifact, errMsg string, durationMS int64) error {
	if s.db == nil {
		return fmt.Errorf("database not opened")
	}

	var artifactPtr, errorPtr *string
	if artifact != "" {
		artifactPtr = &artifact
	}
	if errMsg != "" {
		errorPtr = &errMsg
	}

	result, err := s.db.Exec(
		`UPDATE step_runs SET status = ?, rows_out = ?, artifact = ?, error = ?, completed_at = ?, duration_ms = ?
		 WHERE id = ?`,
		string(status), rows, artifactPtr, errorPtr, time.Now().UTC(), durationMS, id,
	)
	if err != nil {
		return fmt.Errorf("failed to update step: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("step not found: %s", id)
	}
	return nil
}

// GetStepsForRun retrieves the steps of a run in insertion order.
func (s *SQLiteStore) GetStepsForRun(runID string) ([]*StepRun, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	rows, err := s.db.Query(
		`SELECT id, run_id, name, status, rows_out, artifact, error, started_at, completed_at, duration_ms
		 FROM step_runs WHERE run_id = ? ORDER BY started_at, rowid`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to get steps: %w", err)
	}
	defer rows.Close()

	var steps []*StepRun
	for rows.Next() {
		step := &StepRun{}
		var status string
		var artifact, errMsg sql.NullString
		var completedAt sql.NullTime
		err := rows.Scan(&step.ID, &step.RunID, &step.Name, &status, &step.Rows,
			&artifact, &errMsg, &step.StartedAt, &completedAt, &step.DurationMS)
		if err != nil {
			return nil, fmt.Errorf("failed to scan step: %w", err)
		}
		step.Status = StepStatus(status)
		if artifact.Valid {
			step.Artifact = artifact.String
		}
		if errMsg.Valid {
			step.Error = errMsg.String
		}
		if completedAt.Valid {
			step.CompletedAt = &completedAt.Time
		}
		steps = append(steps, step)
	}
	return steps, rows.Err()
}
