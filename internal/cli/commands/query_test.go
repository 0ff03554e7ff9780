package commands

import (
	"bytes"
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driftwood-labs/salespipe/internal/state"

	// sqlite driver for test database.
	_ "modernc.org/sqlite"
)

// setupTestDB creates a state database with the real schema and some history.
func setupTestDB(t *testing.T, path string) {
	t.Helper()

	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	require.NoError(t, state.MigrateWithDB(db))

	ctx := context.Background()
	_, err = db.ExecContext(ctx, `
		INSERT INTO runs (id, kind, status, started_at, completed_at) VALUES
		('run-1', 'prep', 'success', '2026-01-10 10:00:00', '2026-01-10 10:00:12'),
		('run-2', 'segment', 'failed', '2026-01-11 09:30:00', '2026-01-11 09:30:02');

		INSERT INTO step_runs (id, run_id, name, status, rows_out, artifact, started_at, completed_at, duration_ms) VALUES
		('step-1', 'run-1', 'stg_sales', 'success', 6715, NULL,
			'2026-01-10 10:00:01', '2026-01-10 10:00:05', 4210),
		('step-2', 'run-1', 'rfm_analysis', 'success', 4372, 'data/cleaned_data/cleaned_rfm_analysis.csv',
			'2026-01-10 10:00:05', '2026-01-10 10:00:08', 2804),
		('step-3', 'run-2', 'cluster', 'failed', 0, NULL,
			'2026-01-11 09:30:01', '2026-01-11 09:30:02', 911);
	`)
	require.NoError(t, err)
}

func TestQueryCommand_Tables(t *testing.T) {
	tmpDir := t.TempDir()
	statePath := filepath.Join(tmpDir, "state.db")
	setupTestDB(t, statePath)

	buf := new(bytes.Buffer)
	ctx := context.Background()

	db, err := sql.Open("sqlite", statePath+"?mode=ro")
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	err = listTablesFromDB(ctx, buf, db, "table", false)
	require.NoError(t, err)

	output := buf.String()
	assert.Contains(t, output, "runs")
	assert.Contains(t, output, "step_runs")
	assert.Contains(t, output, "v_runs")
	assert.Contains(t, output, "v_steps")
	// goose bookkeeping is internal
	assert.NotContains(t, output, "goose_db_version")
}

func TestQueryCommand_ViewsOnly(t *testing.T) {
	tmpDir := t.TempDir()
	statePath := filepath.Join(tmpDir, "state.db")
	setupTestDB(t, statePath)

	buf := new(bytes.Buffer)
	ctx := context.Background()

	db, err := sql.Open("sqlite", statePath+"?mode=ro")
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	err = listTablesFromDB(ctx, buf, db, "table", true)
	require.NoError(t, err)

	output := buf.String()
	assert.Contains(t, output, "v_runs")
	assert.Contains(t, output, "v_steps")
	// Should not contain the base tables when viewing only views
	assert.NotContains(t, output, "step_runs")
}

func TestQueryCommand_Schema(t *testing.T) {
	tmpDir := t.TempDir()
	statePath := filepath.Join(tmpDir, "state.db")
	setupTestDB(t, statePath)

	buf := new(bytes.Buffer)
	ctx := context.Background()

	db, err := sql.Open("sqlite", statePath+"?mode=ro")
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	err = showSchemaFromDB(ctx, buf, db, "step_runs", "table")
	require.NoError(t, err)

	output := buf.String()
	assert.Contains(t, output, "Table: step_runs")
	assert.Contains(t, output, "run_id")
	assert.Contains(t, output, "rows_out")
	assert.Contains(t, output, "duration_ms")
}

func TestQueryCommand_SchemaNotFound(t *testing.T) {
	tmpDir := t.TempDir()
	statePath := filepath.Join(tmpDir, "state.db")
	setupTestDB(t, statePath)

	buf := new(bytes.Buffer)
	ctx := context.Background()

	db, err := sql.Open("sqlite", statePath+"?mode=ro")
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	err = showSchemaFromDB(ctx, buf, db, "nonexistent_table", "table")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestQueryCommand_DirectSQL(t *testing.T) {
	tmpDir := t.TempDir()
	statePath := filepath.Join(tmpDir, "state.db")
	setupTestDB(t, statePath)

	ctx := context.Background()
	db, err := sql.Open("sqlite", statePath+"?mode=ro")
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	rows, err := db.QueryContext(ctx, "SELECT name, rows_out FROM step_runs WHERE run_id = 'run-1' ORDER BY name")
	require.NoError(t, err)
	defer func() { _ = rows.Close() }()

	buf := new(bytes.Buffer)
	err = renderResults(buf, rows, "table")
	require.NoError(t, err)

	output := buf.String()
	assert.Contains(t, output, "rfm_analysis")
	assert.Contains(t, output, "stg_sales")
	assert.Contains(t, output, "(2 rows)")
}

func TestQueryCommand_JSONFormat(t *testing.T) {
	tmpDir := t.TempDir()
	statePath := filepath.Join(tmpDir, "state.db")
	setupTestDB(t, statePath)

	ctx := context.Background()
	db, err := sql.Open("sqlite", statePath+"?mode=ro")
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	rows, err := db.QueryContext(ctx, "SELECT name, status FROM step_runs ORDER BY name")
	require.NoError(t, err)
	defer func() { _ = rows.Close() }()

	buf := new(bytes.Buffer)
	err = renderResults(buf, rows, "json")
	require.NoError(t, err)

	output := buf.String()
	assert.Contains(t, output, `"name"`)
	assert.Contains(t, output, `"status"`)
	assert.Contains(t, output, `"rfm_analysis"`)
}

func TestQueryCommand_CSVFormat(t *testing.T) {
	tmpDir := t.TempDir()
	statePath := filepath.Join(tmpDir, "state.db")
	setupTestDB(t, statePath)

	ctx := context.Background()
	db, err := sql.Open("sqlite", statePath+"?mode=ro")
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	rows, err := db.QueryContext(ctx, "SELECT name, rows_out FROM step_runs WHERE run_id = 'run-1' ORDER BY name")
	require.NoError(t, err)
	defer func() { _ = rows.Close() }()

	buf := new(bytes.Buffer)
	err = renderResults(buf, rows, "csv")
	require.NoError(t, err)

	output := buf.String()
	lines := strings.Split(strings.TrimSpace(output), "\n")
	require.Len(t, lines, 3) // header + 2 rows

	assert.Equal(t, "name,rows_out", lines[0])
	assert.Contains(t, output, "rfm_analysis,4372")
}

func TestQueryCommand_MarkdownFormat(t *testing.T) {
	tmpDir := t.TempDir()
	statePath := filepath.Join(tmpDir, "state.db")
	setupTestDB(t, statePath)

	ctx := context.Background()
	db, err := sql.Open("sqlite", statePath+"?mode=ro")
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	rows, err := db.QueryContext(ctx, "SELECT name, rows_out FROM step_runs WHERE run_id = 'run-1' ORDER BY name")
	require.NoError(t, err)
	defer func() { _ = rows.Close() }()

	buf := new(bytes.Buffer)
	err = renderResults(buf, rows, "md")
	require.NoError(t, err)

	output := buf.String()
	assert.Contains(t, output, "| name | rows_out |")
	assert.Contains(t, output, "| --- | --- |")
	assert.Contains(t, output, "| rfm_analysis | 4372 |")
}

func TestQueryCommand_EmptyResults(t *testing.T) {
	tmpDir := t.TempDir()
	statePath := filepath.Join(tmpDir, "state.db")
	setupTestDB(t, statePath)

	ctx := context.Background()
	db, err := sql.Open("sqlite", statePath+"?mode=ro")
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	rows, err := db.QueryContext(ctx, "SELECT * FROM runs WHERE 1=0")
	require.NoError(t, err)
	defer func() { _ = rows.Close() }()

	buf := new(bytes.Buffer)
	err = renderResults(buf, rows, "table")
	require.NoError(t, err)

	output := buf.String()
	assert.Contains(t, output, "(0 rows)")
}

func TestQueryCommand_RunsView(t *testing.T) {
	tmpDir := t.TempDir()
	statePath := filepath.Join(tmpDir, "state.db")
	setupTestDB(t, statePath)

	ctx := context.Background()
	db, err := sql.Open("sqlite", statePath+"?mode=ro")
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	rows, err := db.QueryContext(ctx, "SELECT id, kind, steps, succeeded, failed FROM v_runs ORDER BY id")
	require.NoError(t, err)
	defer func() { _ = rows.Close() }()

	buf := new(bytes.Buffer)
	err = renderResults(buf, rows, "csv")
	require.NoError(t, err)

	output := buf.String()
	assert.Contains(t, output, "run-1,prep,2,2,0")
	assert.Contains(t, output, "run-2,segment,1,0,1")
}

func TestQueryCommand_SchemaJSON(t *testing.T) {
	tmpDir := t.TempDir()
	statePath := filepath.Join(tmpDir, "state.db")
	setupTestDB(t, statePath)

	buf := new(bytes.Buffer)
	ctx := context.Background()

	db, err := sql.Open("sqlite", statePath+"?mode=ro")
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	err = showSchemaFromDB(ctx, buf, db, "runs", "json")
	require.NoError(t, err)

	output := buf.String()
	assert.Contains(t, output, `"name": "runs"`)
	assert.Contains(t, output, `"type": "table"`)
	assert.Contains(t, output, `"columns"`)
}

func TestQueryCommand_ViewSchema(t *testing.T) {
	tmpDir := t.TempDir()
	statePath := filepath.Join(tmpDir, "state.db")
	setupTestDB(t, statePath)

	buf := new(bytes.Buffer)
	ctx := context.Background()

	db, err := sql.Open("sqlite", statePath+"?mode=ro")
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	err = showSchemaFromDB(ctx, buf, db, "v_runs", "table")
	require.NoError(t, err)

	output := buf.String()
	assert.Contains(t, output, "View: v_runs")
}

func TestNewQueryCommand(t *testing.T) {
	cmd := NewQueryCommand()
	assert.Equal(t, "query", cmd.Use[:5])
	assert.NotNil(t, cmd.RunE)

	// Check subcommands
	subCmds := cmd.Commands()
	var names []string
	for _, c := range subCmds {
		names = append(names, c.Name())
	}
	assert.Contains(t, names, "tables")
	assert.Contains(t, names, "views")
	assert.Contains(t, names, "schema")
}

func TestQueryCommand_NoDB(t *testing.T) {
	tmpDir := t.TempDir()
	statePath := filepath.Join(tmpDir, "nonexistent", "state.db")

	cmd := &cobra.Command{}
	cmd.SetOut(new(bytes.Buffer))
	cmd.SetErr(new(bytes.Buffer))

	// Verify file doesn't exist check works
	_, err := os.Stat(statePath)
	assert.True(t, os.IsNotExist(err))
}

func TestFormatValue(t *testing.T) {
	tests := []struct {
		input    any
		expected string
	}{
		{nil, "NULL"},
		{"hello", "hello"},
		{42, "42"},
		{3.14, "3.14"},
		{true, "true"},
	}

	for _, tt := range tests {
		result := formatValue(tt.input)
		assert.Equal(t, tt.expected, result)
	}
}

func TestEscapeCSV(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"simple", "simple"},
		{"with,comma", `"with,comma"`},
		{`with"quote`, `"with""quote"`},
		{"with\nnewline", `"with
newline"`},
		{`complex,"values"`, `"complex,""values"""`},
	}

	for _, tt := range tests {
		result := escapeCSV(tt.input)
		assert.Equal(t, tt.expected, result)
	}
}
