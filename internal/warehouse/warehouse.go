// Package warehouse wraps the embedded DuckDB database that the pipeline
// stages raw CSVs into and builds datasets from.
package warehouse

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/marcboeker/go-duckdb" // duckdb driver
)

// DB is a connection to a DuckDB database.
type DB struct {
	db     *sql.DB
	path   string
	logger *slog.Logger
}

// Open opens a DuckDB database at path. An empty path opens an in-memory
// database. A nil logger discards logs.
func Open(ctx context.Context, path string, logger *slog.Logger, params Params) (*DB, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open duckdb connection: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping duckdb: %w", err)
	}

	d := &DB{db: db, path: path, logger: logger}
	if err := d.applyParams(ctx, params); err != nil {
		_ = db.Close()
		return nil, err
	}
	return d, nil
}

// NewFromDB wraps an existing connection. Used by tests.
func NewFromDB(db *sql.DB, logger *slog.Logger) *DB {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &DB{db: db, logger: logger}
}

func (d *DB) applyParams(ctx context.Context, params Params) error {
	for _, ext := range params.Extensions {
		d.logger.Debug("loading duckdb extension", "extension", ext)
		if err := d.Exec(ctx, fmt.Sprintf("INSTALL %s; LOAD %s;", ext, ext)); err != nil {
			return fmt.Errorf("failed to load extension %s: %w", ext, err)
		}
	}
	for key, value := range params.Settings {
		d.logger.Debug("applying duckdb setting", "key", key, "value", value)
		if err := d.Exec(ctx, fmt.Sprintf("SET %s = '%s'", key, escapeSingleQuotes(value))); err != nil {
			return fmt.Errorf("failed to apply setting %s: %w", key, err)
		}
	}
	return nil
}

// Close closes the database connection.
func (d *DB) Close() error {
	if d.db != nil {
		return d.db.Close()
	}
	return nil
}

// Exec executes a SQL statement that doesn't return rows.
func (d *DB) Exec(ctx context.Context, sqlStr string) error {
	if d.db == nil {
		return fmt.Errorf("database connection not established")
	}
	if _, err := d.db.ExecContext(ctx, sqlStr); err != nil {
		return fmt.Errorf("failed to execute SQL: %w", err)
	}
	return nil
}

// Query executes a SQL statement that returns rows.
func (d *DB) Query(ctx context.Context, sqlStr string) (*sql.Rows, error) {
	if d.db == nil {
		return nil, fmt.Errorf("database connection not established")
	}
	//nolint:rowserrcheck // rows.Err() must be checked by caller after iteration completes
	rows, err := d.db.QueryContext(ctx, sqlStr)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	return rows, nil
}

// CreateTableAs drops and recreates a table from a SELECT statement,
// returning the resulting row count.
func (d *DB) CreateTableAs(ctx context.Context, table, query string) (int64, error) {
	if d.db == nil {
		return 0, fmt.Errorf("database connection not established")
	}

	if err := d.Exec(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %s", table)); err != nil {
		return 0, fmt.Errorf("failed to drop table %s: %w", table, err)
	}
	//nolint:gosec // Table names come from the fixed step registry, not user input
	if err := d.Exec(ctx, fmt.Sprintf("CREATE TABLE %s AS %s", table, query)); err != nil {
		return 0, fmt.Errorf("failed to create table %s: %w", table, err)
	}
	return d.rowCount(ctx, table)
}

// ExportCSV writes a table to a comma-delimited CSV file with a header row,
// creating parent directories as needed. Returns the exported row count.
func (d *DB) ExportCSV(ctx context.Context, table, path string) (int64, error) {
	if d.db == nil {
		return 0, fmt.Errorf("database connection not established")
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return 0, fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return 0, fmt.Errorf("failed to get absolute path: %w", err)
	}

	query := fmt.Sprintf("COPY %s TO '%s' (HEADER, DELIMITER ',')", table, escapeSingleQuotes(absPath))
	if err := d.Exec(ctx, query); err != nil {
		return 0, fmt.Errorf("failed to export %s: %w", table, err)
	}
	return d.rowCount(ctx, table)
}

func (d *DB) rowCount(ctx context.Context, table string) (int64, error) {
	var count int64
	//nolint:gosec // Table names come from the fixed step registry, not user input
	if err := d.db.QueryRowContext(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s", table)).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count rows in %s: %w", table, err)
	}
	return count, nil
}

// Column describes one column of a table.
type Column struct {
	Name     string
	Type     string
	Nullable bool
	Position int
}

// Metadata describes a table's shape.
type Metadata struct {
	Schema   string
	Name     string
	Columns  []Column
	RowCount int64
}

// ColumnNames returns the column names in ordinal order.
func (m *Metadata) ColumnNames() []string {
	names := make([]string, len(m.Columns))
	for i, c := range m.Columns {
		names[i] = c.Name
	}
	return names
}

// TableMetadata retrieves column and row count information for a table.
func (d *DB) TableMetadata(ctx context.Context, table string) (*Metadata, error) {
	if d.db == nil {
		return nil, fmt.Errorf("database connection not established")
	}

	schema := "main"
	tableName := table
	if parts := strings.Split(table, "."); len(parts) == 2 {
		schema = parts[0]
		tableName = parts[1]
	}

	query := `
		SELECT
			column_name,
			data_type,
			is_nullable,
			ordinal_position
		FROM information_schema.columns
		WHERE table_schema = ? AND table_name = ?
		ORDER BY ordinal_position
	`

	rows, err := d.db.QueryContext(ctx, query, schema, tableName)
	if err != nil {
		return nil, fmt.Errorf("failed to query column metadata: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var columns []Column
	for rows.Next() {
		var col Column
		var nullable string
		if err := rows.Scan(&col.Name, &col.Type, &nullable, &col.Position); err != nil {
			return nil, fmt.Errorf("failed to scan column metadata: %w", err)
		}
		col.Nullable = nullable == "YES"
		columns = append(columns, col)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating column metadata: %w", err)
	}
	if len(columns) == 0 {
		return nil, fmt.Errorf("table %s not found", table)
	}

	rowCount, err := d.rowCount(ctx, fmt.Sprintf("%s.%s", schema, tableName))
	if err != nil {
		// Non-fatal, metadata is still useful without it
		rowCount = 0
	}

	return &Metadata{
		Schema:   schema,
		Name:     tableName,
		Columns:  columns,
		RowCount: rowCount,
	}, nil
}

func escapeSingleQuotes(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}
