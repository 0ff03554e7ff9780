package warehouse

import (
	"bufio"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// MissingTokens are the values treated as NULL when staging raw CSVs.
var MissingTokens = []string{"NULL", "NA", "N/A", "NaN", ""}

// CSVOptions controls how a CSV file is staged.
type CSVOptions struct {
	// Delimiter is the field separator. Zero means auto-detect.
	Delimiter rune
	// NullTokens are the strings treated as NULL. Nil means MissingTokens.
	NullTokens []string
}

// DetectDelimiter inspects the first line of a CSV file. Exports commonly
// use semicolons, so a semicolon anywhere in the header wins; otherwise the
// file is treated as comma-delimited.
func DetectDelimiter(path string) (rune, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	reader := bufio.NewReader(f)
	line, err := reader.ReadString('\n')
	if err != nil && err != io.EOF {
		return 0, fmt.Errorf("failed to read header of %s: %w", path, err)
	}
	if strings.TrimSpace(line) == "" {
		return 0, fmt.Errorf("file %s is empty", path)
	}

	if strings.ContainsRune(line, ';') {
		return ';', nil
	}
	return ',', nil
}

// DelimiterName returns a human-readable name for a delimiter rune.
func DelimiterName(delim rune) string {
	switch delim {
	case ';':
		return "semicolon"
	case ',':
		return "comma"
	case '\t':
		return "tab"
	default:
		return fmt.Sprintf("%q", delim)
	}
}

// ReadHeader returns the column names from the first line of a CSV file
// along with the detected delimiter.
func ReadHeader(path string) ([]string, rune, error) {
	delim, err := DetectDelimiter(path)
	if err != nil {
		return nil, 0, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	reader := csv.NewReader(bufio.NewReader(f))
	reader.Comma = delim
	header, err := reader.Read()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read header of %s: %w", path, err)
	}
	for i, col := range header {
		header[i] = strings.TrimSpace(col)
	}
	return header, delim, nil
}

// LoadCSV stages a CSV file as a table, replacing any existing table of the
// same name. Schema and types are inferred over the whole file. Returns the
// loaded row count.
func (d *DB) LoadCSV(ctx context.Context, table, path string, opts CSVOptions) (int64, error) {
	if d.db == nil {
		return 0, fmt.Errorf("database connection not established")
	}

	delim := opts.Delimiter
	if delim == 0 {
		detected, err := DetectDelimiter(path)
		if err != nil {
			return 0, err
		}
		delim = detected
	}

	tokens := opts.NullTokens
	if tokens == nil {
		tokens = MissingTokens
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return 0, fmt.Errorf("failed to get absolute path: %w", err)
	}

	d.logger.Debug("staging csv",
		"table", table, "file", path, "delimiter", DelimiterName(delim))

	query := fmt.Sprintf(
		"CREATE OR REPLACE TABLE %s AS SELECT * FROM read_csv('%s', delim='%s', header=true, nullstr=%s, sample_size=-1)",
		table,
		escapeSingleQuotes(absPath),
		escapeSingleQuotes(string(delim)),
		sqlStringList(tokens),
	)
	if err := d.Exec(ctx, query); err != nil {
		return 0, fmt.Errorf("failed to load %s: %w", path, err)
	}
	return d.rowCount(ctx, table)
}

// sqlStringList renders tokens as a SQL list literal: ['a', 'b', ''].
func sqlStringList(tokens []string) string {
	quoted := make([]string, len(tokens))
	for i, t := range tokens {
		quoted[i] = "'" + escapeSingleQuotes(t) + "'"
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}
