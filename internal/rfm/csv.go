package rfm

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
)

// Header is the column order of the segmented customers CSV.
var Header = []string{"CustomerID", "Recency", "Frequency", "Monetary", "Cluster"}

// WriteCSV writes the records as CSV with the fixed header. Monetary values
// keep their shortest round-trip representation.
func WriteCSV(w io.Writer, records []Record) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for _, r := range records {
		row := []string{
			strconv.FormatInt(r.CustomerID, 10),
			strconv.Itoa(r.Recency),
			strconv.FormatInt(r.Frequency, 10),
			strconv.FormatFloat(r.Monetary, 'f', -1, 64),
			strconv.Itoa(r.Cluster),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write record for customer %d: %w", r.CustomerID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteFile writes the records to a CSV file, creating parent directories
// as needed.
func WriteFile(path string, records []Record) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}

	if err := WriteCSV(f, records); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", path, err)
	}
	return nil
}
