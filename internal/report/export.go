// Package report writes dashboard snapshots to disk.
package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/multierr"
)

const timestampLayout = "20060102_150405"

// ExportJSON writes data as indented JSON to filename, creating parent
// directories as needed.
func ExportJSON(filename string, data any) (err error) {
	if err := os.MkdirAll(filepath.Dir(filename), 0o755); err != nil {
		return fmt.Errorf("create report directory: %w", err)
	}
	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("create report file: %w", err)
	}
	defer func() {
		err = multierr.Append(err, file.Close())
	}()

	enc := json.NewEncoder(file)
	enc.SetIndent("", "  ")
	if err := enc.Encode(data); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}

// TimestampedFilename returns dir/name_YYYYMMDD_HHMMSS.json.
func TimestampedFilename(dir, name string, at time.Time) string {
	return filepath.Join(dir, fmt.Sprintf("%s_%s.json", name, at.Format(timestampLayout)))
}
