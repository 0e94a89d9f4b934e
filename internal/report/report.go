// Package report writes a terminal session report to disk as JSON and CSV,
// supplementing the SQLite summary row with the full per-note detail for
// offline review — the practice-session analogue of the teacher's playlist
// export bundle.
package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rhythmcoach/engine/internal/pipeline"
)

// Result holds the paths of the artifacts written by Write.
type Result struct {
	JSONPath string
	CSVPath  string
}

// Write renders report as "<baseName>.json" (the full Report struct) and
// "<baseName>.csv" (one row per note event) under outputDir. If the report
// is error-shaped (no notes were ever scored), only the JSON file is written.
func Write(outputDir, baseName string, r pipeline.Report) (*Result, error) {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("report: mkdir %s: %w", outputDir, err)
	}

	result := &Result{
		JSONPath: filepath.Join(outputDir, baseName+".json"),
	}
	if err := writeJSON(result.JSONPath, r); err != nil {
		return nil, err
	}

	if r.Error != "" || len(r.Events) == 0 {
		return result, nil
	}

	result.CSVPath = filepath.Join(outputDir, baseName+".csv")
	if err := writeCSV(result.CSVPath, r); err != nil {
		return nil, err
	}
	return result, nil
}

func writeJSON(path string, r pipeline.Report) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("report: marshal json: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("report: write json: %w", err)
	}
	return nil
}

func writeCSV(path string, r pipeline.Report) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("report: create csv: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	if err := w.Write([]string{"time_s", "kind", "bar", "beat_position", "deviation_ms", "is_on_time"}); err != nil {
		return err
	}
	for _, ev := range r.Events {
		if err := w.Write([]string{
			fmt.Sprintf("%.4f", ev.TimeS),
			ev.Kind,
			fmt.Sprintf("%d", ev.Bar),
			fmt.Sprintf("%.3f", ev.BeatPosition),
			fmt.Sprintf("%.2f", ev.DeviationMs),
			fmt.Sprintf("%t", ev.IsOnTime),
		}); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}
