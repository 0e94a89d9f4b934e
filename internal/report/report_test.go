package report

import (
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/rhythmcoach/engine/internal/pipeline"
)

func TestWriteCreatesJSONAndCSVArtifacts(t *testing.T) {
	dir := t.TempDir()

	r := pipeline.Report{
		BPM:            100,
		GridResolution: "8th",
		TotalBars:      8,
		Events: []pipeline.NoteEvent{
			{TimeS: 1.0, NearestGridS: 1.0, DeviationMs: 5, Kind: "note", Bar: 1, BeatPosition: 1, IsOnTime: true},
			{TimeS: 1.6, NearestGridS: 1.5, DeviationMs: 100, Kind: "note", Bar: 1, BeatPosition: 3, IsOnTime: false},
		},
	}

	res, err := Write(dir, "session-demo", r)
	if err != nil {
		t.Fatalf("write failed: %v", err)
	}

	for _, path := range []string{res.JSONPath, res.CSVPath} {
		if _, err := os.Stat(path); err != nil {
			t.Fatalf("expected file %s: %v", path, err)
		}
	}

	jsonBytes, err := os.ReadFile(res.JSONPath)
	if err != nil {
		t.Fatalf("read json: %v", err)
	}
	var decoded pipeline.Report
	if err := json.Unmarshal(jsonBytes, &decoded); err != nil {
		t.Fatalf("unmarshal json: %v", err)
	}
	if decoded.BPM != 100 || len(decoded.Events) != 2 {
		t.Fatalf("unexpected decoded report: %+v", decoded)
	}

	f, err := os.Open(res.CSVPath)
	if err != nil {
		t.Fatalf("open csv: %v", err)
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("csv read: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected header + 2 note rows, got %d", len(rows))
	}
	if filepath.Base(res.CSVPath) != "session-demo.csv" {
		t.Fatalf("unexpected csv filename: %s", res.CSVPath)
	}
}

func TestWriteErrorReportSkipsCSV(t *testing.T) {
	dir := t.TempDir()

	res, err := Write(dir, "session-failed", pipeline.Report{Error: "no guitar notes detected"})
	if err != nil {
		t.Fatalf("write failed: %v", err)
	}

	if _, err := os.Stat(res.JSONPath); err != nil {
		t.Fatalf("expected json file: %v", err)
	}
	if res.CSVPath != "" {
		t.Fatalf("expected no csv path for an error-shaped report, got %q", res.CSVPath)
	}
}
