package main

import (
	"bytes"
	"context"
	"encoding/csv"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cwbudde/gbseg/internal/config"
	"github.com/cwbudde/gbseg/internal/trace"
)

const binaryDatabase = `
name: BINARY
phases:
  FCC_A1:
    default: true
    endmembers:
      A: {a: 0, b: 0}
      B: {a: 0, b: 0}
    interactions:
      - elements: [A, B]
        l: {a: -10000, b: 0}
  LIQUID:
    endmembers:
      A: {a: 0, b: 0}
      B: {a: 0, b: 0}
`

// writeSweep writes a binary database and a sweep configuration using it.
func writeSweep(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	db := filepath.Join(dir, "binary.yaml")
	if err := os.WriteFile(db, []byte(binaryDatabase), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := `
elements: [A, B]
composition: [0.2]
database: BINARY
grain:
  phases: [FCC_A1]
temperatures:
  values: [1000, 900, 800]
oracle:
  kind: model
  options:
    databases: [` + db + `]
`
	path := filepath.Join(dir, "sweep.yaml")
	if err := os.WriteFile(path, []byte(cfg), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

// expectedFraction is the boundary fraction of B where an ideal liquid
// matches a regular FCC solution with L = -10000 at x(B) = 0.2.
func expectedFraction(temp float64) float64 {
	rt := 8.314462618 * temp
	ratio := 4 * math.Exp(6000/rt)
	return 1 / (1 + ratio)
}

func TestRunSweep(t *testing.T) {
	cfg, err := config.Load(writeSweep(t))
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	var progress bytes.Buffer
	series, err := runSweep(context.Background(), cfg, &progress)
	if err != nil {
		t.Fatalf("runSweep failed: %v", err)
	}

	if series.Len() != 3 || series.Converged() != 3 {
		t.Fatalf("Expected 3 converged steps, got %d/%d", series.Converged(), series.Len())
	}
	for i, temp := range []float64{1000, 900, 800} {
		full, ok := series.Full(i)
		if !ok {
			t.Fatalf("No composition at T=%g", temp)
		}
		if got, want := full[1], expectedFraction(temp); math.Abs(got-want) > 1e-3 {
			t.Errorf("T=%g: x(B) = %.5f, want %.5f", temp, got, want)
		}
	}

	lines := strings.Split(strings.TrimSpace(progress.String()), "\n")
	if len(lines) != 3 || !strings.HasPrefix(lines[0], "[1/3] At T=1000.0, J=") {
		t.Errorf("Unexpected progress output:\n%s", progress.String())
	}
}

func TestRunSweep_UnknownDatabase(t *testing.T) {
	cfg, err := config.Load(writeSweep(t))
	if err != nil {
		t.Fatal(err)
	}
	cfg.Database = "MISSING"

	if _, err := runSweep(context.Background(), cfg, &bytes.Buffer{}); err == nil {
		t.Error("Expected an error for an unknown database")
	}
}

func TestSweepCommand_CSV(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "series.csv")
	tracePath := filepath.Join(dir, "trace.jsonl")
	var stderr bytes.Buffer
	rootCmd.SetErr(&stderr)
	rootCmd.SetArgs([]string{"sweep", "-c", writeSweep(t), "--format", "csv", "-o", out, "--trace", tracePath, "-q", "--log-level", "error"})
	t.Cleanup(func() {
		rootCmd.SetArgs(nil)
		rootCmd.SetErr(nil)
	})

	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("sweep failed: %v", err)
	}

	f, err := os.Open(out)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("Invalid CSV: %v", err)
	}
	if len(records) != 4 {
		t.Fatalf("Expected header and 3 rows, got %d", len(records))
	}
	if records[0][0] != "temperature" || records[1][1] != "converged" {
		t.Errorf("Unexpected CSV content: %v", records[:2])
	}
	if !strings.Contains(stderr.String(), "Wrote "+out) {
		t.Errorf("Expected summary on stderr, got %q", stderr.String())
	}

	entries, err := trace.ReadFile(tracePath)
	if err != nil {
		t.Fatalf("Failed to read trace: %v", err)
	}
	if len(entries) != 3 || entries[2].Temperature != 800 {
		t.Errorf("Expected one trace entry per temperature, got %+v", entries)
	}
}

func TestNewLogHandler(t *testing.T) {
	var buf bytes.Buffer
	h, err := newLogHandler(&buf, "warn", "json")
	if err != nil {
		t.Fatal(err)
	}
	if h.Enabled(context.Background(), -4) {
		t.Error("Debug should be disabled at warn level")
	}

	if _, err := newLogHandler(&buf, "info", "xml"); err == nil {
		t.Error("Expected an error for an unknown format")
	}
}
