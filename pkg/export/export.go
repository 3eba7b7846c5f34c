// Package export persists a run's records, raw reports and aggregate as a
// self-describing artifact directory.
//
// Layout:
//
//	records.parquet     one row per file (RecordRow), zstd pages
//	reports.jsonl.zst   raw metadata reports, one JSON object per line
//	summary.json        RunInfo plus the aggregate
//	manifest.json       size and SHA-256 of each artifact above
//
// Every artifact is written to a temporary name first and renamed into place,
// and the manifest is written last, so a directory with a manifest is complete.
package export

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/eunmann/lasacres/internal/logctx"
	"github.com/eunmann/lasacres/pkg/fileutil"
	"github.com/eunmann/lasacres/pkg/logging"
	"github.com/eunmann/lasacres/pkg/survey"
)

// Artifact file names.
const (
	RecordsFile  = "records.parquet"
	ReportsFile  = "reports.jsonl.zst"
	SummaryFile  = "summary.json"
	ManifestFile = "manifest.json"
)

// RunInfo describes how a run was configured and how it ended.
type RunInfo struct {
	RunID          string        `json:"run_id"`
	Source         string        `json:"source"`
	Describer      string        `json:"describer"`
	HullEngine     string        `json:"hull_engine,omitempty"`
	HullEnabled    bool          `json:"hull_enabled"`
	SampleFraction float64       `json:"sample_fraction"`
	Workers        int           `json:"workers"`
	Canceled       bool          `json:"canceled"`
	Undispatched   []string      `json:"undispatched,omitempty"`
	Elapsed        time.Duration `json:"elapsed_ns"`
}

// Summary is the content of summary.json.
type Summary struct {
	RunInfo
	CreatedAt time.Time              `json:"created_at"`
	Aggregate survey.AggregateResult `json:"aggregate"`
}

// NewRunID returns a fresh random run identifier.
func NewRunID() string {
	return uuid.NewString()
}

// Write exports a run into dir and returns the manifest. A missing RunID is
// generated.
func Write(ctx context.Context, dir string, info RunInfo, records []survey.FileRecord, agg survey.AggregateResult) (*Manifest, error) {
	start := time.Now()
	log := logctx.FromContext(ctx).With().Str("phase", "export").Logger()

	if info.RunID == "" {
		info.RunID = NewRunID()
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create export dir: %w", err)
	}
	created := time.Now().UTC()

	steps := []struct {
		name  string
		write func(tmpPath string) error
	}{
		{RecordsFile, func(p string) error { return WriteRecords(p, records) }},
		{ReportsFile, func(p string) error { return WriteReports(p, records) }},
		{SummaryFile, func(p string) error {
			return writeJSON(p, Summary{RunInfo: info, CreatedAt: created, Aggregate: agg})
		}},
	}

	names := make([]string, 0, len(steps))
	for _, step := range steps {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		stepStart := time.Now()
		out := filepath.Join(dir, step.name)
		if err := fileutil.WriteTmpThenMove(dir, out, step.write); err != nil {
			return nil, fmt.Errorf("write %s: %w", step.name, err)
		}
		names = append(names, step.name)

		ev := logging.ArtifactWritten(log, "export", time.Since(stepStart)).Str("file", step.name)
		if st, err := os.Stat(out); err == nil {
			ev.Bytes("size_bytes", st.Size())
		}
		ev.LogDebug("artifact written")
	}

	m, err := buildManifest(dir, info.RunID, created, names)
	if err != nil {
		return nil, err
	}
	if err := fileutil.WriteTmpThenMove(dir, filepath.Join(dir, ManifestFile), func(p string) error {
		return writeJSON(p, m)
	}); err != nil {
		return nil, fmt.Errorf("write manifest: %w", err)
	}

	logging.PhaseComplete(log, "export", time.Since(start)).
		Str("dir", dir).
		Str("run_id", info.RunID).
		Int("records", len(records)).
		Log("export complete")
	return m, nil
}

// ReadSummary reads summary.json from an export directory.
func ReadSummary(dir string) (*Summary, error) {
	data, err := os.ReadFile(filepath.Join(dir, SummaryFile))
	if err != nil {
		return nil, fmt.Errorf("read summary: %w", err)
	}
	var s Summary
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("unmarshal summary: %w", err)
	}
	return &s, nil
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}
