package cli

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/pflag"

	"github.com/eunmann/lasacres/pkg/membudget"
	"github.com/eunmann/lasacres/pkg/processor"
)

func scanFlags(t *testing.T, args ...string) *pflag.FlagSet {
	t.Helper()
	fs := pflag.NewFlagSet("scan", pflag.ContinueOnError)
	addScanFlags(fs)
	if err := fs.Parse(args); err != nil {
		t.Fatalf("parse flags: %v", err)
	}
	return fs
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "lasacres.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadSettings_Defaults(t *testing.T) {
	s, err := LoadSettings("", scanFlags(t))
	if err != nil {
		t.Fatalf("LoadSettings() error: %v", err)
	}
	if s.Workers != 0 || s.SampleFraction != 1.0 || s.Metadata != MetadataAuto || !s.Prefer64 {
		t.Errorf("defaults = %+v", s)
	}
	if s.Format != FormatJSON || s.MaxFileSize != "20GiB" {
		t.Errorf("Format = %q, MaxFileSize = %q", s.Format, s.MaxFileSize)
	}
	if n, _ := s.maxFileBytes(); n != 20<<30 {
		t.Errorf("maxFileBytes = %d, want %d", n, int64(20<<30))
	}
}

func TestLoadSettings_Precedence(t *testing.T) {
	cfg := writeConfig(t, "workers: 3\nformat: text\nsample-fraction: 0.5\nmetadata: native\n")

	s, err := LoadSettings(cfg, scanFlags(t))
	if err != nil {
		t.Fatalf("LoadSettings() error: %v", err)
	}
	if s.Workers != 3 || s.Format != FormatText || s.SampleFraction != 0.5 || s.Metadata != MetadataNative {
		t.Errorf("from file = %+v", s)
	}
	if s.ConfigFile != cfg {
		t.Errorf("ConfigFile = %q, want %q", s.ConfigFile, cfg)
	}

	t.Setenv("LASACRES_WORKERS", "5")
	t.Setenv("LASACRES_SAMPLE_FRACTION", "0.25")
	s, err = LoadSettings(cfg, scanFlags(t))
	if err != nil {
		t.Fatal(err)
	}
	if s.Workers != 5 || s.SampleFraction != 0.25 {
		t.Errorf("env override: workers=%d fraction=%v", s.Workers, s.SampleFraction)
	}

	s, err = LoadSettings(cfg, scanFlags(t, "--workers", "7"))
	if err != nil {
		t.Fatal(err)
	}
	if s.Workers != 7 || s.SampleFraction != 0.25 || s.Format != FormatText {
		t.Errorf("flag override = %+v", s)
	}
}

func TestLoadSettings_MissingExplicitConfig(t *testing.T) {
	_, err := LoadSettings(filepath.Join(t.TempDir(), "missing.yaml"), scanFlags(t))
	if err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestLoadSettings_InvalidFlag(t *testing.T) {
	_, err := LoadSettings("", scanFlags(t, "--sample-fraction", "1.5"))
	if err == nil || !strings.Contains(err.Error(), "sample-fraction") {
		t.Errorf("err = %v, want sample-fraction error", err)
	}
}

func TestValidate(t *testing.T) {
	valid := Settings{SampleFraction: 1, Metadata: MetadataAuto, Format: FormatJSON, MaxFileSize: "1GiB"}

	tests := []struct {
		name   string
		modify func(*Settings)
		want   string
	}{
		{"valid", func(*Settings) {}, ""},
		{"negative workers", func(s *Settings) { s.Workers = -1 }, "workers"},
		{"zero fraction", func(s *Settings) { s.SampleFraction = 0 }, "sample-fraction"},
		{"fraction above one", func(s *Settings) { s.SampleFraction = 1.01 }, "sample-fraction"},
		{"bad metadata", func(s *Settings) { s.Metadata = "pdal" }, "metadata"},
		{"bad format", func(s *Settings) { s.Format = "csv" }, "format"},
		{"bad budget", func(s *Settings) { s.MemoryBudget = "lots" }, "memory-budget"},
		{"bad max size", func(s *Settings) { s.MaxFileSize = "huge" }, "max-file-size"},
		{"unknown engine", func(s *Settings) { s.Hull = true; s.Engine = "qhull" }, "qhull"},
		{"engine ignored without hull", func(s *Settings) { s.Engine = "qhull" }, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := valid
			tt.modify(&s)
			err := s.Validate()
			if tt.want == "" {
				if err != nil {
					t.Errorf("Validate() = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Validate() = %v, want error mentioning %q", err, tt.want)
			}
		})
	}
}

func TestMaxFileBytes_Disabled(t *testing.T) {
	for _, v := range []string{"", "0", "0GiB", "0.0MB"} {
		n, err := Settings{MaxFileSize: v}.maxFileBytes()
		if err != nil || n != -1 {
			t.Errorf("maxFileBytes(%q) = %d, %v; want -1", v, n, err)
		}
	}
}

func TestBudgetSource(t *testing.T) {
	tests := []struct {
		name     string
		s        Settings
		want     membudget.BudgetSource
		wantSize uint64
	}{
		{"flag", Settings{MemoryBudget: "2GiB", BudgetFromFlag: true}, membudget.BudgetSourceCLI, 2 << 30},
		{"config", Settings{MemoryBudget: "512MiB"}, membudget.BudgetSourceConfig, 512 << 20},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := tt.s.budget().Stats()
			if st.Source != tt.want || st.TotalBytes != tt.wantSize {
				t.Errorf("budget = %s/%d, want %s/%d", st.Source, st.TotalBytes, tt.want, tt.wantSize)
			}
		})
	}

	if src := (Settings{}).budget().Source(); src == membudget.BudgetSourceCLI || src == membudget.BudgetSourceConfig {
		t.Errorf("auto budget source = %s", src)
	}
}

func TestProgressObserver_Disabled(t *testing.T) {
	orig := isTerminal
	t.Cleanup(func() { isTerminal = orig })

	var buf bytes.Buffer
	isTerminal = func(io.Writer) bool { return false }
	if obs := progressObserver(Settings{}, &buf, 3); obs != nil {
		t.Error("non-terminal stderr should not get a progress bar")
	}

	isTerminal = func(io.Writer) bool { return true }
	if obs := progressObserver(Settings{NoProgress: true}, &buf, 3); obs != nil {
		t.Error("--no-progress should disable the bar")
	}
	if obs := progressObserver(Settings{}, &buf, 0); obs != nil {
		t.Error("empty runs should not get a bar")
	}
	if obs := progressObserver(Settings{}, &buf, 3); obs == nil {
		t.Error("terminal stderr should get a bar")
	}
}

func TestBarObserver(t *testing.T) {
	var buf bytes.Buffer
	obs := newBarObserver(&buf, 2)
	obs.OnProgress(processor.Event{Completed: 0, Total: 2, File: "a.las", Stage: "metadata"})
	obs.OnProgress(processor.Event{Completed: 1, Total: 2, File: "a.las", Stage: "done"})
	obs.OnProgress(processor.Event{Completed: 2, Total: 2, Final: true})

	if obs.bar.State().CurrentNum != 2 {
		t.Errorf("bar at %d, want 2", obs.bar.State().CurrentNum)
	}
	if !strings.Contains(buf.String(), "a.las") {
		t.Errorf("bar output missing file name: %q", buf.String())
	}
}
