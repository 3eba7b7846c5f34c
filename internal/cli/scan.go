package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/eunmann/lasacres/internal/logctx"
	"github.com/eunmann/lasacres/pkg/aggregate"
	"github.com/eunmann/lasacres/pkg/area"
	"github.com/eunmann/lasacres/pkg/export"
	"github.com/eunmann/lasacres/pkg/fileutil"
	"github.com/eunmann/lasacres/pkg/lasfile"
	"github.com/eunmann/lasacres/pkg/memdiag"
	"github.com/eunmann/lasacres/pkg/processor"
	"github.com/eunmann/lasacres/pkg/s3fetch"
)

// ErrInterrupted is returned after a run stopped early on cancellation. The
// partial summary has already been written.
var ErrInterrupted = errors.New("scan interrupted before all files were started")

// newS3Client is replaced in tests.
var newS3Client = s3fetch.NewClient

func newScanCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan <dir|file|s3://bucket/prefix>",
		Short: "Scan every .las file in a directory and report total acreage",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, s, err := a.setup(cmd)
			if err != nil {
				return err
			}
			return a.scan(ctx, s, args[0])
		},
	}
	addScanFlags(cmd.Flags())
	return cmd
}

func (a *app) scan(ctx context.Context, s Settings, target string) error {
	log := logctx.FromContext(ctx)

	paths, cleanup, err := resolveInputs(ctx, s, target)
	if err != nil {
		return err
	}
	defer cleanup()
	if len(paths) == 0 {
		log.Warn().Str("source", target).Msg("no .las files found")
	}

	res, info, err := a.process(ctx, s, target, paths)
	if err != nil {
		return err
	}
	agg := aggregate.Aggregate(res.Records)
	if err := agg.Status(); err != nil {
		log.Warn().Err(err).Int("files", agg.TotalFiles).Msg("no file produced usable bounds")
	}

	report := scanReport{RunInfo: info, Aggregate: agg}
	for _, rec := range res.Records {
		report.Files = append(report.Files, newFileView(rec, false))
	}

	if s.OutDir != "" {
		if err := fileutil.CleanupTmpFiles(s.OutDir); err != nil && !os.IsNotExist(err) {
			log.Warn().Err(err).Str("dir", s.OutDir).Msg("could not clean stale temp files")
		}
		// Export after cancellation too; the records on hand are complete.
		if _, err := export.Write(context.WithoutCancel(ctx), s.OutDir, info, res.Records, agg); err != nil {
			return fmt.Errorf("export: %w", err)
		}
		report.ExportDir = s.OutDir
	}

	if err := a.render(s, report); err != nil {
		return err
	}
	if res.Canceled {
		return ErrInterrupted
	}
	return nil
}

func (a *app) render(s Settings, r scanReport) error {
	if s.Format == FormatText {
		return writeText(a.stdout, r)
	}
	return writeJSON(a.stdout, r)
}

// process runs the processor over paths with everything wired from s.
func (a *app) process(ctx context.Context, s Settings, source string, paths []string) (*processor.Result, export.RunInfo, error) {
	log := logctx.FromContext(ctx)
	info := export.RunInfo{
		RunID:          a.runID,
		Source:         source,
		HullEnabled:    s.Hull,
		SampleFraction: s.SampleFraction,
	}

	describer, err := newDescriber(s, log)
	if err != nil {
		return nil, info, err
	}
	info.Describer = describer.Name()

	budget := s.budget()
	est, err := newEstimator(s, area.DetectCapabilities(), budget)
	if err != nil {
		return nil, info, err
	}
	if est.Engine != nil {
		info.HullEngine = est.Engine.Name()
		bs := budget.Stats()
		log.Info().
			Str("engine", info.HullEngine).
			Uint64("budget_bytes", bs.TotalBytes).
			Str("budget_source", string(bs.Source)).
			Msg("hull mode enabled")
	}

	maxBytes, err := s.maxFileBytes()
	if err != nil {
		return nil, info, err
	}

	diagCfg := memdiag.ConfigFromEnv()
	diagCfg.Budget = budget
	tracker := memdiag.NewTracker(diagCfg)
	tracker.Start()
	defer tracker.Stop()
	tracker.SetPhase("scan")

	proc := processor.New(
		processor.Config{Workers: s.Workers, MaxFileBytes: maxBytes},
		describer, est, progressObserver(s, a.stderr, len(paths)),
	)
	res, err := proc.Run(ctx, paths)
	if err != nil {
		return nil, info, err
	}

	info.Workers = proc.Workers()
	info.Canceled = res.Canceled
	info.Undispatched = res.Undispatched
	info.Elapsed = res.Elapsed
	return res, info, nil
}

// resolveInputs turns a scan target into local file paths. S3 prefixes are
// downloaded first; the returned cleanup removes the downloads.
func resolveInputs(ctx context.Context, s Settings, target string) ([]string, func(), error) {
	noop := func() {}
	if !s3fetch.IsS3URI(target) {
		st, err := os.Stat(target)
		if err != nil {
			return nil, noop, err
		}
		if !st.IsDir() {
			return []string{target}, noop, nil
		}
		paths, err := lasfile.Discover(target)
		return paths, noop, err
	}

	client, err := newS3Client(ctx)
	if err != nil {
		return nil, noop, err
	}
	f := s3fetch.NewFetcher(client, s3fetch.FetchConfig{
		URI:         target,
		DownloadDir: s.DownloadDir,
		KeepFiles:   s.KeepDownloads,
	})
	cleanup := func() {
		if err := f.Cleanup(); err != nil {
			log := logctx.FromContext(ctx)
			log.Warn().Err(err).Str("dir", f.Dir()).Msg("could not remove downloads")
		}
	}
	res, err := f.Fetch(ctx)
	if err != nil {
		cleanup()
		return nil, noop, err
	}
	return res.LocalFiles, cleanup, nil
}

// app carries the output streams of one invocation.
type app struct {
	stdout io.Writer
	stderr io.Writer
	cfg    *string
	runID  string
}
