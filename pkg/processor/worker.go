package processor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/eunmann/lasacres/internal/logctx"
	"github.com/eunmann/lasacres/pkg/area"
	"github.com/eunmann/lasacres/pkg/lasinfo"
	"github.com/eunmann/lasacres/pkg/survey"
)

func baseName(path string) string {
	return filepath.Base(path)
}

// processFile builds the record for one path. It recovers from panics so a
// fault in any collaborator becomes a failed record.
func (p *Processor) processFile(ctx context.Context, path string, onStage func(string)) (rec survey.FileRecord) {
	start := time.Now()
	stage := survey.StageStat
	rec = survey.FileRecord{Path: path, Name: baseName(path)}

	defer func() {
		if r := recover(); r != nil {
			rec = failed(rec, stage, fmt.Errorf("%w: panic: %v", survey.ErrComputationFailure, r))
		}
		rec.Duration = time.Since(start)
	}()

	st, err := os.Stat(path)
	if err != nil {
		return failed(rec, stage, err)
	}
	if st.IsDir() {
		return failed(rec, stage, fmt.Errorf("%w: is a directory", survey.ErrEmptyInput))
	}
	rec.SizeBytes = st.Size()
	if p.cfg.MaxFileBytes > 0 && rec.SizeBytes > p.cfg.MaxFileBytes {
		return failed(rec, stage, fmt.Errorf("%w: %d bytes exceeds limit of %d", survey.ErrFileTooLarge, rec.SizeBytes, p.cfg.MaxFileBytes))
	}

	stage = survey.StageMetadata
	onStage(stage)
	report, err := p.describer.Describe(ctx, path)
	if err != nil {
		return failed(rec, stage, fmt.Errorf("%s: %w", p.describer.Name(), err))
	}
	rec.RawReport = report

	md, err := lasinfo.Parse(report)
	if err != nil {
		return failed(rec, stage, err)
	}
	rec.Metadata = md

	stage = survey.StageHull
	est := p.estimator.Estimate(ctx, area.Input{
		Path:      path,
		SizeBytes: rec.SizeBytes,
		Bounds:    md.Bounds,
		Unit:      md.Unit,
		Points:    md.PointCount,
		OnStage:   onStage,
	})
	rec.BBoxAcres = est.BBoxAcres
	rec.HullAcres = est.HullAcres
	rec.Method = est.Method
	rec.PointDensity = est.PointDensity
	rec.SampleFraction = est.SampleFraction
	rec.SampledPoints = est.SampledPoints
	rec.HullVertices = est.HullVertices
	rec.Warnings = est.Warnings

	if est.HullErr != nil {
		log := logctx.FromContext(ctx)
		log.Debug().Err(est.HullErr).Msg("hull fell back to bounding box")
	}
	return rec
}

// failed marks rec as failed at stage. Parsed metadata is cleared so the
// bounds read as unset; the raw report is kept for diagnostics.
func failed(rec survey.FileRecord, stage string, err error) survey.FileRecord {
	rec.Metadata = survey.Metadata{}
	rec.BBoxAcres, rec.HullAcres = 0, 0
	rec.Method = survey.MethodBoundingBox
	rec.Err = &survey.FileError{Path: rec.Path, Stage: stage, Err: err}
	return rec
}
