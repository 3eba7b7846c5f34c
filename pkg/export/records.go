package export

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/parquet-go/parquet-go"

	"github.com/eunmann/lasacres/pkg/survey"
)

// RecordRow is the flat parquet layout of one survey.FileRecord.
type RecordRow struct {
	Name           string  `parquet:"name"`
	Path           string  `parquet:"path"`
	SizeBytes      int64   `parquet:"size_bytes"`
	PointCount     int64   `parquet:"point_count"`
	Unit           string  `parquet:"unit,dict"`
	CRSName        string  `parquet:"crs_name,dict"`
	EPSG           string  `parquet:"epsg,dict"`
	PointFormat    string  `parquet:"point_format,dict"`
	Version        string  `parquet:"version,dict"`
	MinX           float64 `parquet:"min_x"`
	MaxX           float64 `parquet:"max_x"`
	MinY           float64 `parquet:"min_y"`
	MaxY           float64 `parquet:"max_y"`
	MinZ           float64 `parquet:"min_z"`
	MaxZ           float64 `parquet:"max_z"`
	BoundsSet      bool    `parquet:"bounds_set"`
	BBoxAcres      float64 `parquet:"bbox_acres"`
	HullAcres      float64 `parquet:"hull_acres"`
	Method         string  `parquet:"method,dict"`
	PointDensity   float64 `parquet:"point_density"`
	SampleFraction float64 `parquet:"sample_fraction"`
	SampledPoints  int64   `parquet:"sampled_points"`
	HullVertices   int32   `parquet:"hull_vertices"`
	Warnings       string  `parquet:"warnings"`
	Error          string  `parquet:"error"`
	ErrorStage     string  `parquet:"error_stage,dict"`
	DurationMs     int64   `parquet:"duration_ms"`
}

const warningSep = "; "

// NewRecordRow flattens rec.
func NewRecordRow(rec survey.FileRecord) RecordRow {
	row := RecordRow{
		Name:           rec.Name,
		Path:           rec.Path,
		SizeBytes:      rec.SizeBytes,
		PointCount:     rec.PointCount,
		Unit:           rec.Unit.String(),
		CRSName:        rec.CRS.Name,
		EPSG:           rec.CRS.EPSG,
		PointFormat:    rec.PointFormat,
		Version:        rec.Version,
		MinX:           rec.Bounds.MinX,
		MaxX:           rec.Bounds.MaxX,
		MinY:           rec.Bounds.MinY,
		MaxY:           rec.Bounds.MaxY,
		MinZ:           rec.Bounds.MinZ,
		MaxZ:           rec.Bounds.MaxZ,
		BoundsSet:      rec.Bounds.Set,
		BBoxAcres:      rec.BBoxAcres,
		HullAcres:      rec.HullAcres,
		Method:         rec.Method.String(),
		PointDensity:   rec.PointDensity,
		SampleFraction: rec.SampleFraction,
		SampledPoints:  rec.SampledPoints,
		HullVertices:   int32(rec.HullVertices),
		Warnings:       strings.Join(rec.Warnings, warningSep),
		Error:          rec.ErrorString(),
		DurationMs:     rec.Duration.Milliseconds(),
	}
	var fe *survey.FileError
	if errors.As(rec.Err, &fe) {
		row.ErrorStage = fe.Stage
	}
	return row
}

// WriteRecords writes one row per record to a zstd-compressed parquet file.
func WriteRecords(path string, records []survey.FileRecord) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}

	w := parquet.NewGenericWriter[RecordRow](f, parquet.Compression(&parquet.Zstd))
	rows := make([]RecordRow, len(records))
	for i, rec := range records {
		rows[i] = NewRecordRow(rec)
	}
	if _, err := w.Write(rows); err != nil {
		f.Close()
		return fmt.Errorf("write rows: %w", err)
	}
	if err := w.Close(); err != nil {
		f.Close()
		return fmt.Errorf("close parquet writer: %w", err)
	}
	return f.Close()
}

// ReadRecords reads a table written by WriteRecords.
func ReadRecords(path string) ([]RecordRow, error) {
	rows, err := parquet.ReadFile[RecordRow](path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return rows, nil
}
