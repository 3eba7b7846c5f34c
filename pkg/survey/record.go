package survey

import (
	"math"
	"time"
)

// Bounds is the axis-aligned extent of a file's points. The zero value is
// the unset sentinel used when parsing failed.
type Bounds struct {
	MinX float64 `json:"min_x"`
	MaxX float64 `json:"max_x"`
	MinY float64 `json:"min_y"`
	MaxY float64 `json:"max_y"`
	MinZ float64 `json:"min_z"`
	MaxZ float64 `json:"max_z"`
	Set  bool    `json:"set"`
}

// Valid reports whether the bounds were set, are finite, and satisfy
// min <= max on every axis.
func (b Bounds) Valid() bool {
	if !b.Set {
		return false
	}
	for _, v := range [...]float64{b.MinX, b.MaxX, b.MinY, b.MaxY, b.MinZ, b.MaxZ} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return b.MinX <= b.MaxX && b.MinY <= b.MaxY && b.MinZ <= b.MaxZ
}

// Width returns |maxX - minX|.
func (b Bounds) Width() float64 { return math.Abs(b.MaxX - b.MinX) }

// Height returns |maxY - minY|.
func (b Bounds) Height() float64 { return math.Abs(b.MaxY - b.MinY) }

// Union returns the componentwise min/max of b and o. An unset operand is
// ignored.
func (b Bounds) Union(o Bounds) Bounds {
	if !o.Set {
		return b
	}
	if !b.Set {
		return o
	}
	return Bounds{
		MinX: math.Min(b.MinX, o.MinX), MaxX: math.Max(b.MaxX, o.MaxX),
		MinY: math.Min(b.MinY, o.MinY), MaxY: math.Max(b.MaxY, o.MaxY),
		MinZ: math.Min(b.MinZ, o.MinZ), MaxZ: math.Max(b.MaxZ, o.MaxZ),
		Set: true,
	}
}

// CRS describes the coordinate reference system text found for a file.
type CRS struct {
	// Description is every CRS-bearing line joined with " | ".
	Description string
	// Name is the main coordinate-system name, if one could be isolated.
	Name string
	// EPSG is the first EPSG code found, or empty.
	EPSG string
}

// Metadata is the structured form of one file's metadata report.
type Metadata struct {
	PointCount  int64
	Unit        Unit
	CRS         CRS
	Bounds      Bounds
	Scale       [3]float64
	Offset      [3]float64
	PointFormat string
	Version     string
}

// FileRecord is the outcome of processing one survey file. It is built once
// by the worker that owns the file and never modified after handoff.
type FileRecord struct {
	Path      string
	Name      string
	SizeBytes int64
	Metadata

	// BBoxAcres is always computed when Bounds are valid.
	BBoxAcres float64
	// HullAcres is zero when no hull was computed.
	HullAcres float64
	Method    AreaMethod

	// PointDensity is points per square meter over the preferred area.
	PointDensity   float64
	SampleFraction float64
	SampledPoints  int64
	HullVertices   int

	// Warnings are non-fatal caveats (unknown unit, hull fallback reason).
	Warnings []string

	// Err is set when the file failed; Bounds are then unset.
	Err error

	RawReport string
	Duration  time.Duration
}

// Succeeded reports whether the record contributes to aggregate bounds.
func (r FileRecord) Succeeded() bool {
	return r.Err == nil && r.Bounds.Valid()
}

// ErrorString returns the failure description or "".
func (r FileRecord) ErrorString() string {
	if r.Err == nil {
		return ""
	}
	return r.Err.Error()
}

// PreferredAcres returns the hull acreage when present, else the bounding-box
// acreage.
func (r FileRecord) PreferredAcres() float64 {
	if r.HullAcres > 0 {
		return r.HullAcres
	}
	return r.BBoxAcres
}

// FailureSummary names one failed file and why.
type FailureSummary struct {
	Name   string `json:"name"`
	Reason string `json:"reason"`
}

// AggregateResult folds a run's FileRecords into directory-wide totals.
type AggregateResult struct {
	OverallBounds   Bounds           `json:"overall_bounds"`
	TotalAcres      float64          `json:"total_acres"`
	TotalBBoxAcres  float64          `json:"total_bbox_acres"`
	TotalHullAcres  float64          `json:"total_hull_acres"`
	HullFiles       int              `json:"hull_files"`
	SuccessCount    int              `json:"success_count"`
	FailureCount    int              `json:"failure_count"`
	TotalFiles      int              `json:"total_files"`
	TotalPoints     int64            `json:"total_points"`
	TotalSizeBytes  int64            `json:"total_size_bytes"`
	AvgPointDensity float64          `json:"avg_point_density"`
	Units           []string         `json:"units,omitempty"`
	CRSNames        []string         `json:"crs_names,omitempty"`
	EPSGCodes       []string         `json:"epsg_codes,omitempty"`
	Failures        []FailureSummary `json:"failures,omitempty"`
}

// Status returns ErrEmptyResultSet when no file succeeded, else nil. It
// describes the result; the result itself is always complete and usable.
func (a AggregateResult) Status() error {
	if a.SuccessCount == 0 {
		return ErrEmptyResultSet
	}
	return nil
}
