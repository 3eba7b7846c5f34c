package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/eunmann/lasacres/pkg/export"
	"github.com/eunmann/lasacres/pkg/humanfmt"
	"github.com/eunmann/lasacres/pkg/survey"
)

// fileView is the printed form of one record.
type fileView struct {
	Name           string         `json:"name"`
	SizeBytes      int64          `json:"size_bytes"`
	PointCount     int64          `json:"point_count"`
	Unit           string         `json:"unit"`
	CRS            string         `json:"crs,omitempty"`
	EPSG           string         `json:"epsg,omitempty"`
	Bounds         *survey.Bounds `json:"bounds,omitempty"`
	BBoxAcres      float64        `json:"bbox_acres"`
	HullAcres      float64        `json:"hull_acres,omitempty"`
	Method         string         `json:"method"`
	PointDensity   float64        `json:"point_density"`
	SampleFraction float64        `json:"sample_fraction,omitempty"`
	HullVertices   int            `json:"hull_vertices,omitempty"`
	Warnings       []string       `json:"warnings,omitempty"`
	Error          string         `json:"error,omitempty"`
	DurationMs     int64          `json:"duration_ms"`
	Report         string         `json:"report,omitempty"`
}

func newFileView(rec survey.FileRecord, withReport bool) fileView {
	v := fileView{
		Name:           rec.Name,
		SizeBytes:      rec.SizeBytes,
		PointCount:     rec.PointCount,
		Unit:           rec.Unit.String(),
		CRS:            rec.CRS.Name,
		EPSG:           rec.CRS.EPSG,
		BBoxAcres:      rec.BBoxAcres,
		HullAcres:      rec.HullAcres,
		Method:         rec.Method.String(),
		PointDensity:   rec.PointDensity,
		SampleFraction: rec.SampleFraction,
		HullVertices:   rec.HullVertices,
		Warnings:       rec.Warnings,
		Error:          rec.ErrorString(),
		DurationMs:     rec.Duration.Milliseconds(),
	}
	if rec.Bounds.Set {
		b := rec.Bounds
		v.Bounds = &b
	}
	if withReport {
		v.Report = rec.RawReport
	}
	return v
}

// scanReport is the printed result of a scan.
type scanReport struct {
	export.RunInfo
	ExportDir string                 `json:"export_dir,omitempty"`
	Aggregate survey.AggregateResult `json:"aggregate"`
	Files     []fileView             `json:"files"`
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeText(w io.Writer, r scanReport) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "FILE\tPOINTS\tUNIT\tACRES\tMETHOD\tDENSITY\tSTATUS")
	for _, f := range r.Files {
		status := "ok"
		if f.Error != "" {
			status = f.Error
		} else if len(f.Warnings) > 0 {
			status = strings.Join(f.Warnings, "; ")
		}
		acres := f.BBoxAcres
		if f.HullAcres > 0 {
			acres = f.HullAcres
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			f.Name, humanfmt.Count(f.PointCount), f.Unit, humanfmt.Acres(acres), f.Method, humanfmt.Density(f.PointDensity), status)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	a := r.Aggregate
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Files:         %d succeeded, %d failed, %d total\n", a.SuccessCount, a.FailureCount, a.TotalFiles)
	fmt.Fprintf(w, "Total area:    %s\n", humanfmt.Acres(a.TotalAcres))
	if a.HullFiles > 0 {
		fmt.Fprintf(w, "Hull area:     %s over %d files (bbox %s)\n", humanfmt.Acres(a.TotalHullAcres), a.HullFiles, humanfmt.Acres(a.TotalBBoxAcres))
	}
	fmt.Fprintf(w, "Total points:  %s\n", humanfmt.Count(a.TotalPoints))
	fmt.Fprintf(w, "Total size:    %s\n", humanfmt.Bytes(a.TotalSizeBytes))
	fmt.Fprintf(w, "Avg density:   %s\n", humanfmt.Density(a.AvgPointDensity))
	if len(a.EPSGCodes) > 0 {
		fmt.Fprintf(w, "EPSG:          %s\n", strings.Join(a.EPSGCodes, ", "))
	}
	if a.SuccessCount > 0 {
		b := a.OverallBounds
		fmt.Fprintf(w, "Bounds:        x %.2f..%.2f  y %.2f..%.2f  z %.2f..%.2f\n", b.MinX, b.MaxX, b.MinY, b.MaxY, b.MinZ, b.MaxZ)
	}
	if r.Canceled {
		fmt.Fprintf(w, "Interrupted:   %d files not started\n", len(r.Undispatched))
	}
	if r.ExportDir != "" {
		fmt.Fprintf(w, "Exported to:   %s\n", r.ExportDir)
	}
	return nil
}
