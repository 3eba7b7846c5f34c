// Package aggregate folds a run's file records into directory-wide totals.
package aggregate

import (
	"slices"

	"github.com/eunmann/lasacres/pkg/survey"
)

const reasonInvalidBounds = "invalid bounds"

// Aggregate summarizes records. It has no side effects and never fails: a
// run with no successful file yields zero bounds and zero acreage.
//
// A record succeeds when it has no error and valid bounds; everything else
// is a failure. Size is summed over every record, since failed files were
// still scanned.
func Aggregate(records []survey.FileRecord) survey.AggregateResult {
	res := survey.AggregateResult{TotalFiles: len(records)}

	succeeded := make([]survey.FileRecord, 0, len(records))
	for _, rec := range records {
		res.TotalSizeBytes += rec.SizeBytes
		if rec.Succeeded() {
			succeeded = append(succeeded, rec)
			continue
		}
		reason := rec.ErrorString()
		if reason == "" {
			reason = reasonInvalidBounds
		}
		res.Failures = append(res.Failures, survey.FailureSummary{Name: rec.Name, Reason: reason})
	}
	res.SuccessCount = len(succeeded)
	res.FailureCount = len(res.Failures)

	if len(succeeded) == 0 {
		return res
	}

	var (
		density  float64
		units    = map[string]struct{}{}
		crsNames = map[string]struct{}{}
		epsg     = map[string]struct{}{}
	)
	bounds := succeeded[0].Bounds
	for _, rec := range succeeded {
		bounds = bounds.Union(rec.Bounds)
		res.TotalAcres += rec.PreferredAcres()
		res.TotalBBoxAcres += rec.BBoxAcres
		if rec.HullAcres > 0 {
			res.TotalHullAcres += rec.HullAcres
			res.HullFiles++
		}
		res.TotalPoints += rec.PointCount
		density += rec.PointDensity

		units[rec.Unit.String()] = struct{}{}
		if rec.CRS.Name != "" {
			crsNames[rec.CRS.Name] = struct{}{}
		}
		if rec.CRS.EPSG != "" {
			epsg[rec.CRS.EPSG] = struct{}{}
		}
	}
	res.OverallBounds = bounds
	res.AvgPointDensity = density / float64(len(succeeded))
	res.Units = sortedKeys(units)
	res.CRSNames = sortedKeys(crsNames)
	res.EPSGCodes = sortedKeys(epsg)
	return res
}

func sortedKeys(m map[string]struct{}) []string {
	if len(m) == 0 {
		return nil
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
