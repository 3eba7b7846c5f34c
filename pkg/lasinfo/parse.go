// Package lasinfo turns the textual report of the LAStools lasinfo utility
// into structured survey metadata, and runs the tool when it is installed.
package lasinfo

import (
	"bufio"
	"fmt"
	"strconv"
	"strings"

	"github.com/eunmann/lasacres/pkg/survey"
)

// Report labels, lowercased. Matching is by prefix of the trimmed line.
const (
	labelMin           = "min x y z:"
	labelMax           = "max x y z:"
	labelPointCount    = "number of point records:"
	labelExtPointCount = "extended number of point records:"
	labelScale         = "scale factor x y z:"
	labelOffset        = "offset x y z:"
	labelPointFormat   = "point data format:"
	labelVersion       = "version major.minor:"
)

// crsMarkers flag a line as carrying coordinate reference system text.
var crsMarkers = []string{
	"epsg",
	"nad83",
	"wgs",
	"projlinearunitsgeokey",
	"projectedcstypegeokey",
	"gtcitationgeokey",
	"linear_foot",
	"us survey foot",
	"projcs[",
	"projcrs[",
	"geogcs[",
}

// Parse converts one lasinfo report into Metadata.
//
// Both bound lines are required. Unrecognized lines are ignored and, for
// repeated labels, the first occurrence wins.
func Parse(report string) (survey.Metadata, error) {
	var md survey.Metadata
	if strings.TrimSpace(report) == "" {
		return md, survey.ErrEmptyInput
	}

	var (
		haveMin, haveMax bool
		minV, maxV       [3]float64
		legacyCount      int64
		extCount         int64
		haveScale        bool
		haveOffset       bool
		crsLines         []string
	)

	sc := bufio.NewScanner(strings.NewReader(report))
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		lower := strings.ToLower(line)

		switch {
		case strings.HasPrefix(lower, labelMin):
			if haveMin {
				continue
			}
			v, err := parseTriple(line[len(labelMin):])
			if err != nil {
				return survey.Metadata{}, fmt.Errorf("%w: min x y z: %v", survey.ErrMalformedReport, err)
			}
			minV, haveMin = v, true
		case strings.HasPrefix(lower, labelMax):
			if haveMax {
				continue
			}
			v, err := parseTriple(line[len(labelMax):])
			if err != nil {
				return survey.Metadata{}, fmt.Errorf("%w: max x y z: %v", survey.ErrMalformedReport, err)
			}
			maxV, haveMax = v, true
		case strings.HasPrefix(lower, labelExtPointCount):
			if n, ok := parseCount(line[len(labelExtPointCount):]); ok && extCount == 0 {
				extCount = n
			}
		case strings.HasPrefix(lower, labelPointCount):
			if n, ok := parseCount(line[len(labelPointCount):]); ok && legacyCount == 0 {
				legacyCount = n
			}
		case strings.HasPrefix(lower, labelScale):
			if v, err := parseTriple(line[len(labelScale):]); err == nil && !haveScale {
				md.Scale, haveScale = v, true
			}
		case strings.HasPrefix(lower, labelOffset):
			if v, err := parseTriple(line[len(labelOffset):]); err == nil && !haveOffset {
				md.Offset, haveOffset = v, true
			}
		case strings.HasPrefix(lower, labelPointFormat):
			if md.PointFormat == "" {
				md.PointFormat = strings.TrimSpace(line[len(labelPointFormat):])
			}
		case strings.HasPrefix(lower, labelVersion):
			if md.Version == "" {
				md.Version = strings.TrimSpace(line[len(labelVersion):])
			}
		}

		if isCRSLine(lower) {
			crsLines = append(crsLines, line)
		}
	}
	if err := sc.Err(); err != nil {
		return survey.Metadata{}, fmt.Errorf("%w: %v", survey.ErrMalformedReport, err)
	}

	if !haveMin || !haveMax {
		return survey.Metadata{}, fmt.Errorf("%w: missing bounds (min=%v max=%v)", survey.ErrMalformedReport, haveMin, haveMax)
	}

	b := survey.Bounds{
		MinX: minV[0], MinY: minV[1], MinZ: minV[2],
		MaxX: maxV[0], MaxY: maxV[1], MaxZ: maxV[2],
		Set: true,
	}
	if !b.Valid() {
		return survey.Metadata{}, fmt.Errorf("%w: bounds out of order or non-finite", survey.ErrMalformedReport)
	}
	md.Bounds = b

	md.PointCount = legacyCount
	if extCount > 0 {
		md.PointCount = extCount
	}

	desc := strings.Join(crsLines, " | ")
	md.CRS = survey.CRS{
		Description: desc,
		Name:        ParseCRSName(desc),
		EPSG:        ExtractEPSG(desc),
	}
	md.Unit = InferUnit(desc)

	return md, nil
}

func isCRSLine(lower string) bool {
	for _, m := range crsMarkers {
		if strings.Contains(lower, m) {
			return true
		}
	}
	return false
}

func parseTriple(s string) ([3]float64, error) {
	var out [3]float64
	fields := strings.Fields(s)
	if len(fields) < 3 {
		return out, fmt.Errorf("want 3 values, got %d", len(fields))
	}
	for i := 0; i < 3; i++ {
		v, err := strconv.ParseFloat(fields[i], 64)
		if err != nil {
			return out, fmt.Errorf("value %d: %w", i, err)
		}
		out[i] = v
	}
	return out, nil
}

func parseCount(s string) (int64, bool) {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return 0, false
	}
	n, err := strconv.ParseInt(strings.ReplaceAll(fields[0], ",", ""), 10, 64)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}
