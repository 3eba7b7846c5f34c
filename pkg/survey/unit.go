// Package survey defines the per-file and per-run records produced by a
// point-cloud acreage scan.
package survey

import "strings"

// Unit is the linear unit of a file's stored coordinates.
type Unit uint8

// Coordinate units recognized from CRS descriptions.
const (
	UnitUnknown Unit = iota
	UnitFeet
	UnitUSSurveyFeet
	UnitMeters
	NumUnits // Sentinel value for array sizing
)

// Meters per linear unit.
const (
	MetersPerFoot         = 0.3048
	MetersPerUSSurveyFoot = 1200.0 / 3937.0
)

var unitNames = [NumUnits]string{
	UnitUnknown:      "unknown",
	UnitFeet:         "feet",
	UnitUSSurveyFeet: "us_survey_feet",
	UnitMeters:       "meters",
}

// String returns the unit's canonical name.
func (u Unit) String() string {
	if u < NumUnits {
		return unitNames[u]
	}
	return "unknown"
}

// ParseUnit maps a canonical unit name back to a Unit.
// Unrecognized names map to UnitUnknown.
func ParseUnit(s string) Unit {
	s = strings.ToLower(strings.TrimSpace(s))
	for u, name := range unitNames {
		if name == s {
			return Unit(u)
		}
	}
	return UnitUnknown
}

// IsFeet reports whether areas in this unit are measured in square feet.
func (u Unit) IsFeet() bool {
	return u == UnitFeet || u == UnitUSSurveyFeet
}

// SquareMetersPerSquareUnit converts a squared coordinate unit to m².
// Unknown units are treated as meters.
func (u Unit) SquareMetersPerSquareUnit() float64 {
	switch u {
	case UnitFeet:
		return MetersPerFoot * MetersPerFoot
	case UnitUSSurveyFeet:
		return MetersPerUSSurveyFoot * MetersPerUSSurveyFoot
	default:
		return 1
	}
}

// AreaMethod records which algorithm produced a file's preferred acreage.
type AreaMethod uint8

// Area methods.
const (
	MethodBoundingBox AreaMethod = iota
	MethodConvexHull
)

// String returns the method name.
func (m AreaMethod) String() string {
	switch m {
	case MethodConvexHull:
		return "convex_hull"
	default:
		return "bounding_box"
	}
}
