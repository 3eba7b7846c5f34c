// Package area estimates the footprint of a survey file in acres, either
// from its bounding rectangle or from the convex hull of a deterministic
// sample of its points.
package area

import "github.com/eunmann/lasacres/pkg/survey"

// Conversion constants.
const (
	SquareFeetPerAcre   = 43560.0
	SquareMetersPerAcre = 4046.8564224
)

// ToAcres converts a planar area in squared coordinate units to acres.
// Both feet variants divide by 43560; meters and unknown units divide by
// 4046.8564224.
func ToAcres(area float64, u survey.Unit) float64 {
	if u.IsFeet() {
		return area / SquareFeetPerAcre
	}
	return area / SquareMetersPerAcre
}

// BBoxAcres returns |maxX-minX| * |maxY-minY| in acres. caveat is true
// when the unit is unknown and meters were assumed. Invalid bounds yield 0.
func BBoxAcres(b survey.Bounds, u survey.Unit) (acres float64, caveat bool) {
	if !b.Valid() {
		return 0, false
	}
	return ToAcres(b.Width()*b.Height(), u), u == survey.UnitUnknown
}

// PointDensity returns points per square meter for an area expressed in
// squared coordinate units.
func PointDensity(points int64, areaUnits float64, u survey.Unit) float64 {
	sqm := areaUnits * u.SquareMetersPerSquareUnit()
	if points <= 0 || sqm <= 0 {
		return 0
	}
	return float64(points) / sqm
}
