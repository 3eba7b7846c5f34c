package area

import (
	"cmp"
	"fmt"
	"math"
	"slices"

	"github.com/eunmann/lasacres/pkg/survey"
)

// Point is a planar coordinate in the file's units.
type Point struct {
	X, Y float64
}

// Polygon is a closed ring without a repeated first vertex. MonotoneChain
// lists it counter-clockwise; other engines may not.
type Polygon []Point

// Engine computes the convex hull of a point set. Implementations return
// survey.ErrDegenerateGeometry when fewer than three distinct
// non-collinear points are given.
type Engine interface {
	Name() string
	Hull(pts []Point) (Polygon, error)
}

// EngineMonotoneChain is the name of the built-in engine.
const EngineMonotoneChain = "monotone-chain"

// MonotoneChain is Andrew's monotone chain hull. It sorts pts in place.
type MonotoneChain struct{}

// Name implements Engine.
func (MonotoneChain) Name() string { return EngineMonotoneChain }

// Hull implements Engine. Collinear boundary points are dropped.
func (MonotoneChain) Hull(pts []Point) (Polygon, error) {
	if err := checkFinite(pts); err != nil {
		return nil, err
	}
	slices.SortFunc(pts, func(a, b Point) int {
		if c := cmp.Compare(a.X, b.X); c != 0 {
			return c
		}
		return cmp.Compare(a.Y, b.Y)
	})
	pts = slices.Compact(pts)
	if len(pts) < 3 {
		return nil, fmt.Errorf("%w: %d distinct points", survey.ErrDegenerateGeometry, len(pts))
	}

	h := make([]Point, 0, 2*len(pts))
	for _, p := range pts {
		for len(h) >= 2 && cross(h[len(h)-2], h[len(h)-1], p) <= 0 {
			h = h[:len(h)-1]
		}
		h = append(h, p)
	}
	lower := len(h) + 1
	for i := len(pts) - 2; i >= 0; i-- {
		p := pts[i]
		for len(h) >= lower && cross(h[len(h)-2], h[len(h)-1], p) <= 0 {
			h = h[:len(h)-1]
		}
		h = append(h, p)
	}
	h = h[:len(h)-1]

	if len(h) < 3 {
		return nil, fmt.Errorf("%w: points are collinear", survey.ErrDegenerateGeometry)
	}
	return Polygon(h), nil
}

// cross is the z component of (a->b) x (a->c).
func cross(a, b, c Point) float64 {
	return (b.X-a.X)*(c.Y-a.Y) - (b.Y-a.Y)*(c.X-a.X)
}

func checkFinite(pts []Point) error {
	for i, p := range pts {
		if math.IsNaN(p.X) || math.IsNaN(p.Y) || math.IsInf(p.X, 0) || math.IsInf(p.Y, 0) {
			return fmt.Errorf("%w: non-finite coordinate at point %d", survey.ErrComputationFailure, i)
		}
	}
	return nil
}

// PolygonArea returns the shoelace area of p. Vertices are taken relative
// to the first one to keep projected coordinates in a precise range.
func PolygonArea(p Polygon) float64 {
	if len(p) < 3 {
		return 0
	}
	o := p[0]
	var sum float64
	for i := range p {
		j := (i + 1) % len(p)
		ax, ay := p[i].X-o.X, p[i].Y-o.Y
		bx, by := p[j].X-o.X, p[j].Y-o.Y
		sum += ax*by - bx*ay
	}
	return math.Abs(sum) / 2
}
