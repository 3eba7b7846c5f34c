//go:build geos

package area

import (
	"fmt"

	"github.com/twpayne/go-geos"

	"github.com/eunmann/lasacres/pkg/survey"
)

// EngineGEOS is the name of the libgeos-backed engine.
const EngineGEOS = "geos"

func init() {
	registerEngine(EngineGEOS, func() Engine { return GEOS{} })
}

// GEOS computes hulls with libgeos. Each call uses its own context since
// GEOS contexts are not safe for concurrent use.
type GEOS struct{}

// Name implements Engine.
func (GEOS) Name() string { return EngineGEOS }

// Hull implements Engine.
func (GEOS) Hull(pts []Point) (Polygon, error) {
	if err := checkFinite(pts); err != nil {
		return nil, err
	}
	if len(pts) < 3 {
		return nil, fmt.Errorf("%w: %d points", survey.ErrDegenerateGeometry, len(pts))
	}

	gctx := geos.NewContext()
	members := make([]*geos.Geom, len(pts))
	for i, p := range pts {
		members[i] = gctx.NewPoint([]float64{p.X, p.Y})
	}
	multi := gctx.NewCollection(geos.TypeIDMultiPoint, members)
	defer multi.Destroy()

	hull := multi.ConvexHull()
	defer hull.Destroy()

	if hull.TypeID() != geos.TypeIDPolygon || hull.Area() == 0 {
		return nil, fmt.Errorf("%w: hull collapsed to %s", survey.ErrDegenerateGeometry, hull.Type())
	}

	coords := hull.ExteriorRing().CoordSeq().ToCoords()
	if len(coords) > 1 {
		coords = coords[:len(coords)-1]
	}
	poly := make(Polygon, len(coords))
	for i, c := range coords {
		poly[i] = Point{X: c[0], Y: c[1]}
	}
	if len(poly) < 3 {
		return nil, fmt.Errorf("%w: %d hull vertices", survey.ErrDegenerateGeometry, len(poly))
	}
	return poly, nil
}
