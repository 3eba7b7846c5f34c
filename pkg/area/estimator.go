package area

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/eunmann/lasacres/pkg/membudget"
	"github.com/eunmann/lasacres/pkg/survey"
)

// PointSource streams planar coordinates. Next returns io.EOF after the
// last point.
type PointSource interface {
	Next() (x, y float64, err error)
	Close() error
}

// Skipper is implemented by sources that can discard points without
// decoding them.
type Skipper interface {
	Skip(n uint64) error
}

// OpenFunc opens the point stream of a file.
type OpenFunc func(path string) (PointSource, error)

// Input is what the estimator needs to know about one file.
type Input struct {
	Path      string
	SizeBytes int64
	Bounds    survey.Bounds
	Unit      survey.Unit
	Points    int64

	// OnStage, if set, is called when hull work enters a new stage.
	OnStage func(stage string)
}

// Estimate is the area outcome for one file.
type Estimate struct {
	BBoxAcres      float64
	HullAcres      float64
	Method         survey.AreaMethod
	PointDensity   float64
	SampleFraction float64
	Stride         int64
	SampledPoints  int64
	HullVertices   int
	Warnings       []string

	// HullErr is why a requested hull fell back to the bounding box.
	HullErr error
}

// Warning text.
const (
	WarnUnknownUnit = "coordinate unit unknown; meters assumed"
	warnHullPrefix  = "convex hull unavailable, using bounding box: "
)

// maxPrealloc caps the initial sample capacity taken from header counts.
const maxPrealloc = 1 << 20

// relativeTolerance bounds float noise when comparing hull and box areas.
const relativeTolerance = 1e-9

// Estimator computes bounding-box acreage and, when Engine and Open are
// both set, convex-hull acreage over a deterministic sample.
//
// An Estimator holds no per-file state and may be shared by workers.
type Estimator struct {
	Engine Engine
	Open   OpenFunc

	// Fraction is the requested sampling fraction; tiers may lower it.
	Fraction float64

	// Budget, if set, bounds the memory of concurrently held samples.
	Budget *membudget.Budget

	// LowMemory forces MinFraction.
	LowMemory bool
}

// HullEnabled reports whether Estimate will attempt a hull.
func (e *Estimator) HullEnabled() bool {
	return e != nil && e.Engine != nil && e.Open != nil
}

// Estimate never fails: the bounding-box result is always filled in and
// any hull failure is recorded in HullErr and Warnings.
func (e *Estimator) Estimate(ctx context.Context, in Input) Estimate {
	var est Estimate

	bbox, caveat := BBoxAcres(in.Bounds, in.Unit)
	est.BBoxAcres = bbox
	est.Method = survey.MethodBoundingBox
	est.PointDensity = PointDensity(in.Points, in.Bounds.Width()*in.Bounds.Height(), in.Unit)
	if caveat {
		est.Warnings = append(est.Warnings, WarnUnknownUnit)
	}

	if !e.HullEnabled() || !in.Bounds.Valid() {
		return est
	}

	hullUnits, err := e.hull(ctx, in, &est)
	if err == nil {
		hullAcres := ToAcres(hullUnits, in.Unit)
		switch {
		case hullAcres <= 0:
			err = fmt.Errorf("%w: zero hull area", survey.ErrDegenerateGeometry)
		case hullAcres > bbox*(1+relativeTolerance)+relativeTolerance:
			err = fmt.Errorf("%w: hull area %.6f exceeds bounding box %.6f acres", survey.ErrComputationFailure, hullAcres, bbox)
		default:
			est.HullAcres = hullAcres
			est.Method = survey.MethodConvexHull
			est.PointDensity = PointDensity(in.Points, hullUnits, in.Unit)
		}
	}
	if err != nil {
		est.HullErr = err
		est.HullVertices = 0
		est.Warnings = append(est.Warnings, warnHullPrefix+err.Error())
	}
	return est
}

// hull samples the file and returns the hull area in squared units.
func (e *Estimator) hull(ctx context.Context, in Input, est *Estimate) (float64, error) {
	fraction := EffectiveFraction(in.SizeBytes, e.Fraction)
	if e.LowMemory && fraction > MinFraction {
		fraction = MinFraction
	}
	if e.Budget != nil {
		fraction = FitFraction(in.Points, fraction, e.Budget.Total())
	}
	stride := Stride(fraction)
	expected := SampledCount(in.Points, stride)
	est.SampleFraction = fraction
	est.Stride = stride

	if e.Budget != nil && expected > 0 {
		need := uint64(expected) * BytesPerPoint
		if err := e.Budget.Reserve(ctx, need); err != nil {
			return 0, fmt.Errorf("%w: reserve sample buffer: %v", survey.ErrComputationFailure, err)
		}
		defer e.Budget.Release(need)
	}

	stage(in, survey.StagePoints)
	pts, err := e.sample(in.Path, stride, expected)
	if err != nil {
		return 0, err
	}
	est.SampledPoints = int64(len(pts))

	stage(in, survey.StageHull)
	poly, err := safeHull(e.Engine, pts)
	if err != nil {
		return 0, err
	}
	est.HullVertices = len(poly)
	return PolygonArea(poly), nil
}

func stage(in Input, s string) {
	if in.OnStage != nil {
		in.OnStage(s)
	}
}

// sample keeps every stride-th point starting from index 0.
func (e *Estimator) sample(path string, stride, expected int64) ([]Point, error) {
	src, err := e.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open points: %w", err)
	}
	defer src.Close()

	skipper, canSkip := src.(Skipper)
	pts := make([]Point, 0, min(expected, maxPrealloc))
	for {
		x, y, err := src.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read points: %w", err)
		}
		pts = append(pts, Point{X: x, Y: y})

		if stride > 1 {
			if canSkip {
				if err := skipper.Skip(uint64(stride - 1)); err != nil {
					return nil, fmt.Errorf("skip points: %w", err)
				}
				continue
			}
			for i := int64(1); i < stride; i++ {
				if _, _, err := src.Next(); err != nil {
					if errors.Is(err, io.EOF) {
						return pts, nil
					}
					return nil, fmt.Errorf("read points: %w", err)
				}
			}
		}
	}
	return pts, nil
}

func safeHull(engine Engine, pts []Point) (poly Polygon, err error) {
	defer func() {
		if r := recover(); r != nil {
			poly, err = nil, fmt.Errorf("%w: %s engine panicked: %v", survey.ErrComputationFailure, engine.Name(), r)
		}
	}()
	return engine.Hull(pts)
}
