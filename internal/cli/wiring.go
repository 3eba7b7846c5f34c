package cli

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/eunmann/lasacres/pkg/area"
	"github.com/eunmann/lasacres/pkg/lasfile"
	"github.com/eunmann/lasacres/pkg/lasinfo"
	"github.com/eunmann/lasacres/pkg/membudget"
	"github.com/eunmann/lasacres/pkg/processor"
	"github.com/eunmann/lasacres/pkg/survey"
)

// detectTool is replaced in tests.
var detectTool = lasinfo.DetectTool

// newDescriber picks the metadata source. In auto mode the lasinfo tool is
// used when installed and the native header reader otherwise.
func newDescriber(s Settings, log zerolog.Logger) (processor.Describer, error) {
	switch s.Metadata {
	case MetadataNative:
		return lasfile.HeaderSource{}, nil
	case MetadataLasinfo:
		tool, err := detectTool(s.Prefer64)
		if err != nil {
			return nil, err
		}
		return tool, nil
	default:
		tool, err := detectTool(s.Prefer64)
		if err == nil {
			return tool, nil
		}
		if !errors.Is(err, survey.ErrToolUnavailable) {
			return nil, err
		}
		log.Info().Err(err).Msg("lasinfo not found, reading headers natively")
		return lasfile.HeaderSource{}, nil
	}
}

// openPoints adapts the native point reader to the estimator.
func openPoints(path string) (area.PointSource, error) {
	r, err := lasfile.OpenPoints(path)
	if err != nil {
		return nil, err
	}
	return r, nil
}

// newEstimator builds the area estimator. Without --hull it only computes
// bounding boxes.
func newEstimator(s Settings, caps area.Capabilities, budget *membudget.Budget) (*area.Estimator, error) {
	est := &area.Estimator{
		Fraction:  s.SampleFraction,
		Budget:    budget,
		LowMemory: s.LowMemory,
	}
	if !s.Hull {
		return est, nil
	}
	if !caps.HullAvailable() {
		return nil, fmt.Errorf("hull requested but no hull engine is available")
	}
	engine, err := caps.Engine(s.Engine)
	if err != nil {
		return nil, err
	}
	est.Engine = engine
	est.Open = openPoints
	return est, nil
}
