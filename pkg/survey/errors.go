package survey

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedReport indicates a metadata report missing a required bound
	// field or carrying a non-numeric one.
	ErrMalformedReport = errors.New("malformed metadata report")
	// ErrEmptyInput indicates the metadata tool produced no usable output.
	ErrEmptyInput = errors.New("empty metadata input")
	// ErrDegenerateGeometry indicates fewer than three distinct, non-collinear
	// points were available for a hull.
	ErrDegenerateGeometry = errors.New("degenerate geometry")
	// ErrComputationFailure indicates an unexpected fault while loading points
	// or computing a hull.
	ErrComputationFailure = errors.New("hull computation failure")
	// ErrEmptyResultSet indicates no file in a run succeeded. It is reported,
	// never raised.
	ErrEmptyResultSet = errors.New("no successful files")
	// ErrFileTooLarge indicates a file exceeded the per-file size cap.
	ErrFileTooLarge = errors.New("file exceeds size limit")
	// ErrToolUnavailable indicates no lasinfo executable was found.
	ErrToolUnavailable = errors.New("lasinfo tool not available")
	// ErrUnsupportedFormat indicates a file the native reader cannot decode.
	ErrUnsupportedFormat = errors.New("unsupported point cloud format")
)

// Processing stages used in FileError and progress events.
const (
	StageStat     = "stat"
	StageMetadata = "reading metadata"
	StagePoints   = "loading points"
	StageHull     = "computing convex hull"
	StageDone     = "done"
)

// FileError ties a failure to the file and stage that produced it.
type FileError struct {
	Path  string
	Stage string
	Err   error
}

func (e *FileError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Path, e.Stage, e.Err)
}

func (e *FileError) Unwrap() error {
	return e.Err
}
