package lasfile

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/eunmann/lasacres/pkg/survey"
)

// Extension is the survey file extension matched by Discover.
const Extension = ".las"

// HeaderSource produces lasinfo-style reports from the file header without
// running an external tool.
type HeaderSource struct{}

// Name identifies the metadata source in logs.
func (HeaderSource) Name() string { return "native" }

// Describe reads path's header and renders it as a report.
func (HeaderSource) Describe(ctx context.Context, path string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	h, err := ReadHeaderFile(path)
	if err != nil {
		if errors.Is(err, ErrNotLAS) {
			return "", fmt.Errorf("%w: %v", survey.ErrMalformedReport, err)
		}
		return "", err
	}
	return h.Report(filepath.Base(path)), nil
}

// ReadHeaderFile opens path and decodes its header.
func ReadHeaderFile(path string) (*Header, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return nil, err
	}
	return ReadHeader(f, st.Size())
}

// Discover lists the LAS files directly inside dir, sorted by path. The
// extension match is case-insensitive and subdirectories are not entered.
func Discover(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read survey directory: %w", err)
	}
	paths := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), Extension) {
			continue
		}
		paths = append(paths, filepath.Join(dir, e.Name()))
	}
	sort.Strings(paths)
	return paths, nil
}
