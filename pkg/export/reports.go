package export

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/zstd"

	"github.com/eunmann/lasacres/pkg/survey"
)

// ReportLine is one entry of the raw report archive.
type ReportLine struct {
	Name   string `json:"name"`
	Path   string `json:"path"`
	Error  string `json:"error,omitempty"`
	Report string `json:"report"`
}

// WriteReports archives every record's raw metadata report as zstd-compressed
// JSON lines.
func WriteReports(path string, records []survey.FileRecord) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}

	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedBetterCompression))
	if err != nil {
		f.Close()
		return fmt.Errorf("create zstd encoder: %w", err)
	}
	bw := bufio.NewWriterSize(enc, 64*1024)
	je := json.NewEncoder(bw)

	for _, rec := range records {
		line := ReportLine{Name: rec.Name, Path: rec.Path, Error: rec.ErrorString(), Report: rec.RawReport}
		if err := je.Encode(line); err != nil {
			enc.Close()
			f.Close()
			return fmt.Errorf("encode %s: %w", rec.Name, err)
		}
	}

	if err := bw.Flush(); err != nil {
		enc.Close()
		f.Close()
		return fmt.Errorf("flush: %w", err)
	}
	if err := enc.Close(); err != nil {
		f.Close()
		return fmt.Errorf("close zstd encoder: %w", err)
	}
	return f.Close()
}

// ReadReports decodes an archive written by WriteReports.
func ReadReports(path string) ([]ReportLine, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}
	defer dec.Close()

	var lines []ReportLine
	jd := json.NewDecoder(dec)
	for {
		var line ReportLine
		err := jd.Decode(&line)
		if errors.Is(err, io.EOF) {
			return lines, nil
		}
		if err != nil {
			return nil, fmt.Errorf("decode report line %d: %w", len(lines)+1, err)
		}
		lines = append(lines, line)
	}
}
