package lasfile

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/eunmann/lasacres/pkg/survey"
)

// Every point format starts with int32 X, Y, Z.
const minRecordLength = 12

const readBufferSize = 1 << 20

// PointReader streams scaled X/Y coordinates from a LAS file.
type PointReader struct {
	f         *os.File
	br        *bufio.Reader
	header    *Header
	rec       []byte
	remaining uint64
}

// OpenPoints opens path and positions a reader at its first point record.
func OpenPoints(path string) (*PointReader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	h, err := ReadHeader(f, st.Size())
	if err != nil {
		f.Close()
		return nil, err
	}
	r, err := newPointReader(f, h, st.Size())
	if err != nil {
		f.Close()
		return nil, err
	}
	return r, nil
}

func newPointReader(f *os.File, h *Header, size int64) (*PointReader, error) {
	if h.Compressed {
		return nil, fmt.Errorf("%w: compressed point format %d", survey.ErrUnsupportedFormat, h.PointFormat)
	}
	if h.RecordLength < minRecordLength {
		return nil, fmt.Errorf("%w: point record length %d", survey.ErrMalformedReport, h.RecordLength)
	}
	if int64(h.PointDataOffset) > size {
		return nil, fmt.Errorf("%w: point data offset %d past end of file", survey.ErrMalformedReport, h.PointDataOffset)
	}
	if _, err := f.Seek(int64(h.PointDataOffset), io.SeekStart); err != nil {
		return nil, err
	}

	// Trust the file length over the header count for truncated files.
	available := uint64(size-int64(h.PointDataOffset)) / uint64(h.RecordLength)
	remaining := h.PointCount
	if available < remaining {
		remaining = available
	}

	return &PointReader{
		f:         f,
		br:        bufio.NewReaderSize(f, readBufferSize),
		header:    h,
		rec:       make([]byte, h.RecordLength),
		remaining: remaining,
	}, nil
}

// Header returns the decoded header.
func (r *PointReader) Header() *Header { return r.header }

// Remaining returns how many point records are left to read.
func (r *PointReader) Remaining() uint64 { return r.remaining }

// Next returns the next point's scaled X and Y. It returns io.EOF after the
// last point.
func (r *PointReader) Next() (x, y float64, err error) {
	if r.remaining == 0 {
		return 0, 0, io.EOF
	}
	if _, err := io.ReadFull(r.br, r.rec); err != nil {
		if err == io.ErrUnexpectedEOF {
			r.remaining = 0
			return 0, 0, io.EOF
		}
		return 0, 0, err
	}
	r.remaining--

	le := binary.LittleEndian
	rawX := int32(le.Uint32(r.rec[0:]))
	rawY := int32(le.Uint32(r.rec[4:]))
	x = float64(rawX)*r.header.Scale[0] + r.header.Offset[0]
	y = float64(rawY)*r.header.Scale[1] + r.header.Offset[1]
	return x, y, nil
}

// Skip discards the next n point records.
func (r *PointReader) Skip(n uint64) error {
	if n == 0 {
		return nil
	}
	if n > r.remaining {
		n = r.remaining
	}
	if _, err := r.br.Discard(int(n) * len(r.rec)); err != nil {
		if err == io.EOF {
			r.remaining = 0
			return nil
		}
		return err
	}
	r.remaining -= n
	return nil
}

// Close releases the file.
func (r *PointReader) Close() error {
	return r.f.Close()
}
