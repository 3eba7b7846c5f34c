// Package lasfile reads LAS point-cloud files directly: the public header,
// the georeferencing variable-length records, and the point records.
//
// Compressed (LAZ) point data is not decoded.
package lasfile

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/eunmann/lasacres/pkg/survey"
)

// Signature is the magic at offset 0 of every LAS file.
const Signature = "LASF"

// Public header layout.
const (
	legacyHeaderSize = 227
	maxHeaderRead    = 375

	offVersionMajor    = 24
	offVersionMinor    = 25
	offSystemID        = 26
	offSoftware        = 58
	offHeaderSize      = 94
	offPointDataOffset = 96
	offNumVLRs         = 100
	offPointFormat     = 104
	offRecordLength    = 105
	offLegacyCount     = 107
	offScale           = 131
	offOffset          = 155
	offMaxX            = 179
	offExtendedCount   = 247
)

// compressedBits are set on the point format byte by LAZ writers.
const compressedBits = 0xC0

// ErrNotLAS is returned when the signature does not match.
var ErrNotLAS = errors.New("lasfile: not a LAS file")

// Header is the decoded public header plus georeferencing records.
type Header struct {
	VersionMajor    uint8
	VersionMinor    uint8
	SystemID        string
	Software        string
	HeaderSize      uint16
	PointDataOffset uint32
	NumVLRs         uint32
	PointFormat     uint8
	Compressed      bool
	RecordLength    uint16
	PointCount      uint64
	Scale           [3]float64
	Offset          [3]float64
	Min             [3]float64
	Max             [3]float64

	GeoKeys  []GeoKey
	GeoASCII string
	WKT      string
}

// Version returns "major.minor".
func (h *Header) Version() string {
	return fmt.Sprintf("%d.%d", h.VersionMajor, h.VersionMinor)
}

// Bounds returns the header extent as survey bounds.
func (h *Header) Bounds() survey.Bounds {
	return survey.Bounds{
		MinX: h.Min[0], MinY: h.Min[1], MinZ: h.Min[2],
		MaxX: h.Max[0], MaxY: h.Max[1], MaxZ: h.Max[2],
		Set: true,
	}
}

// ReadHeader decodes the public header and VLRs from r, which holds size
// bytes.
func ReadHeader(r io.ReaderAt, size int64) (*Header, error) {
	if size < legacyHeaderSize {
		return nil, fmt.Errorf("%w: %d bytes is shorter than a header", ErrNotLAS, size)
	}
	n := int64(maxHeaderRead)
	if size < n {
		n = size
	}
	buf := make([]byte, n)
	if _, err := r.ReadAt(buf, 0); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("read header: %w", err)
	}
	if string(buf[:4]) != Signature {
		return nil, ErrNotLAS
	}

	le := binary.LittleEndian
	h := &Header{
		VersionMajor:    buf[offVersionMajor],
		VersionMinor:    buf[offVersionMinor],
		SystemID:        cString(buf[offSystemID : offSystemID+32]),
		Software:        cString(buf[offSoftware : offSoftware+32]),
		HeaderSize:      le.Uint16(buf[offHeaderSize:]),
		PointDataOffset: le.Uint32(buf[offPointDataOffset:]),
		NumVLRs:         le.Uint32(buf[offNumVLRs:]),
		RecordLength:    le.Uint16(buf[offRecordLength:]),
		PointCount:      uint64(le.Uint32(buf[offLegacyCount:])),
	}
	format := buf[offPointFormat]
	h.Compressed = format&compressedBits != 0
	h.PointFormat = format &^ compressedBits

	for i := 0; i < 3; i++ {
		h.Scale[i] = float64At(buf, offScale+8*i)
		h.Offset[i] = float64At(buf, offOffset+8*i)
		// Extents are stored max, min per axis.
		h.Max[i] = float64At(buf, offMaxX+16*i)
		h.Min[i] = float64At(buf, offMaxX+16*i+8)
	}

	if h.VersionMajor == 1 && h.VersionMinor >= 4 && len(buf) >= offExtendedCount+8 {
		if ext := le.Uint64(buf[offExtendedCount:]); ext > 0 {
			h.PointCount = ext
		}
	}

	if int64(h.HeaderSize) < legacyHeaderSize || int64(h.HeaderSize) > size {
		return nil, fmt.Errorf("%w: header size %d", survey.ErrMalformedReport, h.HeaderSize)
	}
	if err := h.readVLRs(r, size); err != nil {
		return nil, err
	}
	return h, nil
}

func float64At(b []byte, off int) float64 {
	return math.Float64frombits(binary.LittleEndian.Uint64(b[off:]))
}

func cString(b []byte) string {
	if i := strings.IndexByte(string(b), 0); i >= 0 {
		b = b[:i]
	}
	return strings.TrimSpace(string(b))
}
