package lasfile

import (
	"encoding/binary"
	"fmt"
	"io"
	"strings"
)

const vlrHeaderSize = 54

// Record IDs of the georeferencing VLRs under the LASF_Projection user ID.
const (
	RecordGeoKeyDirectory = 34735
	RecordGeoDoubleParams = 34736
	RecordGeoASCIIParams  = 34737
	RecordWKT             = 2112
)

const projectionUserID = "LASF_Projection"

// GeoTIFF keys read from the key directory.
const (
	KeyGTModelType     = 1024
	KeyGTCitation      = 1026
	KeyProjectedCSType = 3072
	KeyProjLinearUnits = 3076
)

// EPSG linear unit codes carried by KeyProjLinearUnits.
const (
	LinearUnitMeter        = 9001
	LinearUnitFoot         = 9002
	LinearUnitUSSurveyFoot = 9003
)

const (
	geoKeyEntryShorts       = 4
	geoKeyDirectoryMinBytes = 8
)

// GeoKey is one entry of the GeoKeyDirectoryTag.
type GeoKey struct {
	ID          uint16
	Location    uint16
	Count       uint16
	ValueOffset uint16
}

// Key returns the first key with the given id.
func (h *Header) Key(id uint16) (GeoKey, bool) {
	for _, k := range h.GeoKeys {
		if k.ID == id {
			return k, true
		}
	}
	return GeoKey{}, false
}

func (h *Header) readVLRs(r io.ReaderAt, size int64) error {
	off := int64(h.HeaderSize)
	var hdr [vlrHeaderSize]byte
	for i := uint32(0); i < h.NumVLRs; i++ {
		if off+vlrHeaderSize > size {
			return fmt.Errorf("vlr %d: truncated header at offset %d", i, off)
		}
		if _, err := r.ReadAt(hdr[:], off); err != nil {
			return fmt.Errorf("vlr %d: %w", i, err)
		}
		userID := cString(hdr[2:18])
		recordID := binary.LittleEndian.Uint16(hdr[18:])
		length := int64(binary.LittleEndian.Uint16(hdr[20:]))
		off += vlrHeaderSize

		if off+length > size {
			return fmt.Errorf("vlr %d: payload of %d bytes runs past end of file", i, length)
		}
		if userID == projectionUserID && length > 0 {
			payload := make([]byte, length)
			if _, err := r.ReadAt(payload, off); err != nil {
				return fmt.Errorf("vlr %d: %w", i, err)
			}
			h.applyProjection(recordID, payload)
		}
		off += length
	}
	return nil
}

func (h *Header) applyProjection(recordID uint16, payload []byte) {
	switch recordID {
	case RecordGeoKeyDirectory:
		h.GeoKeys = parseGeoKeys(payload)
	case RecordGeoASCIIParams:
		h.GeoASCII = strings.TrimRight(cString(payload), "|")
	case RecordWKT:
		h.WKT = cString(payload)
	}
}

func parseGeoKeys(b []byte) []GeoKey {
	if len(b) < geoKeyDirectoryMinBytes {
		return nil
	}
	le := binary.LittleEndian
	n := int(le.Uint16(b[6:]))
	keys := make([]GeoKey, 0, n)
	for i := 0; i < n; i++ {
		at := geoKeyDirectoryMinBytes + i*geoKeyEntryShorts*2
		if at+geoKeyEntryShorts*2 > len(b) {
			break
		}
		keys = append(keys, GeoKey{
			ID:          le.Uint16(b[at:]),
			Location:    le.Uint16(b[at+2:]),
			Count:       le.Uint16(b[at+4:]),
			ValueOffset: le.Uint16(b[at+6:]),
		})
	}
	return keys
}
