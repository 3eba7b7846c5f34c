package lasfile

import (
	"fmt"
	"strconv"
	"strings"
)

var linearUnitNames = map[uint16]string{
	LinearUnitMeter:        "Linear_Meter",
	LinearUnitFoot:         "Linear_Foot",
	LinearUnitUSSurveyFoot: "Linear_Foot_US_Survey",
}

// Report renders the header in the layout lasinfo uses, so the result can
// go through the same parser as tool output.
func (h *Header) Report(name string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "lasfile report for '%s'\n", name)
	b.WriteString("reporting all LAS header entries:\n")
	fmt.Fprintf(&b, "  file signature:             '%s'\n", Signature)
	fmt.Fprintf(&b, "  version major.minor:        %s\n", h.Version())
	fmt.Fprintf(&b, "  system identifier:          '%s'\n", h.SystemID)
	fmt.Fprintf(&b, "  generating software:        '%s'\n", h.Software)
	fmt.Fprintf(&b, "  header size:                %d\n", h.HeaderSize)
	fmt.Fprintf(&b, "  offset to point data:       %d\n", h.PointDataOffset)
	fmt.Fprintf(&b, "  number var. length records: %d\n", h.NumVLRs)
	fmt.Fprintf(&b, "  point data format:          %d\n", h.PointFormat)
	fmt.Fprintf(&b, "  point data record length:   %d\n", h.RecordLength)
	fmt.Fprintf(&b, "  number of point records:    %d\n", h.PointCount)
	fmt.Fprintf(&b, "  scale factor x y z:         %s\n", triple(h.Scale))
	fmt.Fprintf(&b, "  offset x y z:               %s\n", triple(h.Offset))
	fmt.Fprintf(&b, "  min x y z:                  %s\n", triple(h.Min))
	fmt.Fprintf(&b, "  max x y z:                  %s\n", triple(h.Max))

	if len(h.GeoKeys) > 0 {
		fmt.Fprintf(&b, "    GeoKeyDirectoryTag number of keys %d\n", len(h.GeoKeys))
		for _, k := range h.GeoKeys {
			if line := geoKeyLine(k); line != "" {
				b.WriteString("      " + line + "\n")
			}
		}
	}
	if h.GeoASCII != "" {
		fmt.Fprintf(&b, "    GTCitationGeoKey: %s\n", h.GeoASCII)
	}
	if h.WKT != "" {
		fmt.Fprintf(&b, "    WKT OGC COORDINATE SYSTEM: %s\n", h.WKT)
	}
	return b.String()
}

func geoKeyLine(k GeoKey) string {
	prefix := fmt.Sprintf("key %d tiff_tag_location %d count %d value_offset %d", k.ID, k.Location, k.Count, k.ValueOffset)
	switch k.ID {
	case KeyProjectedCSType:
		return prefix + " - ProjectedCSTypeGeoKey: EPSG:" + strconv.Itoa(int(k.ValueOffset))
	case KeyProjLinearUnits:
		name, ok := linearUnitNames[k.ValueOffset]
		if !ok {
			name = "unit " + strconv.Itoa(int(k.ValueOffset))
		}
		return prefix + " - ProjLinearUnitsGeoKey: " + name
	default:
		return ""
	}
}

func triple(v [3]float64) string {
	return strconv.FormatFloat(v[0], 'f', -1, 64) + " " +
		strconv.FormatFloat(v[1], 'f', -1, 64) + " " +
		strconv.FormatFloat(v[2], 'f', -1, 64)
}
