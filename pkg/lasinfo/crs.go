package lasinfo

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/eunmann/lasacres/pkg/survey"
)

// surveyFootMarkers identify US survey feet. They are checked before the
// plain feet tokens because "ftUS" and "Linear_Foot_US_Survey" contain both.
var surveyFootMarkers = []string{
	"us survey",
	"us_survey",
	"survey foot",
	"survey_foot",
	"foot_us",
	"ftus",
}

// InferUnit classifies a CRS description by its linear unit.
//
// Empty text is unknown. Anything that is neither a survey-feet nor a feet
// description falls back to meters, which can misclassify exotic systems.
func InferUnit(crsText string) survey.Unit {
	lower := strings.ToLower(crsText)
	if strings.TrimSpace(lower) == "" {
		return survey.UnitUnknown
	}
	for _, m := range surveyFootMarkers {
		if strings.Contains(lower, m) {
			return survey.UnitUSSurveyFeet
		}
	}
	words := strings.FieldsFunc(lower, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, w := range words {
		switch w {
		case "ft", "feet", "foot":
			return survey.UnitFeet
		}
	}
	return survey.UnitMeters
}

var (
	epsgQuotedRe   = regexp.MustCompile(`"EPSG"\s*,\s*"?(\d+)"?`)
	epsgColonRe    = regexp.MustCompile(`(?i)EPSG:\s*(\d+)`)
	projectedKeyRe = regexp.MustCompile(`value_offset\s+(\d+)\s*-\s*ProjectedCSTypeGeoKey`)
	citationRe     = regexp.MustCompile(`GTCitationGeoKey:\s*([^|]+)`)
	projectedRe    = regexp.MustCompile(`ProjectedCSTypeGeoKey:\s*([^|]+)`)
)

// ExtractEPSG returns the first EPSG code found in the CRS text, or "".
func ExtractEPSG(crsText string) string {
	for _, re := range []*regexp.Regexp{epsgQuotedRe, projectedKeyRe, epsgColonRe} {
		if m := re.FindStringSubmatch(crsText); m != nil {
			return m[1]
		}
	}
	return ""
}

// ParseCRSName isolates the main coordinate system name from the CRS text.
func ParseCRSName(crsText string) string {
	if strings.TrimSpace(crsText) == "" {
		return ""
	}
	for _, re := range []*regexp.Regexp{citationRe, projectedRe} {
		if m := re.FindStringSubmatch(crsText); m != nil {
			return strings.TrimSpace(m[1])
		}
	}
	first, _, _ := strings.Cut(crsText, "|")
	return strings.TrimSpace(first)
}
