package models

import "strings"

// Location is the geographic record derived for a single request. Every field is
// a plain string so downstream matching never has to handle missing values:
// unknown fields are empty, CountryCode is always set.
type Location struct {
	Country     string `json:"country"`
	CountryCode string `json:"countryCode"`
	Region      string `json:"region"`
	City        string `json:"city"`
	Timezone    string `json:"timezone"`
	Continent   string `json:"continent"`
}

// Segment is the audience classification derived from a Location.
type Segment string

const (
	SegmentLocal           Segment = "local"
	SegmentTechHub         Segment = "tech-hub"
	SegmentFederal         Segment = "federal"
	SegmentDrupalCommunity Segment = "drupal-community"
	SegmentHealthcare      Segment = "healthcare"
	SegmentInternational   Segment = "international"
	SegmentGeneral         Segment = "general"
)

// Segments lists every segment in a fixed order.
var Segments = []Segment{
	SegmentLocal,
	SegmentTechHub,
	SegmentFederal,
	SegmentDrupalCommunity,
	SegmentHealthcare,
	SegmentInternational,
	SegmentGeneral,
}

// ParseSegment returns the segment named by s. Matching ignores case and
// surrounding whitespace; unknown names report false.
func ParseSegment(s string) (Segment, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, seg := range Segments {
		if string(seg) == s {
			return seg, true
		}
	}
	return "", false
}

// Interest is a content-affinity tag sourced independently of geography.
// The empty Interest means no interest signal.
type Interest string

const (
	InterestNone     Interest = ""
	InterestFrontend Interest = "frontend"
	InterestDrupal   Interest = "drupal"
	InterestGovtech  Interest = "govtech"
	InterestGeneral  Interest = "general"
)

// Interests lists every named interest.
var Interests = []Interest{InterestFrontend, InterestDrupal, InterestGovtech, InterestGeneral}

// ParseInterest returns a detectable interest. "general" is part of the
// vocabulary but carries no signal, so it parses as false like any unknown value.
func ParseInterest(s string) (Interest, bool) {
	switch Interest(strings.ToLower(strings.TrimSpace(s))) {
	case InterestFrontend:
		return InterestFrontend, true
	case InterestDrupal:
		return InterestDrupal, true
	case InterestGovtech:
		return InterestGovtech, true
	}
	return InterestNone, false
}

// Present reports whether the interest carries a signal.
func (i Interest) Present() bool {
	return i != InterestNone && i != InterestGeneral
}
