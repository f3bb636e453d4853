// Package segment assigns exactly one audience segment to a location.
package segment

import (
	"strings"

	"github.com/varunity/affinityserve/internal/models"
)

// Rule is one ordered classification step. Rules are evaluated in sequence and
// the first match wins, so a city present in two lists always resolves to the
// earlier rule.
type Rule struct {
	Name    string
	Segment models.Segment
	Match   func(models.Location) bool
}

// Classifier maps a Location to a Segment. It is safe for concurrent use.
type Classifier struct {
	rules []Rule
}

// NewClassifier returns a classifier for visitors whose home country is home.
func NewClassifier(home string) *Classifier {
	home = strings.ToUpper(strings.TrimSpace(home))
	if home == "" {
		home = "US"
	}
	return &Classifier{rules: []Rule{
		{
			Name:    "foreign-country",
			Segment: models.SegmentInternational,
			Match:   func(l models.Location) bool { return l.CountryCode != home },
		},
		{
			Name:    "dc-metro",
			Segment: models.SegmentLocal,
			Match: func(l models.Location) bool {
				return cityIn(l.City, dcMetroCities) || regionIn(l.Region, localRegions)
			},
		},
		{
			Name:    "healthcare-hub",
			Segment: models.SegmentHealthcare,
			Match:   func(l models.Location) bool { return cityIn(l.City, healthcareHubs) },
		},
		{
			Name:    "drupal-conference-city",
			Segment: models.SegmentDrupalCommunity,
			Match:   func(l models.Location) bool { return cityIn(l.City, drupalConferenceCities) },
		},
		{
			Name:    "tech-hub",
			Segment: models.SegmentTechHub,
			Match:   func(l models.Location) bool { return cityIn(l.City, techHubCities) },
		},
	}}
}

// Rules returns the ordered rule list.
func (c *Classifier) Rules() []Rule {
	out := make([]Rule, len(c.rules))
	copy(out, c.rules)
	return out
}

// Classify returns the segment for loc. Unmatched locations are general.
func (c *Classifier) Classify(loc models.Location) models.Segment {
	seg, _ := c.ClassifyWithRule(loc)
	return seg
}

// ClassifyWithRule also reports the name of the rule that matched, or
// "default" when none did.
func (c *Classifier) ClassifyWithRule(loc models.Location) (models.Segment, string) {
	for _, r := range c.rules {
		if r.Match(loc) {
			return r.Segment, r.Name
		}
	}
	return models.SegmentGeneral, "default"
}

func cityIn(city string, list []string) bool {
	if city == "" {
		return false
	}
	city = strings.ToLower(city)
	for _, c := range list {
		if strings.Contains(city, strings.ToLower(c)) {
			return true
		}
	}
	return false
}

func regionIn(region string, list []string) bool {
	for _, r := range list {
		if region == r {
			return true
		}
	}
	return false
}
