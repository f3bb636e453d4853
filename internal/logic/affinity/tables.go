package affinity

import "github.com/varunity/affinityserve/internal/models"

// DefaultAvatar is the single portrait used by the interest-aware configuration.
const DefaultAvatar = "/images/avatar.jpg"

const onceUIProject = "/work/building-once-ui-a-customizable-design-system"

var segmentGreetings = map[models.Segment]string{
	models.SegmentLocal:           "Hey neighbor! 👋",
	models.SegmentTechHub:         "Welcome",
	models.SegmentFederal:         "Welcome",
	models.SegmentDrupalCommunity: "Hello, Drupal friend!",
	models.SegmentHealthcare:      "Welcome",
	models.SegmentInternational:   "Welcome from across the globe",
	models.SegmentGeneral:         "Welcome",
}

// Interests without an entry fall back to the segment greeting.
var interestGreetings = map[models.Interest]string{
	models.InterestDrupal:  "Hello, Drupal friend!",
	models.InterestGovtech: "Welcome",
}

var segmentMessages = map[models.Segment]string{
	models.SegmentLocal:           "Drupal architect based in the DC metro area. 20 years delivering government web platforms.",
	models.SegmentTechHub:         "Drupal architect specializing in government platforms. Federal & state agency experience.",
	models.SegmentFederal:         "20 years delivering web platforms for federal and state agencies. Deep Drupal expertise, security clearance available.",
	models.SegmentDrupalCommunity: "Active Drupal contributor with 20 years of experience. From small sites to federal platforms.",
	models.SegmentHealthcare:      "Currently building HIPAA-compliant healthcare platforms at Express Scripts with Drupal backend.",
	models.SegmentInternational:   "AI-enabled full-stack architect. Leveraging LLMs and modern tooling to accelerate enterprise development.",
	models.SegmentGeneral:         "Drupal architect with 20 years delivering government platforms. Federal & state agency experience.",
}

var interestMessages = map[models.Interest]string{
	models.InterestDrupal:  "Deep Drupal expertise from small nonprofits to federal platforms.",
	models.InterestGovtech: "20 years delivering web platforms for government. I understand compliance, accessibility, and the procurement process.",
}

var segmentFeatured = map[models.Segment]string{
	models.SegmentLocal:           onceUIProject,
	models.SegmentTechHub:         onceUIProject,
	models.SegmentFederal:         onceUIProject,
	models.SegmentDrupalCommunity: onceUIProject,
	models.SegmentHealthcare:      onceUIProject,
	models.SegmentInternational:   onceUIProject,
	models.SegmentGeneral:         onceUIProject,
}

var interestFeatured = map[models.Interest]string{
	models.InterestFrontend: onceUIProject,
	models.InterestDrupal:   onceUIProject,
	models.InterestGovtech:  "/blog/what-government-gets-wrong-about-website-migrations",
}

var segmentHeadlines = map[models.Segment]string{
	models.SegmentLocal:           "Drupal architect & government technology consultant",
	models.SegmentTechHub:         "Drupal architect specializing in government platforms",
	models.SegmentFederal:         "Trusted Drupal architect for government web platforms",
	models.SegmentDrupalCommunity: "Drupal contributor & enterprise architect",
	models.SegmentHealthcare:      "Drupal architect building HIPAA-compliant platforms",
	models.SegmentInternational:   "AI-enabled architect building enterprise platforms faster",
	models.SegmentGeneral:         "Drupal architect & govtech consultant",
}

var interestHeadlines = map[models.Interest]string{
	models.InterestFrontend: "Modern frontend architecture for enterprise",
	models.InterestDrupal:   "Drupal architect with 20 years of government experience",
	models.InterestGovtech:  "Government web platforms built right",
}

// Tables is one complete lookup configuration. Interest tables may be empty;
// every segment table covers all segments.
type Tables struct {
	Name string

	SegmentGreetings  map[models.Segment]string
	SegmentMessages   map[models.Segment]string
	SegmentFeatured   map[models.Segment]string
	SegmentHeadlines  map[models.Segment]string
	InterestGreetings map[models.Interest]string
	InterestMessages  map[models.Interest]string
	InterestFeatured  map[models.Interest]string
	InterestHeadlines map[models.Interest]string

	// Avatar returns the avatar for a segment.
	Avatar func(models.Segment) string
}

// InterestAwareTables lets a detected interest override segment copy and uses
// one static avatar.
func InterestAwareTables() Tables {
	return Tables{
		Name:              models.ProfileModeInterestAware,
		SegmentGreetings:  segmentGreetings,
		SegmentMessages:   segmentMessages,
		SegmentFeatured:   segmentFeatured,
		SegmentHeadlines:  segmentHeadlines,
		InterestGreetings: interestGreetings,
		InterestMessages:  interestMessages,
		InterestFeatured:  interestFeatured,
		InterestHeadlines: interestHeadlines,
		Avatar:            func(models.Segment) string { return DefaultAvatar },
	}
}

// GeoOnlyTables ignores interest entirely and picks an avatar per segment.
func GeoOnlyTables() Tables {
	return Tables{
		Name:             models.ProfileModeGeoOnly,
		SegmentGreetings: segmentGreetings,
		SegmentMessages:  segmentMessages,
		SegmentFeatured:  segmentFeatured,
		SegmentHeadlines: segmentHeadlines,
		Avatar: func(s models.Segment) string {
			return "/images/avatars/" + string(s) + ".jpg"
		},
	}
}
