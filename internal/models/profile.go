package models

// AffinityProfile is the personalised bundle of copy and asset references for a
// visitor. It is derived on every request and never stored.
type AffinityProfile struct {
	Segment           Segment  `json:"segment"`
	Greeting          string   `json:"greeting"`
	AvatarVariant     string   `json:"avatarVariant"`
	ContextualMessage string   `json:"contextualMessage,omitempty"`
	FeaturedContent   string   `json:"featuredContent,omitempty"`
	Headline          string   `json:"headline,omitempty"`
	Interest          Interest `json:"interest,omitempty"`
}

// VisitorContext is the payload returned to presentation layers.
type VisitorContext struct {
	Site              string          `json:"site,omitempty"`
	Geo               Location        `json:"geo"`
	Segment           Segment         `json:"segment"`
	Affinity          AffinityProfile `json:"affinity"`
	Personalized      bool            `json:"personalized"`
	OptedOut          bool            `json:"optedOut"`
	ExperimentVariant string          `json:"experimentVariant,omitempty"`
	AvatarGender      string          `json:"avatarGender,omitempty"`
	Trace             *DecisionTrace  `json:"trace,omitempty"`
}

// DefaultLocation is used when nothing better is known about a visitor.
func DefaultLocation() Location {
	return Location{
		Country:     "United States",
		CountryCode: "US",
		Timezone:    "America/New_York",
		Continent:   "North America",
	}
}
