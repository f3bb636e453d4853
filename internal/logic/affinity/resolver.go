// Package affinity turns a segment and optional interest into the copy and
// asset references shown to a visitor.
package affinity

import (
	"fmt"
	"strings"
	"time"
	_ "time/tzdata" // embedded zoneinfo

	"github.com/varunity/affinityserve/internal/models"
)

// Resolver resolves profiles from one table configuration.
type Resolver struct {
	t Tables
}

// NewResolver returns a Resolver over t.
func NewResolver(t Tables) *Resolver {
	return &Resolver{t: t}
}

// ForMode returns the resolver for a named configuration.
func ForMode(mode string) (*Resolver, error) {
	switch mode {
	case models.ProfileModeInterestAware, "":
		return NewResolver(InterestAwareTables()), nil
	case models.ProfileModeGeoOnly:
		return NewResolver(GeoOnlyTables()), nil
	}
	return nil, fmt.Errorf("unknown affinity profile %q", mode)
}

// Mode returns the configuration name.
func (r *Resolver) Mode() string { return r.t.Name }

// Resolve merges segment and interest field by field: greeting, message and
// featured content come from the interest tables when they have an entry and
// from the segment tables otherwise.
func (r *Resolver) Resolve(seg models.Segment, interest models.Interest) models.AffinityProfile {
	if _, ok := r.t.SegmentGreetings[seg]; !ok {
		seg = models.SegmentGeneral
	}
	p := models.AffinityProfile{
		Segment:           seg,
		Greeting:          pick(r.t.InterestGreetings, interest, r.t.SegmentGreetings[seg]),
		ContextualMessage: pick(r.t.InterestMessages, interest, r.t.SegmentMessages[seg]),
		FeaturedContent:   pick(r.t.InterestFeatured, interest, r.t.SegmentFeatured[seg]),
		Headline:          r.Headline(seg, interest),
		Interest:          interest,
	}
	if r.t.Avatar != nil {
		p.AvatarVariant = r.t.Avatar(seg)
	}
	return p
}

// Headline returns the interest headline when one exists, else the segment one.
func (r *Resolver) Headline(seg models.Segment, interest models.Interest) string {
	if h, ok := r.t.SegmentHeadlines[seg]; ok {
		return pick(r.t.InterestHeadlines, interest, h)
	}
	return pick(r.t.InterestHeadlines, interest, r.t.SegmentHeadlines[models.SegmentGeneral])
}

// SegmentGreeting returns the plain greeting for a segment.
func (r *Resolver) SegmentGreeting(seg models.Segment) string {
	if g, ok := r.t.SegmentGreetings[seg]; ok {
		return g
	}
	return r.t.SegmentGreetings[models.SegmentGeneral]
}

// CombinedGreeting prefixes the segment greeting with a time-of-day salutation
// for tz. The general segment gets the salutation alone.
func (r *Resolver) CombinedGreeting(seg models.Segment, tz string, now time.Time) string {
	prefix := TimeOfDayGreeting(tz, now)
	if seg == models.SegmentGeneral {
		return prefix
	}
	return prefix + ", " + strings.ToLower(r.SegmentGreeting(seg))
}

// TimeOfDayGreeting maps the local hour in tz to a salutation. Unknown
// timezones get "Hello".
func TimeOfDayGreeting(tz string, now time.Time) string {
	if tz == "" {
		return "Hello"
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return "Hello"
	}
	switch h := now.In(loc).Hour(); {
	case h >= 5 && h < 12:
		return "Good morning"
	case h >= 12 && h < 17:
		return "Good afternoon"
	case h >= 17 && h < 21:
		return "Good evening"
	}
	return "Hello"
}

func pick(table map[models.Interest]string, interest models.Interest, fallback string) string {
	if !interest.Present() {
		return fallback
	}
	if v, ok := table[interest]; ok && v != "" {
		return v
	}
	return fallback
}
