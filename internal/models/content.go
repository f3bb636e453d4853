package models

import "time"

// ContentKind distinguishes portfolio projects from blog posts.
type ContentKind string

const (
	KindProject ContentKind = "project"
	KindBlog    ContentKind = "blog"
)

// ContentItem is a loaded piece of site content. It is owned by the catalogue
// and treated as read-only by personalization.
type ContentItem struct {
	SiteID      string      `json:"site" yaml:"site"`
	Slug        string      `json:"slug" yaml:"slug"`
	Kind        ContentKind `json:"kind" yaml:"kind"`
	Title       string      `json:"title" yaml:"title"`
	Summary     string      `json:"summary" yaml:"summary"`
	PublishedAt time.Time   `json:"publishedAt" yaml:"published_at"`
	Tags        []string    `json:"tags,omitempty" yaml:"tags"`
}

// Profile table configurations a site can select.
const (
	ProfileModeInterestAware = "interest-aware"
	ProfileModeGeoOnly       = "geo-only"
)

// Site is one tenant sharing the service: the professional portfolio and the
// personal-writing blog run on the same backend with different policies.
type Site struct {
	ID          string `json:"id" yaml:"id"`
	Name        string `json:"name" yaml:"name"`
	Host        string `json:"host" yaml:"host"`
	ProfileMode string `json:"profileMode" yaml:"profile_mode"`
	Personalize bool   `json:"personalize" yaml:"personalize"`
	Avatar      string `json:"avatar" yaml:"avatar"`
}

// Interaction is one tracked visit to a piece of content.
type Interaction struct {
	Slug      string      `json:"slug"`
	Kind      ContentKind `json:"type"`
	Tags      []string    `json:"tags,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// Subscriber is a newsletter signup.
type Subscriber struct {
	Email     string  `json:"email"`
	Timestamp int64   `json:"timestamp"`
	Segment   Segment `json:"segment,omitempty"`
	UserAgent string  `json:"userAgent,omitempty"`
}
