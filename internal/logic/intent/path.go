package intent

import (
	"strings"

	"github.com/varunity/affinityserve/internal/models"
)

// ParseContentPath extracts the slug and kind from a /work/<slug> or
// /blog/<slug> path.
func ParseContentPath(path string) (slug string, kind models.ContentKind, ok bool) {
	var parts []string
	for _, p := range strings.Split(path, "/") {
		if p != "" {
			parts = append(parts, p)
		}
	}
	if len(parts) < 2 {
		return "", "", false
	}
	switch parts[0] {
	case "work":
		return parts[1], models.KindProject, true
	case "blog":
		return parts[1], models.KindBlog, true
	}
	return "", "", false
}

// InferTags guesses topic tags from keywords in a slug.
func InferTags(slug string) []string {
	slug = strings.ToLower(slug)
	var tags []string
	for _, t := range slugTags {
		if containsAny(slug, t.needles) {
			tags = append(tags, t.tag)
		}
	}
	return tags
}

// InteractionFromPath builds an interaction for a content page view. Tags are
// inferred from the slug.
func InteractionFromPath(path string) (models.Interaction, bool) {
	slug, kind, ok := ParseContentPath(path)
	if !ok {
		return models.Interaction{}, false
	}
	return models.Interaction{Slug: slug, Kind: kind, Tags: InferTags(slug)}, true
}
