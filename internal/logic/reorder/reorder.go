// Package reorder orders a site's content for display, promoting the
// visitor's featured item without dropping or duplicating anything.
package reorder

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/varunity/affinityserve/internal/models"
)

// Range selects a 1-indexed, inclusive window. End 0 means "to the end".
type Range struct {
	Start int
	End   int
}

// DefaultRange is the first three items, the size of a homepage teaser.
var DefaultRange = Range{Start: 1, End: 3}

// All selects every item.
var All = Range{Start: 1}

// ParseRange parses "start" or "start,end". Empty input yields def.
func ParseRange(s string, def Range) (Range, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return def, nil
	}
	parts := strings.SplitN(s, ",", 2)
	start, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil || start < 1 {
		return def, fmt.Errorf("invalid range start %q", parts[0])
	}
	r := Range{Start: start}
	if len(parts) == 2 && strings.TrimSpace(parts[1]) != "" {
		end, err := strconv.Atoi(strings.TrimSpace(parts[1]))
		if err != nil || end < start {
			return def, fmt.Errorf("invalid range end %q", parts[1])
		}
		r.End = end
	}
	return r, nil
}

// slice applies the range to items, clamping out-of-bounds values.
func (r Range) slice(items []models.ContentItem) []models.ContentItem {
	start := r.Start - 1
	if start < 0 {
		start = 0
	}
	end := len(items)
	if r.End > 0 && r.End < end {
		end = r.End
	}
	if start >= end {
		return []models.ContentItem{}
	}
	return items[start:end]
}

// Result is a reordered view plus whether the featured item was promoted.
type Result struct {
	Items    []models.ContentItem
	Featured bool
}

// FeaturedSlug returns the last path segment of a featured content reference.
func FeaturedSlug(ref string) string {
	parts := strings.Split(ref, "/")
	for i := len(parts) - 1; i >= 0; i-- {
		if parts[i] != "" {
			return parts[i]
		}
	}
	return ""
}

// Reorder removes excluded slugs, sorts by publish date (newest first), moves
// the featured item to the front when personalizing and returns the requested
// range. The input slice is not modified.
func Reorder(items []models.ContentItem, featuredRef string, personalize bool, rng Range, exclude []string) Result {
	skip := make(map[string]struct{}, len(exclude))
	for _, s := range exclude {
		skip[s] = struct{}{}
	}
	sorted := make([]models.ContentItem, 0, len(items))
	for _, it := range items {
		if _, ok := skip[it.Slug]; !ok {
			sorted = append(sorted, it)
		}
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].PublishedAt.After(sorted[j].PublishedAt)
	})

	featured := FeaturedSlug(featuredRef)
	if !personalize || featured == "" {
		return Result{Items: rng.slice(sorted)}
	}
	idx := -1
	for i, it := range sorted {
		if it.Slug == featured {
			idx = i
			break
		}
	}
	if idx == -1 {
		return Result{Items: rng.slice(sorted)}
	}

	reordered := make([]models.ContentItem, 0, len(sorted))
	reordered = append(reordered, sorted[idx])
	reordered = append(reordered, sorted[:idx]...)
	reordered = append(reordered, sorted[idx+1:]...)
	return Result{Items: rng.slice(reordered), Featured: true}
}
