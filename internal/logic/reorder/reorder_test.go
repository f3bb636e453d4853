package reorder

import (
	"sort"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/varunity/affinityserve/internal/models"
)

func item(slug string, date string) models.ContentItem {
	t, err := time.Parse("2006-01-02", date)
	if err != nil {
		panic(err)
	}
	return models.ContentItem{Slug: slug, PublishedAt: t}
}

func slugs(items []models.ContentItem) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.Slug
	}
	return out
}

var abc = []models.ContentItem{
	item("a", "2024-01-01"),
	item("b", "2024-03-01"),
	item("c", "2024-02-01"),
}

func TestReorder(t *testing.T) {
	tests := []struct {
		name        string
		items       []models.ContentItem
		featured    string
		personalize bool
		rng         Range
		exclude     []string
		want        []string
		promoted    bool
	}{
		{
			name:        "featured already newest",
			items:       abc,
			featured:    "/work/b",
			personalize: true,
			rng:         Range{1, 3},
			want:        []string{"b", "c", "a"},
			promoted:    true,
		},
		{
			name:        "featured oldest moves first",
			items:       abc,
			featured:    "/blog/a",
			personalize: true,
			rng:         All,
			want:        []string{"a", "b", "c"},
			promoted:    true,
		},
		{
			name:     "personalization disabled",
			items:    abc,
			featured: "/blog/a",
			rng:      All,
			want:     []string{"b", "c", "a"},
		},
		{
			name:        "featured missing",
			items:       abc,
			featured:    "/work/zzz",
			personalize: true,
			rng:         All,
			want:        []string{"b", "c", "a"},
		},
		{
			name:        "no featured ref",
			items:       abc,
			personalize: true,
			rng:         All,
			want:        []string{"b", "c", "a"},
		},
		{
			name:        "excluded featured is not promoted",
			items:       abc,
			featured:    "/blog/a",
			personalize: true,
			rng:         All,
			exclude:     []string{"a"},
			want:        []string{"b", "c"},
		},
		{
			name:        "range after promotion",
			items:       abc,
			featured:    "/blog/a",
			personalize: true,
			rng:         Range{Start: 2},
			want:        []string{"b", "c"},
			promoted:    true,
		},
		{
			name:  "range past the end",
			items: abc,
			rng:   Range{Start: 5, End: 9},
			want:  []string{},
		},
		{
			name:  "end clamped",
			items: abc,
			rng:   Range{Start: 2, End: 10},
			want:  []string{"c", "a"},
		},
		{
			name:  "equal dates keep catalogue order",
			items: []models.ContentItem{item("x", "2024-01-01"), item("y", "2024-01-01"), item("z", "2024-01-01")},
			rng:   All,
			want:  []string{"x", "y", "z"},
		},
		{
			name:        "trailing slash in ref",
			items:       abc,
			featured:    "/work/c/",
			personalize: true,
			rng:         Range{1, 1},
			want:        []string{"c"},
			promoted:    true,
		},
		{
			name:  "empty input",
			items: nil,
			rng:   DefaultRange,
			want:  []string{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Reorder(tt.items, tt.featured, tt.personalize, tt.rng, tt.exclude)
			if diff := cmp.Diff(tt.want, slugs(got.Items)); diff != "" {
				t.Errorf("Reorder() mismatch (-want +got):\n%s", diff)
			}
			if got.Featured != tt.promoted {
				t.Errorf("Featured = %v, want %v", got.Featured, tt.promoted)
			}
		})
	}
}

func TestReorderIsPermutation(t *testing.T) {
	items := []models.ContentItem{
		item("p1", "2023-05-01"),
		item("p2", "2024-05-01"),
		item("p3", "2022-05-01"),
		item("p4", "2024-01-10"),
		item("dup", "2021-01-01"),
		item("dup", "2020-01-01"),
	}
	for _, featured := range []string{"/work/p1", "/work/p3", "/work/dup", ""} {
		got := Reorder(items, featured, true, All, nil)
		want := slugs(items)
		have := slugs(got.Items)
		sort.Strings(want)
		sort.Strings(have)
		if diff := cmp.Diff(want, have); diff != "" {
			t.Errorf("featured %q: items added or dropped (-want +got):\n%s", featured, diff)
		}
		if featured != "" && got.Items[0].Slug != FeaturedSlug(featured) {
			t.Errorf("featured %q not first: %v", featured, slugs(got.Items))
		}
	}
}

func TestReorderDisabledMatchesPlainSort(t *testing.T) {
	plain := Reorder(abc, "", false, DefaultRange, nil)
	disabled := Reorder(abc, "/work/a", false, DefaultRange, nil)
	if diff := cmp.Diff(plain.Items, disabled.Items); diff != "" {
		t.Errorf("disabled reorder differs from plain sort:\n%s", diff)
	}
}

func TestReorderDoesNotMutateInput(t *testing.T) {
	in := append([]models.ContentItem(nil), abc...)
	Reorder(in, "/blog/a", true, All, nil)
	if diff := cmp.Diff(abc, in); diff != "" {
		t.Errorf("input mutated:\n%s", diff)
	}
}

func TestParseRange(t *testing.T) {
	tests := []struct {
		in      string
		want    Range
		wantErr bool
	}{
		{"", DefaultRange, false},
		{"1,3", Range{1, 3}, false},
		{"2", Range{Start: 2}, false},
		{"2,", Range{Start: 2}, false},
		{" 4 , 6 ", Range{4, 6}, false},
		{"0,3", DefaultRange, true},
		{"3,1", DefaultRange, true},
		{"x", DefaultRange, true},
	}
	for _, tt := range tests {
		got, err := ParseRange(tt.in, DefaultRange)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseRange(%q) = %+v, %v", tt.in, got, err)
		}
	}
}

func TestFeaturedSlug(t *testing.T) {
	for in, want := range map[string]string{
		"/work/building-once-ui-a-customizable-design-system": "building-once-ui-a-customizable-design-system",
		"plain-slug": "plain-slug",
		"/blog/x/":   "x",
		"":           "",
		"///":        "",
	} {
		if got := FeaturedSlug(in); got != want {
			t.Errorf("FeaturedSlug(%q) = %q, want %q", in, got, want)
		}
	}
}
