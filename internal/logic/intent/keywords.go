package intent

import "github.com/varunity/affinityserve/internal/models"

// category pairs an interest with the needles that signal it. Lists are checked
// in slice order and the first category with a match wins.
type category struct {
	interest models.Interest
	needles  []string
}

var referrerDomains = []category{
	{models.InterestDrupal, []string{
		"drupal.org",
		"drupalcon",
		"drupalcamp",
		"drupal.stackexchange",
		"drupalize.me",
		"acquia.com",
		"pantheon.io",
	}},
	{models.InterestFrontend, []string{
		"reactjs.org",
		"vuejs.org",
		"svelte.dev",
		"nextjs.org",
		"vercel.com",
		"github.com/react",
		"github.com/vue",
		"github.com/svelte",
	}},
	{models.InterestGovtech, []string{
		".gov",
		"digital.gov",
		"18f.gov",
		"gsa.gov",
		"govtech.com",
		"govloop.com",
		"statescoop.com",
		"fedscoop.com",
		"gcn.com",
		"nextgov.com",
		"meritalk.com",
		"governmenttechnology.com",
	}},
}

var searchKeywords = []category{
	{models.InterestDrupal, []string{
		"drupal",
		"drupal developer",
		"drupal architect",
		"drupal cms",
	}},
	{models.InterestFrontend, []string{
		"react developer",
		"frontend developer",
		"svelte developer",
		"next.js developer",
		"ui developer",
		"frontend engineer",
	}},
	{models.InterestGovtech, []string{
		"government developer",
		"govtech",
		"gov tech",
		"federal developer",
		"federal contractor",
		"state government",
		"public sector developer",
		"government website",
		"digital services",
		"civic tech",
		"government cms",
		"fedramp",
		"section 508",
		"accessibility government",
	}},
}

// scoringKeywords drive interaction scoring. Categories are scored
// independently, so one interaction may count toward several.
var scoringKeywords = []category{
	{models.InterestDrupal, []string{"drupal", "cms", "content management", "enterprise"}},
	{models.InterestFrontend, []string{"react", "svelte", "ui", "design system", "frontend", "component"}},
	{models.InterestGovtech, []string{"government", "govtech", "federal", "state", "public sector", "civic", "accessibility", "508"}},
}

// slugTags infer content tags from a slug when the catalogue has none.
var slugTags = []struct {
	tag     string
	needles []string
}{
	{"drupal", []string{"drupal"}},
	{"frontend", []string{"react", "svelte", "frontend", "ui", "design-system", "component"}},
}
