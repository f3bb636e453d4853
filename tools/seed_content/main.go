package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/varunity/affinityserve/internal/config"
	"github.com/varunity/affinityserve/internal/db"
	"github.com/varunity/affinityserve/internal/logic/intent"
	"github.com/varunity/affinityserve/internal/models"
	"github.com/varunity/affinityserve/internal/observability"
)

var (
	out        = flag.String("out", "", "write a catalogue YAML file instead of seeding Postgres")
	extraPosts = flag.Int("posts", 6, "generated blog posts per site")
	seed       = flag.Int64("seed", time.Now().UnixNano(), "rng seed")
)

func main() {
	flag.Parse()

	logger, err := observability.InitLoggerWithService("seed-content")
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	r := rand.New(rand.NewSource(*seed))
	sites := demoSites()
	items := demoContent()
	for _, s := range sites {
		items = append(items, generatedPosts(r, s.ID, *extraPosts)...)
	}

	if *out != "" {
		if err := writeYAML(*out, sites, items); err != nil {
			logger.Fatal("write catalogue", zap.Error(err))
		}
		logger.Info("catalogue written", zap.String("path", *out), zap.Int("sites", len(sites)), zap.Int("content", len(items)))
		return
	}

	cfg := config.Load()
	if cfg.PostgresDSN == "" {
		logger.Fatal("POSTGRES_DSN is required unless -out is given")
	}
	pg, err := db.InitPostgres(cfg.PostgresDSN, cfg.DBMaxOpenConns, cfg.DBMaxIdleConns, cfg.DBConnMaxLifetime, cfg.DBConnMaxIdleTime)
	if err != nil {
		logger.Fatal("connect postgres", zap.Error(err))
	}
	defer pg.Close()

	ctx := context.Background()
	for _, s := range sites {
		if err := pg.InsertSite(ctx, s); err != nil {
			logger.Fatal("insert site", zap.String("site", s.ID), zap.Error(err))
		}
	}
	for _, it := range items {
		if err := pg.InsertContent(ctx, it); err != nil {
			logger.Fatal("insert content", zap.String("slug", it.Slug), zap.Error(err))
		}
	}
	logger.Info("catalogue seeded", zap.Int("sites", len(sites)), zap.Int("content", len(items)))
}

func demoSites() []models.Site {
	return []models.Site{
		{ID: "professional", Name: "Portfolio", Host: "localhost", ProfileMode: models.ProfileModeInterestAware, Personalize: true, Avatar: "/images/avatar.jpg"},
		{ID: "personal", Name: "Notebook", Host: "blog.localhost", ProfileMode: models.ProfileModeGeoOnly, Personalize: true},
	}
}

func day(y int, m time.Month, d int) time.Time { return time.Date(y, m, d, 0, 0, 0, 0, time.UTC) }

// demoContent covers every featured item the affinity tables can point at.
func demoContent() []models.ContentItem {
	return []models.ContentItem{
		{SiteID: "professional", Slug: "building-once-ui-a-customizable-design-system", Kind: models.KindProject, Title: "Building Once UI", Summary: "A customizable design system for Next.js.", PublishedAt: day(2023, 4, 12), Tags: []string{"frontend", "design-systems"}},
		{SiteID: "professional", Slug: "what-government-gets-wrong-about-website-migrations", Kind: models.KindBlog, Title: "What government gets wrong about website migrations", PublishedAt: day(2024, 2, 20), Tags: []string{"govtech", "drupal"}},
		{SiteID: "professional", Slug: "migrating-to-drupal-10", Kind: models.KindBlog, Title: "Migrating to Drupal 10", PublishedAt: day(2023, 9, 1), Tags: []string{"drupal"}},
		{SiteID: "professional", Slug: "section-508-audit", Kind: models.KindProject, Title: "Section 508 audit", PublishedAt: day(2022, 11, 3), Tags: []string{"govtech", "accessibility"}},
		{SiteID: "personal", Slug: "notes-from-drupalcon", Kind: models.KindBlog, Title: "Notes from DrupalCon", PublishedAt: day(2024, 5, 9)},
	}
}

var topics = []string{"react", "drupal", "accessibility", "civic-data", "typescript", "design-tokens", "fedramp", "headless-cms"}
var shapes = []string{"notes-on-%s", "a-year-of-%s", "%s-in-practice", "why-%s-matters", "shipping-%s"}

func generatedPosts(r *rand.Rand, siteID string, n int) []models.ContentItem {
	items := make([]models.ContentItem, 0, n)
	seen := map[string]bool{}
	for len(items) < n && len(seen) < len(topics)*len(shapes) {
		slug := fmt.Sprintf(shapes[r.Intn(len(shapes))], topics[r.Intn(len(topics))])
		if seen[slug] {
			continue
		}
		seen[slug] = true
		items = append(items, models.ContentItem{
			SiteID:      siteID,
			Slug:        slug,
			Kind:        models.KindBlog,
			Title:       titleCase(slug),
			PublishedAt: day(2021, 1, 1).AddDate(0, 0, r.Intn(4*365)),
			Tags:        intent.InferTags(slug),
		})
	}
	return items
}

func titleCase(slug string) string {
	words := strings.Split(slug, "-")
	for i, w := range words {
		if w != "" {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}

type yamlSite struct {
	ID          string `yaml:"id"`
	Name        string `yaml:"name,omitempty"`
	Host        string `yaml:"host"`
	ProfileMode string `yaml:"profile_mode"`
	Personalize bool   `yaml:"personalize"`
	Avatar      string `yaml:"avatar,omitempty"`
}

type yamlContent struct {
	Site        string   `yaml:"site"`
	Slug        string   `yaml:"slug"`
	Kind        string   `yaml:"kind"`
	Title       string   `yaml:"title"`
	Summary     string   `yaml:"summary,omitempty"`
	PublishedAt string   `yaml:"published_at"`
	Tags        []string `yaml:"tags,omitempty"`
}

func writeYAML(path string, sites []models.Site, items []models.ContentItem) error {
	doc := struct {
		Sites   []yamlSite    `yaml:"sites"`
		Content []yamlContent `yaml:"content"`
	}{}
	for _, s := range sites {
		doc.Sites = append(doc.Sites, yamlSite{ID: s.ID, Name: s.Name, Host: s.Host, ProfileMode: s.ProfileMode, Personalize: s.Personalize, Avatar: s.Avatar})
	}
	for _, it := range items {
		doc.Content = append(doc.Content, yamlContent{
			Site:        it.SiteID,
			Slug:        it.Slug,
			Kind:        string(it.Kind),
			Title:       it.Title,
			Summary:     it.Summary,
			PublishedAt: it.PublishedAt.Format("2006-01-02"),
			Tags:        it.Tags,
		})
	}
	data, err := yaml.Marshal(doc)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
