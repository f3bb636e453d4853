package db

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/varunity/affinityserve/internal/models"
)

// FileCatalog reads sites and content from a YAML document:
//
//	sites:
//	  - id: professional
//	    host: example.com
//	    profile_mode: interest-aware
//	content:
//	  - site: professional
//	    slug: drupal-migration
//	    kind: project
//	    published_at: 2024-03-01
type FileCatalog struct {
	Path string
}

type catalogDocument struct {
	Sites   []catalogSite        `yaml:"sites"`
	Content []models.ContentItem `yaml:"content"`
}

// catalogSite defaults personalize to true when the key is absent.
type catalogSite struct {
	ID          string `yaml:"id"`
	Name        string `yaml:"name"`
	Host        string `yaml:"host"`
	ProfileMode string `yaml:"profile_mode"`
	Personalize *bool  `yaml:"personalize"`
	Avatar      string `yaml:"avatar"`
}

// LoadCatalog implements CatalogSource.
func (f FileCatalog) LoadCatalog(_ context.Context) ([]models.Site, []models.ContentItem, error) {
	return LoadCatalogFile(f.Path)
}

// LoadCatalogFile parses the catalogue at path.
func LoadCatalogFile(path string) ([]models.Site, []models.ContentItem, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("read catalog: %w", err)
	}
	var doc catalogDocument
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, nil, fmt.Errorf("parse catalog %s: %w", path, err)
	}

	sites := make([]models.Site, 0, len(doc.Sites))
	for _, s := range doc.Sites {
		if s.ID == "" {
			return nil, nil, fmt.Errorf("parse catalog %s: site without id", path)
		}
		site := models.Site{
			ID:          s.ID,
			Name:        s.Name,
			Host:        s.Host,
			ProfileMode: s.ProfileMode,
			Personalize: s.Personalize == nil || *s.Personalize,
			Avatar:      s.Avatar,
		}
		if site.ProfileMode == "" {
			site.ProfileMode = models.ProfileModeInterestAware
		}
		sites = append(sites, site)
	}
	for i, it := range doc.Content {
		if it.Slug == "" {
			return nil, nil, fmt.Errorf("parse catalog %s: content #%d without slug", path, i)
		}
		if it.Kind == "" {
			doc.Content[i].Kind = models.KindBlog
		}
	}
	return sites, doc.Content, nil
}
