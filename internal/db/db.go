package db

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/varunity/affinityserve/internal/models"
	"github.com/varunity/affinityserve/internal/observability"
)

// CatalogSource yields the full set of sites and content.
type CatalogSource interface {
	LoadCatalog(ctx context.Context) ([]models.Site, []models.ContentItem, error)
}

// LoadCatalog implements CatalogSource for Postgres.
func (p *Postgres) LoadCatalog(ctx context.Context) ([]models.Site, []models.ContentItem, error) {
	sites, err := p.LoadSites(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("load sites: %w", err)
	}
	items, err := p.LoadContent(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("load content: %w", err)
	}
	return sites, items, nil
}

// Catalog keeps a ContentStore in sync with its source.
type Catalog struct {
	Source  CatalogSource
	Store   models.ContentStore
	Metrics observability.MetricsRegistry
	Logger  *zap.Logger
}

// NewCatalog wires a source to a store. Call Reload to populate it.
func NewCatalog(src CatalogSource, store models.ContentStore, metrics observability.MetricsRegistry, logger *zap.Logger) *Catalog {
	if metrics == nil {
		metrics = observability.NewNoOpRegistry()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Catalog{Source: src, Store: store, Metrics: metrics, Logger: logger}
}

// Reload fetches the catalogue and swaps it into the store. On error the
// previous snapshot stays live.
func (c *Catalog) Reload(ctx context.Context) error {
	sites, items, err := c.Source.LoadCatalog(ctx)
	if err != nil {
		return err
	}
	if err := c.Store.ReloadAll(sites, items); err != nil {
		return fmt.Errorf("swap catalog: %w", err)
	}

	counts := make(map[string]int, len(sites))
	for _, it := range items {
		counts[it.SiteID]++
	}
	for _, s := range sites {
		c.Metrics.SetCatalogItems(s.ID, counts[s.ID])
	}
	c.Logger.Info("catalog loaded", zap.Int("sites", len(sites)), zap.Int("items", len(items)))
	return nil
}
