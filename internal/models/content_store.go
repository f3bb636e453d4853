package models

import (
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
)

// ErrNotFound is returned when an entity is not found in the content store
var ErrNotFound = errors.New("entity not found")

// ContentStore provides thread-safe access to sites and their content without
// global variables. Reloads swap a complete snapshot atomically.
type ContentStore interface {
	// Read operations (hot path)
	GetSite(siteID string) *Site
	GetSiteByHost(host string) *Site
	GetContent(siteID string) []ContentItem
	GetContentByKind(siteID string, kind ContentKind) []ContentItem

	// Iteration methods
	GetAllSites() []Site

	// Atomic bulk operations
	ReloadAll(sites []Site, items []ContentItem) error
}

// contentSnapshot represents an immutable snapshot of the catalogue
type contentSnapshot struct {
	sites     []Site
	siteIndex map[string]*Site         // Site ID -> Site
	hostIndex map[string]*Site         // lower-cased host -> Site
	content   map[string][]ContentItem // Site ID -> items in catalogue order
}

// InMemoryContentStore implements ContentStore with atomic snapshot updates
type InMemoryContentStore struct {
	data atomic.Pointer[contentSnapshot]
}

// NewInMemoryContentStore creates a new ContentStore instance
func NewInMemoryContentStore() *InMemoryContentStore {
	store := &InMemoryContentStore{}
	store.data.Store(&contentSnapshot{
		sites:     make([]Site, 0),
		siteIndex: make(map[string]*Site),
		hostIndex: make(map[string]*Site),
		content:   make(map[string][]ContentItem),
	})
	return store
}

// GetSite retrieves a site by ID
func (s *InMemoryContentStore) GetSite(siteID string) *Site {
	data := s.data.Load()
	if site, ok := data.siteIndex[siteID]; ok {
		cp := *site
		return &cp
	}
	return nil
}

// GetSiteByHost retrieves the site serving host. Ports and a leading "www."
// are ignored.
func (s *InMemoryContentStore) GetSiteByHost(host string) *Site {
	data := s.data.Load()
	if site, ok := data.hostIndex[normalizeHost(host)]; ok {
		cp := *site
		return &cp
	}
	return nil
}

// GetContent returns a copy of all content for a site
func (s *InMemoryContentStore) GetContent(siteID string) []ContentItem {
	data := s.data.Load()
	items := data.content[siteID]
	result := make([]ContentItem, len(items))
	copy(result, items)
	return result
}

// GetContentByKind returns the site's content of a single kind
func (s *InMemoryContentStore) GetContentByKind(siteID string, kind ContentKind) []ContentItem {
	data := s.data.Load()
	var result []ContentItem
	for _, item := range data.content[siteID] {
		if item.Kind == kind {
			result = append(result, item)
		}
	}
	return result
}

// GetAllSites returns all sites
func (s *InMemoryContentStore) GetAllSites() []Site {
	data := s.data.Load()
	result := make([]Site, len(data.sites))
	copy(result, data.sites)
	return result
}

// ReloadAll replaces sites and content in a single snapshot swap. Items that
// reference an unknown site are rejected so a bad catalogue never goes live.
func (s *InMemoryContentStore) ReloadAll(sites []Site, items []ContentItem) error {
	newData := &contentSnapshot{
		sites:     make([]Site, len(sites)),
		siteIndex: make(map[string]*Site, len(sites)),
		hostIndex: make(map[string]*Site, len(sites)),
		content:   make(map[string][]ContentItem, len(sites)),
	}
	copy(newData.sites, sites)
	for i := range newData.sites {
		site := &newData.sites[i]
		newData.siteIndex[site.ID] = site
		if site.Host != "" {
			newData.hostIndex[normalizeHost(site.Host)] = site
		}
	}
	for _, item := range items {
		if _, ok := newData.siteIndex[item.SiteID]; !ok {
			return fmt.Errorf("site %q for content %q: %w", item.SiteID, item.Slug, ErrNotFound)
		}
		newData.content[item.SiteID] = append(newData.content[item.SiteID], item)
	}

	s.data.Store(newData)
	return nil
}

func normalizeHost(host string) string {
	host = strings.ToLower(strings.TrimSpace(host))
	if i := strings.LastIndex(host, ":"); i != -1 && !strings.Contains(host[i:], "]") {
		host = host[:i]
	}
	return strings.TrimPrefix(host, "www.")
}
