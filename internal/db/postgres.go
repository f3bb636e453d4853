package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/XSAM/otelsql"
	"github.com/lib/pq"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/varunity/affinityserve/internal/models"
)

// ErrDuplicate is returned when a subscriber email is already stored.
var ErrDuplicate = errors.New("duplicate entry")

// Postgres wraps a postgres DB connection.
type Postgres struct {
	DB *sql.DB
}

// schemaSQL sets up the necessary tables if they don't exist.
const schemaSQL = `CREATE TABLE IF NOT EXISTS sites (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    host TEXT NOT NULL DEFAULT '',
    profile_mode TEXT NOT NULL DEFAULT 'interest-aware',
    personalize BOOLEAN NOT NULL DEFAULT TRUE,
    avatar TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS content_items (
    id SERIAL PRIMARY KEY,
    site_id TEXT NOT NULL REFERENCES sites(id),
    slug TEXT NOT NULL,
    kind TEXT NOT NULL,
    title TEXT NOT NULL,
    summary TEXT NOT NULL DEFAULT '',
    published_at TIMESTAMPTZ NOT NULL,
    tags TEXT[] NOT NULL DEFAULT '{}',
    UNIQUE (site_id, slug)
);

CREATE TABLE IF NOT EXISTS subscribers (
    id SERIAL PRIMARY KEY,
    email TEXT NOT NULL,
    subscribed_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    segment TEXT NOT NULL DEFAULT '',
    user_agent TEXT NOT NULL DEFAULT ''
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_subscribers_email ON subscribers (LOWER(email));
CREATE INDEX IF NOT EXISTS idx_content_items_site_id ON content_items (site_id);
`

// InitPostgres connects to Postgres with connection pooling configuration.
func InitPostgres(dsn string, maxOpenConns, maxIdleConns int, connMaxLifetime, connMaxIdleTime time.Duration) (*Postgres, error) {
	driverName, err := otelsql.Register("postgres",
		otelsql.WithAttributes(
			attribute.String("db.system", "postgresql"),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("register otelsql: %w", err)
	}

	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres open: %w", err)
	}

	db.SetMaxOpenConns(maxOpenConns)
	db.SetMaxIdleConns(maxIdleConns)
	db.SetConnMaxLifetime(connMaxLifetime)
	db.SetConnMaxIdleTime(connMaxIdleTime)

	if err := db.PingContext(context.Background()); err != nil {
		return nil, fmt.Errorf("postgres ping: %w", err)
	}
	p := &Postgres{DB: db}
	if err := p.ensureSchema(context.Background()); err != nil {
		return nil, err
	}
	zap.L().Info("Connected to Postgres with connection pooling",
		zap.Int("max_open_conns", maxOpenConns),
		zap.Int("max_idle_conns", maxIdleConns),
		zap.Duration("conn_max_lifetime", connMaxLifetime))
	return p, nil
}

// Close terminates the Postgres connection.
func (p *Postgres) Close() {
	if p != nil && p.DB != nil {
		if err := p.DB.Close(); err != nil {
			zap.L().Error("postgres close", zap.Error(err))
		}
	}
}

func (p *Postgres) ensureSchema(ctx context.Context) error {
	if _, err := p.DB.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// LoadSites retrieves every configured site.
func (p *Postgres) LoadSites(ctx context.Context) ([]models.Site, error) {
	rows, err := p.DB.QueryContext(ctx, `SELECT id, name, host, profile_mode, personalize, avatar FROM sites ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query sites: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var sites []models.Site
	for rows.Next() {
		var s models.Site
		if err := rows.Scan(&s.ID, &s.Name, &s.Host, &s.ProfileMode, &s.Personalize, &s.Avatar); err != nil {
			return nil, fmt.Errorf("scan site: %w", err)
		}
		sites = append(sites, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return sites, nil
}

// LoadContent retrieves all content items in insertion order.
func (p *Postgres) LoadContent(ctx context.Context) ([]models.ContentItem, error) {
	rows, err := p.DB.QueryContext(ctx, `SELECT site_id, slug, kind, title, summary, published_at, tags FROM content_items ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query content: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var items []models.ContentItem
	for rows.Next() {
		var it models.ContentItem
		var kind string
		var tags []string
		if err := rows.Scan(&it.SiteID, &it.Slug, &kind, &it.Title, &it.Summary, &it.PublishedAt, pq.Array(&tags)); err != nil {
			return nil, fmt.Errorf("scan content: %w", err)
		}
		it.Kind = models.ContentKind(kind)
		it.Tags = tags
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return items, nil
}

// InsertSite upserts a site definition.
func (p *Postgres) InsertSite(ctx context.Context, s models.Site) error {
	_, err := p.DB.ExecContext(ctx, `INSERT INTO sites (id, name, host, profile_mode, personalize, avatar) VALUES ($1,$2,$3,$4,$5,$6)
ON CONFLICT (id) DO UPDATE SET name=EXCLUDED.name, host=EXCLUDED.host, profile_mode=EXCLUDED.profile_mode, personalize=EXCLUDED.personalize, avatar=EXCLUDED.avatar`,
		s.ID, s.Name, s.Host, s.ProfileMode, s.Personalize, s.Avatar)
	if err != nil {
		return fmt.Errorf("insert site %s: %w", s.ID, err)
	}
	return nil
}

// InsertContent upserts a content item keyed by site and slug.
func (p *Postgres) InsertContent(ctx context.Context, it models.ContentItem) error {
	_, err := p.DB.ExecContext(ctx, `INSERT INTO content_items (site_id, slug, kind, title, summary, published_at, tags) VALUES ($1,$2,$3,$4,$5,$6,$7)
ON CONFLICT (site_id, slug) DO UPDATE SET kind=EXCLUDED.kind, title=EXCLUDED.title, summary=EXCLUDED.summary, published_at=EXCLUDED.published_at, tags=EXCLUDED.tags`,
		it.SiteID, it.Slug, string(it.Kind), it.Title, it.Summary, it.PublishedAt, pq.Array(it.Tags))
	if err != nil {
		return fmt.Errorf("insert content %s/%s: %w", it.SiteID, it.Slug, err)
	}
	return nil
}

// SubscriberExists reports whether email is already subscribed, ignoring case.
func (p *Postgres) SubscriberExists(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := p.DB.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM subscribers WHERE LOWER(email) = LOWER($1))`, email).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("query subscriber: %w", err)
	}
	return exists, nil
}

// InsertSubscriber stores a newsletter signup. ErrDuplicate is returned when
// the email is already present.
func (p *Postgres) InsertSubscriber(ctx context.Context, sub models.Subscriber) error {
	at := time.UnixMilli(sub.Timestamp).UTC()
	res, err := p.DB.ExecContext(ctx, `INSERT INTO subscribers (email, subscribed_at, segment, user_agent) VALUES ($1,$2,$3,$4) ON CONFLICT DO NOTHING`,
		strings.TrimSpace(sub.Email), at, string(sub.Segment), sub.UserAgent)
	if err != nil {
		return fmt.Errorf("insert subscriber: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert subscriber: %w", err)
	}
	if n == 0 {
		return ErrDuplicate
	}
	return nil
}
