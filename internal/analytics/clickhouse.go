package analytics

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	_ "github.com/ClickHouse/clickhouse-go/v2"
)

// Event types written to the events table.
const (
	EventVisitorContext   = "visitor_context"
	EventInteraction      = "interaction"
	EventNewsletterSignup = "newsletter_signup"
	EventPreference       = "preference"
)

// ErrUnavailable is returned when the analytics DB is not configured.
var ErrUnavailable = errors.New("analytics unavailable")

// AnalyticsService records personalization events. Implementations return
// ErrUnavailable when the underlying storage is not configured.
type AnalyticsService interface {
	RecordEvent(ctx context.Context, ev Event) error
}

// Event is one personalization decision or visitor action. Empty strings are
// stored as NULL.
type Event struct {
	Timestamp  time.Time `json:"timestamp"`
	EventType  string    `json:"event_type"`
	RequestID  string    `json:"request_id"`
	VisitorID  string    `json:"visitor_id"`
	Site       string    `json:"site"`
	Segment    string    `json:"segment"`
	Interest   string    `json:"interest"`
	Country    string    `json:"country"`
	GeoSource  string    `json:"geo_source"`
	DeviceType string    `json:"device_type"`
	Variant    string    `json:"variant"`
	Slug       string    `json:"slug"`
}

// Analytics wraps a ClickHouse DB connection.
type Analytics struct {
	DB  *sql.DB
	now func() time.Time
}

const createEventsSQL = `CREATE TABLE IF NOT EXISTS events (
       timestamp    DateTime,
       event_type   String,
       request_id   String,
       visitor_id   String,
       site         Nullable(String),
       segment      Nullable(String),
       interest     Nullable(String),
       country      Nullable(String),
       geo_source   Nullable(String),
       device_type  Nullable(String),
       variant      Nullable(String),
       slug         Nullable(String)
   ) ENGINE=MergeTree() ORDER BY (event_type, timestamp)`

// InitClickHouse connects to ClickHouse and ensures the events table exists.
func InitClickHouse(dsn string) (*Analytics, error) {
	db, err := sql.Open("clickhouse", dsn)
	if err != nil {
		return nil, fmt.Errorf("clickhouse open: %w", err)
	}
	db.SetMaxOpenConns(25)
	if err := db.PingContext(context.Background()); err != nil {
		return nil, fmt.Errorf("clickhouse ping: %w", err)
	}
	if _, err := db.ExecContext(context.Background(), createEventsSQL); err != nil {
		return nil, fmt.Errorf("clickhouse create table: %w", err)
	}

	zap.L().Info("Connected to ClickHouse")
	return New(db), nil
}

// New wraps an open connection without touching the schema.
func New(db *sql.DB) *Analytics {
	return &Analytics{DB: db, now: time.Now}
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// RecordEvent inserts a single event row into the events table.
func (a *Analytics) RecordEvent(ctx context.Context, ev Event) error {
	if a == nil || a.DB == nil {
		return ErrUnavailable
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = a.now()
	}

	stmt := `INSERT INTO events (timestamp, event_type, request_id, visitor_id, site, segment, interest, country, geo_source, device_type, variant, slug) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	if _, err := a.DB.ExecContext(ctx, stmt, ev.Timestamp, ev.EventType, ev.RequestID, ev.VisitorID,
		nullable(ev.Site), nullable(ev.Segment), nullable(ev.Interest), nullable(ev.Country),
		nullable(ev.GeoSource), nullable(ev.DeviceType), nullable(ev.Variant), nullable(ev.Slug)); err != nil {
		zap.L().Error("clickhouse insert failed", zap.Error(err), zap.String("event_type", ev.EventType))
		return fmt.Errorf("insert %s event: %w", ev.EventType, err)
	}
	return nil
}

// Close terminates the ClickHouse connection.
func (a *Analytics) Close() {
	if a != nil && a.DB != nil {
		if err := a.DB.Close(); err != nil {
			zap.L().Error("clickhouse close", zap.Error(err))
		}
	}
}

// EventsByVisitor returns the most recent events for a visitor, newest last.
func (a *Analytics) EventsByVisitor(ctx context.Context, visitorID string, limit int) ([]Event, error) {
	if a == nil || a.DB == nil {
		return nil, ErrUnavailable
	}
	query := `SELECT timestamp, event_type, request_id, visitor_id, site, segment, interest, country, geo_source, device_type, variant, slug FROM events WHERE visitor_id=? ORDER BY timestamp LIMIT ?`
	rows, err := a.DB.QueryContext(ctx, query, visitorID, limit)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			zap.L().Warn("rows close", zap.Error(err))
		}
	}()

	var events []Event
	for rows.Next() {
		var ev Event
		var site, seg, interest, country, src, dev, variant, slug sql.NullString
		if err := rows.Scan(&ev.Timestamp, &ev.EventType, &ev.RequestID, &ev.VisitorID, &site, &seg, &interest, &country, &src, &dev, &variant, &slug); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		ev.Site, ev.Segment, ev.Interest, ev.Country = site.String, seg.String, interest.String, country.String
		ev.GeoSource, ev.DeviceType, ev.Variant, ev.Slug = src.String, dev.String, variant.String, slug.String
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return events, nil
}

// SegmentCount is one row of the segment breakdown report.
type SegmentCount struct {
	Segment string
	Count   uint64
}

// SegmentBreakdown counts visitor_context events per segment since the given time.
func (a *Analytics) SegmentBreakdown(ctx context.Context, site string, since time.Time) ([]SegmentCount, error) {
	if a == nil || a.DB == nil {
		return nil, ErrUnavailable
	}
	rows, err := a.DB.QueryContext(ctx, `SELECT ifNull(segment, 'general') AS seg, count() FROM events WHERE event_type=? AND site=? AND timestamp >= ? GROUP BY seg ORDER BY count() DESC`,
		EventVisitorContext, site, since)
	if err != nil {
		return nil, fmt.Errorf("query segments: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()
	var out []SegmentCount
	for rows.Next() {
		var sc SegmentCount
		if err := rows.Scan(&sc.Segment, &sc.Count); err != nil {
			return nil, fmt.Errorf("scan segment: %w", err)
		}
		out = append(out, sc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return out, nil
}
