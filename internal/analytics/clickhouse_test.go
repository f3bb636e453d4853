package analytics

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordEventUnavailable(t *testing.T) {
	var a *Analytics
	assert.ErrorIs(t, a.RecordEvent(context.Background(), Event{EventType: EventInteraction}), ErrUnavailable)

	_, err := (&Analytics{}).EventsByVisitor(context.Background(), "v1", 10)
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestRecordEventInsertsNullableColumns(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = sqlDB.Close() }()

	now := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	a := New(sqlDB)
	a.now = func() time.Time { return now }

	mock.ExpectExec(`INSERT INTO events`).
		WithArgs(now, EventVisitorContext, "req-1", "v1",
			sql.NullString{String: "professional", Valid: true},
			sql.NullString{String: "local", Valid: true},
			sql.NullString{},
			sql.NullString{String: "US", Valid: true},
			sql.NullString{String: "vercel", Valid: true},
			sql.NullString{}, sql.NullString{}, sql.NullString{}).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err = a.RecordEvent(context.Background(), Event{
		EventType: EventVisitorContext,
		RequestID: "req-1",
		VisitorID: "v1",
		Site:      "professional",
		Segment:   "local",
		Country:   "US",
		GeoSource: "vercel",
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordEventWrapsInsertError(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = sqlDB.Close() }()

	mock.ExpectExec(`INSERT INTO events`).WillReturnError(errors.New("table missing"))
	err = New(sqlDB).RecordEvent(context.Background(), Event{EventType: EventNewsletterSignup})
	assert.ErrorContains(t, err, "insert newsletter_signup event")
}

func TestEventsByVisitor(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = sqlDB.Close() }()

	ts := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"timestamp", "event_type", "request_id", "visitor_id", "site", "segment", "interest", "country", "geo_source", "device_type", "variant", "slug"}).
		AddRow(ts, EventInteraction, "r1", "v1", "professional", nil, "drupal", nil, nil, "desktop", nil, "drupal-migration")
	mock.ExpectQuery(`SELECT timestamp, event_type`).WithArgs("v1", 5).WillReturnRows(rows)

	events, err := New(sqlDB).EventsByVisitor(context.Background(), "v1", 5)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "drupal", events[0].Interest)
	assert.Equal(t, "", events[0].Segment)
	assert.Equal(t, "drupal-migration", events[0].Slug)
}

func TestMockAnalytics(t *testing.T) {
	m := NewMockAnalytics()
	require.NoError(t, m.RecordEvent(context.Background(), Event{EventType: EventInteraction}))
	require.NoError(t, m.RecordEvent(context.Background(), Event{EventType: EventVisitorContext}))
	assert.Len(t, m.Events(), 2)
	assert.Len(t, m.EventsOfType(EventInteraction), 1)

	m.Err = ErrUnavailable
	assert.ErrorIs(t, m.RecordEvent(context.Background(), Event{}), ErrUnavailable)
	assert.Len(t, m.Events(), 2)
}
