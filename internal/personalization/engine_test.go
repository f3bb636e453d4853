package personalization

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/varunity/affinityserve/internal/analytics"
	"github.com/varunity/affinityserve/internal/config"
	"github.com/varunity/affinityserve/internal/geo"
	"github.com/varunity/affinityserve/internal/logic/affinity"
	"github.com/varunity/affinityserve/internal/logic/intent"
	"github.com/varunity/affinityserve/internal/logic/reorder"
	"github.com/varunity/affinityserve/internal/logic/segment"
	"github.com/varunity/affinityserve/internal/models"
	"github.com/varunity/affinityserve/internal/observability"
	"github.com/varunity/affinityserve/internal/visitor"
)

// 09:00 in America/New_York
var testNow = time.Date(2024, 6, 3, 13, 0, 0, 0, time.UTC)

type fixture struct {
	engine    *Engine
	store     *visitor.MemoryStore
	metrics   *observability.MockMetricsRegistry
	analytics *analytics.MockAnalytics
}

func testSites() []models.Site {
	return []models.Site{
		{ID: "professional", Host: "example.com", ProfileMode: models.ProfileModeInterestAware, Personalize: true},
		{ID: "personal", Host: "blog.example.com", ProfileMode: models.ProfileModeGeoOnly, Personalize: true},
		{ID: "quiet", Host: "quiet.example.com", ProfileMode: models.ProfileModeInterestAware, Personalize: false},
	}
}

func testContent() []models.ContentItem {
	day := func(y int, m time.Month, d int) time.Time { return time.Date(y, m, d, 0, 0, 0, 0, time.UTC) }
	return []models.ContentItem{
		{SiteID: "professional", Slug: "building-once-ui-a-customizable-design-system", Kind: models.KindProject, PublishedAt: day(2023, 1, 1)},
		{SiteID: "professional", Slug: "what-government-gets-wrong-about-website-migrations", Kind: models.KindBlog, PublishedAt: day(2023, 6, 1)},
		{SiteID: "professional", Slug: "newest-post", Kind: models.KindBlog, PublishedAt: day(2024, 1, 1)},
	}
}

func newFixture(t *testing.T, f config.Features, opts ...func(*Options)) fixture {
	t.Helper()
	content := models.NewInMemoryContentStore()
	require.NoError(t, content.ReloadAll(testSites(), testContent()))

	o := Options{Features: f, DefaultSite: "professional"}
	for _, fn := range opts {
		fn(&o)
	}
	store := visitor.NewMemoryStore(0)
	metrics := observability.NewMockMetricsRegistry()
	an := analytics.NewMockAnalytics()
	e, err := NewEngine(o,
		geo.NewResolver(geo.Options{HomeCountry: "US", AllowOverrides: o.AllowOverrides}, nil),
		segment.NewClassifier("US"),
		intent.NewDetector(zap.NewNop()),
		store, content, metrics, an, zap.NewNop())
	require.NoError(t, err)
	e.now = func() time.Time { return testNow }
	return fixture{engine: e, store: store, metrics: metrics, analytics: an}
}

func fairfax() http.Header {
	h := http.Header{}
	h.Set(geo.HeaderVercelCountry, "US")
	h.Set(geo.HeaderVercelRegion, "VA")
	h.Set(geo.HeaderVercelCity, "Fairfax")
	h.Set(geo.HeaderVercelTimezone, "America/New_York")
	return h
}

func london() http.Header {
	h := http.Header{}
	h.Set(geo.HeaderCFCountry, "GB")
	h.Set(geo.HeaderCFCity, "London")
	h.Set(geo.HeaderCFTimezone, "Europe/London")
	return h
}

func TestBuildSegments(t *testing.T) {
	fx := newFixture(t, config.DefaultFeatures())
	ctx := context.Background()

	vc := fx.engine.Build(ctx, Request{Host: "example.com", Header: fairfax(), VisitorID: "v1"})
	assert.Equal(t, models.SegmentLocal, vc.Segment)
	assert.True(t, vc.Personalized)
	assert.Equal(t, "professional", vc.Site)
	assert.Equal(t, "Good morning, hey neighbor! 👋", vc.Affinity.Greeting)
	assert.NotEmpty(t, vc.Affinity.ContextualMessage)
	assert.Nil(t, vc.Trace)

	vc = fx.engine.Build(ctx, Request{Host: "example.com", Header: london(), VisitorID: "v2"})
	assert.Equal(t, models.SegmentInternational, vc.Segment)
	assert.Equal(t, "GB", vc.Geo.CountryCode)

	assert.Equal(t, 1, fx.metrics.Count("segment", "professional", "local"))
	assert.Equal(t, 1, fx.metrics.Count("geo_source", string(geo.SourceCloudflare)))
}

func TestBuildUnknownHostUsesDefaultSite(t *testing.T) {
	fx := newFixture(t, config.DefaultFeatures())
	vc := fx.engine.Build(context.Background(), Request{Host: "unknown.test"})
	assert.Equal(t, "professional", vc.Site)
	// no signals: home country default
	assert.Equal(t, models.SegmentGeneral, vc.Segment)
	assert.Equal(t, "Good morning", vc.Affinity.Greeting)
}

func TestBuildNotPersonalized(t *testing.T) {
	tests := []struct {
		name   string
		flags  func(*config.Features)
		host   string
		optOut bool
	}{
		{name: "flag off", flags: func(f *config.Features) { f.Personalization = false }, host: "example.com"},
		{name: "site off", host: "quiet.example.com"},
		{name: "visitor opted out", host: "example.com", optOut: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := config.DefaultFeatures()
			if tt.flags != nil {
				tt.flags(&f)
			}
			fx := newFixture(t, f)
			ctx := context.Background()
			req := Request{Host: tt.host, Header: fairfax(), VisitorID: "v1", InterestParam: "drupal"}
			if tt.optOut {
				out := true
				require.NoError(t, fx.engine.SetPreferences(ctx, req, Preferences{OptOut: &out}))
			}

			vc := fx.engine.Build(ctx, req)
			assert.False(t, vc.Personalized)
			assert.Equal(t, tt.optOut, vc.OptedOut)
			assert.Equal(t, models.SegmentGeneral, vc.Segment)
			assert.Equal(t, "Welcome", vc.Affinity.Greeting)
			assert.Equal(t, models.InterestNone, vc.Affinity.Interest)
			// geo is still resolved
			assert.Equal(t, "Fairfax", vc.Geo.City)
		})
	}
}

func TestBuildSegmentOverrides(t *testing.T) {
	fx := newFixture(t, config.DefaultFeatures(), func(o *Options) { o.AllowOverrides = true })
	ctx := context.Background()
	req := Request{Host: "example.com", Header: fairfax(), VisitorID: "v1", Debug: true}

	seg := models.SegmentFederal
	require.NoError(t, fx.engine.SetPreferences(ctx, req, Preferences{Segment: &seg}))
	vc := fx.engine.Build(ctx, req)
	assert.Equal(t, models.SegmentFederal, vc.Segment)
	rule, _ := vc.Trace.Outcome(StageSegment)
	assert.Equal(t, "federal", rule)
	assert.Equal(t, "visitor-override", vc.Trace.Steps[findStep(vc.Trace, StageSegment)].Details["rule"])

	// the test header wins over the stored choice
	req.Header.Set(geo.HeaderTestSegment, "healthcare")
	vc = fx.engine.Build(ctx, req)
	assert.Equal(t, models.SegmentHealthcare, vc.Segment)

	// an unknown header value is ignored
	req.Header.Set(geo.HeaderTestSegment, "astronauts")
	vc = fx.engine.Build(ctx, req)
	assert.Equal(t, models.SegmentFederal, vc.Segment)

	// clearing the override restores classification
	none := models.Segment("")
	require.NoError(t, fx.engine.SetPreferences(ctx, req, Preferences{Segment: &none}))
	req.Header.Del(geo.HeaderTestSegment)
	vc = fx.engine.Build(ctx, req)
	assert.Equal(t, models.SegmentLocal, vc.Segment)
}

func findStep(tr *models.DecisionTrace, stage string) int {
	for i, s := range tr.Steps {
		if s.Stage == stage {
			return i
		}
	}
	return -1
}

func TestBuildInterestPersists(t *testing.T) {
	fx := newFixture(t, config.DefaultFeatures())
	ctx := context.Background()

	vc := fx.engine.Build(ctx, Request{Host: "example.com", Header: london(), VisitorID: "v1", InterestParam: "govtech"})
	assert.Equal(t, models.InterestGovtech, vc.Affinity.Interest)
	assert.Equal(t, "/blog/what-government-gets-wrong-about-website-migrations", vc.Affinity.FeaturedContent)

	vc = fx.engine.Build(ctx, Request{Host: "example.com", Header: london(), VisitorID: "v1"})
	assert.Equal(t, models.InterestGovtech, vc.Affinity.Interest)
	assert.Equal(t, 1, fx.metrics.Count("interest_source", string(intent.SourceStored), "govtech"))

	// visitors without an ID get no persistence
	vc = fx.engine.Build(ctx, Request{Host: "example.com", Header: london()})
	assert.Equal(t, models.InterestNone, vc.Affinity.Interest)
}

func TestBuildGeoOnlySite(t *testing.T) {
	fx := newFixture(t, config.DefaultFeatures())
	vc := fx.engine.Build(context.Background(), Request{Host: "blog.example.com", Header: fairfax(), VisitorID: "v1", InterestParam: "drupal"})
	assert.Equal(t, models.SegmentLocal, vc.Segment)
	assert.Equal(t, models.InterestNone, vc.Affinity.Interest)
	assert.Equal(t, affinity.DefaultAvatar, vc.Affinity.AvatarVariant)
	assert.Empty(t, vc.AvatarGender)

	f := config.DefaultFeatures()
	f.AvatarExperiment = true
	fx = newFixture(t, f)
	vc = fx.engine.Build(context.Background(), Request{Host: "blog.example.com", Header: fairfax(), VisitorID: "visitor-1"})
	assert.Equal(t, "/images/avatars/local.jpg", vc.Affinity.AvatarVariant)
	assert.Equal(t, visitor.AvatarGender("visitor-1"), vc.AvatarGender)
}

func TestBuildExperimentFlags(t *testing.T) {
	f := config.DefaultFeatures()
	f.Experiments = true
	f.GreetingExperiment = false
	f.ContextualMessageExperiment = false
	fx := newFixture(t, f)

	vc := fx.engine.Build(context.Background(), Request{Host: "example.com", Header: fairfax(), VisitorID: "visitor-1"})
	assert.Equal(t, visitor.VariantControl, vc.ExperimentVariant)
	assert.Equal(t, "Hey neighbor! 👋", vc.Affinity.Greeting)
	assert.Empty(t, vc.Affinity.ContextualMessage)
}

func TestBuildDebugTrace(t *testing.T) {
	fx := newFixture(t, config.DefaultFeatures(), func(o *Options) { o.DebugTrace = true })
	vc := fx.engine.Build(context.Background(), Request{Host: "example.com", Header: fairfax(), VisitorID: "v1"})
	require.NotNil(t, vc.Trace)

	var stages []string
	for _, s := range vc.Trace.Steps {
		stages = append(stages, s.Stage)
	}
	assert.Equal(t, []string{StageSite, StageGeo, StageSegment, StageInterest, StageProfile}, stages)
	src, _ := vc.Trace.Outcome(StageGeo)
	assert.Equal(t, string(geo.SourceVercel), src)
}

type failingStore struct{}

func (failingStore) Get(context.Context, string, string) (string, bool, error) {
	return "", false, errors.New("redis down")
}
func (failingStore) Set(context.Context, string, string, string) error { return errors.New("redis down") }
func (failingStore) Remove(context.Context, string, string) error      { return errors.New("redis down") }

func TestBuildSurvivesStoreErrors(t *testing.T) {
	fx := newFixture(t, config.DefaultFeatures())
	fx.engine.store = failingStore{}

	vc := fx.engine.Build(context.Background(), Request{Host: "example.com", Header: fairfax(), VisitorID: "v1"})
	assert.Equal(t, models.SegmentLocal, vc.Segment)
	assert.True(t, vc.Personalized)
	assert.Equal(t, 2, fx.metrics.Count("visitor_store_errors", "get"))

	_, err := fx.engine.Track(context.Background(), Request{VisitorID: "v1"}, models.Interaction{Slug: "x"})
	assert.Error(t, err)
}

func TestBuildRecordsAnalytics(t *testing.T) {
	f := config.DefaultFeatures()
	f.TrackMetrics = true
	fx := newFixture(t, f)
	ctx := context.Background()

	fx.engine.Build(ctx, Request{Host: "example.com", Header: fairfax(), VisitorID: "v1", RequestID: "r1",
		UserAgent: "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36"})
	fx.engine.Build(ctx, Request{Host: "example.com", Header: fairfax(), VisitorID: "v2",
		UserAgent: "Mozilla/5.0 (compatible; Googlebot/2.1; +http://www.google.com/bot.html)"})

	events := fx.analytics.EventsOfType(analytics.EventVisitorContext)
	require.Len(t, events, 1)
	assert.Equal(t, "r1", events[0].RequestID)
	assert.Equal(t, "local", events[0].Segment)
	assert.Equal(t, string(geo.SourceVercel), events[0].GeoSource)
	assert.Equal(t, "desktop", events[0].DeviceType)
}

func TestContentPromotesFeatured(t *testing.T) {
	fx := newFixture(t, config.DefaultFeatures())
	ctx := context.Background()
	req := Request{Host: "example.com", Header: london(), VisitorID: "v1", InterestParam: "govtech"}

	res := fx.engine.Content(ctx, req, reorder.All, nil, "")
	require.Len(t, res.Items, 3)
	assert.True(t, res.Featured)
	assert.Equal(t, "what-government-gets-wrong-about-website-migrations", res.Items[0].Slug)
	assert.Equal(t, "newest-post", res.Items[1].Slug)

	res = fx.engine.Content(ctx, req, reorder.All, []string{"newest-post"}, models.KindBlog)
	require.Len(t, res.Items, 1)
	assert.Equal(t, 2, fx.metrics.Count("reorder", "featured"))
}

func TestContentPlainWhenProminenceOff(t *testing.T) {
	f := config.DefaultFeatures()
	f.ContentProminenceExperiment = false
	fx := newFixture(t, f)

	res := fx.engine.Content(context.Background(), Request{Host: "example.com", Header: london(), InterestParam: "govtech"}, reorder.DefaultRange, nil, "")
	assert.False(t, res.Personalized)
	assert.False(t, res.Featured)
	require.Len(t, res.Items, 3)
	assert.Equal(t, "newest-post", res.Items[0].Slug)
	assert.Equal(t, "building-once-ui-a-customizable-design-system", res.Items[2].Slug)
	assert.Equal(t, 1, fx.metrics.Count("reorder", "plain"))
}

func TestTrackInfersInterest(t *testing.T) {
	fx := newFixture(t, config.DefaultFeatures())
	ctx := context.Background()
	req := Request{Host: "example.com", VisitorID: "v1"}

	for i, slug := range []string{"drupal-one", "drupal-two", "drupal-three"} {
		res, err := fx.engine.Track(ctx, req, models.Interaction{Slug: slug, Kind: models.KindBlog, Tags: []string{"drupal"}})
		require.NoError(t, err)
		if i < 2 {
			assert.False(t, res.Inferred)
		} else {
			assert.Equal(t, models.InterestDrupal, res.Interest)
		}
	}
	assert.Equal(t, 3, fx.metrics.Count("interactions", "blog"))

	vc := fx.engine.Build(ctx, Request{Host: "example.com", Header: london(), VisitorID: "v1"})
	assert.Equal(t, models.InterestDrupal, vc.Affinity.Interest)

	_, err := fx.engine.Track(ctx, Request{}, models.Interaction{Slug: "x"})
	assert.ErrorIs(t, err, ErrNoVisitor)
}

func TestSetPreferencesOptOutDisabled(t *testing.T) {
	f := config.DefaultFeatures()
	f.AllowOptOut = false
	fx := newFixture(t, f)
	out := true
	err := fx.engine.SetPreferences(context.Background(), Request{VisitorID: "v1"}, Preferences{OptOut: &out})
	assert.ErrorIs(t, err, ErrOptOutDisabled)
}

func TestNewEngineRejectsUnknownProfile(t *testing.T) {
	_, err := NewEngine(Options{ProfileMode: "psychic"}, geo.NewResolver(geo.Options{}, nil), segment.NewClassifier("US"), nil, nil, nil, nil, nil, nil)
	assert.Error(t, err)
}

func TestDefaultContext(t *testing.T) {
	vc := DefaultContext()
	assert.Equal(t, "US", vc.Geo.CountryCode)
	assert.Equal(t, models.SegmentGeneral, vc.Segment)
	assert.False(t, vc.Personalized)
}
