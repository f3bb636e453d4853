// Package personalization assembles a visitor's context from request signals:
// location, segment, interest, profile copy and experiment assignments.
package personalization

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/varunity/affinityserve/internal/analytics"
	"github.com/varunity/affinityserve/internal/config"
	"github.com/varunity/affinityserve/internal/geo"
	"github.com/varunity/affinityserve/internal/logic/affinity"
	"github.com/varunity/affinityserve/internal/logic/device"
	"github.com/varunity/affinityserve/internal/logic/intent"
	"github.com/varunity/affinityserve/internal/logic/segment"
	"github.com/varunity/affinityserve/internal/models"
	"github.com/varunity/affinityserve/internal/observability"
	"github.com/varunity/affinityserve/internal/visitor"
)

// Trace stages.
const (
	StageSite       = "site"
	StageGeo        = "geo"
	StageOptOut     = "opt_out"
	StageSegment    = "segment"
	StageInterest   = "interest"
	StageProfile    = "profile"
	StageExperiment = "experiment"
)

// Request carries the per-request inputs.
type Request struct {
	Host          string
	Header        http.Header
	ClientIP      net.IP
	VisitorID     string
	InterestParam string
	Referrer      string
	UserAgent     string
	RequestID     string
	Debug         bool
}

// Options configures an Engine.
type Options struct {
	Features       config.Features
	DefaultSite    string
	ProfileMode    string
	AllowOverrides bool
	DebugTrace     bool
}

// Engine builds visitor contexts. It is safe for concurrent use.
type Engine struct {
	opts       Options
	geo        *geo.Resolver
	classifier *segment.Classifier
	detector   *intent.Detector
	resolvers  map[string]*affinity.Resolver
	store      visitor.Store
	content    models.ContentStore
	metrics    observability.MetricsRegistry
	analytics  analytics.AnalyticsService
	logger     *zap.Logger
	now        func() time.Time

	// fraction of Build calls that emit a debug line
	logSampleRate float64
}

// NewEngine wires the components. store, an and metrics may be nil.
func NewEngine(opts Options, geoRes *geo.Resolver, classifier *segment.Classifier, detector *intent.Detector,
	store visitor.Store, content models.ContentStore, metrics observability.MetricsRegistry,
	an analytics.AnalyticsService, logger *zap.Logger) (*Engine, error) {
	if opts.ProfileMode == "" {
		opts.ProfileMode = models.ProfileModeInterestAware
	}
	if _, err := affinity.ForMode(opts.ProfileMode); err != nil {
		return nil, err
	}
	if metrics == nil {
		metrics = observability.NewNoOpRegistry()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	resolvers := make(map[string]*affinity.Resolver, 2)
	for _, mode := range []string{models.ProfileModeInterestAware, models.ProfileModeGeoOnly} {
		r, err := affinity.ForMode(mode)
		if err != nil {
			return nil, fmt.Errorf("profile %s: %w", mode, err)
		}
		resolvers[mode] = r
	}
	return &Engine{
		opts:       opts,
		geo:        geoRes,
		classifier: classifier,
		detector:   detector,
		resolvers:  resolvers,
		store:      store,
		content:    content,
		metrics:    metrics,
		analytics:  an,
		logger:     logger,
		now:        time.Now,

		logSampleRate: observability.GetSamplingRate(),
	}, nil
}

// Features returns the flags the engine was built with.
func (e *Engine) Features() config.Features { return e.opts.Features }

// Site returns the site serving host, falling back to the default site. A
// site missing from the catalogue is synthesised so requests never fail.
func (e *Engine) Site(host string) models.Site {
	if e.content != nil {
		if s := e.content.GetSiteByHost(host); s != nil {
			return *s
		}
		if s := e.content.GetSite(e.opts.DefaultSite); s != nil {
			return *s
		}
	}
	return models.Site{ID: e.opts.DefaultSite, ProfileMode: e.opts.ProfileMode, Personalize: true}
}

func (e *Engine) resolverFor(site models.Site) *affinity.Resolver {
	if r, ok := e.resolvers[site.ProfileMode]; ok {
		return r
	}
	return e.resolvers[e.opts.ProfileMode]
}

func (e *Engine) state(visitorID string) *visitor.State {
	if e.store == nil || visitorID == "" {
		return nil
	}
	return visitor.NewState(e.store, visitorID)
}

// DefaultContext is returned when a context cannot be built.
func DefaultContext() models.VisitorContext {
	r, _ := affinity.ForMode(models.ProfileModeInterestAware)
	return models.VisitorContext{
		Geo:      models.DefaultLocation(),
		Segment:  models.SegmentGeneral,
		Affinity: r.Resolve(models.SegmentGeneral, models.InterestNone),
	}
}

// Build returns the visitor context for req and records it.
func (e *Engine) Build(ctx context.Context, req Request) models.VisitorContext {
	vc, geoSource := e.build(ctx, req)
	e.record(ctx, req, vc, geoSource)
	if observability.ShouldSample(e.logSampleRate) {
		e.logger.Debug("visitor context",
			zap.String("site", vc.Site),
			zap.String("segment", string(vc.Segment)),
			zap.String("interest", string(vc.Affinity.Interest)),
			zap.String("geo_source", string(geoSource)),
			zap.Bool("personalized", vc.Personalized))
	}
	return vc
}

func (e *Engine) build(ctx context.Context, req Request) (models.VisitorContext, geo.Source) {
	var trace *models.DecisionTrace
	if req.Debug || e.opts.DebugTrace {
		trace = &models.DecisionTrace{}
	}
	now := e.now()
	site := e.Site(req.Host)
	resolver := e.resolverFor(site)
	trace.AddStepWithDetails(StageSite, site.ID, map[string]string{"host": req.Host, "profile_mode": resolver.Mode()})

	loc, src := e.geo.Resolve(req.Header, req.ClientIP)
	e.metrics.IncrementGeoSource(string(src))
	trace.AddStepWithDetails(StageGeo, string(src), map[string]string{
		"country": loc.CountryCode, "region": loc.Region, "city": loc.City, "timezone": loc.Timezone,
	})

	vc := models.VisitorContext{Site: site.ID, Geo: loc, Trace: trace}
	st := e.state(req.VisitorID)

	if e.opts.Features.AllowOptOut && st != nil {
		out, err := st.OptedOut(ctx)
		if err != nil {
			e.storeError(req.VisitorID, "get", err)
		}
		vc.OptedOut = out
	}

	switch {
	case !e.opts.Features.Personalization:
		trace.AddStep(StageOptOut, "disabled")
	case !site.Personalize:
		trace.AddStep(StageOptOut, "site")
	case vc.OptedOut:
		trace.AddStep(StageOptOut, "visitor")
	default:
		e.personalize(ctx, req, site, resolver, st, now, &vc)
		return vc, src
	}

	vc.Segment = models.SegmentGeneral
	vc.Affinity = resolver.Resolve(models.SegmentGeneral, models.InterestNone)
	e.applyAvatar(site, resolver, &vc)
	e.metrics.IncrementSegment(site.ID, string(vc.Segment))
	trace.AddStep(StageProfile, string(vc.Segment))
	return vc, src
}

func (e *Engine) personalize(ctx context.Context, req Request, site models.Site, resolver *affinity.Resolver, st *visitor.State, now time.Time, vc *models.VisitorContext) {
	f := e.opts.Features
	seg, how := e.segment(ctx, req, st, vc.Geo)
	vc.Segment = seg
	vc.Trace.AddStepWithDetails(StageSegment, string(seg), map[string]string{"rule": how})
	e.metrics.IncrementSegment(site.ID, string(seg))

	interest := models.InterestNone
	if resolver.Mode() == models.ProfileModeInterestAware && e.detector != nil {
		var isrc intent.Source
		interest, isrc = e.detector.Detect(ctx, st, intent.Signals{Param: req.InterestParam, Referrer: req.Referrer})
		e.metrics.IncrementInterestSource(string(isrc), string(interest))
		vc.Trace.AddStepWithDetails(StageInterest, string(isrc), map[string]string{"interest": string(interest)})
	}

	p := resolver.Resolve(seg, interest)
	if f.GreetingExperiment && p.Greeting == resolver.SegmentGreeting(p.Segment) {
		p.Greeting = resolver.CombinedGreeting(p.Segment, vc.Geo.Timezone, now)
	}
	if !f.ContextualMessageExperiment {
		p.ContextualMessage = ""
	}
	vc.Affinity = p
	vc.Personalized = true
	e.applyAvatar(site, resolver, vc)
	vc.Trace.AddStepWithDetails(StageProfile, string(p.Segment), map[string]string{
		"featured": p.FeaturedContent, "avatar": p.AvatarVariant,
	})

	if f.Experiments && req.VisitorID != "" {
		vc.ExperimentVariant = visitor.ExperimentVariant(req.VisitorID)
		vc.Trace.AddStep(StageExperiment, vc.ExperimentVariant)
	}
	if f.AvatarExperiment && req.VisitorID != "" {
		vc.AvatarGender = visitor.AvatarGender(req.VisitorID)
	}
}

// segment picks the test header, then the stored override, then the classifier.
func (e *Engine) segment(ctx context.Context, req Request, st *visitor.State, loc models.Location) (models.Segment, string) {
	if e.opts.AllowOverrides && req.Header != nil {
		if seg, ok := models.ParseSegment(req.Header.Get(geo.HeaderTestSegment)); ok {
			return seg, "test-override"
		}
	}
	if st != nil {
		seg, ok, err := st.SegmentOverride(ctx)
		if err != nil {
			e.storeError(req.VisitorID, "get", err)
		} else if ok {
			return seg, "visitor-override"
		}
	}
	return e.classifier.ClassifyWithRule(loc)
}

// applyAvatar uses the site avatar for interest-aware sites and for geo-only
// sites while the avatar experiment is off.
func (e *Engine) applyAvatar(site models.Site, resolver *affinity.Resolver, vc *models.VisitorContext) {
	if resolver.Mode() == models.ProfileModeGeoOnly && e.opts.Features.AvatarExperiment {
		return
	}
	switch {
	case site.Avatar != "":
		vc.Affinity.AvatarVariant = site.Avatar
	case resolver.Mode() == models.ProfileModeGeoOnly:
		vc.Affinity.AvatarVariant = affinity.DefaultAvatar
	}
}

func (e *Engine) storeError(visitorID, op string, err error) {
	e.metrics.IncrementVisitorStoreErrors(op)
	e.logger.Warn("visitor store", zap.String("visitor_id", visitorID), zap.String("op", op), zap.Error(err))
}

func (e *Engine) record(ctx context.Context, req Request, vc models.VisitorContext, src geo.Source) {
	if e.analytics == nil || !e.opts.Features.TrackMetrics {
		return
	}
	info := device.Parse(req.UserAgent)
	if info.IsBot {
		return
	}
	err := e.analytics.RecordEvent(ctx, analytics.Event{
		EventType:  analytics.EventVisitorContext,
		RequestID:  req.RequestID,
		VisitorID:  req.VisitorID,
		Site:       vc.Site,
		Segment:    string(vc.Segment),
		Interest:   string(vc.Affinity.Interest),
		Country:    vc.Geo.CountryCode,
		GeoSource:  string(src),
		DeviceType: info.Type,
		Variant:    vc.ExperimentVariant,
	})
	if err != nil && !errors.Is(err, analytics.ErrUnavailable) {
		e.logger.Warn("record visitor context", zap.Error(err))
	}
}
