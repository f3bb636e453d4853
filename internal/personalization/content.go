package personalization

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/varunity/affinityserve/internal/analytics"
	"github.com/varunity/affinityserve/internal/logic/reorder"
	"github.com/varunity/affinityserve/internal/models"
)

// ErrNoVisitor is returned by operations that need a visitor ID and store.
var ErrNoVisitor = errors.New("visitor state unavailable")

// ContentResult is an ordered slice of a site's catalogue.
type ContentResult struct {
	Items        []models.ContentItem `json:"items"`
	Featured     bool                 `json:"featured"`
	Personalized bool                 `json:"personalized"`
	Segment      models.Segment       `json:"segment"`
}

// Content orders the site's content for the visitor. The profile's featured
// item is promoted only when personalization, content prominence and the site
// all allow it and the visitor has not opted out. kind filters by content
// kind when non-empty.
func (e *Engine) Content(ctx context.Context, req Request, rng reorder.Range, exclude []string, kind models.ContentKind) ContentResult {
	vc, _ := e.build(ctx, req)
	site := e.Site(req.Host)

	var items []models.ContentItem
	if e.content != nil {
		if kind != "" {
			items = e.content.GetContentByKind(site.ID, kind)
		} else {
			items = e.content.GetContent(site.ID)
		}
	}

	personalize := e.opts.Features.Personalization && e.opts.Features.ContentProminenceExperiment &&
		site.Personalize && !vc.OptedOut
	res := reorder.Reorder(items, vc.Affinity.FeaturedContent, personalize, rng, exclude)

	outcome := "plain"
	switch {
	case res.Featured:
		outcome = "featured"
	case personalize:
		outcome = "no_match"
	}
	e.metrics.IncrementReorder(outcome)

	return ContentResult{
		Items:        res.Items,
		Featured:     res.Featured,
		Personalized: personalize,
		Segment:      vc.Segment,
	}
}

// TrackResult reports the interest after an interaction.
type TrackResult struct {
	Interest models.Interest `json:"interest,omitempty"`
	Inferred bool            `json:"inferred"`
}

// Track records a content interaction for the visitor and re-infers their
// interest.
func (e *Engine) Track(ctx context.Context, req Request, ia models.Interaction) (TrackResult, error) {
	st := e.state(req.VisitorID)
	if st == nil || e.detector == nil {
		return TrackResult{}, ErrNoVisitor
	}
	interest, err := e.detector.Track(ctx, st, ia)
	if err != nil {
		e.storeError(req.VisitorID, "set", err)
		return TrackResult{}, err
	}
	e.metrics.IncrementInteractions(string(ia.Kind))

	if e.analytics != nil && e.opts.Features.TrackMetrics {
		err := e.analytics.RecordEvent(ctx, analytics.Event{
			EventType: analytics.EventInteraction,
			RequestID: req.RequestID,
			VisitorID: req.VisitorID,
			Site:      e.Site(req.Host).ID,
			Interest:  string(interest),
			Slug:      ia.Slug,
		})
		if err != nil && !errors.Is(err, analytics.ErrUnavailable) {
			e.logger.Warn("record interaction", zap.Error(err))
		}
	}
	return TrackResult{Interest: interest, Inferred: interest.Present()}, nil
}

// Preferences are visitor-controlled settings. Nil fields are left alone;
// an empty Segment clears the override.
type Preferences struct {
	OptOut  *bool
	Segment *models.Segment
}

// SetPreferences applies p for the visitor. Opting out is rejected when the
// feature is disabled.
func (e *Engine) SetPreferences(ctx context.Context, req Request, p Preferences) error {
	st := e.state(req.VisitorID)
	if st == nil {
		return ErrNoVisitor
	}
	if p.OptOut != nil {
		if !e.opts.Features.AllowOptOut {
			return ErrOptOutDisabled
		}
		if err := st.SetOptOut(ctx, *p.OptOut); err != nil {
			e.storeError(req.VisitorID, "set", err)
			return err
		}
	}
	if p.Segment != nil {
		if err := st.SetSegmentOverride(ctx, *p.Segment); err != nil {
			e.storeError(req.VisitorID, "set", err)
			return err
		}
	}
	if e.analytics != nil && e.opts.Features.TrackMetrics {
		ev := analytics.Event{EventType: analytics.EventPreference, RequestID: req.RequestID, VisitorID: req.VisitorID}
		if p.Segment != nil {
			ev.Segment = string(*p.Segment)
		}
		if err := e.analytics.RecordEvent(ctx, ev); err != nil && !errors.Is(err, analytics.ErrUnavailable) {
			e.logger.Warn("record preference", zap.Error(err))
		}
	}
	return nil
}

// ErrOptOutDisabled is returned when opt-out is requested but not offered.
var ErrOptOutDisabled = errors.New("opt-out is disabled")
