// Package intent infers a visitor's content interest from explicit parameters,
// the referrer, search terms and the history of content they have viewed.
package intent

import (
	"context"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/varunity/affinityserve/internal/models"
	"github.com/varunity/affinityserve/internal/visitor"
)

// Source names the signal an interest came from.
type Source string

const (
	SourceParam    Source = "param"
	SourceReferrer Source = "referrer"
	SourceSearch   Source = "search"
	SourceStored   Source = "stored"
	SourceNone     Source = "none"
)

// MinInteractions is the history length below which nothing is inferred.
const MinInteractions = 3

// Signals are the request inputs the detector reads.
type Signals struct {
	// Param is the raw ?interest= value.
	Param string
	// Referrer is the Referer header.
	Referrer string
}

// Detector resolves interests and maintains the persisted interest.
type Detector struct {
	logger *zap.Logger
	now    func() time.Time
}

// NewDetector returns a Detector that logs storage failures to logger.
func NewDetector(logger *zap.Logger) *Detector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Detector{logger: logger, now: time.Now}
}

// Detect returns the visitor's interest using, in order: the explicit
// parameter, the referrer domain, search keywords in the referrer's query and
// the persisted interest. Fresh signals are persisted. st may be nil, in which
// case nothing is read or written.
func (d *Detector) Detect(ctx context.Context, st *visitor.State, sig Signals) (models.Interest, Source) {
	if i, ok := models.ParseInterest(sig.Param); ok {
		d.persist(ctx, st, i)
		return i, SourceParam
	}
	if i := FromReferrer(sig.Referrer); i.Present() {
		d.persist(ctx, st, i)
		return i, SourceReferrer
	}
	if i := FromSearch(sig.Referrer); i.Present() {
		d.persist(ctx, st, i)
		return i, SourceSearch
	}
	if st != nil {
		i, err := st.Interest(ctx)
		if err != nil {
			d.logger.Warn("read stored interest", zap.String("visitor_id", st.ID()), zap.Error(err))
			return models.InterestNone, SourceNone
		}
		if i.Present() {
			return i, SourceStored
		}
	}
	return models.InterestNone, SourceNone
}

func (d *Detector) persist(ctx context.Context, st *visitor.State, i models.Interest) {
	if st == nil {
		return
	}
	if err := st.SetInterest(ctx, i, d.now()); err != nil {
		d.logger.Warn("persist interest", zap.String("visitor_id", st.ID()), zap.Error(err))
	}
}

// Track appends ia to the visitor's history and re-scores it. When one
// category dominates, it is persisted and returned; otherwise the prior
// interest is left alone and InterestNone is returned.
func (d *Detector) Track(ctx context.Context, st *visitor.State, ia models.Interaction) (models.Interest, error) {
	if ia.Timestamp.IsZero() {
		ia.Timestamp = d.now().UTC()
	}
	history, err := st.AppendInteraction(ctx, ia)
	if err != nil {
		return models.InterestNone, err
	}
	inferred := Infer(history)
	if inferred.Present() {
		if err := st.SetInterest(ctx, inferred, d.now()); err != nil {
			return models.InterestNone, err
		}
	}
	return inferred, nil
}

// FromReferrer matches the lower-cased referrer against per-interest domain lists.
func FromReferrer(referrer string) models.Interest {
	if referrer == "" {
		return models.InterestNone
	}
	return firstMatch(referrerDomains, strings.ToLower(referrer))
}

// FromSearch extracts a search query (q or query) from the referrer URL and
// matches it against per-interest keyword lists.
func FromSearch(referrer string) models.Interest {
	if referrer == "" {
		return models.InterestNone
	}
	u, err := url.Parse(referrer)
	if err != nil {
		return models.InterestNone
	}
	q := u.Query()
	query := q.Get("q")
	if query == "" {
		query = q.Get("query")
	}
	if query == "" {
		return models.InterestNone
	}
	return firstMatch(searchKeywords, strings.ToLower(query))
}

func firstMatch(cats []category, text string) models.Interest {
	for _, c := range cats {
		if containsAny(text, c.needles) {
			return c.interest
		}
	}
	return models.InterestNone
}

func containsAny(text string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(text, n) {
			return true
		}
	}
	return false
}
