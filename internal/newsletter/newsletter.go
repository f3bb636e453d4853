// Package newsletter accepts newsletter signups behind a honeypot, an email
// check, a per-client rate limit and duplicate detection.
package newsletter

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/varunity/affinityserve/internal/analytics"
	"github.com/varunity/affinityserve/internal/db"
	"github.com/varunity/affinityserve/internal/logic/ratelimit"
	"github.com/varunity/affinityserve/internal/models"
	"github.com/varunity/affinityserve/internal/observability"
)

var (
	ErrHoneypot     = errors.New("invalid submission")
	ErrInvalidEmail = errors.New("invalid email address")
	ErrRateLimited  = errors.New("too many requests")
	// ErrDuplicate aliases the storage sentinel so callers need one import.
	ErrDuplicate = db.ErrDuplicate
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// Repository stores subscribers. Add returns ErrDuplicate for an email that
// is already present, ignoring case.
type Repository interface {
	Exists(ctx context.Context, email string) (bool, error)
	Add(ctx context.Context, sub models.Subscriber) error
}

// Submission is one signup attempt.
type Submission struct {
	Email      string
	Honeypot   string
	Segment    models.Segment
	ClientAddr string
	UserAgent  string
	VisitorID  string
}

// Service validates and stores signups.
type Service struct {
	repo        Repository
	limiter     *ratelimit.WindowLimiter
	pruneWindow time.Duration
	metrics     observability.MetricsRegistry
	analytics   analytics.AnalyticsService
	logger      *zap.Logger
	now         func() time.Time
}

// NewService returns a Service allowing one signup per client per window.
// Limiter entries older than pruneWindow are dropped after each success.
func NewService(repo Repository, window, pruneWindow time.Duration, metrics observability.MetricsRegistry, an analytics.AnalyticsService, logger *zap.Logger) *Service {
	if metrics == nil {
		metrics = observability.NewNoOpRegistry()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		repo:        repo,
		limiter:     ratelimit.NewWindowLimiter("newsletter", window, metrics),
		pruneWindow: pruneWindow,
		metrics:     metrics,
		analytics:   an,
		logger:      logger,
		now:         time.Now,
	}
}

// Subscribe runs the signup checks in order and stores the subscriber.
func (s *Service) Subscribe(ctx context.Context, sub Submission) error {
	err := s.subscribe(ctx, sub)
	s.metrics.IncrementNewsletter(outcome(err))
	return err
}

func (s *Service) subscribe(ctx context.Context, sub Submission) error {
	if sub.Honeypot != "" {
		return ErrHoneypot
	}
	email := strings.ToLower(strings.TrimSpace(sub.Email))
	if !emailPattern.MatchString(email) {
		return ErrInvalidEmail
	}

	key := sub.ClientAddr
	if key == "" {
		key = "unknown"
	}
	release, ok := s.limiter.Reserve(key)
	if !ok {
		return ErrRateLimited
	}

	if err := s.store(ctx, email, sub); err != nil {
		// only stored signups hold the client's window
		release()
		return err
	}

	if n := s.limiter.Prune(s.pruneWindow); n > 0 {
		s.logger.Debug("pruned newsletter limiter", zap.Int("removed", n))
	}

	if s.analytics != nil {
		if err := s.analytics.RecordEvent(ctx, analytics.Event{
			EventType: analytics.EventNewsletterSignup,
			VisitorID: sub.VisitorID,
			Segment:   string(sub.Segment),
		}); err != nil && !errors.Is(err, analytics.ErrUnavailable) {
			s.logger.Warn("record signup event", zap.Error(err))
		}
	}
	s.logger.Info("newsletter signup", zap.String("segment", string(sub.Segment)))
	return nil
}

func (s *Service) store(ctx context.Context, email string, sub Submission) error {
	exists, err := s.repo.Exists(ctx, email)
	if err != nil {
		return fmt.Errorf("check subscriber: %w", err)
	}
	if exists {
		return ErrDuplicate
	}
	if err := s.repo.Add(ctx, models.Subscriber{
		Email:     email,
		Timestamp: s.now().UnixMilli(),
		Segment:   sub.Segment,
		UserAgent: sub.UserAgent,
	}); err != nil {
		if errors.Is(err, ErrDuplicate) {
			return ErrDuplicate
		}
		return fmt.Errorf("save subscriber: %w", err)
	}
	return nil
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrHoneypot):
		return "honeypot"
	case errors.Is(err, ErrInvalidEmail):
		return "invalid_email"
	case errors.Is(err, ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, ErrDuplicate):
		return "duplicate"
	default:
		return "error"
	}
}
