package newsletter

import (
	"context"
	"errors"
	"os"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/varunity/affinityserve/internal/analytics"
	"github.com/varunity/affinityserve/internal/models"
	"github.com/varunity/affinityserve/internal/observability"
)

func newTestService(t *testing.T) (*Service, *FileRepository, *observability.MockMetricsRegistry, *analytics.MockAnalytics) {
	t.Helper()
	repo := NewFileRepository(filepath.Join(t.TempDir(), "data", "subscribers.json"))
	metrics := observability.NewMockMetricsRegistry()
	an := analytics.NewMockAnalytics()
	return NewService(repo, time.Minute, 5*time.Minute, metrics, an, nil), repo, metrics, an
}

func TestSubscribeValidation(t *testing.T) {
	tests := []struct {
		name    string
		sub     Submission
		wantErr error
	}{
		{name: "honeypot", sub: Submission{Email: "a@b.co", Honeypot: "bot"}, wantErr: ErrHoneypot},
		{name: "missing at", sub: Submission{Email: "ab.co"}, wantErr: ErrInvalidEmail},
		{name: "missing dot", sub: Submission{Email: "a@bco"}, wantErr: ErrInvalidEmail},
		{name: "whitespace inside", sub: Submission{Email: "a b@c.co"}, wantErr: ErrInvalidEmail},
		{name: "empty", sub: Submission{}, wantErr: ErrInvalidEmail},
		{name: "valid", sub: Submission{Email: " a@b.co ", ClientAddr: "1.2.3.4"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _, _, _ := newTestService(t)
			err := svc.Subscribe(context.Background(), tt.sub)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestSubscribeRateLimitAndDuplicate(t *testing.T) {
	svc, repo, metrics, an := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.Subscribe(ctx, Submission{Email: "first@example.com", ClientAddr: "1.1.1.1", Segment: models.SegmentLocal}))

	// same client inside the window
	err := svc.Subscribe(ctx, Submission{Email: "second@example.com", ClientAddr: "1.1.1.1"})
	assert.ErrorIs(t, err, ErrRateLimited)

	// other client, same email in different case
	err = svc.Subscribe(ctx, Submission{Email: "FIRST@example.com", ClientAddr: "2.2.2.2"})
	assert.ErrorIs(t, err, ErrDuplicate)

	// a rejected duplicate does not start a window for the client
	require.NoError(t, svc.Subscribe(ctx, Submission{Email: "third@example.com", ClientAddr: "2.2.2.2"}))

	subs, err := repo.All()
	require.NoError(t, err)
	require.Len(t, subs, 2)
	assert.Equal(t, "first@example.com", subs[0].Email)
	assert.Equal(t, models.SegmentLocal, subs[0].Segment)
	assert.NotZero(t, subs[0].Timestamp)

	assert.Equal(t, 2, metrics.Count("newsletter", "success"))
	assert.Equal(t, 1, metrics.Count("newsletter", "rate_limited"))
	assert.Equal(t, 1, metrics.Count("newsletter", "duplicate"))
	assert.Len(t, an.EventsOfType(analytics.EventNewsletterSignup), 2)
}

func TestSubscribeUnknownClientShareKey(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	ctx := context.Background()
	require.NoError(t, svc.Subscribe(ctx, Submission{Email: "a@example.com"}))
	assert.ErrorIs(t, svc.Subscribe(ctx, Submission{Email: "b@example.com"}), ErrRateLimited)
}

type brokenRepo struct{}

func (brokenRepo) Exists(context.Context, string) (bool, error) { return false, errors.New("disk full") }
func (brokenRepo) Add(context.Context, models.Subscriber) error  { return nil }

func TestSubscribeRepositoryError(t *testing.T) {
	metrics := observability.NewMockMetricsRegistry()
	svc := NewService(brokenRepo{}, time.Minute, 5*time.Minute, metrics, nil, nil)
	err := svc.Subscribe(context.Background(), Submission{Email: "a@example.com"})
	assert.ErrorContains(t, err, "disk full")

	// a failed save releases the client's window
	err = svc.Subscribe(context.Background(), Submission{Email: "a@example.com"})
	assert.ErrorContains(t, err, "disk full")
	assert.Equal(t, 2, metrics.Count("newsletter", "error"))
	assert.Zero(t, metrics.Count("newsletter", "rate_limited"))
}

func TestSubscribeConcurrentSameClient(t *testing.T) {
	svc, repo, metrics, _ := newTestService(t)
	ctx := context.Background()

	const n = 20
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = svc.Subscribe(ctx, Submission{Email: fmt.Sprintf("user%d@example.com", i), ClientAddr: "9.9.9.9"})
		}(i)
	}
	wg.Wait()

	ok := 0
	for _, err := range errs {
		if err == nil {
			ok++
			continue
		}
		assert.ErrorIs(t, err, ErrRateLimited)
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, n-1, metrics.Count("newsletter", "rate_limited"))

	subs, err := repo.All()
	require.NoError(t, err)
	assert.Len(t, subs, 1)
}

func TestFileRepository(t *testing.T) {
	path := filepath.Join(t.TempDir(), "subscribers.json")
	repo := NewFileRepository(path)
	ctx := context.Background()

	ok, err := repo.Exists(ctx, "a@b.co")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, repo.Add(ctx, models.Subscriber{Email: "a@b.co", Timestamp: 1}))
	assert.ErrorIs(t, repo.Add(ctx, models.Subscriber{Email: "A@B.CO"}), ErrDuplicate)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"subscribers"`)

	// a fresh repository sees persisted entries
	ok, err = NewFileRepository(path).Exists(ctx, "a@b.co")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestFileRepositoryCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "subscribers.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))
	_, err := NewFileRepository(path).Exists(context.Background(), "a@b.co")
	assert.ErrorContains(t, err, "parse subscribers")
}
