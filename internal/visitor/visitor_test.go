package visitor

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/varunity/affinityserve/internal/models"
)

func TestHashMatchesBrowser(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"", 0},
		{"abc", 54},
		{"visitor-1", 14},
		{"session-1700000000000-abc123xyz", 79},
		{"3f2c1a9e-8d7b-4c6a-9e5f-1b2c3d4e5f60", 63},
		{"héllo", 34},
		{"😀x", 89},
	}
	for _, tt := range tests {
		if got := Hash(tt.in, 100); got != tt.want {
			t.Errorf("Hash(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestVariants(t *testing.T) {
	assert.Equal(t, VariantControl, ExperimentVariant("visitor-1"))
	assert.Equal(t, VariantA, ExperimentVariant("abc"))
	assert.Equal(t, VariantB, ExperimentVariant("session-1700000000000-abc123xyz"))

	assert.Equal(t, "male", AvatarGender("visitor-1"))
	assert.Equal(t, "female", AvatarGender("abc"))
}

func TestMemoryStoreTTL(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s := NewMemoryStore(time.Hour)
	s.now = func() time.Time { return now }

	require.NoError(t, s.Set(ctx, "v1", "k", "value"))
	v, ok, err := s.Get(ctx, "v1", "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "value", v)

	_, ok, _ = s.Get(ctx, "v2", "k")
	assert.False(t, ok, "visitors must not share keys")

	now = now.Add(2 * time.Hour)
	_, ok, _ = s.Get(ctx, "v1", "k")
	assert.False(t, ok, "entry should have expired")
}

func TestStateInterest(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(0)
	st := NewState(store, "v1")

	got, err := st.Interest(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.InterestNone, got)

	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, st.SetInterest(ctx, models.InterestGovtech, at))
	got, err = st.Interest(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.InterestGovtech, got)

	ts, ok, _ := store.Get(ctx, "v1", KeyInterestUpdated)
	assert.True(t, ok)
	assert.Equal(t, "2024-05-01T12:00:00Z", ts)

	require.NoError(t, store.Set(ctx, "v1", KeyInterest, "backend"))
	got, _ = st.Interest(ctx)
	assert.Equal(t, models.InterestNone, got, "unknown values read as absent")
}

func TestAppendInteractionEvictsOldest(t *testing.T) {
	ctx := context.Background()
	st := NewState(NewMemoryStore(0), "v1")

	var list []models.Interaction
	var err error
	for i := 0; i < MaxInteractions+5; i++ {
		list, err = st.AppendInteraction(ctx, models.Interaction{Slug: fmt.Sprintf("post-%d", i), Kind: models.KindBlog})
		require.NoError(t, err)
	}
	require.Len(t, list, MaxInteractions)
	assert.Equal(t, "post-5", list[0].Slug)
	assert.Equal(t, fmt.Sprintf("post-%d", MaxInteractions+4), list[len(list)-1].Slug)

	stored, err := st.Interactions(ctx)
	require.NoError(t, err)
	assert.Equal(t, list, stored)
}

func TestCorruptInteractionsReadAsEmpty(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(0)
	require.NoError(t, store.Set(ctx, "v1", KeyInteractions, "{not json"))
	list, err := NewState(store, "v1").Interactions(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestSegmentOverrideAndOptOut(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(0)
	st := NewState(store, "v1")

	_, ok, err := st.SegmentOverride(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, st.SetSegmentOverride(ctx, models.SegmentFederal))
	seg, ok, _ := st.SegmentOverride(ctx)
	assert.True(t, ok)
	assert.Equal(t, models.SegmentFederal, seg)

	require.NoError(t, st.SetSegmentOverride(ctx, ""))
	_, ok, _ = st.SegmentOverride(ctx)
	assert.False(t, ok)

	require.NoError(t, store.Set(ctx, "v1", KeySegmentOverride, "martian"))
	_, ok, _ = st.SegmentOverride(ctx)
	assert.False(t, ok, "invalid overrides are ignored")

	out, _ := st.OptedOut(ctx)
	assert.False(t, out)
	require.NoError(t, st.SetOptOut(ctx, true))
	out, _ = st.OptedOut(ctx)
	assert.True(t, out)
	require.NoError(t, st.SetOptOut(ctx, false))
	out, _ = st.OptedOut(ctx)
	assert.False(t, out)
}
