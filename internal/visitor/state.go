package visitor

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/varunity/affinityserve/internal/models"
)

// MaxInteractions bounds the stored history; older entries are evicted first.
const MaxInteractions = 20

// State is a typed view of one visitor's entries in a Store.
type State struct {
	store Store
	id    string
}

// NewState binds store to a visitor.
func NewState(store Store, visitorID string) *State {
	return &State{store: store, id: visitorID}
}

// ID returns the visitor ID the state is bound to.
func (s *State) ID() string { return s.id }

// Interest returns the persisted interest. Unknown values read as absent.
func (s *State) Interest(ctx context.Context) (models.Interest, error) {
	v, ok, err := s.store.Get(ctx, s.id, KeyInterest)
	if err != nil || !ok {
		return models.InterestNone, err
	}
	interest, _ := models.ParseInterest(v)
	return interest, nil
}

// SetInterest persists interest and the time it was detected.
func (s *State) SetInterest(ctx context.Context, interest models.Interest, at time.Time) error {
	if err := s.store.Set(ctx, s.id, KeyInterest, string(interest)); err != nil {
		return fmt.Errorf("store interest: %w", err)
	}
	if err := s.store.Set(ctx, s.id, KeyInterestUpdated, at.UTC().Format(time.RFC3339)); err != nil {
		return fmt.Errorf("store interest timestamp: %w", err)
	}
	return nil
}

// Interactions returns the stored history, oldest first. A corrupt value reads
// as an empty history.
func (s *State) Interactions(ctx context.Context) ([]models.Interaction, error) {
	v, ok, err := s.store.Get(ctx, s.id, KeyInteractions)
	if err != nil || !ok {
		return nil, err
	}
	var list []models.Interaction
	if err := json.Unmarshal([]byte(v), &list); err != nil {
		return nil, nil
	}
	return list, nil
}

// AppendInteraction adds ia to the history, keeps the most recent
// MaxInteractions entries and returns the stored list.
func (s *State) AppendInteraction(ctx context.Context, ia models.Interaction) ([]models.Interaction, error) {
	list, err := s.Interactions(ctx)
	if err != nil {
		return nil, err
	}
	list = append(list, ia)
	if len(list) > MaxInteractions {
		list = list[len(list)-MaxInteractions:]
	}
	data, err := json.Marshal(list)
	if err != nil {
		return nil, fmt.Errorf("encode interactions: %w", err)
	}
	if err := s.store.Set(ctx, s.id, KeyInteractions, string(data)); err != nil {
		return nil, fmt.Errorf("store interactions: %w", err)
	}
	return list, nil
}

// SegmentOverride returns the visitor's chosen segment, if valid.
func (s *State) SegmentOverride(ctx context.Context) (models.Segment, bool, error) {
	v, ok, err := s.store.Get(ctx, s.id, KeySegmentOverride)
	if err != nil || !ok {
		return "", false, err
	}
	seg, valid := models.ParseSegment(v)
	return seg, valid, nil
}

// SetSegmentOverride stores seg, or clears the override when seg is empty.
func (s *State) SetSegmentOverride(ctx context.Context, seg models.Segment) error {
	if seg == "" {
		return s.store.Remove(ctx, s.id, KeySegmentOverride)
	}
	return s.store.Set(ctx, s.id, KeySegmentOverride, string(seg))
}

// OptedOut reports whether the visitor turned personalization off.
func (s *State) OptedOut(ctx context.Context) (bool, error) {
	v, ok, err := s.store.Get(ctx, s.id, KeyOptOut)
	if err != nil || !ok {
		return false, err
	}
	b, _ := strconv.ParseBool(v)
	return b, nil
}

// SetOptOut records the visitor's choice. Opting back in removes the flag.
func (s *State) SetOptOut(ctx context.Context, out bool) error {
	if !out {
		return s.store.Remove(ctx, s.id, KeyOptOut)
	}
	return s.store.Set(ctx, s.id, KeyOptOut, "true")
}
