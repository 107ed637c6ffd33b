package recording

import (
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/agentsea/agentd/internal/clock"
)

var t0 = time.Unix(1_700_000_000, 0).UTC()

func TestEventStoreAppendAssignsSequentialIDs(t *testing.T) {
	fc := clock.NewFake(t0)
	s := NewEventStore(fc, 0)

	a, err := s.Append(KindMouseClick, map[string]any{"x": 1, "y": 2, "button": "left"})
	require.NoError(t, err)
	fc.Advance(time.Second)
	b, err := s.Append(KindKeyPress, map[string]any{"key": "enter"})
	require.NoError(t, err)

	assert.Equal(t, FirstEventID, a.ID)
	assert.Equal(t, FirstEventID+1, b.ID)
	assert.Equal(t, t0, a.Timestamp)
	assert.Equal(t, t0.Add(time.Second), b.Timestamp)

	got, err := s.Get(b.ID)
	require.NoError(t, err)
	assert.Equal(t, "enter", got.Payload["key"])
}

func TestEventStoreDeleteKeepsIDsAndOrder(t *testing.T) {
	s := NewEventStore(clock.NewFake(t0), 0)
	for i := 0; i < 4; i++ {
		_, err := s.Append(KindMouseClick, map[string]any{"n": i})
		require.NoError(t, err)
	}
	require.NoError(t, s.Delete(2))

	_, err := s.Get(2)
	require.ErrorIs(t, err, ErrNotFound)
	require.ErrorIs(t, s.Delete(2), ErrNotFound)

	var ids []EventID
	for _, e := range s.List() {
		ids = append(ids, e.ID)
	}
	assert.Equal(t, []EventID{1, 3, 4}, ids)

	next, err := s.Append(KindKeyPress, nil)
	require.NoError(t, err)
	assert.Equal(t, EventID(5), next.ID, "ids are never reused")

	e4, err := s.Get(4)
	require.NoError(t, err)
	assert.Equal(t, 3, e4.Payload["n"])
}

func TestEventStoreSealedRejectsAppend(t *testing.T) {
	s := NewEventStore(clock.NewFake(t0), 0)
	_, err := s.Append(KindMouseClick, nil)
	require.NoError(t, err)
	require.True(t, s.seal())
	require.False(t, s.seal())

	_, err = s.Append(KindMouseClick, nil)
	require.ErrorIs(t, err, ErrInvalidState)
	assert.Equal(t, 1, s.Len())
}

func TestEventStoreCap(t *testing.T) {
	s := NewEventStore(clock.NewFake(t0), 2)
	for i := 0; i < 2; i++ {
		_, err := s.Append(KindMouseClick, nil)
		require.NoError(t, err)
	}
	_, err := s.Append(KindMouseClick, nil)
	require.ErrorIs(t, err, ErrResourceExhausted)
}

func TestEventStoreOlderTimestampIsSorted(t *testing.T) {
	s := NewEventStore(clock.NewFake(t0), 0)
	_, err := s.AppendAt(t0.Add(10*time.Millisecond), KindMouseClick, nil)
	require.NoError(t, err)
	_, err = s.AppendAt(t0.Add(10*time.Millisecond), KindKeyPress, nil)
	require.NoError(t, err)
	late, err := s.AppendAt(t0.Add(5*time.Millisecond), KindScreenshot, nil)
	require.NoError(t, err)

	list := s.List()
	require.Len(t, list, 3)
	assert.Equal(t, late.ID, list[0].ID)
	assert.Equal(t, []Kind{KindScreenshot, KindMouseClick, KindKeyPress}, []Kind{list[0].Kind, list[1].Kind, list[2].Kind})

	got, err := s.Get(late.ID)
	require.NoError(t, err)
	assert.Equal(t, KindScreenshot, got.Kind)
}

func TestEventStorePayloadIsCopied(t *testing.T) {
	s := NewEventStore(clock.NewFake(t0), 0)
	payload := map[string]any{"key": "a"}
	ev, err := s.Append(KindKeyPress, payload)
	require.NoError(t, err)

	payload["key"] = "mutated"
	ev.Payload["key"] = "mutated too"

	got, err := s.Get(ev.ID)
	require.NoError(t, err)
	assert.Equal(t, "a", got.Payload["key"])
}

func TestEventStoreListActionsAndSummary(t *testing.T) {
	fc := clock.NewFake(t0)
	s := NewEventStore(fc, 0)
	_, _ = s.Append(KindMouseClick, nil)
	fc.Advance(time.Second)
	_, _ = s.Append(KindScreenshot, map[string]any{"path": "screenshots/a.png"})
	fc.Advance(time.Second)
	_, _ = s.Append(KindKeyPress, nil)

	actions := s.ListActions(nil)
	require.Len(t, actions, 2)
	assert.Equal(t, KindMouseClick, actions[0].Kind)
	assert.Equal(t, KindKeyPress, actions[1].Kind)

	all := s.ListActions(func(Kind) bool { return true })
	assert.Len(t, all, 3)

	sum := s.Summary(nil)
	assert.Equal(t, 3, sum.EventCount)
	assert.Equal(t, 2, sum.ActionCount)
	assert.Equal(t, 1, sum.Kinds[KindScreenshot])
	require.NotNil(t, sum.FirstEvent)
	require.NotNil(t, sum.LastEvent)
	assert.Equal(t, t0, *sum.FirstEvent)
	assert.Equal(t, t0.Add(2*time.Second), *sum.LastEvent)

	empty := NewEventStore(fc, 0).Summary(nil)
	assert.Nil(t, empty.FirstEvent)
}

func TestEventStoreOrderingProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		s := NewEventStore(clock.NewFake(t0), 0)
		live := map[EventID]bool{}
		n := rapid.IntRange(1, 60).Draw(t, "ops")
		for i := 0; i < n; i++ {
			if len(live) > 0 && rapid.IntRange(0, 3).Draw(t, "op") == 0 {
				ids := make([]EventID, 0, len(live))
				for id := range live {
					ids = append(ids, id)
				}
				sort.Slice(ids, func(a, b int) bool { return ids[a] < ids[b] })
				victim := rapid.SampledFrom(ids).Draw(t, "victim")
				before := s.List()
				if err := s.Delete(victim); err != nil {
					t.Fatalf("delete %d: %v", victim, err)
				}
				delete(live, victim)
				if _, err := s.Get(victim); err == nil {
					t.Fatalf("deleted event %d still readable", victim)
				}
				after := s.List()
				var expect []EventID
				for _, e := range before {
					if e.ID != victim {
						expect = append(expect, e.ID)
					}
				}
				for j, e := range after {
					if e.ID != expect[j] {
						t.Fatalf("delete reordered events: got %d at %d, want %d", e.ID, j, expect[j])
					}
				}
				continue
			}
			offset := time.Duration(rapid.IntRange(0, 5).Draw(t, "offset_ms")) * time.Millisecond
			ev, err := s.AppendAt(t0.Add(offset), KindMouseClick, nil)
			if err != nil {
				t.Fatalf("append: %v", err)
			}
			live[ev.ID] = true
		}

		list := s.List()
		if len(list) != len(live) {
			t.Fatalf("expected %d events, got %d", len(live), len(list))
		}
		for i := 1; i < len(list); i++ {
			prev, cur := list[i-1], list[i]
			if cur.Timestamp.Before(prev.Timestamp) {
				t.Fatalf("timestamps out of order at %d", i)
			}
			if cur.Timestamp.Equal(prev.Timestamp) && cur.ID < prev.ID {
				t.Fatalf("equal timestamps not in append order at %d", i)
			}
		}
	})
}
