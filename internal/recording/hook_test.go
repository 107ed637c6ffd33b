package recording

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/agentsea/agentd/internal/clock"
	"github.com/agentsea/agentd/internal/logging"
)

type recordingListener struct {
	mu     sync.Mutex
	events map[string][]Event
	closed []string
}

func newRecordingListener() *recordingListener {
	return &recordingListener{events: make(map[string][]Event)}
}

func (l *recordingListener) EventRecorded(id string, ev Event) {
	l.mu.Lock()
	l.events[id] = append(l.events[id], ev)
	l.mu.Unlock()
}

func (l *recordingListener) SessionClosed(id string) {
	l.mu.Lock()
	l.closed = append(l.closed, id)
	l.mu.Unlock()
}

func TestHookFansOutWithSharedTimestamp(t *testing.T) {
	fc := clock.NewFake(t0)
	reg := NewRegistry(fc, RegistryOptions{})
	h := NewHook(reg, fc, logging.Discard())

	a, err := reg.Create("a")
	require.NoError(t, err)
	fc.Advance(time.Second)

	res := h.Capture(KindMouseClick, map[string]any{"x": 10, "y": 20})
	assert.Equal(t, 1, res.Delivered())

	b, err := reg.Create("b")
	require.NoError(t, err)
	fc.Advance(time.Second)

	res = h.Capture(KindKeyPress, map[string]any{"key": "a"})
	require.Equal(t, 2, res.Delivered())
	assert.Equal(t, 0, res.Skipped())

	aEvents := a.Events().List()
	bEvents := b.Events().List()
	require.Len(t, aEvents, 2)
	require.Len(t, bEvents, 1, "session opened after the click must not see it")
	assert.Equal(t, KindKeyPress, bEvents[0].Kind)
	assert.Equal(t, aEvents[1].Timestamp, bEvents[0].Timestamp)
	assert.Equal(t, res.Timestamp, bEvents[0].Timestamp)
}

func TestHookNoActiveSessions(t *testing.T) {
	fc := clock.NewFake(t0)
	reg := NewRegistry(fc, RegistryOptions{})
	h := NewHook(reg, fc, logging.Discard())

	res := h.Capture(KindMouseMove, nil)
	assert.Empty(t, res.Deliveries)
	assert.Equal(t, KindMouseMove, res.Kind)
}

func TestHookSkipsStoppedAndFullSessions(t *testing.T) {
	fc := clock.NewFake(t0)
	reg := NewRegistry(fc, RegistryOptions{MaxEventsPerSession: 1})
	h := NewHook(reg, fc, logging.Discard())

	full, err := reg.Create("full")
	require.NoError(t, err)
	_, err = full.Events().Append(KindMouseClick, nil)
	require.NoError(t, err)
	stopped, err := reg.Create("stopped")
	require.NoError(t, err)
	_, _, err = reg.Stop(stopped.ID())
	require.NoError(t, err)
	open, err := reg.Create("open")
	require.NoError(t, err)

	res := h.Capture(KindKeyPress, nil)
	require.Len(t, res.Deliveries, 2, "stopped sessions are not targeted")
	assert.Equal(t, 1, res.Delivered())
	assert.Equal(t, 1, res.Skipped())
	for _, d := range res.Deliveries {
		switch d.SessionID {
		case full.ID():
			assert.ErrorIs(t, d.Err, ErrResourceExhausted)
		case open.ID():
			assert.NoError(t, d.Err)
		default:
			t.Fatalf("unexpected delivery to %s", d.SessionID)
		}
	}
	assert.Equal(t, 1, open.Events().Len())
	assert.Equal(t, 0, stopped.Events().Len())
}

func TestHookNotifiesListeners(t *testing.T) {
	fc := clock.NewFake(t0)
	reg := NewRegistry(fc, RegistryOptions{})
	h := NewHook(reg, fc, logging.Discard())
	l := newRecordingListener()
	h.Subscribe(l)

	s, err := reg.Create("")
	require.NoError(t, err)
	h.Capture(KindTypeText, map[string]any{"text": "hi"})

	require.Len(t, l.events[s.ID()], 1)
	got := l.events[s.ID()][0]
	assert.Equal(t, FirstEventID, got.ID)
	assert.Equal(t, "hi", got.Payload["text"])

	got.Payload["text"] = "changed"
	stored, err := s.Events().Get(got.ID)
	require.NoError(t, err)
	assert.Equal(t, "hi", stored.Payload["text"])
}

func TestHookConcurrentCapturesStayOrdered(t *testing.T) {
	fc := clock.NewFake(t0)
	reg := NewRegistry(fc, RegistryOptions{})
	h := NewHook(reg, fc, logging.Discard())
	var sessions []*Session
	for i := 0; i < 3; i++ {
		s, err := reg.Create("")
		require.NoError(t, err)
		sessions = append(sessions, s)
	}

	var g errgroup.Group
	for w := 0; w < 8; w++ {
		g.Go(func() error {
			for i := 0; i < 50; i++ {
				fc.Advance(time.Microsecond)
				h.Capture(KindMouseMove, map[string]any{"i": i})
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	for _, s := range sessions {
		list := s.Events().List()
		require.Len(t, list, 400)
		for i := 1; i < len(list); i++ {
			require.False(t, list[i].Timestamp.Before(list[i-1].Timestamp))
			require.Greater(t, list[i].ID, list[i-1].ID, "append order matches timestamp order")
		}
	}
	first := sessions[0].Events().List()
	for _, s := range sessions[1:] {
		other := s.Events().List()
		for i := range first {
			require.Equal(t, first[i].Timestamp, other[i].Timestamp)
		}
	}
}
