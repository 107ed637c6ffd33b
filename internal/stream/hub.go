package stream

import (
	"sync"

	"github.com/agentsea/agentd/internal/recording"
)

// Hub fans stored events out to live subscribers, per session. It is a
// recording.Listener and never blocks the capture path: a subscriber whose
// buffer is full misses the event.
type Hub struct {
	buffer int

	mu   sync.Mutex
	subs map[string]map[*Subscription]struct{}
}

func NewHub(buffer int) *Hub {
	if buffer <= 0 {
		buffer = 64
	}
	return &Hub{buffer: buffer, subs: make(map[string]map[*Subscription]struct{})}
}

// Subscription receives events of one session until the session closes or
// Close is called, after which C is closed.
type Subscription struct {
	SessionID string

	hub    *Hub
	ch     chan recording.Event
	closed bool // guarded by hub.mu
}

func (s *Subscription) C() <-chan recording.Event { return s.ch }

// Close unsubscribes. Safe to call more than once.
func (s *Subscription) Close() {
	h := s.hub
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(s)
}

func (h *Hub) Subscribe(sessionID string) *Subscription {
	s := &Subscription{SessionID: sessionID, hub: h, ch: make(chan recording.Event, h.buffer)}
	h.mu.Lock()
	set, ok := h.subs[sessionID]
	if !ok {
		set = make(map[*Subscription]struct{})
		h.subs[sessionID] = set
	}
	set[s] = struct{}{}
	h.mu.Unlock()
	gaugeSubscribers.Inc()
	return s
}

// Subscribers returns the number of live subscriptions for a session.
func (h *Hub) Subscribers(sessionID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[sessionID])
}

func (h *Hub) EventRecorded(sessionID string, ev recording.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for s := range h.subs[sessionID] {
		select {
		case s.ch <- ev:
			metricFramesQueued.Inc()
		default:
			metricFramesDropped.Inc()
		}
	}
}

func (h *Hub) SessionClosed(sessionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for s := range h.subs[sessionID] {
		h.removeLocked(s)
	}
}

func (h *Hub) removeLocked(s *Subscription) {
	if s.closed {
		return
	}
	s.closed = true
	close(s.ch)
	set := h.subs[s.SessionID]
	delete(set, s)
	if len(set) == 0 {
		delete(h.subs, s.SessionID)
	}
	gaugeSubscribers.Dec()
}
