package recording

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/agentsea/agentd/internal/clock"
)

// Listener observes what the hook stores. Implementations must not block.
type Listener interface {
	EventRecorded(sessionID string, ev Event)
	SessionClosed(sessionID string)
}

// Delivery is the outcome of appending one capture to one session.
type Delivery struct {
	SessionID string
	EventID   EventID
	Err       error
}

// Result describes one capture across every targeted session.
type Result struct {
	Kind       Kind
	Timestamp  time.Time
	Deliveries []Delivery
}

func (r Result) Delivered() int {
	n := 0
	for _, d := range r.Deliveries {
		if d.Err == nil {
			n++
		}
	}
	return n
}

func (r Result) Skipped() int { return len(r.Deliveries) - r.Delivered() }

// Hook fans each captured action out to the sessions active when the action
// completed. Capture never fails: per-session errors are logged and reported
// in the Result only.
type Hook struct {
	registry *Registry
	clock    clock.Clock
	log      *slog.Logger

	// held across snapshot+now+append so timestamp order matches append order
	dispatch sync.Mutex

	lmu       sync.RWMutex
	listeners []Listener
}

func NewHook(reg *Registry, c clock.Clock, log *slog.Logger) *Hook {
	return &Hook{registry: reg, clock: c, log: log}
}

// Subscribe adds a listener for stored events and closed sessions.
func (h *Hook) Subscribe(l Listener) {
	h.lmu.Lock()
	h.listeners = append(h.listeners, l)
	h.lmu.Unlock()
}

// Capture records one action in every currently active session, all with the
// same timestamp. Sessions created after the snapshot do not receive it.
func (h *Hook) Capture(kind Kind, payload map[string]any) Result {
	h.dispatch.Lock()
	defer h.dispatch.Unlock()

	// snapshot before reading the clock so no target started after now
	targets := h.registry.ListActive()
	now := h.clock.Now()
	res := Result{Kind: kind, Timestamp: now, Deliveries: make([]Delivery, 0, len(targets))}
	for _, sess := range targets {
		ev, err := sess.events.AppendAt(now, kind, payload)
		res.Deliveries = append(res.Deliveries, Delivery{SessionID: sess.ID(), EventID: ev.ID, Err: err})
		if err != nil {
			h.skipped(sess.ID(), kind, err)
			continue
		}
		metricEventsAppended.WithLabelValues(string(kind)).Inc()
		h.recorded(sess.ID(), ev)
	}
	metricFanout.Observe(float64(len(targets)))
	return res
}

// deliver appends to one session directly, serialized with Capture.
func (h *Hook) deliver(sess *Session, kind Kind, payload map[string]any) (Event, error) {
	h.dispatch.Lock()
	defer h.dispatch.Unlock()
	ev, err := sess.events.Append(kind, payload)
	if err != nil {
		return Event{}, err
	}
	metricEventsAppended.WithLabelValues(string(kind)).Inc()
	h.recorded(sess.ID(), ev)
	return ev, nil
}

// finish reports a stopped or deleted session to listeners. It waits for an
// in-flight capture, so listeners see every stored event before the close.
func (h *Hook) finish(sessionID string) {
	h.dispatch.Lock()
	defer h.dispatch.Unlock()
	h.closed(sessionID)
}

func (h *Hook) skipped(sessionID string, kind Kind, err error) {
	switch {
	case errors.Is(err, ErrInvalidState):
		// stopped between snapshot and append
		metricDeliverySkipped.WithLabelValues("stopped").Inc()
		h.log.Debug("capture skipped stopped session", "session_id", sessionID, "kind", kind)
	case errors.Is(err, ErrResourceExhausted):
		metricDeliverySkipped.WithLabelValues("full").Inc()
		h.log.Warn("capture dropped", "session_id", sessionID, "kind", kind, "error", err)
	default:
		metricDeliverySkipped.WithLabelValues("other").Inc()
		h.log.Warn("capture dropped", "session_id", sessionID, "kind", kind, "error", err)
	}
}

func (h *Hook) recorded(sessionID string, ev Event) {
	h.lmu.RLock()
	defer h.lmu.RUnlock()
	for _, l := range h.listeners {
		l.EventRecorded(sessionID, ev.clone())
	}
}

func (h *Hook) closed(sessionID string) {
	h.lmu.RLock()
	defer h.lmu.RUnlock()
	for _, l := range h.listeners {
		l.SessionClosed(sessionID)
	}
}
