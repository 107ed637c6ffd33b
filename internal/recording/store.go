package recording

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/agentsea/agentd/internal/clock"
)

// EventStore is the ordered event log of one session. Events are kept in
// timestamp order with ties in append order. A sealed store rejects appends.
type EventStore struct {
	clock     clock.Clock
	maxEvents int

	mu     sync.RWMutex
	events []Event
	index  map[EventID]int
	nextID EventID
	sealed bool
}

// NewEventStore returns an empty store. maxEvents <= 0 means unlimited.
func NewEventStore(c clock.Clock, maxEvents int) *EventStore {
	return &EventStore{
		clock:     c,
		maxEvents: maxEvents,
		index:     make(map[EventID]int),
		nextID:    FirstEventID,
	}
}

// Append records an event stamped with the store's clock.
func (s *EventStore) Append(kind Kind, payload map[string]any) (Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insertLocked(s.clock.Now(), kind, payload)
}

// AppendAt records an event with a caller supplied capture time. The Capture
// Hook uses it so one action carries the same timestamp in every session.
func (s *EventStore) AppendAt(ts time.Time, kind Kind, payload map[string]any) (Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insertLocked(ts, kind, payload)
}

func (s *EventStore) insertLocked(ts time.Time, kind Kind, payload map[string]any) (Event, error) {
	if s.sealed {
		return Event{}, fmt.Errorf("append %s: session stopped: %w", kind, ErrInvalidState)
	}
	if s.maxEvents > 0 && len(s.events) >= s.maxEvents {
		return Event{}, fmt.Errorf("append %s: %d events stored: %w", kind, len(s.events), ErrResourceExhausted)
	}
	evt := Event{ID: s.nextID, Kind: kind, Timestamp: ts, Payload: payload}.clone()
	s.nextID++

	// upper bound keeps equal timestamps in append order
	pos := len(s.events)
	if pos > 0 && ts.Before(s.events[pos-1].Timestamp) {
		pos = sort.Search(len(s.events), func(i int) bool {
			return s.events[i].Timestamp.After(ts)
		})
	}
	if pos == len(s.events) {
		s.events = append(s.events, evt)
		s.index[evt.ID] = pos
	} else {
		s.events = append(s.events, Event{})
		copy(s.events[pos+1:], s.events[pos:])
		s.events[pos] = evt
		s.reindexLocked(pos)
	}
	return evt.clone(), nil
}

func (s *EventStore) reindexLocked(from int) {
	for i := from; i < len(s.events); i++ {
		s.index[s.events[i].ID] = i
	}
}

// Get returns the event with the given id.
func (s *EventStore) Get(id EventID) (Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	pos, ok := s.index[id]
	if !ok {
		return Event{}, fmt.Errorf("event %d: %w", id, ErrNotFound)
	}
	return s.events[pos].clone(), nil
}

// Delete removes the event. Remaining ids and order are unchanged.
func (s *EventStore) Delete(id EventID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	pos, ok := s.index[id]
	if !ok {
		return fmt.Errorf("event %d: %w", id, ErrNotFound)
	}
	delete(s.index, id)
	s.events = append(s.events[:pos], s.events[pos+1:]...)
	s.reindexLocked(pos)
	return nil
}

// List returns all events in timestamp order.
func (s *EventStore) List() []Event {
	return s.filter(nil)
}

// ListActions returns the events accepted by isAction, in timestamp order.
// A nil filter uses DefaultActionFilter.
func (s *EventStore) ListActions(isAction ActionFilter) []Event {
	if isAction == nil {
		isAction = DefaultActionFilter
	}
	return s.filter(isAction)
}

func (s *EventStore) filter(keep ActionFilter) []Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Event, 0, len(s.events))
	for _, e := range s.events {
		if keep == nil || keep(e.Kind) {
			out = append(out, e.clone())
		}
	}
	return out
}

// Len returns the number of stored events.
func (s *EventStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.events)
}

// Summary aggregates the stored events.
type Summary struct {
	EventCount  int
	ActionCount int
	Kinds       map[Kind]int
	FirstEvent  *time.Time
	LastEvent   *time.Time
}

// Summary counts events per kind and reports the covered time range.
func (s *EventStore) Summary(isAction ActionFilter) Summary {
	if isAction == nil {
		isAction = DefaultActionFilter
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return summarize(s.events, isAction)
}

// summarize expects events in timestamp order.
func summarize(events []Event, isAction ActionFilter) Summary {
	sum := Summary{EventCount: len(events), Kinds: make(map[Kind]int)}
	for _, e := range events {
		sum.Kinds[e.Kind]++
		if isAction(e.Kind) {
			sum.ActionCount++
		}
	}
	if n := len(events); n > 0 {
		first, last := events[0].Timestamp, events[n-1].Timestamp
		sum.FirstEvent, sum.LastEvent = &first, &last
	}
	return sum
}

// seal makes every later append fail. Returns false if already sealed.
func (s *EventStore) seal() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sealed {
		return false
	}
	s.sealed = true
	return true
}

// clear drops every event. Used when the owning session is destroyed.
func (s *EventStore) clear() {
	s.mu.Lock()
	s.events = nil
	s.index = make(map[EventID]int)
	s.mu.Unlock()
}
