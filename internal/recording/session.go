package recording

import (
	"sync"
	"time"
)

// State is the session lifecycle state. Stopped is terminal.
type State string

const (
	StateActive  State = "active"
	StateStopped State = "stopped"
)

// Session is a recording window owning one EventStore.
type Session struct {
	id          string
	description string
	startTime   time.Time
	events      *EventStore

	mu      sync.RWMutex
	state   State
	endTime time.Time
}

// SessionInfo is a point-in-time copy of a session's metadata.
// EndTime is nil iff State is active.
type SessionInfo struct {
	ID          string
	Description string
	State       State
	StartTime   time.Time
	EndTime     *time.Time
}

func newSession(id, description string, start time.Time, events *EventStore) *Session {
	return &Session{
		id:          id,
		description: description,
		startTime:   start,
		events:      events,
		state:       StateActive,
	}
}

func (s *Session) ID() string           { return s.id }
func (s *Session) Description() string  { return s.description }
func (s *Session) StartTime() time.Time { return s.startTime }
func (s *Session) Events() *EventStore  { return s.events }

func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

func (s *Session) Active() bool { return s.State() == StateActive }

// Info snapshots the session metadata.
func (s *Session) Info() SessionInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	info := SessionInfo{
		ID:          s.id,
		Description: s.description,
		State:       s.state,
		StartTime:   s.startTime,
	}
	if s.state == StateStopped {
		end := s.endTime
		info.EndTime = &end
	}
	return info
}

// stop moves the session to stopped and seals its store. It reports false if
// the session was already stopped, in which case end time is left unchanged.
func (s *Session) stop(now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateStopped {
		return false
	}
	s.events.seal()
	s.state = StateStopped
	s.endTime = now
	return true
}
