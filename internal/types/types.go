package types

import (
	"time"

	"github.com/agentsea/agentd/internal/recording"
)

type Event struct {
	ID      uint64         `json:"id"`
	Type    string         `json:"type"`
	Ts      time.Time      `json:"timestamp"`
	Payload map[string]any `json:"payload,omitempty"`
}

type Session struct {
	ID          string     `json:"id"`
	Description string     `json:"description,omitempty"`
	Status      string     `json:"status"`
	StartTime   time.Time  `json:"start_time"`
	EndTime     *time.Time `json:"end_time,omitempty"`
}

type Summary struct {
	EventCount  int            `json:"event_count"`
	ActionCount int            `json:"action_count"`
	Kinds       map[string]int `json:"kinds"`
	FirstEvent  *time.Time     `json:"first_event,omitempty"`
	LastEvent   *time.Time     `json:"last_event,omitempty"`
}

// SessionDetail is the full view of one recording.
type SessionDetail struct {
	Recording Session `json:"recording"`
	Summary   Summary `json:"summary"`
	Events    []Event `json:"events"`
	Archived  bool    `json:"archived,omitempty"`
}

// StreamEvent is one websocket frame: an event of session SessionID.
type StreamEvent struct {
	SessionID string `json:"session_id"`
	Event
}

func FromEvent(e recording.Event) Event {
	return Event{ID: uint64(e.ID), Type: string(e.Kind), Ts: e.Timestamp, Payload: e.Payload}
}

func FromEvents(list []recording.Event) []Event {
	out := make([]Event, 0, len(list))
	for _, e := range list {
		out = append(out, FromEvent(e))
	}
	return out
}

func FromSession(info recording.SessionInfo) Session {
	return Session{
		ID:          info.ID,
		Description: info.Description,
		Status:      string(info.State),
		StartTime:   info.StartTime,
		EndTime:     info.EndTime,
	}
}

func FromSessions(list []recording.SessionInfo) []Session {
	out := make([]Session, 0, len(list))
	for _, s := range list {
		out = append(out, FromSession(s))
	}
	return out
}

func FromSummary(s recording.Summary) Summary {
	kinds := make(map[string]int, len(s.Kinds))
	for k, n := range s.Kinds {
		kinds[string(k)] = n
	}
	return Summary{
		EventCount:  s.EventCount,
		ActionCount: s.ActionCount,
		Kinds:       kinds,
		FirstEvent:  s.FirstEvent,
		LastEvent:   s.LastEvent,
	}
}

func FromDetail(d recording.Detail) SessionDetail {
	return SessionDetail{
		Recording: FromSession(d.Info),
		Summary:   FromSummary(d.Summary),
		Events:    FromEvents(d.Events),
		Archived:  d.Archived,
	}
}
