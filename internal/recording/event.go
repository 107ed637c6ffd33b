package recording

import (
	"maps"
	"strings"
	"time"
)

// Kind tags what an Event describes. The set is open; the constants below are
// the kinds produced by the daemon's own input surface.
type Kind string

const (
	KindMouseMove        Kind = "mouse_move"
	KindMouseClick       Kind = "mouse_click"
	KindMouseDoubleClick Kind = "mouse_double_click"
	KindMouseScroll      Kind = "mouse_scroll"
	KindMouseDrag        Kind = "mouse_drag"
	KindKeyPress         Kind = "key_press"
	KindHotKey           Kind = "hot_key"
	KindTypeText         Kind = "type_text"
	KindOpenURL          Kind = "open_url"
	KindScreenshot       Kind = "screenshot"
	KindError            Kind = "error"
)

// EventID identifies an Event within its session. Ids start at FirstEventID
// and are never reused.
type EventID uint64

const FirstEventID EventID = 1

// Event is one captured occurrence. Values returned by this package are
// copies; mutating one does not affect the store.
type Event struct {
	ID        EventID
	Kind      Kind
	Timestamp time.Time
	Payload   map[string]any
}

func (e Event) clone() Event {
	e.Payload = maps.Clone(e.Payload)
	return e
}

// ActionFilter reports whether a kind counts as a user action.
type ActionFilter func(Kind) bool

// ExcludeKinds returns a filter that treats every kind except the listed
// context kinds as an action.
func ExcludeKinds(context ...Kind) ActionFilter {
	skip := make(map[Kind]bool, len(context))
	for _, k := range context {
		skip[k] = true
	}
	return func(k Kind) bool { return !skip[k] }
}

// DefaultActionFilter treats screenshots and errors as context.
var DefaultActionFilter = ExcludeKinds(KindScreenshot, KindError)

// ParseKinds splits a comma separated list, dropping blanks.
func ParseKinds(s string) []Kind {
	var out []Kind
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, Kind(p))
		}
	}
	return out
}
