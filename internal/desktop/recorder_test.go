package desktop

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/agentsea/agentd/internal/clock"
	"github.com/agentsea/agentd/internal/logging"
	"github.com/agentsea/agentd/internal/recording"
)

type staticCapturer struct {
	path string
	err  error
}

func (s staticCapturer) Capture(context.Context) (string, error) { return s.path, s.err }

func newTestRecorder(t *testing.T, r *fakeRunner, shots Capturer) (*Recorder, *recording.Manager, string) {
	t.Helper()
	fc := clock.NewFake(time.Unix(1_700_000_000, 0).UTC())
	m := recording.NewManager(fc, recording.Options{}, logging.Discard())
	info, err := m.Start("desktop")
	if err != nil {
		t.Fatal(err)
	}
	rec := NewRecorder(NewXdotoolDriver("", "chromium", r), shots, m.Hook(), logging.Discard())
	return rec, m, info.ID
}

func TestRecorderCapturesPrimitives(t *testing.T) {
	ctx := context.Background()
	rec, m, id := newTestRecorder(t, &fakeRunner{}, staticCapturer{path: "screenshots/a.png"})

	if err := rec.Click(ctx, ""); err != nil {
		t.Fatal(err)
	}
	if err := rec.HotKey(ctx, "ctrl", "c"); err != nil {
		t.Fatal(err)
	}
	if _, err := rec.Screenshot(ctx); err != nil {
		t.Fatal(err)
	}

	events, err := m.Events(id)
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 3 {
		t.Fatalf("expected 3 events, got %d", len(events))
	}
	if events[0].Kind != recording.KindMouseClick || events[0].Payload["button"] != "left" {
		t.Fatalf("unexpected click event %+v", events[0])
	}
	keys, _ := events[1].Payload["keys"].([]any)
	if events[1].Kind != recording.KindHotKey || len(keys) != 2 || keys[0] != "ctrl" {
		t.Fatalf("unexpected hot key event %+v", events[1])
	}
	if events[2].Kind != recording.KindScreenshot || events[2].Payload["path"] != "screenshots/a.png" {
		t.Fatalf("unexpected screenshot event %+v", events[2])
	}

	actions, err := m.Actions(id)
	if err != nil {
		t.Fatal(err)
	}
	if len(actions) != 2 {
		t.Fatalf("screenshot must not count as an action, got %d actions", len(actions))
	}
}

func TestRecorderCapturesFailureAsError(t *testing.T) {
	boom := errors.New("cannot open display")
	rec, m, id := newTestRecorder(t, &fakeRunner{err: boom}, staticCapturer{})

	if err := rec.PressKey(context.Background(), "tab"); !errors.Is(err, boom) {
		t.Fatalf("expected primitive error, got %v", err)
	}
	events, err := m.Events(id)
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 1 || events[0].Kind != recording.KindError {
		t.Fatalf("expected one error event, got %+v", events)
	}
	if events[0].Payload["operation"] != "press_key" {
		t.Fatalf("unexpected error payload %+v", events[0].Payload)
	}
}

func TestRecorderWithoutSessions(t *testing.T) {
	fc := clock.NewFake(time.Unix(0, 0))
	m := recording.NewManager(fc, recording.Options{}, logging.Discard())
	r := &fakeRunner{}
	rec := NewRecorder(NewXdotoolDriver("", "", r), staticCapturer{}, m.Hook(), logging.Discard())
	if err := rec.MoveMouse(context.Background(), 1, 2); err != nil {
		t.Fatal(err)
	}
	if len(r.calls) != 1 {
		t.Fatalf("primitive must run with no sessions, got %d calls", len(r.calls))
	}
}

func TestRecorderStateQueriesAreNotRecorded(t *testing.T) {
	ctx := context.Background()
	r := &fakeRunner{out: map[string]string{
		"getdisplaygeometry": "800 600",
		"getmouselocation":   "X=1\nY=2\n",
	}}
	rec, m, id := newTestRecorder(t, r, staticCapturer{})

	if _, ok := rec.LastActivity(); ok {
		t.Fatal("no activity expected before the first primitive")
	}
	if _, err := rec.ScreenSize(ctx); err != nil {
		t.Fatal(err)
	}
	if _, err := rec.MouseLocation(ctx); err != nil {
		t.Fatal(err)
	}
	events, err := m.Events(id)
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 0 {
		t.Fatalf("state queries must not be captured, got %+v", events)
	}
	if _, ok := rec.LastActivity(); ok {
		t.Fatal("state queries must not count as activity")
	}

	if err := rec.MoveMouse(ctx, 3, 4); err != nil {
		t.Fatal(err)
	}
	last, ok := rec.LastActivity()
	if !ok || !last.Equal(time.Unix(1_700_000_000, 0)) {
		t.Fatalf("unexpected last activity %v %v", last, ok)
	}
}
