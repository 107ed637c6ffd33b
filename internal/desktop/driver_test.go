package desktop

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/agentsea/agentd/internal/clock"
)

type call struct {
	start bool
	name  string
	args  []string
}

type fakeRunner struct {
	mu    sync.Mutex
	calls []call
	err   error
	// stdout returned by Output, keyed by the first argument
	out map[string]string
}

func (f *fakeRunner) Run(_ context.Context, name string, args ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call{name: name, args: args})
	return f.err
}

func (f *fakeRunner) Output(_ context.Context, name string, args ...string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call{name: name, args: args})
	if f.err != nil {
		return "", f.err
	}
	if len(args) == 0 {
		return "", nil
	}
	return f.out[args[0]], nil
}

func (f *fakeRunner) Start(_ context.Context, name string, args ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call{start: true, name: name, args: args})
	return f.err
}

func (f *fakeRunner) last(t *testing.T) call {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.calls) == 0 {
		t.Fatal("no command run")
	}
	return f.calls[len(f.calls)-1]
}

func TestXdotoolDriverCommands(t *testing.T) {
	ctx := context.Background()
	cases := []struct {
		name string
		do   func(d *XdotoolDriver) error
		want []string
	}{
		{"move", func(d *XdotoolDriver) error { return d.MoveMouse(ctx, 10, 20) }, []string{"mousemove", "10", "20"}},
		{"click default", func(d *XdotoolDriver) error { return d.Click(ctx, "") }, []string{"click", "1"}},
		{"click right", func(d *XdotoolDriver) error { return d.Click(ctx, "right") }, []string{"click", "3"}},
		{"double", func(d *XdotoolDriver) error { return d.DoubleClick(ctx, "left") }, []string{"click", "--repeat", "2", "1"}},
		{"scroll up", func(d *XdotoolDriver) error { return d.Scroll(ctx, 3) }, []string{"click", "--repeat", "3", "4"}},
		{"scroll down", func(d *XdotoolDriver) error { return d.Scroll(ctx, -2) }, []string{"click", "--repeat", "2", "5"}},
		{"drag", func(d *XdotoolDriver) error { return d.Drag(ctx, 5, 6) }, []string{"mousedown", "1", "mousemove", "5", "6", "mouseup", "1"}},
		{"type", func(d *XdotoolDriver) error { return d.TypeText(ctx, "-hi") }, []string{"type", "--delay", "50", "--", "-hi"}},
		{"key", func(d *XdotoolDriver) error { return d.PressKey(ctx, "enter") }, []string{"key", "--", "Return"}},
		{"hotkey", func(d *XdotoolDriver) error { return d.HotKey(ctx, "ctrl", "shift", "t") }, []string{"key", "--", "ctrl+shift+t"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := &fakeRunner{}
			d := NewXdotoolDriver("", "chromium", r)
			if err := tc.do(d); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			got := r.last(t)
			if got.name != "xdotool" || !reflect.DeepEqual(got.args, tc.want) {
				t.Fatalf("got %s %v, want xdotool %v", got.name, got.args, tc.want)
			}
		})
	}
}

func TestXdotoolDriverRejectsBadInput(t *testing.T) {
	ctx := context.Background()
	r := &fakeRunner{}
	d := NewXdotoolDriver("xdotool", "", r)

	if err := d.Click(ctx, "thumb"); !errors.Is(err, ErrBadInput) {
		t.Fatalf("expected bad input for button, got %v", err)
	}
	if err := d.PressKey(ctx, "hyper-9"); !errors.Is(err, ErrBadInput) {
		t.Fatalf("expected bad input for key, got %v", err)
	}
	if err := d.HotKey(ctx); !errors.Is(err, ErrBadInput) {
		t.Fatalf("expected bad input for empty hot key, got %v", err)
	}
	if err := d.MoveMouse(ctx, -1, 0); !errors.Is(err, ErrBadInput) {
		t.Fatalf("expected bad input for negative coordinates, got %v", err)
	}
	if err := d.OpenURL(ctx, "not a url"); !errors.Is(err, ErrBadInput) {
		t.Fatalf("expected bad input for url, got %v", err)
	}
	if err := d.Scroll(ctx, 0); err != nil {
		t.Fatalf("zero scroll is a no-op, got %v", err)
	}
	if len(r.calls) != 0 {
		t.Fatalf("no command should have run, got %v", r.calls)
	}
}

func TestXdotoolDriverOpenURLStartsBrowser(t *testing.T) {
	r := &fakeRunner{}
	d := NewXdotoolDriver("", "chromium --no-sandbox", r)
	if err := d.OpenURL(context.Background(), "https://example.com/a?b=c"); err != nil {
		t.Fatal(err)
	}
	got := r.last(t)
	if !got.start || got.name != "chromium" || !reflect.DeepEqual(got.args, []string{"--no-sandbox", "https://example.com/a?b=c"}) {
		t.Fatalf("unexpected launch %+v", got)
	}
}

func TestKeysym(t *testing.T) {
	for in, want := range map[string]string{"a": "a", "Enter": "Return", "f5": "F5", "pagedown": "Page_Down", "win": "super"} {
		got, err := Keysym(in)
		if err != nil || got != want {
			t.Fatalf("Keysym(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
	if _, err := Keysym("f99"); err == nil {
		t.Fatal("expected error for f99")
	}
}

func TestScrotCapturer(t *testing.T) {
	dir := t.TempDir()
	r := &fakeRunner{}
	fc := clock.NewFake(time.Unix(0, 42))
	s := NewScrotCapturer("", dir, fc, r)

	path, err := s.Capture(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasSuffix(path, "screenshot_42.png") || !strings.HasPrefix(path, dir) {
		t.Fatalf("unexpected path %q", path)
	}
	got := r.last(t)
	if got.name != "scrot" || !reflect.DeepEqual(got.args, []string{"-z", "-p", path}) {
		t.Fatalf("unexpected command %+v", got)
	}

	r.err = errors.New("no display")
	if _, err := s.Capture(context.Background()); err == nil {
		t.Fatal("expected capture error")
	}
}

func TestXdotoolDriverReadsDesktopState(t *testing.T) {
	ctx := context.Background()
	r := &fakeRunner{out: map[string]string{
		"getdisplaygeometry": "1920 1080\n",
		"getmouselocation":   "X=640\nY=360\nSCREEN=0\nWINDOW=71303175\n",
	}}
	d := NewXdotoolDriver("", "", r)

	size, err := d.ScreenSize(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if size != (Point{X: 1920, Y: 1080}) {
		t.Fatalf("unexpected screen size %+v", size)
	}
	loc, err := d.MouseLocation(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if loc != (Point{X: 640, Y: 360}) {
		t.Fatalf("unexpected mouse location %+v", loc)
	}
	if got := r.last(t); !reflect.DeepEqual(got.args, []string{"getmouselocation", "--shell"}) {
		t.Fatalf("unexpected command %+v", got)
	}
}

func TestXdotoolDriverRejectsGarbledState(t *testing.T) {
	ctx := context.Background()
	r := &fakeRunner{out: map[string]string{
		"getdisplaygeometry": "wide\n",
		"getmouselocation":   "SCREEN=0\n",
	}}
	d := NewXdotoolDriver("", "", r)
	if _, err := d.ScreenSize(ctx); err == nil {
		t.Fatal("expected error for unparsable geometry")
	}
	if _, err := d.MouseLocation(ctx); err == nil {
		t.Fatal("expected error for missing coordinates")
	}
}
