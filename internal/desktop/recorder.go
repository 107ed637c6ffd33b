package desktop

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/agentsea/agentd/internal/recording"
)

// Sink receives captured actions. *recording.Hook satisfies it.
type Sink interface {
	Capture(kind recording.Kind, payload map[string]any) recording.Result
}

// Recorder performs each primitive and then reports it to the sink. A failed
// primitive is reported as an error event; its error is returned unchanged.
type Recorder struct {
	driver Driver
	shots  Capturer
	sink   Sink
	log    *slog.Logger

	// unix nanos of the last recorded primitive, 0 before the first
	last atomic.Int64
}

var _ Driver = (*Recorder)(nil)

func NewRecorder(d Driver, shots Capturer, sink Sink, log *slog.Logger) *Recorder {
	return &Recorder{driver: d, shots: shots, sink: sink, log: log}
}

func (r *Recorder) MoveMouse(ctx context.Context, x, y int) error {
	return r.record("move_mouse", recording.KindMouseMove, map[string]any{"x": x, "y": y},
		r.driver.MoveMouse(ctx, x, y))
}

func (r *Recorder) Click(ctx context.Context, button string) error {
	return r.record("click", recording.KindMouseClick, map[string]any{"button": buttonName(button)},
		r.driver.Click(ctx, button))
}

func (r *Recorder) DoubleClick(ctx context.Context, button string) error {
	return r.record("double_click", recording.KindMouseDoubleClick, map[string]any{"button": buttonName(button)},
		r.driver.DoubleClick(ctx, button))
}

func (r *Recorder) Scroll(ctx context.Context, clicks int) error {
	return r.record("scroll", recording.KindMouseScroll, map[string]any{"clicks": clicks},
		r.driver.Scroll(ctx, clicks))
}

func (r *Recorder) Drag(ctx context.Context, x, y int) error {
	return r.record("drag_mouse", recording.KindMouseDrag, map[string]any{"x": x, "y": y},
		r.driver.Drag(ctx, x, y))
}

func (r *Recorder) TypeText(ctx context.Context, text string) error {
	return r.record("type_text", recording.KindTypeText, map[string]any{"text": text},
		r.driver.TypeText(ctx, text))
}

func (r *Recorder) PressKey(ctx context.Context, key string) error {
	return r.record("press_key", recording.KindKeyPress, map[string]any{"key": key},
		r.driver.PressKey(ctx, key))
}

func (r *Recorder) HotKey(ctx context.Context, keys ...string) error {
	list := make([]any, 0, len(keys))
	for _, k := range keys {
		list = append(list, k)
	}
	return r.record("hot_key", recording.KindHotKey, map[string]any{"keys": list},
		r.driver.HotKey(ctx, keys...))
}

func (r *Recorder) OpenURL(ctx context.Context, rawURL string) error {
	return r.record("open_url", recording.KindOpenURL, map[string]any{"url": rawURL},
		r.driver.OpenURL(ctx, rawURL))
}

// ScreenSize and MouseLocation pass through without recording.
func (r *Recorder) ScreenSize(ctx context.Context) (Point, error) {
	return r.driver.ScreenSize(ctx)
}

func (r *Recorder) MouseLocation(ctx context.Context) (Point, error) {
	return r.driver.MouseLocation(ctx)
}

// LastActivity reports when the last primitive was recorded. ok is false
// until something has been recorded.
func (r *Recorder) LastActivity() (t time.Time, ok bool) {
	n := r.last.Load()
	if n == 0 {
		return time.Time{}, false
	}
	return time.Unix(0, n).UTC(), true
}

// Screenshot captures the screen and records the file path.
func (r *Recorder) Screenshot(ctx context.Context) (string, error) {
	path, err := r.shots.Capture(ctx)
	return path, r.record("screenshot", recording.KindScreenshot, map[string]any{"path": path}, err)
}

func (r *Recorder) record(op string, kind recording.Kind, payload map[string]any, err error) error {
	if err != nil {
		r.log.Warn("desktop operation failed", "operation", op, "error", err)
		kind, payload = recording.KindError, map[string]any{"operation": op, "error": err.Error()}
	}
	res := r.sink.Capture(kind, payload)
	r.last.Store(res.Timestamp.UnixNano())
	if n := res.Skipped(); n > 0 {
		r.log.Debug("capture partially delivered", "operation", op, "delivered", res.Delivered(), "skipped", n)
	}
	return err
}

func buttonName(b string) string {
	if b == "" {
		return "left"
	}
	return b
}
