// Package desktop drives the X desktop (pointer, keyboard, browser,
// screenshots) and records every primitive through the capture hook.
package desktop

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/agentsea/agentd/internal/clock"
)

var ErrBadInput = errors.New("bad input")

// Driver performs input primitives.
type Driver interface {
	MoveMouse(ctx context.Context, x, y int) error
	Click(ctx context.Context, button string) error
	DoubleClick(ctx context.Context, button string) error
	// Scroll scrolls up for positive clicks and down for negative ones.
	Scroll(ctx context.Context, clicks int) error
	Drag(ctx context.Context, x, y int) error
	TypeText(ctx context.Context, text string) error
	PressKey(ctx context.Context, key string) error
	HotKey(ctx context.Context, keys ...string) error
	OpenURL(ctx context.Context, rawURL string) error

	// ScreenSize and MouseLocation only read desktop state.
	ScreenSize(ctx context.Context) (Point, error)
	MouseLocation(ctx context.Context) (Point, error)
}

// Point is a pixel position, or a width and height for ScreenSize.
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Capturer takes a screenshot and returns the file it wrote.
type Capturer interface {
	Capture(ctx context.Context) (string, error)
}

// XdotoolDriver implements Driver with xdotool, launching URLs in Browser.
type XdotoolDriver struct {
	Bin     string
	Browser string
	run     Runner
}

func NewXdotoolDriver(bin, browser string, run Runner) *XdotoolDriver {
	if bin == "" {
		bin = "xdotool"
	}
	return &XdotoolDriver{Bin: bin, Browser: browser, run: run}
}

func (d *XdotoolDriver) MoveMouse(ctx context.Context, x, y int) error {
	if x < 0 || y < 0 {
		return fmt.Errorf("move to %d,%d: %w", x, y, ErrBadInput)
	}
	return d.run.Run(ctx, d.Bin, "mousemove", strconv.Itoa(x), strconv.Itoa(y))
}

func (d *XdotoolDriver) Click(ctx context.Context, button string) error {
	b, err := buttonNumber(button)
	if err != nil {
		return err
	}
	return d.run.Run(ctx, d.Bin, "click", b)
}

func (d *XdotoolDriver) DoubleClick(ctx context.Context, button string) error {
	b, err := buttonNumber(button)
	if err != nil {
		return err
	}
	return d.run.Run(ctx, d.Bin, "click", "--repeat", "2", b)
}

func (d *XdotoolDriver) Scroll(ctx context.Context, clicks int) error {
	if clicks == 0 {
		return nil
	}
	// wheel up is button 4, down is 5
	b, n := "4", clicks
	if clicks < 0 {
		b, n = "5", -clicks
	}
	return d.run.Run(ctx, d.Bin, "click", "--repeat", strconv.Itoa(n), b)
}

func (d *XdotoolDriver) Drag(ctx context.Context, x, y int) error {
	if x < 0 || y < 0 {
		return fmt.Errorf("drag to %d,%d: %w", x, y, ErrBadInput)
	}
	return d.run.Run(ctx, d.Bin, "mousedown", "1", "mousemove", strconv.Itoa(x), strconv.Itoa(y), "mouseup", "1")
}

func (d *XdotoolDriver) TypeText(ctx context.Context, text string) error {
	if text == "" {
		return nil
	}
	return d.run.Run(ctx, d.Bin, "type", "--delay", "50", "--", text)
}

func (d *XdotoolDriver) PressKey(ctx context.Context, key string) error {
	sym, err := Keysym(key)
	if err != nil {
		return err
	}
	return d.run.Run(ctx, d.Bin, "key", "--", sym)
}

func (d *XdotoolDriver) HotKey(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return fmt.Errorf("hot key: no keys: %w", ErrBadInput)
	}
	syms := make([]string, 0, len(keys))
	for _, k := range keys {
		sym, err := Keysym(k)
		if err != nil {
			return err
		}
		syms = append(syms, sym)
	}
	return d.run.Run(ctx, d.Bin, "key", "--", strings.Join(syms, "+"))
}

func (d *XdotoolDriver) OpenURL(ctx context.Context, rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil || u.Scheme == "" {
		return fmt.Errorf("open %q: %w", rawURL, ErrBadInput)
	}
	if d.Browser == "" {
		return errors.New("browser command not configured")
	}
	parts := strings.Fields(d.Browser)
	return d.run.Start(ctx, parts[0], append(parts[1:], u.String())...)
}

func (d *XdotoolDriver) ScreenSize(ctx context.Context) (Point, error) {
	out, err := d.run.Output(ctx, d.Bin, "getdisplaygeometry")
	if err != nil {
		return Point{}, err
	}
	f := strings.Fields(out)
	if len(f) != 2 {
		return Point{}, fmt.Errorf("display geometry %q: unexpected output", strings.TrimSpace(out))
	}
	w, errW := strconv.Atoi(f[0])
	h, errH := strconv.Atoi(f[1])
	if errW != nil || errH != nil {
		return Point{}, fmt.Errorf("display geometry %q: unexpected output", strings.TrimSpace(out))
	}
	return Point{X: w, Y: h}, nil
}

// MouseLocation parses the X= and Y= lines of getmouselocation --shell.
func (d *XdotoolDriver) MouseLocation(ctx context.Context) (Point, error) {
	out, err := d.run.Output(ctx, d.Bin, "getmouselocation", "--shell")
	if err != nil {
		return Point{}, err
	}
	var p Point
	seen := 0
	for _, line := range strings.Split(out, "\n") {
		k, v, ok := strings.Cut(strings.TrimSpace(line), "=")
		if !ok || (k != "X" && k != "Y") {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return Point{}, fmt.Errorf("mouse location %s=%q: %w", k, v, err)
		}
		if k == "X" {
			p.X = n
		} else {
			p.Y = n
		}
		seen++
	}
	if seen != 2 {
		return Point{}, fmt.Errorf("mouse location %q: unexpected output", strings.TrimSpace(out))
	}
	return p, nil
}

func buttonNumber(button string) (string, error) {
	switch strings.ToLower(button) {
	case "", "left":
		return "1", nil
	case "middle":
		return "2", nil
	case "right":
		return "3", nil
	}
	return "", fmt.Errorf("button %q: %w", button, ErrBadInput)
}

var keysyms = map[string]string{
	"enter":     "Return",
	"return":    "Return",
	"esc":       "Escape",
	"escape":    "Escape",
	"tab":       "Tab",
	"backspace": "BackSpace",
	"delete":    "Delete",
	"del":       "Delete",
	"insert":    "Insert",
	"space":     "space",
	"up":        "Up",
	"down":      "Down",
	"left":      "Left",
	"right":     "Right",
	"home":      "Home",
	"end":       "End",
	"pageup":    "Page_Up",
	"pgup":      "Page_Up",
	"pagedown":  "Page_Down",
	"pgdn":      "Page_Down",
	"capslock":  "Caps_Lock",
	"ctrl":      "ctrl",
	"ctrlleft":  "Control_L",
	"ctrlright": "Control_R",
	"shift":     "shift",
	"shiftleft": "Shift_L",
	"alt":       "alt",
	"altleft":   "Alt_L",
	"win":       "super",
	"super":     "super",
	"command":   "super",
	"print":     "Print",
}

// Keysym maps a key name like "enter", "ctrl" or "f5" to its X keysym.
// Single characters pass through unchanged.
func Keysym(key string) (string, error) {
	if key == "" {
		return "", fmt.Errorf("key: empty: %w", ErrBadInput)
	}
	if len([]rune(key)) == 1 {
		return key, nil
	}
	lk := strings.ToLower(key)
	if sym, ok := keysyms[lk]; ok {
		return sym, nil
	}
	if lk[0] == 'f' {
		if n, err := strconv.Atoi(lk[1:]); err == nil && n >= 1 && n <= 24 {
			return "F" + strconv.Itoa(n), nil
		}
	}
	return "", fmt.Errorf("key %q: %w", key, ErrBadInput)
}

// ScrotCapturer writes screenshots with scrot into Dir.
type ScrotCapturer struct {
	Bin   string
	Dir   string
	clock clock.Clock
	run   Runner
}

func NewScrotCapturer(bin, dir string, c clock.Clock, run Runner) *ScrotCapturer {
	if bin == "" {
		bin = "scrot"
	}
	return &ScrotCapturer{Bin: bin, Dir: dir, clock: c, run: run}
}

func (s *ScrotCapturer) Capture(ctx context.Context) (string, error) {
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return "", fmt.Errorf("screenshot dir: %w", err)
	}
	path := filepath.Join(s.Dir, fmt.Sprintf("screenshot_%d.png", s.clock.Now().UnixNano()))
	// -z silent, -p include pointer
	if err := s.run.Run(ctx, s.Bin, "-z", "-p", path); err != nil {
		return "", err
	}
	return path, nil
}
