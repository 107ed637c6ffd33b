package api

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/agentsea/agentd/internal/desktop"
	"github.com/agentsea/agentd/internal/health"
	"github.com/agentsea/agentd/internal/recording"
	"github.com/agentsea/agentd/internal/stream"
	"github.com/agentsea/agentd/internal/sysinfo"
	"github.com/agentsea/agentd/internal/types"
)

// Desktop is the recorded input surface behind /v1.
type Desktop interface {
	desktop.Driver
	Screenshot(ctx context.Context) (string, error)
	LastActivity() (time.Time, bool)
}

type Handlers struct {
	mgr    *recording.Manager
	desk   Desktop
	stream *stream.Handler
	ready  func(context.Context) health.HealthStatus
	usage  func(context.Context) (sysinfo.Usage, error)
	log    *slog.Logger
}

func NewHandlers(mgr *recording.Manager, desk Desktop, st *stream.Handler, ready func(context.Context) health.HealthStatus,
	usage func(context.Context) (sysinfo.Usage, error), log *slog.Logger) *Handlers {
	return &Handlers{mgr: mgr, desk: desk, stream: st, ready: ready, usage: usage, log: log}
}

var errBadRequest = errors.New("bad request")

func (h *Handlers) HandleStartRecording(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Description string `json:"description"`
	}
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, err)
		return
	}
	info, err := h.mgr.Start(req.Description)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, map[string]any{
		"session_id": info.ID,
		"start_time": info.StartTime,
	})
}

func (h *Handlers) HandleListRecordings(w http.ResponseWriter, r *http.Request) {
	writeSuccess(w, http.StatusOK, map[string]any{"recordings": types.FromSessions(h.mgr.Sessions())})
}

func (h *Handlers) HandleActiveSessions(w http.ResponseWriter, r *http.Request) {
	active := h.mgr.ActiveSessions()
	ids := make([]string, 0, len(active))
	for _, s := range active {
		ids = append(ids, s.ID)
	}
	writeSuccess(w, http.StatusOK, map[string]any{"session_ids": ids})
}

func (h *Handlers) HandleGetRecording(w http.ResponseWriter, r *http.Request, id string) {
	d, err := h.mgr.Detail(id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	detail := types.FromDetail(d)
	out := map[string]any{
		"recording": detail.Recording,
		"summary":   detail.Summary,
		"events":    detail.Events,
	}
	if detail.Archived {
		out["archived"] = true
	}
	writeSuccess(w, http.StatusOK, out)
}

func (h *Handlers) HandleDeleteRecording(w http.ResponseWriter, r *http.Request, id string) {
	if err := h.mgr.Delete(id); err != nil {
		h.writeError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, map[string]any{"id": id})
}

func (h *Handlers) HandleStopRecording(w http.ResponseWriter, r *http.Request, id string) {
	info, err := h.mgr.Stop(id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, map[string]any{"recording": types.FromSession(info)})
}

func (h *Handlers) HandleListEvents(w http.ResponseWriter, r *http.Request, id string) {
	events, err := h.mgr.Events(id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, map[string]any{"events": types.FromEvents(events)})
}

func (h *Handlers) HandleListActions(w http.ResponseWriter, r *http.Request, id string) {
	actions, err := h.mgr.Actions(id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, map[string]any{"actions": types.FromEvents(actions)})
}

func (h *Handlers) HandleGetEvent(w http.ResponseWriter, r *http.Request, id, rawEventID string) {
	eid, err := parseEventID(rawEventID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	ev, err := h.mgr.Event(id, eid)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, map[string]any{"event": types.FromEvent(ev)})
}

func (h *Handlers) HandleDeleteEvent(w http.ResponseWriter, r *http.Request, id, rawEventID string) {
	eid, err := parseEventID(rawEventID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if err := h.mgr.DeleteEvent(id, eid); err != nil {
		h.writeError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, map[string]any{"id": uint64(eid)})
}

func (h *Handlers) HandleStream(w http.ResponseWriter, r *http.Request, id string) {
	if h.stream == nil {
		h.writeError(w, fmt.Errorf("streaming disabled: %w", recording.ErrInternal))
		return
	}
	h.stream.Serve(w, r, id)
}

func (h *Handlers) HandleReady(w http.ResponseWriter, r *http.Request) {
	if h.ready == nil {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}
	st := h.ready(r.Context())
	code := http.StatusOK
	if !st.OK {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, st)
}

// Input surface

type point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

func (h *Handlers) HandleMoveMouse(w http.ResponseWriter, r *http.Request) {
	var req point
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeResult(w, h.desk.MoveMouse(r.Context(), req.X, req.Y))
}

func (h *Handlers) HandleClick(w http.ResponseWriter, r *http.Request) {
	h.click(w, r, h.desk.Click)
}

func (h *Handlers) HandleDoubleClick(w http.ResponseWriter, r *http.Request) {
	h.click(w, r, h.desk.DoubleClick)
}

func (h *Handlers) click(w http.ResponseWriter, r *http.Request, do func(context.Context, string) error) {
	var req struct {
		Button   string `json:"button"`
		Location *point `json:"location"`
	}
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, err)
		return
	}
	if req.Location != nil {
		if err := h.desk.MoveMouse(r.Context(), req.Location.X, req.Location.Y); err != nil {
			h.writeResult(w, err)
			return
		}
	}
	h.writeResult(w, do(r.Context(), req.Button))
}

func (h *Handlers) HandleScroll(w http.ResponseWriter, r *http.Request) {
	req := struct {
		Clicks int `json:"clicks"`
	}{Clicks: 3}
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeResult(w, h.desk.Scroll(r.Context(), req.Clicks))
}

func (h *Handlers) HandleDragMouse(w http.ResponseWriter, r *http.Request) {
	var req point
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeResult(w, h.desk.Drag(r.Context(), req.X, req.Y))
}

func (h *Handlers) HandleTypeText(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text string `json:"text"`
	}
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeResult(w, h.desk.TypeText(r.Context(), req.Text))
}

func (h *Handlers) HandlePressKey(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Key string `json:"key"`
	}
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeResult(w, h.desk.PressKey(r.Context(), req.Key))
}

func (h *Handlers) HandleHotKey(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Keys []string `json:"keys"`
	}
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeResult(w, h.desk.HotKey(r.Context(), req.Keys...))
}

func (h *Handlers) HandleOpenURL(w http.ResponseWriter, r *http.Request) {
	var req struct {
		URL string `json:"url"`
	}
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeResult(w, h.desk.OpenURL(r.Context(), req.URL))
}

func (h *Handlers) HandleScreenshot(w http.ResponseWriter, r *http.Request) {
	path, err := h.desk.Screenshot(r.Context())
	if err != nil {
		h.writeResult(w, err)
		return
	}
	b, err := os.ReadFile(path)
	if err != nil {
		h.writeResult(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, map[string]any{
		"image":     base64.StdEncoding.EncodeToString(b),
		"file_path": path,
	})
}

// Desktop state. These read only and never reach the capture hook.

func (h *Handlers) HandleScreenSize(w http.ResponseWriter, r *http.Request) {
	size, err := h.desk.ScreenSize(r.Context())
	if err != nil {
		h.writeResult(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, map[string]any{"x": size.X, "y": size.Y})
}

func (h *Handlers) HandleMouseCoordinates(w http.ResponseWriter, r *http.Request) {
	loc, err := h.desk.MouseLocation(r.Context())
	if err != nil {
		h.writeResult(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, map[string]any{"x": loc.X, "y": loc.Y})
}

// HandleInfo reports what is known; an unreadable screen leaves
// screen_size null rather than failing the request.
func (h *Handlers) HandleInfo(w http.ResponseWriter, r *http.Request) {
	b := sysinfo.ReadBuild()
	out := map[string]any{
		"os_info":          b.OS,
		"go_version":       b.GoVersion,
		"code_version":     nil,
		"screen_size":      nil,
		"last_activity_ts": nil,
	}
	if b.CodeVersion != "" {
		out["code_version"] = b.CodeVersion
	}
	if size, err := h.desk.ScreenSize(r.Context()); err == nil {
		out["screen_size"] = size
	} else {
		h.log.Debug("screen size unavailable", "error", err)
	}
	if last, ok := h.desk.LastActivity(); ok {
		out["last_activity_ts"] = last.Unix()
	}
	writeSuccess(w, http.StatusOK, out)
}

func (h *Handlers) HandleSystemUsage(w http.ResponseWriter, r *http.Request) {
	if h.usage == nil {
		h.writeError(w, fmt.Errorf("system usage unavailable: %w", recording.ErrInternal))
		return
	}
	u, err := h.usage(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, map[string]any{
		"cpu_percent":    u.CPUPercent,
		"memory_percent": u.MemoryPercent,
		"disk_percent":   u.DiskPercent,
	})
}

// writeResult answers an input primitive. Failures are 400 for bad input
// and 500 otherwise.
func (h *Handlers) writeResult(w http.ResponseWriter, err error) {
	if err == nil {
		writeSuccess(w, http.StatusOK, nil)
		return
	}
	code := http.StatusInternalServerError
	if errors.Is(err, desktop.ErrBadInput) {
		code = http.StatusBadRequest
	}
	writeJSON(w, code, map[string]any{"status": "error", "message": err.Error()})
}

func (h *Handlers) writeError(w http.ResponseWriter, err error) {
	code := errStatus(err)
	if code >= 500 {
		h.log.Error("request failed", "error", err)
	}
	writeJSON(w, code, map[string]any{"status": "error", "message": err.Error()})
}

func errStatus(err error) int {
	switch {
	case errors.Is(err, recording.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, recording.ErrInvalidState):
		return http.StatusConflict
	case errors.Is(err, recording.ErrResourceExhausted):
		return http.StatusTooManyRequests
	case errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeSuccess(w http.ResponseWriter, code int, fields map[string]any) {
	out := make(map[string]any, len(fields)+1)
	for k, v := range fields {
		out[k] = v
	}
	out["status"] = "success"
	writeJSON(w, code, out)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// decodeJSON accepts an empty body.
func decodeJSON(r *http.Request, v any) error {
	if r.Body == nil {
		return nil
	}
	err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(v)
	if err == nil || errors.Is(err, io.EOF) {
		return nil
	}
	return fmt.Errorf("decode body: %v: %w", err, errBadRequest)
}

func parseEventID(s string) (recording.EventID, error) {
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("event id %q: %w", s, errBadRequest)
	}
	return recording.EventID(n), nil
}
