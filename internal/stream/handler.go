package stream

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	ws "nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/agentsea/agentd/internal/recording"
	"github.com/agentsea/agentd/internal/types"
)

const writeTimeout = 5 * time.Second

// Handler serves a session's events over a websocket as JSON text frames.
type Handler struct {
	Manager *recording.Manager
	Hub     *Hub
	Log     *slog.Logger
}

func NewHandler(m *recording.Manager, hub *Hub, log *slog.Logger) *Handler {
	return &Handler{Manager: m, Hub: hub, Log: log}
}

// Serve streams sessionID. With ?replay=1 the stored backlog is sent first.
// The connection ends when the client leaves or the session stops.
func (h *Handler) Serve(w http.ResponseWriter, r *http.Request, sessionID string) {
	if _, err := h.Manager.Session(sessionID); err != nil {
		http.Error(w, "unknown session", http.StatusNotFound)
		return
	}
	// subscribe before reading the backlog so nothing falls in between
	sub := h.Hub.Subscribe(sessionID)
	defer sub.Close()

	c, err := ws.Accept(w, r, nil)
	if err != nil {
		h.Log.Warn("ws accept", "session_id", sessionID, "error", err)
		return
	}
	defer c.Close(ws.StatusInternalError, "")

	ctx := c.CloseRead(r.Context())
	sent := map[recording.EventID]bool{}

	if r.URL.Query().Get("replay") == "1" {
		backlog, err := h.Manager.Events(sessionID)
		if err != nil {
			c.Close(ws.StatusNormalClosure, "session deleted")
			return
		}
		for _, ev := range backlog {
			if err := h.write(ctx, c, sessionID, ev); err != nil {
				return
			}
			sent[ev.ID] = true
		}
	}

	// a session stopped before Subscribe never closes sub
	if info, err := h.Manager.Session(sessionID); err != nil || info.State != recording.StateActive {
		h.drain(ctx, c, sub, sessionID, sent)
		c.Close(ws.StatusNormalClosure, "session closed")
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-sub.C():
			if !ok {
				c.Close(ws.StatusNormalClosure, "session closed")
				return
			}
			if sent[ev.ID] {
				continue
			}
			if err := h.write(ctx, c, sessionID, ev); err != nil {
				return
			}
			sent[ev.ID] = true
		}
	}
}

// drain forwards whatever is already queued without waiting for more.
func (h *Handler) drain(ctx context.Context, c *ws.Conn, sub *Subscription, sessionID string, sent map[recording.EventID]bool) {
	for {
		select {
		case ev, ok := <-sub.C():
			if !ok {
				return
			}
			if sent[ev.ID] {
				continue
			}
			if h.write(ctx, c, sessionID, ev) != nil {
				return
			}
			sent[ev.ID] = true
		default:
			return
		}
	}
}

func (h *Handler) write(ctx context.Context, c *ws.Conn, sessionID string, ev recording.Event) error {
	wctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	err := wsjson.Write(wctx, c, types.StreamEvent{SessionID: sessionID, Event: types.FromEvent(ev)})
	if err != nil && !errors.Is(err, context.Canceled) {
		h.Log.Debug("ws write", "session_id", sessionID, "error", err)
	}
	return err
}
