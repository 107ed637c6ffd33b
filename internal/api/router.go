package api

import (
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func NewRouter(h *Handlers) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
	})
	mux.HandleFunc("/readyz", h.HandleReady)
	mux.Handle("/metrics", promhttp.Handler())

	mux.HandleFunc("/recordings", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			h.HandleStartRecording(w, r)
		case http.MethodGet:
			h.HandleListRecordings(w, r)
		default:
			methodNotAllowed(w)
		}
	})

	mux.HandleFunc("/active_sessions", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			methodNotAllowed(w)
			return
		}
		h.HandleActiveSessions(w, r)
	})

	mux.HandleFunc("/recordings/", func(w http.ResponseWriter, r *http.Request) {
		// /recordings/{id} | /stop | /events | /actions | /stream | /event/{eid}
		path := strings.TrimSuffix(r.URL.Path, "/")
		const prefix = "/recordings/"
		if !strings.HasPrefix(path, prefix) {
			notFound(w)
			return
		}
		rest := strings.TrimPrefix(path, prefix)
		parts := strings.Split(rest, "/")
		if len(parts) == 0 || parts[0] == "" {
			notFound(w)
			return
		}
		id := parts[0]
		tail := ""
		if len(parts) > 1 {
			tail = parts[1]
		}
		// only /event/{eid} takes a third segment
		if (tail != "event" && len(parts) > 2) || len(parts) > 3 {
			notFound(w)
			return
		}

		switch tail {
		case "":
			switch r.Method {
			case http.MethodGet:
				h.HandleGetRecording(w, r, id)
			case http.MethodDelete:
				h.HandleDeleteRecording(w, r, id)
			default:
				methodNotAllowed(w)
			}
		case "stop":
			if r.Method != http.MethodPost {
				methodNotAllowed(w)
				return
			}
			h.HandleStopRecording(w, r, id)
		case "events":
			if r.Method != http.MethodGet {
				methodNotAllowed(w)
				return
			}
			h.HandleListEvents(w, r, id)
		case "actions":
			if r.Method != http.MethodGet {
				methodNotAllowed(w)
				return
			}
			h.HandleListActions(w, r, id)
		case "stream":
			if r.Method != http.MethodGet {
				methodNotAllowed(w)
				return
			}
			h.HandleStream(w, r, id)
		case "event":
			if len(parts) != 3 || parts[2] == "" {
				notFound(w)
				return
			}
			switch r.Method {
			case http.MethodGet:
				h.HandleGetEvent(w, r, id, parts[2])
			case http.MethodDelete:
				h.HandleDeleteEvent(w, r, id, parts[2])
			default:
				methodNotAllowed(w)
			}
		default:
			notFound(w)
		}
	})

	input := map[string]http.HandlerFunc{
		"move_mouse":   h.HandleMoveMouse,
		"click":        h.HandleClick,
		"double_click": h.HandleDoubleClick,
		"scroll":       h.HandleScroll,
		"drag_mouse":   h.HandleDragMouse,
		"type_text":    h.HandleTypeText,
		"press_key":    h.HandlePressKey,
		"hot_key":      h.HandleHotKey,
		"open_url":     h.HandleOpenURL,
		"screenshot":   h.HandleScreenshot,
	}
	state := map[string]http.HandlerFunc{
		"info":              h.HandleInfo,
		"screen_size":       h.HandleScreenSize,
		"mouse_coordinates": h.HandleMouseCoordinates,
		"system_usage":      h.HandleSystemUsage,
	}
	mux.HandleFunc("/v1/", func(w http.ResponseWriter, r *http.Request) {
		op := strings.TrimPrefix(r.URL.Path, "/v1/")
		if fn, ok := input[op]; ok {
			if r.Method != http.MethodPost {
				methodNotAllowed(w)
				return
			}
			fn(w, r)
			return
		}
		if fn, ok := state[op]; ok {
			if r.Method != http.MethodGet {
				methodNotAllowed(w)
				return
			}
			fn(w, r)
			return
		}
		notFound(w)
	})

	return mux
}

func notFound(w http.ResponseWriter) {
	writeJSON(w, http.StatusNotFound, map[string]any{"status": "error", "message": "not found"})
}

func methodNotAllowed(w http.ResponseWriter) {
	writeJSON(w, http.StatusMethodNotAllowed, map[string]any{"status": "error", "message": "method not allowed"})
}
