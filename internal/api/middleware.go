package api

import (
	"bufio"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"
)

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Hijack lets the websocket upgrade pass through the middleware.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("hijack not supported")
	}
	r.status = http.StatusSwitchingProtocols
	return hj.Hijack()
}

// LogMiddleware logs each request and records it in the HTTP metrics.
func LogMiddleware(log *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		dur := time.Since(start)
		route := routeLabel(r.URL.Path)
		metricRequests.WithLabelValues(route, strconv.Itoa(rec.status)).Inc()
		metricLatency.WithLabelValues(route).Observe(dur.Seconds())
		log.Info("http", "method", r.Method, "path", r.URL.Path, "status", rec.status, "dur_ms", dur.Milliseconds())
	})
}

// routeLabel keeps metric cardinality bounded by dropping ids.
func routeLabel(path string) string {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	switch parts[0] {
	case "recordings":
		switch len(parts) {
		case 1:
			return "/recordings"
		case 2:
			return "/recordings/{id}"
		default:
			return "/recordings/{id}/" + parts[2]
		}
	case "v1":
		if len(parts) > 1 {
			return "/v1/" + parts[1]
		}
	case "healthz", "health", "readyz", "metrics", "active_sessions":
		return "/" + parts[0]
	}
	return "other"
}
