package rpc

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"strings"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/agentsea/agentd/internal/recording"
	"github.com/agentsea/agentd/internal/types"
)

type Server struct {
	Manager *recording.Manager
	Log     *slog.Logger
}

var _ RecorderServer = (*Server)(nil)

func NewServer(m *recording.Manager, log *slog.Logger) *Server {
	return &Server{Manager: m, Log: log}
}

// NewGRPCServer builds a grpc.Server with the Recorder service registered.
func NewGRPCServer(m *recording.Manager, log *slog.Logger, opts ...grpc.ServerOption) *grpc.Server {
	opts = append([]grpc.ServerOption{grpc.ChainUnaryInterceptor(LogInterceptor(log))}, opts...)
	s := grpc.NewServer(opts...)
	RegisterRecorderServer(s, NewServer(m, log))
	return s
}

func (s *Server) StartSession(_ context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	info, err := s.Manager.Start(stringField(in, "description"))
	if err != nil {
		return nil, toStatus(err)
	}
	return reply(map[string]any{
		"session_id": info.ID,
		"start_time": formatTime(info.StartTime),
	})
}

func (s *Server) StopSession(_ context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	id, err := sessionID(in)
	if err != nil {
		return nil, err
	}
	info, err := s.Manager.Stop(id)
	if err != nil {
		return nil, toStatus(err)
	}
	return reply(map[string]any{"recording": sessionValue(types.FromSession(info))})
}

func (s *Server) GetSession(_ context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	id, err := sessionID(in)
	if err != nil {
		return nil, err
	}
	d, err := s.Manager.Detail(id)
	if err != nil {
		return nil, toStatus(err)
	}
	sum := types.FromSummary(d.Summary)
	kinds := make(map[string]any, len(sum.Kinds))
	for k, n := range sum.Kinds {
		kinds[k] = n
	}
	return reply(map[string]any{
		"recording": sessionValue(types.FromSession(d.Info)),
		"summary": map[string]any{
			"event_count":  sum.EventCount,
			"action_count": sum.ActionCount,
			"kinds":        kinds,
		},
	})
}

func (s *Server) ListSessions(context.Context, *emptypb.Empty) (*structpb.Struct, error) {
	all := s.Manager.Sessions()
	list := make([]any, 0, len(all))
	for _, info := range all {
		list = append(list, sessionValue(types.FromSession(info)))
	}
	return reply(map[string]any{"recordings": list})
}

func (s *Server) ListSessionActions(_ context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	id, err := sessionID(in)
	if err != nil {
		return nil, err
	}
	actions, err := s.Manager.Actions(id)
	if err != nil {
		return nil, toStatus(err)
	}
	list := make([]any, 0, len(actions))
	for _, ev := range types.FromEvents(actions) {
		list = append(list, eventValue(ev))
	}
	return reply(map[string]any{"actions": list})
}

func (s *Server) GetEvent(_ context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	id, err := sessionID(in)
	if err != nil {
		return nil, err
	}
	eid, err := eventID(in)
	if err != nil {
		return nil, err
	}
	ev, err := s.Manager.Event(id, eid)
	if err != nil {
		return nil, toStatus(err)
	}
	return reply(map[string]any{"event": eventValue(types.FromEvent(ev))})
}

func (s *Server) ListActiveSessions(context.Context, *emptypb.Empty) (*structpb.Struct, error) {
	active := s.Manager.ActiveSessions()
	ids := make([]any, 0, len(active))
	for _, a := range active {
		ids = append(ids, a.ID)
	}
	return reply(map[string]any{"session_ids": ids})
}

// RecordEvent feeds an event from another process. Without session_id it goes
// through the capture hook to every active session; with one it is appended
// to that session only.
func (s *Server) RecordEvent(_ context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	kind := strings.TrimSpace(stringField(in, "kind"))
	if kind == "" {
		return nil, status.Error(codes.InvalidArgument, "kind is required")
	}
	var payload map[string]any
	if v, ok := in.GetFields()["payload"]; ok {
		p := v.GetStructValue()
		if p == nil {
			return nil, status.Error(codes.InvalidArgument, "payload must be an object")
		}
		payload = p.AsMap()
	}
	if id := stringField(in, "session_id"); id != "" {
		ev, err := s.Manager.Append(id, recording.Kind(kind), payload)
		if err != nil {
			return nil, toStatus(err)
		}
		return reply(map[string]any{
			"timestamp": formatTime(ev.Timestamp),
			"event_id":  uint64(ev.ID),
			"delivered": 1,
			"skipped":   0,
		})
	}
	res := s.Manager.Hook().Capture(recording.Kind(kind), payload)
	return reply(map[string]any{
		"timestamp": formatTime(res.Timestamp),
		"delivered": res.Delivered(),
		"skipped":   res.Skipped(),
	})
}

func (s *Server) DeleteEvent(_ context.Context, in *structpb.Struct) (*emptypb.Empty, error) {
	id, err := sessionID(in)
	if err != nil {
		return nil, err
	}
	eid, err := eventID(in)
	if err != nil {
		return nil, err
	}
	if err := s.Manager.DeleteEvent(id, eid); err != nil {
		return nil, toStatus(err)
	}
	return &emptypb.Empty{}, nil
}

// LogInterceptor logs every unary call with its status code and duration.
func LogInterceptor(log *slog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		log.Info("rpc", "method", info.FullMethod, "code", status.Code(err).String(), "dur_ms", time.Since(start).Milliseconds())
		return resp, err
	}
}

func toStatus(err error) error {
	switch {
	case errors.Is(err, recording.ErrNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, recording.ErrInvalidState):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, recording.ErrResourceExhausted):
		return status.Error(codes.ResourceExhausted, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}

func reply(m map[string]any) (*structpb.Struct, error) {
	out, err := structpb.NewStruct(m)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode reply: %v", err)
	}
	return out, nil
}

func sessionValue(s types.Session) map[string]any {
	m := map[string]any{
		"id":         s.ID,
		"status":     s.Status,
		"start_time": formatTime(s.StartTime),
	}
	if s.Description != "" {
		m["description"] = s.Description
	}
	if s.EndTime != nil {
		m["end_time"] = formatTime(*s.EndTime)
	}
	return m
}

func eventValue(e types.Event) map[string]any {
	m := map[string]any{
		"id":        e.ID,
		"type":      e.Type,
		"timestamp": formatTime(e.Ts),
	}
	if e.Payload != nil {
		m["payload"] = e.Payload
	}
	return m
}

func formatTime(t time.Time) string { return t.UTC().Format(time.RFC3339Nano) }

func stringField(in *structpb.Struct, key string) string {
	return in.GetFields()[key].GetStringValue()
}

func sessionID(in *structpb.Struct) (string, error) {
	id := strings.TrimSpace(stringField(in, "session_id"))
	if id == "" {
		return "", status.Error(codes.InvalidArgument, "session_id is required")
	}
	return id, nil
}

func eventID(in *structpb.Struct) (recording.EventID, error) {
	v, ok := in.GetFields()["event_id"]
	if !ok {
		return 0, status.Error(codes.InvalidArgument, "event_id is required")
	}
	n := v.GetNumberValue()
	if n < float64(recording.FirstEventID) || n != math.Trunc(n) || n > 1<<53 {
		return 0, status.Errorf(codes.InvalidArgument, "bad event_id %v", n)
	}
	return recording.EventID(n), nil
}
