package rpc

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

// Client calls the Recorder service.
type Client struct {
	cc grpc.ClientConnInterface
}

func NewClient(cc grpc.ClientConnInterface) *Client { return &Client{cc: cc} }

// Dial opens a plaintext connection to addr.
func Dial(addr string, opts ...grpc.DialOption) (*grpc.ClientConn, error) {
	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	return grpc.NewClient(addr, opts...)
}

// Delivery reports where a recorded event ended up.
type Delivery struct {
	Timestamp time.Time
	EventID   uint64
	Delivered int
	Skipped   int
}

func (c *Client) StartSession(ctx context.Context, description string) (string, time.Time, error) {
	out, err := c.call(ctx, methodStartSession, map[string]any{"description": description})
	if err != nil {
		return "", time.Time{}, err
	}
	ts, err := parseTime(out, "start_time")
	return stringField(out, "session_id"), ts, err
}

func (c *Client) StopSession(ctx context.Context, sessionID string) (map[string]any, error) {
	out, err := c.call(ctx, methodStopSession, map[string]any{"session_id": sessionID})
	if err != nil {
		return nil, err
	}
	return out.GetFields()["recording"].GetStructValue().AsMap(), nil
}

// GetSession returns the session record and its summary.
func (c *Client) GetSession(ctx context.Context, sessionID string) (map[string]any, error) {
	out, err := c.call(ctx, methodGetSession, map[string]any{"session_id": sessionID})
	if err != nil {
		return nil, err
	}
	return out.AsMap(), nil
}

// ListSessions returns every session record, active and stopped.
func (c *Client) ListSessions(ctx context.Context) ([]map[string]any, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, fullMethod(methodListSessions), &emptypb.Empty{}, out); err != nil {
		return nil, err
	}
	return structList(out, "recordings"), nil
}

// ListSessionActions returns the session's action events in order.
func (c *Client) ListSessionActions(ctx context.Context, sessionID string) ([]map[string]any, error) {
	out, err := c.call(ctx, methodListActions, map[string]any{"session_id": sessionID})
	if err != nil {
		return nil, err
	}
	return structList(out, "actions"), nil
}

func (c *Client) GetEvent(ctx context.Context, sessionID string, eventID uint64) (map[string]any, error) {
	out, err := c.call(ctx, methodGetEvent, map[string]any{"session_id": sessionID, "event_id": eventID})
	if err != nil {
		return nil, err
	}
	return out.GetFields()["event"].GetStructValue().AsMap(), nil
}

func (c *Client) ListActiveSessions(ctx context.Context) ([]string, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, fullMethod(methodListActiveSessions), &emptypb.Empty{}, out); err != nil {
		return nil, err
	}
	var ids []string
	for _, v := range out.GetFields()["session_ids"].GetListValue().GetValues() {
		ids = append(ids, v.GetStringValue())
	}
	return ids, nil
}

// RecordEvent captures an event in every active session, or only in
// sessionID when it is not empty.
func (c *Client) RecordEvent(ctx context.Context, sessionID, kind string, payload map[string]any) (Delivery, error) {
	req := map[string]any{"kind": kind}
	if sessionID != "" {
		req["session_id"] = sessionID
	}
	if payload != nil {
		req["payload"] = payload
	}
	out, err := c.call(ctx, methodRecordEvent, req)
	if err != nil {
		return Delivery{}, err
	}
	ts, err := parseTime(out, "timestamp")
	f := out.GetFields()
	return Delivery{
		Timestamp: ts,
		EventID:   uint64(f["event_id"].GetNumberValue()),
		Delivered: int(f["delivered"].GetNumberValue()),
		Skipped:   int(f["skipped"].GetNumberValue()),
	}, err
}

func (c *Client) DeleteEvent(ctx context.Context, sessionID string, eventID uint64) error {
	in, err := structpb.NewStruct(map[string]any{"session_id": sessionID, "event_id": eventID})
	if err != nil {
		return err
	}
	return c.cc.Invoke(ctx, fullMethod(methodDeleteEvent), in, &emptypb.Empty{})
}

func (c *Client) call(ctx context.Context, method string, req map[string]any) (*structpb.Struct, error) {
	in, err := structpb.NewStruct(req)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", method, err)
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, fullMethod(method), in, out); err != nil {
		return nil, err
	}
	return out, nil
}

func structList(s *structpb.Struct, key string) []map[string]any {
	values := s.GetFields()[key].GetListValue().GetValues()
	out := make([]map[string]any, 0, len(values))
	for _, v := range values {
		out = append(out, v.GetStructValue().AsMap())
	}
	return out
}

func parseTime(s *structpb.Struct, key string) (time.Time, error) {
	v := stringField(s, key)
	if v == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("%s: %w", key, err)
	}
	return t, nil
}
