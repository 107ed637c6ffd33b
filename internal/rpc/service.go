// Package rpc exposes the recording manager as the gRPC service
// agentd.recording.v1.Recorder. Messages are protobuf well-known types:
// requests and replies are google.protobuf.Struct, empty replies are
// google.protobuf.Empty.
package rpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

const ServiceName = "agentd.recording.v1.Recorder"

const (
	methodStartSession       = "StartSession"
	methodStopSession        = "StopSession"
	methodGetSession         = "GetSession"
	methodListSessions       = "ListSessions"
	methodListActiveSessions = "ListActiveSessions"
	methodListActions        = "ListSessionActions"
	methodRecordEvent        = "RecordEvent"
	methodGetEvent           = "GetEvent"
	methodDeleteEvent        = "DeleteEvent"
)

// RecorderServer is implemented by Server.
type RecorderServer interface {
	StartSession(context.Context, *structpb.Struct) (*structpb.Struct, error)
	StopSession(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetSession(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListSessions(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	ListActiveSessions(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	ListSessionActions(context.Context, *structpb.Struct) (*structpb.Struct, error)
	RecordEvent(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetEvent(context.Context, *structpb.Struct) (*structpb.Struct, error)
	DeleteEvent(context.Context, *structpb.Struct) (*emptypb.Empty, error)
}

var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*RecorderServer)(nil),
	Methods: []grpc.MethodDesc{
		unary(methodStartSession, newStruct, func(s RecorderServer, ctx context.Context, in any) (any, error) {
			return s.StartSession(ctx, in.(*structpb.Struct))
		}),
		unary(methodStopSession, newStruct, func(s RecorderServer, ctx context.Context, in any) (any, error) {
			return s.StopSession(ctx, in.(*structpb.Struct))
		}),
		unary(methodGetSession, newStruct, func(s RecorderServer, ctx context.Context, in any) (any, error) {
			return s.GetSession(ctx, in.(*structpb.Struct))
		}),
		unary(methodListSessions, newEmpty, func(s RecorderServer, ctx context.Context, in any) (any, error) {
			return s.ListSessions(ctx, in.(*emptypb.Empty))
		}),
		unary(methodListActiveSessions, newEmpty, func(s RecorderServer, ctx context.Context, in any) (any, error) {
			return s.ListActiveSessions(ctx, in.(*emptypb.Empty))
		}),
		unary(methodListActions, newStruct, func(s RecorderServer, ctx context.Context, in any) (any, error) {
			return s.ListSessionActions(ctx, in.(*structpb.Struct))
		}),
		unary(methodRecordEvent, newStruct, func(s RecorderServer, ctx context.Context, in any) (any, error) {
			return s.RecordEvent(ctx, in.(*structpb.Struct))
		}),
		unary(methodGetEvent, newStruct, func(s RecorderServer, ctx context.Context, in any) (any, error) {
			return s.GetEvent(ctx, in.(*structpb.Struct))
		}),
		unary(methodDeleteEvent, newStruct, func(s RecorderServer, ctx context.Context, in any) (any, error) {
			return s.DeleteEvent(ctx, in.(*structpb.Struct))
		}),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "agentd/recording/v1/recorder.proto",
}

func RegisterRecorderServer(s grpc.ServiceRegistrar, srv RecorderServer) {
	s.RegisterService(&ServiceDesc, srv)
}

func fullMethod(name string) string { return "/" + ServiceName + "/" + name }

func newStruct() any { return new(structpb.Struct) }
func newEmpty() any  { return new(emptypb.Empty) }

func unary(name string, newIn func() any, call func(RecorderServer, context.Context, any) (any, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := newIn()
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(RecorderServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod(name)}
			return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
				return call(srv.(RecorderServer), ctx, req)
			})
		},
	}
}
