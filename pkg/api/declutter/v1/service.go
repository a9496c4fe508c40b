// Package declutterv1 defines the DeclutterDaemon gRPC service spoken over
// the daemon's unix socket.
//
// Messages are protobuf well-known types: command envelopes, tab events,
// status and engine events travel as google.protobuf.Struct, so the service
// needs no generated code. The typed views in messages.go convert to and
// from Struct.
package declutterv1

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "declutter.v1.DeclutterDaemon"

// Full method names.
const (
	CommandMethod         = "/" + ServiceName + "/Command"
	TabEventMethod        = "/" + ServiceName + "/TabEvent"
	GetDaemonStatusMethod = "/" + ServiceName + "/GetDaemonStatus"
	ShutdownMethod        = "/" + ServiceName + "/Shutdown"
	WatchEventsMethod     = "/" + ServiceName + "/WatchEvents"
)

// DeclutterDaemonServer is the server API for the DeclutterDaemon service.
type DeclutterDaemonServer interface {
	// Command dispatches one command envelope and returns its response.
	Command(context.Context, *structpb.Struct) (*structpb.Struct, error)

	// TabEvent reports tab activation, update or removal.
	TabEvent(context.Context, *structpb.Struct) (*emptypb.Empty, error)

	// GetDaemonStatus returns daemon health information.
	GetDaemonStatus(context.Context, *emptypb.Empty) (*structpb.Struct, error)

	// Shutdown asks the daemon to stop.
	Shutdown(context.Context, *emptypb.Empty) (*emptypb.Empty, error)

	// WatchEvents streams engine events until the client goes away.
	WatchEvents(*structpb.Struct, grpc.ServerStreamingServer[structpb.Struct]) error
}

// UnimplementedDeclutterDaemonServer can be embedded to have forward
// compatible implementations.
type UnimplementedDeclutterDaemonServer struct{}

func (UnimplementedDeclutterDaemonServer) Command(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, status.Error(codes.Unimplemented, "method Command not implemented")
}

func (UnimplementedDeclutterDaemonServer) TabEvent(context.Context, *structpb.Struct) (*emptypb.Empty, error) {
	return nil, status.Error(codes.Unimplemented, "method TabEvent not implemented")
}

func (UnimplementedDeclutterDaemonServer) GetDaemonStatus(context.Context, *emptypb.Empty) (*structpb.Struct, error) {
	return nil, status.Error(codes.Unimplemented, "method GetDaemonStatus not implemented")
}

func (UnimplementedDeclutterDaemonServer) Shutdown(context.Context, *emptypb.Empty) (*emptypb.Empty, error) {
	return nil, status.Error(codes.Unimplemented, "method Shutdown not implemented")
}

func (UnimplementedDeclutterDaemonServer) WatchEvents(*structpb.Struct, grpc.ServerStreamingServer[structpb.Struct]) error {
	return status.Error(codes.Unimplemented, "method WatchEvents not implemented")
}

// RegisterDeclutterDaemonServer registers srv on s.
func RegisterDeclutterDaemonServer(s grpc.ServiceRegistrar, srv DeclutterDaemonServer) {
	s.RegisterService(&ServiceDesc, srv)
}

// ServiceDesc describes the DeclutterDaemon service for grpc.Server.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*DeclutterDaemonServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Command", Handler: commandHandler},
		{MethodName: "TabEvent", Handler: tabEventHandler},
		{MethodName: "GetDaemonStatus", Handler: getDaemonStatusHandler},
		{MethodName: "Shutdown", Handler: shutdownHandler},
	},
	Streams: []grpc.StreamDesc{
		{StreamName: "WatchEvents", Handler: watchEventsHandler, ServerStreams: true},
	},
	Metadata: "declutter/v1/declutter.proto",
}

// unary adapts a typed unary method to a grpc.MethodDesc handler.
func unary[Req any, PReq interface {
	*Req
}, Resp any](
	method string,
	call func(DeclutterDaemonServer, context.Context, PReq) (Resp, error),
) func(any, context.Context, func(any) error, grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := PReq(new(Req))
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(DeclutterDaemonServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: method}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(DeclutterDaemonServer), ctx, req.(PReq))
		}
		return interceptor(ctx, in, info, handler)
	}
}

var (
	commandHandler = unary[structpb.Struct](CommandMethod,
		func(s DeclutterDaemonServer, ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
			return s.Command(ctx, in)
		})
	tabEventHandler = unary[structpb.Struct](TabEventMethod,
		func(s DeclutterDaemonServer, ctx context.Context, in *structpb.Struct) (*emptypb.Empty, error) {
			return s.TabEvent(ctx, in)
		})
	getDaemonStatusHandler = unary[emptypb.Empty](GetDaemonStatusMethod,
		func(s DeclutterDaemonServer, ctx context.Context, in *emptypb.Empty) (*structpb.Struct, error) {
			return s.GetDaemonStatus(ctx, in)
		})
	shutdownHandler = unary[emptypb.Empty](ShutdownMethod,
		func(s DeclutterDaemonServer, ctx context.Context, in *emptypb.Empty) (*emptypb.Empty, error) {
			return s.Shutdown(ctx, in)
		})
)

func watchEventsHandler(srv any, stream grpc.ServerStream) error {
	in := new(structpb.Struct)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(DeclutterDaemonServer).WatchEvents(in, &grpc.GenericServerStream[structpb.Struct, structpb.Struct]{ServerStream: stream})
}

// DeclutterDaemonClient is the client API for the DeclutterDaemon service.
type DeclutterDaemonClient interface {
	Command(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	TabEvent(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*emptypb.Empty, error)
	GetDaemonStatus(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*structpb.Struct, error)
	Shutdown(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*emptypb.Empty, error)
	WatchEvents(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (grpc.ServerStreamingClient[structpb.Struct], error)
}

type declutterDaemonClient struct {
	cc grpc.ClientConnInterface
}

// NewDeclutterDaemonClient creates a client over cc.
func NewDeclutterDaemonClient(cc grpc.ClientConnInterface) DeclutterDaemonClient {
	return &declutterDaemonClient{cc: cc}
}

func (c *declutterDaemonClient) Command(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, CommandMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *declutterDaemonClient) TabEvent(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*emptypb.Empty, error) {
	out := new(emptypb.Empty)
	if err := c.cc.Invoke(ctx, TabEventMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *declutterDaemonClient) GetDaemonStatus(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, GetDaemonStatusMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *declutterDaemonClient) Shutdown(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*emptypb.Empty, error) {
	out := new(emptypb.Empty)
	if err := c.cc.Invoke(ctx, ShutdownMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *declutterDaemonClient) WatchEvents(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (grpc.ServerStreamingClient[structpb.Struct], error) {
	stream, err := c.cc.NewStream(ctx, &ServiceDesc.Streams[0], WatchEventsMethod, opts...)
	if err != nil {
		return nil, err
	}
	x := &grpc.GenericClientStream[structpb.Struct, structpb.Struct]{ClientStream: stream}
	if err := x.ClientStream.SendMsg(in); err != nil {
		return nil, err
	}
	if err := x.ClientStream.CloseSend(); err != nil {
		return nil, err
	}
	return x, nil
}
