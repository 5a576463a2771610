package grpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified name of the play simulator service.
const ServiceName = "diamondsim.v1.PlaySimulator"

const (
	simulateMethod     = "/" + ServiceName + "/Simulate"
	streamFramesMethod = "/" + ServiceName + "/StreamFrames"
)

// PlaySimulatorServer is the server API of the play simulator. Requests and
// replies are google.protobuf.Struct documents shaped like the HTTP API's
// JSON bodies.
type PlaySimulatorServer interface {
	Simulate(context.Context, *structpb.Struct) (*structpb.Struct, error)
	StreamFrames(*structpb.Struct, grpc.ServerStreamingServer[structpb.Struct]) error
}

// ServiceDesc describes the play simulator for grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*PlaySimulatorServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Simulate", Handler: simulateHandler},
	},
	Streams: []grpc.StreamDesc{
		{StreamName: "StreamFrames", Handler: streamFramesHandler, ServerStreams: true},
	},
	Metadata: "diamondsim/v1/play.proto",
}

// RegisterPlaySimulatorServer attaches srv to the registrar.
func RegisterPlaySimulatorServer(s grpc.ServiceRegistrar, srv PlaySimulatorServer) {
	s.RegisterService(&ServiceDesc, srv)
}

func simulateHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(PlaySimulatorServer).Simulate(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: simulateMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(PlaySimulatorServer).Simulate(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func streamFramesHandler(srv any, stream grpc.ServerStream) error {
	in := new(structpb.Struct)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(PlaySimulatorServer).StreamFrames(in, &grpc.GenericServerStream[structpb.Struct, structpb.Struct]{ServerStream: stream})
}

// PlaySimulatorClient is the client API of the play simulator.
type PlaySimulatorClient interface {
	Simulate(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	StreamFrames(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (grpc.ServerStreamingClient[structpb.Struct], error)
}

type playSimulatorClient struct {
	cc grpc.ClientConnInterface
}

// NewPlaySimulatorClient binds a client to the connection.
func NewPlaySimulatorClient(cc grpc.ClientConnInterface) PlaySimulatorClient {
	return &playSimulatorClient{cc: cc}
}

func (c *playSimulatorClient) Simulate(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, simulateMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *playSimulatorClient) StreamFrames(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (grpc.ServerStreamingClient[structpb.Struct], error) {
	stream, err := c.cc.NewStream(ctx, &ServiceDesc.Streams[0], streamFramesMethod, opts...)
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
