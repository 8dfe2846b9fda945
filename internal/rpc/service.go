package rpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "corridorwatch.v1.Corridorwatch"

// CorridorwatchServer is the server API for the Corridorwatch service.
type CorridorwatchServer interface {
	EvaluateEnvelope(context.Context, *structpb.Struct) (*structpb.Struct, error)
	CheckAction(context.Context, *structpb.Struct) (*structpb.Struct, error)
	EvaluateAccess(context.Context, *structpb.Struct) (*structpb.Struct, error)
	UpsertCorridor(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetCorridor(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListCorridors(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// UnimplementedCorridorwatchServer can be embedded for forward compatibility.
type UnimplementedCorridorwatchServer struct{}

func unimplemented(method string) error {
	return status.Errorf(codes.Unimplemented, "method %s not implemented", method)
}

func (UnimplementedCorridorwatchServer) EvaluateEnvelope(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, unimplemented("EvaluateEnvelope")
}
func (UnimplementedCorridorwatchServer) CheckAction(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, unimplemented("CheckAction")
}
func (UnimplementedCorridorwatchServer) EvaluateAccess(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, unimplemented("EvaluateAccess")
}
func (UnimplementedCorridorwatchServer) UpsertCorridor(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, unimplemented("UpsertCorridor")
}
func (UnimplementedCorridorwatchServer) GetCorridor(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, unimplemented("GetCorridor")
}
func (UnimplementedCorridorwatchServer) ListCorridors(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, unimplemented("ListCorridors")
}

// RegisterCorridorwatchServer registers the service on a gRPC server.
func RegisterCorridorwatchServer(s grpc.ServiceRegistrar, srv CorridorwatchServer) {
	s.RegisterService(&Corridorwatch_ServiceDesc, srv)
}

type call func(CorridorwatchServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func handler(method string, fn call) grpc.MethodHandler {
	full := "/" + ServiceName + "/" + method
	return func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return fn(srv.(CorridorwatchServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: full}
		h := func(ctx context.Context, req interface{}) (interface{}, error) {
			return fn(srv.(CorridorwatchServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, h)
	}
}

// Corridorwatch_ServiceDesc is the grpc.ServiceDesc for the Corridorwatch service.
var Corridorwatch_ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*CorridorwatchServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "EvaluateEnvelope", Handler: handler("EvaluateEnvelope", CorridorwatchServer.EvaluateEnvelope)},
		{MethodName: "CheckAction", Handler: handler("CheckAction", CorridorwatchServer.CheckAction)},
		{MethodName: "EvaluateAccess", Handler: handler("EvaluateAccess", CorridorwatchServer.EvaluateAccess)},
		{MethodName: "UpsertCorridor", Handler: handler("UpsertCorridor", CorridorwatchServer.UpsertCorridor)},
		{MethodName: "GetCorridor", Handler: handler("GetCorridor", CorridorwatchServer.GetCorridor)},
		{MethodName: "ListCorridors", Handler: handler("ListCorridors", CorridorwatchServer.ListCorridors)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "corridorwatch/v1/corridorwatch.proto",
}

// CorridorwatchClient is the client API for the Corridorwatch service.
type CorridorwatchClient interface {
	EvaluateEnvelope(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	CheckAction(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	EvaluateAccess(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	UpsertCorridor(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	GetCorridor(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	ListCorridors(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
}

type corridorwatchClient struct{ cc grpc.ClientConnInterface }

// NewCorridorwatchClient wraps a connection.
func NewCorridorwatchClient(cc grpc.ClientConnInterface) CorridorwatchClient {
	return &corridorwatchClient{cc: cc}
}

func (c *corridorwatchClient) invoke(ctx context.Context, method string, in *structpb.Struct, opts []grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, "/"+ServiceName+"/"+method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *corridorwatchClient) EvaluateEnvelope(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, "EvaluateEnvelope", in, opts)
}
func (c *corridorwatchClient) CheckAction(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, "CheckAction", in, opts)
}
func (c *corridorwatchClient) EvaluateAccess(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, "EvaluateAccess", in, opts)
}
func (c *corridorwatchClient) UpsertCorridor(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, "UpsertCorridor", in, opts)
}
func (c *corridorwatchClient) GetCorridor(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, "GetCorridor", in, opts)
}
func (c *corridorwatchClient) ListCorridors(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, "ListCorridors", in, opts)
}
