// Package rpc exposes the counselor engine over gRPC. Messages are
// google.protobuf.Struct values carrying the same JSON shapes as the HTTP API,
// so the service needs no generated code beyond the well-known types.
package rpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully-qualified gRPC service name.
const ServiceName = "mshauri.counselor.v1.Counselor"

// Full method names.
const (
	MethodAnalyze            = "/" + ServiceName + "/Analyze"
	MethodChat               = "/" + ServiceName + "/Chat"
	MethodEmergencyResources = "/" + ServiceName + "/EmergencyResources"
	MethodAssess             = "/" + ServiceName + "/Assess"
)

// CounselorServer is the server-side contract for ServiceDesc.
type CounselorServer interface {
	Analyze(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Chat(context.Context, *structpb.Struct) (*structpb.Struct, error)
	EmergencyResources(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Assess(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// ServiceDesc describes the Counselor service for grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*CounselorServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Analyze", Handler: unaryHandler(MethodAnalyze, CounselorServer.Analyze)},
		{MethodName: "Chat", Handler: unaryHandler(MethodChat, CounselorServer.Chat)},
		{MethodName: "EmergencyResources", Handler: unaryHandler(MethodEmergencyResources, CounselorServer.EmergencyResources)},
		{MethodName: "Assess", Handler: unaryHandler(MethodAssess, CounselorServer.Assess)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "mshauri/counselor/v1/counselor.proto",
}

type unaryMethod func(CounselorServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unaryHandler(fullMethod string, call unaryMethod) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(CounselorServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(CounselorServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// ─── CLIENT ───────────────────────────────────────────────────────────────────

// Client calls the Counselor service over an existing connection.
type Client struct {
	cc grpc.ClientConnInterface
}

// NewClient wraps cc.
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

func (c *Client) invoke(ctx context.Context, method string, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	if in == nil {
		in = &structpb.Struct{}
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Analyze(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, MethodAnalyze, in, opts...)
}

func (c *Client) Chat(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, MethodChat, in, opts...)
}

func (c *Client) EmergencyResources(ctx context.Context, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, MethodEmergencyResources, nil, opts...)
}

func (c *Client) Assess(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, MethodAssess, in, opts...)
}
