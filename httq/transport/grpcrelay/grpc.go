package grpcrelay

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// RelayServer is the server API for the Relay gRPC service.
//
// The service uses protobuf well-known wrapper types, so there is no
// generated code:
//
//	service Relay {
//	  rpc Deliver(google.protobuf.BytesValue) returns (google.protobuf.BoolValue);
//	}
type RelayServer interface {
	Deliver(context.Context, *wrapperspb.BytesValue) (*wrapperspb.BoolValue, error)
}

// UnimplementedRelayServer can be embedded to have forward compatible implementations.
type UnimplementedRelayServer struct{}

func (UnimplementedRelayServer) Deliver(context.Context, *wrapperspb.BytesValue) (*wrapperspb.BoolValue, error) {
	return nil, status.Error(codes.Unimplemented, "method Deliver not implemented")
}

// RegisterRelayServer registers the Relay service on a gRPC server.
func RegisterRelayServer(s grpc.ServiceRegistrar, srv RelayServer) {
	s.RegisterService(&Relay_ServiceDesc, srv)
}

// RelayClient is the client API for the Relay gRPC service.
type RelayClient interface {
	Deliver(ctx context.Context, in *wrapperspb.BytesValue, opts ...grpc.CallOption) (*wrapperspb.BoolValue, error)
}

type relayClient struct{ cc grpc.ClientConnInterface }

func NewRelayClient(cc grpc.ClientConnInterface) RelayClient { return &relayClient{cc: cc} }

const deliverMethod = "/httq.relay.v1.Relay/Deliver"

func (c *relayClient) Deliver(ctx context.Context, in *wrapperspb.BytesValue, opts ...grpc.CallOption) (*wrapperspb.BoolValue, error) {
	out := new(wrapperspb.BoolValue)
	err := c.cc.Invoke(ctx, deliverMethod, in, out, opts...)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func _Relay_Deliver_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(wrapperspb.BytesValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(RelayServer).Deliver(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: deliverMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(RelayServer).Deliver(ctx, req.(*wrapperspb.BytesValue))
	}
	return interceptor(ctx, in, info, handler)
}

// Relay_ServiceDesc is the grpc.ServiceDesc for Relay service.
var Relay_ServiceDesc = grpc.ServiceDesc{
	ServiceName: "httq.relay.v1.Relay",
	HandlerType: (*RelayServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Deliver", Handler: _Relay_Deliver_Handler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "relay.proto",
}
