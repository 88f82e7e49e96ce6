// Package grpcrelay carries relay frames over gRPC, for deployments where
// UDP is unavailable or an HTTP/2 load balancer sits in front of Orbitals.
package grpcrelay

import (
	"context"
	"net"
	"sync"
	"sync/atomic"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/TheusHen/HTTQ/httq/protocol"
	"github.com/TheusHen/HTTQ/httq/transport"
)

// Server exposes a frame handler over the Relay service.
type Server struct {
	UnimplementedRelayServer
	Handler transport.Handler
}

func (s *Server) Deliver(ctx context.Context, in *wrapperspb.BytesValue) (*wrapperspb.BoolValue, error) {
	f, err := protocol.Unmarshal(in.GetValue())
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	if s.Handler == nil {
		return nil, status.Error(codes.Unavailable, "relay not serving")
	}
	s.Handler(ctx, f)
	return wrapperspb.Bool(true), nil
}

var _ transport.Server = (*Listener)(nil)

// Listener serves the Relay service on a network listener.
type Listener struct {
	lis    net.Listener
	srv    *grpc.Server
	relay  *Server
	once   sync.Once
	closed atomic.Bool
}

func Listen(addr string) (*Listener, error) {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	return NewListener(lis), nil
}

// NewListener serves on an existing listener, bufconn in tests.
func NewListener(lis net.Listener) *Listener {
	srv := grpc.NewServer(grpc.MaxRecvMsgSize(maxMsgBytes))
	relay := &Server{}
	RegisterRelayServer(srv, relay)
	return &Listener{lis: lis, srv: srv, relay: relay}
}

func (l *Listener) Addr() string { return l.lis.Addr().String() }

// Serve blocks until ctx is done or Close is called.
func (l *Listener) Serve(ctx context.Context, h transport.Handler) error {
	l.relay.Handler = h
	stop := context.AfterFunc(ctx, func() { _ = l.Close() })
	defer stop()
	err := l.srv.Serve(l.lis)
	if l.closed.Load() || ctx.Err() != nil {
		return nil
	}
	return err
}

func (l *Listener) Close() error {
	l.once.Do(func() {
		l.closed.Store(true)
		l.srv.GracefulStop()
	})
	return nil
}
