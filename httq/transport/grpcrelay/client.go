package grpcrelay

import (
	"context"
	"fmt"
	"sync"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/TheusHen/HTTQ/httq/protocol"
	"github.com/TheusHen/HTTQ/httq/transport"
)

// maxMsgBytes fits the largest frame plus protobuf framing.
const maxMsgBytes = protocol.MaxFramePayload + 1024

var _ transport.Sender = (*Transport)(nil)

type DialOptions struct {
	// Timeout applies per Deliver call when non-zero.
	Timeout time.Duration

	// Extra options appended to the defaults, e.g. a context dialer.
	DialOptions []grpc.DialOption
}

// Transport delivers frames over one cached client connection per address.
type Transport struct {
	opts   DialOptions
	mu     sync.Mutex
	conns  map[string]*grpc.ClientConn
	closed bool
}

func NewTransport(opts DialOptions) *Transport {
	return &Transport{opts: opts, conns: map[string]*grpc.ClientConn{}}
}

func (t *Transport) client(addr string) (RelayClient, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil, transport.ErrClosed
	}
	if cc, ok := t.conns[addr]; ok {
		return NewRelayClient(cc), nil
	}
	dialOpts := []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(
			grpc.MaxCallRecvMsgSize(maxMsgBytes),
			grpc.MaxCallSendMsgSize(maxMsgBytes),
		),
	}
	dialOpts = append(dialOpts, t.opts.DialOptions...)
	cc, err := grpc.NewClient(addr, dialOpts...)
	if err != nil {
		return nil, err
	}
	t.conns[addr] = cc
	return NewRelayClient(cc), nil
}

func (t *Transport) Send(ctx context.Context, addr string, f protocol.Frame) error {
	b, err := f.Marshal()
	if err != nil {
		return err
	}
	c, err := t.client(addr)
	if err != nil {
		return fmt.Errorf("grpcrelay: dial %s: %w", addr, err)
	}
	if t.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.opts.Timeout)
		defer cancel()
	}
	reply, err := c.Deliver(ctx, wrapperspb.Bytes(b))
	if err != nil {
		return fmt.Errorf("grpcrelay: deliver to %s: %w", addr, err)
	}
	if !reply.GetValue() {
		return fmt.Errorf("grpcrelay: %s refused frame", addr)
	}
	return nil
}

func (t *Transport) Close() error {
	t.mu.Lock()
	conns := t.conns
	t.conns = map[string]*grpc.ClientConn{}
	t.closed = true
	t.mu.Unlock()
	var first error
	for _, cc := range conns {
		if err := cc.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
