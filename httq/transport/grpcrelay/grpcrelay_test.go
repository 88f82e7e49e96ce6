package grpcrelay

import (
	"context"
	"net"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/TheusHen/HTTQ/httq/protocol"
)

func startRelay(t *testing.T, h func(context.Context, protocol.Frame)) (*Transport, func()) {
	t.Helper()
	lis := bufconn.Listen(4 << 20)
	ln := NewListener(lis)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := ln.Serve(ctx, h); err != nil {
			t.Errorf("Serve: %v", err)
		}
	}()

	dialer := func(ctx context.Context, s string) (net.Conn, error) { return lis.DialContext(ctx) }
	tr := NewTransport(DialOptions{
		Timeout:     2 * time.Second,
		DialOptions: []grpc.DialOption{grpc.WithContextDialer(dialer)},
	})
	return tr, func() {
		_ = tr.Close()
		cancel()
		<-done
	}
}

func TestRelayDeliver(t *testing.T) {
	var mu sync.Mutex
	var got []protocol.Frame
	tr, stop := startRelay(t, func(_ context.Context, f protocol.Frame) {
		mu.Lock()
		got = append(got, f)
		mu.Unlock()
	})
	defer stop()

	in := protocol.Frame{Type: protocol.MessageTypePacket, Payload: []byte("signed packet bytes")}
	for i := 0; i < 3; i++ {
		if err := tr.Send(context.Background(), "passthrough:///bufnet", in); err != nil {
			t.Fatalf("Send: %v", err)
		}
	}

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 3 {
		t.Fatalf("expected 3 frames, got %d", len(got))
	}
	if got[0].Type != in.Type || string(got[0].Payload) != string(in.Payload) {
		t.Fatalf("frame mismatch: %+v", got[0])
	}
	if len(tr.conns) != 1 {
		t.Fatalf("expected one cached connection, got %d", len(tr.conns))
	}
}

func TestRelayLargeFrame(t *testing.T) {
	var n atomic.Int64
	tr, stop := startRelay(t, func(_ context.Context, f protocol.Frame) { n.Store(int64(len(f.Payload))) })
	defer stop()

	payload := make([]byte, protocol.MaxFramePayload)
	if err := tr.Send(context.Background(), "passthrough:///bufnet", protocol.Frame{Type: protocol.MessageTypePacketLZ4, Payload: payload}); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if n.Load() != protocol.MaxFramePayload {
		t.Fatalf("expected %d bytes, got %d", protocol.MaxFramePayload, n.Load())
	}
}

func TestRelayRejectsGarbage(t *testing.T) {
	lis := bufconn.Listen(1 << 20)
	ln := NewListener(lis)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = ln.Serve(ctx, func(context.Context, protocol.Frame) {}) }()

	dialer := func(ctx context.Context, s string) (net.Conn, error) { return lis.DialContext(ctx) }
	cc, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(dialer),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	defer cc.Close()

	_, err = NewRelayClient(cc).Deliver(context.Background(), wrapperspb.Bytes([]byte{0xff, 0, 0}))
	if status.Code(err) != codes.InvalidArgument {
		t.Fatalf("expected InvalidArgument, got %v", err)
	}
}

func TestUnimplemented(t *testing.T) {
	_, err := UnimplementedRelayServer{}.Deliver(context.Background(), nil)
	if status.Code(err) != codes.Unimplemented {
		t.Fatalf("expected Unimplemented, got %v", err)
	}
}

func TestSendAfterClose(t *testing.T) {
	tr := NewTransport(DialOptions{})
	_ = tr.Close()
	if err := tr.Send(context.Background(), "localhost:1", protocol.Frame{Type: protocol.MessageTypePacket}); err == nil {
		t.Fatalf("expected error after Close")
	}
}
