package quic

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/TheusHen/HTTQ/httq/protocol"
)

type collector struct {
	mu     sync.Mutex
	frames []protocol.Frame
	notify chan struct{}
}

func newCollector() *collector { return &collector{notify: make(chan struct{}, 1024)} }

func (c *collector) handle(_ context.Context, f protocol.Frame) {
	c.mu.Lock()
	c.frames = append(c.frames, f)
	c.mu.Unlock()
	c.notify <- struct{}{}
}

func (c *collector) wait(t *testing.T, n int) []protocol.Frame {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for i := 0; i < n; i++ {
		select {
		case <-c.notify:
		case <-deadline:
			t.Fatalf("timed out after %d of %d frames", i, n)
		}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]protocol.Frame(nil), c.frames...)
}

func TestSendAndServe(t *testing.T) {
	ln, err := Listen("127.0.0.1:0", nil)
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer ln.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	c := newCollector()
	go func() { _ = ln.Serve(ctx, c.handle) }()

	tr := NewTransport()
	defer tr.Close()

	const n = 20
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			f := protocol.Frame{Type: protocol.MessageTypePacket, Payload: []byte(fmt.Sprintf("frame-%02d", i))}
			if err := tr.Send(ctx, ln.Addr(), f); err != nil {
				t.Errorf("Send: %v", err)
			}
		}(i)
	}
	wg.Wait()

	frames := c.wait(t, n)
	seen := map[string]bool{}
	for _, f := range frames {
		seen[string(f.Payload)] = true
	}
	if len(seen) != n {
		t.Fatalf("expected %d distinct frames, got %d", n, len(seen))
	}

	tr.mu.Lock()
	conns := len(tr.conns)
	tr.mu.Unlock()
	if conns != 1 {
		t.Fatalf("expected one cached connection, got %d", conns)
	}
}

func TestSendLargeFrame(t *testing.T) {
	ln, err := Listen("127.0.0.1:0", nil)
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer ln.Close()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	c := newCollector()
	go func() { _ = ln.Serve(ctx, c.handle) }()

	tr := NewTransport()
	defer tr.Close()
	payload := bytes.Repeat([]byte{0x5a}, 200*1024)
	if err := tr.Send(ctx, ln.Addr(), protocol.Frame{Type: protocol.MessageTypePacketLZ4, Payload: payload}); err != nil {
		t.Fatalf("Send: %v", err)
	}
	frames := c.wait(t, 1)
	if frames[0].Type != protocol.MessageTypePacketLZ4 || !bytes.Equal(frames[0].Payload, payload) {
		t.Fatalf("frame corrupted in transit")
	}
}

func TestSendInvalidFrame(t *testing.T) {
	tr := NewTransport()
	defer tr.Close()
	ln, err := Listen("127.0.0.1:0", nil)
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer ln.Close()
	if err := tr.Send(context.Background(), ln.Addr(), protocol.Frame{}); err != protocol.ErrInvalidType {
		t.Fatalf("expected ErrInvalidType, got %v", err)
	}
}

func TestSendAfterClose(t *testing.T) {
	tr := NewTransport()
	_ = tr.Close()
	err := tr.Send(context.Background(), "127.0.0.1:1", protocol.Frame{Type: protocol.MessageTypePacket})
	if err == nil {
		t.Fatalf("expected error after Close")
	}
}
