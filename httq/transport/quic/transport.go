package quic

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"

	q "github.com/quic-go/quic-go"

	"github.com/TheusHen/HTTQ/httq/logging"
	"github.com/TheusHen/HTTQ/httq/protocol"
	"github.com/TheusHen/HTTQ/httq/transport"
)

// StreamsPerConn bounds the send streams kept open per relay connection.
const StreamsPerConn = 4

var (
	_ transport.Sender = (*Transport)(nil)
	_ transport.Server = (*Listener)(nil)
)

type Listener struct {
	inner  *q.Listener
	logger *slog.Logger
	closed atomic.Bool
}

func Listen(addr string, logger *slog.Logger) (*Listener, error) {
	tlsConf, err := NewServerTLSConfig()
	if err != nil {
		return nil, err
	}
	ln, err := q.ListenAddr(addr, tlsConf, &q.Config{})
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &Listener{inner: ln, logger: logger}, nil
}

func (l *Listener) Accept(ctx context.Context) (q.Connection, error) {
	return l.inner.Accept(ctx)
}

func (l *Listener) NetAddr() net.Addr { return l.inner.Addr() }

func (l *Listener) Addr() string {
	if l.inner == nil {
		return ""
	}
	return l.inner.Addr().String()
}

func (l *Listener) Close() error {
	l.closed.Store(true)
	return l.inner.Close()
}

// Serve accepts connections and streams, and calls h for every frame read.
// It returns when ctx is done or the listener is closed.
func (l *Listener) Serve(ctx context.Context, h transport.Handler) error {
	var wg sync.WaitGroup
	defer wg.Wait()
	for {
		conn, err := l.Accept(ctx)
		if err != nil {
			if ctx.Err() != nil || l.closed.Load() {
				return nil
			}
			return err
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			l.serveConn(ctx, conn, h)
		}()
	}
}

func (l *Listener) serveConn(ctx context.Context, conn q.Connection, h transport.Handler) {
	var wg sync.WaitGroup
	defer wg.Wait()
	for {
		stream, err := conn.AcceptStream(ctx)
		if err != nil {
			return
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			l.serveStream(ctx, conn, stream, h)
		}()
	}
}

func (l *Listener) serveStream(ctx context.Context, conn q.Connection, stream q.Stream, h transport.Handler) {
	defer stream.CancelRead(0)
	for {
		f, err := protocol.ReadFrame(stream)
		if err != nil {
			if !errors.Is(err, io.EOF) && ctx.Err() == nil {
				l.logger.Warn("relay stream failed", "remote", conn.RemoteAddr().String(), "error", err)
			}
			return
		}
		h(ctx, f)
	}
}

type peerConn struct {
	conn q.Connection
	pool *streamPool
}

// Transport sends frames over cached QUIC connections, one per address.
type Transport struct {
	mu     sync.Mutex
	conns  map[string]*peerConn
	closed bool
}

func NewTransport() *Transport {
	return &Transport{conns: map[string]*peerConn{}}
}

func Dial(ctx context.Context, addr string) (q.Connection, error) {
	tlsConf, err := NewClientTLSConfig()
	if err != nil {
		return nil, err
	}
	return q.DialAddr(ctx, addr, tlsConf, &q.Config{})
}

func (t *Transport) conn(ctx context.Context, addr string) (*peerConn, error) {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil, transport.ErrClosed
	}
	if pc, ok := t.conns[addr]; ok {
		t.mu.Unlock()
		return pc, nil
	}
	t.mu.Unlock()

	conn, err := Dial(ctx, addr)
	if err != nil {
		return nil, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		_ = conn.CloseWithError(0, "closed")
		return nil, transport.ErrClosed
	}
	if pc, ok := t.conns[addr]; ok {
		// Lost a dial race.
		_ = conn.CloseWithError(0, "duplicate")
		return pc, nil
	}
	pc := &peerConn{conn: conn, pool: newStreamPool(conn, StreamsPerConn)}
	t.conns[addr] = pc
	return pc, nil
}

func (t *Transport) drop(addr string, pc *peerConn) {
	t.mu.Lock()
	if t.conns[addr] == pc {
		delete(t.conns, addr)
	}
	t.mu.Unlock()
	pc.pool.close()
	_ = pc.conn.CloseWithError(0, "reset")
}

// Send writes f to addr. A failure on a cached connection is retried once
// on a fresh connection.
func (t *Transport) Send(ctx context.Context, addr string, f protocol.Frame) error {
	b, err := f.Marshal()
	if err != nil {
		return err
	}
	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		pc, err := t.conn(ctx, addr)
		if err != nil {
			return fmt.Errorf("quic: dial %s: %w", addr, err)
		}
		if lastErr = t.sendOn(ctx, pc, b); lastErr == nil {
			return nil
		}
		t.drop(addr, pc)
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	return fmt.Errorf("quic: send to %s: %w", addr, lastErr)
}

func (t *Transport) sendOn(ctx context.Context, pc *peerConn, b []byte) error {
	s, err := pc.pool.acquire(ctx)
	if err != nil {
		return err
	}
	if _, err := s.Write(b); err != nil {
		pc.pool.discard(s)
		return err
	}
	pc.pool.release(s)
	return nil
}

// Close closes every cached connection.
func (t *Transport) Close() error {
	t.mu.Lock()
	conns := t.conns
	t.conns = map[string]*peerConn{}
	t.closed = true
	t.mu.Unlock()
	for _, pc := range conns {
		pc.pool.close()
		_ = pc.conn.CloseWithError(0, "bye")
	}
	return nil
}
