package quic

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	q "github.com/quic-go/quic-go"
)

var (
	ErrPoolClosed = errors.New("quic: stream pool closed")
)

// streamOpener is the part of a connection the pool needs.
type streamOpener interface {
	OpenStreamSync(ctx context.Context) (q.Stream, error)
}

// streamPool keeps up to maxSize send streams open on one connection.
// A stream carries any number of frames back to back.
type streamPool struct {
	opener  streamOpener
	maxSize int
	streams chan q.Stream
	mu      sync.Mutex
	closed  atomic.Bool
	created atomic.Int32
}

func newStreamPool(opener streamOpener, maxSize int) *streamPool {
	if maxSize <= 0 {
		maxSize = 4
	}
	return &streamPool{
		opener:  opener,
		maxSize: maxSize,
		streams: make(chan q.Stream, maxSize),
	}
}

// acquire gets a stream from the pool or opens a new one.
func (p *streamPool) acquire(ctx context.Context) (q.Stream, error) {
	if p.closed.Load() {
		return nil, ErrPoolClosed
	}

	select {
	case s := <-p.streams:
		return s, nil
	default:
	}

	if int(p.created.Load()) < p.maxSize {
		p.mu.Lock()
		if int(p.created.Load()) < p.maxSize {
			p.created.Add(1)
			p.mu.Unlock()
			s, err := p.opener.OpenStreamSync(ctx)
			if err != nil {
				p.created.Add(-1)
				return nil, err
			}
			return s, nil
		}
		p.mu.Unlock()
	}

	select {
	case s := <-p.streams:
		return s, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// release returns a healthy stream for reuse.
func (p *streamPool) release(s q.Stream) {
	if p.closed.Load() {
		_ = s.Close()
		return
	}
	select {
	case p.streams <- s:
	default:
		_ = s.Close()
		p.created.Add(-1)
	}
}

// discard drops a stream that failed.
func (p *streamPool) discard(s q.Stream) {
	s.CancelWrite(0)
	p.created.Add(-1)
}

func (p *streamPool) close() {
	if p.closed.Swap(true) {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	for {
		select {
		case s := <-p.streams:
			_ = s.Close()
		default:
			return
		}
	}
}
