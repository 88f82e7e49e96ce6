// Package transport defines the boundary between an Orbital and the links
// that physically move frames between relays. Implementations live in the
// quic and grpcrelay subpackages.
package transport

import (
	"context"
	"errors"

	"github.com/TheusHen/HTTQ/httq/protocol"
)

var ErrClosed = errors.New("transport: closed")

// Handler consumes one received frame. It must not retain f.Payload after
// returning unless it copies it.
type Handler func(ctx context.Context, f protocol.Frame)

// Sender delivers frames to relay addresses.
type Sender interface {
	Send(ctx context.Context, addr string, f protocol.Frame) error
	Close() error
}

// Server receives frames until ctx is done or Close is called.
type Server interface {
	Serve(ctx context.Context, h Handler) error
	Addr() string
	Close() error
}
