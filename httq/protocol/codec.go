package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

const (
	// MaxFramePayload limits a single protocol frame payload.
	MaxFramePayload = 1 << 20 // 1 MiB

	headerSize = 5
)

var (
	ErrFrameTooLarge = errors.New("protocol frame payload too large")
	ErrInvalidType   = errors.New("protocol invalid message type")
	ErrTruncated     = errors.New("protocol truncated frame")
)

// Frame is the basic wire container between Orbitals.
// Format:
//
//	1 byte: type
//	4 bytes: payload length (big endian)
//	N bytes: payload
type Frame struct {
	Type    MessageType
	Payload []byte
}

// Marshal returns the encoded frame.
func (f Frame) Marshal() ([]byte, error) {
	if !f.Type.Valid() {
		return nil, ErrInvalidType
	}
	if len(f.Payload) > MaxFramePayload {
		return nil, ErrFrameTooLarge
	}
	out := make([]byte, headerSize+len(f.Payload))
	out[0] = byte(f.Type)
	binary.BigEndian.PutUint32(out[1:headerSize], uint32(len(f.Payload)))
	copy(out[headerSize:], f.Payload)
	return out, nil
}

// Unmarshal decodes exactly one frame occupying all of b.
func Unmarshal(b []byte) (Frame, error) {
	if len(b) < headerSize {
		return Frame{}, ErrTruncated
	}
	mt := MessageType(b[0])
	if !mt.Valid() {
		return Frame{}, ErrInvalidType
	}
	n := binary.BigEndian.Uint32(b[1:headerSize])
	if n > MaxFramePayload {
		return Frame{}, fmt.Errorf("%w: %d", ErrFrameTooLarge, n)
	}
	if uint64(len(b)-headerSize) != uint64(n) {
		return Frame{}, ErrTruncated
	}
	return Frame{Type: mt, Payload: append([]byte(nil), b[headerSize:]...)}, nil
}

// WriteFrame writes f to w in a single Write call.
func WriteFrame(w io.Writer, f Frame) error {
	b, err := f.Marshal()
	if err != nil {
		return err
	}
	_, err = w.Write(b)
	return err
}

// ReadFrame reads one frame. It consumes exactly the bytes of that frame, so
// it can be called repeatedly on a stream.
func ReadFrame(r io.Reader) (Frame, error) {
	var hdr [headerSize]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return Frame{}, err
	}
	mt := MessageType(hdr[0])
	if !mt.Valid() {
		return Frame{}, ErrInvalidType
	}
	payloadLen := binary.BigEndian.Uint32(hdr[1:])
	if payloadLen > MaxFramePayload {
		return Frame{}, fmt.Errorf("%w: %d", ErrFrameTooLarge, payloadLen)
	}
	payload := make([]byte, payloadLen)
	if _, err := io.ReadFull(r, payload); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return Frame{}, ErrTruncated
		}
		return Frame{}, err
	}
	return Frame{Type: mt, Payload: payload}, nil
}
