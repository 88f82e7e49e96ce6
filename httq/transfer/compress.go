package transfer

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/pierrec/lz4/v4"

	"github.com/TheusHen/HTTQ/httq/protocol"
)

var (
	ErrCompressionFailed   = errors.New("transfer: compression failed")
	ErrDecompressionFailed = errors.New("transfer: decompression failed")
	ErrNotPacketFrame      = errors.New("transfer: frame does not carry a packet")
)

// CompressionLevel controls the speed/ratio tradeoff.
type CompressionLevel int

const (
	CompressionOff     CompressionLevel = iota - 1
	CompressionFast                     // Fastest, lower ratio
	CompressionDefault                  // Balanced
	CompressionBest                     // Best ratio, slower
)

// ParseCompressionLevel maps "off", "fast", "default" and "best".
func ParseCompressionLevel(s string) (CompressionLevel, error) {
	switch s {
	case "off":
		return CompressionOff, nil
	case "fast":
		return CompressionFast, nil
	case "", "default":
		return CompressionDefault, nil
	case "best":
		return CompressionBest, nil
	}
	return 0, fmt.Errorf("transfer: unknown compression level %q", s)
}

// compressorPool reuses LZ4 writers to reduce allocations.
var compressorPool = sync.Pool{
	New: func() interface{} {
		return lz4.NewWriter(nil)
	},
}

// decompressorPool reuses LZ4 readers.
var decompressorPool = sync.Pool{
	New: func() interface{} {
		return lz4.NewReader(nil)
	},
}

// Compress compresses data into an LZ4 frame.
func Compress(data []byte, level CompressionLevel) ([]byte, error) {
	var buf bytes.Buffer
	w := compressorPool.Get().(*lz4.Writer)
	defer compressorPool.Put(w)

	w.Reset(&buf)

	switch level {
	case CompressionFast:
		_ = w.Apply(lz4.CompressionLevelOption(lz4.Fast))
	case CompressionBest:
		_ = w.Apply(lz4.CompressionLevelOption(lz4.Level9))
	default:
		_ = w.Apply(lz4.CompressionLevelOption(lz4.Level4))
	}

	if _, err := w.Write(data); err != nil {
		return nil, ErrCompressionFailed
	}
	if err := w.Close(); err != nil {
		return nil, ErrCompressionFailed
	}
	return buf.Bytes(), nil
}

// Decompress decompresses an LZ4 frame. Output beyond limit bytes is an
// error, so a small hostile frame cannot expand without bound.
func Decompress(data []byte, limit int) ([]byte, error) {
	r := decompressorPool.Get().(*lz4.Reader)
	defer decompressorPool.Put(r)

	r.Reset(bytes.NewReader(data))

	var buf bytes.Buffer
	n, err := io.Copy(&buf, io.LimitReader(r, int64(limit)+1))
	if err != nil {
		return nil, ErrDecompressionFailed
	}
	if n > int64(limit) {
		return nil, fmt.Errorf("%w: output exceeds %d bytes", ErrDecompressionFailed, limit)
	}
	return buf.Bytes(), nil
}

// EncodePacketFrame wraps a serialized packet in a relay frame. The packet
// is compressed only when that produces a smaller frame.
func EncodePacketFrame(raw []byte, level CompressionLevel) protocol.Frame {
	if level != CompressionOff {
		if c, err := Compress(raw, level); err == nil && len(c) < len(raw) {
			return protocol.Frame{Type: protocol.MessageTypePacketLZ4, Payload: c}
		}
	}
	return protocol.Frame{Type: protocol.MessageTypePacket, Payload: raw}
}

// DecodePacketFrame returns the serialized packet carried by f.
func DecodePacketFrame(f protocol.Frame) ([]byte, error) {
	switch f.Type {
	case protocol.MessageTypePacket:
		return f.Payload, nil
	case protocol.MessageTypePacketLZ4:
		return Decompress(f.Payload, protocol.MaxFramePayload)
	}
	return nil, fmt.Errorf("%w: %s", ErrNotPacketFrame, f.Type)
}
