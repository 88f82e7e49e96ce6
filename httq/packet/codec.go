package packet

import (
	"bytes"
	"encoding/base64"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/TheusHen/HTTQ/httq/identity"
)

// wirePacket is the msgpack form. Field order is the signing order, with
// the unsigned fields appended.
type wirePacket struct {
	Version     string `msgpack:"version"`
	Destination string `msgpack:"destination"`
	Origin      string `msgpack:"origin"`
	Payload     string `msgpack:"payload"`
	TTL         uint8  `msgpack:"ttl"`
	Signature   string `msgpack:"signature"`
	Hops        uint8  `msgpack:"hops"`
}

// decodedPacket tracks which fields were present on the wire.
type decodedPacket struct {
	Version     *string `msgpack:"version"`
	Destination *string `msgpack:"destination"`
	Origin      *string `msgpack:"origin"`
	Payload     *string `msgpack:"payload"`
	TTL         *int64  `msgpack:"ttl"`
	Signature   *string `msgpack:"signature"`
	Hops        *int64  `msgpack:"hops"`
}

// Serialize encodes p in its canonical wire form.
func Serialize(p *Packet) ([]byte, error) {
	w := wirePacket{
		Version:     p.Version,
		Destination: p.Destination.Digest(),
		Origin:      p.Origin.Digest(),
		Payload:     p.Payload,
		TTL:         p.TTL,
		Signature:   base64.StdEncoding.EncodeToString(p.Signature),
		Hops:        p.Hops,
	}
	return msgpack.Marshal(&w)
}

// Deserialize decodes b. Every failure wraps ErrMalformed: missing required
// fields, unknown fields, an unrecognized version, digests that are not 64
// lowercase hex characters, TTL outside [0, 255], a signed budget above
// MaxTTL, invalid base64, or bytes that are not in canonical form.
func Deserialize(b []byte) (*Packet, error) {
	var d decodedPacket
	dec := msgpack.NewDecoder(bytes.NewReader(b))
	dec.DisallowUnknownFields(true)
	if err := dec.Decode(&d); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}

	switch {
	case d.Version == nil:
		return nil, fmt.Errorf("%w: missing version", ErrMalformed)
	case d.Destination == nil:
		return nil, fmt.Errorf("%w: missing destination", ErrMalformed)
	case d.Origin == nil:
		return nil, fmt.Errorf("%w: missing origin", ErrMalformed)
	case d.Payload == nil:
		return nil, fmt.Errorf("%w: missing payload", ErrMalformed)
	case d.TTL == nil:
		return nil, fmt.Errorf("%w: missing ttl", ErrMalformed)
	}

	if *d.Version != Version {
		return nil, fmt.Errorf("%w: unrecognized version %q", ErrMalformed, *d.Version)
	}
	dst, err := identity.ParseURI(*d.Destination)
	if err != nil || dst.Digest() != *d.Destination {
		return nil, fmt.Errorf("%w: invalid destination", ErrMalformed)
	}
	origin, err := identity.ParseURI(*d.Origin)
	if err != nil || origin.Digest() != *d.Origin {
		return nil, fmt.Errorf("%w: invalid origin", ErrMalformed)
	}
	if *d.TTL < 0 || *d.TTL > MaxTTL {
		return nil, fmt.Errorf("%w: ttl %d out of range", ErrMalformed, *d.TTL)
	}
	var hops int64
	if d.Hops != nil {
		hops = *d.Hops
	}
	if hops < 0 || *d.TTL+hops > MaxTTL {
		return nil, fmt.Errorf("%w: hop count %d out of range", ErrMalformed, hops)
	}
	if len(*d.Payload) > MaxPayloadSize {
		return nil, fmt.Errorf("%w: payload of %d bytes", ErrMalformed, len(*d.Payload))
	}
	if _, err := base64.StdEncoding.DecodeString(*d.Payload); err != nil {
		return nil, fmt.Errorf("%w: payload: %w", ErrMalformed, err)
	}

	var sig []byte
	if d.Signature != nil && *d.Signature != "" {
		sig, err = base64.StdEncoding.DecodeString(*d.Signature)
		if err != nil {
			return nil, fmt.Errorf("%w: signature: %w", ErrMalformed, err)
		}
	}

	p := &Packet{
		Version:     *d.Version,
		Destination: dst,
		Origin:      origin,
		Payload:     *d.Payload,
		Signature:   sig,
		TTL:         uint8(*d.TTL),
		Hops:        uint8(hops),
	}

	// Re-encoding must reproduce the input exactly.
	canonical, err := Serialize(p)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	if !bytes.Equal(canonical, b) {
		return nil, fmt.Errorf("%w: non-canonical encoding", ErrMalformed)
	}
	return p, nil
}
