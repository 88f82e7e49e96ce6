// Package packet implements the HTTQ wire packet: construction, canonical
// serialization and the byte range covered by the origin's signature.
package packet

import (
	"bytes"
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/TheusHen/HTTQ/httq/identity"
)

const (
	// Version is the only protocol version this codec accepts.
	Version = "1.0"
	// DefaultTTL is the hop budget given to freshly built packets.
	DefaultTTL = 64
	// MaxTTL is the largest hop budget representable on the wire.
	MaxTTL = 255
	// MaxPayloadSize limits the transport-encoded payload length to what a
	// u16 length prefix in SigningBytes can describe.
	MaxPayloadSize = math.MaxUint16
)

var (
	ErrMalformed       = errors.New("packet: malformed")
	ErrEncryption      = errors.New("packet: encryption failed")
	ErrDecryption      = errors.New("packet: decryption failed")
	ErrPayloadTooLarge = errors.New("packet: payload too large")
)

// Packet is the unit of transfer between identities.
//
// TTL is the remaining hop budget. Hops counts the relays already traversed;
// every relay hop moves exactly one unit from TTL to Hops, so TTL+Hops (the
// budget the origin signed) is constant along the path. The split between
// TTL and Hops is not signed, so a malicious relay can refill TTL by zeroing
// Hops without breaking the signature.
type Packet struct {
	Version     string
	Destination identity.QIK
	Origin      identity.QIK
	// Payload is the ciphertext in standard base64.
	Payload   string
	Signature []byte
	TTL       uint8
	Hops      uint8
}

// SignedTTL returns the hop budget covered by the signature.
func (p *Packet) SignedTTL() int { return int(p.TTL) + int(p.Hops) }

// Signed reports whether a signature is present. It says nothing about
// whether the signature is valid.
func (p *Packet) Signed() bool { return len(p.Signature) > 0 }

// SigningBytes returns the canonical byte form of every field the signature
// covers: version, destination, origin and payload as u16 length-prefixed
// strings, followed by the signed TTL as a big-endian u16.
func (p *Packet) SigningBytes() []byte {
	var b bytes.Buffer
	for _, s := range []string{p.Version, p.Destination.Digest(), p.Origin.Digest(), p.Payload} {
		var l [2]byte
		binary.BigEndian.PutUint16(l[:], uint16(len(s)))
		b.Write(l[:])
		b.WriteString(s)
	}
	var ttl [2]byte
	binary.BigEndian.PutUint16(ttl[:], uint16(p.SignedTTL()))
	b.Write(ttl[:])
	return b.Bytes()
}

// ID identifies a packet independently of how far it has travelled.
func (p *Packet) ID() [32]byte {
	h := sha256.New()
	h.Write(p.SigningBytes())
	h.Write(p.Signature)
	var id [32]byte
	copy(id[:], h.Sum(nil))
	return id
}

// Ciphertext decodes the transport-encoded payload.
func (p *Packet) Ciphertext() ([]byte, error) {
	b, err := base64.StdEncoding.DecodeString(p.Payload)
	if err != nil {
		return nil, fmt.Errorf("%w: payload: %w", ErrMalformed, err)
	}
	return b, nil
}

// DecrementTTL moves one unit of budget from TTL to Hops. It returns false,
// leaving the packet untouched, when the budget is exhausted.
func (p *Packet) DecrementTTL() bool {
	if p.TTL == 0 {
		return false
	}
	p.TTL--
	p.Hops++
	return true
}

// Clone returns a deep copy.
func (p *Packet) Clone() *Packet {
	c := *p
	c.Signature = append([]byte(nil), p.Signature...)
	return &c
}

// Equal reports whether both packets carry the same field values.
func (p *Packet) Equal(o *Packet) bool {
	if p == nil || o == nil {
		return p == o
	}
	return p.Version == o.Version &&
		p.Destination == o.Destination &&
		p.Origin == o.Origin &&
		p.Payload == o.Payload &&
		bytes.Equal(p.Signature, o.Signature) &&
		p.TTL == o.TTL &&
		p.Hops == o.Hops
}
