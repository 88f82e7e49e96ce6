// Package signature signs packets on behalf of their origin and verifies
// them at every hop. Key material enters only through the Signer, Verifier
// and KeyLookup capabilities.
package signature

import (
	"errors"
	"fmt"

	"github.com/TheusHen/HTTQ/httq/identity"
	"github.com/TheusHen/HTTQ/httq/packet"
)

var ErrSigning = errors.New("signature: signing failed")

// Signer produces signatures with the origin's private key.
type Signer interface {
	Sign(message []byte) ([]byte, error)
}

// Verifier checks a signature against a raw public key.
type Verifier interface {
	Verify(message, sig, publicKey []byte) bool
}

// KeyLookup resolves the public key an identity was derived from.
type KeyLookup interface {
	PublicKey(id identity.QIK) ([]byte, bool)
}

// Sign signs the packet's signing bytes and stores the result in its
// Signature field, replacing any previous signature. p is modified in place
// and returned.
func Sign(p *packet.Packet, s Signer) (*packet.Packet, error) {
	sig, err := s.Sign(p.SigningBytes())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSigning, err)
	}
	p.Signature = sig
	return p, nil
}

// Verify reports whether p carries a valid signature by its origin. It is
// false when the packet is unsigned, when the origin's key is unknown, when
// the key found does not derive to the origin QIK, or when the signature does
// not cover the packet's current signing bytes.
func Verify(p *packet.Packet, v Verifier, keys KeyLookup) bool {
	if !p.Signed() {
		return false
	}
	pub, ok := keys.PublicKey(p.Origin)
	if !ok {
		return false
	}
	if identity.Derive(pub) != p.Origin {
		return false
	}
	return v.Verify(p.SigningBytes(), p.Signature, pub)
}
