package identity

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
)

const (
	// Scheme prefixes the display form of a QIK.
	Scheme = "httq"
	// DigestLength is the length of a derived digest in hex characters.
	DigestLength = 2 * sha256.Size
)

var ErrInvalidDigest = errors.New("identity: invalid QIK digest")

// QIK (Quantum Identity Key) addresses a peer by the digest of its public key.
// It is defined as: QIK = hex(SHA-256(PublicKey)).
//
// A QIK is an immutable value; two QIKs are equal iff their digests are equal,
// so it can be used directly as a map key. The zero value names no peer.
type QIK struct {
	digest string
}

// Derive computes the QIK of a raw public key.
func Derive(publicKey []byte) QIK {
	sum := sha256.Sum256(publicKey)
	return QIK{digest: hex.EncodeToString(sum[:])}
}

// FromDigest wraps an already computed digest verbatim, without re-hashing.
//
// The input is NOT verified: no check ties it to any public key, and its
// shape is not validated. Only use it when the provenance of the digest is
// established elsewhere, for example when it arrives alongside a verified
// signature chain. Use ParseURI for untrusted text.
func FromDigest(raw string) QIK {
	return QIK{digest: raw}
}

// ParseURI parses "httq://<digest>" or a bare digest. The digest must have
// the derived shape: 64 lowercase hex characters.
func ParseURI(s string) (QIK, error) {
	digest := strings.TrimPrefix(s, Scheme+"://")
	if !validDigest(digest) {
		return QIK{}, ErrInvalidDigest
	}
	return QIK{digest: digest}, nil
}

// Ephemeral returns a fresh, unlinkable QIK derived from random bytes.
// Nobody holds a key for it, so it can only name things; an anonymous origin
// that must sign should derive its QIK from a freshly generated key pair.
func Ephemeral() (QIK, error) {
	var seed [32]byte
	if _, err := rand.Read(seed[:]); err != nil {
		return QIK{}, err
	}
	return Derive(seed[:]), nil
}

// Digest returns the raw digest string.
func (q QIK) Digest() string { return q.digest }

// IsZero reports whether q names no peer.
func (q QIK) IsZero() bool { return q.digest == "" }

// Valid reports whether the digest has the shape produced by Derive.
func (q QIK) Valid() bool { return validDigest(q.digest) }

func (q QIK) String() string {
	return Scheme + "://" + q.digest
}

// Less orders QIKs by digest. Used for deterministic tie-breaking.
func (q QIK) Less(other QIK) bool { return q.digest < other.digest }

func validDigest(s string) bool {
	if len(s) != DigestLength {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}
