package keys

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"fmt"
	"io"

	"github.com/cloudflare/circl/sign/dilithium/mode3"
	"golang.org/x/crypto/sha3"

	"github.com/TheusHen/HTTQ/httq/identity"
)

// Scheme names a signature algorithm.
type Scheme string

const (
	Ed25519    Scheme = "ed25519"
	Dilithium3 Scheme = "dilithium3"
)

var (
	ErrUnknownScheme = errors.New("keys: unknown signature scheme")
	ErrInvalidKey    = errors.New("keys: invalid key")
)

// ParseScheme validates a scheme name.
func ParseScheme(s string) (Scheme, error) {
	switch Scheme(s) {
	case Ed25519, Dilithium3:
		return Scheme(s), nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownScheme, s)
}

// KeyPair is a signing keypair of either scheme.
type KeyPair struct {
	scheme Scheme
	public []byte
	ed     ed25519.PrivateKey
	dil    *mode3.PrivateKey
}

// Generate creates a fresh keypair.
func Generate(scheme Scheme) (*KeyPair, error) {
	return GenerateFrom(scheme, rand.Reader)
}

// GenerateFrom creates a keypair reading randomness from r.
func GenerateFrom(scheme Scheme, r io.Reader) (*KeyPair, error) {
	switch scheme {
	case Ed25519:
		pub, priv, err := ed25519.GenerateKey(r)
		if err != nil {
			return nil, err
		}
		return &KeyPair{scheme: scheme, public: pub, ed: priv}, nil
	case Dilithium3:
		pk, sk, err := mode3.GenerateKey(r)
		if err != nil {
			return nil, err
		}
		return &KeyPair{scheme: scheme, public: pk.Bytes(), dil: sk}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownScheme, scheme)
}

// FromPrivate restores a keypair from MarshalPrivate output.
func FromPrivate(scheme Scheme, private []byte) (*KeyPair, error) {
	switch scheme {
	case Ed25519:
		if len(private) != ed25519.SeedSize {
			return nil, fmt.Errorf("%w: ed25519 seed must be %d bytes", ErrInvalidKey, ed25519.SeedSize)
		}
		priv := ed25519.NewKeyFromSeed(private)
		return &KeyPair{scheme: scheme, public: priv.Public().(ed25519.PublicKey), ed: priv}, nil
	case Dilithium3:
		var sk mode3.PrivateKey
		if err := sk.UnmarshalBinary(private); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidKey, err)
		}
		pk := sk.Public().(*mode3.PublicKey)
		return &KeyPair{scheme: scheme, public: pk.Bytes(), dil: &sk}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownScheme, scheme)
}

func (k *KeyPair) Scheme() Scheme { return k.scheme }

// PublicKey returns the raw public key. The QIK is derived from these bytes.
func (k *KeyPair) PublicKey() []byte { return append([]byte(nil), k.public...) }

// Identity returns the QIK of the public key.
func (k *KeyPair) Identity() identity.QIK { return identity.Derive(k.public) }

// MarshalPrivate returns the ed25519 seed or the packed dilithium3 private key.
func (k *KeyPair) MarshalPrivate() ([]byte, error) {
	switch k.scheme {
	case Ed25519:
		return append([]byte(nil), k.ed.Seed()...), nil
	case Dilithium3:
		return k.dil.MarshalBinary()
	}
	return nil, ErrUnknownScheme
}

// Sign signs message with the private key.
func (k *KeyPair) Sign(message []byte) ([]byte, error) {
	switch k.scheme {
	case Ed25519:
		return ed25519.Sign(k.ed, message), nil
	case Dilithium3:
		digest := sha3.Sum256(message)
		sig := make([]byte, mode3.SignatureSize)
		mode3.SignTo(k.dil, digest[:], sig)
		return sig, nil
	}
	return nil, ErrUnknownScheme
}

// Verifier checks signatures of both schemes.
type Verifier struct{}

// Verify reports whether sig is a valid signature of message under publicKey.
// The scheme is selected by the public key size; anything else is rejected.
func (Verifier) Verify(message, sig, publicKey []byte) bool {
	return Verify(publicKey, message, sig)
}

func Verify(publicKey, message, sig []byte) bool {
	switch len(publicKey) {
	case ed25519.PublicKeySize:
		if len(sig) != ed25519.SignatureSize {
			return false
		}
		return ed25519.Verify(ed25519.PublicKey(publicKey), message, sig)
	case mode3.PublicKeySize:
		if len(sig) != mode3.SignatureSize {
			return false
		}
		var pk mode3.PublicKey
		if err := pk.UnmarshalBinary(publicKey); err != nil {
			return false
		}
		digest := sha3.Sum256(message)
		return mode3.Verify(&pk, digest[:], sig)
	}
	return false
}
