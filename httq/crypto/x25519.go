package crypto

import (
	"crypto/rand"
	"errors"
	"io"

	"golang.org/x/crypto/curve25519"
)

// X25519KeyPair represents an X25519 keypair.
type X25519KeyPair struct {
	PublicKey  [32]byte
	PrivateKey [32]byte
}

var (
	ErrInvalidPublicKey = errors.New("crypto: invalid X25519 public key")
	ErrInvalidKeySize   = errors.New("crypto: invalid key size")
)

// GenerateX25519 generates a new X25519 keypair.
func GenerateX25519() (X25519KeyPair, error) {
	var kp X25519KeyPair
	if _, err := io.ReadFull(rand.Reader, kp.PrivateKey[:]); err != nil {
		return X25519KeyPair{}, err
	}
	// Clamp private key per RFC 7748
	kp.PrivateKey[0] &= 248
	kp.PrivateKey[31] &= 127
	kp.PrivateKey[31] |= 64

	curve25519.ScalarBaseMult(&kp.PublicKey, &kp.PrivateKey)
	return kp, nil
}

// x25519Public recomputes the public half of a raw private key.
func x25519Public(privateKey []byte) ([]byte, error) {
	if len(privateKey) != curve25519.ScalarSize {
		return nil, ErrInvalidKeySize
	}
	return curve25519.X25519(privateKey, curve25519.Basepoint)
}

// ECDH computes the raw X25519 shared secret (to be passed to HKDF).
func ECDH(privateKey, peerPublicKey []byte) ([]byte, error) {
	if len(privateKey) != curve25519.ScalarSize || len(peerPublicKey) != curve25519.PointSize {
		return nil, ErrInvalidKeySize
	}
	var zero [32]byte
	if [32]byte(peerPublicKey) == zero {
		return nil, ErrInvalidPublicKey
	}
	// X25519 rejects low-order points with an all-zero output.
	shared, err := curve25519.X25519(privateKey, peerPublicKey)
	if err != nil {
		return nil, ErrInvalidPublicKey
	}
	return shared, nil
}
