package crypto

import (
	"errors"
	"fmt"

	"github.com/cloudflare/circl/kem/mlkem/mlkem768"
	"golang.org/x/crypto/curve25519"
)

// ErrUnknownBox is returned by BoxByName for an unsupported box name.
var ErrUnknownBox = errors.New("crypto: unknown box")

// Box is an anonymous public-key encryption scheme.
type Box interface {
	Name() string
	GenerateKey() (publicKey, privateKey []byte, err error)
	Encrypt(plaintext, recipientPublicKey []byte) ([]byte, error)
	Decrypt(ciphertext, privateKey []byte) ([]byte, error)
}

const (
	sealedBoxLabel = "httq-sealed-box-v1"
	hybridBoxLabel = "httq-hybrid-box-v1"
)

// BoxByName returns the box registered under name ("x25519" or "hybrid").
func BoxByName(name string) (Box, error) {
	switch name {
	case SealedBox{}.Name():
		return SealedBox{}, nil
	case HybridBox{}.Name():
		return HybridBox{}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownBox, name)
}

// SealedBox encrypts to an X25519 public key.
//
// Wire layout: ephemeral public key (32) || nonce (12) || ciphertext || tag (16)
type SealedBox struct{}

func (SealedBox) Name() string { return "x25519" }

// GenerateKey returns a raw 32-byte X25519 keypair.
func (SealedBox) GenerateKey() ([]byte, []byte, error) {
	kp, err := GenerateX25519()
	if err != nil {
		return nil, nil, err
	}
	return kp.PublicKey[:], kp.PrivateKey[:], nil
}

func (SealedBox) Encrypt(plaintext, recipientPublicKey []byte) ([]byte, error) {
	if len(recipientPublicKey) != curve25519.PointSize {
		return nil, ErrInvalidKeySize
	}
	eph, err := GenerateX25519()
	if err != nil {
		return nil, ErrEncryptionFailed
	}
	shared, err := ECDH(eph.PrivateKey[:], recipientPublicKey)
	if err != nil {
		return nil, err
	}
	key, err := deriveBoxKey(shared, sealedBoxLabel, eph.PublicKey[:], recipientPublicKey)
	if err != nil {
		return nil, ErrEncryptionFailed
	}
	body, err := seal(key, plaintext, eph.PublicKey[:])
	if err != nil {
		return nil, err
	}
	return append(eph.PublicKey[:], body...), nil
}

func (SealedBox) Decrypt(ciphertext, privateKey []byte) ([]byte, error) {
	if len(ciphertext) < curve25519.PointSize+Overhead {
		return nil, ErrCiphertextTooShort
	}
	recipient, err := x25519Public(privateKey)
	if err != nil {
		return nil, err
	}
	ephPub := ciphertext[:curve25519.PointSize]
	shared, err := ECDH(privateKey, ephPub)
	if err != nil {
		return nil, ErrDecryptionFailed
	}
	key, err := deriveBoxKey(shared, sealedBoxLabel, ephPub, recipient)
	if err != nil {
		return nil, ErrDecryptionFailed
	}
	return open(key, ciphertext[curve25519.PointSize:], ephPub)
}

// HybridBox encrypts to an X25519 || ML-KEM-768 public key.
//
// Wire layout: ephemeral X25519 key (32) || KEM ciphertext (1088) || nonce (12) || ciphertext || tag (16)
type HybridBox struct{}

func (HybridBox) Name() string { return "hybrid" }

// GenerateKey returns pub = x25519 (32) || mlkem768 (1184) and
// priv = x25519 (32) || mlkem768 (2400).
func (HybridBox) GenerateKey() ([]byte, []byte, error) {
	kp, err := GenerateX25519()
	if err != nil {
		return nil, nil, err
	}
	kemPub, kemPriv, err := mlkem768.Scheme().GenerateKeyPair()
	if err != nil {
		return nil, nil, err
	}
	pb, err := kemPub.MarshalBinary()
	if err != nil {
		return nil, nil, err
	}
	sb, err := kemPriv.MarshalBinary()
	if err != nil {
		return nil, nil, err
	}
	return append(kp.PublicKey[:], pb...), append(kp.PrivateKey[:], sb...), nil
}

func (HybridBox) Encrypt(plaintext, recipientPublicKey []byte) ([]byte, error) {
	scheme := mlkem768.Scheme()
	if len(recipientPublicKey) != curve25519.PointSize+scheme.PublicKeySize() {
		return nil, ErrInvalidKeySize
	}
	kemPub, err := scheme.UnmarshalBinaryPublicKey(recipientPublicKey[curve25519.PointSize:])
	if err != nil {
		return nil, ErrInvalidPublicKey
	}

	eph, err := GenerateX25519()
	if err != nil {
		return nil, ErrEncryptionFailed
	}
	classical, err := ECDH(eph.PrivateKey[:], recipientPublicKey[:curve25519.PointSize])
	if err != nil {
		return nil, err
	}
	kemCT, post, err := scheme.Encapsulate(kemPub)
	if err != nil {
		return nil, ErrEncryptionFailed
	}

	key, err := deriveBoxKey(append(classical, post...), hybridBoxLabel, eph.PublicKey[:], kemCT, recipientPublicKey)
	if err != nil {
		return nil, ErrEncryptionFailed
	}
	header := append(eph.PublicKey[:], kemCT...)
	body, err := seal(key, plaintext, header)
	if err != nil {
		return nil, err
	}
	return append(header, body...), nil
}

func (HybridBox) Decrypt(ciphertext, privateKey []byte) ([]byte, error) {
	scheme := mlkem768.Scheme()
	if len(privateKey) != curve25519.ScalarSize+scheme.PrivateKeySize() {
		return nil, ErrInvalidKeySize
	}
	headerLen := curve25519.PointSize + scheme.CiphertextSize()
	if len(ciphertext) < headerLen+Overhead {
		return nil, ErrCiphertextTooShort
	}

	kemPriv, err := scheme.UnmarshalBinaryPrivateKey(privateKey[curve25519.ScalarSize:])
	if err != nil {
		return nil, ErrInvalidKeySize
	}
	kemPub, err := kemPriv.Public().MarshalBinary()
	if err != nil {
		return nil, ErrDecryptionFailed
	}
	xPub, err := x25519Public(privateKey[:curve25519.ScalarSize])
	if err != nil {
		return nil, err
	}

	header := ciphertext[:headerLen]
	ephPub := header[:curve25519.PointSize]
	kemCT := header[curve25519.PointSize:]

	classical, err := ECDH(privateKey[:curve25519.ScalarSize], ephPub)
	if err != nil {
		return nil, ErrDecryptionFailed
	}
	post, err := scheme.Decapsulate(kemPriv, kemCT)
	if err != nil {
		return nil, ErrDecryptionFailed
	}

	key, err := deriveBoxKey(append(classical, post...), hybridBoxLabel, ephPub, kemCT, append(xPub, kemPub...))
	if err != nil {
		return nil, ErrDecryptionFailed
	}
	return open(key, ciphertext[headerLen:], header)
}
