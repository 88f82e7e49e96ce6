package crypto

import (
	"crypto/rand"
	"errors"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
)

var (
	ErrCiphertextTooShort = errors.New("crypto: ciphertext too short")
	ErrEncryptionFailed   = errors.New("crypto: encryption failed")
	ErrDecryptionFailed   = errors.New("crypto: decryption failed")
)

// seal encrypts with a single-use key.
// Returns: nonce (12 bytes) || ciphertext || tag (16 bytes)
func seal(key, plaintext, additionalData []byte) ([]byte, error) {
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, ErrEncryptionFailed
	}
	out := make([]byte, chacha20poly1305.NonceSize, chacha20poly1305.NonceSize+len(plaintext)+aead.Overhead())
	if _, err := io.ReadFull(rand.Reader, out); err != nil {
		return nil, ErrEncryptionFailed
	}
	return aead.Seal(out, out[:chacha20poly1305.NonceSize], plaintext, additionalData), nil
}

// open reverses seal.
func open(key, ciphertext, additionalData []byte) ([]byte, error) {
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, ErrDecryptionFailed
	}
	nonceSize := chacha20poly1305.NonceSize
	if len(ciphertext) < nonceSize+aead.Overhead() {
		return nil, ErrCiphertextTooShort
	}
	plaintext, err := aead.Open(nil, ciphertext[:nonceSize], ciphertext[nonceSize:], additionalData)
	if err != nil {
		return nil, ErrDecryptionFailed
	}
	return plaintext, nil
}

// Overhead is the number of bytes seal adds to a plaintext.
const Overhead = chacha20poly1305.NonceSize + chacha20poly1305.Overhead
