package crypto

import (
	"crypto/sha256"
	"io"

	"golang.org/x/crypto/hkdf"
)

// DeriveKey derives a key of the specified length using HKDF-SHA256.
// salt can be nil (uses zero salt), info provides context binding.
func DeriveKey(secret, salt, info []byte, length int) ([]byte, error) {
	hk := hkdf.New(sha256.New, secret, salt, info)
	key := make([]byte, length)
	if _, err := io.ReadFull(hk, key); err != nil {
		return nil, err
	}
	return key, nil
}

// deriveBoxKey binds the payload key to the box label and to every public
// value on the wire, so a ciphertext cannot be replayed under another key.
func deriveBoxKey(secret []byte, label string, transcript ...[]byte) ([]byte, error) {
	n := len(label)
	for _, t := range transcript {
		n += len(t)
	}
	info := make([]byte, 0, n)
	info = append(info, label...)
	for _, t := range transcript {
		info = append(info, t...)
	}
	return DeriveKey(secret, nil, info, 32)
}
