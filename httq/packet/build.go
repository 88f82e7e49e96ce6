package packet

import (
	"encoding/base64"
	"fmt"

	"github.com/TheusHen/HTTQ/httq/identity"
)

// Encryptor encrypts a payload for a recipient public key.
type Encryptor interface {
	Encrypt(plaintext, recipientPublicKey []byte) ([]byte, error)
}

// Decryptor reverses Encryptor with the recipient's private key.
type Decryptor interface {
	Decrypt(ciphertext, privateKey []byte) ([]byte, error)
}

// Recipient names a destination and the public key its payloads are
// encrypted to.
type Recipient struct {
	Identity  identity.QIK
	PublicKey []byte
}

// Build encrypts plaintext for the recipient and returns an unsigned packet
// with the current version and DefaultTTL. The codec never sees key
// material other than the recipient's public key.
func Build(to Recipient, origin identity.QIK, plaintext []byte, enc Encryptor) (*Packet, error) {
	ct, err := enc.Encrypt(plaintext, to.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEncryption, err)
	}
	payload := base64.StdEncoding.EncodeToString(ct)
	if len(payload) > MaxPayloadSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrPayloadTooLarge, len(payload))
	}
	return &Packet{
		Version:     Version,
		Destination: to.Identity,
		Origin:      origin,
		Payload:     payload,
		TTL:         DefaultTTL,
	}, nil
}

// Open decrypts the payload of a packet addressed to the holder of privateKey.
func Open(p *Packet, privateKey []byte, dec Decryptor) ([]byte, error) {
	ct, err := p.Ciphertext()
	if err != nil {
		return nil, err
	}
	pt, err := dec.Decrypt(ct, privateKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecryption, err)
	}
	return pt, nil
}
