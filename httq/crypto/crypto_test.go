package crypto

import (
	"bytes"
	"errors"
	"testing"
)

func TestX25519ECDH(t *testing.T) {
	alice, err := GenerateX25519()
	if err != nil {
		t.Fatalf("GenerateX25519: %v", err)
	}
	bob, err := GenerateX25519()
	if err != nil {
		t.Fatalf("GenerateX25519: %v", err)
	}

	sharedAlice, err := ECDH(alice.PrivateKey[:], bob.PublicKey[:])
	if err != nil {
		t.Fatalf("ECDH alice: %v", err)
	}
	sharedBob, err := ECDH(bob.PrivateKey[:], alice.PublicKey[:])
	if err != nil {
		t.Fatalf("ECDH bob: %v", err)
	}
	if !bytes.Equal(sharedAlice, sharedBob) {
		t.Fatalf("shared secrets do not match")
	}
}

func TestECDHRejectsZeroPoint(t *testing.T) {
	kp, _ := GenerateX25519()
	if _, err := ECDH(kp.PrivateKey[:], make([]byte, 32)); !errors.Is(err, ErrInvalidPublicKey) {
		t.Fatalf("expected ErrInvalidPublicKey, got %v", err)
	}
	if _, err := ECDH(kp.PrivateKey[:], make([]byte, 31)); !errors.Is(err, ErrInvalidKeySize) {
		t.Fatalf("expected ErrInvalidKeySize, got %v", err)
	}
}

func TestSealOpen(t *testing.T) {
	key := make([]byte, 32)
	for i := range key {
		key[i] = byte(i)
	}
	plaintext := []byte("hello httq payload")
	ad := []byte("additional data")

	ct, err := seal(key, plaintext, ad)
	if err != nil {
		t.Fatalf("seal: %v", err)
	}
	if len(ct) != len(plaintext)+Overhead {
		t.Fatalf("unexpected ciphertext length %d", len(ct))
	}
	got, err := open(key, ct, ad)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if !bytes.Equal(got, plaintext) {
		t.Fatalf("decrypted != plaintext")
	}

	ct[len(ct)-1] ^= 0xff
	if _, err := open(key, ct, ad); err != ErrDecryptionFailed {
		t.Fatalf("expected decryption failure on tampered ciphertext")
	}
	if _, err := open(key, ct[:10], ad); err != ErrCiphertextTooShort {
		t.Fatalf("expected ErrCiphertextTooShort, got %v", err)
	}
}

func TestDeriveKeyBindsInfo(t *testing.T) {
	secret := []byte("shared secret")
	k1, err := deriveBoxKey(secret, sealedBoxLabel, []byte("a"))
	if err != nil {
		t.Fatalf("deriveBoxKey: %v", err)
	}
	k2, _ := deriveBoxKey(secret, sealedBoxLabel, []byte("b"))
	k3, _ := deriveBoxKey(secret, hybridBoxLabel, []byte("a"))
	if len(k1) != 32 {
		t.Fatalf("unexpected key length %d", len(k1))
	}
	if bytes.Equal(k1, k2) || bytes.Equal(k1, k3) {
		t.Fatalf("keys with different context should differ")
	}
}

func TestBoxes(t *testing.T) {
	for _, name := range []string{"x25519", "hybrid"} {
		t.Run(name, func(t *testing.T) {
			box, err := BoxByName(name)
			if err != nil {
				t.Fatalf("BoxByName: %v", err)
			}
			pub, priv, err := box.GenerateKey()
			if err != nil {
				t.Fatalf("GenerateKey: %v", err)
			}

			msg := []byte("quantum resistant hello")
			ct, err := box.Encrypt(msg, pub)
			if err != nil {
				t.Fatalf("Encrypt: %v", err)
			}
			if bytes.Contains(ct, msg) {
				t.Fatalf("ciphertext leaks plaintext")
			}
			got, err := box.Decrypt(ct, priv)
			if err != nil {
				t.Fatalf("Decrypt: %v", err)
			}
			if !bytes.Equal(got, msg) {
				t.Fatalf("round trip mismatch")
			}

			// Fresh ephemeral key on every call.
			ct2, _ := box.Encrypt(msg, pub)
			if bytes.Equal(ct, ct2) {
				t.Fatalf("two encryptions produced identical ciphertext")
			}

			_, otherPriv, _ := box.GenerateKey()
			if _, err := box.Decrypt(ct, otherPriv); err == nil {
				t.Fatalf("decrypt with wrong key succeeded")
			}

			ct[len(ct)/2] ^= 0x01
			if _, err := box.Decrypt(ct, priv); err == nil {
				t.Fatalf("decrypt of tampered ciphertext succeeded")
			}
		})
	}
}

func TestBoxRejectsBadKeys(t *testing.T) {
	if _, err := (SealedBox{}).Encrypt([]byte("x"), []byte{1, 2, 3}); !errors.Is(err, ErrInvalidKeySize) {
		t.Fatalf("expected ErrInvalidKeySize, got %v", err)
	}
	if _, err := (HybridBox{}).Encrypt([]byte("x"), make([]byte, 32)); !errors.Is(err, ErrInvalidKeySize) {
		t.Fatalf("expected ErrInvalidKeySize, got %v", err)
	}
	if _, err := (HybridBox{}).Decrypt(make([]byte, 2000), make([]byte, 32)); !errors.Is(err, ErrInvalidKeySize) {
		t.Fatalf("expected ErrInvalidKeySize, got %v", err)
	}
}

func TestBoxByNameUnknown(t *testing.T) {
	if _, err := BoxByName("rsa"); !errors.Is(err, ErrUnknownBox) {
		t.Fatalf("expected ErrUnknownBox, got %v", err)
	}
}
