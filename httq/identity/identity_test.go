package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"testing"
)

func TestDeriveStable(t *testing.T) {
	id1 := Derive([]byte("alice_pub"))
	id2 := Derive([]byte("alice_pub"))
	if id1 != id2 {
		t.Fatalf("Derive not deterministic")
	}

	sum := sha256.Sum256([]byte("alice_pub"))
	if id1.Digest() != hex.EncodeToString(sum[:]) {
		t.Fatalf("unexpected digest %s", id1.Digest())
	}
	if len(id1.Digest()) != DigestLength {
		t.Fatalf("expected %d chars, got %d", DigestLength, len(id1.Digest()))
	}
	if !id1.Valid() {
		t.Fatalf("derived QIK should be valid")
	}
}

func TestDeriveDistinctInputs(t *testing.T) {
	seen := map[QIK]string{}
	for _, k := range []string{"alice_pub", "bob_pub", "alice_puc", "", "wakanda_public_key"} {
		id := Derive([]byte(k))
		if prev, ok := seen[id]; ok {
			t.Fatalf("collision between %q and %q", prev, k)
		}
		seen[id] = k
	}
}

func TestLowercaseHex(t *testing.T) {
	d := Derive([]byte{0xff, 0x00, 0x10}).Digest()
	for _, c := range d {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			t.Fatalf("unexpected character %q in %s", c, d)
		}
	}
}

func TestFromDigestVerbatim(t *testing.T) {
	id := FromDigest("dest_hash")
	if id.Digest() != "dest_hash" {
		t.Fatalf("FromDigest altered input")
	}
	if id.Valid() {
		t.Fatalf("non-hex digest should not be valid")
	}
	if FromDigest("dest_hash") != id {
		t.Fatalf("equality should be over digest")
	}
	if FromDigest(Derive([]byte("k")).Digest()) != Derive([]byte("k")) {
		t.Fatalf("wrapped digest should equal derived QIK")
	}
}

func TestStringAndParse(t *testing.T) {
	id := Derive([]byte("bob_pub"))
	s := id.String()
	if s != "httq://"+id.Digest() {
		t.Fatalf("unexpected display form %s", s)
	}

	parsed, err := ParseURI(s)
	if err != nil {
		t.Fatalf("ParseURI: %v", err)
	}
	if parsed != id {
		t.Fatalf("ParseURI mismatch")
	}

	bare, err := ParseURI(id.Digest())
	if err != nil {
		t.Fatalf("ParseURI bare: %v", err)
	}
	if bare != id {
		t.Fatalf("ParseURI bare mismatch")
	}

	for _, bad := range []string{"", "httq://", "httq://xyz", "httq://" + id.Digest()[:63], "HTTQ://" + id.Digest()} {
		if _, err := ParseURI(bad); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
}

func TestEphemeral(t *testing.T) {
	a, err := Ephemeral()
	if err != nil {
		t.Fatalf("Ephemeral: %v", err)
	}
	b, err := Ephemeral()
	if err != nil {
		t.Fatalf("Ephemeral: %v", err)
	}
	if a == b {
		t.Fatalf("ephemeral identities should differ")
	}
	if !a.Valid() || a.IsZero() {
		t.Fatalf("ephemeral identity should be a valid digest")
	}
	var zero QIK
	if !zero.IsZero() {
		t.Fatalf("zero value should report IsZero")
	}
}
