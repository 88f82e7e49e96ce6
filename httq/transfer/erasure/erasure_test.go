package erasure

import (
	"bytes"
	"testing"
)

func TestCodecRoundTrip(t *testing.T) {
	codec, err := NewCodec(10, 4)
	if err != nil {
		t.Fatalf("NewCodec: %v", err)
	}

	data := []byte("Hello, HTTQ erasure coding test data that spans multiple shards!")
	originalSize := len(data)

	shards, err := codec.EncodeData(data)
	if err != nil {
		t.Fatalf("EncodeData: %v", err)
	}
	if len(shards) != codec.TotalShards() {
		t.Fatalf("expected %d shards, got %d", codec.TotalShards(), len(shards))
	}
	ok, err := codec.Verify(shards)
	if err != nil || !ok {
		t.Fatalf("verification failed: %v", err)
	}

	// Lose the maximum we can lose, data shards included.
	shards[0] = nil
	shards[5] = nil
	shards[9] = nil
	shards[13] = nil

	if err := codec.ReconstructData(shards); err != nil {
		t.Fatalf("ReconstructData: %v", err)
	}
	recovered, err := codec.Join(shards, originalSize)
	if err != nil {
		t.Fatalf("Join: %v", err)
	}
	if !bytes.Equal(recovered, data) {
		t.Fatalf("recovered data does not match original")
	}
}

func TestCodecTooManyLost(t *testing.T) {
	codec, err := NewCodec(4, 2)
	if err != nil {
		t.Fatalf("NewCodec: %v", err)
	}
	shards, err := codec.EncodeData(bytes.Repeat([]byte("x"), 100))
	if err != nil {
		t.Fatalf("EncodeData: %v", err)
	}
	shards[0], shards[1], shards[2] = nil, nil, nil
	if err := codec.ReconstructData(shards); err != ErrTooManyLost {
		t.Fatalf("expected ErrTooManyLost, got %v", err)
	}
}

func TestCodecShardSizeMismatch(t *testing.T) {
	codec, _ := NewCodec(2, 1)
	shards := [][]byte{make([]byte, 4), nil, make([]byte, 5)}
	if err := codec.ReconstructData(shards); err != ErrShardSizeMismatch {
		t.Fatalf("expected ErrShardSizeMismatch, got %v", err)
	}
}

func TestCodecInvalidConfig(t *testing.T) {
	for _, c := range [][2]int{{0, 1}, {1, 0}, {200, 56}} {
		if _, err := NewCodec(c[0], c[1]); err != ErrInvalidConfig {
			t.Fatalf("NewCodec(%d, %d): expected ErrInvalidConfig, got %v", c[0], c[1], err)
		}
	}
}

func TestJoin(t *testing.T) {
	got, err := Join([][]byte{[]byte("abc"), []byte("de\x00")}, 5)
	if err != nil {
		t.Fatalf("Join: %v", err)
	}
	if string(got) != "abcde" {
		t.Fatalf("unexpected %q", got)
	}
	if _, err := Join([][]byte{[]byte("abc"), nil}, 5); err != ErrTooManyLost {
		t.Fatalf("expected ErrTooManyLost, got %v", err)
	}
	if _, err := Join([][]byte{[]byte("ab")}, 5); err != ErrShardSizeMismatch {
		t.Fatalf("expected ErrShardSizeMismatch, got %v", err)
	}
}
