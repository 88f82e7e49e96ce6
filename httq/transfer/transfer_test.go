package transfer

import (
	"bytes"
	"crypto/rand"
	"errors"
	"testing"

	"github.com/TheusHen/HTTQ/httq/protocol"
)

func randomBytes(t *testing.T, n int) []byte {
	t.Helper()
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		t.Fatalf("rand: %v", err)
	}
	return b
}

func TestCompressRoundTrip(t *testing.T) {
	data := bytes.Repeat([]byte("httq orbital relay "), 500)
	for _, level := range []CompressionLevel{CompressionFast, CompressionDefault, CompressionBest} {
		c, err := Compress(data, level)
		if err != nil {
			t.Fatalf("Compress: %v", err)
		}
		if len(c) >= len(data) {
			t.Fatalf("expected compression at level %d", level)
		}
		d, err := Decompress(c, len(data))
		if err != nil {
			t.Fatalf("Decompress: %v", err)
		}
		if !bytes.Equal(d, data) {
			t.Fatalf("round trip mismatch")
		}
	}
}

func TestDecompressLimit(t *testing.T) {
	data := make([]byte, 10000)
	c, _ := Compress(data, CompressionDefault)
	if _, err := Decompress(c, 9999); !errors.Is(err, ErrDecompressionFailed) {
		t.Fatalf("expected ErrDecompressionFailed, got %v", err)
	}
	if _, err := Decompress([]byte("not lz4"), 100); !errors.Is(err, ErrDecompressionFailed) {
		t.Fatalf("expected ErrDecompressionFailed, got %v", err)
	}
}

func TestPacketFrame(t *testing.T) {
	compressible := bytes.Repeat([]byte{0xaa}, 4096)
	f := EncodePacketFrame(compressible, CompressionDefault)
	if f.Type != protocol.MessageTypePacketLZ4 {
		t.Fatalf("expected compressed frame, got %s", f.Type)
	}
	got, err := DecodePacketFrame(f)
	if err != nil || !bytes.Equal(got, compressible) {
		t.Fatalf("DecodePacketFrame: %v", err)
	}

	incompressible := randomBytes(t, 512)
	f = EncodePacketFrame(incompressible, CompressionDefault)
	if f.Type != protocol.MessageTypePacket {
		t.Fatalf("random data should not be compressed")
	}
	if f = EncodePacketFrame(compressible, CompressionOff); f.Type != protocol.MessageTypePacket {
		t.Fatalf("compression off must not compress")
	}

	if _, err := DecodePacketFrame(protocol.Frame{Type: protocol.MessageTypeAnnounce}); !errors.Is(err, ErrNotPacketFrame) {
		t.Fatalf("expected ErrNotPacketFrame, got %v", err)
	}
}

func TestParseCompressionLevel(t *testing.T) {
	if l, err := ParseCompressionLevel("off"); err != nil || l != CompressionOff {
		t.Fatalf("unexpected %d %v", l, err)
	}
	if _, err := ParseCompressionLevel("ultra"); err == nil {
		t.Fatalf("expected error")
	}
}

func TestFragmentSingle(t *testing.T) {
	fr, err := NewFragmenter(1024, 2)
	if err != nil {
		t.Fatalf("NewFragmenter: %v", err)
	}
	frags, err := fr.Split([]byte("ping"))
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	if len(frags) != 1 || frags[0].ParityShards != 0 {
		t.Fatalf("small message should be one fragment without parity: %+v", frags)
	}

	asm, _ := NewAssembler(8)
	parsed, err := ParseFragment(frags[0].Marshal())
	if err != nil {
		t.Fatalf("ParseFragment: %v", err)
	}
	msg, ok, err := asm.Add(parsed)
	if err != nil || !ok || string(msg) != "ping" {
		t.Fatalf("Add: %q %v %v", msg, ok, err)
	}

	// Duplicates of a completed message are ignored.
	if _, ok, err := asm.Add(parsed); ok || err != nil {
		t.Fatalf("duplicate delivered again")
	}
}

func TestFragmentEmpty(t *testing.T) {
	fr, _ := NewFragmenter(1024, 2)
	frags, err := fr.Split(nil)
	if err != nil || len(frags) != 1 {
		t.Fatalf("Split(nil): %v", err)
	}
	asm, _ := NewAssembler(8)
	msg, ok, err := asm.Add(frags[0])
	if err != nil || !ok || len(msg) != 0 {
		t.Fatalf("Add: %v %v", ok, err)
	}
}

func TestFragmentRecoversLoss(t *testing.T) {
	fr, _ := NewFragmenter(1000, 3)
	data := randomBytes(t, 9500)
	frags, err := fr.Split(data)
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	if len(frags) != 13 {
		t.Fatalf("expected 10 data + 3 parity fragments, got %d", len(frags))
	}

	asm, _ := NewAssembler(8)
	lost := map[int]bool{0: true, 4: true, 9: true}
	var out []byte
	delivered := 0
	// Deliver in reverse to exercise out-of-order arrival.
	for i := len(frags) - 1; i >= 0; i-- {
		if lost[i] {
			continue
		}
		f, err := ParseFragment(frags[i].Marshal())
		if err != nil {
			t.Fatalf("ParseFragment: %v", err)
		}
		msg, ok, err := asm.Add(f)
		if err != nil {
			t.Fatalf("Add(%d): %v", i, err)
		}
		if ok {
			out = msg
			delivered++
		}
	}
	if delivered != 1 {
		t.Fatalf("expected exactly one delivery, got %d", delivered)
	}
	if !bytes.Equal(out, data) {
		t.Fatalf("reassembled message mismatch")
	}
}

func TestFragmentTooManyLost(t *testing.T) {
	fr, _ := NewFragmenter(100, 1)
	frags, _ := fr.Split(randomBytes(t, 450))
	asm, _ := NewAssembler(8)
	for _, f := range frags[2:] {
		if _, ok, _ := asm.Add(f); ok {
			t.Fatalf("message rebuilt from too few fragments")
		}
	}
}

func TestFragmentMismatch(t *testing.T) {
	fr, _ := NewFragmenter(100, 1)
	frags, _ := fr.Split(randomBytes(t, 250))
	asm, _ := NewAssembler(8)
	if _, _, err := asm.Add(frags[0]); err != nil {
		t.Fatalf("Add: %v", err)
	}
	forged := frags[1]
	forged.Size++
	if _, _, err := asm.Add(forged); !errors.Is(err, ErrFragmentMismatch) {
		t.Fatalf("expected ErrFragmentMismatch, got %v", err)
	}
}

func TestFragmentDigestMismatch(t *testing.T) {
	fr, _ := NewFragmenter(100, 1)
	frags, _ := fr.Split(randomBytes(t, 250))
	asm, _ := NewAssembler(8)
	frags[0].Shard[0] ^= 0xff
	var err error
	for _, f := range frags[:3] {
		_, _, err = asm.Add(f)
	}
	if !errors.Is(err, ErrDigestMismatch) {
		t.Fatalf("expected ErrDigestMismatch, got %v", err)
	}
}

func TestAssemblerEvicts(t *testing.T) {
	fr, _ := NewFragmenter(10, 1)
	asm, _ := NewAssembler(2)
	for i := 0; i < 5; i++ {
		frags, _ := fr.Split(randomBytes(t, 50))
		_, _, _ = asm.Add(frags[0])
	}
	if asm.Pending() != 2 {
		t.Fatalf("expected 2 pending, got %d", asm.Pending())
	}
}

func TestSplitTooLarge(t *testing.T) {
	fr, _ := NewFragmenter(10, 5)
	if _, err := fr.Split(make([]byte, fr.MaxMessageSize()+1)); !errors.Is(err, ErrMessageTooLarge) {
		t.Fatalf("expected ErrMessageTooLarge, got %v", err)
	}
	if _, err := NewFragmenter(0, 1); err == nil {
		t.Fatalf("expected error for zero shard size")
	}
	if _, err := NewFragmenter(MaxShardSize+1, 1); err == nil {
		t.Fatalf("expected error for oversized shard")
	}
}

func TestParseFragmentErrors(t *testing.T) {
	if _, err := ParseFragment(make([]byte, 10)); !errors.Is(err, ErrBadFragment) {
		t.Fatalf("expected ErrBadFragment, got %v", err)
	}
	f := Fragment{DataShards: 1, Index: 1, Size: 1, Shard: []byte{1}}
	if _, err := ParseFragment(f.Marshal()); !errors.Is(err, ErrBadFragment) {
		t.Fatalf("expected ErrBadFragment for index, got %v", err)
	}
	f = Fragment{DataShards: 1, Size: 5, Shard: []byte{1}}
	if _, err := ParseFragment(f.Marshal()); !errors.Is(err, ErrBadFragment) {
		t.Fatalf("expected ErrBadFragment for size, got %v", err)
	}
	f = Fragment{DataShards: 0}
	if _, err := ParseFragment(f.Marshal()); !errors.Is(err, ErrBadFragment) {
		t.Fatalf("expected ErrBadFragment for zero data, got %v", err)
	}
}
