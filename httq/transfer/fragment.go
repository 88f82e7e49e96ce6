package transfer

import (
	"bytes"
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru"

	"github.com/TheusHen/HTTQ/httq/transfer/erasure"
)

var (
	ErrMessageTooLarge  = errors.New("transfer: message too large")
	ErrBadFragment      = errors.New("transfer: malformed fragment")
	ErrFragmentMismatch = errors.New("transfer: fragment does not match its message")
	ErrDigestMismatch   = errors.New("transfer: reassembled message digest mismatch")
)

const (
	// FragmentHeaderSize is the fixed header in front of every shard.
	FragmentHeaderSize = 16 + 3 + 4 + sha256.Size

	DefaultShardSize    = 16 * 1024
	DefaultParityShards = 2
	// MaxShardSize keeps one encrypted, base64 encoded fragment inside a
	// packet payload.
	MaxShardSize = 32 * 1024
)

// Fragment is one shard of a message.
//
// Wire format:
//
//	16 bytes: message ID
//	1 byte:   shard index
//	1 byte:   data shard count
//	1 byte:   parity shard count
//	4 bytes:  message size (big endian)
//	32 bytes: SHA-256 of the message
//	N bytes:  shard
type Fragment struct {
	MessageID    [16]byte
	Index        uint8
	DataShards   uint8
	ParityShards uint8
	Size         uint32
	Digest       [sha256.Size]byte
	Shard        []byte
}

func (f Fragment) Marshal() []byte {
	out := make([]byte, FragmentHeaderSize, FragmentHeaderSize+len(f.Shard))
	copy(out[:16], f.MessageID[:])
	out[16] = f.Index
	out[17] = f.DataShards
	out[18] = f.ParityShards
	binary.BigEndian.PutUint32(out[19:23], f.Size)
	copy(out[23:FragmentHeaderSize], f.Digest[:])
	return append(out, f.Shard...)
}

// ParseFragment decodes a fragment. The shard aliases b.
func ParseFragment(b []byte) (Fragment, error) {
	if len(b) < FragmentHeaderSize {
		return Fragment{}, fmt.Errorf("%w: %d bytes", ErrBadFragment, len(b))
	}
	var f Fragment
	copy(f.MessageID[:], b[:16])
	f.Index = b[16]
	f.DataShards = b[17]
	f.ParityShards = b[18]
	f.Size = binary.BigEndian.Uint32(b[19:23])
	copy(f.Digest[:], b[23:FragmentHeaderSize])
	f.Shard = b[FragmentHeaderSize:]

	total := int(f.DataShards) + int(f.ParityShards)
	switch {
	case f.DataShards == 0:
		return Fragment{}, fmt.Errorf("%w: no data shards", ErrBadFragment)
	case total > erasure.MaxShards:
		return Fragment{}, fmt.Errorf("%w: %d shards", ErrBadFragment, total)
	case int(f.Index) >= total:
		return Fragment{}, fmt.Errorf("%w: index %d of %d", ErrBadFragment, f.Index, total)
	case uint64(f.Size) > uint64(len(f.Shard))*uint64(f.DataShards):
		return Fragment{}, fmt.Errorf("%w: size %d exceeds shards", ErrBadFragment, f.Size)
	}
	return f, nil
}

// Fragmenter splits messages into fragments.
type Fragmenter struct {
	shardSize int
	parity    int
}

// NewFragmenter returns a fragmenter producing shards of at most shardSize
// bytes. Messages that need more than one shard get parity extra shards.
func NewFragmenter(shardSize, parity int) (*Fragmenter, error) {
	if shardSize <= 0 || shardSize > MaxShardSize || parity < 0 || parity >= erasure.MaxShards {
		return nil, erasure.ErrInvalidConfig
	}
	return &Fragmenter{shardSize: shardSize, parity: parity}, nil
}

// MaxMessageSize is the largest message Split accepts.
func (f *Fragmenter) MaxMessageSize() int {
	return (erasure.MaxShards - f.parity) * f.shardSize
}

// Split fragments msg. A message that fits one shard is sent as a single
// fragment without parity.
func (f *Fragmenter) Split(msg []byte) ([]Fragment, error) {
	if len(msg) > f.MaxMessageSize() {
		return nil, fmt.Errorf("%w: %d bytes, limit %d", ErrMessageTooLarge, len(msg), f.MaxMessageSize())
	}
	var id [16]byte
	if _, err := rand.Read(id[:]); err != nil {
		return nil, err
	}
	digest := sha256.Sum256(msg)

	data := (len(msg) + f.shardSize - 1) / f.shardSize
	if data == 0 {
		data = 1
	}
	parity := f.parity
	if data == 1 {
		parity = 0
	}

	var shards [][]byte
	if parity == 0 {
		shards = [][]byte{append([]byte(nil), msg...)}
	} else {
		codec, err := erasure.NewCodec(data, parity)
		if err != nil {
			return nil, err
		}
		shards, err = codec.EncodeData(msg)
		if err != nil {
			return nil, err
		}
	}

	out := make([]Fragment, len(shards))
	for i, s := range shards {
		out[i] = Fragment{
			MessageID:    id,
			Index:        uint8(i),
			DataShards:   uint8(data),
			ParityShards: uint8(parity),
			Size:         uint32(len(msg)),
			Digest:       digest,
			Shard:        s,
		}
	}
	return out, nil
}

type pendingMessage struct {
	head   Fragment
	shards [][]byte
	have   int
	done   bool
}

func (p *pendingMessage) matches(f Fragment) bool {
	return p.head.DataShards == f.DataShards &&
		p.head.ParityShards == f.ParityShards &&
		p.head.Size == f.Size &&
		p.head.Digest == f.Digest
}

// Assembler collects fragments until their message can be rebuilt. At most
// maxPending messages are tracked; the least recently touched is forgotten
// first. Completed messages are remembered so late shards are ignored.
//
// Safe for concurrent use.
type Assembler struct {
	mu      sync.Mutex
	pending *lru.Cache
}

func NewAssembler(maxPending int) (*Assembler, error) {
	c, err := lru.New(maxPending)
	if err != nil {
		return nil, err
	}
	return &Assembler{pending: c}, nil
}

// Add records f. It returns the message and true once enough fragments
// have arrived; the message is returned exactly once.
func (a *Assembler) Add(f Fragment) ([]byte, bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	var p *pendingMessage
	if v, ok := a.pending.Get(f.MessageID); ok {
		p = v.(*pendingMessage)
		if !p.matches(f) {
			return nil, false, ErrFragmentMismatch
		}
	} else {
		p = &pendingMessage{
			head:   f,
			shards: make([][]byte, int(f.DataShards)+int(f.ParityShards)),
		}
		a.pending.Add(f.MessageID, p)
	}
	if p.done || p.shards[f.Index] != nil {
		return nil, false, nil
	}
	if p.have > 0 && len(f.Shard) != len(p.head.Shard) {
		return nil, false, fmt.Errorf("%w: %v", ErrFragmentMismatch, erasure.ErrShardSizeMismatch)
	}
	p.shards[f.Index] = bytes.Clone(f.Shard)
	p.have++
	if p.have < int(f.DataShards) {
		return nil, false, nil
	}

	msg, err := rebuild(p)
	if err != nil {
		return nil, false, err
	}
	p.done = true
	p.shards = nil
	return msg, true, nil
}

// Pending returns the number of tracked messages, completed ones included.
func (a *Assembler) Pending() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.pending.Len()
}

func rebuild(p *pendingMessage) ([]byte, error) {
	data := int(p.head.DataShards)
	if parity := int(p.head.ParityShards); parity > 0 {
		codec, err := erasure.NewCodec(data, parity)
		if err != nil {
			return nil, err
		}
		if err := codec.ReconstructData(p.shards); err != nil {
			return nil, err
		}
	}
	msg, err := erasure.Join(p.shards[:data], int(p.head.Size))
	if err != nil {
		return nil, err
	}
	if sha256.Sum256(msg) != p.head.Digest {
		return nil, ErrDigestMismatch
	}
	return msg, nil
}
