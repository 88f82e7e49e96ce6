package erasure

import (
	"errors"

	"github.com/klauspost/reedsolomon"
)

var (
	ErrTooManyLost       = errors.New("erasure: too many shards lost, cannot recover")
	ErrInvalidConfig     = errors.New("erasure: invalid data/parity configuration")
	ErrShardSizeMismatch = errors.New("erasure: shard sizes do not match")
)

// MaxShards is the largest total shard count a fragment header can index.
const MaxShards = 255

// Codec provides Reed-Solomon encoding/decoding.
type Codec struct {
	enc          reedsolomon.Encoder
	dataShards   int
	parityShards int
}

// NewCodec creates a new erasure codec.
// dataShards: number of data shards
// parityShards: number of parity shards (can lose up to this many)
func NewCodec(dataShards, parityShards int) (*Codec, error) {
	if dataShards <= 0 || parityShards <= 0 || dataShards+parityShards > MaxShards {
		return nil, ErrInvalidConfig
	}
	enc, err := reedsolomon.New(dataShards, parityShards)
	if err != nil {
		return nil, err
	}
	return &Codec{
		enc:          enc,
		dataShards:   dataShards,
		parityShards: parityShards,
	}, nil
}

func (c *Codec) DataShards() int   { return c.dataShards }
func (c *Codec) ParityShards() int { return c.parityShards }
func (c *Codec) TotalShards() int  { return c.dataShards + c.parityShards }

// EncodeData splits data into equally sized data shards, padding the last,
// and computes parity. Returns all shards (data + parity).
func (c *Codec) EncodeData(data []byte) ([][]byte, error) {
	shards, err := c.enc.Split(data)
	if err != nil {
		return nil, err
	}
	if err := c.enc.Encode(shards); err != nil {
		return nil, err
	}
	return shards, nil
}

// Verify checks if the parity shards are consistent with data shards.
func (c *Codec) Verify(shards [][]byte) (bool, error) {
	return c.enc.Verify(shards)
}

// ReconstructData rebuilds missing data shards in place. Missing shards are
// nil; present shards must all have the same length.
func (c *Codec) ReconstructData(shards [][]byte) error {
	size := -1
	for _, s := range shards {
		if s == nil {
			continue
		}
		if size >= 0 && len(s) != size {
			return ErrShardSizeMismatch
		}
		size = len(s)
	}
	err := c.enc.ReconstructData(shards)
	if err != nil {
		if errors.Is(err, reedsolomon.ErrTooFewShards) {
			return ErrTooManyLost
		}
		return err
	}
	return nil
}

// Join joins data shards back into the original data.
// outSize is the original data size (before padding).
func (c *Codec) Join(shards [][]byte, outSize int) ([]byte, error) {
	return Join(shards[:c.dataShards], outSize)
}

// Join concatenates data shards and truncates the result to outSize.
func Join(dataShards [][]byte, outSize int) ([]byte, error) {
	data := make([]byte, 0, outSize)
	for _, s := range dataShards {
		if len(data) >= outSize {
			break
		}
		if s == nil {
			return nil, ErrTooManyLost
		}
		remaining := outSize - len(data)
		if remaining >= len(s) {
			data = append(data, s...)
		} else {
			data = append(data, s[:remaining]...)
		}
	}
	if len(data) != outSize {
		return nil, ErrShardSizeMismatch
	}
	return data, nil
}
