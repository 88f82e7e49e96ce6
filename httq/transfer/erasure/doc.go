// Package erasure provides Reed-Solomon erasure coding for HTTQ message
// fragments.
//
// With d data shards and p parity shards any p fragments can be lost on the
// way and the message is still recoverable, without a retransmission round
// trip across the mesh.
package erasure
