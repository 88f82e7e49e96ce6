// Package transfer prepares messages and packets for the relay links.
//
//   - Fragmenter / Assembler: split a message into shard-sized fragments with
//     Reed-Solomon parity, one fragment per packet, and put it back together
//     at the destination even when some fragments never arrive
//   - EncodePacketFrame / DecodePacketFrame: wrap a serialized packet in a
//     relay frame, LZ4-compressed when that makes it smaller
package transfer
