// Package httq implements HTTQ, a relay protocol for a mesh of Orbitals.
//
// Every Orbital is named by a QIK, the SHA-256 digest of its signing key.
// Packets carry an encrypted payload and the origin's signature over the
// header fields and the hop budget. Each relay verifies the signature,
// resolves the shortest path to the destination through its view of the
// mesh and spends one unit of TTL handing the packet to the next hop.
//
// The subpackages hold the building blocks: identity, packet, signature,
// route and forward are the protocol core; keys and crypto provide the
// signing and encryption capabilities; mesh, protocol, transfer and
// transport connect Orbitals. Orbital ties them into a running node.
package httq
