// Package keys holds the signing keys of HTTQ identities.
//
// Two signature schemes are supported:
//   - ed25519: signs the message directly
//   - dilithium3: post-quantum, signs the SHA3-256 digest of the message
//
// Verification dispatches on the public key size, so a verifier only ever
// needs the raw public key that the QIK was derived from.
package keys
