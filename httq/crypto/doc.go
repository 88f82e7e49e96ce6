// Package crypto provides the payload encryption capabilities used by HTTQ.
//
// Each box is an anonymous public-key encryption: the sender needs only the
// recipient's public key, and every message uses a fresh ephemeral key.
//   - SealedBox: X25519 + HKDF-SHA256 + ChaCha20-Poly1305
//   - HybridBox: X25519 and ML-KEM-768 secrets combined through HKDF, secure
//     while either of the two holds
package crypto
