// Package negotiation carries the per-connection protocol decision from the
// TLS handshake to the point where the connection commits to a protocol
// pipeline.
//
// The package provides three pieces:
//
//   - Protocol: the application protocol identifier (HTTP/1.1 or HTTP/2).
//   - Cell: a write-once container the TLS layer fills with the ALPN result.
//   - Switch: a single-use stream stage that waits for the first unit of
//     application data, reads the Cell exactly once, and commits the
//     connection to one protocol for the rest of its life.
//
// The Cell needs no lock: crypto/tls guarantees that the handshake (and with
// it the ALPN callback) completes before the first decrypted byte is
// delivered, so the single write always happens-before the single read.
package negotiation
