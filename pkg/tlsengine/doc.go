// Package tlsengine manages the per-connection TLS engine for secure
// bindings.
//
// Each accepted connection gets a fresh Engine wrapping the raw stream in a
// server-side tls.Conn with ALPN enabled. The negotiated protocol is written
// into the connection's negotiation.Cell from the handshake's
// VerifyConnection callback, which crypto/tls runs strictly before any
// application data is delivered. Engine release is idempotent and happens
// exactly once regardless of how the connection's byte stream terminates.
//
// The package also provides certificate loading with hot reload (fsnotify
// file watching with debounce) and scheduled certificate expiry warnings.
package tlsengine
