package tlsengine

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"sync"
	"sync/atomic"

	"switchboard-net/switchboard/pkg/negotiation"
)

// Engine is the TLS machinery for exactly one connection.
//
// Engines are created lazily, one per connection attempt, and are never
// reused: the ALPN callback is bound to that connection's protocol cell, and
// a second handshake would trip the cell's write-once guard.
type Engine struct {
	conn *tls.Conn

	releaseOnce sync.Once
	released    atomic.Bool
}

// NewEngine wraps a raw accepted connection in a server-side TLS engine.
//
// The engine clones base so the per-connection ALPN callback never leaks
// into a shared config. If base does not advertise protocols, h2 and
// http/1.1 are offered. When the handshake negotiates a protocol, it is
// written into cell before any application data flows; if the peer does not
// negotiate, the cell stays unwritten and the switch applies its default.
func NewEngine(raw net.Conn, base *tls.Config, cell *negotiation.Cell) *Engine {
	cfg := base.Clone()
	if len(cfg.NextProtos) == 0 {
		cfg.NextProtos = []string{negotiation.ALPNHTTP2, negotiation.ALPNHTTP1}
	}

	verify := cfg.VerifyConnection
	cfg.VerifyConnection = func(cs tls.ConnectionState) error {
		proto, err := negotiation.FromALPN(cs.NegotiatedProtocol)
		if err != nil {
			return err
		}
		if err := cell.Write(proto); err != nil {
			// Surfaces as a handshake failure carrying ErrCellReused, so
			// reuse bugs stay distinguishable from peer-caused failures.
			return err
		}
		if verify != nil {
			return verify(cs)
		}
		return nil
	}

	return &Engine{conn: tls.Server(raw, cfg)}
}

// Handshake runs the TLS handshake. A failure here is a negotiation error
// local to this connection; the caller converts it into a connection
// outcome, never a listener error.
func (e *Engine) Handshake(ctx context.Context) error {
	if err := e.conn.HandshakeContext(ctx); err != nil {
		return fmt.Errorf("tls handshake: %w", err)
	}
	return nil
}

// Conn returns the decrypted side of the engine. Reads on it drive the
// handshake if Handshake was not called explicitly.
func (e *Engine) Conn() net.Conn {
	return e.conn
}

// NegotiatedProtocol returns the ALPN result after a completed handshake,
// or the empty string if none was negotiated.
func (e *Engine) NegotiatedProtocol() string {
	return e.conn.ConnectionState().NegotiatedProtocol
}

// Release tears the engine down. It is idempotent: the connection runner
// defers it, the terminator's force-close path calls it, and whichever comes
// first wins.
func (e *Engine) Release() {
	e.releaseOnce.Do(func() {
		e.released.Store(true)
		_ = e.conn.Close()
	})
}

// Released reports whether Release has run.
func (e *Engine) Released() bool {
	return e.released.Load()
}
