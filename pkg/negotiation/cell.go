package negotiation

import (
	"errors"
	"sync/atomic"
)

// ErrCellReused is returned when a Cell is written a second time. A second
// write means a pipeline value was shared between connections, which is a
// bug in the embedding code, not a peer-caused handshake failure.
var ErrCellReused = errors.New("negotiation: protocol cell written twice (pipeline reused across connections)")

// Cell is a write-once container that ferries the negotiated protocol from
// the TLS handshake to the Switch.
//
// The cell is written at most once, by the TLS layer's ALPN callback, and
// read once by the Switch after the first decrypted byte has arrived. The
// handshake-before-data ordering of the transport makes the compare-and-swap
// below sufficient; no lock is needed.
type Cell struct {
	v atomic.Int32
}

// NewCell returns an empty cell for one connection.
func NewCell() *Cell {
	return &Cell{}
}

// Write stores the negotiated protocol. Writing ProtocolUnset is a no-op so
// callers can pass through an absent negotiation result. A second write with
// a concrete protocol returns ErrCellReused and leaves the first value
// intact.
func (c *Cell) Write(p Protocol) error {
	if p == ProtocolUnset {
		return nil
	}
	if !c.v.CompareAndSwap(int32(ProtocolUnset), int32(p)) {
		return ErrCellReused
	}
	return nil
}

// Read returns the stored protocol and whether a write has happened.
// Reading an unwritten cell does not block; the caller applies its
// default-protocol policy instead.
func (c *Cell) Read() (Protocol, bool) {
	p := Protocol(c.v.Load())
	return p, p != ProtocolUnset
}
