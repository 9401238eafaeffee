package negotiation

import (
	"bufio"
	"errors"
	"fmt"
	"net"
	"sync/atomic"
)

// MissingPolicy decides what the Switch does when the first application byte
// arrives and the Cell was never written (the peer or runtime did not
// negotiate a protocol).
type MissingPolicy int

const (
	// MissingFallback selects the configured default protocol. This is the
	// permissive default.
	MissingFallback MissingPolicy = iota

	// MissingReject fails the connection instead of guessing.
	MissingReject
)

// ParseMissingPolicy parses a configuration value into a MissingPolicy.
func ParseMissingPolicy(s string) (MissingPolicy, error) {
	switch s {
	case "fallback", "":
		return MissingFallback, nil
	case "reject":
		return MissingReject, nil
	default:
		return MissingFallback, fmt.Errorf("unknown missing-negotiation policy %q", s)
	}
}

var (
	// ErrSwitchReused is returned when Commit is called twice on one Switch.
	// A Switch belongs to exactly one connection.
	ErrSwitchReused = errors.New("negotiation: switch committed twice")

	// ErrNegotiationMissing is returned under MissingReject when no protocol
	// was negotiated before the first application byte.
	ErrNegotiationMissing = errors.New("negotiation: no protocol negotiated")
)

// SwitchConfig carries the fallback policy for a Switch.
type SwitchConfig struct {
	// DefaultProtocol is selected when the cell was never written and the
	// policy is MissingFallback. Default: ProtocolHTTP1.
	DefaultProtocol Protocol

	// OnMissing decides between falling back and rejecting.
	OnMissing MissingPolicy
}

// Switch is the single-use stage that commits a connection to one protocol
// pipeline.
//
// It stays a passthrough until the first unit of application data is
// observed, then reads the Cell exactly once and permanently selects the
// downstream pipeline. The observed data is replayed to the selected
// pipeline, so no bytes are lost.
type Switch struct {
	cell      *Cell
	conn      net.Conn
	cfg       SwitchConfig
	committed atomic.Bool
}

// NewSwitch creates a switch for one connection's decrypted stream.
func NewSwitch(cell *Cell, conn net.Conn, cfg SwitchConfig) *Switch {
	if cfg.DefaultProtocol == ProtocolUnset {
		cfg.DefaultProtocol = ProtocolHTTP1
	}
	return &Switch{cell: cell, conn: conn, cfg: cfg}
}

// Commit blocks until the first byte of application data arrives, reads the
// Cell once, and returns the selected protocol together with a net.Conn that
// replays the already-observed data.
//
// On a secure connection the first Read drives the TLS handshake, so the
// ALPN callback has filled the Cell by the time Peek returns. Commit never
// re-reads the cell; calling it twice returns ErrSwitchReused.
func (s *Switch) Commit() (Protocol, net.Conn, error) {
	if !s.committed.CompareAndSwap(false, true) {
		return ProtocolUnset, nil, ErrSwitchReused
	}

	br := bufio.NewReader(s.conn)
	if _, err := br.Peek(1); err != nil {
		return ProtocolUnset, nil, fmt.Errorf("waiting for first application byte: %w", err)
	}

	proto, ok := s.cell.Read()
	if !ok {
		if s.cfg.OnMissing == MissingReject {
			return ProtocolUnset, nil, ErrNegotiationMissing
		}
		proto = s.cfg.DefaultProtocol
	}

	return proto, &bufferedConn{Conn: s.conn, br: br}, nil
}

// bufferedConn replays bytes buffered during the protocol decision before
// reading from the underlying connection.
type bufferedConn struct {
	net.Conn
	br *bufio.Reader
}

func (c *bufferedConn) Read(p []byte) (int, error) {
	return c.br.Read(p)
}
