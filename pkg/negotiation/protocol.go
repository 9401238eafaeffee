package negotiation

import "fmt"

// Protocol identifies the application protocol spoken on a connection.
type Protocol int

const (
	// ProtocolUnset means no protocol has been negotiated yet.
	ProtocolUnset Protocol = iota

	// ProtocolHTTP1 is HTTP/1.1.
	ProtocolHTTP1

	// ProtocolHTTP2 is HTTP/2.
	ProtocolHTTP2
)

// ALPN protocol identifiers as registered with IANA.
const (
	ALPNHTTP1 = "http/1.1"
	ALPNHTTP2 = "h2"
)

// String returns the ALPN identifier for the protocol.
func (p Protocol) String() string {
	switch p {
	case ProtocolHTTP1:
		return ALPNHTTP1
	case ProtocolHTTP2:
		return ALPNHTTP2
	default:
		return "unset"
	}
}

// Multiplexed reports whether the protocol carries multiple concurrent
// logical requests over one connection.
func (p Protocol) Multiplexed() bool {
	return p == ProtocolHTTP2
}

// FromALPN maps a negotiated ALPN string to a Protocol.
// An empty string means the peer did not negotiate and maps to ProtocolUnset.
func FromALPN(alpn string) (Protocol, error) {
	switch alpn {
	case ALPNHTTP1:
		return ProtocolHTTP1, nil
	case ALPNHTTP2:
		return ProtocolHTTP2, nil
	case "":
		return ProtocolUnset, nil
	default:
		return ProtocolUnset, fmt.Errorf("unsupported ALPN protocol %q", alpn)
	}
}

// ParseProtocol parses a configuration value ("http/1.1" or "h2") into a
// Protocol. Unlike FromALPN, an empty string is an error here.
func ParseProtocol(s string) (Protocol, error) {
	switch s {
	case ALPNHTTP1, "http1":
		return ProtocolHTTP1, nil
	case ALPNHTTP2, "http2":
		return ProtocolHTTP2, nil
	default:
		return ProtocolUnset, fmt.Errorf("unknown protocol %q", s)
	}
}
