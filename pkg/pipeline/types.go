package pipeline

import (
	"context"
	"net"
	"net/http"

	"switchboard-net/switchboard/pkg/negotiation"
)

// Request is one logical request observed on a connection, decoded by a
// protocol pipeline.
type Request struct {
	// CorrelationID links the eventual response back to this request. It is
	// unique within the connection's lifetime.
	CorrelationID string

	// ConnID identifies the connection the request arrived on.
	ConnID string

	// Protocol is the protocol the connection committed to.
	Protocol negotiation.Protocol

	// Method, Path and Header carry the decoded request line and headers.
	Method string
	Path   string
	Header http.Header

	// Body is the fully read request body.
	Body []byte

	// RemoteAddr is the peer address.
	RemoteAddr net.Addr
}

// Response is the handler's answer to one Request.
type Response struct {
	// StatusCode is the HTTP status code. Zero defaults to 200.
	StatusCode int

	// Header carries response headers.
	Header http.Header

	// Body is the response body.
	Body []byte
}

// Handler computes a response for one request. It is supplied by the
// embedding application and may be invoked concurrently, both across
// connections and (up to the configured parallelism) within one multiplexed
// connection.
type Handler interface {
	Handle(ctx context.Context, req *Request) (*Response, error)
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, req *Request) (*Response, error)

// Handle calls f.
func (f HandlerFunc) Handle(ctx context.Context, req *Request) (*Response, error) {
	return f(ctx, req)
}
