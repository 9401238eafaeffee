// Package http1 drives committed HTTP/1.1 connections. Requests are decoded
// one at a time off the wire, handed to the connection's correlator, and the
// responses written back in request order, which for a non-multiplexed
// protocol is the only order the peer can interpret.
package http1
