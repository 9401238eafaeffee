// Package http2 drives committed HTTP/2 connections. The framing, stream
// state machine and flow control come from golang.org/x/net/http2; each
// stream's request is handed to the connection's correlator, whose
// parallelism bound is the per-connection concurrency limit. Responses leave
// on their own streams as they complete, so a slow stream never blocks a
// fast one.
package http2
