// Package admission accepts raw connections from a listener, bounds how many
// per-connection pipelines materialize concurrently, and isolates every
// per-connection failure from the listening socket.
//
// A SlotPool is the shared counter: accepting a connection consumes one slot
// and the slot is released only when that connection's pipeline has fully
// terminated. When all slots are taken the accept loop blocks before calling
// Accept again, so the (K+1)th connection does not begin materializing until
// one of the K in flight completes.
//
// Errors raised while constructing or running one connection's pipeline,
// including handshake failures, peer resets, and panics, are converted into
// a local Outcome and never reach the accept loop.
package admission
