// Package correlate tags each logical request on a connection with a
// correlation identifier, invokes the application handler with bounded
// concurrency, and re-attaches the identifier to each response so the
// protocol engine can route it onto the correct logical stream regardless of
// completion order.
//
// A Correlator is connection-scoped: its ledger and sequence counter are
// never shared across connections, so no cross-connection locking exists
// here. Responses are emitted as soon as they are ready, in arbitrary
// completion order; reordering is expected and the identifier, not arrival
// order, is what associates a response with its request.
package correlate
