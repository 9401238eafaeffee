// Package server ties the pipeline together: it binds listeners, runs the
// admission loop, and materializes one negotiation pipeline per accepted
// connection (TLS engine, protocol cell, switch, correlator, protocol
// engine). It also owns graceful termination: draining bindings stop
// accepting while in-flight connections run on until a deadline, after which
// survivors are force-closed.
package server
