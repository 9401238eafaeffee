// Package pipeline defines the request, response, and handler types shared
// by the protocol pipelines and the embedding application.
//
// The wire-level engines live in the http1 and http2 subpackages; this
// package is deliberately free of transport concerns so the correlator and
// the pipelines can both depend on it.
package pipeline
