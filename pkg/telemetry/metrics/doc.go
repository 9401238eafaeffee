// Package metrics exposes Prometheus metrics for the connection pipeline:
// admissions, protocol commitments, handshakes, in-flight requests and their
// latencies. The collector owns a private registry so tests and embedders
// never collide on the global default.
package metrics
