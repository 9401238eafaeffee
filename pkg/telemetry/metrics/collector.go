package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Config configures the metrics collector.
type Config struct {
	// Enabled turns metric recording on. A disabled collector still exists
	// so call sites never nil-check.
	Enabled bool

	// Namespace and Subsystem prefix every metric name.
	Namespace string
	Subsystem string

	// DurationBuckets are the histogram buckets for request latencies, in
	// seconds.
	DurationBuckets []float64
}

// DefaultConfig returns the default metrics configuration.
func DefaultConfig() *Config {
	return &Config{
		Enabled:   true,
		Namespace: "switchboard",
		Subsystem: "server",
	}
}

// Collector records pipeline metrics into its own registry.
type Collector struct {
	config   *Config
	registry *prometheus.Registry

	connectionsAccepted *prometheus.CounterVec
	connectionsActive   prometheus.Gauge
	connectionsRejected *prometheus.CounterVec
	slotWaitSeconds     prometheus.Histogram
	protocolCommitted   *prometheus.CounterVec
	handshakeFailures   prometheus.Counter
	requestsTotal       *prometheus.CounterVec
	requestDuration     *prometheus.HistogramVec
	panicsRecovered     prometheus.Counter
}

// NewCollector creates a collector. A nil registry gets a private one.
func NewCollector(cfg *Config, registry *prometheus.Registry) *Collector {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.Namespace == "" {
		cfg.Namespace = "switchboard"
	}
	if cfg.Subsystem == "" {
		cfg.Subsystem = "server"
	}
	if len(cfg.DurationBuckets) == 0 {
		cfg.DurationBuckets = []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 5.0}
	}
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	c := &Collector{
		config:   cfg,
		registry: registry,

		connectionsAccepted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "connections_accepted_total",
			Help:      "Connections admitted past the concurrency gate.",
		}, []string{"binding"}),

		connectionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "connections_active",
			Help:      "Connections currently holding an admission slot.",
		}),

		connectionsRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "connections_failed_total",
			Help:      "Connections that ended with a local failure.",
		}, []string{"reason"}),

		slotWaitSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "slot_wait_seconds",
			Help:      "Time spent waiting for an admission slot before accept.",
			Buckets:   []float64{0.0001, 0.001, 0.01, 0.1, 1.0, 10.0},
		}),

		protocolCommitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "protocol_committed_total",
			Help:      "Connections committed to a protocol pipeline.",
		}, []string{"protocol", "negotiated"}),

		handshakeFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "handshake_failures_total",
			Help:      "TLS handshakes that did not complete.",
		}),

		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "requests_total",
			Help:      "Logical requests handled, by protocol and status.",
		}, []string{"protocol", "status"}),

		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "request_duration_seconds",
			Help:      "Handler latency per logical request.",
			Buckets:   cfg.DurationBuckets,
		}, []string{"protocol"}),

		panicsRecovered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "panics_recovered_total",
			Help:      "Connection pipelines that panicked and were contained.",
		}),
	}

	registry.MustRegister(
		c.connectionsAccepted,
		c.connectionsActive,
		c.connectionsRejected,
		c.slotWaitSeconds,
		c.protocolCommitted,
		c.handshakeFailures,
		c.requestsTotal,
		c.requestDuration,
		c.panicsRecovered,
	)
	return c
}

// Registry returns the collector's registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler returns an HTTP handler serving the collector's registry.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// ConnectionAccepted records an admitted connection on the named binding.
func (c *Collector) ConnectionAccepted(binding string) {
	if !c.config.Enabled {
		return
	}
	c.connectionsAccepted.WithLabelValues(binding).Inc()
	c.connectionsActive.Inc()
}

// ConnectionClosed records a connection releasing its slot.
func (c *Collector) ConnectionClosed() {
	if !c.config.Enabled {
		return
	}
	c.connectionsActive.Dec()
}

// ConnectionFailed records a connection that ended with a local failure.
func (c *Collector) ConnectionFailed(reason string) {
	if !c.config.Enabled {
		return
	}
	c.connectionsRejected.WithLabelValues(reason).Inc()
}

// SlotWait records how long the accept loop waited for a free slot.
func (c *Collector) SlotWait(d time.Duration) {
	if !c.config.Enabled {
		return
	}
	c.slotWaitSeconds.Observe(d.Seconds())
}

// ProtocolCommitted records a protocol commitment. negotiated is false when
// the fallback protocol was applied.
func (c *Collector) ProtocolCommitted(protocol string, negotiated bool) {
	if !c.config.Enabled {
		return
	}
	label := "false"
	if negotiated {
		label = "true"
	}
	c.protocolCommitted.WithLabelValues(protocol, label).Inc()
}

// HandshakeFailed records a failed TLS handshake.
func (c *Collector) HandshakeFailed() {
	if !c.config.Enabled {
		return
	}
	c.handshakeFailures.Inc()
}

// RequestCompleted records one handled request.
func (c *Collector) RequestCompleted(protocol, status string, d time.Duration) {
	if !c.config.Enabled {
		return
	}
	c.requestsTotal.WithLabelValues(protocol, status).Inc()
	c.requestDuration.WithLabelValues(protocol).Observe(d.Seconds())
}

// PanicRecovered records a contained pipeline panic.
func (c *Collector) PanicRecovered() {
	if !c.config.Enabled {
		return
	}
	c.panicsRecovered.Inc()
}
