package config

import "time"

// Default values applied by ApplyDefaults.
const (
	DefaultAddress         = "127.0.0.1:8443"
	DefaultMaxConnections  = 1024
	DefaultParallelism     = 1
	DefaultIdleTimeout     = 2 * time.Minute
	DefaultShutdownTimeout = 30 * time.Second

	DefaultProtocol  = "http/1.1"
	DefaultOnMissing = "fallback"

	DefaultTLSMinVersion       = "1.2"
	DefaultExpiryCheckSchedule = "0 6 * * *"

	DefaultJournalBackend   = "memory"
	DefaultJournalBuffer    = 1000
	DefaultJournalRetention = 30
	DefaultJournalPruneCron = "0 3 * * *"

	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"

	DefaultMetricsAddress   = "127.0.0.1:9090"
	DefaultMetricsNamespace = "switchboard"
	DefaultMetricsSubsystem = "server"
)

// ApplyDefaults fills zero-valued fields with defaults. Explicit values are
// never overwritten.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Address == "" {
		cfg.Server.Address = DefaultAddress
	}
	if cfg.Server.MaxConnections == 0 {
		cfg.Server.MaxConnections = DefaultMaxConnections
	}
	if cfg.Server.Parallelism == 0 {
		cfg.Server.Parallelism = DefaultParallelism
	}
	if cfg.Server.IdleTimeout == 0 {
		cfg.Server.IdleTimeout = DefaultIdleTimeout
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = DefaultShutdownTimeout
	}

	if cfg.Negotiation.DefaultProtocol == "" {
		cfg.Negotiation.DefaultProtocol = DefaultProtocol
	}
	if cfg.Negotiation.OnMissing == "" {
		cfg.Negotiation.OnMissing = DefaultOnMissing
	}

	if cfg.Security.TLS.MinVersion == "" {
		cfg.Security.TLS.MinVersion = DefaultTLSMinVersion
	}
	if cfg.Security.TLS.ExpiryCheckSchedule == "" {
		cfg.Security.TLS.ExpiryCheckSchedule = DefaultExpiryCheckSchedule
	}

	if cfg.Journal.Backend == "" {
		cfg.Journal.Backend = DefaultJournalBackend
	}
	if cfg.Journal.AsyncBuffer == 0 {
		cfg.Journal.AsyncBuffer = DefaultJournalBuffer
	}
	if cfg.Journal.RetentionDays == 0 {
		cfg.Journal.RetentionDays = DefaultJournalRetention
	}
	if cfg.Journal.PruneSchedule == "" {
		cfg.Journal.PruneSchedule = DefaultJournalPruneCron
	}

	if cfg.Telemetry.Logging.Level == "" {
		cfg.Telemetry.Logging.Level = DefaultLogLevel
	}
	if cfg.Telemetry.Logging.Format == "" {
		cfg.Telemetry.Logging.Format = DefaultLogFormat
	}

	if cfg.Telemetry.Metrics.Address == "" {
		cfg.Telemetry.Metrics.Address = DefaultMetricsAddress
	}
	if cfg.Telemetry.Metrics.Namespace == "" {
		cfg.Telemetry.Metrics.Namespace = DefaultMetricsNamespace
	}
	if cfg.Telemetry.Metrics.Subsystem == "" {
		cfg.Telemetry.Metrics.Subsystem = DefaultMetricsSubsystem
	}
}

// DefaultConfig returns a configuration with every default applied.
func DefaultConfig() *Config {
	var cfg Config
	ApplyDefaults(&cfg)
	return &cfg
}
