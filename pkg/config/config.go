package config

import "time"

// Config is the root configuration.
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Negotiation NegotiationConfig `yaml:"negotiation"`
	Security    SecurityConfig    `yaml:"security"`
	Journal     JournalConfig     `yaml:"journal"`
	Telemetry   TelemetryConfig   `yaml:"telemetry"`
}

// ServerConfig configures the listener and per-connection limits.
type ServerConfig struct {
	// Address is the listen address, host:port.
	Address string `yaml:"address"`

	// MaxConnections caps concurrently admitted connections. Default: 1024.
	MaxConnections int `yaml:"max_connections"`

	// Parallelism bounds concurrent request handling per multiplexed
	// connection. Default: 1.
	Parallelism int `yaml:"parallelism"`

	// IdleTimeout closes a connection with no request activity. Zero
	// disables it. Default: 2m.
	IdleTimeout time.Duration `yaml:"idle_timeout"`

	// ShutdownTimeout is how long Terminate waits for in-flight connections
	// before force-closing them. Default: 30s.
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// NegotiationConfig configures protocol selection.
type NegotiationConfig struct {
	// DefaultProtocol is applied when the peer negotiates nothing.
	// "http/1.1" or "h2". Default: "http/1.1".
	DefaultProtocol string `yaml:"default_protocol"`

	// OnMissing decides what happens when no protocol was negotiated by the
	// time application data arrives: "fallback" or "reject".
	// Default: "fallback".
	OnMissing string `yaml:"on_missing"`
}

// SecurityConfig groups security settings.
type SecurityConfig struct {
	TLS TLSConfig `yaml:"tls"`
}

// TLSConfig configures the secure listener.
type TLSConfig struct {
	// Enabled turns TLS on. When false the listener is plaintext and
	// protocol selection always falls back.
	Enabled bool `yaml:"enabled"`

	// CertFile and KeyFile are the PEM certificate and key paths.
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`

	// MinVersion is the minimum TLS version ("1.2", "1.3"). Default: "1.2".
	MinVersion string `yaml:"min_version"`

	// WatchCerts reloads the certificate when the files change on disk.
	WatchCerts bool `yaml:"watch_certs"`

	// ExpiryCheckSchedule is a cron expression for certificate expiry
	// checks. Empty disables them. Default: "0 6 * * *".
	ExpiryCheckSchedule string `yaml:"expiry_check_schedule"`
}

// JournalConfig configures the connection journal.
type JournalConfig struct {
	// Enabled turns journaling on.
	Enabled bool `yaml:"enabled"`

	// Backend selects the storage backend: "memory" or "sqlite".
	// Default: "memory".
	Backend string `yaml:"backend"`

	// Path is the sqlite database file. Required for the sqlite backend.
	Path string `yaml:"path"`

	// AsyncBuffer is the recorder's write buffer size. Default: 1000.
	AsyncBuffer int `yaml:"async_buffer"`

	// RetentionDays is how long records are kept. 0 keeps them forever.
	// Default: 30.
	RetentionDays int `yaml:"retention_days"`

	// PruneSchedule is a cron expression for automatic pruning. Empty
	// disables it. Default: "0 3 * * *".
	PruneSchedule string `yaml:"prune_schedule"`

	// MaxRecords caps total stored records. 0 means unlimited.
	MaxRecords int64 `yaml:"max_records"`
}

// TelemetryConfig groups logging and metrics.
type TelemetryConfig struct {
	Logging LoggingConfig `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// LoggingConfig configures the structured logger.
type LoggingConfig struct {
	// Level is the minimum level: "debug", "info", "warn", "error".
	// Default: "info".
	Level string `yaml:"level"`

	// Format is "json" or "text". Default: "json".
	Format string `yaml:"format"`

	// AddSource includes file:line in each record.
	AddSource bool `yaml:"add_source"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	// Enabled turns metrics on.
	Enabled bool `yaml:"enabled"`

	// Address is the listen address of the metrics endpoint.
	// Default: "127.0.0.1:9090".
	Address string `yaml:"address"`

	// Namespace and Subsystem prefix metric names.
	Namespace string `yaml:"namespace"`
	Subsystem string `yaml:"subsystem"`
}
