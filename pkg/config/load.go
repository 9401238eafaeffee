package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// LoadConfig reads the YAML file at path, applies defaults and validates.
// Environment overrides are not applied; use LoadConfigWithEnvOverrides for
// that.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading configuration file %q: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration file %q: %w", path, err)
	}

	ApplyDefaults(&cfg)
	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadConfigWithEnvOverrides loads configuration from a YAML file and then
// applies SWITCHBOARD_* environment overrides, which always win over the
// file. The result is re-validated after overriding.
func LoadConfigWithEnvOverrides(path string) (*Config, error) {
	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)
	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("after environment overrides: %w", err)
	}
	return cfg, nil
}

// applyEnvOverrides applies SWITCHBOARD_SECTION_FIELD environment variables.
func applyEnvOverrides(cfg *Config) {
	setString := func(key string, dst *string) {
		if val := os.Getenv(key); val != "" {
			*dst = val
		}
	}
	setInt := func(key string, dst *int) {
		if val := os.Getenv(key); val != "" {
			if i, err := strconv.Atoi(val); err == nil {
				*dst = i
			}
		}
	}
	setBool := func(key string, dst *bool) {
		if val := os.Getenv(key); val != "" {
			if b, err := strconv.ParseBool(val); err == nil {
				*dst = b
			}
		}
	}
	setDuration := func(key string, dst *time.Duration) {
		if val := os.Getenv(key); val != "" {
			if d, err := time.ParseDuration(val); err == nil {
				*dst = d
			}
		}
	}

	setString("SWITCHBOARD_SERVER_ADDRESS", &cfg.Server.Address)
	setInt("SWITCHBOARD_SERVER_MAX_CONNECTIONS", &cfg.Server.MaxConnections)
	setInt("SWITCHBOARD_SERVER_PARALLELISM", &cfg.Server.Parallelism)
	setDuration("SWITCHBOARD_SERVER_IDLE_TIMEOUT", &cfg.Server.IdleTimeout)
	setDuration("SWITCHBOARD_SERVER_SHUTDOWN_TIMEOUT", &cfg.Server.ShutdownTimeout)

	setString("SWITCHBOARD_NEGOTIATION_DEFAULT_PROTOCOL", &cfg.Negotiation.DefaultProtocol)
	setString("SWITCHBOARD_NEGOTIATION_ON_MISSING", &cfg.Negotiation.OnMissing)

	setBool("SWITCHBOARD_TLS_ENABLED", &cfg.Security.TLS.Enabled)
	setString("SWITCHBOARD_TLS_CERT_FILE", &cfg.Security.TLS.CertFile)
	setString("SWITCHBOARD_TLS_KEY_FILE", &cfg.Security.TLS.KeyFile)
	setString("SWITCHBOARD_TLS_MIN_VERSION", &cfg.Security.TLS.MinVersion)
	setBool("SWITCHBOARD_TLS_WATCH_CERTS", &cfg.Security.TLS.WatchCerts)

	setBool("SWITCHBOARD_JOURNAL_ENABLED", &cfg.Journal.Enabled)
	setString("SWITCHBOARD_JOURNAL_BACKEND", &cfg.Journal.Backend)
	setString("SWITCHBOARD_JOURNAL_PATH", &cfg.Journal.Path)
	setInt("SWITCHBOARD_JOURNAL_RETENTION_DAYS", &cfg.Journal.RetentionDays)

	setString("SWITCHBOARD_LOG_LEVEL", &cfg.Telemetry.Logging.Level)
	setString("SWITCHBOARD_LOG_FORMAT", &cfg.Telemetry.Logging.Format)
	setBool("SWITCHBOARD_METRICS_ENABLED", &cfg.Telemetry.Metrics.Enabled)
	setString("SWITCHBOARD_METRICS_ADDRESS", &cfg.Telemetry.Metrics.Address)
}
