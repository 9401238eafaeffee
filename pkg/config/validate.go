package config

import (
	"fmt"
	"net"
	"strings"

	"github.com/robfig/cron/v3"
)

// FieldError is a validation error for one configuration field.
type FieldError struct {
	// Field is the dotted path to the field (e.g., "server.address").
	Field string

	// Message is a human-readable description.
	Message string
}

// Error returns the formatted field error.
func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError aggregates every field error found in a configuration.
type ValidationError struct {
	Errors []FieldError
}

// Error returns all field errors in one message.
func (e ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "configuration validation failed"
	}
	if len(e.Errors) == 1 {
		return fmt.Sprintf("configuration validation failed: %s", e.Errors[0].Error())
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "configuration validation failed with %d errors:\n", len(e.Errors))
	for _, err := range e.Errors {
		fmt.Fprintf(&sb, "  - %s\n", err.Error())
	}
	return sb.String()
}

// Validate checks the whole configuration and collects every violation
// before returning.
func Validate(cfg *Config) error {
	var errs []FieldError

	errs = append(errs, validateServer(&cfg.Server)...)
	errs = append(errs, validateNegotiation(&cfg.Negotiation)...)
	errs = append(errs, validateTLS(&cfg.Security.TLS)...)
	errs = append(errs, validateJournal(&cfg.Journal)...)
	errs = append(errs, validateTelemetry(&cfg.Telemetry)...)

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}
	return nil
}

func validateServer(cfg *ServerConfig) []FieldError {
	var errs []FieldError

	if cfg.Address == "" {
		errs = append(errs, FieldError{"server.address", "listen address is required"})
	} else if _, _, err := net.SplitHostPort(cfg.Address); err != nil {
		errs = append(errs, FieldError{"server.address", fmt.Sprintf("invalid host:port: %v", err)})
	}
	if cfg.MaxConnections < 1 {
		errs = append(errs, FieldError{"server.max_connections", "must be at least 1"})
	}
	if cfg.Parallelism < 1 {
		errs = append(errs, FieldError{"server.parallelism", "must be at least 1"})
	}
	if cfg.IdleTimeout < 0 {
		errs = append(errs, FieldError{"server.idle_timeout", "must not be negative"})
	}
	if cfg.ShutdownTimeout < 0 {
		errs = append(errs, FieldError{"server.shutdown_timeout", "must not be negative"})
	}
	return errs
}

func validateNegotiation(cfg *NegotiationConfig) []FieldError {
	var errs []FieldError

	switch cfg.DefaultProtocol {
	case "http/1.1", "h2":
	default:
		errs = append(errs, FieldError{"negotiation.default_protocol",
			fmt.Sprintf("must be %q or %q, got %q", "http/1.1", "h2", cfg.DefaultProtocol)})
	}
	switch cfg.OnMissing {
	case "fallback", "reject":
	default:
		errs = append(errs, FieldError{"negotiation.on_missing",
			fmt.Sprintf("must be %q or %q, got %q", "fallback", "reject", cfg.OnMissing)})
	}
	return errs
}

func validateTLS(cfg *TLSConfig) []FieldError {
	var errs []FieldError

	if cfg.Enabled {
		if cfg.CertFile == "" {
			errs = append(errs, FieldError{"security.tls.cert_file", "required when TLS is enabled"})
		}
		if cfg.KeyFile == "" {
			errs = append(errs, FieldError{"security.tls.key_file", "required when TLS is enabled"})
		}
	}
	switch cfg.MinVersion {
	case "", "1.2", "1.3":
	default:
		errs = append(errs, FieldError{"security.tls.min_version",
			fmt.Sprintf("must be \"1.2\" or \"1.3\", got %q", cfg.MinVersion)})
	}
	if cfg.ExpiryCheckSchedule != "" {
		if _, err := cron.ParseStandard(cfg.ExpiryCheckSchedule); err != nil {
			errs = append(errs, FieldError{"security.tls.expiry_check_schedule",
				fmt.Sprintf("invalid cron expression: %v", err)})
		}
	}
	return errs
}

func validateJournal(cfg *JournalConfig) []FieldError {
	var errs []FieldError

	switch cfg.Backend {
	case "memory", "sqlite":
	default:
		errs = append(errs, FieldError{"journal.backend",
			fmt.Sprintf("must be \"memory\" or \"sqlite\", got %q", cfg.Backend)})
	}
	if cfg.Backend == "sqlite" && cfg.Path == "" {
		errs = append(errs, FieldError{"journal.path", "required for the sqlite backend"})
	}
	if cfg.AsyncBuffer < 1 {
		errs = append(errs, FieldError{"journal.async_buffer", "must be at least 1"})
	}
	if cfg.RetentionDays < 0 {
		errs = append(errs, FieldError{"journal.retention_days", "must not be negative"})
	}
	if cfg.MaxRecords < 0 {
		errs = append(errs, FieldError{"journal.max_records", "must not be negative"})
	}
	if cfg.PruneSchedule != "" {
		if _, err := cron.ParseStandard(cfg.PruneSchedule); err != nil {
			errs = append(errs, FieldError{"journal.prune_schedule",
				fmt.Sprintf("invalid cron expression: %v", err)})
		}
	}
	return errs
}

func validateTelemetry(cfg *TelemetryConfig) []FieldError {
	var errs []FieldError

	switch cfg.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, FieldError{"telemetry.logging.level",
			fmt.Sprintf("unknown level %q", cfg.Logging.Level)})
	}
	switch cfg.Logging.Format {
	case "json", "text":
	default:
		errs = append(errs, FieldError{"telemetry.logging.format",
			fmt.Sprintf("unknown format %q", cfg.Logging.Format)})
	}

	if cfg.Metrics.Enabled {
		if _, _, err := net.SplitHostPort(cfg.Metrics.Address); err != nil {
			errs = append(errs, FieldError{"telemetry.metrics.address",
				fmt.Sprintf("invalid host:port: %v", err)})
		}
	}
	return errs
}
