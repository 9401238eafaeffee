// Package config defines the YAML configuration surface: the listener, the
// negotiation policy, TLS, the connection journal and telemetry. Loading
// applies defaults, then environment overrides, then validates the result as
// a whole so an operator sees every problem in one pass.
package config
