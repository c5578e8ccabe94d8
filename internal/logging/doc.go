// Package logging assembles structured slog loggers and formatting helpers used
// across kubeport processes.
//
// It owns the configurable console/JSON handlers used by the detached daemon,
// the compose status handler that writes the one-record-per-line stream read
// by the Docker Compose host, and the fanout handler that lets the short lived
// launcher processes write to both at once. The package also provides a no-op
// logger for tests and wiring code that cannot fail.
//
// Prefer these constructors over hand-rolled slog setup to ensure new
// components emit data with the same shape and routing guarantees as the rest
// of the system.
package logging
