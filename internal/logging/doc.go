// Package logging assembles structured slog loggers and formatting helpers used
// across thermolog services.
//
// It owns the configurable console/JSON handlers, centralizes level and output
// plumbing (including size-based rotation of log files), and exposes helpers
// so components tag log lines with a component name, queue entry IDs, and the
// event_type/error_hint/impact triple used for warnings. The package also
// provides a no-op logger for tests and wiring code that cannot fail.
//
// Prefer these constructors over hand-rolled slog setup so new components emit
// data with the same shape as the rest of the system.
package logging
