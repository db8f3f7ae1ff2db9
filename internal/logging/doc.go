// Package logging assembles the structured slog loggers used across darkroom.
//
// It owns the console and JSON handlers and centralizes level parsing so the
// daemon, CLI, and tests emit log lines with the same shape. Prefer these
// constructors over hand-rolled slog setup.
package logging
