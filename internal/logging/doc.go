// Package logging assembles structured slog loggers and formatting helpers used
// across hydrator.
//
// It owns the console and JSON handlers, centralizes level and output
// plumbing, and tags log lines with the resolution run identifier carried on
// the context. A no-op logger is provided for tests and optional wiring.
package logging
