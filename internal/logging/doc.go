// Package logging provides structured logging helpers built on log/slog.
//
// It defines the attribute keys shared across the codebase so log output
// stays greppable, plus sanitizers for values that must never appear in
// logs verbatim (OAuth tokens).
package logging
