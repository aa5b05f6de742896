// Package logging wraps zap with the project's logger configuration:
// JSON output in production, console output in development, and named
// sub-loggers per subsystem.
package logging
