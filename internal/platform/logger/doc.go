// Package logger configures the application's structured logger.
//
// It uses the standard library log/slog package with a JSON or text handler
// and a level taken from configuration.
package logger
