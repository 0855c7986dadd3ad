// Package logger provides structured logging for kvmesh.
//
// It wraps log/slog:
//
//   - logger.go: Logger interface, handler setup, runtime level changes
//   - context.go: context propagation of the logger and connection ids
//   - clip.go: truncation of oversized attribute values
//
// Network components take a *slog.Logger obtained with Slog so they can be
// used without this package.
package logger
