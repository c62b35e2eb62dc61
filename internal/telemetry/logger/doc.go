// Package logger provides structured logging for shardmesh.
//
// It wraps log/slog:
//
//   - logger.go: handler construction, dynamic level, package default
//   - context.go: context propagation of the logger and request IDs
//   - redact.go: masking of handshake secrets and credentials
//   - hclog.go: go-hclog adapter for the gossip layer
package logger
