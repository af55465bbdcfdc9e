// Package logging provides structured logging for the bridge and the worker
// using uber/zap.
//
// Two modes are supported:
//   - Production: JSON output on stderr
//   - Development: colored console output, debug level
//
// The worker writes protocol frames on its own connection, never on stdout,
// but logs still default to stderr so that a worker launched as a child
// process keeps stdout free for its parent.
//
// Example Usage:
//
//	logger := logging.NewDefault()
//	logger.Info("Worker listening", zap.String("addr", addr))
//	logger.Warn("Stat failed during flush", zap.String("path", p), zap.Error(err))
package logging
