// Package main is the filesystem worker: the process that performs the OS
// calls a bridge cannot make itself.
//
// The worker listens for bridge connections on /ws and serves /health and
// /metrics next to it.
//
// Configuration:
//   - Environment variables (FSWORKER_*, LOG_*, RATE_LIMIT_*)
//   - An optional TOML or YAML file given with -config
//   - CLI flags (override both)
//
// Usage:
//
//	# Serve everything below /srv/projects on port 8700
//	./fsworker -root /srv/projects
//
//	# Development mode (console logs, debug level)
//	./fsworker -dev -root .
//
// Signals:
//   - SIGINT, SIGTERM: Graceful shutdown
package main
