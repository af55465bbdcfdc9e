// Package config provides 12-factor configuration for the bridge and the
// worker.
//
// Configuration is loaded from environment variables with sensible
// defaults. An optional TOML or YAML file can sit underneath: LoadFile
// starts from Default, applies the file, and lets any environment variable
// that is set win. CLI flags in cmd/ override both.
//
// Configuration Sections:
//   - Bridge: worker URL, concurrency bound, call delay, coalescing window,
//     default encoding, admission rate
//   - Worker: listen address, sandbox root, compression threshold
//   - Logging: Log level and output format
//   - RateLimit: Per-IP rate limiting of the worker HTTP surface
//
// Example Usage:
//
//	cfg := config.LoadOrDefault()
//	fmt.Printf("Worker listening on %s:%s\n", cfg.Worker.Host, cfg.Worker.Port)
//
// Environment Variables:
//   - FSBRIDGE_WORKER_URL, FSBRIDGE_CONCURRENCY, FSBRIDGE_CALL_DELAY,
//     FSBRIDGE_COALESCE_WINDOW, FSBRIDGE_ENCODING, FSBRIDGE_RATE_LIMIT
//   - FSWORKER_HOST, FSWORKER_PORT, FSWORKER_ROOT, FSWORKER_COMPRESS_THRESHOLD
//   - LOG_LEVEL, LOG_DEV
//   - RATE_LIMIT_RPS, RATE_LIMIT_BURST, RATE_LIMIT_ENABLED
package config
