/*
Package monitoring provides Prometheus metrics for the bridge and the worker.

# Overview

Collectors are registered on a caller-supplied registry through
promauto.With, never on the global default, so that several bridges (and
tests) can live in one process.

# Metrics

- Scheduler: in-flight count, queue depth, admissions
- Channel: calls by method and status, round-trip latency, state transitions
- Watch: coalesced callbacks by kind, suppressed stat failures
- Worker: commands by name and status, open connections, HTTP requests

# Usage

	metrics := monitoring.NewMetrics(prometheus.NewRegistry())
	router.Use(monitoring.Middleware(metrics))
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(metrics.Gatherer(), promhttp.HandlerOpts{})))

Every method is safe on a nil *Metrics.
*/
package monitoring
