package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics of the bridge and the worker.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	// Scheduler metrics
	SchedulerInflight prometheus.Gauge
	SchedulerQueued   prometheus.Gauge
	SchedulerAdmitted prometheus.Counter

	// Channel metrics
	ChannelCalls        *prometheus.CounterVec
	ChannelCallDuration *prometheus.HistogramVec
	ChannelStates       *prometheus.CounterVec

	// Watch metrics
	WatchFlushes      *prometheus.CounterVec
	WatchStatFailures prometheus.Counter

	// Worker metrics
	WorkerCommands    *prometheus.CounterVec
	WorkerConnections prometheus.Gauge

	// HTTP metrics (worker surface)
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	registry prometheus.Gatherer
}

// NewMetrics registers every collector on reg. A nil reg gets a fresh
// private registry, so tests never collide on the default registerer.
func NewMetrics(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		SchedulerInflight: factory.NewGauge(prometheus.GaugeOpts{
			Name: "fsbridge_scheduler_inflight",
			Help: "Number of admitted, unfinished worker calls",
		}),
		SchedulerQueued: factory.NewGauge(prometheus.GaugeOpts{
			Name: "fsbridge_scheduler_queued",
			Help: "Number of calls waiting for admission",
		}),
		SchedulerAdmitted: factory.NewCounter(prometheus.CounterOpts{
			Name: "fsbridge_scheduler_admitted_total",
			Help: "Total number of admitted calls",
		}),

		ChannelCalls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fsbridge_channel_calls_total",
				Help: "Total number of channel calls by method and outcome",
			},
			[]string{"method", "status"},
		),
		ChannelCallDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "fsbridge_channel_call_duration_seconds",
				Help:    "Channel call round-trip duration in seconds",
				Buckets: []float64{.0005, .001, .005, .01, .025, .05, .1, .25, .5, 1, 5},
			},
			[]string{"method"},
		),
		ChannelStates: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fsbridge_channel_state_transitions_total",
				Help: "Channel state transitions by target state",
			},
			[]string{"state"},
		),

		WatchFlushes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fsbridge_watch_flushes_total",
				Help: "Coalesced change callbacks by kind",
			},
			[]string{"kind"},
		),
		WatchStatFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "fsbridge_watch_stat_failures_total",
			Help: "Change callbacks suppressed because the stat failed",
		}),

		WorkerCommands: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fsbridge_worker_commands_total",
				Help: "Commands executed by the worker by name and outcome",
			},
			[]string{"command", "status"},
		),
		WorkerConnections: factory.NewGauge(prometheus.GaugeOpts{
			Name: "fsbridge_worker_connections",
			Help: "Open bridge connections on the worker",
		}),

		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fsbridge_http_requests_total",
				Help: "Total number of HTTP requests served by the worker",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "fsbridge_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
	}
}

// Gatherer exposes the registry backing m.
func (m *Metrics) Gatherer() prometheus.Gatherer {
	if m == nil {
		return prometheus.NewRegistry()
	}
	return m.registry
}

// SetScheduler records the current queue depth and in-flight count.
func (m *Metrics) SetScheduler(inflight, queued int) {
	if m == nil {
		return
	}
	m.SchedulerInflight.Set(float64(inflight))
	m.SchedulerQueued.Set(float64(queued))
}

// IncAdmitted counts one admission.
func (m *Metrics) IncAdmitted() {
	if m == nil {
		return
	}
	m.SchedulerAdmitted.Inc()
}

// RecordCall records a finished channel call.
func (m *Metrics) RecordCall(method, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.ChannelCalls.WithLabelValues(method, status).Inc()
	m.ChannelCallDuration.WithLabelValues(method).Observe(duration.Seconds())
}

// RecordState counts a channel state transition.
func (m *Metrics) RecordState(state string) {
	if m == nil {
		return
	}
	m.ChannelStates.WithLabelValues(state).Inc()
}

// RecordFlush counts a coalesced change callback ("stat" or "plain").
func (m *Metrics) RecordFlush(kind string) {
	if m == nil {
		return
	}
	m.WatchFlushes.WithLabelValues(kind).Inc()
}

// IncStatFailures counts a suppressed change callback.
func (m *Metrics) IncStatFailures() {
	if m == nil {
		return
	}
	m.WatchStatFailures.Inc()
}

// RecordCommand counts a worker command.
func (m *Metrics) RecordCommand(command, status string) {
	if m == nil {
		return
	}
	m.WorkerCommands.WithLabelValues(command, status).Inc()
}

// IncConnections increments open worker connections.
func (m *Metrics) IncConnections() {
	if m == nil {
		return
	}
	m.WorkerConnections.Inc()
}

// DecConnections decrements open worker connections.
func (m *Metrics) DecConnections() {
	if m == nil {
		return
	}
	m.WorkerConnections.Dec()
}

// RecordHTTPRequest records a worker HTTP request.
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}
