package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// MetricsRegistry holds all Prometheus metrics of the dispatch service. A nil
// *MetricsRegistry is valid and records nothing.
type MetricsRegistry struct {
	// HTTP Metrics
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight *prometheus.GaugeVec

	// Cache Metrics
	CacheHitsTotal   *prometheus.CounterVec
	CacheMissesTotal *prometheus.CounterVec

	// Route engine metrics
	RouteTransitionsTotal *prometheus.CounterVec
	CascadeOutcomesTotal  *prometheus.CounterVec
	PredictedDelay        prometheus.Histogram
	OptimizationRoutes    *prometheus.CounterVec

	// Outbox / event stream
	OutboxRelayedTotal  prometheus.Counter
	OutboxErrorsTotal   prometheus.Counter
	AuditConsumedTotal  *prometheus.CounterVec
	OutboxPendingEvents prometheus.Gauge
	StreamLength        *prometheus.GaugeVec
	StreamPending       *prometheus.GaugeVec

	// Background jobs
	JobDuration      *prometheus.HistogramVec
	JobTenantResults *prometheus.CounterVec
}

// NewMetricsRegistry registers every metric with reg
func NewMetricsRegistry(reg prometheus.Registerer) *MetricsRegistry {
	factory := promauto.With(reg)

	return &MetricsRegistry{
		// HTTP Metrics
		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dispatch_http_requests_total",
				Help: "Total HTTP requests processed by endpoint, method, and status code",
			},
			[]string{"endpoint", "method", "status_code"},
		),
		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "dispatch_http_request_duration_seconds",
				Help:    "HTTP request latency distribution in seconds",
				Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
			[]string{"endpoint", "method"},
		),
		HTTPRequestsInFlight: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "dispatch_http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed",
			},
			[]string{"method"},
		),

		// Cache Metrics
		CacheHitsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dispatch_cache_hits_total",
				Help: "Total cache hits by cache key pattern",
			},
			[]string{"cache_key_pattern"},
		),
		CacheMissesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dispatch_cache_misses_total",
				Help: "Total cache misses by cache key pattern",
			},
			[]string{"cache_key_pattern"},
		),

		RouteTransitionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dispatch_route_transitions_total",
				Help: "Route status transitions by source and target status",
			},
			[]string{"from", "to"},
		),
		CascadeOutcomesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dispatch_cascade_outcomes_total",
				Help: "Per-item outcomes of absence and series cascades",
			},
			[]string{"cascade", "outcome"},
		),
		PredictedDelay: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "dispatch_predicted_delay_seconds",
				Help:    "Delay of in-progress routes when a delay is predicted",
				Buckets: []float64{300, 600, 900, 1200, 1800, 2700, 3600},
			},
		),
		OptimizationRoutes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dispatch_optimization_routes_total",
				Help: "Routes created or failed while applying optimization results",
			},
			[]string{"result"},
		),

		OutboxRelayedTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "dispatch_outbox_relayed_total",
				Help: "Outbox events published to the event stream",
			},
		),
		OutboxErrorsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "dispatch_outbox_errors_total",
				Help: "Failed outbox relay attempts",
			},
		),
		AuditConsumedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dispatch_audit_events_consumed_total",
				Help: "Events consumed by the audit log consumer by event type",
			},
			[]string{"event_type"},
		),
		OutboxPendingEvents: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "dispatch_outbox_pending_events",
				Help: "Outbox events seen unpublished in the last relay pass",
			},
		),
		StreamLength: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "dispatch_stream_length",
				Help: "Entries in each event stream",
			},
			[]string{"stream"},
		),
		StreamPending: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "dispatch_stream_pending",
				Help: "Delivered but unacknowledged entries per stream and consumer group",
			},
			[]string{"stream", "group"},
		),

		JobDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "dispatch_job_duration_seconds",
				Help:    "Background job execution time in seconds",
				Buckets: []float64{0.5, 1, 5, 10, 30, 60, 120, 300, 600},
			},
			[]string{"job_name"},
		),
		JobTenantResults: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dispatch_job_tenant_results_total",
				Help: "Per-company job results",
			},
			[]string{"job_name", "result"},
		),
	}
}

func (m *MetricsRegistry) ObserveTransition(from, to string) {
	if m == nil {
		return
	}
	m.RouteTransitionsTotal.WithLabelValues(from, to).Inc()
}

func (m *MetricsRegistry) ObserveCascade(cascade, outcome string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.CascadeOutcomesTotal.WithLabelValues(cascade, outcome).Add(float64(n))
}

func (m *MetricsRegistry) ObserveDelay(d time.Duration) {
	if m == nil {
		return
	}
	m.PredictedDelay.Observe(d.Seconds())
}

func (m *MetricsRegistry) ObserveOptimization(result string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.OptimizationRoutes.WithLabelValues(result).Add(float64(n))
}

func (m *MetricsRegistry) ObserveCache(pattern string, hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.CacheHitsTotal.WithLabelValues(pattern).Inc()
	} else {
		m.CacheMissesTotal.WithLabelValues(pattern).Inc()
	}
}

func (m *MetricsRegistry) ObserveRelay(published int, pending int, failed bool) {
	if m == nil {
		return
	}
	m.OutboxRelayedTotal.Add(float64(published))
	m.OutboxPendingEvents.Set(float64(pending))
	if failed {
		m.OutboxErrorsTotal.Inc()
	}
}

func (m *MetricsRegistry) ObserveAudit(eventType string) {
	if m == nil {
		return
	}
	m.AuditConsumedTotal.WithLabelValues(eventType).Inc()
}

// ObserveStream records the last measured size of a stream
func (m *MetricsRegistry) ObserveStream(stream, group string, length, pending int64) {
	if m == nil {
		return
	}
	m.StreamLength.WithLabelValues(stream).Set(float64(length))
	m.StreamPending.WithLabelValues(stream, group).Set(float64(pending))
}

// ObserveJob records a job run and its per-company results
func (m *MetricsRegistry) ObserveJob(job string, took time.Duration, succeeded, failed int) {
	if m == nil {
		return
	}
	m.JobDuration.WithLabelValues(job).Observe(took.Seconds())
	m.JobTenantResults.WithLabelValues(job, "success").Add(float64(succeeded))
	m.JobTenantResults.WithLabelValues(job, "failed").Add(float64(failed))
}
