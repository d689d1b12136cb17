// Package metrics provides the Prometheus instrumentation shared by every
// subsystem: a per-subsystem counter/histogram bundle registered against a
// caller-supplied registry, grounded on the teacher's
// datastorage/metrics.NewMetricsWithRegistry pattern so tests can assert
// against an isolated registry instead of the global default one.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles the counters and histograms recorded across the tracking,
// anomaly, pattern, alerting, AI and health subsystems. A nil *Metrics is
// valid: every Record method is a no-op on a nil receiver, so collaborators
// can carry an optional metrics field without guarding every call site.
type Metrics struct {
	TrackingSessionsStarted *prometheus.CounterVec
	AnomaliesDetectedTotal  *prometheus.CounterVec
	PatternsDetectedTotal   *prometheus.CounterVec
	AlertsDispatchedTotal   *prometheus.CounterVec
	AlertDispatchDuration   *prometheus.HistogramVec
	AIRequestDuration       *prometheus.HistogramVec
	AIRequestErrorsTotal    *prometheus.CounterVec
	HealthCheckDuration     *prometheus.HistogramVec
}

// NewMetricsWithRegistry creates a Metrics bundle namespaced as
// namespace_subsystem_metric and registers every collector with registry.
// subsystem may be empty.
func NewMetricsWithRegistry(namespace, subsystem string, registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		TrackingSessionsStarted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: subsystem,
			Name: "tracking_sessions_started_total",
			Help: "Time tracking sessions started, labeled by restart.",
		}, []string{"restarted"}),
		AnomaliesDetectedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: subsystem,
			Name: "anomalies_detected_total",
			Help: "Anomalies emitted by the detector, labeled by type and severity.",
		}, []string{"type", "severity"}),
		PatternsDetectedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: subsystem,
			Name: "patterns_detected_total",
			Help: "Patterns emitted by the detector, labeled by type and severity.",
		}, []string{"type", "severity"}),
		AlertsDispatchedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: subsystem,
			Name: "alerts_dispatched_total",
			Help: "Alert pipeline dispatch outcomes, labeled by outcome.",
		}, []string{"outcome"}),
		AlertDispatchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: subsystem,
			Name: "alert_dispatch_duration_seconds",
			Help: "Time spent evaluating and fanning out one alert.",
		}, []string{"outcome"}),
		AIRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: subsystem,
			Name: "ai_request_duration_seconds",
			Help: "AI provider request latency, labeled by provider.",
		}, []string{"provider"}),
		AIRequestErrorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: subsystem,
			Name: "ai_request_errors_total",
			Help: "AI provider request failures, labeled by provider.",
		}, []string{"provider"}),
		HealthCheckDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: subsystem,
			Name: "health_check_duration_seconds",
			Help: "Integration health check latency, labeled by integration and status.",
		}, []string{"integration", "status"}),
	}

	registry.MustRegister(
		m.TrackingSessionsStarted,
		m.AnomaliesDetectedTotal,
		m.PatternsDetectedTotal,
		m.AlertsDispatchedTotal,
		m.AlertDispatchDuration,
		m.AIRequestDuration,
		m.AIRequestErrorsTotal,
		m.HealthCheckDuration,
	)
	return m
}

// NewMetrics creates a Metrics bundle backed by a fresh, private registry,
// returned alongside it so the caller can expose it (e.g. via
// promhttp.HandlerFor) without reaching into the global default registry.
func NewMetrics(namespace, subsystem string) (*Metrics, *prometheus.Registry) {
	registry := prometheus.NewRegistry()
	return NewMetricsWithRegistry(namespace, subsystem, registry), registry
}

func (m *Metrics) RecordTrackingSessionStarted(restarted bool) {
	if m == nil {
		return
	}
	m.TrackingSessionsStarted.WithLabelValues(boolLabel(restarted)).Inc()
}

func (m *Metrics) RecordAnomalyDetected(anomalyType, severity string) {
	if m == nil {
		return
	}
	m.AnomaliesDetectedTotal.WithLabelValues(anomalyType, severity).Inc()
}

func (m *Metrics) RecordPatternDetected(patternType, severity string) {
	if m == nil {
		return
	}
	m.PatternsDetectedTotal.WithLabelValues(patternType, severity).Inc()
}

func (m *Metrics) RecordAlertDispatch(outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.AlertsDispatchedTotal.WithLabelValues(outcome).Inc()
	m.AlertDispatchDuration.WithLabelValues(outcome).Observe(duration.Seconds())
}

func (m *Metrics) RecordAIRequest(provider string, duration time.Duration, err error) {
	if m == nil {
		return
	}
	m.AIRequestDuration.WithLabelValues(provider).Observe(duration.Seconds())
	if err != nil {
		m.AIRequestErrorsTotal.WithLabelValues(provider).Inc()
	}
}

func (m *Metrics) RecordHealthCheck(integration, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.HealthCheckDuration.WithLabelValues(integration, status).Observe(duration.Seconds())
}

func boolLabel(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
