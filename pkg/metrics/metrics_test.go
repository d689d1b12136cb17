package metrics

import (
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestMetrics(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Metrics Suite")
}

var _ = Describe("Metrics", func() {
	var (
		m        *Metrics
		registry *prometheus.Registry
	)

	BeforeEach(func() {
		registry = prometheus.NewRegistry()
		m = NewMetricsWithRegistry("qa_intelligence", "", registry)
	})

	It("registers every collector with the custom registry", func() {
		Expect(m.TrackingSessionsStarted).NotTo(BeNil())
		Expect(m.AnomaliesDetectedTotal).NotTo(BeNil())
		Expect(m.PatternsDetectedTotal).NotTo(BeNil())
		Expect(m.AlertsDispatchedTotal).NotTo(BeNil())
		Expect(m.AlertDispatchDuration).NotTo(BeNil())
		Expect(m.AIRequestDuration).NotTo(BeNil())
		Expect(m.AIRequestErrorsTotal).NotTo(BeNil())
		Expect(m.HealthCheckDuration).NotTo(BeNil())
	})

	It("records a tracking session start labeled by restart", func() {
		m.RecordTrackingSessionStarted(true)

		families, err := registry.Gather()
		Expect(err).NotTo(HaveOccurred())

		var found bool
		for _, family := range families {
			if family.GetName() == "qa_intelligence_tracking_sessions_started_total" {
				found = true
				Expect(family.GetMetric()).To(HaveLen(1))
				metric := family.GetMetric()[0]
				Expect(metric.GetCounter().GetValue()).To(BeNumerically("==", 1))
				labels := metric.GetLabel()
				Expect(labels).To(HaveLen(1))
				Expect(labels[0].GetName()).To(Equal("restarted"))
				Expect(labels[0].GetValue()).To(Equal("true"))
			}
		}
		Expect(found).To(BeTrue())
	})

	It("records an anomaly detection labeled by type and severity", func() {
		m.RecordAnomalyDetected("outlier_duration", "critical")

		families, err := registry.Gather()
		Expect(err).NotTo(HaveOccurred())

		var found bool
		for _, family := range families {
			if family.GetName() == "qa_intelligence_anomalies_detected_total" {
				found = true
				metric := family.GetMetric()[0]
				Expect(metric.GetCounter().GetValue()).To(BeNumerically("==", 1))
				labelMap := labelsOf(metric)
				Expect(labelMap["type"]).To(Equal("outlier_duration"))
				Expect(labelMap["severity"]).To(Equal("critical"))
			}
		}
		Expect(found).To(BeTrue())
	})

	It("records a pattern detection labeled by type and severity", func() {
		m.RecordPatternDetected("time_excess", "warning")

		families, err := registry.Gather()
		Expect(err).NotTo(HaveOccurred())

		var found bool
		for _, family := range families {
			if family.GetName() == "qa_intelligence_patterns_detected_total" {
				found = true
				metric := family.GetMetric()[0]
				Expect(metric.GetCounter().GetValue()).To(BeNumerically("==", 1))
				labelMap := labelsOf(metric)
				Expect(labelMap["type"]).To(Equal("time_excess"))
				Expect(labelMap["severity"]).To(Equal("warning"))
			}
		}
		Expect(found).To(BeTrue())
	})

	It("records an alert dispatch outcome and its duration", func() {
		m.RecordAlertDispatch("sent", 50*time.Millisecond)

		families, err := registry.Gather()
		Expect(err).NotTo(HaveOccurred())

		var sawCounter, sawHistogram bool
		for _, family := range families {
			switch family.GetName() {
			case "qa_intelligence_alerts_dispatched_total":
				sawCounter = true
				Expect(family.GetMetric()[0].GetCounter().GetValue()).To(BeNumerically("==", 1))
				Expect(labelsOf(family.GetMetric()[0])["outcome"]).To(Equal("sent"))
			case "qa_intelligence_alert_dispatch_duration_seconds":
				sawHistogram = true
				Expect(family.GetMetric()[0].GetHistogram().GetSampleCount()).To(BeNumerically("==", 1))
			}
		}
		Expect(sawCounter).To(BeTrue())
		Expect(sawHistogram).To(BeTrue())
	})

	It("records an AI request duration and only counts errors when one occurred", func() {
		m.RecordAIRequest("openai", 10*time.Millisecond, nil)
		m.RecordAIRequest("openai", 20*time.Millisecond, errTimeout)

		families, err := registry.Gather()
		Expect(err).NotTo(HaveOccurred())

		var sawDuration, sawErrors bool
		for _, family := range families {
			switch family.GetName() {
			case "qa_intelligence_ai_request_duration_seconds":
				sawDuration = true
				Expect(family.GetMetric()[0].GetHistogram().GetSampleCount()).To(BeNumerically("==", 2))
			case "qa_intelligence_ai_request_errors_total":
				sawErrors = true
				Expect(family.GetMetric()[0].GetCounter().GetValue()).To(BeNumerically("==", 1))
			}
		}
		Expect(sawDuration).To(BeTrue())
		Expect(sawErrors).To(BeTrue())
	})

	It("records a health check duration labeled by integration and status", func() {
		m.RecordHealthCheck("jira", "online", 30*time.Millisecond)

		families, err := registry.Gather()
		Expect(err).NotTo(HaveOccurred())

		var found bool
		for _, family := range families {
			if family.GetName() == "qa_intelligence_health_check_duration_seconds" {
				found = true
				metric := family.GetMetric()[0]
				Expect(metric.GetHistogram().GetSampleCount()).To(BeNumerically("==", 1))
				labelMap := labelsOf(metric)
				Expect(labelMap["integration"]).To(Equal("jira"))
				Expect(labelMap["status"]).To(Equal("online"))
			}
		}
		Expect(found).To(BeTrue())
	})

	It("is a no-op on every Record method when the receiver is nil", func() {
		var nilMetrics *Metrics
		Expect(func() {
			nilMetrics.RecordTrackingSessionStarted(true)
			nilMetrics.RecordAnomalyDetected("t", "s")
			nilMetrics.RecordPatternDetected("t", "s")
			nilMetrics.RecordAlertDispatch("sent", time.Millisecond)
			nilMetrics.RecordAIRequest("openai", time.Millisecond, nil)
			nilMetrics.RecordHealthCheck("jira", "online", time.Millisecond)
		}).NotTo(Panic())
	})
})

var errTimeout = &timeoutError{}

type timeoutError struct{}

func (*timeoutError) Error() string { return "timeout" }

func labelsOf(metric *dto.Metric) map[string]string {
	labels := make(map[string]string)
	for _, label := range metric.GetLabel() {
		labels[label.GetName()] = label.GetValue()
	}
	return labels
}
