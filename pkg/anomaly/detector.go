package anomaly

import (
	stdmath "math"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jordigilh/qa-intelligence/pkg/metrics"
	sharedmath "github.com/jordigilh/qa-intelligence/pkg/shared/math"
)

const (
	// baselineCapacity bounds the rolling baseline to the most recent
	// executions; older samples are evicted on overflow.
	baselineCapacity = 100
	// minBaselineSize is the minimum number of samples required before the
	// detector will emit an anomaly (n_min).
	minBaselineSize = 10
	// confidenceNSaturation and confidenceZSaturation are the saturation
	// constants n_sat and z_sat such that n>=n_sat and |z|>=z_sat imply
	// confidence approaching 1.
	confidenceNSaturation = 30.0
	confidenceZSaturation = 3.0
	// zWarningThreshold and zCriticalThreshold are the |z| boundaries for
	// Warning and Critical severity.
	zWarningThreshold  = 2.0
	zCriticalThreshold = 3.0
	zeroStdEpsilon     = 1e-9
)

// Detector evaluates executions against a rolling baseline and emits
// anomalies. It is the sole writer to its own baseline; readers coexist via
// a shared RWMutex.
type Detector struct {
	mu                    sync.RWMutex
	durationBaseline      *sharedmath.RollingWindow
	failureRatioBaseline  *sharedmath.RollingWindow
	flaggedCohorts        map[string]struct{}
	now                   func() time.Time
	metrics               *metrics.Metrics
}

// WithMetrics attaches m so every emitted Anomaly is counted by type and
// severity. Returns the Detector for chaining.
func (d *Detector) WithMetrics(m *metrics.Metrics) *Detector {
	d.metrics = m
	return d
}

// NewDetector creates a Detector with empty baselines.
func NewDetector() *Detector {
	return &Detector{
		durationBaseline:     sharedmath.NewRollingWindow(baselineCapacity),
		failureRatioBaseline: sharedmath.NewRollingWindow(baselineCapacity),
		flaggedCohorts:       map[string]struct{}{},
		now:                  time.Now,
	}
}

// RecordExecution appends a successful execution's duration to the baseline.
// Failed executions do not contribute to the duration baseline.
func (d *Detector) RecordExecution(exec WorkflowExecution) {
	if !exec.Succeeded {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.durationBaseline.Push(float64(exec.ExecutionTimeSeconds))
}

// RecordFailureRatioSample appends a periodic failure-ratio sample (e.g. one
// per rolling window of executions) to the failure-rate baseline.
func (d *Detector) RecordFailureRatioSample(ratio float64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.failureRatioBaseline.Push(ratio)
}

// FlagCohort marks a ticket ID as belonging to a previously-detected pattern
// cohort, so future executions referencing it trigger PatternBreak.
func (d *Detector) FlagCohort(ticketID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.flaggedCohorts[ticketID] = struct{}{}
}

// EvaluateDuration checks an execution's duration against the baseline and
// returns a PerformanceDegradation or OutlierDuration anomaly, or nil if the
// baseline is too small or the deviation does not cross the Warning
// threshold.
func (d *Detector) EvaluateDuration(exec WorkflowExecution) *Anomaly {
	d.mu.RLock()
	mean := d.durationBaseline.Mean()
	z, n, ok := zScore(d.durationBaseline, float64(exec.ExecutionTimeSeconds))
	d.mu.RUnlock()
	if !ok {
		return nil
	}

	absZ := stdmath.Abs(z)
	var anomalyType AnomalyType
	switch {
	case absZ >= zCriticalThreshold:
		anomalyType = OutlierDuration
	case z >= zWarningThreshold:
		anomalyType = PerformanceDegradation
	default:
		return nil
	}

	return d.build(anomalyType, severityFor(absZ), n, z, float64(exec.ExecutionTimeSeconds), mean, []string{exec.InstanceID.String()})
}

// EvaluateFailureRatio checks a current failure ratio against the baseline
// and returns a FailureRateSpike anomaly, or nil if below threshold.
func (d *Detector) EvaluateFailureRatio(instanceID uuid.UUID, currentRatio float64) *Anomaly {
	d.mu.RLock()
	mean := d.failureRatioBaseline.Mean()
	z, n, ok := zScore(d.failureRatioBaseline, currentRatio)
	d.mu.RUnlock()
	if !ok {
		return nil
	}

	absZ := stdmath.Abs(z)
	if absZ < zWarningThreshold || z < 0 {
		return nil
	}

	return d.build(FailureRateSpike, severityFor(absZ), n, z, currentRatio, mean, []string{instanceID.String()})
}

// EvaluatePatternBreak reports a PatternBreak anomaly if ticketID has been
// flagged as part of a previously-detected pattern cohort.
func (d *Detector) EvaluatePatternBreak(instanceID uuid.UUID, ticketID string) *Anomaly {
	d.mu.RLock()
	_, flagged := d.flaggedCohorts[ticketID]
	d.mu.RUnlock()
	if !flagged {
		return nil
	}
	d.metrics.RecordAnomalyDetected(string(PatternBreak), string(SeverityWarning))

	return &Anomaly{
		ID:          uuid.New(),
		DetectedAt:  d.now(),
		Type:        PatternBreak,
		Severity:    SeverityWarning,
		Description: "ticket " + ticketID + " matches a previously-flagged pattern cohort",
		Metrics: Metrics{
			CurrentValue:  1,
			BaselineValue: 0,
			Deviation:     1,
			ZScore:        0,
			Confidence:    1,
		},
		AffectedEntities:   []string{instanceID.String(), ticketID},
		InvestigationSteps: investigationSteps[PatternBreak],
	}
}

func (d *Detector) build(anomalyType AnomalyType, severity Severity, n int, z, current, baseline float64, affected []string) *Anomaly {
	d.metrics.RecordAnomalyDetected(string(anomalyType), string(severity))
	return &Anomaly{
		ID:          uuid.New(),
		DetectedAt:  d.now(),
		Type:        anomalyType,
		Severity:    severity,
		Description: describe(anomalyType, current, baseline, z),
		Metrics: Metrics{
			CurrentValue:  current,
			BaselineValue: baseline,
			Deviation:     current - baseline,
			ZScore:        z,
			Confidence:    confidence(n, z),
		},
		AffectedEntities:   affected,
		InvestigationSteps: investigationSteps[anomalyType],
	}
}

func zScore(baseline *sharedmath.RollingWindow, x float64) (z float64, n int, ok bool) {
	n = baseline.Len()
	if n < minBaselineSize {
		return 0, n, false
	}
	std := baseline.StandardDeviation()
	if std < zeroStdEpsilon {
		std = zeroStdEpsilon
	}
	return (x - baseline.Mean()) / std, n, true
}

func severityFor(absZ float64) Severity {
	if absZ >= zCriticalThreshold {
		return SeverityCritical
	}
	return SeverityWarning
}

func confidence(n int, z float64) float64 {
	c := (float64(n) / confidenceNSaturation) * (stdmath.Abs(z) / confidenceZSaturation)
	if c > 1 {
		return 1
	}
	return c
}

func describe(anomalyType AnomalyType, current, baseline, z float64) string {
	switch anomalyType {
	case PerformanceDegradation:
		return "execution time is above baseline (z=" + formatZ(z) + ")"
	case OutlierDuration:
		return "execution time is a statistical outlier (z=" + formatZ(z) + ")"
	case FailureRateSpike:
		return "failure ratio has spiked above baseline (z=" + formatZ(z) + ")"
	default:
		return "anomaly detected"
	}
}

func formatZ(z float64) string {
	return strconv.FormatFloat(z, 'f', 2, 64)
}
