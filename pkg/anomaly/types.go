// Package anomaly implements the workflow anomaly detector: z-score
// evaluation of executions against a rolling baseline, confidence scoring,
// and templated investigation-step playlists per anomaly type.
package anomaly

import (
	"time"

	"github.com/google/uuid"
)

// AnomalyType classifies the signal that triggered detection.
type AnomalyType string

const (
	PerformanceDegradation AnomalyType = "performance_degradation"
	OutlierDuration        AnomalyType = "outlier_duration"
	FailureRateSpike       AnomalyType = "failure_rate_spike"
	PatternBreak           AnomalyType = "pattern_break"
)

// Severity is the alert severity assigned to a detected anomaly.
type Severity string

const (
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Metrics carries the numeric evidence behind an anomaly.
type Metrics struct {
	CurrentValue  float64
	BaselineValue float64
	Deviation     float64
	ZScore        float64
	Confidence    float64
}

// Anomaly is a single detection event.
type Anomaly struct {
	ID                 uuid.UUID
	DetectedAt         time.Time
	Type               AnomalyType
	Severity           Severity
	Description        string
	Metrics            Metrics
	AffectedEntities   []string
	InvestigationSteps []string
}

// WorkflowExecution is the minimal execution record the detector consumes,
// aggregated from a workflow's time tracking sessions.
type WorkflowExecution struct {
	InstanceID           uuid.UUID
	TicketID             string
	UserID               string
	TemplateID           uuid.UUID
	ExecutionTimeSeconds int
	Succeeded            bool
	CompletedAt          time.Time
}

var investigationSteps = map[AnomalyType][]string{
	PerformanceDegradation: {
		"inspect recent deploys",
		"check dependencies",
		"compare step-level times against baseline",
	},
	OutlierDuration: {
		"verify timing data is not corrupted",
		"check for environmental anomalies",
		"compare step-level times against baseline",
	},
	FailureRateSpike: {
		"review recent error logs",
		"check upstream dependency health",
		"compare failure ratio against baseline window",
	},
	PatternBreak: {
		"cross-reference with the detected pattern cohort",
		"check whether a known recurring issue reappeared",
	},
}
