// Package patterns implements the post-workflow pattern detector: time
// excess, consecutive problem, and ticket-volume spike detection, run
// concurrently against read-only snapshots of workflow data.
package patterns

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// PatternType classifies a detected pattern family.
type PatternType string

const (
	TimeExcess         PatternType = "time_excess"
	ConsecutiveProblem PatternType = "consecutive_problem"
	Spike              PatternType = "spike"
)

// Severity is the alert severity assigned to a detected pattern.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// DetectedPattern is one pattern-family finding, ready to be persisted and
// handed to the alert pipeline.
type DetectedPattern struct {
	ID                    uuid.UUID
	Type                  PatternType
	Severity              Severity
	Title                 string
	Description           string
	AffectedTickets       []string
	CommonFactor          *string
	AverageExcessPercent  *float64
	ConfidenceScore       float64
	SuggestedActions      []string
	Metadata              map[string]interface{}
	DetectedAt            time.Time
}

// WorkflowAnalysisData is the read-only snapshot used by the time-excess and
// spike detectors.
type WorkflowAnalysisData struct {
	WorkflowID               uuid.UUID
	TicketKey                string
	TemplateName             string
	ActualDurationSeconds    int64
	EstimatedDurationSeconds *int64
	StepNotes                []string
	CompletedAt              time.Time
}

// RecentWorkflow is one of the most recently completed workflows, with its
// step notes aggregated into a single string, used by the
// consecutive-problem detector.
type RecentWorkflow struct {
	TicketKey string
	Notes     *string
}

// TicketVolumeStats is today's completed-workflow count and the trailing
// 7-day daily average, used by the spike detector.
type TicketVolumeStats struct {
	TodayCount int64
	AvgCount   float64
}

// Reader is the persistence collaborator the Detector depends on. The
// production implementation lives in pkg/storage; tests use a fake.
type Reader interface {
	GetWorkflowAnalysisData(ctx context.Context, workflowID uuid.UUID) (*WorkflowAnalysisData, error)
	GetRecentCompletedWorkflows(ctx context.Context, limit int) ([]RecentWorkflow, error)
	GetTicketVolumeStats(ctx context.Context) (*TicketVolumeStats, error)
}
