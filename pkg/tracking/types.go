// Package tracking implements the workflow time tracking engine: starting,
// pausing, resuming and ending per-step timing sessions, and reducing a
// workflow's sessions into a time summary with gap analysis against
// per-step estimates.
package tracking

import (
	"time"

	"github.com/google/uuid"
)

// Session is a single step's timing record. At most one session per workflow
// may be active (EndedAt nil) at any instant.
type Session struct {
	ID                 uuid.UUID
	WorkflowID         uuid.UUID
	StepIndex          int
	StartedAt          time.Time
	EndedAt            *time.Time
	PausedAt           *time.Time
	LastResumeAt       time.Time
	AccumulatedSeconds int64
	TotalSeconds       int64
}

// IsActive reports whether the session has not yet been ended.
func (s *Session) IsActive() bool {
	return s.EndedAt == nil
}

// IsPaused reports whether the session is currently paused.
func (s *Session) IsPaused() bool {
	return s.PausedAt != nil
}

// StepTime is one row of a workflow's time summary.
type StepTime struct {
	StepIndex        int
	ActualSeconds    int64
	EstimatedSeconds *int64
	GapPercentage    *float64
}

// Summary is the reduction of a workflow's sessions into totals and a
// per-step breakdown.
type Summary struct {
	WorkflowID   uuid.UUID
	TotalSeconds int64
	StepTimes    []StepTime
}

// EstimateProvider supplies the expected duration of a template's step, so
// the engine can compute gap percentages without depending on the
// persistence gateway directly. Implementations may be backed by a database
// or, in tests, by a plain map.
type EstimateProvider interface {
	EstimateSeconds(templateID uuid.UUID, stepIndex int) (int64, bool)
}
