package tracking

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/jordigilh/qa-intelligence/pkg/metrics"
	sharederrors "github.com/jordigilh/qa-intelligence/pkg/shared/errors"
	"github.com/jordigilh/qa-intelligence/pkg/shared/logging"
)

// Engine provides the high-level time tracking operations: starting,
// pausing, resuming and ending per-step sessions, and reducing a workflow's
// sessions into a summary with gap analysis.
type Engine struct {
	store     Store
	estimates EstimateProvider
	log       *logrus.Logger
	now       func() time.Time
	metrics   *metrics.Metrics
}

// WithMetrics attaches m so every StartStep call records whether it began a
// fresh session or restarted one still open. Returns the Engine for
// chaining.
func (e *Engine) WithMetrics(m *metrics.Metrics) *Engine {
	e.metrics = m
	return e
}

// NewEngine creates a tracking Engine backed by store for persistence and
// estimates for per-step duration lookups. estimates may be nil, in which
// case gap percentages are always reported as unavailable.
func NewEngine(store Store, estimates EstimateProvider, log *logrus.Logger) *Engine {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Engine{store: store, estimates: estimates, log: log, now: time.Now}
}

// StartStep begins tracking a workflow step. If a session is already open
// for this exact (workflow, step) pair, it is ended first (per the
// accumulation formula EndStep uses) so the restart begins a fresh
// lifecycle rather than leaving two sessions active at once. It fails with
// ErrConflictingSession if a different step already has an open session for
// the same workflow.
func (e *Engine) StartStep(ctx context.Context, workflowID uuid.UUID, stepIndex int) (*Session, error) {
	fields := logging.WorkflowFields("start_step", workflowID.String()).Custom("step_index", stepIndex)
	e.log.WithFields(fields.ToLogrus()).Info("starting time tracking for step")

	active, err := e.getActiveRetry(ctx, workflowID)
	if err != nil {
		return nil, err
	}
	if active != nil && active.StepIndex != stepIndex {
		return nil, &ErrConflictingSession{WorkflowID: workflowID, OpenStep: active.StepIndex, RequestedStep: stepIndex}
	}
	if active != nil {
		if err := e.closeSession(ctx, active); err != nil {
			return nil, err
		}
		e.log.WithFields(logging.NewFields().Custom("session_id", active.ID.String()).ToLogrus()).
			Info("restarting step, closed previously open session")
	}
	e.metrics.RecordTrackingSessionStarted(active != nil)

	now := e.now()
	session := &Session{
		ID:           uuid.New(),
		WorkflowID:   workflowID,
		StepIndex:    stepIndex,
		StartedAt:    now,
		LastResumeAt: now,
	}
	if err := e.createRetry(ctx, session); err != nil {
		return nil, err
	}

	e.log.WithFields(logging.NewFields().Custom("session_id", session.ID.String()).ToLogrus()).Debug("time session started")
	return session, nil
}

// EndStep closes the open session for a workflow step, computing its final
// TotalSeconds from the accumulation formula.
func (e *Engine) EndStep(ctx context.Context, workflowID uuid.UUID, stepIndex int) (*Session, error) {
	session, err := e.getForStepRetry(ctx, workflowID, stepIndex)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, &ErrNoActiveSession{WorkflowID: workflowID}
	}
	if !session.IsActive() {
		return nil, &ErrSessionAlreadyEnded{SessionID: session.ID}
	}

	if err := e.closeSession(ctx, session); err != nil {
		return nil, err
	}

	e.log.WithFields(logging.NewFields().
		Custom("session_id", session.ID.String()).
		Custom("total_seconds", session.TotalSeconds).
		ToLogrus()).Info("time session ended")

	return session, nil
}

// PauseCurrent pauses the active session for a workflow, folding elapsed
// time into AccumulatedSeconds. Idempotent if already paused.
func (e *Engine) PauseCurrent(ctx context.Context, workflowID uuid.UUID) error {
	session, err := e.getActiveRetry(ctx, workflowID)
	if err != nil {
		return err
	}
	if session == nil {
		return &ErrNoActiveSession{WorkflowID: workflowID}
	}
	if session.IsPaused() {
		e.log.WithFields(logging.NewFields().Custom("session_id", session.ID.String()).ToLogrus()).Warn("session already paused")
		return nil
	}

	now := e.now()
	session.AccumulatedSeconds += int64(now.Sub(session.LastResumeAt).Seconds())
	session.PausedAt = &now

	if err := e.updateRetry(ctx, session); err != nil {
		return err
	}
	e.log.WithFields(logging.NewFields().Custom("session_id", session.ID.String()).ToLogrus()).Debug("time session paused")
	return nil
}

// ResumeCurrent resumes the active session for a workflow. Idempotent if
// already running.
func (e *Engine) ResumeCurrent(ctx context.Context, workflowID uuid.UUID) error {
	session, err := e.getActiveRetry(ctx, workflowID)
	if err != nil {
		return err
	}
	if session == nil {
		return &ErrNoActiveSession{WorkflowID: workflowID}
	}
	if !session.IsPaused() {
		e.log.WithFields(logging.NewFields().Custom("session_id", session.ID.String()).ToLogrus()).Warn("session not paused")
		return nil
	}

	session.PausedAt = nil
	session.LastResumeAt = e.now()

	if err := e.updateRetry(ctx, session); err != nil {
		return err
	}
	e.log.WithFields(logging.NewFields().Custom("session_id", session.ID.String()).ToLogrus()).Debug("time session resumed")
	return nil
}

// GetActive returns the currently active session for a workflow, or nil if
// none is open.
func (e *Engine) GetActive(ctx context.Context, workflowID uuid.UUID) (*Session, error) {
	return e.getActiveRetry(ctx, workflowID)
}

// GetSession returns a session by ID.
func (e *Engine) GetSession(ctx context.Context, sessionID uuid.UUID) (*Session, error) {
	session, err := e.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, &ErrStorageFailure{Operation: "get_session", Cause: err}
	}
	if session == nil {
		return nil, &ErrSessionNotFound{SessionID: sessionID}
	}
	return session, nil
}

// GetWorkflowSessions returns all sessions recorded for a workflow.
func (e *Engine) GetWorkflowSessions(ctx context.Context, workflowID uuid.UUID) ([]Session, error) {
	sessions, err := e.store.GetWorkflowSessions(ctx, workflowID)
	if err != nil {
		return nil, &ErrStorageFailure{Operation: "get_workflow_sessions", Cause: err}
	}
	return sessions, nil
}

// IsTrackingActive reports whether a workflow currently has an open session.
func (e *Engine) IsTrackingActive(ctx context.Context, workflowID uuid.UUID) (bool, error) {
	session, err := e.getActiveRetry(ctx, workflowID)
	if err != nil {
		return false, err
	}
	return session != nil, nil
}

// IsTrackingPaused reports whether a workflow's active session, if any, is
// paused.
func (e *Engine) IsTrackingPaused(ctx context.Context, workflowID uuid.UUID) (bool, error) {
	session, err := e.getActiveRetry(ctx, workflowID)
	if err != nil {
		return false, err
	}
	return session != nil && session.IsPaused(), nil
}

// CalculateSummary reduces a workflow's sessions into total time and a
// per-step breakdown, computing gap percentage against estimates fetched
// from the configured EstimateProvider for templateID. A step missing an
// estimate reports its gap as unavailable.
func (e *Engine) CalculateSummary(ctx context.Context, workflowID, templateID uuid.UUID) (*Summary, error) {
	sessions, err := e.GetWorkflowSessions(ctx, workflowID)
	if err != nil {
		return nil, err
	}

	var total int64
	stepTimes := make([]StepTime, 0, len(sessions))
	for _, s := range sessions {
		total += s.TotalSeconds
		st := StepTime{StepIndex: s.StepIndex, ActualSeconds: s.TotalSeconds}

		if e.estimates != nil {
			if estimate, ok := e.estimates.EstimateSeconds(templateID, s.StepIndex); ok {
				st.EstimatedSeconds = &estimate
				if estimate > 0 {
					gap := (float64(s.TotalSeconds) - float64(estimate)) / float64(estimate) * 100
					st.GapPercentage = &gap
				}
			}
		}
		stepTimes = append(stepTimes, st)
	}

	return &Summary{WorkflowID: workflowID, TotalSeconds: total, StepTimes: stepTimes}, nil
}

// closeSession ends session in place, accumulating its final TotalSeconds
// from the same formula EndStep and a StartStep-triggered restart both rely
// on, then persists the change.
func (e *Engine) closeSession(ctx context.Context, session *Session) error {
	now := e.now()
	total := session.AccumulatedSeconds
	if !session.IsPaused() {
		total += int64(now.Sub(session.LastResumeAt).Seconds())
	}
	session.EndedAt = &now
	session.TotalSeconds = total

	return e.updateRetry(ctx, session)
}

// --- storage retry helpers ---
//
// Mutations are single-row operations and are retried once on a transient
// store error before being surfaced as ErrStorageFailure.

func (e *Engine) getActiveRetry(ctx context.Context, workflowID uuid.UUID) (*Session, error) {
	session, err := e.store.GetActiveSession(ctx, workflowID)
	if err != nil && sharederrors.IsRetryable(err) {
		session, err = e.store.GetActiveSession(ctx, workflowID)
	}
	if err != nil {
		return nil, &ErrStorageFailure{Operation: "get_active_session", Cause: err}
	}
	return session, nil
}

func (e *Engine) getForStepRetry(ctx context.Context, workflowID uuid.UUID, stepIndex int) (*Session, error) {
	session, err := e.store.GetSessionForStep(ctx, workflowID, stepIndex)
	if err != nil && sharederrors.IsRetryable(err) {
		session, err = e.store.GetSessionForStep(ctx, workflowID, stepIndex)
	}
	if err != nil {
		return nil, &ErrStorageFailure{Operation: "get_session_for_step", Cause: err}
	}
	return session, nil
}

func (e *Engine) createRetry(ctx context.Context, session *Session) error {
	err := e.store.CreateSession(ctx, session)
	if err != nil && sharederrors.IsRetryable(err) {
		err = e.store.CreateSession(ctx, session)
	}
	if err != nil {
		return &ErrStorageFailure{Operation: "create_session", Cause: err}
	}
	return nil
}

func (e *Engine) updateRetry(ctx context.Context, session *Session) error {
	err := e.store.UpdateSession(ctx, session)
	if err != nil && sharederrors.IsRetryable(err) {
		err = e.store.UpdateSession(ctx, session)
	}
	if err != nil {
		return &ErrStorageFailure{Operation: "update_session", Cause: err}
	}
	return nil
}
