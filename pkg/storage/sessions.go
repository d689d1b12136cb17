package storage

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"

	qaerrors "github.com/jordigilh/qa-intelligence/pkg/shared/errors"
	"github.com/jordigilh/qa-intelligence/pkg/shared/logging"
	"github.com/jordigilh/qa-intelligence/pkg/tracking"
)

// sessionRow mirrors the time_sessions table layout.
type sessionRow struct {
	ID                 uuid.UUID    `db:"id"`
	WorkflowID         uuid.UUID    `db:"workflow_instance_id"`
	StepIndex          int          `db:"step_index"`
	StartedAt          sql.NullTime `db:"started_at"`
	EndedAt            sql.NullTime `db:"ended_at"`
	PausedAt           sql.NullTime `db:"paused_at"`
	LastResumeAt       sql.NullTime `db:"last_resume_at"`
	AccumulatedSeconds int64        `db:"accumulated_seconds"`
	TotalSeconds       int64        `db:"total_seconds"`
}

func (r sessionRow) toSession() tracking.Session {
	s := tracking.Session{
		ID:                 r.ID,
		WorkflowID:         r.WorkflowID,
		StepIndex:          r.StepIndex,
		AccumulatedSeconds: r.AccumulatedSeconds,
		TotalSeconds:       r.TotalSeconds,
	}
	if r.StartedAt.Valid {
		s.StartedAt = r.StartedAt.Time
	}
	if r.EndedAt.Valid {
		t := r.EndedAt.Time
		s.EndedAt = &t
	}
	if r.PausedAt.Valid {
		t := r.PausedAt.Time
		s.PausedAt = &t
	}
	if r.LastResumeAt.Valid {
		s.LastResumeAt = r.LastResumeAt.Time
	}
	return s
}

// CreateSession inserts a new time tracking session. Satisfies
// tracking.Store.
func (g *Gateway) CreateSession(ctx context.Context, session *tracking.Session) error {
	const query = `
		INSERT INTO time_sessions (
			id, workflow_instance_id, step_index, started_at, ended_at,
			paused_at, last_resume_at, accumulated_seconds, total_seconds
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	row := fromSession(session)
	_, err := g.db.ExecContext(ctx, query,
		row.ID, row.WorkflowID, row.StepIndex, row.StartedAt, row.EndedAt,
		row.PausedAt, row.LastResumeAt, row.AccumulatedSeconds, row.TotalSeconds,
	)
	if err != nil {
		return qaerrors.DatabaseError("create session", err)
	}
	g.log.WithFields(logging.DatabaseFields("create", "time_sessions").
		Custom("session_id", session.ID).ToLogrus()).Debug("session created")
	return nil
}

// UpdateSession persists mutations to an existing session (pause, resume,
// end). Satisfies tracking.Store.
func (g *Gateway) UpdateSession(ctx context.Context, session *tracking.Session) error {
	const query = `
		UPDATE time_sessions SET
			ended_at = $2, paused_at = $3, last_resume_at = $4,
			accumulated_seconds = $5, total_seconds = $6
		WHERE id = $1
	`
	row := fromSession(session)
	result, err := g.db.ExecContext(ctx, query,
		row.ID, row.EndedAt, row.PausedAt, row.LastResumeAt, row.AccumulatedSeconds, row.TotalSeconds,
	)
	if err != nil {
		return qaerrors.DatabaseError("update session", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return qaerrors.DatabaseError("update session", err)
	}
	if affected == 0 {
		return qaerrors.DatabaseError("update session", sql.ErrNoRows)
	}
	return nil
}

// GetActiveSession returns the one session for workflowID with a null
// ended_at, or nil if none exists. Satisfies tracking.Store.
func (g *Gateway) GetActiveSession(ctx context.Context, workflowID uuid.UUID) (*tracking.Session, error) {
	const query = `
		SELECT id, workflow_instance_id, step_index, started_at, ended_at,
			paused_at, last_resume_at, accumulated_seconds, total_seconds
		FROM time_sessions
		WHERE workflow_instance_id = $1 AND ended_at IS NULL
		ORDER BY started_at DESC
		LIMIT 1
	`
	var row sessionRow
	err := g.db.GetContext(ctx, &row, query, workflowID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, qaerrors.DatabaseError("get active session", err)
	}
	s := row.toSession()
	return &s, nil
}

// GetSessionForStep returns the most recent session for a specific step
// index, or nil if none exists. Satisfies tracking.Store.
func (g *Gateway) GetSessionForStep(ctx context.Context, workflowID uuid.UUID, stepIndex int) (*tracking.Session, error) {
	const query = `
		SELECT id, workflow_instance_id, step_index, started_at, ended_at,
			paused_at, last_resume_at, accumulated_seconds, total_seconds
		FROM time_sessions
		WHERE workflow_instance_id = $1 AND step_index = $2
		ORDER BY started_at DESC
		LIMIT 1
	`
	var row sessionRow
	err := g.db.GetContext(ctx, &row, query, workflowID, stepIndex)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, qaerrors.DatabaseError("get session for step", err)
	}
	s := row.toSession()
	return &s, nil
}

// GetSession returns the session with the given ID, or nil if none exists.
// Satisfies tracking.Store.
func (g *Gateway) GetSession(ctx context.Context, sessionID uuid.UUID) (*tracking.Session, error) {
	const query = `
		SELECT id, workflow_instance_id, step_index, started_at, ended_at,
			paused_at, last_resume_at, accumulated_seconds, total_seconds
		FROM time_sessions
		WHERE id = $1
	`
	var row sessionRow
	err := g.db.GetContext(ctx, &row, query, sessionID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, qaerrors.DatabaseError("get session", err)
	}
	s := row.toSession()
	return &s, nil
}

// GetWorkflowSessions returns every session recorded for workflowID, ordered
// by step index. Satisfies tracking.Store.
func (g *Gateway) GetWorkflowSessions(ctx context.Context, workflowID uuid.UUID) ([]tracking.Session, error) {
	const query = `
		SELECT id, workflow_instance_id, step_index, started_at, ended_at,
			paused_at, last_resume_at, accumulated_seconds, total_seconds
		FROM time_sessions
		WHERE workflow_instance_id = $1
		ORDER BY step_index ASC, started_at ASC
	`
	var rows []sessionRow
	if err := g.db.SelectContext(ctx, &rows, query, workflowID); err != nil {
		return nil, qaerrors.DatabaseError("get workflow sessions", err)
	}
	sessions := make([]tracking.Session, 0, len(rows))
	for _, r := range rows {
		sessions = append(sessions, r.toSession())
	}
	return sessions, nil
}

func fromSession(s *tracking.Session) sessionRow {
	row := sessionRow{
		ID:                 s.ID,
		WorkflowID:         s.WorkflowID,
		StepIndex:          s.StepIndex,
		StartedAt:          sql.NullTime{Time: s.StartedAt, Valid: !s.StartedAt.IsZero()},
		LastResumeAt:       sql.NullTime{Time: s.LastResumeAt, Valid: !s.LastResumeAt.IsZero()},
		AccumulatedSeconds: s.AccumulatedSeconds,
		TotalSeconds:       s.TotalSeconds,
	}
	if s.EndedAt != nil {
		row.EndedAt = sql.NullTime{Time: *s.EndedAt, Valid: true}
	}
	if s.PausedAt != nil {
		row.PausedAt = sql.NullTime{Time: *s.PausedAt, Valid: true}
	}
	return row
}
