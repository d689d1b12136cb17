package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	qaerrors "github.com/jordigilh/qa-intelligence/pkg/shared/errors"
	"github.com/jordigilh/qa-intelligence/pkg/shared/logging"
	"github.com/jordigilh/qa-intelligence/pkg/patterns"
)

// GetWorkflowAnalysisData loads the single-workflow snapshot the time-excess
// detector analyzes. Satisfies patterns.Reader.
func (g *Gateway) GetWorkflowAnalysisData(ctx context.Context, workflowID uuid.UUID) (*patterns.WorkflowAnalysisData, error) {
	const query = `
		SELECT
			wi.id AS workflow_id,
			wi.ticket_id AS ticket_key,
			wt.name AS template_name,
			COALESCE(SUM(ts.total_seconds), 0) AS actual_duration_seconds,
			wt.estimated_duration_seconds,
			array_remove(array_agg(ts.notes), NULL) AS step_notes,
			COALESCE(wi.completed_at, wi.updated_at) AS completed_at
		FROM workflow_instances wi
		JOIN workflow_templates wt ON wt.id = wi.template_id
		LEFT JOIN time_sessions ts ON ts.workflow_instance_id = wi.id
		WHERE wi.id = $1
		GROUP BY wi.id, wi.ticket_id, wt.name, wt.estimated_duration_seconds, wi.completed_at, wi.updated_at
	`
	var row struct {
		WorkflowID               uuid.UUID      `db:"workflow_id"`
		TicketKey                string         `db:"ticket_key"`
		TemplateName             string         `db:"template_name"`
		ActualDurationSeconds    int64          `db:"actual_duration_seconds"`
		EstimatedDurationSeconds sql.NullInt64  `db:"estimated_duration_seconds"`
		StepNotes                pq.StringArray `db:"step_notes"`
		CompletedAt              time.Time      `db:"completed_at"`
	}
	err := g.db.GetContext(ctx, &row, query, workflowID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, qaerrors.DatabaseError("get workflow analysis data", err)
	}

	data := &patterns.WorkflowAnalysisData{
		WorkflowID:            row.WorkflowID,
		TicketKey:             row.TicketKey,
		TemplateName:          row.TemplateName,
		ActualDurationSeconds: row.ActualDurationSeconds,
		StepNotes:             []string(row.StepNotes),
		CompletedAt:           row.CompletedAt,
	}
	if row.EstimatedDurationSeconds.Valid {
		data.EstimatedDurationSeconds = &row.EstimatedDurationSeconds.Int64
	}
	return data, nil
}

// GetRecentCompletedWorkflows returns the last limit completed workflows
// with their step notes flattened into one string, for the
// consecutive-problem detector. Satisfies patterns.Reader.
func (g *Gateway) GetRecentCompletedWorkflows(ctx context.Context, limit int) ([]patterns.RecentWorkflow, error) {
	const query = `
		SELECT
			wi.ticket_id AS ticket_key,
			NULLIF(string_agg(ts.notes, ' '), '') AS notes
		FROM workflow_instances wi
		LEFT JOIN time_sessions ts ON ts.workflow_instance_id = wi.id
		WHERE wi.status = 'completed'
		GROUP BY wi.id, wi.ticket_id, wi.completed_at
		ORDER BY wi.completed_at DESC
		LIMIT $1
	`
	var rows []struct {
		TicketKey string         `db:"ticket_key"`
		Notes     sql.NullString `db:"notes"`
	}
	if err := g.db.SelectContext(ctx, &rows, query, limit); err != nil {
		return nil, qaerrors.DatabaseError("get recent completed workflows", err)
	}
	out := make([]patterns.RecentWorkflow, 0, len(rows))
	for _, r := range rows {
		rw := patterns.RecentWorkflow{TicketKey: r.TicketKey}
		if r.Notes.Valid {
			rw.Notes = &r.Notes.String
		}
		out = append(out, rw)
	}
	return out, nil
}

// GetTicketVolumeStats returns today's completed-workflow count and the
// trailing 7-day daily average, for the spike detector. Satisfies
// patterns.Reader.
func (g *Gateway) GetTicketVolumeStats(ctx context.Context) (*patterns.TicketVolumeStats, error) {
	const todayQuery = `
		SELECT COUNT(*) FROM workflow_instances
		WHERE status = 'completed' AND DATE(completed_at) = CURRENT_DATE
	`
	const avgQuery = `
		SELECT COALESCE(AVG(daily_count), 0) FROM (
			SELECT COUNT(*) AS daily_count
			FROM workflow_instances
			WHERE status = 'completed'
			  AND completed_at >= CURRENT_DATE - INTERVAL '7 days'
			  AND completed_at < CURRENT_DATE
			GROUP BY DATE(completed_at)
		) daily
	`
	var stats patterns.TicketVolumeStats
	if err := g.db.GetContext(ctx, &stats.TodayCount, todayQuery); err != nil {
		return nil, qaerrors.DatabaseError("get ticket volume stats", err)
	}
	if err := g.db.GetContext(ctx, &stats.AvgCount, avgQuery); err != nil {
		return nil, qaerrors.DatabaseError("get ticket volume stats", err)
	}
	return &stats, nil
}

// SavePattern persists a detected pattern. It is a storage-side extension
// beyond patterns.Reader — the detector reports findings that the
// embedding application chooses to persist before dispatching an alert.
func (g *Gateway) SavePattern(ctx context.Context, p patterns.DetectedPattern) error {
	metadata, err := json.Marshal(p.Metadata)
	if err != nil {
		return qaerrors.ParseError("pattern metadata", "json", err)
	}
	const query = `
		INSERT INTO detected_patterns (
			id, pattern_type, severity, title, description,
			affected_tickets, common_factor, average_excess_percent,
			confidence_score, suggested_actions, metadata, detected_at, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $12)
	`
	_, err = g.db.ExecContext(ctx, query,
		p.ID, string(p.Type), string(p.Severity), p.Title, p.Description,
		pq.Array(p.AffectedTickets), p.CommonFactor, p.AverageExcessPercent,
		p.ConfidenceScore, pq.Array(p.SuggestedActions), metadata, p.DetectedAt,
	)
	if err != nil {
		return qaerrors.DatabaseError("save pattern", err)
	}
	g.log.WithFields(logging.DatabaseFields("create", "detected_patterns").
		Custom("pattern_id", p.ID).ToLogrus()).Debug("pattern persisted")
	return nil
}
