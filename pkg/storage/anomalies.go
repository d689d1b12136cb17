package storage

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/jordigilh/qa-intelligence/pkg/anomaly"
	qaerrors "github.com/jordigilh/qa-intelligence/pkg/shared/errors"
	"github.com/jordigilh/qa-intelligence/pkg/shared/logging"
)

// SaveAnomaly persists a detected anomaly, grounded on the original
// implementation's create_anomaly.
func (g *Gateway) SaveAnomaly(ctx context.Context, a anomaly.Anomaly) error {
	metrics, err := json.Marshal(a.Metrics)
	if err != nil {
		return qaerrors.ParseError("anomaly metrics", "json", err)
	}

	const query = `
		INSERT INTO anomalies (
			id, anomaly_type, severity, description, metrics,
			affected_entities, investigation_steps, detected_at, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)
	`
	_, err = g.db.ExecContext(ctx, query,
		a.ID, string(a.Type), string(a.Severity), a.Description, metrics,
		pq.Array(a.AffectedEntities), pq.Array(a.InvestigationSteps), a.DetectedAt,
	)
	if err != nil {
		return qaerrors.DatabaseError("save anomaly", err)
	}
	g.log.WithFields(logging.DatabaseFields("create", "anomalies").
		Custom("anomaly_id", a.ID).Custom("type", a.Type).ToLogrus()).Debug("anomaly persisted")
	return nil
}

// GetRecentAnomalies returns the most recently detected anomalies, newest
// first.
func (g *Gateway) GetRecentAnomalies(ctx context.Context, limit int) ([]anomaly.Anomaly, error) {
	const query = `
		SELECT id, anomaly_type, severity, description, metrics,
			affected_entities, investigation_steps, detected_at
		FROM anomalies
		ORDER BY detected_at DESC
		LIMIT $1
	`
	var rows []struct {
		ID                 uuid.UUID `db:"id"`
		AnomalyType        string    `db:"anomaly_type"`
		Severity           string    `db:"severity"`
		Description        string    `db:"description"`
		Metrics            []byte         `db:"metrics"`
		AffectedEntities   pq.StringArray `db:"affected_entities"`
		InvestigationSteps pq.StringArray `db:"investigation_steps"`
		DetectedAt         time.Time      `db:"detected_at"`
	}
	if err := g.db.SelectContext(ctx, &rows, query, limit); err != nil {
		return nil, qaerrors.DatabaseError("get recent anomalies", err)
	}

	out := make([]anomaly.Anomaly, 0, len(rows))
	for _, r := range rows {
		var metrics anomaly.Metrics
		if err := json.Unmarshal(r.Metrics, &metrics); err != nil {
			g.log.WithFields(logging.DatabaseFields("decode", "anomalies").
				Custom("anomaly_id", r.ID).ToLogrus()).Warn("failed to decode anomaly metrics, using zero value")
		}
		out = append(out, anomaly.Anomaly{
			ID:                 r.ID,
			DetectedAt:         r.DetectedAt,
			Type:               anomaly.AnomalyType(r.AnomalyType),
			Severity:           anomaly.Severity(r.Severity),
			Description:        r.Description,
			Metrics:            metrics,
			AffectedEntities:   []string(r.AffectedEntities),
			InvestigationSteps: []string(r.InvestigationSteps),
		})
	}
	return out, nil
}

// GetHistoricalExecutions returns the last limit completed workflow
// executions, optionally scoped to a template, for baseline seeding.
// Grounded on the original implementation's get_historical_executions,
// which joins workflow_instances against time_sessions to derive an
// execution's total duration.
func (g *Gateway) GetHistoricalExecutions(ctx context.Context, limit int, templateID *uuid.UUID) ([]anomaly.WorkflowExecution, error) {
	var (
		rows []struct {
			InstanceID           uuid.UUID `db:"instance_id"`
			TicketID             string    `db:"ticket_id"`
			UserID               string    `db:"user_id"`
			TemplateID           uuid.UUID `db:"template_id"`
			ExecutionTimeSeconds int       `db:"execution_time_seconds"`
			Succeeded            bool      `db:"succeeded"`
			CompletedAt          time.Time `db:"completed_at"`
		}
		err error
	)

	const baseQuery = `
		SELECT
			wi.id AS instance_id,
			wi.ticket_id,
			wi.user_id,
			wi.template_id,
			COALESCE(SUM(ts.total_seconds), 0) AS execution_time_seconds,
			(wi.status = 'completed') AS succeeded,
			COALESCE(wi.completed_at, wi.updated_at) AS completed_at
		FROM workflow_instances wi
		LEFT JOIN time_sessions ts ON ts.workflow_instance_id = wi.id
		WHERE wi.status = 'completed'
		  AND wi.completed_at IS NOT NULL
	`
	if templateID != nil {
		query := baseQuery + `
		  AND wi.template_id = $1
		GROUP BY wi.id, wi.ticket_id, wi.user_id, wi.template_id, wi.status, wi.completed_at, wi.updated_at
		ORDER BY COALESCE(wi.completed_at, wi.updated_at) DESC
		LIMIT $2
		`
		err = g.db.SelectContext(ctx, &rows, query, *templateID, limit)
	} else {
		query := baseQuery + `
		GROUP BY wi.id, wi.ticket_id, wi.user_id, wi.template_id, wi.status, wi.completed_at, wi.updated_at
		ORDER BY COALESCE(wi.completed_at, wi.updated_at) DESC
		LIMIT $1
		`
		err = g.db.SelectContext(ctx, &rows, query, limit)
	}
	if err != nil {
		return nil, qaerrors.DatabaseError("get historical executions", err)
	}

	out := make([]anomaly.WorkflowExecution, 0, len(rows))
	for _, r := range rows {
		out = append(out, anomaly.WorkflowExecution{
			InstanceID:           r.InstanceID,
			TicketID:             r.TicketID,
			UserID:               r.UserID,
			TemplateID:           r.TemplateID,
			ExecutionTimeSeconds: r.ExecutionTimeSeconds,
			Succeeded:            r.Succeeded,
			CompletedAt:          r.CompletedAt,
		})
	}
	return out, nil
}
