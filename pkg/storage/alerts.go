package storage

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/jordigilh/qa-intelligence/pkg/alerting"
	qaerrors "github.com/jordigilh/qa-intelligence/pkg/shared/errors"
	"github.com/jordigilh/qa-intelligence/pkg/shared/logging"
)

// SaveAlert inserts a dispatched alert. Satisfies alerting.Store. New rows
// always start unread and undismissed, mirroring the original
// implementation's create_alert.
func (g *Gateway) SaveAlert(ctx context.Context, alert alerting.Alert) error {
	metrics, err := json.Marshal(alert.Metrics)
	if err != nil {
		return qaerrors.ParseError("alert metrics", "json", err)
	}

	id := alert.ID
	if id == uuid.Nil {
		id = uuid.New()
	}

	const query = `
		INSERT INTO alerts (
			id, alert_type, severity, title,
			affected_tickets, suggested_actions, metrics,
			is_read, is_dismissed, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, FALSE, FALSE, NOW())
	`
	_, err = g.db.ExecContext(ctx, query,
		id, alert.Type, string(alert.Severity), alert.Description,
		pq.Array(alert.AffectedEntities), pq.Array(alert.InvestigationSteps), metrics,
	)
	if err != nil {
		return qaerrors.DatabaseError("save alert", err)
	}
	g.log.WithFields(logging.DatabaseFields("create", "alerts").
		Custom("alert_id", id).Custom("severity", alert.Severity).ToLogrus()).Debug("alert persisted")
	return nil
}
