package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"

	qaerrors "github.com/jordigilh/qa-intelligence/pkg/shared/errors"
	"github.com/jordigilh/qa-intelligence/pkg/health"
	"github.com/jordigilh/qa-intelligence/pkg/shared/logging"
)

// UpsertHealthCheck records one health check result, keyed on the composite
// uniqueness of (integration, last_checked) as described by the relational
// schema; a retried check within the same timestamp updates in place rather
// than duplicating. Grounded on the original implementation's
// store_health_status, adapted from its pricing/fees-sync-specific columns
// to this domain's single status/response-time/error-message shape.
func (g *Gateway) UpsertHealthCheck(ctx context.Context, result health.CheckResult) error {
	const query = `
		INSERT INTO integration_health (
			integration, status, response_time_ms, error_message, last_checked, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
		ON CONFLICT (integration, last_checked) DO UPDATE SET
			status = EXCLUDED.status,
			response_time_ms = EXCLUDED.response_time_ms,
			error_message = EXCLUDED.error_message,
			updated_at = NOW()
	`
	_, err := g.db.ExecContext(ctx, query,
		result.Integration, string(result.Status), result.ResponseTimeMs, result.ErrorMessage, result.CheckedAt,
	)
	if err != nil {
		return qaerrors.DatabaseError("upsert health check", err)
	}
	g.log.WithFields(logging.IntegrationFields("persist", result.Integration).
		Custom("status", result.Status).ToLogrus()).Debug("health check persisted")
	return nil
}

// GetLatestHealth returns the most recently recorded check for an
// integration, or nil if none has ever been stored.
func (g *Gateway) GetLatestHealth(ctx context.Context, integration string) (*health.CheckResult, error) {
	const query = `
		SELECT integration, status, response_time_ms, error_message, last_checked
		FROM integration_health
		WHERE integration = $1
		ORDER BY last_checked DESC
		LIMIT 1
	`
	var row struct {
		Integration    string    `db:"integration"`
		Status         string    `db:"status"`
		ResponseTimeMs *int64    `db:"response_time_ms"`
		ErrorMessage   *string   `db:"error_message"`
		LastChecked    time.Time `db:"last_checked"`
	}
	err := g.db.GetContext(ctx, &row, query, integration)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, qaerrors.DatabaseError("get latest health", err)
	}

	return &health.CheckResult{
		Integration:    row.Integration,
		Status:         health.HealthStatus(row.Status),
		ResponseTimeMs: row.ResponseTimeMs,
		ErrorMessage:   row.ErrorMessage,
		CheckedAt:      row.LastChecked,
	}, nil
}
