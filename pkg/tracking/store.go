package tracking

import (
	"context"

	"github.com/google/uuid"
)

// Store is the persistence collaborator the Engine relies on. The
// persistence gateway (pkg/storage) provides the production implementation;
// tests use a map-backed fake.
type Store interface {
	CreateSession(ctx context.Context, session *Session) error
	UpdateSession(ctx context.Context, session *Session) error
	GetActiveSession(ctx context.Context, workflowID uuid.UUID) (*Session, error)
	GetSessionForStep(ctx context.Context, workflowID uuid.UUID, stepIndex int) (*Session, error)
	GetSession(ctx context.Context, sessionID uuid.UUID) (*Session, error)
	GetWorkflowSessions(ctx context.Context, workflowID uuid.UUID) ([]Session, error)
}
