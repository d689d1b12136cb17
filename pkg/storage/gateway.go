// Package storage implements the Postgres-backed persistence gateway: typed
// CRUD over time sessions, anomalies, detected patterns, alerts, generated
// test cases, and integration health, behind the collaborator interfaces
// each domain package declares (tracking.Store, patterns.Reader,
// alerting.Store). Row encoding belongs exclusively to this package; callers
// never see SQL.
package storage

import (
	"io"

	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"

	"github.com/jordigilh/qa-intelligence/pkg/alerting"
	"github.com/jordigilh/qa-intelligence/pkg/patterns"
	"github.com/jordigilh/qa-intelligence/pkg/tracking"
)

var (
	_ tracking.Store  = (*Gateway)(nil)
	_ patterns.Reader = (*Gateway)(nil)
	_ alerting.Store  = (*Gateway)(nil)
)

// Gateway is the shared handle every domain-specific store method hangs off
// of. A single *sqlx.DB pool is reused across all domains.
type Gateway struct {
	db  *sqlx.DB
	log *logrus.Logger
}

// New wraps an already-connected *sqlx.DB (e.g. sqlx.NewDb(sql.Open(...)))
// into a Gateway. log may be nil, in which case a disabled logger is used.
func New(db *sqlx.DB, log *logrus.Logger) *Gateway {
	if log == nil {
		log = logrus.New()
		log.SetOutput(io.Discard)
	}
	return &Gateway{db: db, log: log}
}
