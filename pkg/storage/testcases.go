package storage

import (
	"context"

	"github.com/google/uuid"
	"github.com/lib/pq"

	qaerrors "github.com/jordigilh/qa-intelligence/pkg/shared/errors"
	"github.com/jordigilh/qa-intelligence/pkg/shared/logging"
	"github.com/jordigilh/qa-intelligence/pkg/testgen"
)

// SaveTestCases persists the generated test cases for a ticket in a single
// transaction, grounded on the original implementation's TestCaseRepository
// create, adapted from its standalone test-management entity to the
// lighter-weight shape the generation pipeline produces.
func (g *Gateway) SaveTestCases(ctx context.Context, ticketKey string, cases []testgen.GeneratedTestCase) error {
	if len(cases) == 0 {
		return nil
	}

	tx, err := g.db.BeginTxx(ctx, nil)
	if err != nil {
		return qaerrors.DatabaseError("save test cases", err)
	}
	defer tx.Rollback() //nolint:errcheck

	const query = `
		INSERT INTO test_cases (
			id, ticket_key, title, description, preconditions, steps,
			expected_result, priority, category, tags, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW())
	`
	for _, tc := range cases {
		if _, err := tx.ExecContext(ctx, query,
			uuid.New(), ticketKey, tc.Title, tc.Description, tc.Preconditions, pq.Array(tc.Steps),
			tc.ExpectedResult, tc.Priority, tc.Category, pq.Array(tc.Tags),
		); err != nil {
			return qaerrors.DatabaseError("save test cases", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return qaerrors.DatabaseError("save test cases", err)
	}
	g.log.WithFields(logging.DatabaseFields("create", "test_cases").
		Custom("ticket_key", ticketKey).Custom("count", len(cases)).ToLogrus()).
		Debug("test cases persisted")
	return nil
}

// GetTestCasesByTicket returns every test case previously generated for a
// ticket.
func (g *Gateway) GetTestCasesByTicket(ctx context.Context, ticketKey string) ([]testgen.GeneratedTestCase, error) {
	const query = `
		SELECT title, description, preconditions, steps, expected_result, priority, category, tags
		FROM test_cases
		WHERE ticket_key = $1
		ORDER BY created_at DESC
	`
	var rows []struct {
		Title          string         `db:"title"`
		Description    string         `db:"description"`
		Preconditions  string         `db:"preconditions"`
		Steps          pq.StringArray `db:"steps"`
		ExpectedResult string         `db:"expected_result"`
		Priority       string         `db:"priority"`
		Category       string         `db:"category"`
		Tags           pq.StringArray `db:"tags"`
	}
	if err := g.db.SelectContext(ctx, &rows, query, ticketKey); err != nil {
		return nil, qaerrors.DatabaseError("get test cases by ticket", err)
	}

	out := make([]testgen.GeneratedTestCase, 0, len(rows))
	for _, r := range rows {
		out = append(out, testgen.GeneratedTestCase{
			Title:          r.Title,
			Description:    r.Description,
			Preconditions:  r.Preconditions,
			Steps:          []string(r.Steps),
			ExpectedResult: r.ExpectedResult,
			Priority:       r.Priority,
			Category:       r.Category,
			Tags:           []string(r.Tags),
		})
	}
	return out, nil
}
