package storage_test

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/jordigilh/qa-intelligence/pkg/storage"
	"github.com/jordigilh/qa-intelligence/pkg/tracking"
)

var _ = Describe("Gateway sessions", func() {
	var (
		ctx  context.Context
		gw   *storage.Gateway
		mock sqlmock.Sqlmock
	)

	BeforeEach(func() {
		ctx = context.Background()
		gw, mock = newMockGateway()
	})

	AfterEach(func() {
		Expect(mock.ExpectationsWereMet()).To(Succeed())
	})

	Describe("CreateSession", func() {
		It("inserts a new row", func() {
			session := &tracking.Session{
				ID:         uuid.New(),
				WorkflowID: uuid.New(),
				StepIndex:  0,
				StartedAt:  time.Now(),
			}

			mock.ExpectExec(`INSERT INTO time_sessions`).
				WithArgs(session.ID, session.WorkflowID, session.StepIndex,
					sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(),
					int64(0), int64(0)).
				WillReturnResult(sqlmock.NewResult(1, 1))

			Expect(gw.CreateSession(ctx, session)).To(Succeed())
		})

		It("wraps a database error", func() {
			session := &tracking.Session{ID: uuid.New(), WorkflowID: uuid.New()}

			mock.ExpectExec(`INSERT INTO time_sessions`).
				WillReturnError(errors.New("connection refused"))

			err := gw.CreateSession(ctx, session)
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("create session"))
		})
	})

	Describe("UpdateSession", func() {
		It("updates the row by id", func() {
			ended := time.Now()
			session := &tracking.Session{
				ID:                 uuid.New(),
				EndedAt:            &ended,
				AccumulatedSeconds: 120,
				TotalSeconds:       120,
			}

			mock.ExpectExec(`UPDATE time_sessions SET`).
				WithArgs(session.ID, sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(),
					session.AccumulatedSeconds, session.TotalSeconds).
				WillReturnResult(sqlmock.NewResult(0, 1))

			Expect(gw.UpdateSession(ctx, session)).To(Succeed())
		})

		It("errors when no row matched", func() {
			session := &tracking.Session{ID: uuid.New()}

			mock.ExpectExec(`UPDATE time_sessions SET`).
				WithArgs(session.ID, sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(),
					session.AccumulatedSeconds, session.TotalSeconds).
				WillReturnResult(sqlmock.NewResult(0, 0))

			err := gw.UpdateSession(ctx, session)
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("GetActiveSession", func() {
		It("returns nil when no session is active", func() {
			workflowID := uuid.New()
			mock.ExpectQuery(`SELECT .* FROM time_sessions`).
				WithArgs(workflowID).
				WillReturnError(sql.ErrNoRows)

			session, err := gw.GetActiveSession(ctx, workflowID)
			Expect(err).ToNot(HaveOccurred())
			Expect(session).To(BeNil())
		})

		It("returns the matching row", func() {
			workflowID := uuid.New()
			sessionID := uuid.New()
			started := time.Now()

			rows := sqlmock.NewRows([]string{
				"id", "workflow_instance_id", "step_index", "started_at", "ended_at",
				"paused_at", "last_resume_at", "accumulated_seconds", "total_seconds",
			}).AddRow(sessionID, workflowID, 0, started, nil, nil, nil, int64(30), int64(30))

			mock.ExpectQuery(`SELECT .* FROM time_sessions`).
				WithArgs(workflowID).
				WillReturnRows(rows)

			session, err := gw.GetActiveSession(ctx, workflowID)
			Expect(err).ToNot(HaveOccurred())
			Expect(session).ToNot(BeNil())
			Expect(session.ID).To(Equal(sessionID))
			Expect(session.IsActive()).To(BeTrue())
		})
	})

	Describe("GetWorkflowSessions", func() {
		It("returns every session for the workflow", func() {
			workflowID := uuid.New()
			rows := sqlmock.NewRows([]string{
				"id", "workflow_instance_id", "step_index", "started_at", "ended_at",
				"paused_at", "last_resume_at", "accumulated_seconds", "total_seconds",
			}).
				AddRow(uuid.New(), workflowID, 0, time.Now(), time.Now(), nil, nil, int64(60), int64(60)).
				AddRow(uuid.New(), workflowID, 1, time.Now(), nil, nil, nil, int64(10), int64(10))

			mock.ExpectQuery(`SELECT .* FROM time_sessions`).
				WithArgs(workflowID).
				WillReturnRows(rows)

			sessions, err := gw.GetWorkflowSessions(ctx, workflowID)
			Expect(err).ToNot(HaveOccurred())
			Expect(sessions).To(HaveLen(2))
		})
	})
})
