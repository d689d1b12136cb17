package storage_test

import (
	"context"
	"database/sql"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/jordigilh/qa-intelligence/pkg/patterns"
	"github.com/jordigilh/qa-intelligence/pkg/storage"
)

var _ = Describe("Gateway patterns", func() {
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

	Describe("GetWorkflowAnalysisData", func() {
		It("returns nil when the workflow has no rows", func() {
			workflowID := uuid.New()
			mock.ExpectQuery(`SELECT`).
				WithArgs(workflowID).
				WillReturnError(sql.ErrNoRows)

			data, err := gw.GetWorkflowAnalysisData(ctx, workflowID)
			Expect(err).ToNot(HaveOccurred())
			Expect(data).To(BeNil())
		})

		It("maps the joined snapshot", func() {
			workflowID := uuid.New()
			rows := sqlmock.NewRows([]string{
				"workflow_id", "ticket_key", "template_name", "actual_duration_seconds",
				"estimated_duration_seconds", "step_notes", "completed_at",
			}).AddRow(workflowID, "PROJ-9", "Standard Release", int64(600), int64(400), "{step one,step two}", time.Now())

			mock.ExpectQuery(`SELECT`).
				WithArgs(workflowID).
				WillReturnRows(rows)

			data, err := gw.GetWorkflowAnalysisData(ctx, workflowID)
			Expect(err).ToNot(HaveOccurred())
			Expect(data.TicketKey).To(Equal("PROJ-9"))
			Expect(*data.EstimatedDurationSeconds).To(Equal(int64(400)))
		})
	})

	Describe("GetTicketVolumeStats", func() {
		It("combines today's count with the trailing average", func() {
			mock.ExpectQuery(`SELECT COUNT\(\*\) FROM workflow_instances`).
				WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(12)))
			mock.ExpectQuery(`SELECT COALESCE\(AVG`).
				WillReturnRows(sqlmock.NewRows([]string{"coalesce"}).AddRow(4.5))

			stats, err := gw.GetTicketVolumeStats(ctx)
			Expect(err).ToNot(HaveOccurred())
			Expect(stats.TodayCount).To(Equal(int64(12)))
			Expect(stats.AvgCount).To(Equal(4.5))
		})
	})

	Describe("SavePattern", func() {
		It("inserts with a shared detected/created timestamp", func() {
			p := patterns.DetectedPattern{
				ID:               uuid.New(),
				Type:             patterns.TimeExcess,
				Severity:         patterns.SeverityWarning,
				Title:            "Repeated overruns",
				Description:      "three workflows exceeded estimate",
				AffectedTickets:  []string{"PROJ-1", "PROJ-2"},
				ConfidenceScore:  0.8,
				SuggestedActions: []string{"review estimates"},
				Metadata:         map[string]interface{}{"count": 3},
				DetectedAt:       time.Now(),
			}

			mock.ExpectExec(`INSERT INTO detected_patterns`).
				WithArgs(p.ID, string(p.Type), string(p.Severity), p.Title, p.Description,
					sqlmock.AnyArg(), p.CommonFactor, p.AverageExcessPercent,
					p.ConfidenceScore, sqlmock.AnyArg(), sqlmock.AnyArg(), p.DetectedAt).
				WillReturnResult(sqlmock.NewResult(1, 1))

			Expect(gw.SavePattern(ctx, p)).To(Succeed())
		})
	})
})
