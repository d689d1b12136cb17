package storage_test

import (
	"context"
	"encoding/json"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/jordigilh/qa-intelligence/pkg/anomaly"
	"github.com/jordigilh/qa-intelligence/pkg/storage"
)

var _ = Describe("Gateway anomalies", func() {
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

	Describe("SaveAnomaly", func() {
		It("inserts the row with detected_at reused as created_at", func() {
			a := anomaly.Anomaly{
				ID:          uuid.New(),
				DetectedAt:  time.Now(),
				Type:        anomaly.OutlierDuration,
				Severity:    anomaly.SeverityWarning,
				Description: "execution took 3x baseline",
				Metrics:     anomaly.Metrics{ZScore: 3.2, Confidence: 0.9},
			}

			mock.ExpectExec(`INSERT INTO anomalies`).
				WithArgs(a.ID, string(a.Type), string(a.Severity), a.Description,
					sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), a.DetectedAt).
				WillReturnResult(sqlmock.NewResult(1, 1))

			Expect(gw.SaveAnomaly(ctx, a)).To(Succeed())
		})
	})

	Describe("GetRecentAnomalies", func() {
		It("decodes rows including the metrics json column", func() {
			metrics, err := json.Marshal(anomaly.Metrics{ZScore: 2.5})
			Expect(err).ToNot(HaveOccurred())

			rows := sqlmock.NewRows([]string{
				"id", "anomaly_type", "severity", "description", "metrics",
				"affected_entities", "investigation_steps", "detected_at",
			}).AddRow(uuid.New(), "outlier_duration", "warning", "slow run", metrics,
				"{PROJ-1}", "{check logs}", time.Now())

			mock.ExpectQuery(`SELECT .* FROM anomalies`).
				WithArgs(5).
				WillReturnRows(rows)

			result, err := gw.GetRecentAnomalies(ctx, 5)
			Expect(err).ToNot(HaveOccurred())
			Expect(result).To(HaveLen(1))
			Expect(result[0].Metrics.ZScore).To(Equal(2.5))
		})
	})

	Describe("GetHistoricalExecutions", func() {
		It("scopes by template id when provided", func() {
			templateID := uuid.New()
			rows := sqlmock.NewRows([]string{
				"instance_id", "ticket_id", "user_id", "template_id",
				"execution_time_seconds", "succeeded", "completed_at",
			}).AddRow(uuid.New(), "PROJ-1", "user-1", templateID, 300, true, time.Now())

			mock.ExpectQuery(`SELECT`).
				WithArgs(templateID, 20).
				WillReturnRows(rows)

			executions, err := gw.GetHistoricalExecutions(ctx, 20, &templateID)
			Expect(err).ToNot(HaveOccurred())
			Expect(executions).To(HaveLen(1))
			Expect(executions[0].TicketID).To(Equal("PROJ-1"))
		})

		It("omits the template filter when nil", func() {
			rows := sqlmock.NewRows([]string{
				"instance_id", "ticket_id", "user_id", "template_id",
				"execution_time_seconds", "succeeded", "completed_at",
			})

			mock.ExpectQuery(`SELECT`).
				WithArgs(20).
				WillReturnRows(rows)

			executions, err := gw.GetHistoricalExecutions(ctx, 20, nil)
			Expect(err).ToNot(HaveOccurred())
			Expect(executions).To(BeEmpty())
		})
	})
})
