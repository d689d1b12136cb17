package storage_test

import (
	"context"
	"errors"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/jordigilh/qa-intelligence/pkg/alerting"
	"github.com/jordigilh/qa-intelligence/pkg/storage"
)

var _ = Describe("Gateway alerts", func() {
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

	Describe("SaveAlert", func() {
		It("inserts unread and undismissed", func() {
			alert := alerting.Alert{
				ID:                 uuid.New(),
				Type:               "time_excess",
				Severity:           alerting.SeverityWarning,
				Description:        "workflow exceeded estimate by 40%",
				AffectedEntities:   []string{"PROJ-1"},
				InvestigationSteps: []string{"check step 3"},
				Metrics:            map[string]interface{}{"excess_percent": 40},
			}

			mock.ExpectExec(`INSERT INTO alerts`).
				WithArgs(alert.ID, alert.Type, string(alert.Severity), alert.Description,
					sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
				WillReturnResult(sqlmock.NewResult(1, 1))

			Expect(gw.SaveAlert(ctx, alert)).To(Succeed())
		})

		It("generates an id when none is set", func() {
			alert := alerting.Alert{
				Type:        "spike",
				Severity:    alerting.SeverityCritical,
				Description: "ticket volume spike",
			}

			mock.ExpectExec(`INSERT INTO alerts`).
				WithArgs(sqlmock.AnyArg(), alert.Type, string(alert.Severity), alert.Description,
					sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
				WillReturnResult(sqlmock.NewResult(1, 1))

			Expect(gw.SaveAlert(ctx, alert)).To(Succeed())
		})

		It("wraps a database error", func() {
			alert := alerting.Alert{ID: uuid.New(), Severity: alerting.SeverityWarning}

			mock.ExpectExec(`INSERT INTO alerts`).
				WillReturnError(errors.New("deadlock detected"))

			err := gw.SaveAlert(ctx, alert)
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("save alert"))
		})
	})
})
