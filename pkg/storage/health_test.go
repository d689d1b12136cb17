package storage_test

import (
	"context"
	"database/sql"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/jordigilh/qa-intelligence/pkg/health"
	"github.com/jordigilh/qa-intelligence/pkg/storage"
)

var _ = Describe("Gateway health", func() {
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

	Describe("UpsertHealthCheck", func() {
		It("upserts on the integration/last_checked conflict", func() {
			result := health.OnlineResult("jira", 120*time.Millisecond)

			mock.ExpectExec(`INSERT INTO integration_health .* ON CONFLICT \(integration, last_checked\) DO UPDATE`).
				WithArgs(result.Integration, string(result.Status), result.ResponseTimeMs, result.ErrorMessage, result.CheckedAt).
				WillReturnResult(sqlmock.NewResult(1, 1))

			Expect(gw.UpsertHealthCheck(ctx, result)).To(Succeed())
		})
	})

	Describe("GetLatestHealth", func() {
		It("returns nil when never checked", func() {
			mock.ExpectQuery(`SELECT .* FROM integration_health`).
				WithArgs("testmo").
				WillReturnError(sql.ErrNoRows)

			result, err := gw.GetLatestHealth(ctx, "testmo")
			Expect(err).ToNot(HaveOccurred())
			Expect(result).To(BeNil())
		})

		It("maps the most recent row", func() {
			rows := sqlmock.NewRows([]string{
				"integration", "status", "response_time_ms", "error_message", "last_checked",
			}).AddRow("jira", "online", int64(150), nil, time.Now())

			mock.ExpectQuery(`SELECT .* FROM integration_health`).
				WithArgs("jira").
				WillReturnRows(rows)

			result, err := gw.GetLatestHealth(ctx, "jira")
			Expect(err).ToNot(HaveOccurred())
			Expect(result.Status).To(Equal(health.StatusOnline))
			Expect(*result.ResponseTimeMs).To(Equal(int64(150)))
		})
	})
})
