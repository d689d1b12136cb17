package storage_test

import (
	"context"
	"errors"

	"github.com/DATA-DOG/go-sqlmock"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/jordigilh/qa-intelligence/pkg/storage"
	"github.com/jordigilh/qa-intelligence/pkg/testgen"
)

var _ = Describe("Gateway test cases", func() {
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

	Describe("SaveTestCases", func() {
		It("does nothing for an empty slice", func() {
			Expect(gw.SaveTestCases(ctx, "PROJ-1", nil)).To(Succeed())
		})

		It("inserts one row per case inside a transaction", func() {
			cases := []testgen.GeneratedTestCase{
				{
					Title:          "Login succeeds with valid credentials",
					Description:    "verify happy path login",
					Steps:          []string{"open login page", "enter credentials", "submit"},
					ExpectedResult: "user is redirected to dashboard",
					Priority:       "High",
					Category:       "Functional",
					Tags:           []string{"auth"},
				},
				{
					Title:          "Login fails with bad password",
					Description:    "verify rejection path",
					Steps:          []string{"open login page", "enter bad password", "submit"},
					ExpectedResult: "error message is shown",
					Priority:       "Medium",
					Category:       "Functional",
				},
			}

			mock.ExpectBegin()
			for range cases {
				mock.ExpectExec(`INSERT INTO test_cases`).
					WithArgs(sqlmock.AnyArg(), "PROJ-1", sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(),
						sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
					WillReturnResult(sqlmock.NewResult(1, 1))
			}
			mock.ExpectCommit()

			Expect(gw.SaveTestCases(ctx, "PROJ-1", cases)).To(Succeed())
		})

		It("rolls back and wraps the error when an insert fails", func() {
			cases := []testgen.GeneratedTestCase{
				{Title: "t", Description: "d", Steps: []string{"s"}, ExpectedResult: "r"},
			}

			mock.ExpectBegin()
			mock.ExpectExec(`INSERT INTO test_cases`).
				WillReturnError(errors.New("constraint violation"))
			mock.ExpectRollback()

			err := gw.SaveTestCases(ctx, "PROJ-1", cases)
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("save test cases"))
		})
	})

	Describe("GetTestCasesByTicket", func() {
		It("returns the persisted cases for a ticket", func() {
			rows := sqlmock.NewRows([]string{
				"title", "description", "preconditions", "steps",
				"expected_result", "priority", "category", "tags",
			}).AddRow("Login succeeds", "happy path", "", "{open page,submit}",
				"dashboard shown", "High", "Functional", "{auth}")

			mock.ExpectQuery(`SELECT .* FROM test_cases`).
				WithArgs("PROJ-1").
				WillReturnRows(rows)

			result, err := gw.GetTestCasesByTicket(ctx, "PROJ-1")
			Expect(err).ToNot(HaveOccurred())
			Expect(result).To(HaveLen(1))
			Expect(result[0].Steps).To(Equal([]string{"open page", "submit"}))
		})
	})
})
