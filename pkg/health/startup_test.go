package health_test

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/jordigilh/qa-intelligence/pkg/health"
)

var _ = Describe("StartupValidator", func() {
	It("is valid with no configured checks", func() {
		v := health.NewStartupValidator(nil)
		report := v.Validate(context.Background())

		Expect(report.Valid).To(BeTrue())
		Expect(report.HasCriticalFailure).To(BeFalse())
		Expect(report.Results).To(BeEmpty())
	})

	It("is valid when every check is online", func() {
		v := health.NewStartupValidator(nil).
			AddCritical(&mockCheck{name: "jira", status: health.StatusOnline}).
			AddOptional(&mockCheck{name: "postman", status: health.StatusOnline})

		report := v.Validate(context.Background())

		Expect(report.Valid).To(BeTrue())
		Expect(report.HasCriticalFailure).To(BeFalse())
		Expect(report.Results).To(HaveLen(2))
		for _, r := range report.Results {
			Expect(r.Success).To(BeTrue())
		}
	})

	It("is invalid when a critical check fails", func() {
		v := health.NewStartupValidator(nil).
			AddCritical(&mockCheck{name: "jira", status: health.StatusOffline}).
			AddOptional(&mockCheck{name: "postman", status: health.StatusOnline})

		report := v.Validate(context.Background())

		Expect(report.Valid).To(BeFalse())
		Expect(report.HasCriticalFailure).To(BeTrue())

		var jira health.ValidationResult
		for _, r := range report.Results {
			if r.Integration == "jira" {
				jira = r
			}
		}
		Expect(jira.Success).To(BeFalse())
		Expect(jira.IsCritical).To(BeTrue())
	})

	It("stays valid when only an optional check fails", func() {
		v := health.NewStartupValidator(nil).
			AddCritical(&mockCheck{name: "jira", status: health.StatusOnline}).
			AddOptional(&mockCheck{name: "postman", status: health.StatusOffline})

		report := v.Validate(context.Background())

		Expect(report.Valid).To(BeTrue())
		Expect(report.HasCriticalFailure).To(BeFalse())

		var postman health.ValidationResult
		for _, r := range report.Results {
			if r.Integration == "postman" {
				postman = r
			}
		}
		Expect(postman.Success).To(BeFalse())
		Expect(postman.IsCritical).To(BeFalse())
	})

	It("counts degraded as success at startup", func() {
		v := health.NewStartupValidator(nil).
			AddCritical(&mockCheck{name: "jira", status: health.StatusDegraded})

		report := v.Validate(context.Background())

		Expect(report.Valid).To(BeTrue())
		Expect(report.Results[0].Success).To(BeTrue())
	})

	It("runs checks in parallel rather than sequentially", func() {
		v := health.NewStartupValidator(nil).
			AddCritical(&mockCheck{name: "jira", status: health.StatusOnline, delay: 100 * time.Millisecond}).
			AddOptional(&mockCheck{name: "postman", status: health.StatusOnline, delay: 100 * time.Millisecond})

		report := v.Validate(context.Background())

		Expect(report.TotalTimeMs).To(BeNumerically("<", 180))
		Expect(report.Valid).To(BeTrue())
	})
})
