package health_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/jordigilh/qa-intelligence/pkg/health"
)

var _ = Describe("HTTPPingCheck", func() {
	It("reports online for a fast 2xx response", func() {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))
		defer server.Close()

		check := health.NewHTTPPingCheck("jira", server.URL, nil, nil)
		result := check.Run(context.Background())

		Expect(result.Status).To(Equal(health.StatusOnline))
		Expect(result.ResponseTimeMs).NotTo(BeNil())
	})

	It("reports offline on a 401 response", func() {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		}))
		defer server.Close()

		check := health.NewHTTPPingCheck("jira", server.URL, nil, nil)
		result := check.Run(context.Background())

		Expect(result.Status).To(Equal(health.StatusOffline))
		Expect(*result.ErrorMessage).To(ContainSubstring("authentication"))
	})

	It("reports degraded for a slow 2xx response", func() {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(2100 * time.Millisecond)
			w.WriteHeader(http.StatusOK)
		}))
		defer server.Close()

		check := health.NewHTTPPingCheck("jira", server.URL, nil, nil)
		result := check.Run(context.Background())

		Expect(result.Status).To(Equal(health.StatusDegraded))
	})

	It("applies the auth callback to the outbound request", func() {
		var gotAuth string
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotAuth = r.Header.Get("Authorization")
			w.WriteHeader(http.StatusOK)
		}))
		defer server.Close()

		check := health.NewHTTPPingCheck("jira", server.URL, func(req *http.Request) {
			req.Header.Set("Authorization", "Bearer token123")
		}, nil)
		check.Run(context.Background())

		Expect(gotAuth).To(Equal("Bearer token123"))
	})

	It("reports offline when the server is unreachable", func() {
		check := health.NewHTTPPingCheck("jira", "http://127.0.0.1:1", nil, nil)
		result := check.Run(context.Background())

		Expect(result.Status).To(Equal(health.StatusOffline))
	})
})
