package health

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
)

const degradedLatencyThreshold = 2 * time.Second

// HTTPPingCheck polls an authenticated "who am I"-style endpoint and
// classifies the response into Online/Degraded/Offline. It is the one
// concrete Check this package ships; Jira/Postman/Testmo-style checks are
// thin configurations of the same authenticated-GET-then-classify shape and
// are supplied by the embedding application.
type HTTPPingCheck struct {
	integration string
	url         string
	applyAuth   func(*http.Request)
	client      *http.Client
	breaker     *gobreaker.CircuitBreaker
}

// NewHTTPPingCheck builds a check against url, applying applyAuth (e.g. to
// set an Authorization header) to each outbound request before it is sent.
// client is reused across requests and shared by the circuit breaker; pass
// nil to use http.DefaultClient.
func NewHTTPPingCheck(integration, url string, applyAuth func(*http.Request), client *http.Client) *HTTPPingCheck {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPPingCheck{
		integration: integration,
		url:         url,
		applyAuth:   applyAuth,
		client:      client,
		breaker:     newBreaker(integration),
	}
}

// IntegrationName returns the configured integration name.
func (c *HTTPPingCheck) IntegrationName() string {
	return c.integration
}

// Run performs the authenticated GET and classifies the outcome.
func (c *HTTPPingCheck) Run(ctx context.Context) CheckResult {
	start := time.Now()

	result, err := c.breaker.Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
		if err != nil {
			return nil, err
		}
		if c.applyAuth != nil {
			c.applyAuth(req)
		}

		resp, err := c.client.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
		_, _ = io.Copy(io.Discard, resp.Body)

		return resp.StatusCode, nil
	})

	elapsed := time.Since(start)

	if err != nil {
		if ctx.Err() != nil || isTimeoutErr(err) {
			return OfflineResult(c.integration, fmt.Sprintf("timeout: %v", err))
		}
		return OfflineResult(c.integration, fmt.Sprintf("network error: %v", err))
	}

	status := result.(int)
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return OfflineResult(c.integration, fmt.Sprintf("authentication failed (status %d)", status))
	case status < 200 || status >= 300:
		return OfflineResult(c.integration, fmt.Sprintf("unexpected status %d", status))
	case elapsed >= degradedLatencyThreshold:
		return DegradedResult(c.integration, elapsed, fmt.Sprintf("slow response (%s)", elapsed))
	default:
		return OnlineResult(c.integration, elapsed)
	}
}

func isTimeoutErr(err error) bool {
	type timeouter interface{ Timeout() bool }
	te, ok := err.(timeouter)
	return ok && te.Timeout()
}
