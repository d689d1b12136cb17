package health

import (
	"context"
	"time"
)

// HealthStatus is the status of an integration at a point in time.
type HealthStatus string

const (
	StatusOnline   HealthStatus = "online"
	StatusDegraded HealthStatus = "degraded"
	// StatusOffline is also the initial status: NewIntegrationHealth creates
	// a never-checked IntegrationHealth as offline until proven otherwise.
	StatusOffline HealthStatus = "offline"
)

// CheckResult is the outcome of a single health check.
type CheckResult struct {
	Integration    string
	Status         HealthStatus
	ResponseTimeMs *int64
	ErrorMessage   *string
	CheckedAt      time.Time
}

// OnlineResult builds a successful check result with a response time.
func OnlineResult(integration string, responseTime time.Duration) CheckResult {
	ms := responseTime.Milliseconds()
	return CheckResult{
		Integration:    integration,
		Status:         StatusOnline,
		ResponseTimeMs: &ms,
		CheckedAt:      time.Now(),
	}
}

// DegradedResult builds a result for an integration that responded but with
// a problem worth surfacing (slow response, partial failure, a warning).
func DegradedResult(integration string, responseTime time.Duration, message string) CheckResult {
	ms := responseTime.Milliseconds()
	return CheckResult{
		Integration:    integration,
		Status:         StatusDegraded,
		ResponseTimeMs: &ms,
		ErrorMessage:   &message,
		CheckedAt:      time.Now(),
	}
}

// OfflineResult builds a result for an integration that did not respond.
func OfflineResult(integration string, errMsg string) CheckResult {
	return CheckResult{
		Integration:  integration,
		Status:       StatusOffline,
		ErrorMessage: &errMsg,
		CheckedAt:    time.Now(),
	}
}

// IntegrationHealth is the aggregated, rolling health state for one
// integration, including downtime tracking across successive checks.
type IntegrationHealth struct {
	Integration         string
	Status              HealthStatus
	LastSuccessfulCheck *time.Time
	LastCheck           time.Time
	ResponseTimeMs      *int64
	ErrorMessage        *string
	ConsecutiveFailures uint32
	DowntimeStart       *time.Time
}

// NewIntegrationHealth creates the zero state (offline, never checked) for
// an integration prior to its first check.
func NewIntegrationHealth(integration string) IntegrationHealth {
	return IntegrationHealth{
		Integration: integration,
		Status:      StatusOffline,
		LastCheck:   time.Now(),
	}
}

// IsOffline reports whether the integration is currently down.
func (h IntegrationHealth) IsOffline() bool {
	return h.Status == StatusOffline
}

// DowntimeDuration returns how long the integration has been down, if it
// currently is.
func (h IntegrationHealth) DowntimeDuration() (time.Duration, bool) {
	if h.DowntimeStart == nil {
		return 0, false
	}
	return time.Since(*h.DowntimeStart), true
}

// Check performs a single health check against one integration.
type Check interface {
	// IntegrationName identifies the integration this check monitors
	// (e.g. "jira", "postman", "testmo").
	IntegrationName() string
	// Run performs the check. It should never return an error; connectivity
	// and authentication failures are reported through CheckResult's status
	// instead, matching the synchronous, always-succeeds contract the
	// scheduler and startup validator rely on.
	Run(ctx context.Context) CheckResult
}
