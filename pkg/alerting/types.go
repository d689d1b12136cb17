// Package alerting implements the alert pipeline: a severity gate, a
// pluggable rate limiter, and fan-out across independent delivery
// channels (in-app, Slack webhook, email).
package alerting

import (
	"github.com/google/uuid"
)

// Severity is the alert severity carried by an anomaly or pattern.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

var severityRank = map[Severity]int{
	SeverityInfo:     0,
	SeverityWarning:  1,
	SeverityCritical: 2,
}

// Alert is the channel-agnostic payload handed to the pipeline by the
// anomaly detector or the pattern detector.
type Alert struct {
	ID                 uuid.UUID
	Type               string
	Severity           Severity
	Description        string
	AffectedEntities   []string
	InvestigationSteps []string
	Metrics            map[string]interface{}
}

// Config controls severity gating, rate limiting, and which channels are
// enabled.
type Config struct {
	MinSeverity            Severity
	InAppEnabled           bool
	EmailEnabled           bool
	SlackEnabled           bool
	EmailRecipient         string
	SlackWebhookURL        string
	RateLimitWindowSeconds int64
	MaxAlertsPerWindow     int
}

// DefaultConfig mirrors the original implementation's defaults: Warning
// threshold, in-app only, a 5 minute window capped at 10 alerts.
func DefaultConfig() Config {
	return Config{
		MinSeverity:            SeverityWarning,
		InAppEnabled:           true,
		EmailEnabled:           false,
		SlackEnabled:           false,
		RateLimitWindowSeconds: 300,
		MaxAlertsPerWindow:     10,
	}
}

// DispatchResult reports the outcome of Dispatch. Severity-below-threshold
// and rate-limited outcomes are not errors: they are recorded here as a
// SkippedReason so the caller can distinguish "nothing went wrong, nothing
// was sent" from an actual channel failure.
type DispatchResult struct {
	Sent           bool
	SkippedReason  string
	ChannelResults map[string]error
}

const (
	SkipBelowSeverityThreshold = "below_severity_threshold"
	SkipRateLimited            = "rate_limited"
)
