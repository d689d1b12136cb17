package alerting

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/slack-go/slack"
)

// Channel is one independent alert delivery mechanism. Fan-out treats each
// channel's failure in isolation: one failing channel must never prevent
// the others from being tried.
type Channel interface {
	Name() string
	Send(ctx context.Context, alert Alert) error
}

// Store is the persistence collaborator the in-app channel writes through.
type Store interface {
	SaveAlert(ctx context.Context, alert Alert) error
}

// InAppChannel persists the alert via the gateway; the existing dashboard
// reads alerts back from storage rather than receiving a push.
type InAppChannel struct {
	store Store
}

// NewInAppChannel creates an in-app delivery channel backed by store.
func NewInAppChannel(store Store) *InAppChannel {
	return &InAppChannel{store: store}
}

func (c *InAppChannel) Name() string { return "in_app" }

func (c *InAppChannel) Send(ctx context.Context, alert Alert) error {
	return c.store.SaveAlert(ctx, alert)
}

// SlackChannel posts the alert message to a Slack incoming webhook.
type SlackChannel struct {
	webhookURL string
}

// NewSlackChannel creates a Slack webhook delivery channel.
func NewSlackChannel(webhookURL string) *SlackChannel {
	return &SlackChannel{webhookURL: webhookURL}
}

func (c *SlackChannel) Name() string { return "slack" }

func (c *SlackChannel) Send(ctx context.Context, alert Alert) error {
	msg := &slack.WebhookMessage{Text: CreateAlertMessage(alert)}
	if err := slack.PostWebhookContext(ctx, c.webhookURL, msg); err != nil {
		return fmt.Errorf("slack webhook post: %w", err)
	}
	return nil
}

// EmailChannel is a logging-only Channel. Actual SMTP delivery is an
// external collaborator outside this module's scope; until one is wired in,
// sends are logged rather than silently dropped.
type EmailChannel struct {
	recipient string
	log       *logrus.Logger
}

// NewEmailChannel creates a logging-only email channel for recipient.
func NewEmailChannel(recipient string, log *logrus.Logger) *EmailChannel {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &EmailChannel{recipient: recipient, log: log}
}

func (c *EmailChannel) Name() string { return "email" }

func (c *EmailChannel) Send(_ context.Context, alert Alert) error {
	c.log.WithFields(logrus.Fields{
		"anomaly_id": alert.ID.String(),
		"recipient":  c.recipient,
	}).Info("email notification not implemented yet")
	return nil
}

// CreateAlertMessage formats a human-readable alert message, mirroring the
// original implementation's layout.
func CreateAlertMessage(alert Alert) string {
	steps := ""
	for i, step := range alert.InvestigationSteps {
		if i > 0 {
			steps += "\n"
		}
		steps += "  - " + step
	}

	affected := ""
	for i, e := range alert.AffectedEntities {
		if i > 0 {
			affected += ", "
		}
		affected += e
	}

	return fmt.Sprintf(
		"Anomaly Detected: %s\n\nType: %s\nSeverity: %s\n\nDescription: %s\n\nAffected: %s\n\nInvestigation Steps:\n%s",
		alert.Type, alert.Type, alert.Severity, alert.Description, affected, steps,
	)
}
