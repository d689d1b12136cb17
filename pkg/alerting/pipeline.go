package alerting

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/jordigilh/qa-intelligence/pkg/metrics"
	"github.com/jordigilh/qa-intelligence/pkg/shared/logging"
)

// Pipeline gates alerts by severity and rate limit, then fans them out
// across independent delivery channels.
type Pipeline struct {
	config      Config
	rateLimiter RateLimiter
	channels    []Channel
	enabled     map[string]bool
	log         *logrus.Logger
	metrics     *metrics.Metrics
}

// WithMetrics attaches m so every Dispatch outcome and its duration are
// recorded. Returns the Pipeline for chaining.
func (p *Pipeline) WithMetrics(m *metrics.Metrics) *Pipeline {
	p.metrics = m
	return p
}

// NewPipeline creates a Pipeline. channels not present in the enabled set
// implied by config are kept but skipped at dispatch time; the enabled set
// is fixed when the Pipeline is built.
func NewPipeline(config Config, rateLimiter RateLimiter, channels []Channel, log *logrus.Logger) *Pipeline {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Pipeline{
		config:      config,
		rateLimiter: rateLimiter,
		channels:    channels,
		enabled: map[string]bool{
			"in_app": config.InAppEnabled,
			"email":  config.EmailEnabled,
			"slack":  config.SlackEnabled,
		},
		log: log,
	}
}

// Dispatch evaluates the severity gate and rate limiter, then fans the
// alert out to every enabled channel independently: one channel's failure
// is logged and recorded in the result, but never aborts the others.
func (p *Pipeline) Dispatch(ctx context.Context, alert Alert) (DispatchResult, error) {
	start := time.Now()

	if !p.shouldSendForSeverity(alert.Severity) {
		p.log.WithFields(logging.NewFields().
			Custom("anomaly_id", alert.ID.String()).
			Custom("severity", string(alert.Severity)).
			ToLogrus()).Info("alert skipped: below severity threshold")
		p.metrics.RecordAlertDispatch(SkipBelowSeverityThreshold, time.Since(start))
		return DispatchResult{SkippedReason: SkipBelowSeverityThreshold}, nil
	}

	allowed, err := p.rateLimiter.Allow(ctx, alert.Type)
	if err != nil {
		p.metrics.RecordAlertDispatch("error", time.Since(start))
		return DispatchResult{}, err
	}
	if !allowed {
		p.log.WithFields(logging.NewFields().Custom("anomaly_id", alert.ID.String()).ToLogrus()).Warn("alert rate limited: too many alerts in time window")
		p.metrics.RecordAlertDispatch(SkipRateLimited, time.Since(start))
		return DispatchResult{SkippedReason: SkipRateLimited}, nil
	}

	results := map[string]error{}
	for _, channel := range p.channels {
		if !p.enabled[channel.Name()] {
			continue
		}
		if err := channel.Send(ctx, alert); err != nil {
			p.log.WithFields(logging.NewFields().
				Custom("anomaly_id", alert.ID.String()).
				Custom("channel", channel.Name()).
				Error(err).
				ToLogrus()).Error("failed to send alert notification")
			results[channel.Name()] = err
			continue
		}
		results[channel.Name()] = nil
	}

	p.log.WithFields(logging.NewFields().
		Custom("anomaly_id", alert.ID.String()).
		Custom("anomaly_type", alert.Type).
		Custom("severity", string(alert.Severity)).
		ToLogrus()).Info("anomaly alert sent")

	p.metrics.RecordAlertDispatch("sent", time.Since(start))
	return DispatchResult{Sent: true, ChannelResults: results}, nil
}

func (p *Pipeline) shouldSendForSeverity(severity Severity) bool {
	return severityRank[severity] >= severityRank[p.config.MinSeverity]
}
