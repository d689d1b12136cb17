// Package coordinator wires the per-workflow completion control flow: time
// summary calculation, anomaly evaluation, and pattern evaluation, with
// every finding fanned out through the shared alert pipeline. It depends on
// the tracking, anomaly, patterns, and alerting packages only through
// narrow interfaces, the same collaborator-isolation idiom pkg/patterns
// uses for its Reader and pkg/alerting uses for its Store.
package coordinator

import (
	"context"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/jordigilh/qa-intelligence/pkg/alerting"
	"github.com/jordigilh/qa-intelligence/pkg/anomaly"
	"github.com/jordigilh/qa-intelligence/pkg/patterns"
	"github.com/jordigilh/qa-intelligence/pkg/shared/logging"
	"github.com/jordigilh/qa-intelligence/pkg/tracking"
)

// Tracker reduces a completed workflow's sessions into a time summary.
// *tracking.Engine satisfies this.
type Tracker interface {
	CalculateSummary(ctx context.Context, workflowID, templateID uuid.UUID) (*tracking.Summary, error)
}

// AnomalyEvaluator evaluates and records workflow executions against the
// rolling baseline. *anomaly.Detector satisfies this.
type AnomalyEvaluator interface {
	EvaluateDuration(exec anomaly.WorkflowExecution) *anomaly.Anomaly
	RecordExecution(exec anomaly.WorkflowExecution)
}

// AnomalyStore persists a detected anomaly. *storage.Gateway satisfies this.
type AnomalyStore interface {
	SaveAnomaly(ctx context.Context, a anomaly.Anomaly) error
}

// PatternAnalyzer runs the pattern families against a completed workflow.
// *patterns.Detector satisfies this.
type PatternAnalyzer interface {
	AnalyzeWorkflow(ctx context.Context, workflowID uuid.UUID) ([]patterns.DetectedPattern, error)
}

// PatternStore persists a detected pattern. *storage.Gateway satisfies this.
type PatternStore interface {
	SavePattern(ctx context.Context, p patterns.DetectedPattern) error
}

// AlertDispatcher fans a channel-agnostic alert out to delivery channels.
// *alerting.Pipeline satisfies this.
type AlertDispatcher interface {
	Dispatch(ctx context.Context, alert alerting.Alert) (alerting.DispatchResult, error)
}

// Coordinator runs the workflow-completion control flow: summary, anomaly
// evaluation, and pattern evaluation, dispatching every finding through
// alerts. A failure in any one stage is logged and does not prevent the
// others from running, mirroring how pkg/patterns.Detector isolates its
// three concurrent families from each other.
type Coordinator struct {
	tracker      Tracker
	anomalies    AnomalyEvaluator
	anomalyStore AnomalyStore
	patterns     PatternAnalyzer
	patternStore PatternStore
	alerts       AlertDispatcher
	log          *logrus.Logger
}

// NewCoordinator creates a Coordinator from its collaborators.
func NewCoordinator(
	tracker Tracker,
	anomalies AnomalyEvaluator,
	anomalyStore AnomalyStore,
	patternAnalyzer PatternAnalyzer,
	patternStore PatternStore,
	alerts AlertDispatcher,
	log *logrus.Logger,
) *Coordinator {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Coordinator{
		tracker:      tracker,
		anomalies:    anomalies,
		anomalyStore: anomalyStore,
		patterns:     patternAnalyzer,
		patternStore: patternStore,
		alerts:       alerts,
		log:          log,
	}
}

// Result summarizes what CompleteWorkflow produced: the time summary (nil if
// it could not be calculated), the anomaly evaluation (nil if none
// triggered), the detected patterns, and the dispatch outcome for every
// alert whose Dispatch call returned no error (including alerts the pipeline
// dropped by severity or rate limit).
type Result struct {
	Summary      *tracking.Summary
	Anomaly      *anomaly.Anomaly
	Patterns     []patterns.DetectedPattern
	AlertResults []alerting.DispatchResult
}

// CompleteWorkflow runs the full completion control flow for exec: (a) time
// summary calculation, (b) anomaly evaluation, (c) pattern evaluation, with
// every anomaly or pattern found dispatched through the alert pipeline. A
// stage that fails is logged and skipped; it never prevents a later stage
// from running, so one broken collaborator degrades coverage instead of
// losing the whole pipeline.
func (c *Coordinator) CompleteWorkflow(ctx context.Context, exec anomaly.WorkflowExecution, templateID uuid.UUID) *Result {
	workflowID := exec.InstanceID.String()
	fields := func() logging.Fields { return logging.WorkflowFields("complete_workflow", workflowID) }

	c.log.WithFields(fields().ToLogrus()).Info("running workflow completion analysis")

	result := &Result{}

	if summary, err := c.tracker.CalculateSummary(ctx, exec.InstanceID, templateID); err != nil {
		c.log.WithFields(fields().Error(err).ToLogrus()).Warn("time summary calculation failed")
	} else {
		result.Summary = summary
	}

	if found := c.anomalies.EvaluateDuration(exec); found != nil {
		result.Anomaly = found
		if err := c.anomalyStore.SaveAnomaly(ctx, *found); err != nil {
			c.log.WithFields(fields().Error(err).Custom("anomaly_id", found.ID.String()).ToLogrus()).Warn("failed to persist anomaly")
		}
		if dispatched := c.dispatch(ctx, fields(), alertFromAnomaly(*found)); dispatched != nil {
			result.AlertResults = append(result.AlertResults, *dispatched)
		}
	}
	c.anomalies.RecordExecution(exec)

	detected, err := c.patterns.AnalyzeWorkflow(ctx, exec.InstanceID)
	if err != nil {
		c.log.WithFields(fields().Error(err).ToLogrus()).Warn("pattern analysis failed")
	}
	result.Patterns = detected

	for _, pattern := range detected {
		if err := c.patternStore.SavePattern(ctx, pattern); err != nil {
			c.log.WithFields(fields().Error(err).Custom("pattern_id", pattern.ID.String()).ToLogrus()).Warn("failed to persist pattern")
		}
		if dispatched := c.dispatch(ctx, fields(), alertFromPattern(pattern)); dispatched != nil {
			result.AlertResults = append(result.AlertResults, *dispatched)
		}
	}

	c.log.WithFields(fields().
		Custom("anomaly_found", result.Anomaly != nil).
		Custom("patterns_found", len(result.Patterns)).
		ToLogrus()).Info("workflow completion analysis finished")

	return result
}

// dispatch sends alert through the pipeline regardless of whether the
// finding it was built from was persisted successfully: a storage failure
// should not swallow a notification the caller would otherwise expect to
// receive. Returns nil if the dispatch itself errored.
func (c *Coordinator) dispatch(ctx context.Context, fields logging.Fields, alert alerting.Alert) *alerting.DispatchResult {
	dispatchResult, err := c.alerts.Dispatch(ctx, alert)
	if err != nil {
		c.log.WithFields(fields.Error(err).Custom("anomaly_id", alert.ID.String()).ToLogrus()).Error("alert dispatch failed")
		return nil
	}
	return &dispatchResult
}

func alertFromAnomaly(a anomaly.Anomaly) alerting.Alert {
	return alerting.Alert{
		ID:                 a.ID,
		Type:               string(a.Type),
		Severity:           alerting.Severity(a.Severity),
		Description:        a.Description,
		AffectedEntities:   a.AffectedEntities,
		InvestigationSteps: a.InvestigationSteps,
		Metrics: map[string]interface{}{
			"current_value": a.Metrics.CurrentValue,
			"baseline_value": a.Metrics.BaselineValue,
			"deviation":      a.Metrics.Deviation,
			"z_score":        a.Metrics.ZScore,
			"confidence":     a.Metrics.Confidence,
		},
	}
}

func alertFromPattern(p patterns.DetectedPattern) alerting.Alert {
	return alerting.Alert{
		ID:                 p.ID,
		Type:               string(p.Type),
		Severity:           alerting.Severity(p.Severity),
		Description:        p.Description,
		AffectedEntities:   p.AffectedTickets,
		InvestigationSteps: p.SuggestedActions,
		Metrics:            p.Metadata,
	}
}
