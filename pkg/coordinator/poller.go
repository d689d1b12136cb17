package coordinator

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/jordigilh/qa-intelligence/pkg/anomaly"
	"github.com/jordigilh/qa-intelligence/pkg/shared/logging"
)

// DefaultPollInterval is how often a Poller checks for newly completed
// workflows when started.
const DefaultPollInterval = 5 * time.Minute

// defaultPollBatch bounds how many recent executions are pulled per tick.
const defaultPollBatch = 50

// maxSeenExecutions bounds the in-memory dedup set so a long-running
// process doesn't grow it without limit; it only needs to cover executions
// still within a few poll windows.
const maxSeenExecutions = 2000

// ExecutionSource supplies recently completed workflow executions for the
// Poller to run through the Coordinator. *storage.Gateway satisfies this via
// GetHistoricalExecutions.
type ExecutionSource interface {
	GetHistoricalExecutions(ctx context.Context, limit int, templateID *uuid.UUID) ([]anomaly.WorkflowExecution, error)
}

// Poller periodically pulls recently completed workflow executions from an
// ExecutionSource and runs each one exactly once through a Coordinator. It
// gives CompleteWorkflow an actual caller outside of tests for deployments
// that have no other trigger (e.g. a webhook or queue consumer) for
// workflow completion, mirroring how health.Scheduler ticks RunChecks.
type Poller struct {
	coordinator *Coordinator
	source      ExecutionSource
	interval    time.Duration
	log         *logrus.Logger

	seen      map[uuid.UUID]struct{}
	seenOrder []uuid.UUID
}

// NewPoller creates a Poller that runs every exec returned by source through
// coordinator, at most once per execution.
func NewPoller(coordinator *Coordinator, source ExecutionSource, interval time.Duration, log *logrus.Logger) *Poller {
	if log == nil {
		log = logrus.StandardLogger()
	}
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Poller{
		coordinator: coordinator,
		source:      source,
		interval:    interval,
		log:         log,
		seen:        make(map[uuid.UUID]struct{}),
	}
}

// Start runs the polling loop until ctx is cancelled, checking for newly
// completed workflows once immediately and then on every tick.
func (p *Poller) Start(ctx context.Context) {
	p.log.WithFields(logging.NewFields().Component("coordinator").Operation("start").
		Custom("interval_seconds", int64(p.interval.Seconds())).ToLogrus()).Info("workflow completion poller started")

	p.pollOnce(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.pollOnce(ctx)
		}
	}
}

// pollOnce fetches the most recent completed executions and runs every one
// not already seen through the coordinator.
func (p *Poller) pollOnce(ctx context.Context) {
	executions, err := p.source.GetHistoricalExecutions(ctx, defaultPollBatch, nil)
	if err != nil {
		p.log.WithError(err).Warn("failed to poll for completed workflows")
		return
	}

	for _, exec := range executions {
		if _, ok := p.seen[exec.InstanceID]; ok {
			continue
		}
		p.markSeen(exec.InstanceID)
		p.coordinator.CompleteWorkflow(ctx, exec, exec.TemplateID)
	}
}

func (p *Poller) markSeen(id uuid.UUID) {
	p.seen[id] = struct{}{}
	p.seenOrder = append(p.seenOrder, id)
	if len(p.seenOrder) > maxSeenExecutions {
		oldest := p.seenOrder[0]
		p.seenOrder = p.seenOrder[1:]
		delete(p.seen, oldest)
	}
}
