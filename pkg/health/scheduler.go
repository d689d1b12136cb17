package health

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/jordigilh/qa-intelligence/pkg/metrics"
	"github.com/jordigilh/qa-intelligence/pkg/shared/logging"
)

// DefaultInterval is how often the scheduler runs checks when started.
const DefaultInterval = 60 * time.Second

// SchedulerConfig controls the background polling loop started by
// Scheduler.Start.
type SchedulerConfig struct {
	Interval        time.Duration
	RunInitialCheck bool
}

// DefaultSchedulerConfig returns the scheduler's default configuration: a
// 60-second interval with an immediate check on start.
func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{Interval: DefaultInterval, RunInitialCheck: true}
}

// Scheduler runs a set of Checks, either once or on a repeating interval,
// and feeds every result into a Store.
type Scheduler struct {
	checks  []Check
	store   *Store
	config  SchedulerConfig
	log     *logrus.Logger
	metrics *metrics.Metrics
}

// WithMetrics attaches m so every check result's latency is recorded by
// integration and status. Returns the Scheduler for chaining.
func (s *Scheduler) WithMetrics(m *metrics.Metrics) *Scheduler {
	s.metrics = m
	return s
}

// NewScheduler creates a Scheduler writing results to store.
func NewScheduler(store *Store, config SchedulerConfig, log *logrus.Logger) *Scheduler {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Scheduler{store: store, config: config, log: log}
}

// NewSchedulerWithDefaults creates a Scheduler using DefaultSchedulerConfig.
func NewSchedulerWithDefaults(store *Store, log *logrus.Logger) *Scheduler {
	return NewScheduler(store, DefaultSchedulerConfig(), log)
}

// AddCheck registers check and returns the scheduler for chaining.
func (s *Scheduler) AddCheck(check Check) *Scheduler {
	s.checks = append(s.checks, check)
	return s
}

// AddChecks registers multiple checks and returns the scheduler for chaining.
func (s *Scheduler) AddChecks(checks ...Check) *Scheduler {
	s.checks = append(s.checks, checks...)
	return s
}

// CheckCount returns the number of configured checks.
func (s *Scheduler) CheckCount() int {
	return len(s.checks)
}

// RunChecks runs every configured check concurrently and folds each result
// into the store. A panic-free, always-succeeding Check.Run contract means
// there is nothing for RunChecks itself to fail on; it returns once every
// check has completed and been recorded.
func (s *Scheduler) RunChecks(ctx context.Context) {
	if len(s.checks) == 0 {
		s.log.Debug("no health checks configured")
		return
	}

	s.log.WithField("count", len(s.checks)).Debug("running health checks")

	results := make([]CheckResult, len(s.checks))
	g, gctx := errgroup.WithContext(ctx)
	for i, check := range s.checks {
		i, check := i, check
		g.Go(func() error {
			results[i] = check.Run(gctx)
			return nil
		})
	}
	_ = g.Wait() // Check.Run never returns an error

	for _, result := range results {
		fields := logging.IntegrationFields("check", result.Integration).Custom("status", string(result.Status))
		if result.ResponseTimeMs != nil {
			fields = fields.Custom("response_time_ms", *result.ResponseTimeMs)
		}
		s.log.WithFields(fields.ToLogrus()).Debug("health check completed")
		s.store.Update(result)

		var responseTime time.Duration
		if result.ResponseTimeMs != nil {
			responseTime = time.Duration(*result.ResponseTimeMs) * time.Millisecond
		}
		s.metrics.RecordHealthCheck(result.Integration, string(result.Status), responseTime)
	}
}

// Start runs the scheduler's polling loop until ctx is cancelled. Unlike a
// fire-and-forget background task, the caller retains the goroutine's
// lifecycle through ctx rather than the scheduler spawning one unmanaged.
func (s *Scheduler) Start(ctx context.Context) {
	interval := s.config.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}

	s.log.WithFields(logging.NewFields().Component("health").Operation("start").
		Custom("interval_seconds", int64(interval.Seconds())).
		Custom("check_count", len(s.checks)).ToLogrus()).Info("health scheduler started")

	if s.config.RunInitialCheck {
		s.RunChecks(ctx)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.RunChecks(ctx)
		}
	}
}
