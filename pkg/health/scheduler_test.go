package health_test

import (
	"context"
	"sync/atomic"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/jordigilh/qa-intelligence/pkg/health"
)

type mockCheck struct {
	name   string
	status health.HealthStatus
	calls  int32
	delay  time.Duration
}

func (m *mockCheck) IntegrationName() string { return m.name }

func (m *mockCheck) Run(ctx context.Context) health.CheckResult {
	atomic.AddInt32(&m.calls, 1)
	if m.delay > 0 {
		select {
		case <-time.After(m.delay):
		case <-ctx.Done():
		}
	}
	switch m.status {
	case health.StatusOnline:
		return health.OnlineResult(m.name, 50*time.Millisecond)
	case health.StatusDegraded:
		return health.DegradedResult(m.name, 3*time.Second, "slow")
	default:
		return health.OfflineResult(m.name, "error")
	}
}

func (m *mockCheck) callCount() int32 {
	return atomic.LoadInt32(&m.calls)
}

var _ = Describe("Scheduler", func() {
	It("adds checks and reports the count", func() {
		store := health.NewStore(nil)
		check := &mockCheck{name: "test", status: health.StatusOnline}

		sched := health.NewSchedulerWithDefaults(store, nil).AddCheck(check)
		Expect(sched.CheckCount()).To(Equal(1))
	})

	It("runs all checks and records their results in the store", func() {
		store := health.NewStore(nil)
		jira := &mockCheck{name: "jira", status: health.StatusOnline}
		postman := &mockCheck{name: "postman", status: health.StatusOffline}

		sched := health.NewSchedulerWithDefaults(store, nil).AddChecks(jira, postman)
		sched.RunChecks(context.Background())

		Expect(jira.callCount()).To(BeEquivalentTo(1))
		Expect(postman.callCount()).To(BeEquivalentTo(1))

		h, _ := store.Get("jira")
		Expect(h.Status).To(Equal(health.StatusOnline))

		h, _ = store.Get("postman")
		Expect(h.Status).To(Equal(health.StatusOffline))
	})

	It("does not panic with no configured checks", func() {
		store := health.NewStore(nil)
		sched := health.NewSchedulerWithDefaults(store, nil)
		Expect(func() { sched.RunChecks(context.Background()) }).NotTo(Panic())
	})

	It("runs checks concurrently rather than sequentially", func() {
		store := health.NewStore(nil)
		a := &mockCheck{name: "a", status: health.StatusOnline, delay: 100 * time.Millisecond}
		b := &mockCheck{name: "b", status: health.StatusOnline, delay: 100 * time.Millisecond}

		sched := health.NewSchedulerWithDefaults(store, nil).AddChecks(a, b)

		start := time.Now()
		sched.RunChecks(context.Background())
		elapsed := time.Since(start)

		Expect(elapsed).To(BeNumerically("<", 180*time.Millisecond))
	})

	It("stops the background loop when its context is cancelled", func() {
		store := health.NewStore(nil)
		check := &mockCheck{name: "test", status: health.StatusOnline}
		sched := health.NewScheduler(store, health.SchedulerConfig{Interval: 10 * time.Millisecond, RunInitialCheck: true}, nil).AddCheck(check)

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan struct{})
		go func() {
			sched.Start(ctx)
			close(done)
		}()

		Eventually(func() int32 { return check.callCount() }).Should(BeNumerically(">=", 1))
		cancel()

		Eventually(done, time.Second).Should(BeClosed())
	})
})
