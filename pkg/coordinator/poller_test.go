package coordinator_test

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sirupsen/logrus"

	"github.com/jordigilh/qa-intelligence/pkg/anomaly"
	"github.com/jordigilh/qa-intelligence/pkg/coordinator"
)

type fakeExecutionSource struct {
	calls      int32
	executions []anomaly.WorkflowExecution
}

func (f *fakeExecutionSource) GetHistoricalExecutions(_ context.Context, _ int, _ *uuid.UUID) ([]anomaly.WorkflowExecution, error) {
	atomic.AddInt32(&f.calls, 1)
	return f.executions, nil
}

func (f *fakeExecutionSource) callCount() int32 {
	return atomic.LoadInt32(&f.calls)
}

var _ = Describe("Poller", func() {
	It("runs each completed execution through the coordinator exactly once", func() {
		log := logrus.New()
		log.SetLevel(logrus.FatalLevel)

		tracker := &fakeTracker{}
		anomalies := &fakeAnomalyEvaluator{}
		anomStore := &fakeAnomalyStore{}
		patternAnalyzer := &fakePatternAnalyzer{}
		patternStore := &fakePatternStore{}
		dispatcher := &fakeAlertDispatcher{}
		coord := coordinator.NewCoordinator(tracker, anomalies, anomStore, patternAnalyzer, patternStore, dispatcher, log)

		exec := newExecution()
		source := &fakeExecutionSource{executions: []anomaly.WorkflowExecution{exec}}

		poller := coordinator.NewPoller(coord, source, 5*time.Millisecond, log)

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan struct{})
		go func() {
			poller.Start(ctx)
			close(done)
		}()

		Eventually(func() int32 { return source.callCount() }).Should(BeNumerically(">=", 2))
		cancel()
		Eventually(done, time.Second).Should(BeClosed())

		Expect(anomalies.recordedExecs).To(HaveLen(1), "the same completed execution must only be run through the coordinator once across multiple poll ticks")
		Expect(anomalies.recordedExecs[0].InstanceID).To(Equal(exec.InstanceID))
	})
})
