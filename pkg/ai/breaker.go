package ai

import (
	"time"

	"github.com/sony/gobreaker"
)

// newBreaker builds a per-provider circuit breaker that opens after 5
// consecutive failures and probes again after a 30s cooldown, so a dead
// provider endpoint fails fast instead of queuing requests behind it.
func newBreaker(name string) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    0,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})
}
