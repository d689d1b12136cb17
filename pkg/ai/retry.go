package ai

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// retryPing runs fn up to 3 attempts with exponential backoff (base 1s,
// doubling), used for the low-level connection probe only; chat completion
// traffic is never retried internally, per the provider layer's contract.
func retryPing(ctx context.Context, fn func() error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 1 * time.Second
	b.Multiplier = 2

	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		return struct{}{}, fn()
	}, backoff.WithBackOff(b), backoff.WithMaxTries(3))
	return err
}
