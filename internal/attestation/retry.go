// Package attestation retrieves VAAs, Circle attestations and relay delivery
// status from the attestation network, polling until they become available.
package attestation

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/wormhole-demo/connect/internal/layout"
)

// Task performs one poll. It reports found=false while the result is not
// available yet.
type Task[T any] func(ctx context.Context) (T, bool, error)

var errPending = errors.New("not available yet")

// elapsedBudget stops a backoff once timeout has passed since the last Reset.
// An attempt that is running when the budget runs out still completes.
type elapsedBudget struct {
	backoff.BackOff
	timeout time.Duration
	start   time.Time
}

func (b *elapsedBudget) Reset() {
	b.start = time.Now()
	b.BackOff.Reset()
}

func (b *elapsedBudget) NextBackOff() time.Duration {
	if time.Since(b.start) >= b.timeout {
		return backoff.Stop
	}
	return b.BackOff.NextBackOff()
}

// Retry calls task every interval until it reports a result or timeout has
// elapsed since the first call. Task errors are logged and retried, except
// malformed wire data which is returned at once. Exhausting the budget yields
// found=false and a nil error; only context cancellation and wire errors are
// returned as errors.
func Retry[T any](ctx context.Context, logger *zap.Logger, title string, task Task[T], interval, timeout time.Duration) (T, bool, error) {
	var zero T

	budget := &elapsedBudget{BackOff: backoff.NewConstantBackOff(interval), timeout: timeout}
	budget.Reset()
	b := backoff.WithContext(budget, ctx)

	attempt := 0
	op := func() (T, error) {
		attempt++
		v, found, err := task(ctx)
		if err != nil {
			var le *layout.Error
			if errors.As(err, &le) {
				return zero, backoff.Permanent(err)
			}
			return zero, err
		}
		if !found {
			return zero, errPending
		}
		return v, nil
	}
	notify := func(err error, next time.Duration) {
		if errors.Is(err, errPending) {
			logger.Debug("Retrying", zap.String("task", title), zap.Int("attempt", attempt), zap.Duration("retryIn", next))
			return
		}
		logger.Warn("Attempt failed, retrying", zap.String("task", title), zap.Int("attempt", attempt), zap.Error(err), zap.Duration("retryIn", next))
	}

	v, err := backoff.RetryNotifyWithData(op, b, notify)
	if err == nil {
		return v, true, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return zero, false, ctxErr
	}
	var le *layout.Error
	if errors.As(err, &le) {
		return zero, false, err
	}
	logger.Debug("Retry budget exhausted", zap.String("task", title), zap.Int("attempts", attempt), zap.NamedError("lastError", err))
	return zero, false, nil
}
