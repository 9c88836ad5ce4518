package browser

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// ErrWaitTimeout is returned by WaitUntil when the condition never held.
var ErrWaitTimeout = errors.New("timed out waiting")

var errNotYet = errors.New("condition not met yet")

// WaitUntil polls cond every interval until it returns true, returns an error or
// timeout elapses. The context passed to cond is cancelled once the timeout elapses.
func WaitUntil(
	ctx context.Context,
	timeout, interval time.Duration,
	description string,
	cond func(ctx context.Context) (bool, error),
) error {
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	err := backoff.Retry(
		func() error {
			ok, err := cond(waitCtx)
			if err != nil {
				return backoff.Permanent(err)
			}
			if !ok {
				return errNotYet
			}
			return nil
		},
		backoff.WithContext(backoff.NewConstantBackOff(interval), waitCtx),
	)
	if err == nil {
		return nil
	}
	if ctx.Err() == nil && (errors.Is(err, context.DeadlineExceeded) || errors.Is(err, errNotYet)) {
		return fmt.Errorf("%w: %s (after %s)", ErrWaitTimeout, description, timeout)
	}
	return fmt.Errorf("wait for %s: %w", description, err)
}
