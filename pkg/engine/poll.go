package engine

import (
	"context"
	"errors"
	"time"
)

// ErrPollTimeout is returned by PollUntil when the predicate never held
// within the deadline.
var ErrPollTimeout = errors.New("poll deadline exceeded")

// PollUntil evaluates predicate at the given interval until it returns
// true, an error, or the timeout elapses. The predicate is evaluated
// once immediately before the first sleep.
func PollUntil(ctx context.Context, interval, timeout time.Duration, predicate func(ctx context.Context) (bool, error)) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		ok, err := predicate(ctx)
		if err != nil {
			return err
		}

		if ok {
			return nil
		}

		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return ErrPollTimeout
			}

			return ctx.Err()
		case <-ticker.C:
		}
	}
}
