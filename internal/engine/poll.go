package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// ErrPollTimeout is returned by Poll when the condition never held.
var ErrPollTimeout = errors.New("poll: condition not met")

var errNotYet = errors.New("not yet")

// Poll runs check immediately and then every interval until it reports done,
// returns an error, or timeout elapses.
func Poll[T any](ctx context.Context, interval, timeout time.Duration, check func(context.Context) (T, bool, error)) (T, error) {
	op := func() (T, error) {
		v, done, err := check(ctx)
		if err != nil {
			return v, backoff.Permanent(err)
		}
		if !done {
			return v, errNotYet
		}
		return v, nil
	}

	v, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(backoff.NewConstantBackOff(interval)),
		backoff.WithMaxElapsedTime(timeout),
	)
	if errors.Is(err, errNotYet) {
		var zero T
		return zero, fmt.Errorf("%w within %s", ErrPollTimeout, timeout)
	}
	return v, err
}
