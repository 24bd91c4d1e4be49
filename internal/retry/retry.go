// Package retry runs remote calls under a bounded linear backoff policy.
package retry

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Policy bounds a retried operation.
type Policy struct {
	Attempts int           // total tries, including the first
	Step     time.Duration // the n-th retry waits n*Step
}

// DefaultPolicy is three attempts spaced 200ms and 400ms apart.
var DefaultPolicy = Policy{Attempts: 3, Step: 200 * time.Millisecond}

// Linear is a backoff.BackOff whose n-th delay is n*Step.
type Linear struct {
	Step    time.Duration
	attempt int
}

// NextBackOff implements backoff.BackOff.
func (l *Linear) NextBackOff() time.Duration {
	l.attempt++
	return time.Duration(l.attempt) * l.Step
}

// Reset implements backoff.BackOff.
func (l *Linear) Reset() { l.attempt = 0 }

// Permanent marks err as not worth retrying. Do returns the unwrapped error.
func Permanent(err error) error {
	return backoff.Permanent(err)
}

// Notify is called before each retry with the failure and the upcoming wait.
type Notify func(err error, wait time.Duration)

// Do runs op until it succeeds, returns a Permanent error, the attempts are
// exhausted or ctx is done. The last error is returned as is.
func Do[T any](ctx context.Context, p Policy, op func(ctx context.Context) (T, error), notify Notify) (T, error) {
	attempts := max(p.Attempts, 1)
	b := backoff.WithContext(
		backoff.WithMaxRetries(&Linear{Step: p.Step}, uint64(attempts-1)),
		ctx,
	)

	var n backoff.Notify
	if notify != nil {
		n = backoff.Notify(notify)
	}

	res, err := backoff.RetryNotifyWithData(func() (T, error) {
		return op(ctx)
	}, b, n)
	if err != nil {
		var perm *backoff.PermanentError
		if errors.As(err, &perm) {
			return res, perm.Err
		}
		return res, err
	}
	return res, nil
}
