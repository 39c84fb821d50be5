// Package retry holds bounded retry helpers shared by workers and platform
// transports. Delay schedules come from rews retryers.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/surrealdb/surrealdb.go/contrib/rews"
)

var ErrExhausted = errors.New("retry attempts exhausted")

// Classifier reports whether err is worth another attempt.
type Classifier func(err error) bool

// Sleeper waits for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// Policy retries an operation, but only for errors the classifier accepts.
// Every other error is returned immediately.
//
// Without a Schedule the spacing is a fixed Delay and Attempts counts retries
// after the first call, so a failing operation runs Attempts+1 times and
// sleeps Attempts times. Attempts <= 0 disables retrying.
type Policy struct {
	Attempts  int
	Delay     time.Duration
	Schedule  rews.Retryer
	Retryable Classifier
	Sleep     Sleeper
	// OnRetry runs before each wait; retry is 1-based.
	OnRetry func(retry int, err error)
}

func (p Policy) schedule() rews.Retryer {
	if p.Schedule != nil {
		return p.Schedule
	}
	if p.Attempts <= 0 {
		// rews reads MaxRetries 0 as unbounded.
		return noRetries{}
	}
	return rews.NewFixedDelayRetryer(p.Delay, p.Attempts)
}

func (p Policy) Do(ctx context.Context, op func(ctx context.Context) error) error {
	sleep := p.Sleep
	if sleep == nil {
		sleep = SleepContext
	}
	schedule := p.schedule()
	schedule.Reset()

	err := op(ctx)
	for retry := 1; err != nil; retry++ {
		if p.Retryable == nil || !p.Retryable(err) {
			return err
		}
		delay, ok := schedule.NextDelay(retry-1, err)
		if !ok {
			return fmt.Errorf("%w after %d retries: %w", ErrExhausted, retry-1, err)
		}
		if p.OnRetry != nil {
			p.OnRetry(retry, err)
		}
		if sleepErr := sleep(ctx, delay); sleepErr != nil {
			return fmt.Errorf("retry wait interrupted: %w", errors.Join(sleepErr, err))
		}
		err = op(ctx)
	}
	return nil
}

type noRetries struct{}

func (noRetries) NextDelay(int, error) (time.Duration, bool) { return 0, false }

func (noRetries) Reset() {}

// SleepContext is the default Sleeper.
func SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// ReconnectBackoff is the unbounded, jittered schedule transports use to
// re-establish lost connections: 500ms doubling up to 30s.
func ReconnectBackoff() *rews.ExponentialBackoffRetryer {
	backoff := rews.NewExponentialBackoffRetryer()
	backoff.InitialDelay = 500 * time.Millisecond
	backoff.JitterFactor = 0.2
	return backoff
}
