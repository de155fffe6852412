package retry

import (
	"context"
	"errors"
	"net"
	"time"

	"hydrator/internal/podcastindex"
)

// Defaults used when a Policy leaves a field zero.
const (
	DefaultMaxRetries = 3
	DefaultBase       = time.Second
	DefaultMax        = 30 * time.Second
)

// Sleeper pauses for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// Policy describes exponential backoff: the n-th retry waits Base*2^(n-1),
// raised to the server's Retry-After hint when that is larger, and capped at Max.
type Policy struct {
	MaxRetries int
	Base       time.Duration
	Max        time.Duration
	// Retriable decides which errors are retried. Defaults to IsRetriable.
	Retriable func(error) bool
	// Sleep defaults to SleepWithContext.
	Sleep Sleeper
	// OnRetry is called before each wait.
	OnRetry func(attempt int, delay time.Duration, err error)
}

// SleepWithContext blocks for the given duration, returning early if the
// context is cancelled.
func SleepWithContext(ctx context.Context, d time.Duration) error {
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

// IsRetriable reports whether err is a rate limit or transient failure.
// Missing records, permanent HTTP errors and cancellation are not retried.
func IsRetriable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	switch podcastindex.Classify(err) {
	case podcastindex.KindRateLimited, podcastindex.KindTransient:
		return true
	}
	return false
}

// Delay returns the wait before retry number attempt (1-based).
func (p Policy) Delay(attempt int, err error) time.Duration {
	p = p.withDefaults()
	delay := p.Base
	for i := 1; i < attempt && delay < p.Max; i++ {
		delay *= 2
	}
	if hint := podcastindex.RetryAfterHint(err); hint > delay {
		delay = hint
	}
	if delay > p.Max {
		delay = p.Max
	}
	return delay
}

// Do runs fn until it succeeds, returns a non-retriable error, or the retry
// budget is spent. It returns the number of attempts made and the last error.
func Do(ctx context.Context, p Policy, fn func(ctx context.Context) error) (int, error) {
	p = p.withDefaults()
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	attempts := 0
	for {
		attempts++
		err := fn(ctx)
		if err == nil {
			return attempts, nil
		}
		if attempts > p.MaxRetries || !p.Retriable(err) {
			return attempts, err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return attempts, errors.Join(err, ctxErr)
		}
		delay := p.Delay(attempts, err)
		if p.OnRetry != nil {
			p.OnRetry(attempts, delay, err)
		}
		if sleepErr := p.Sleep(ctx, delay); sleepErr != nil {
			return attempts, errors.Join(err, sleepErr)
		}
	}
}

func (p Policy) withDefaults() Policy {
	if p.MaxRetries < 0 {
		p.MaxRetries = 0
	}
	if p.Base <= 0 {
		p.Base = DefaultBase
	}
	if p.Max <= 0 {
		p.Max = DefaultMax
	}
	if p.Max < p.Base {
		p.Max = p.Base
	}
	if p.Retriable == nil {
		p.Retriable = IsRetriable
	}
	if p.Sleep == nil {
		p.Sleep = SleepWithContext
	}
	return p
}
