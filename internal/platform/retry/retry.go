package retry

import (
	"context"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
)

type Action int

const (
	Stop  Action = iota // permanent error, abort immediately
	Retry               // transient error, wait Backoff(attempt) and try again
)

// Backoff returns the wait before retry number attempt (1-based).
type Backoff func(attempt int) time.Duration

// Linear waits base × attempt: base, 2×base, 3×base, ...
func Linear(base time.Duration) Backoff {
	return func(attempt int) time.Duration {
		return base * time.Duration(attempt)
	}
}

// Exponential waits base × 2^(attempt-1): base, 2×base, 4×base, ...
func Exponential(base time.Duration) Backoff {
	return func(attempt int) time.Duration {
		return base << (attempt - 1)
	}
}

type Policy struct {
	MaxAttempts int
	Backoff     Backoff
	OnRetry     func(attempt int, err error, backoff time.Duration)
	Clock       clockwork.Clock
}

// Delay returns the wait before retry number attempt under this policy.
func (p Policy) Delay(attempt int) time.Duration {
	if p.Backoff == nil || attempt < 1 {
		return 0
	}
	return p.Backoff(attempt)
}

// Exhausted reports whether attempt retries have used up the policy.
func (p Policy) Exhausted(attempt int) bool {
	return attempt >= p.MaxAttempts
}

type Classify func(err error) Action
type Operation[T any] func() (T, error)
type VoidOperation func() error

func Do[T any](ctx context.Context, p Policy, classify Classify, op Operation[T]) (T, error) {
	clock := p.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		val, err := op()
		if err == nil {
			return val, nil
		}

		if classify(err) == Stop {
			var zero T
			return zero, &PermanentError{Err: err}
		}

		if attempt == p.MaxAttempts {
			var zero T
			return zero, fmt.Errorf("failed after %d attempts: %w", p.MaxAttempts, err)
		}

		backoff := p.Delay(attempt)
		if p.OnRetry != nil {
			p.OnRetry(attempt, err, backoff)
		}

		select {
		case <-clock.After(backoff):
		case <-ctx.Done():
			var zero T
			return zero, fmt.Errorf("context cancelled during retry: %w", ctx.Err())
		}
	}

	panic("unreachable: MaxAttempts must be >= 1")
}

func DoVoid(ctx context.Context, p Policy, classify Classify, op VoidOperation) error {
	_, err := Do(ctx, p, classify, func() (struct{}, error) { return struct{}{}, op() })
	return err
}

type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return e.Err.Error() }
func (e *PermanentError) Unwrap() error { return e.Err }
