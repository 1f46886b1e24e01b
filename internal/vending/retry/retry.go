package retry

import (
	"context"
	"errors"
	"math/rand"
	"time"
)

type Class int

const (
	Retryable Class = iota
	Fatal
)

type Policy struct {
	MaxAttempts int           // total calls including the first; default 1
	BaseDelay   time.Duration // first wait; default 100ms
	MaxDelay    time.Duration // backoff cap; default 5s
	Jitter      time.Duration // random extra per wait

	// Classify decides whether an error is retryable.
	// If nil, DefaultClassify is used.
	Classify func(error) Class

	// OnRetry runs before each wait.
	OnRetry func(attempt int, wait time.Duration, err error)
}

type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// DefaultClassify retries everything except Permanent and context errors.
func DefaultClassify(err error) Class {
	var pe *permanentError
	if errors.As(err, &pe) {
		return Fatal
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return Fatal
	}
	return Retryable
}

func (p Policy) withDefaults() Policy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 1
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = 100 * time.Millisecond
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = 5 * time.Second
	}
	if p.Jitter < 0 {
		p.Jitter = 0
	}
	if p.Classify == nil {
		p.Classify = DefaultClassify
	}
	return p
}

// Backoff is the wait after the given failed attempt (1-based): exponential,
// capped at MaxDelay, plus up to Jitter.
func (p Policy) Backoff(attempt int) time.Duration {
	p = p.withDefaults()
	wait := p.MaxDelay
	if shift := attempt - 1; shift < 32 {
		if w := p.BaseDelay << shift; w > 0 && w < p.MaxDelay {
			wait = w
		}
	}
	if p.Jitter > 0 {
		wait += time.Duration(rand.Int63n(int64(p.Jitter)))
	}
	return wait
}

// Do runs fn until it succeeds, fails with a Fatal error, or MaxAttempts is
// spent. The last error is returned as is.
func Do(ctx context.Context, p Policy, fn func(context.Context) error) error {
	p = p.withDefaults()

	var lastErr error
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := fn(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		if p.Classify(err) == Fatal || attempt == p.MaxAttempts {
			break
		}

		wait := p.Backoff(attempt)
		if p.OnRetry != nil {
			p.OnRetry(attempt, wait, err)
		}
		if err := sleep(ctx, wait); err != nil {
			return err
		}
	}
	return lastErr
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
