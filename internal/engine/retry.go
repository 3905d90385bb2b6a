package engine

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/jpillora/backoff"
)

// RetryPolicy bounds every store call
type RetryPolicy struct {
	Attempts int
	Timeout  time.Duration
	MinDelay time.Duration
	MaxDelay time.Duration
}

// DefaultRetryPolicy is used when no policy is configured
var DefaultRetryPolicy = RetryPolicy{
	Attempts: 3,
	Timeout:  5 * time.Second,
	MinDelay: 50 * time.Millisecond,
	MaxDelay: time.Second,
}

func (p RetryPolicy) normalized() RetryPolicy {
	if p.Attempts <= 0 {
		p.Attempts = DefaultRetryPolicy.Attempts
	}
	if p.Timeout <= 0 {
		p.Timeout = DefaultRetryPolicy.Timeout
	}
	if p.MinDelay <= 0 {
		p.MinDelay = DefaultRetryPolicy.MinDelay
	}
	if p.MaxDelay < p.MinDelay {
		p.MaxDelay = p.MinDelay
	}
	return p
}

// isTransient reports whether err is worth another attempt
func isTransient(err error) bool {
	if errors.Is(err, ErrTransient) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// do runs fn with a per-attempt timeout, retrying transient failures with backoff.
// Logical rejections from the store are returned unchanged; anything else is
// wrapped with ErrPersistence.
func (e *Engine) do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	p := e.retry
	b := &backoff.Backoff{Min: p.MinDelay, Max: p.MaxDelay, Factor: 2, Jitter: true}

	var err error
	for attempt := 1; ; attempt++ {
		actx, cancel := context.WithTimeout(ctx, p.Timeout)
		err = fn(actx)
		cancel()

		if err == nil {
			return nil
		}
		if IsLogical(err) {
			return err
		}
		if ctx.Err() != nil || !isTransient(err) || attempt >= p.Attempts {
			break
		}

		delay := b.Duration()
		e.log.WithField("op", op).WithField("attempt", attempt).Warnf("Transient store error, retrying in %s: %v", delay, err)

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return fmt.Errorf("%w: %s: %w", ErrPersistence, op, ctx.Err())
		}
	}
	return fmt.Errorf("%w: %s: %w", ErrPersistence, op, err)
}
