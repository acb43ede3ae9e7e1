// Package retry provides a reusable retry policy with a backoff schedule
// and a retryable-error predicate, replacing ad hoc inline retry loops.
package retry

import (
	"context"
	"strings"
	"time"
)

// Policy describes how an operation is retried
type Policy struct {
	MaxAttempts int
	// Delays between attempts. When attempts outnumber entries the last
	// entry repeats.
	Delays []time.Duration
	// Retryable decides whether an error is worth another attempt.
	// nil means every error is retryable.
	Retryable func(error) bool
}

// MembershipPolicy is the schedule used when creating an organization
// membership right after account creation: the auth provider is eventually
// consistent, so the first attempts routinely fail.
func MembershipPolicy() Policy {
	return Policy{
		MaxAttempts: 5,
		Delays: []time.Duration{
			2 * time.Second,
			4 * time.Second,
			6 * time.Second,
			8 * time.Second,
			10 * time.Second,
		},
		Retryable: IsTransient,
	}
}

// Do runs fn up to MaxAttempts times, sleeping per the delay schedule
// between attempts and honoring context cancellation. The last error is
// returned when all attempts fail.
func (p Policy) Do(ctx context.Context, fn func() error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if p.Retryable != nil && !p.Retryable(lastErr) {
			return lastErr
		}
		if attempt == attempts {
			break
		}

		select {
		case <-time.After(p.delay(attempt)):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return lastErr
}

func (p Policy) delay(attempt int) time.Duration {
	if len(p.Delays) == 0 {
		return time.Second
	}
	if attempt > len(p.Delays) {
		return p.Delays[len(p.Delays)-1]
	}
	return p.Delays[attempt-1]
}

// IsTransient reports whether an error looks like a temporary
// infrastructure failure (timeouts, connection drops, lock contention).
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	for _, s := range []string{
		"timeout",
		"context deadline exceeded",
		"connection",
		"EOF",
		"reset by peer",
		"database is locked",
		"temporarily unavailable",
	} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}
