// Package retry wraps fallible operations with bounded, fixed-delay retry.
package retry

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dataferry/connector/connerr"
)

// Policy describes one retry budget: MaxRetries additional attempts after
// the first failure, with a fixed Delay between attempts. Only errors the
// taxonomy classifies as retryable consume the budget; anything else
// propagates after the first attempt.
type Policy struct {
	MaxRetries int
	Delay      time.Duration
	Logger     *slog.Logger

	// Classify decides whether a failure consumes retry budget. Nil means
	// connerr.Retryable.
	Classify func(error) bool
}

// New creates a Policy.
func New(maxRetries int, delay time.Duration) Policy {
	return Policy{MaxRetries: maxRetries, Delay: delay}
}

// WithLogger returns a copy of the policy that logs failed attempts.
func (p Policy) WithLogger(logger *slog.Logger) Policy {
	p.Logger = logger
	return p
}

// WithClassifier returns a copy of the policy using classify instead of the
// default error taxonomy.
func (p Policy) WithClassifier(classify func(error) bool) Policy {
	p.Classify = classify
	return p
}

// Error records the final failure of a retried operation and how many
// attempts were actually made.
type Error struct {
	Attempts int
	Cause    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("failed after %d attempts: %v", e.Attempts, e.Cause)
}

func (e *Error) Unwrap() error { return e.Cause }

// Do runs fn until it succeeds, the retry budget is exhausted, a
// non-retryable error occurs, or ctx is done. On failure it returns an
// *Error wrapping the last underlying error.
func (p Policy) Do(ctx context.Context, fn func() error) error {
	classify := p.Classify
	if classify == nil {
		classify = connerr.Retryable
	}

	var lastErr error

	for attempt := 1; attempt <= p.MaxRetries+1; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr == nil {
				lastErr = err
			}
			return &Error{Attempts: attempt - 1, Cause: lastErr}
		}

		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		if !classify(err) {
			return &Error{Attempts: attempt, Cause: err}
		}
		if attempt == p.MaxRetries+1 {
			break
		}

		if p.Logger != nil {
			p.Logger.Warn("attempt failed, retrying",
				"attempt", attempt,
				"max_attempts", p.MaxRetries+1,
				"delay", p.Delay,
				"error", err)
		}

		select {
		case <-time.After(p.Delay):
		case <-ctx.Done():
			return &Error{Attempts: attempt, Cause: lastErr}
		}
	}

	return &Error{Attempts: p.MaxRetries + 1, Cause: lastErr}
}

// DoWithResult is Do for operations that produce a value.
func DoWithResult[T any](ctx context.Context, p Policy, fn func() (T, error)) (T, error) {
	var result T
	err := p.Do(ctx, func() error {
		var fnErr error
		result, fnErr = fn()
		return fnErr
	})
	return result, err
}
