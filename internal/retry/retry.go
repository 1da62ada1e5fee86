// Package retry runs operations with bounded exponential backoff and reports
// the outcome as a value instead of failing the caller.
package retry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

const (
	defaultAttempts  = 3
	defaultBaseDelay = time.Second
	defaultMaxDelay  = 10 * time.Second
)

// Policy bounds a retried operation.
type Policy struct {
	Attempts  int
	BaseDelay time.Duration
	MaxDelay  time.Duration

	// Name labels log lines; Logger defaults to slog.Default().
	Name   string
	Logger *slog.Logger
}

// DefaultPolicy is three attempts starting at one second, capped at ten.
func DefaultPolicy() Policy {
	return Policy{Attempts: defaultAttempts, BaseDelay: defaultBaseDelay, MaxDelay: defaultMaxDelay}
}

// Named returns a copy of p labelled for logging.
func (p Policy) Named(name string) Policy {
	p.Name = name
	return p
}

// Delay returns the wait after the given failed attempt (1-based):
// min(base * 2^(attempt-1), max).
func (p Policy) Delay(attempt int) time.Duration {
	p = p.withDefaults()
	if attempt < 1 {
		attempt = 1
	}
	delay := p.BaseDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	if delay > p.MaxDelay {
		return p.MaxDelay
	}
	return delay
}

func (p Policy) withDefaults() Policy {
	if p.Attempts <= 0 {
		p.Attempts = defaultAttempts
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = defaultBaseDelay
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = defaultMaxDelay
	}
	if p.MaxDelay < p.BaseDelay {
		p.MaxDelay = p.BaseDelay
	}
	if p.Logger == nil {
		p.Logger = slog.Default()
	}
	if p.Name == "" {
		p.Name = "operation"
	}
	return p
}

// Result is the tagged outcome of Do.
type Result[T any] struct {
	Value    T
	Err      error
	Attempts int
}

// OK reports whether the operation eventually succeeded.
func (r Result[T]) OK() bool {
	return r.Err == nil
}

// Unwrap returns the value and error as a conventional pair.
func (r Result[T]) Unwrap() (T, error) {
	return r.Value, r.Err
}

// Do runs op until it succeeds, returns a permanent error, the context ends
// or the policy's attempts are used up.
func Do[T any](ctx context.Context, p Policy, op func(ctx context.Context, attempt int) (T, error)) Result[T] {
	p = p.withDefaults()

	var zero T
	var lastErr error
	for attempt := 1; attempt <= p.Attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return Result[T]{Value: zero, Err: fmt.Errorf("%s: canceled: %w", p.Name, err), Attempts: attempt - 1}
		}

		value, err := op(ctx, attempt)
		if err == nil {
			return Result[T]{Value: value, Attempts: attempt}
		}
		lastErr = err

		var perm *permanentError
		if errors.As(err, &perm) {
			return Result[T]{Value: zero, Err: perm.err, Attempts: attempt}
		}

		if attempt == p.Attempts {
			break
		}

		delay := p.Delay(attempt)
		if hinted, ok := retryAfter(err); ok {
			delay = min(hinted, p.MaxDelay)
		}
		p.Logger.Warn("retrying after failure",
			"operation", p.Name,
			"attempt", attempt,
			"max_attempts", p.Attempts,
			"delay", delay,
			"error", err,
		)
		if err := Sleep(ctx, delay); err != nil {
			return Result[T]{Value: zero, Err: fmt.Errorf("%s: canceled: %w", p.Name, err), Attempts: attempt}
		}
	}

	p.Logger.Error("giving up", "operation", p.Name, "attempts", p.Attempts, "error", lastErr)
	return Result[T]{
		Value:    zero,
		Err:      fmt.Errorf("%s failed after %d attempts: %w", p.Name, p.Attempts, lastErr),
		Attempts: p.Attempts,
	}
}

// Exec is Do for operations without a value.
func Exec(ctx context.Context, p Policy, op func(ctx context.Context) error) error {
	res := Do(ctx, p, func(ctx context.Context, _ int) (struct{}, error) {
		return struct{}{}, op(ctx)
	})
	return res.Err
}

// Sleep waits for delay or until ctx ends.
func Sleep(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
