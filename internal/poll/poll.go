// Package poll repeatedly queries a remote operation until it reaches a terminal state.
package poll

import (
	"context"
	"fmt"
	"time"
)

// State is the classification of one poll observation.
type State int

const (
	Pending State = iota
	Succeeded
	Failed
)

// Options bounds a polling loop.
type Options struct {
	// Operation names what is being waited on; it appears in errors.
	Operation   string
	Interval    time.Duration
	MaxAttempts int
}

// TimeoutError is returned when the attempt ceiling is reached without a terminal state.
type TimeoutError struct {
	Operation string
	Attempts  int
	Interval  time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s did not finish after %d attempts (%s apart)", e.Operation, e.Attempts, e.Interval)
}

// FailedError is returned when the remote operation reports failure.
type FailedError struct {
	Operation string
	Reason    string
}

func (e *FailedError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("%s failed", e.Operation)
	}
	return fmt.Sprintf("%s failed: %s", e.Operation, e.Reason)
}

// Until calls fetch until classify reports Succeeded or Failed, or MaxAttempts is reached.
// Fetch errors abort the loop. classify returns a reason used when the state is Failed.
func Until[T any](
	ctx context.Context,
	opts Options,
	fetch func(ctx context.Context) (T, error),
	classify func(T) (State, string),
) (T, error) {
	var zero T
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 1
	}
	if opts.Operation == "" {
		opts.Operation = "operation"
	}

	for attempt := 1; attempt <= opts.MaxAttempts; attempt++ {
		v, err := fetch(ctx)
		if err != nil {
			return zero, fmt.Errorf("%s: poll attempt %d: %w", opts.Operation, attempt, err)
		}

		state, reason := classify(v)
		switch state {
		case Succeeded:
			return v, nil
		case Failed:
			return zero, &FailedError{Operation: opts.Operation, Reason: reason}
		}

		if attempt == opts.MaxAttempts {
			break
		}
		if err := Sleep(ctx, opts.Interval); err != nil {
			return zero, err
		}
	}

	return zero, &TimeoutError{Operation: opts.Operation, Attempts: opts.MaxAttempts, Interval: opts.Interval}
}

// Sleep waits for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
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
