package guard

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// #region constants

// DefaultTimeout bounds a guarded call when the caller passes no timeout.
// Keeps one model call well inside a typical 30s request budget.
const DefaultTimeout = 10 * time.Second

var (
	ErrTimeout   = errors.New("guarded call timed out")
	ErrPanic     = errors.New("guarded call panicked")
	ErrCancelled = errors.New("guarded call cancelled")
	ErrNilOp     = errors.New("guarded call has no operation")
)

// #endregion constants

// #region outcome

// Outcome is the single result of a guarded call. When OK is false, Value holds
// the caller's fallback unmodified and Err holds the triggering error.
type Outcome[T any] struct {
	Value   T
	OK      bool
	Err     error
	Elapsed time.Duration
}

// Message returns the failure message for diagnostics, or "" on success.
func (o Outcome[T]) Message() string {
	if o.Err == nil {
		return ""
	}
	return o.Err.Error()
}

// #endregion outcome

// #region invoke

type result[T any] struct {
	value T
	err   error
}

// Invoke runs op exactly once under timeout. Any error, panic, timeout or parent
// cancellation yields fallback with OK=false. No retries happen here.
//
// op receives a context that is cancelled as soon as Invoke returns. Operations
// that ignore it are abandoned: they run to completion in the background and
// their result is discarded.
func Invoke[T any](ctx context.Context, timeout time.Duration, fallback T, op func(context.Context) (T, error)) Outcome[T] {
	start := time.Now()
	if op == nil {
		return failed(fallback, ErrNilOp, start)
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	// buffered: an abandoned op must be able to deliver and exit
	done := make(chan result[T], 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- result[T]{err: fmt.Errorf("%w: %v", ErrPanic, r)}
			}
		}()
		v, err := op(callCtx)
		done <- result[T]{value: v, err: err}
	}()

	select {
	case r := <-done:
		if r.err == nil {
			return Outcome[T]{Value: r.value, OK: true, Elapsed: time.Since(start)}
		}
		if callCtx.Err() != nil {
			// the op gave up because our deadline or the caller's fired
			return failed(fallback, interruption(ctx, callCtx, timeout), start)
		}
		return failed(fallback, r.err, start)
	case <-callCtx.Done():
		return failed(fallback, interruption(ctx, callCtx, timeout), start)
	}
}

func interruption(parent, call context.Context, timeout time.Duration) error {
	if err := parent.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrCancelled, err)
	}
	return fmt.Errorf("%w after %s: %w", ErrTimeout, timeout, call.Err())
}

func failed[T any](fallback T, err error, start time.Time) Outcome[T] {
	return Outcome[T]{Value: fallback, OK: false, Err: err, Elapsed: time.Since(start)}
}

// #endregion invoke
