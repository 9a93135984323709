package reliability

import (
	"context"
	"math"
	"math/rand"
	"time"
)

// JitterSource produces a uniformly distributed duration in [0, max).
// Implementations must be safe for concurrent use.
type JitterSource func(max time.Duration) time.Duration

func defaultJitter(max time.Duration) time.Duration {
	if max <= 0 {
		return 0
	}
	return time.Duration(rand.Int63n(int64(max)))
}

// Executor runs operations with exponential backoff between attempts.
// Configuration is immutable after construction; a single Executor may be
// shared by any number of concurrent Execute calls.
type Executor struct {
	maxRetries     int
	baseDelay      time.Duration
	maxDelay       time.Duration
	maxJitter      time.Duration
	attemptTimeout time.Duration
	jitter         JitterSource
}

// ExecutorOption configures the executor
type ExecutorOption func(*Executor)

// WithMaxRetries sets the retry budget. Zero means a single attempt with
// no retries.
func WithMaxRetries(n int) ExecutorOption {
	return func(e *Executor) {
		e.maxRetries = n
	}
}

// WithBaseDelay sets the backoff base delay.
func WithBaseDelay(d time.Duration) ExecutorOption {
	return func(e *Executor) {
		e.baseDelay = d
	}
}

// WithMaxDelay caps the exponential component of the backoff delay.
func WithMaxDelay(d time.Duration) ExecutorOption {
	return func(e *Executor) {
		e.maxDelay = d
	}
}

// WithMaxJitter sets the upper bound of the random jitter added to each
// backoff delay.
func WithMaxJitter(d time.Duration) ExecutorOption {
	return func(e *Executor) {
		e.maxJitter = d
	}
}

// WithAttemptTimeout bounds each individual attempt with its own deadline.
// An attempt that exceeds it counts as a transient failure and is retried;
// only the caller's own cancellation stops the executor.
func WithAttemptTimeout(d time.Duration) ExecutorOption {
	return func(e *Executor) {
		e.attemptTimeout = d
	}
}

// WithJitterSource sets the randomness source for jitter.
func WithJitterSource(j JitterSource) ExecutorOption {
	return func(e *Executor) {
		e.jitter = j
	}
}

// NewExecutor creates a new retry executor
func NewExecutor(options ...ExecutorOption) *Executor {
	e := &Executor{
		maxRetries: 3,
		baseDelay:  100 * time.Millisecond,
		maxDelay:   30 * time.Second,
		maxJitter:  100 * time.Millisecond,
		jitter:     defaultJitter,
	}

	for _, opt := range options {
		opt(e)
	}

	return e
}

// Execute runs op, retrying transient failures with exponential backoff.
//
// The first attempt runs immediately, even if ctx is already cancelled; a
// cancellation surfacing from a cancelled caller context propagates without
// consulting the retry budget. Failures caused by the per-attempt timeout
// are transient and retried. After the budget is consumed the last failure
// is returned, wrapped in *RetryError unless the budget was zero.
func (e *Executor) Execute(ctx context.Context, op func(context.Context) error) error {
	start := time.Now()
	var lastErr error

	for attempt := 1; ; attempt++ {
		attemptCtx := ctx
		var cancel context.CancelFunc
		if e.attemptTimeout > 0 {
			attemptCtx, cancel = context.WithTimeout(ctx, e.attemptTimeout)
		}

		err := op(attemptCtx)
		if cancel != nil {
			cancel()
		}
		if err == nil {
			return nil
		}

		// A cancellation requested by the caller is a shutdown, not a
		// transient failure. An attempt that ran into its own timeout
		// retries like any other failure.
		if ctx.Err() != nil {
			return ctx.Err()
		}

		if !isRetryableError(err) {
			return err
		}

		lastErr = err

		if attempt > e.maxRetries {
			if e.maxRetries == 0 {
				return lastErr
			}
			return &RetryError{
				Op:          "execute",
				Attempts:    attempt,
				MaxAttempts: e.maxRetries + 1,
				LastError:   lastErr,
				Duration:    time.Since(start),
			}
		}

		delay := e.nextDelay(attempt)
		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		}
	}
}

// nextDelay computes the backoff before the retry following failed attempt
// number attempt (1-indexed): 2^attempt * baseDelay plus jitter, the
// exponential part capped at maxDelay.
func (e *Executor) nextDelay(attempt int) time.Duration {
	delay := float64(e.baseDelay) * math.Pow(2, float64(attempt))
	if e.maxDelay > 0 && delay > float64(e.maxDelay) {
		delay = float64(e.maxDelay)
	}
	return time.Duration(delay) + e.jitter(e.maxJitter)
}

// ExecuteTyped runs an operation returning a value under e's retry policy.
func ExecuteTyped[T any](ctx context.Context, e *Executor, op func(context.Context) (T, error)) (T, error) {
	var result T
	err := e.Execute(ctx, func(ctx context.Context) error {
		v, err := op(ctx)
		if err != nil {
			return err
		}
		result = v
		return nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return result, nil
}
