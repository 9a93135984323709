package reliability

import (
	"errors"
	"fmt"
	"time"
)

var (
	// Retry errors
	ErrRetriesExhausted = errors.New("retry: maximum attempts exceeded")
	ErrNonRetryable     = errors.New("retry: error is not retryable")

	// Cooldown errors
	ErrCooldownOpen = errors.New("cooldown: loop is cooling down")
)

// RetryError is returned when the retry budget is consumed without the
// wrapped operation succeeding. It satisfies errors.Is(err, ErrRetriesExhausted)
// and unwraps to the last attempt's failure.
type RetryError struct {
	Op          string
	Attempts    int
	MaxAttempts int
	LastError   error
	Duration    time.Duration
}

func (e *RetryError) Error() string {
	return fmt.Sprintf("retry failed: %s after %d/%d attempts over %v: %v",
		e.Op, e.Attempts, e.MaxAttempts, e.Duration.Round(time.Millisecond), e.LastError)
}

func (e *RetryError) Unwrap() error {
	return e.LastError
}

func (e *RetryError) Is(target error) bool {
	return target == ErrRetriesExhausted
}

// RetryableError wraps an error with an explicit retryability marker.
type RetryableError struct {
	Err       error
	Retryable bool
}

// Error implements error interface
func (r RetryableError) Error() string {
	return r.Err.Error()
}

// IsRetryable indicates if the error is retryable
func (r RetryableError) IsRetryable() bool {
	return r.Retryable
}

// Unwrap returns the wrapped error
func (r RetryableError) Unwrap() error {
	return r.Err
}

// isRetryableError determines if an error is retryable
func isRetryableError(err error) bool {
	if err == nil {
		return false
	}

	type retryable interface {
		IsRetryable() bool
	}

	if r, ok := err.(retryable); ok {
		return r.IsRetryable()
	}

	if errors.Is(err, ErrNonRetryable) {
		return false
	}

	// Default to retryable for unknown errors
	return true
}
