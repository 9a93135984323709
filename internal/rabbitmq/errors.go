package rabbitmq

import (
	"errors"
	"fmt"
	"time"
)

var (
	// Connection errors
	ErrConnectionClosed = errors.New("rabbitmq: connection is closed")
	ErrNotConnected     = errors.New("rabbitmq: not connected")

	// Queue errors
	ErrQueueClosed    = errors.New("rabbitmq: queue is closed")
	ErrUnknownReceipt = errors.New("rabbitmq: unknown receipt token")
	ErrTopologyFailed = errors.New("rabbitmq: topology declaration failed")
)

// ConnectionError represents a connection-related error
type ConnectionError struct {
	Op        string    // Operation that failed
	URL       string    // Connection URL (sanitized)
	Err       error     // Underlying error
	Timestamp time.Time // When the error occurred
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("rabbitmq connection error: %s failed: %v", e.Op, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}
