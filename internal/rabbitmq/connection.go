package rabbitmq

import (
	"context"
	"log/slog"
	"net/url"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// ConnectionManager manages the RabbitMQ connection. The connection is
// established lazily and re-established on demand after a broker-side
// close.
type ConnectionManager struct {
	url    string
	logger *slog.Logger

	mu     sync.Mutex
	conn   *amqp.Connection
	closed bool
}

// ConnectionOption configures the ConnectionManager
type ConnectionOption func(*ConnectionManager)

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) ConnectionOption {
	return func(cm *ConnectionManager) {
		cm.logger = logger
	}
}

// NewConnectionManager creates a new connection manager
func NewConnectionManager(url string, options ...ConnectionOption) *ConnectionManager {
	cm := &ConnectionManager{
		url:    url,
		logger: slog.Default(),
	}

	for _, opt := range options {
		opt(cm)
	}

	return cm
}

// Channel returns a fresh channel on the managed connection, dialing if
// necessary.
func (cm *ConnectionManager) Channel(ctx context.Context) (*amqp.Channel, error) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if cm.closed {
		return nil, ErrConnectionClosed
	}

	if cm.conn == nil || cm.conn.IsClosed() {
		conn, err := amqp.Dial(cm.url)
		if err != nil {
			return nil, &ConnectionError{
				Op:        "dial",
				URL:       SanitizeURL(cm.url),
				Err:       err,
				Timestamp: time.Now(),
			}
		}
		cm.conn = conn
		cm.logger.Info("connected to RabbitMQ", "url", SanitizeURL(cm.url))
	}

	ch, err := cm.conn.Channel()
	if err != nil {
		return nil, &ConnectionError{
			Op:        "channel",
			URL:       SanitizeURL(cm.url),
			Err:       err,
			Timestamp: time.Now(),
		}
	}
	return ch, nil
}

// IsConnected reports whether an open connection is currently held.
func (cm *ConnectionManager) IsConnected() bool {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	return cm.conn != nil && !cm.conn.IsClosed()
}

// Close shuts down the connection. The manager cannot be reused.
func (cm *ConnectionManager) Close() error {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	cm.closed = true
	if cm.conn == nil {
		return nil
	}
	err := cm.conn.Close()
	cm.conn = nil
	return err
}

// SanitizeURL strips credentials from an AMQP URL for logging.
func SanitizeURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "invalid-url"
	}
	if u.User != nil {
		u.User = url.User("***")
	}
	return u.String()
}
